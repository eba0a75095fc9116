package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/speccoll/arkmint/pkg/anvl"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Load and dump the local identifier cache",
}

var dbLoadCmd = &cobra.Command{
	Use:   "load FILE",
	Short: "Load an ANVL file (such as a bulk export) into the local cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		recs, err := anvl.LoadFile(args[0])
		if err != nil {
			return err
		}

		n, err := app.repo.LoadRecords(cmd.Context(), recs)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "loaded %d of %d records\n", n, len(recs))
		return nil
	},
}

var dbDumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Write the local cache to an ANVL file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		arks, err := app.repo.Dump(cmd.Context())
		if err != nil {
			return err
		}

		recs := make([]*anvl.Record, 0, len(arks))
		for i := range arks {
			recs = append(recs, arks[i].Record())
		}
		if err := anvl.WriteFile(args[0], recs); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "dumped %d records to %s\n", len(recs), args[0])
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbLoadCmd, dbDumpCmd)
}
