package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/speccoll/arkmint/pkg/anvl"
)

var updateCmd = &cobra.Command{
	Use:   "update ARK [file]",
	Short: "Overwrite the registry record for an existing identifier",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		var data []byte
		if len(args) == 2 {
			data, err = os.ReadFile(args[1])
		} else {
			data, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return err
		}

		rec, err := anvl.Decode(string(data))
		if err != nil {
			return err
		}

		res, err := app.svc.UpdateRecord(cmd.Context(), args[0], rec)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Outcome, res.ARK)
		return nil
	},
}

var viewCmd = &cobra.Command{
	Use:   "view ARK",
	Short: "Print the registry's record for an identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		body, err := app.registry.View(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), body)
		return nil
	},
}
