package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/speccoll/arkmint/pkg/anvl"
	"github.com/speccoll/arkmint/pkg/core/domain"
	"github.com/speccoll/arkmint/pkg/sources"
)

var (
	mintShoulder string
	mintReuse    bool
)

var mintCmd = &cobra.Command{
	Use:   "mint [file...]",
	Short: "Submit ANVL records, minting or reusing an identifier for each",
	Long: `Reads blank-line-separated ANVL records from the given files, or from
stdin when no file is named, and submits each one. A record whose target
already has an identifier is reported as a duplicate and nothing is written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		raw, err := readRawRecords(args)
		if err != nil {
			return err
		}
		if len(raw) == 0 {
			return fmt.Errorf("no records to submit")
		}

		results := app.svc.SubmitBatch(cmd.Context(), raw, app.shoulderOrDefault(mintShoulder), mintReuse)
		return reportBatch(cmd, results)
	},
}

var mintTSVCmd = &cobra.Command{
	Use:   "mint-tsv FILE",
	Short: "Submit records from a tab-separated metadata file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		recs, err := sources.ReadTSV(args[0], app.cfg.Publisher)
		if err != nil {
			return err
		}

		raw := make([]string, 0, len(recs))
		for _, rec := range recs {
			raw = append(raw, rec.Encode())
		}
		results := app.svc.SubmitBatch(cmd.Context(), raw, app.shoulderOrDefault(mintShoulder), mintReuse)
		return reportBatch(cmd, results)
	},
}

func init() {
	for _, c := range []*cobra.Command{mintCmd, mintTSVCmd} {
		c.Flags().StringVar(&mintShoulder, "shoulder", "", "shoulder to mint under (defaults to EZID_SHOULDER)")
		c.Flags().BoolVar(&mintReuse, "reuse", false, "claim a reusable cached identifier before minting a new one")
	}
}

// readRawRecords gathers record bodies from the named files, or stdin when
// none are given. Records stay as raw text so one malformed record fails
// alone instead of aborting the whole batch.
func readRawRecords(paths []string) ([]string, error) {
	if len(paths) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		return anvl.Split(string(data)), nil
	}

	var raw []string
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		raw = append(raw, anvl.Split(string(data))...)
	}
	return raw, nil
}

func reportBatch(cmd *cobra.Command, results []domain.BatchResult) error {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "record %d: %v\n", r.Index+1, r.Err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.Result.Outcome, r.Result.ARK)
		if r.Result.Outcome == domain.OutcomeDuplicate && r.Result.Detail != "" {
			fmt.Fprintln(cmd.OutOrStdout(), r.Result.Detail)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d records failed", failed, len(results))
	}
	return nil
}
