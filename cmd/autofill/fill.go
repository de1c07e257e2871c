package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"formautofill/coordinator"
	"formautofill/models"
)

func newFillCmd(opts *globalOptions) *cobra.Command {
	var page pageFlags
	var profileID, outFile string
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Autofill a page from a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := page.load(cmd, a)
			if err != nil {
				return err
			}
			var result *coordinator.Result
			session.Do(func() { result, err = a.Coordinator.AutofillSession(cmd.Context(), session, profileID) })
			if err != nil {
				return errors.New(coordinator.Message(err))
			}
			printSummary(cmd, result.Summary)

			if outFile != "" {
				html, err := session.Doc.HTML()
				if err != nil {
					return err
				}
				if err := os.WriteFile(outFile, []byte(html), 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", outFile, err)
				}
			}
			return nil
		},
	}
	page.register(cmd)
	cmd.Flags().StringVar(&profileID, "profile", "", "profile id to fill from")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write the filled HTML here")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}

func printSummary(cmd *cobra.Command, s models.FillSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "filled %d of %d field(s), %d skipped, %d failed\n", s.FilledFields, s.TotalFields, s.SkippedFields, s.FailedFields)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range s.Results {
		status := "filled"
		switch {
		case r.Skipped:
			status = "skipped"
		case !r.Success:
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Target, status, r.Error)
	}
	w.Flush()
}
