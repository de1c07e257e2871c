package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"formautofill/app"
	"formautofill/coordinator"
	"formautofill/dom/htmldom"
	"formautofill/models"
)

type pageFlags struct {
	file string
	url  string
}

func (p *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.file, "file", "", "HTML file to work on")
	cmd.Flags().StringVar(&p.url, "url", "", "page URL; loaded in a headless browser unless --file is given")
}

// load opens a session on the page. A file is parsed directly, with --url as
// its address; otherwise the URL is opened live in a headless browser.
func (p *pageFlags) load(cmd *cobra.Command, a *app.App) (*coordinator.Session, error) {
	if p.file == "" && p.url == "" {
		return nil, fmt.Errorf("either --file or --url is required")
	}
	if err := coordinator.CheckURL(p.url); err != nil {
		return nil, err
	}
	if p.file == "" {
		return a.OpenLive(cmd.Context(), p.url, "")
	}
	src, err := os.ReadFile(p.file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.file, err)
	}
	doc, err := htmldom.Parse(p.url, string(src))
	if err != nil {
		return nil, err
	}
	return a.Sessions.Open(doc, ""), nil
}

func newDetectCmd(opts *globalOptions) *cobra.Command {
	var page pageFlags
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "List the forms and fillable fields of a page",
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
			var containers []models.Container
			session.Do(func() { containers, err = a.Coordinator.DetectSession(cmd.Context(), session) })
			if err != nil {
				return errors.New(coordinator.Message(err))
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(containers)
			}
			printContainers(cmd, containers)
			return nil
		},
	}
	page.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print containers as JSON")
	return cmd
}

func printContainers(cmd *cobra.Command, containers []models.Container) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d form(s) found\n", len(containers))
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SELECTOR\tSOURCE\tFIELDS\tPURPOSE")
	for _, c := range containers {
		purpose := "-"
		if c.Classification != nil {
			purpose = fmt.Sprintf("%s (%.2f)", c.Classification.Purpose, c.Classification.Confidence)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.Selector, c.Source, len(c.Fields), purpose)
	}
	w.Flush()
}
