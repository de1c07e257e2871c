package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"formautofill/parsers"
	"formautofill/utils"
)

func newProfileCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage stored profiles",
	}
	cmd.AddCommand(
		newProfileListCmd(opts),
		newProfileImportCmd(opts),
		newProfileExportCmd(opts),
		newProfileInitCmd(opts),
		newProfileFromResumeCmd(opts),
	)
	return cmd
}

func newProfileListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			profiles, err := a.Profiles.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAIL")
			for _, p := range profiles {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.Personal.Email)
			}
			return w.Flush()
		},
	}
}

func newProfileImportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Import a profile exported as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			var text []byte
			if args[0] == "-" {
				text, err = io.ReadAll(cmd.InOrStdin())
			} else {
				text, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read profile: %w", err)
			}
			p, err := a.Profiles.ImportFromText(cmd.Context(), string(text))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported profile %s (%s)\n", p.ID, p.Name)
			return nil
		},
	}
}

func newProfileExportCmd(opts *globalOptions) *cobra.Command {
	var format, outFile string
	var archive bool
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a profile as JSON or as a Word document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			id := args[0]
			var body []byte
			var contentType string
			switch format {
			case "json":
				text, err := a.Profiles.ExportAsText(cmd.Context(), id)
				if err != nil {
					return err
				}
				body, contentType = []byte(text+"\n"), "application/json"
			case "docx":
				p, err := a.Profiles.Require(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !archive {
					if outFile == "" {
						return fmt.Errorf("docx export needs --out or --archive")
					}
					return utils.GenerateWordFile(p, outFile)
				}
				var buf bytes.Buffer
				if err := utils.WriteProfileDocx(p, &buf); err != nil {
					return err
				}
				body, contentType = buf.Bytes(), "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
			default:
				return fmt.Errorf("unsupported format %q", format)
			}

			if archive {
				if a.Archive == nil {
					return fmt.Errorf("S3 archive is not configured")
				}
				url, err := a.Archive.Upload(cmd.Context(), id+"."+format, body, contentType)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), url)
				return nil
			}
			if outFile != "" {
				return os.WriteFile(outFile, body, 0644)
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json or docx")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write the export to this file")
	cmd.Flags().BoolVar(&archive, "archive", false, "upload the export to S3 and print a download link")
	return cmd
}

func newProfileInitCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the default profile when no profile exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			p, created, err := a.Profiles.EnsureDefault(cmd.Context())
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created default profile %s\n", p.ID)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "profiles already exist")
			}
			return nil
		},
	}
}

func newProfileFromResumeCmd(opts *globalOptions) *cobra.Command {
	var name string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "from-resume <file>",
		Short: "Create a profile from a resume (txt, docx or pdf)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := parsers.ExtractFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p, err := parsers.ParseResume(text)
			if err != nil {
				return err
			}
			if name != "" {
				p.Name = name
			}
			if dryRun {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}

			a, err := opts.openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Profiles.Save(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created profile %s (%s)\n", p.ID, p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "profile name (default: name found in the resume)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the parsed profile without saving it")
	return cmd
}
