package main

import (
	"github.com/spf13/cobra"

	"formautofill/controllers"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			if port == "" {
				port = a.Config.Port
			}
			return controllers.Serve(cmd.Context(), a, ":"+port)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}
