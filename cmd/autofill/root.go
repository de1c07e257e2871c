package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"formautofill/app"
	"formautofill/config"
	"formautofill/utils"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

type globalOptions struct {
	envFile    string
	store      string
	sqlitePath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "autofill",
		Short:         "Detect, map and fill web forms from stored profiles.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Load(opts.envFile)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", "", "env file to load (default .env when present)")
	flags.StringVar(&opts.store, "store", "", "store driver: memory, sqlite or postgres (overrides STORE_DRIVER)")
	flags.StringVar(&opts.sqlitePath, "sqlite-path", "", "sqlite database path (overrides SQLITE_PATH)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(
		newServeCmd(opts),
		newDetectCmd(opts),
		newFillCmd(opts),
		newProfileCmd(opts),
		newTokenCmd(opts),
		newHashSecretCmd(),
	)
	return root
}

// appConfig reads the configuration and applies flag overrides.
func (o *globalOptions) appConfig() config.AppConfig {
	cfg := config.GetAppConfig()
	if o.store != "" {
		cfg.Store.Driver = o.store
	}
	if o.sqlitePath != "" {
		cfg.Store.SQLitePath = o.sqlitePath
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg
}

// openApp builds the application for one command. Logs go to the log file
// only when one is configured, keeping stdout for command output.
func (o *globalOptions) openApp(ctx context.Context, serving bool) (*app.App, error) {
	cfg := o.appConfig()
	logger := utils.NewNopLogger()
	if serving || cfg.Log.File != "" {
		logger = utils.NewLoggerWithOptions(utils.LoggerOptions{Level: cfg.Log.Level, File: cfg.Log.File})
	}
	utils.SetGlobalLogger(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise: %w", err)
	}
	return a, nil
}
