// Package cmd defines the CLI commands for the tinker-api executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatmle/tinker-api/internal/config"
	"github.com/chatmle/tinker-api/internal/server"
)

var cfgFile string

// App is what the serve command runs. It is an interface so tests can swap it out.
type App interface {
	Run(ctx context.Context) error
}

// newApp is the application factory. It's a variable so we can
// replace it with a fake factory in our tests.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return server.Build(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tinker-api",
		Short: "HTTP proxy for the Tinker fine-tuning API.",
		Long: `tinker-api relays fine-tuning requests to the Tinker training API.
Callers pass their Tinker key in the X-Tinker-Key header; the proxy never
stores it. Running without a subcommand is the same as "tinker-api serve".`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables use the TINKER_ prefix")

	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
