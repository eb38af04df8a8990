package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/extsync/internal/app"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/extsync/internal/shared/advisory"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

type rootFlags struct {
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "extsync",
		Short: "Sync editor extensions from GitLab package registries",
		Long: `extsync builds a catalog of VSIX extensions published to GitLab generic
package registries, compares it with what is installed, and installs,
updates or removes extensions on request.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		serveCmd(flags),
		listCmd(flags),
		updateCmd(flags),
		installCmd(flags),
		uninstallCmd(flags),
		detailsCmd(flags),
		tokenCmd(flags),
		registryCmd(flags),
		versionCmd(),
	)
	return root
}

// loadConfig reads process configuration from the environment.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}
	return cfg, nil
}

// newApp assembles the stack for a one-shot command. Logs stay quiet unless
// --verbose is set; advisories are printed to the command's stderr.
func newApp(cmd *cobra.Command, flags *rootFlags) (*app.App, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	logger := logging.NewNop()
	if flags.verbose {
		logger = logging.FromSettings(cfg.Logging.Level, true)
	}
	return app.New(cfg, app.Options{
		Logger:    logger,
		Notifiers: []advisory.Notifier{newConsoleNotifier(cmd.ErrOrStderr())},
	})
}
