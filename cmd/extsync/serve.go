package main

import (
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/extsync/internal/app"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/server"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	var (
		port string
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync daemon with its HTTP API",
		Long: `Run the sync daemon. The catalog is built on startup and rebuilt whenever
the settings file changes or the sync interval elapses. Clients use the
HTTP API and the /ws feed for tree changes and notices.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}

			srv, err := server.NewServer(cfg, app.Options{})
			if err != nil {
				return err
			}
			defer srv.Close()

			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (overrides EXTSYNC_PORT)")
	cmd.Flags().StringVar(&host, "host", "", "Listen address (overrides EXTSYNC_HOST)")
	return cmd
}
