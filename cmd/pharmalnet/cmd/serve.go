package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pharmalnet/dti/pkg/log"
	"github.com/pharmalnet/dti/server"
	"github.com/pharmalnet/dti/version"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "serve the HTTP API",
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.GetLoggerWithName("cmd").Info("Starting pharmalnet", "version", version.String())
		svr, err := server.New(cfg)
		if err != nil {
			return err
		}
		return svr.Serve(ctx)
	},
}
