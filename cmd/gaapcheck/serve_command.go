package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dharter89/GAAP/internal/api"
	"github.com/dharter89/GAAP/internal/logging"
	"github.com/dharter89/GAAP/internal/preflight"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			for _, result := range preflight.RunAll(cmd.Context(), cfg, false) {
				if !result.Passed {
					return fmt.Errorf("preflight %s: %s", result.Name, result.Detail)
				}
			}

			svc, _, err := ctx.auditService(cmd.Context(), nil)
			if err != nil {
				return err
			}
			ledger, err := ctx.ledger(cmd.Context())
			if err != nil {
				return err
			}
			vendors, err := ctx.vendors(cmd.Context())
			if err != nil {
				return err
			}

			address := cfg.Paths.APIBind
			if strings.TrimSpace(bind) != "" {
				address = bind
			}
			server, err := api.New(address, api.Deps{
				Audit:          svc,
				Ledger:         ledger,
				Vendors:        vendors,
				Model:          cfg.ProviderName(),
				Storage:        cfg.Storage.Backend,
				MaxUploadBytes: cfg.MaxUploadBytes(),
				Logger:         logger,
			})
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := server.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s (Ctrl+C to stop)\n", server.Addr())
			<-runCtx.Done()
			server.Stop()
			logger.Info("api server stopped", logging.String(logging.FieldEventType, "api_stopped"))
			return nil
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default paths.api_bind)")
	return cmd
}
