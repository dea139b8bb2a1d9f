package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serverCmd starts the HTTP API.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the payments API server",
	Long: `Start the paycored HTTP API which provides:
- Payment intent lifecycle endpoints (create, confirm, refund)
- Double-entry ledger and revenue reporting endpoints
- Webhook endpoint management and reconciliation review
- Health, readiness and Prometheus metrics endpoints`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Running without a subcommand starts the server.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServer(cmd, args)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	provider, err := bootstrap()
	if err != nil {
		return err
	}

	log, err := provider.GetLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	srv, err := provider.GetServer()
	if err != nil {
		return err
	}

	cfg := provider.GetConfig()
	if !quiet {
		fmt.Printf("paycored API listening on %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = srv.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	provider.Shutdown(shutdownCtx)

	if err != nil {
		log.Error("server exited", zap.Error(err))
		return err
	}
	return nil
}
