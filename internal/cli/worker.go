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

// workerCmd starts the background worker process.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the paycored worker which runs:
- The outbox dispatcher draining pending events to the broker
- The inbound consumer handling charge requests and tenant lifecycle events
- The webhook dispatcher delivering signed callbacks with retries
- The reconciliation scheduler comparing local state against the gateway`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	provider, err := bootstrap()
	if err != nil {
		return err
	}

	log, err := provider.GetLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	runner, err := provider.GetWorkerRunner()
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Println("paycored worker started")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = runner.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	provider.Shutdown(shutdownCtx)

	if err != nil {
		log.Error("worker exited", zap.Error(err))
		return err
	}
	return nil
}
