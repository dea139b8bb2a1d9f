package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brunopk/paycore/internal/storage/ledgerdb/postgres"
)

// seedCmd loads the demo dataset.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with the demo tenant and users",
	Long: `Seed the configured database with the demo tenant, its default
chart of accounts, the built-in roles and permissions, and the demo users.
Seeding is idempotent; running it twice leaves the data unchanged.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	provider, err := bootstrap()
	if err != nil {
		return err
	}

	if provider.GetConfig().Database.URL == "" {
		return errors.New("seed requires a configured database url; the in-memory backend is process-local")
	}

	db, err := provider.GetDB()
	if err != nil {
		return err
	}
	pg, ok := db.(*postgres.Manager)
	if !ok {
		return errors.New("seed supports only the postgres backend")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := postgres.Seed(ctx, pg); err != nil {
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	provider.Shutdown(shutdownCtx)

	if !quiet {
		fmt.Println("seed complete: demo tenant, accounts, roles and users are in place")
	}
	return nil
}
