// Package worker hosts the background process: the outbox dispatcher, the
// inbound consumer, the webhook dispatcher and the reconciliation scheduler
// run as concurrent tasks under one errgroup, so cancelling the root context
// or a fatal error in any task shuts the whole process down.
package worker

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner owns the worker tasks.
type Runner struct {
	outbox   *OutboxDispatcher
	consumer *Consumer
	webhooks *WebhookDispatcher
	recon    *ReconScheduler
	log      *zap.Logger
}

func NewRunner(outbox *OutboxDispatcher, consumer *Consumer, webhooks *WebhookDispatcher,
	recon *ReconScheduler, log *zap.Logger) *Runner {
	return &Runner{outbox: outbox, consumer: consumer, webhooks: webhooks, recon: recon, log: log}
}

// Run blocks until ctx is cancelled or a task fails.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	r.log.Info("starting worker tasks")
	g.Go(func() error { return r.outbox.Run(ctx) })
	g.Go(func() error { return r.consumer.Run(ctx) })
	g.Go(func() error { return r.webhooks.Run(ctx) })
	g.Go(func() error { return r.recon.Run(ctx) })

	err := g.Wait()
	if err != nil && err != context.Canceled {
		return err
	}
	r.log.Info("worker stopped")
	return nil
}
