package worker

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
)

// RunUntilSignal starts the worker and blocks until SIGTERM or SIGINT
// arrives, then cancels the poll loop and waits for Start to return.
// This is the Go-idiomatic replacement for QueueWorker's
// signal.signal(SIGTERM, self._handle_signal) registration: a single
// context plumbed through the loop instead of a handler flipping a
// _running flag read by another thread.
func (w *Worker) RunUntilSignal(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	<-ctx.Done()
	slog.Info("worker: shutdown signal received")

	err := <-done
	return err
}
