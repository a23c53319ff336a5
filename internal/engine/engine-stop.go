package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kode4food/courier/pkg/log"
)

// Stop cancels every timer, waits for in-flight executions until ctx ends,
// and closes the plan store and the execution log
func (e *Engine) Stop(ctx context.Context) error {
	e.triggers.Shutdown()

	var res error
	if err := e.triggers.Drain(ctx); err != nil {
		res = fmt.Errorf("%w: %w", ErrShutdownTimeout, err)
	}
	if e.cancel != nil {
		e.cancel()
	}
	if err := e.store.Close(); err != nil {
		slog.Error("Failed to close plan store", log.Error(err))
	}
	e.logs.Close()

	slog.Info("Engine stopped")
	return res
}
