package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kode4food/courier/internal/validator"
	"github.com/kode4food/courier/pkg/log"
)

// Start loads the stored plans and registers the enabled ones with the
// trigger manager. Timers run until Stop is called. Stored plans that no
// longer validate are left unregistered
func (e *Engine) Start(ctx context.Context) error {
	slog.Info("Engine starting")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.triggers.Start(runCtx)

	if err := e.store.Initialize(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to load plans: %w", err)
	}

	registered := 0
	for _, p := range e.store.Enabled() {
		if res := validator.Validate(p); !res.Valid {
			slog.Warn("Stored plan failed validation",
				log.PlanID(p.ID),
				log.Error(res))
			continue
		}
		e.triggers.Register(p)
		registered++
	}

	slog.Info("Engine started",
		slog.Int("plans", len(e.store.List())),
		slog.Int("registered", registered))
	return nil
}
