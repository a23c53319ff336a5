package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kode4food/courier/internal/validator"
	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/log"
)

// ValidatePlan statically checks a plan without storing it
func (e *Engine) ValidatePlan(plan *api.Plan) *api.ValidationResult {
	return validator.Validate(plan)
}

// CreatePlan validates and stores a new plan, then registers its trigger if
// it is enabled. A plan without an ID is assigned a random one
func (e *Engine) CreatePlan(
	ctx context.Context, plan *api.Plan,
) (*api.Plan, error) {
	p := *plan
	if p.ID == "" {
		p.ID = api.NewPlanID()
	} else {
		p.ID = api.SanitizeID(p.ID)
	}
	if err := e.check(&p); err != nil {
		return nil, err
	}

	created, err := e.store.Create(ctx, &p)
	if err != nil {
		return nil, err
	}
	e.triggers.Register(created)
	slog.Info("Plan created",
		log.PlanID(created.ID),
		slog.Bool("enabled", created.Enabled))
	return created, nil
}

// UpdatePlan replaces a stored plan and re-registers its trigger
func (e *Engine) UpdatePlan(
	ctx context.Context, id api.PlanID, plan *api.Plan,
) (*api.Plan, error) {
	p := *plan
	p.ID = id
	if err := e.check(&p); err != nil {
		return nil, err
	}

	updated, err := e.store.Update(ctx, &p)
	if err != nil {
		return nil, err
	}
	e.triggers.Register(updated)
	slog.Info("Plan updated",
		log.PlanID(updated.ID),
		slog.Bool("enabled", updated.Enabled))
	return updated, nil
}

// DeletePlan removes a stored plan and unregisters its trigger
func (e *Engine) DeletePlan(ctx context.Context, id api.PlanID) error {
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	e.triggers.Unregister(id)
	slog.Info("Plan deleted", log.PlanID(id))
	return nil
}

// GetPlan returns one stored plan
func (e *Engine) GetPlan(id api.PlanID) (*api.Plan, error) {
	return e.store.Get(id)
}

// ListPlans returns every stored plan, sorted by ID
func (e *Engine) ListPlans() []*api.Plan {
	return e.store.List()
}

// SetPlanEnabled turns a plan's trigger on or off. Enabling re-validates the
// plan first
func (e *Engine) SetPlanEnabled(
	ctx context.Context, id api.PlanID, enabled bool,
) (*api.Plan, error) {
	p, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if p.Enabled == enabled {
		return p, nil
	}

	p.Enabled = enabled
	if enabled {
		if err := e.check(p); err != nil {
			return nil, err
		}
	}
	updated, err := e.store.Update(ctx, p)
	if err != nil {
		return nil, err
	}
	e.triggers.Register(updated)
	slog.Info("Plan enablement changed",
		log.PlanID(id),
		slog.Bool("enabled", enabled))
	return updated, nil
}

func (e *Engine) check(p *api.Plan) error {
	if res := validator.Validate(p); !res.Valid {
		return fmt.Errorf("%w: %w", ErrPlanInvalid, res)
	}
	return nil
}
