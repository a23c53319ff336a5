package planfile

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/kode4food/courier/internal/store"
	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/log"
)

type (
	// Target is the part of the engine that plan files are applied to
	Target interface {
		GetPlan(api.PlanID) (*api.Plan, error)
		CreatePlan(context.Context, *api.Plan) (*api.Plan, error)
		UpdatePlan(
			context.Context, api.PlanID, *api.Plan,
		) (*api.Plan, error)
	}

	// Result reports what a sync did with each file
	Result struct {
		Created []api.PlanID
		Updated []api.PlanID
		Failed  map[string]error
	}
)

// Read loads one plan file and settles its ID. A file without a plan ID is
// keyed by its base name
func Read(path string) (*api.Plan, error) {
	plan, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if plan.ID == "" {
		base := filepath.Base(path)
		plan.ID = api.PlanID(base[:len(base)-len(filepath.Ext(base))])
	}
	plan.ID = api.SanitizeID(plan.ID)
	return plan, nil
}

// Apply creates or replaces the plan defined by one file
func Apply(
	ctx context.Context, t Target, path string,
) (*api.Plan, bool, error) {
	plan, err := Read(path)
	if err != nil {
		return nil, false, err
	}

	_, err = t.GetPlan(plan.ID)
	switch {
	case err == nil:
		res, err := t.UpdatePlan(ctx, plan.ID, plan)
		return res, false, err
	case errors.Is(err, store.ErrPlanNotFound):
		res, err := t.CreatePlan(ctx, plan)
		return res, true, err
	default:
		return nil, false, err
	}
}

// Sync applies every plan file beneath dir. A bad file is recorded and
// skipped so one typo does not block the rest
func Sync(ctx context.Context, t Target, dir string) (*Result, error) {
	paths, err := Glob(dir)
	if err != nil {
		return nil, err
	}

	res := &Result{Failed: map[string]error{}}
	for _, path := range paths {
		plan, created, err := Apply(ctx, t, path)
		if err != nil {
			res.Failed[path] = err
			slog.Warn("Plan file rejected",
				slog.String("path", path),
				log.Error(err))
			continue
		}
		if created {
			res.Created = append(res.Created, plan.ID)
		} else {
			res.Updated = append(res.Updated, plan.ID)
		}
	}

	slog.Info("Plan files synced",
		slog.String("dir", dir),
		slog.Int("created", len(res.Created)),
		slog.Int("updated", len(res.Updated)),
		slog.Int("failed", len(res.Failed)))
	return res, nil
}
