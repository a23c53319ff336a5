package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	"github.com/kode4food/courier/internal/assert/helpers"
	"github.com/kode4food/courier/internal/engine"
	"github.com/kode4food/courier/internal/engine/scheduler"
	"github.com/kode4food/courier/internal/execlog"
	"github.com/kode4food/courier/internal/metrics"
	"github.com/kode4food/courier/internal/store"
	"github.com/kode4food/courier/pkg/api"
)

type testEngine struct {
	*engine.Engine
	caps    *helpers.MockCapabilities
	backend store.Backend
}

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newBackend() store.Backend {
	return store.NewBlobBackendWithBucket(memblob.OpenBucket(nil), "plans/")
}

func newEngine(t *testing.T, backend store.Backend) *testEngine {
	t.Helper()
	caps := helpers.NewMockCapabilities()
	clock := func() time.Time { return testNow }
	timers := helpers.NewFakeTimers()

	e := engine.New(
		store.New(backend, store.WithClock(clock)),
		caps,
		execlog.New(1000),
		engine.WithScheduler(scheduler.New(clock, timers.NewTimer)),
		engine.WithMetrics(metrics.New()),
		engine.WithClock(clock),
	)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = e.Stop(ctx)
	})
	return &testEngine{Engine: e, caps: caps, backend: backend}
}

func addressPlan(id api.PlanID, steps ...*api.Step) *api.Plan {
	p := testPlan(id, steps...)
	p.Trigger = api.Trigger{
		Type: api.TriggerFromAddress, Address: "jane@example.com",
	}
	return p
}

func incoming() *api.Email {
	return &api.Email{
		ID:      "m1",
		From:    "Jane <jane@example.com>",
		To:      []string{"me@example.com"},
		Subject: "Please analyze this",
		Body:    "The server is on fire",
	}
}

func TestCreatePlanRejectsInvalid(t *testing.T) {
	e := newEngine(t, newBackend())

	bad := testPlan("bad",
		replyStep("reply", "{{later.data}}"),
		analyzeStep("later"),
	)
	_, err := e.CreatePlan(context.Background(), bad)
	assert.ErrorIs(t, err, engine.ErrPlanInvalid)

	var res *api.ValidationResult
	require.True(t, errors.As(err, &res))
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, api.StepID("reply"), res.Errors[0].StepID)

	_, err = e.GetPlan("bad")
	assert.ErrorIs(t, err, engine.ErrPlanNotFound)
	assert.Empty(t, e.Triggers().Registered())
}

func TestCreatePlanAssignsID(t *testing.T) {
	e := newEngine(t, newBackend())
	ctx := context.Background()

	anon := testPlan("", labelStep("label", "x"))
	created, err := e.CreatePlan(ctx, anon)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	named, err := e.CreatePlan(ctx, testPlan("My Plan!", labelStep("l", "x")))
	require.NoError(t, err)
	assert.Equal(t, api.PlanID("my-plan"), named.ID)
	assert.Equal(t, testNow, named.CreatedAt)

	_, err = e.CreatePlan(ctx, testPlan("my-plan", labelStep("l", "x")))
	assert.ErrorIs(t, err, engine.ErrPlanExists)
}

func TestCreatePlanRegistersTrigger(t *testing.T) {
	e := newEngine(t, newBackend())
	ctx := context.Background()

	_, err := e.CreatePlan(ctx, addressPlan("p", labelStep("label", "x")))
	require.NoError(t, err)
	assert.Equal(t, []api.PlanID{"p"}, e.Triggers().Registered())

	d, err := e.HandleIncomingEmail(ctx, incoming())
	require.NoError(t, err)
	assert.Equal(t, []api.PlanID{"p"}, d.Matched)

	execs := d.Wait()
	require.Len(t, execs, 1)
	assert.Equal(t, api.ExecutionCompleted, execs[0].Status)
	assert.Equal(t, "email m1", execs[0].Trigger)

	in := e.caps.InvocationsOf("label")[0].Inputs.(*api.AddLabelsInputs)
	assert.Equal(t, "m1", in.EmailID)
}

func TestCreateDisabledPlanNotRegistered(t *testing.T) {
	e := newEngine(t, newBackend())
	p := addressPlan("p", labelStep("label", "x"))
	p.Enabled = false

	_, err := e.CreatePlan(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, e.Triggers().Registered())
	assert.Len(t, e.ListPlans(), 1)
}

func TestUpdatePlan(t *testing.T) {
	e := newEngine(t, newBackend())
	ctx := context.Background()

	_, err := e.UpdatePlan(ctx, "missing", addressPlan("", labelStep("l")))
	assert.ErrorIs(t, err, engine.ErrPlanInvalid)

	_, err = e.UpdatePlan(ctx, "missing", addressPlan("", labelStep("l", "x")))
	assert.ErrorIs(t, err, engine.ErrPlanNotFound)

	_, err = e.CreatePlan(ctx, addressPlan("p", labelStep("label", "x")))
	require.NoError(t, err)

	upd := addressPlan("ignored", labelStep("label", "y"))
	upd.Enabled = false
	got, err := e.UpdatePlan(ctx, "p", upd)
	require.NoError(t, err)
	assert.Equal(t, api.PlanID("p"), got.ID)
	assert.False(t, got.Enabled)
	assert.Empty(t, e.Triggers().Registered())

	d, err := e.HandleIncomingEmail(ctx, incoming())
	require.NoError(t, err)
	assert.Empty(t, d.Matched)
}

func TestDeletePlan(t *testing.T) {
	e := newEngine(t, newBackend())
	ctx := context.Background()

	assert.ErrorIs(t, e.DeletePlan(ctx, "p"), engine.ErrPlanNotFound)

	_, err := e.CreatePlan(ctx, addressPlan("p", labelStep("label", "x")))
	require.NoError(t, err)
	require.NoError(t, e.DeletePlan(ctx, "p"))

	assert.Empty(t, e.ListPlans())
	assert.Empty(t, e.Triggers().Registered())
}

func TestSetPlanEnabled(t *testing.T) {
	e := newEngine(t, newBackend())
	ctx := context.Background()

	_, err := e.SetPlanEnabled(ctx, "p", true)
	assert.ErrorIs(t, err, engine.ErrPlanNotFound)

	_, err = e.CreatePlan(ctx, addressPlan("p", labelStep("label", "x")))
	require.NoError(t, err)

	p, err := e.SetPlanEnabled(ctx, "p", false)
	require.NoError(t, err)
	assert.False(t, p.Enabled)
	assert.Empty(t, e.Triggers().Registered())

	p, err = e.SetPlanEnabled(ctx, "p", true)
	require.NoError(t, err)
	assert.True(t, p.Enabled)
	assert.Equal(t, []api.PlanID{"p"}, e.Triggers().Registered())

	stored, err := e.GetPlan("p")
	require.NoError(t, err)
	assert.True(t, stored.Enabled)
}

func TestStartRegistersStoredPlans(t *testing.T) {
	backend := newBackend()
	ctx := context.Background()

	seed := store.New(backend)
	require.NoError(t, seed.Initialize(ctx))

	disabled := addressPlan("disabled", labelStep("label", "x"))
	disabled.Enabled = false
	invalid := addressPlan("invalid", replyStep("reply", "{{ghost.data}}"))
	for _, p := range []*api.Plan{
		addressPlan("valid", labelStep("label", "x")), disabled, invalid,
	} {
		_, err := seed.Create(ctx, p)
		require.NoError(t, err)
	}

	e := newEngine(t, backend)
	assert.Len(t, e.ListPlans(), 3)
	assert.Equal(t, []api.PlanID{"valid"}, e.Triggers().Registered())
}

func TestTwoMatchingPlansRunIndependently(t *testing.T) {
	e := newEngine(t, newBackend())
	ctx := context.Background()
	e.caps.SetError("a-label", errUnavailable)

	_, err := e.CreatePlan(ctx, addressPlan("a", labelStep("a-label", "x")))
	require.NoError(t, err)
	_, err = e.CreatePlan(ctx, addressPlan("b",
		labelStep("b-label", "x"), replyStep("b-reply", "ok"),
	))
	require.NoError(t, err)

	d, err := e.HandleIncomingEmail(ctx, incoming())
	require.NoError(t, err)
	assert.Equal(t, []api.PlanID{"a", "b"}, d.Matched)

	execs := d.Wait()
	require.Len(t, execs, 2)
	assert.NotEqual(t, execs[0].ID, execs[1].ID)

	assert.Equal(t, api.ExecutionFailed, execs[0].Status)
	assert.Equal(t, []api.StepStatus{api.StepFailed}, statuses(execs[0]))

	assert.Equal(t, api.ExecutionCompleted, execs[1].Status)
	assert.Equal(t,
		[]api.StepStatus{api.StepSuccess, api.StepSuccess}, statuses(execs[1]),
	)
}

func TestHandleIncomingEmailInvalid(t *testing.T) {
	e := newEngine(t, newBackend())

	_, err := e.HandleIncomingEmail(context.Background(), &api.Email{ID: "m1"})
	assert.ErrorIs(t, err, engine.ErrEmailInvalid)
	assert.ErrorIs(t, err, api.ErrEmailFromMissing)

	_, err = e.HandleIncomingEmail(context.Background(), nil)
	assert.ErrorIs(t, err, engine.ErrEmailInvalid)
}

func TestExecutePlanAndLogs(t *testing.T) {
	e := newEngine(t, newBackend())
	ctx := context.Background()

	_, err := e.ExecutePlan(ctx, "missing", nil)
	assert.ErrorIs(t, err, engine.ErrPlanNotFound)

	p := addressPlan("p", analyzeStep("analyze"))
	p.Enabled = false
	_, err = e.CreatePlan(ctx, p)
	require.NoError(t, err)

	ex, err := e.ExecutePlan(ctx, "p", map[string]any{"body": "manual run"})
	require.NoError(t, err)
	assert.Equal(t, api.ExecutionCompleted, ex.Status)
	assert.Equal(t, engine.ManualTrigger, ex.Trigger)
	assert.Equal(t, testNow, ex.StartedAt)

	in := e.caps.InvocationsOf("analyze")[0].Inputs.(*api.RunAnalysisInputs)
	assert.Equal(t, "manual run", in.Content)

	execLogs := e.GetExecutionLogs(ex.ID)
	require.NotEmpty(t, execLogs)
	for _, entry := range execLogs {
		assert.Equal(t, ex.ID, entry.ExecutionID)
		assert.Equal(t, api.PlanID("p"), entry.PlanID)
	}
	assert.Len(t, e.GetPlanLogs("p"), len(execLogs))
	assert.Empty(t, e.GetPlanLogs("other"))

	data, err := e.ExportLogs()
	require.NoError(t, err)
	var exported []*api.LogEntry
	require.NoError(t, json.Unmarshal(data, &exported))
	assert.Len(t, exported, len(execLogs))
}

func TestValidatePlan(t *testing.T) {
	e := newEngine(t, newBackend())

	res := e.ValidatePlan(addressPlan("p", labelStep("label", "x")))
	assert.True(t, res.Valid)

	res = e.ValidatePlan(addressPlan("p", labelStep("label")))
	assert.False(t, res.Valid)
}
