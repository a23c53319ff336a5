package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	"github.com/kode4food/courier/internal/store"
	"github.com/kode4food/courier/pkg/api"
)

type failingBackend struct {
	store.Backend
	err error
}

var (
	errBackend = errors.New("backend down")
	created    = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
)

func (b *failingBackend) Put(context.Context, api.PlanID, []byte) error {
	return b.err
}

func (b *failingBackend) Delete(context.Context, api.PlanID) error {
	return b.err
}

func testPlan(id api.PlanID, enabled bool) *api.Plan {
	return &api.Plan{
		ID:      id,
		Name:    "Plan " + string(id),
		Enabled: enabled,
		Trigger: api.Trigger{
			Type: api.TriggerFromAddress, Address: "boss@example.com",
		},
		Steps: []*api.Step{{
			ID:     "reply",
			Action: api.ActionSendEmail,
			Inputs: &api.SendEmailInputs{
				To:      []string{"{{trigger.from}}"},
				Subject: "Re: {{trigger.subject}}",
				Body:    "On it",
			},
		}},
	}
}

func memBackend() store.Backend {
	return store.NewBlobBackendWithBucket(memblob.OpenBucket(nil), "plans/")
}

func newStore(t *testing.T, b store.Backend) *store.Store {
	t.Helper()
	now := created
	s := store.New(b, store.WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newStore(t, memBackend())
	ctx := context.Background()

	p, err := s.Create(ctx, testPlan("p1", true))
	require.NoError(t, err)
	assert.Equal(t, created.Add(time.Minute), p.CreatedAt)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)

	got, err := s.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "Plan p1", got.Name)
	in, ok := got.Steps[0].Inputs.(*api.SendEmailInputs)
	require.True(t, ok)
	assert.Equal(t, []string{"{{trigger.from}}"}, in.To)

	_, err = s.Create(ctx, testPlan("p1", true))
	assert.ErrorIs(t, err, store.ErrPlanExists)
}

func TestGetReturnsCopy(t *testing.T) {
	s := newStore(t, memBackend())
	_, err := s.Create(context.Background(), testPlan("p1", true))
	require.NoError(t, err)

	got, err := s.Get("p1")
	require.NoError(t, err)
	got.Name = "changed"
	got.Steps[0].ID = "changed"

	again, err := s.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "Plan p1", again.Name)
	assert.Equal(t, api.StepID("reply"), again.Steps[0].ID)
}

func TestUpdate(t *testing.T) {
	s := newStore(t, memBackend())
	ctx := context.Background()

	_, err := s.Update(ctx, testPlan("missing", true))
	assert.ErrorIs(t, err, store.ErrPlanNotFound)

	orig, err := s.Create(ctx, testPlan("p1", true))
	require.NoError(t, err)

	next := testPlan("p1", false)
	next.Name = "Renamed"
	upd, err := s.Update(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", upd.Name)
	assert.Equal(t, orig.CreatedAt, upd.CreatedAt)
	assert.True(t, upd.UpdatedAt.After(orig.UpdatedAt))
}

func TestDelete(t *testing.T) {
	s := newStore(t, memBackend())
	ctx := context.Background()

	assert.ErrorIs(t, s.Delete(ctx, "p1"), store.ErrPlanNotFound)

	_, err := s.Create(ctx, testPlan("p1", true))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "p1"))

	_, err = s.Get("p1")
	assert.ErrorIs(t, err, store.ErrPlanNotFound)
	assert.Empty(t, s.List())
}

func TestListAndEnabled(t *testing.T) {
	s := newStore(t, memBackend())
	ctx := context.Background()

	for _, p := range []*api.Plan{
		testPlan("c", true), testPlan("a", false), testPlan("b", true),
	} {
		_, err := s.Create(ctx, p)
		require.NoError(t, err)
	}

	var ids []api.PlanID
	for _, p := range s.List() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []api.PlanID{"a", "b", "c"}, ids)

	ids = nil
	for _, p := range s.Enabled() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []api.PlanID{"b", "c"}, ids)
}

func TestWriteThrough(t *testing.T) {
	mem := memBackend()
	s := newStore(t, mem)
	ctx := context.Background()
	_, err := s.Create(ctx, testPlan("p1", true))
	require.NoError(t, err)

	failing := store.New(&failingBackend{Backend: mem, err: errBackend})
	require.NoError(t, failing.Initialize(ctx))

	_, err = failing.Create(ctx, testPlan("p2", true))
	assert.ErrorIs(t, err, errBackend)
	_, err = failing.Get("p2")
	assert.ErrorIs(t, err, store.ErrPlanNotFound)

	upd := testPlan("p1", true)
	upd.Name = "Renamed"
	_, err = failing.Update(ctx, upd)
	assert.ErrorIs(t, err, errBackend)
	got, err := failing.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "Plan p1", got.Name)

	assert.ErrorIs(t, failing.Delete(ctx, "p1"), errBackend)
	_, err = failing.Get("p1")
	assert.NoError(t, err)
}

func TestInitializeSkipsCorruptRecords(t *testing.T) {
	mem := memBackend()
	ctx := context.Background()
	require.NoError(t, mem.Put(ctx, "broken", []byte(`{"id":`)))

	first := store.New(mem)
	_, err := first.Create(ctx, testPlan("good", true))
	require.NoError(t, err)

	s := store.New(mem)
	require.NoError(t, s.Initialize(ctx))
	plans := s.List()
	require.Len(t, plans, 1)
	assert.Equal(t, api.PlanID("good"), plans[0].ID)
}

func TestOpenRejectsMissingScheme(t *testing.T) {
	_, err := store.Open(context.Background(), "localhost:6379", "courier")
	assert.ErrorIs(t, err, store.ErrInvalidStoreURL)
}
