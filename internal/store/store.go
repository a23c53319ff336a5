package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/log"
)

type (
	// Backend is the durable half of a Store. Each record holds one plan's
	// full JSON encoding
	Backend interface {
		Put(ctx context.Context, id api.PlanID, data []byte) error
		Delete(ctx context.Context, id api.PlanID) error
		LoadAll(ctx context.Context) ([]Record, error)
		Close() error
	}

	// Record is one durable plan entry as read back from a Backend
	Record struct {
		ID   api.PlanID
		Data []byte
	}

	// Store is a write-through plan repository. Reads are served from
	// memory; the mirror only changes once the backend write has succeeded
	Store struct {
		backend Backend
		now     func() time.Time
		plans   map[api.PlanID]*api.Plan
		mu      sync.RWMutex
	}

	// Option configures a Store
	Option func(*Store)
)

var (
	ErrPlanNotFound    = errors.New("plan not found")
	ErrPlanExists      = errors.New("plan exists")
	ErrPlanDecode      = errors.New("plan record could not be decoded")
	ErrInvalidStoreURL = errors.New("invalid plan store URL")
)

// WithClock sets the clock used for plan timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty Store over backend. Call Initialize to load the
// backend's existing records
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
		plans:   map[api.PlanID]*api.Plan{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize replaces the mirror with the backend's records. A record that
// does not decode is skipped and logged
func (s *Store) Initialize(ctx context.Context) error {
	recs, err := s.backend.LoadAll(ctx)
	if err != nil {
		return err
	}

	plans := make(map[api.PlanID]*api.Plan, len(recs))
	for _, rec := range recs {
		p, err := decode(rec.Data)
		if err != nil {
			slog.Error("Skipping plan record",
				log.PlanID(rec.ID),
				log.Error(err))
			continue
		}
		if p.ID != rec.ID {
			slog.Warn("Plan record key does not match plan ID",
				log.PlanID(rec.ID),
				slog.String("record_plan_id", string(p.ID)))
			p.ID = rec.ID
		}
		plans[p.ID] = p
	}

	s.mu.Lock()
	s.plans = plans
	s.mu.Unlock()

	slog.Info("Plans loaded", slog.Int("count", len(plans)))
	return nil
}

// Create stores a new plan, stamping its creation and update times
func (s *Store) Create(ctx context.Context, plan *api.Plan) (*api.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plans[plan.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanExists, plan.ID)
	}

	p := clone(plan)
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.put(ctx, p); err != nil {
		return nil, err
	}
	return clone(p), nil
}

// Update replaces an existing plan, keeping its creation time
func (s *Store) Update(ctx context.Context, plan *api.Plan) (*api.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.plans[plan.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, plan.ID)
	}

	p := clone(plan)
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	if err := s.put(ctx, p); err != nil {
		return nil, err
	}
	return clone(p), nil
}

// Delete removes a plan from the backend and the mirror
func (s *Store) Delete(ctx context.Context, id api.PlanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plans[id]; !ok {
		return fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return err
	}
	delete(s.plans, id)
	return nil
}

// Get returns a copy of one plan
func (s *Store) Get(id api.PlanID) (*api.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return clone(p), nil
}

// List returns copies of every plan, sorted by ID
func (s *Store) List() []*api.Plan {
	return s.filter(func(*api.Plan) bool { return true })
}

// Enabled returns copies of the enabled plans, sorted by ID
func (s *Store) Enabled() []*api.Plan {
	return s.filter(func(p *api.Plan) bool { return p.Enabled })
}

// Close releases the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) put(ctx context.Context, p *api.Plan) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, p.ID, data); err != nil {
		return err
	}
	s.plans[p.ID] = p
	return nil
}

func (s *Store) filter(keep func(*api.Plan) bool) []*api.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := []*api.Plan{}
	for _, id := range slices.Sorted(maps.Keys(s.plans)) {
		if p := s.plans[id]; keep(p) {
			res = append(res, clone(p))
		}
	}
	return res
}

func decode(data []byte) (*api.Plan, error) {
	var p api.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanDecode, err)
	}
	return &p, nil
}

func clone(p *api.Plan) *api.Plan {
	data, err := json.Marshal(p)
	if err != nil {
		res := *p
		return &res
	}
	res, err := decode(data)
	if err != nil {
		res := *p
		return &res
	}
	return res
}
