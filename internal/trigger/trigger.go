package trigger

import (
	"context"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kode4food/courier/internal/engine/scheduler"
	"github.com/kode4food/courier/internal/metrics"
	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/log"
	"github.com/kode4food/courier/pkg/util"
)

type (
	// Runner executes one plan to completion
	Runner interface {
		Execute(
			ctx context.Context, plan *api.Plan, trigger string, data any,
		) *api.Execution
	}

	// Manager owns the registry of enabled plans. It matches incoming mail
	// against their triggers, arms timers for timer triggers, and starts an
	// independent execution for every match
	Manager struct {
		runner   Runner
		sched    *scheduler.Scheduler
		metrics  *metrics.Metrics
		regexes  *util.LRUCache[*regexp.Regexp]
		plans    map[api.PlanID]*api.Plan
		timed    map[api.PlanID]bool
		runCtx   context.Context
		inFlight sync.WaitGroup
		started  sync.Once
		mu       sync.RWMutex
	}

	// Dispatch describes the executions started for one event
	Dispatch struct {
		Matched    []api.PlanID
		executions []*api.Execution
		wg         sync.WaitGroup
	}

	// Option configures a Manager
	Option func(*Manager)
)

// DefaultRegexCacheSize bounds the compiled subject pattern cache
const DefaultRegexCacheSize = 256

// WithMetrics records dispatch and registration metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// WithRegexCacheSize bounds the number of compiled subject patterns kept
func WithRegexCacheSize(n int) Option {
	return func(mgr *Manager) {
		mgr.regexes = util.NewLRUCache[*regexp.Regexp](n)
	}
}

// NewManager creates a Manager that hands matches to runner and arms timers
// on sched. The scheduler is run by Start
func NewManager(
	runner Runner, sched *scheduler.Scheduler, opts ...Option,
) *Manager {
	m := &Manager{
		runner:  runner,
		sched:   sched,
		regexes: util.NewLRUCache[*regexp.Regexp](DefaultRegexCacheSize),
		plans:   map[api.PlanID]*api.Plan{},
		timed:   map[api.PlanID]bool{},
		runCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start runs the timer scheduler until ctx is cancelled. Executions are
// started with a context detached from ctx's cancellation. Only the first
// call has any effect
func (m *Manager) Start(ctx context.Context) {
	m.started.Do(func() {
		m.mu.Lock()
		m.runCtx = context.WithoutCancel(ctx)
		m.mu.Unlock()
		go m.sched.Run(ctx)
	})
}

// Register adds or replaces a plan. A disabled plan is removed instead.
// Timer triggers are armed immediately
func (m *Manager) Register(plan *api.Plan) {
	if plan == nil {
		return
	}
	if !plan.Enabled {
		m.Unregister(plan.ID)
		return
	}

	p := clonePlan(plan)
	isTimer := p.Trigger.Type == api.TriggerTimer
	m.mu.Lock()
	m.plans[p.ID] = p
	wasTimed := m.timed[p.ID]
	if isTimer {
		m.timed[p.ID] = true
	} else {
		delete(m.timed, p.ID)
	}
	n := len(m.plans)
	m.mu.Unlock()
	m.metrics.SetRegistered(n)

	switch {
	case isTimer:
		m.arm(p, m.sched.Now())
	case wasTimed:
		m.sched.Cancel(context.Background(), p.ID)
	}

	slog.Info("Plan registered",
		log.PlanID(p.ID),
		slog.String("trigger", p.Trigger.Describe()))
}

// Unregister removes a plan and cancels its timer. Unknown IDs are ignored
func (m *Manager) Unregister(id api.PlanID) {
	m.mu.Lock()
	_, ok := m.plans[id]
	wasTimed := m.timed[id]
	delete(m.plans, id)
	delete(m.timed, id)
	n := len(m.plans)
	m.mu.Unlock()

	if wasTimed {
		m.sched.Cancel(context.Background(), id)
	}
	if ok {
		m.metrics.SetRegistered(n)
		slog.Info("Plan unregistered", log.PlanID(id))
	}
}

// Registered returns the IDs of registered plans in sorted order
func (m *Manager) Registered() []api.PlanID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.plans))
}

// HandleIncomingEmail starts one execution per registered plan whose
// trigger matches the email. It does not wait for them
func (m *Manager) HandleIncomingEmail(
	_ context.Context, email *api.Email,
) *Dispatch {
	matched := m.match(email)
	d := &Dispatch{
		Matched:    make([]api.PlanID, len(matched)),
		executions: make([]*api.Execution, len(matched)),
	}
	if len(matched) == 0 {
		return d
	}

	data := email.TriggerData()
	desc := "email " + email.ID
	for i, p := range matched {
		d.Matched[i] = p.ID
		m.start(d, i, p, desc, data)
	}
	slog.Info("Email dispatched",
		slog.String("email_id", email.ID),
		slog.Int("matched", len(matched)))
	return d
}

// Shutdown cancels every timer and clears the registry. It is safe to call
// more than once
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.plans = map[api.PlanID]*api.Plan{}
	m.timed = map[api.PlanID]bool{}
	m.mu.Unlock()
	m.metrics.SetRegistered(0)
	m.sched.CancelAll(context.Background())
}

// Drain waits for in-flight executions to finish or for ctx to end
func (m *Manager) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every execution of the dispatch has finished and
// returns them in match order
func (d *Dispatch) Wait() []*api.Execution {
	d.wg.Wait()
	return d.executions
}

func (m *Manager) match(email *api.Email) []*api.Plan {
	m.mu.RLock()
	snapshot := make([]*api.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		snapshot = append(snapshot, p)
	}
	m.mu.RUnlock()

	slices.SortFunc(snapshot, func(a, b *api.Plan) int {
		return strings.Compare(string(a.ID), string(b.ID))
	})

	var res []*api.Plan
	for _, p := range snapshot {
		if m.Matches(&p.Trigger, email) {
			res = append(res, p)
		}
	}
	return res
}

// Matches reports whether an email satisfies a trigger. Comparisons are
// case-insensitive, and a pattern that does not compile never matches
func (m *Manager) Matches(t *api.Trigger, email *api.Email) bool {
	switch t.Type {
	case api.TriggerFromAddress:
		return strings.EqualFold(
			strings.TrimSpace(t.Address), email.SenderAddress(),
		)
	case api.TriggerSubject:
		switch t.Match {
		case api.MatchExact:
			return strings.EqualFold(
				strings.TrimSpace(t.Subject), strings.TrimSpace(email.Subject),
			)
		case api.MatchContains:
			return strings.Contains(
				strings.ToLower(email.Subject), strings.ToLower(t.Subject),
			)
		case api.MatchRegex:
			re, err := m.regexes.Get(t.Subject,
				func() (*regexp.Regexp, error) {
					return regexp.Compile("(?i)" + t.Subject)
				},
			)
			return err == nil && re.MatchString(email.Subject)
		}
	}
	return false
}

func (m *Manager) start(
	d *Dispatch, idx int, p *api.Plan, desc string, data any,
) {
	m.mu.RLock()
	ctx := m.runCtx
	m.mu.RUnlock()

	m.metrics.Dispatched(p.Trigger.Type)
	d.wg.Add(1)
	m.inFlight.Add(1)
	go func() {
		defer m.inFlight.Done()
		defer d.wg.Done()
		d.executions[idx] = m.runner.Execute(ctx, p, desc, data)
	}()
}

func (m *Manager) arm(p *api.Plan, now time.Time) {
	next, err := nextFire(&p.Trigger, now)
	if err != nil {
		slog.Error("Timer not armed",
			log.PlanID(p.ID),
			log.Error(err))
		return
	}
	id := p.ID
	m.sched.Schedule(context.Background(), id, next,
		func(firedAt time.Time) error {
			m.fire(id, firedAt)
			return nil
		},
	)
}

// fire runs whatever is registered under id when the task comes due, which
// may be a newer registration than the one that armed the task
func (m *Manager) fire(id api.PlanID, firedAt time.Time) {
	m.mu.RLock()
	p := m.plans[id]
	m.mu.RUnlock()
	if p == nil || p.Trigger.Type != api.TriggerTimer {
		return
	}

	d := &Dispatch{
		Matched:    []api.PlanID{p.ID},
		executions: make([]*api.Execution, 1),
	}
	m.start(d, 0, p, "timer", map[string]any{
		"fired_at": firedAt.Format(time.RFC3339),
		"trigger":  string(api.TriggerTimer),
	})

	// Schedule must not block the scheduler goroutine running this task
	go m.rearm(p, firedAt)
}

// rearm schedules p's next fire unless a newer registration has already
// armed its own task
func (m *Manager) rearm(p *api.Plan, firedAt time.Time) {
	m.mu.RLock()
	current := m.plans[p.ID]
	m.mu.RUnlock()
	if current != p {
		return
	}
	m.arm(p, firedAt)
}

func nextFire(t *api.Trigger, now time.Time) (time.Time, error) {
	if t.DailyAt != "" {
		return t.NextDaily(now)
	}
	if t.Interval() <= 0 {
		return time.Time{}, api.ErrTimerModeRequired
	}
	return now.Add(t.Interval()), nil
}

func clonePlan(p *api.Plan) *api.Plan {
	res := *p
	res.Steps = slices.Clone(p.Steps)
	return &res
}
