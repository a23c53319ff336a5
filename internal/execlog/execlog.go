package execlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/log"
)

type (
	// Logger is a bounded, append-only record of execution events. Once the
	// capacity is reached the oldest entries are dropped. Every entry is
	// mirrored to slog and published to live subscribers
	Logger struct {
		topic  topic.Topic[*api.LogEntry]
		prod   topic.Producer[*api.LogEntry]
		slog   *slog.Logger
		now    func() time.Time
		ring   []*api.LogEntry
		head   int
		size   int
		seq    int64
		subs   atomic.Int32
		closed bool
		mu     sync.RWMutex
		pubMu  sync.RWMutex
	}

	// Fields tags an entry with the plan, execution, and step it concerns
	Fields struct {
		Data        map[string]any
		PlanID      api.PlanID
		ExecutionID api.ExecutionID
		StepID      api.StepID
	}

	// Option configures a Logger
	Option func(*Logger)

	// Subscription delivers entries appended after it was created
	Subscription struct {
		cons   topic.Consumer[*api.LogEntry]
		logger *Logger
		once   sync.Once
	}
)

// DefaultCapacity is used when a non-positive capacity is requested
const DefaultCapacity = 10000

var slogLevels = map[api.LogLevel]slog.Level{
	api.LogDebug: slog.LevelDebug,
	api.LogInfo:  slog.LevelInfo,
	api.LogWarn:  slog.LevelWarn,
	api.LogError: slog.LevelError,
}

// WithSlog mirrors entries to the given logger instead of slog.Default
func WithSlog(l *slog.Logger) Option {
	return func(lg *Logger) {
		lg.slog = l
	}
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(lg *Logger) {
		lg.now = now
	}
}

// New creates a Logger holding at most capacity entries
func New(capacity int, opts ...Option) *Logger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	t := caravan.NewTopic[*api.LogEntry]()
	res := &Logger{
		topic: t,
		prod:  t.NewProducer(),
		now:   time.Now,
		ring:  make([]*api.LogEntry, capacity),
	}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

func (l *Logger) Debug(msg string, f Fields) *api.LogEntry {
	return l.Append(api.LogDebug, msg, f)
}

func (l *Logger) Info(msg string, f Fields) *api.LogEntry {
	return l.Append(api.LogInfo, msg, f)
}

func (l *Logger) Warn(msg string, f Fields) *api.LogEntry {
	return l.Append(api.LogWarn, msg, f)
}

func (l *Logger) Error(msg string, f Fields) *api.LogEntry {
	return l.Append(api.LogError, msg, f)
}

// Append records an entry at the given level and returns it
func (l *Logger) Append(
	level api.LogLevel, msg string, f Fields,
) *api.LogEntry {
	l.mu.Lock()
	l.seq++
	entry := &api.LogEntry{
		Seq:         l.seq,
		Timestamp:   l.now(),
		Level:       level,
		Message:     msg,
		PlanID:      f.PlanID,
		ExecutionID: f.ExecutionID,
		StepID:      f.StepID,
		Data:        f.Data,
	}
	l.ring[(l.head+l.size)%len(l.ring)] = entry
	if l.size < len(l.ring) {
		l.size++
	} else {
		l.head = (l.head + 1) % len(l.ring)
	}
	l.mu.Unlock()

	l.mirror(entry)
	l.publish(entry)
	return entry
}

// All returns every retained entry in sequence order
func (l *Logger) All() []*api.LogEntry {
	return l.filter(func(*api.LogEntry) bool { return true })
}

// ForExecution returns the retained entries of one execution
func (l *Logger) ForExecution(id api.ExecutionID) []*api.LogEntry {
	return l.filter(func(e *api.LogEntry) bool {
		return e.ExecutionID == id
	})
}

// ForPlan returns the retained entries of every execution of a plan
func (l *Logger) ForPlan(id api.PlanID) []*api.LogEntry {
	return l.filter(func(e *api.LogEntry) bool {
		return e.PlanID == id
	})
}

// Len returns the number of retained entries
func (l *Logger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Export renders every retained entry as a JSON array
func (l *Logger) Export() ([]byte, error) {
	return json.MarshalIndent(l.All(), "", "  ")
}

// Subscribe returns a Subscription receiving entries appended from now on
func (l *Logger) Subscribe() *Subscription {
	l.subs.Add(1)
	return &Subscription{
		cons:   l.topic.NewConsumer(),
		logger: l,
	}
}

// Close stops publishing to subscribers. Entries are still recorded
func (l *Logger) Close() {
	l.pubMu.Lock()
	defer l.pubMu.Unlock()
	if !l.closed {
		l.closed = true
		l.prod.Close()
	}
}

func (l *Logger) publish(e *api.LogEntry) {
	if l.subs.Load() == 0 {
		return
	}
	l.pubMu.RLock()
	defer l.pubMu.RUnlock()
	if !l.closed {
		message.Send(l.prod, e)
	}
}

func (l *Logger) filter(keep func(*api.LogEntry) bool) []*api.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res := []*api.LogEntry{}
	for i := range l.size {
		e := l.ring[(l.head+i)%len(l.ring)]
		if keep(e) {
			res = append(res, e)
		}
	}
	return res
}

func (l *Logger) mirror(e *api.LogEntry) {
	logger := l.slog
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []slog.Attr{slog.Int64("seq", e.Seq)}
	if e.PlanID != "" {
		attrs = append(attrs, log.PlanID(e.PlanID))
	}
	if e.ExecutionID != "" {
		attrs = append(attrs, log.ExecutionID(e.ExecutionID))
	}
	if e.StepID != "" {
		attrs = append(attrs, log.StepID(e.StepID))
	}
	if len(e.Data) != 0 {
		attrs = append(attrs, slog.Any("data", e.Data))
	}
	logger.LogAttrs(context.Background(), slogLevels[e.Level], e.Message,
		attrs...,
	)
}

// Receive returns the channel on which entries are delivered
func (s *Subscription) Receive() <-chan *api.LogEntry {
	return s.cons.Receive()
}

// Close releases the subscription
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.logger.subs.Add(-1)
		s.cons.Close()
	})
}
