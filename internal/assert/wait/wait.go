package wait

import (
	"testing"
	"time"

	"github.com/kode4food/courier/internal/execlog"
	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/util"
)

type (
	Wait struct {
		t       *testing.T
		sub     *execlog.Subscription
		timeout time.Duration
	}

	Predicate[T any] func(T) bool

	EntryFilter Predicate[*api.LogEntry]
)

const (
	DefaultTimeout = time.Second * 5

	MsgExecutionCompleted = "Execution completed"
	MsgExecutionFailed    = "Execution failed"
	MsgStepSucceeded      = "Step succeeded"
	MsgStepFailed         = "Step failed"
	MsgStepSkipped        = "Step skipped"
)

func On(t *testing.T, sub *execlog.Subscription) *Wait {
	return &Wait{
		t:       t,
		sub:     sub,
		timeout: DefaultTimeout,
	}
}

func (w *Wait) WithTimeout(timeout time.Duration) *Wait {
	res := *w
	res.timeout = timeout
	return &res
}

// ForEntries waits for matching entries from the subscription and returns
// them in arrival order
func (w *Wait) ForEntries(count int, filter EntryFilter) []*api.LogEntry {
	w.t.Helper()

	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()

	res := make([]*api.LogEntry, 0, count)
	for len(res) < count {
		select {
		case e, ok := <-w.sub.Receive():
			if !ok {
				w.t.Fatalf(
					"log subscription closed before receiving %d entries",
					count,
				)
			}
			if filter(e) {
				res = append(res, e)
			}
		case <-deadline.C:
			w.t.Fatalf("timeout waiting for %d entries", count)
		}
	}
	return res
}

// ForEntry waits for a single matching entry
func (w *Wait) ForEntry(filter EntryFilter) *api.LogEntry {
	w.t.Helper()
	return w.ForEntries(1, filter)[0]
}

// And composes entry filters and returns true when all match
func And(filters ...EntryFilter) EntryFilter {
	return func(e *api.LogEntry) bool {
		for _, filter := range filters {
			if !filter(e) {
				return false
			}
		}
		return true
	}
}

// Messages creates a filter for the given entry messages
func Messages(msgs ...string) EntryFilter {
	lookup := util.SetOf(msgs...)
	return func(e *api.LogEntry) bool {
		return lookup.Contains(e.Message)
	}
}

// Level creates a filter for entries at the given level
func Level(lvl api.LogLevel) EntryFilter {
	return func(e *api.LogEntry) bool {
		return e.Level == lvl
	}
}

// ExecutionFinished matches completed or failed executions of the provided
// plans, or of any plan if none are provided
func ExecutionFinished(ids ...api.PlanID) EntryFilter {
	return And(
		Messages(MsgExecutionCompleted, MsgExecutionFailed),
		PlanIDs(ids...),
	)
}

// StepFinished matches the terminal entry recorded for the provided steps
func StepFinished(ids ...api.StepID) EntryFilter {
	return And(
		Messages(MsgStepSucceeded, MsgStepFailed, MsgStepSkipped),
		StepIDs(ids...),
	)
}

// PlanIDs matches entries for the provided plans. Empty matches all
func PlanIDs(ids ...api.PlanID) EntryFilter {
	return matchField(func(e *api.LogEntry) api.PlanID {
		return e.PlanID
	}, ids)
}

// ExecutionIDs matches entries for the provided executions. Empty matches
// all
func ExecutionIDs(ids ...api.ExecutionID) EntryFilter {
	return matchField(func(e *api.LogEntry) api.ExecutionID {
		return e.ExecutionID
	}, ids)
}

// StepIDs matches entries for the provided steps. Empty matches all
func StepIDs(ids ...api.StepID) EntryFilter {
	return matchField(func(e *api.LogEntry) api.StepID {
		return e.StepID
	}, ids)
}

func matchField[T comparable](
	get func(*api.LogEntry) T, ids []T,
) EntryFilter {
	if len(ids) == 0 {
		return func(*api.LogEntry) bool { return true }
	}
	lookup := util.SetOf(ids...)
	return func(e *api.LogEntry) bool {
		return lookup.Contains(get(e))
	}
}
