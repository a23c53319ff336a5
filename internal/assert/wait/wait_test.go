package wait_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/courier/internal/assert/wait"
	"github.com/kode4food/courier/internal/execlog"
	"github.com/kode4food/courier/pkg/api"
)

func newLogger(t *testing.T) *execlog.Logger {
	t.Helper()
	logs := execlog.New(100,
		execlog.WithSlog(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	t.Cleanup(logs.Close)
	return logs
}

func TestMessagesFilter(t *testing.T) {
	filter := wait.Messages("a", "b")
	assert.True(t, filter(&api.LogEntry{Message: "a"}))
	assert.False(t, filter(&api.LogEntry{Message: "c"}))
	assert.False(t, wait.Messages()(&api.LogEntry{Message: "a"}))
}

func TestIDFilters(t *testing.T) {
	e := &api.LogEntry{PlanID: "p", ExecutionID: "x", StepID: "s"}
	assert.True(t, wait.PlanIDs()(e))
	assert.True(t, wait.PlanIDs("p", "q")(e))
	assert.False(t, wait.PlanIDs("q")(e))
	assert.True(t, wait.ExecutionIDs("x")(e))
	assert.False(t, wait.ExecutionIDs("y")(e))
	assert.True(t, wait.StepIDs("s")(e))
	assert.False(t, wait.StepIDs("t")(e))
}

func TestCompositeFilters(t *testing.T) {
	done := &api.LogEntry{
		Message: wait.MsgExecutionFailed,
		PlanID:  "p",
		Level:   api.LogError,
	}
	assert.True(t, wait.ExecutionFinished("p")(done))
	assert.False(t, wait.ExecutionFinished("other")(done))
	assert.True(t, wait.And(wait.Level(api.LogError), wait.PlanIDs("p"))(done))
	assert.False(t, wait.Level(api.LogInfo)(done))

	step := &api.LogEntry{Message: wait.MsgStepSkipped, StepID: "s"}
	assert.True(t, wait.StepFinished("s")(step))
	assert.False(t, wait.StepFinished()(done))
}

func TestForEntries(t *testing.T) {
	logs := newLogger(t)
	sub := logs.Subscribe()
	defer sub.Close()

	go func() {
		logs.Info("noise", execlog.Fields{PlanID: "other"})
		logs.Info(wait.MsgExecutionCompleted, execlog.Fields{PlanID: "p1"})
		logs.Info(wait.MsgExecutionFailed, execlog.Fields{PlanID: "p2"})
	}()

	got := wait.On(t, sub).
		WithTimeout(2*time.Second).
		ForEntries(2, wait.ExecutionFinished("p1", "p2"))
	assert.Len(t, got, 2)
	assert.Equal(t, api.PlanID("p1"), got[0].PlanID)
	assert.Equal(t, api.PlanID("p2"), got[1].PlanID)
}

func TestForEntry(t *testing.T) {
	logs := newLogger(t)
	sub := logs.Subscribe()
	defer sub.Close()

	go logs.Warn("Unresolved reference", execlog.Fields{StepID: "s1"})

	e := wait.On(t, sub).ForEntry(wait.Level(api.LogWarn))
	assert.Equal(t, api.StepID("s1"), e.StepID)
}
