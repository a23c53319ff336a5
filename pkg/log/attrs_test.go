package log_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/log"
)

type errStub string

func TestPlanID(t *testing.T) {
	attr := log.PlanID(api.PlanID("plan-123"))
	assertAttrEqual(t, attr, "plan_id", "plan-123")
}

func TestExecutionID(t *testing.T) {
	attr := log.ExecutionID(api.ExecutionID("exec-9"))
	assertAttrEqual(t, attr, "execution_id", "exec-9")
}

func TestStepID(t *testing.T) {
	attr := log.StepID(api.StepID("step-abc"))
	assertAttrEqual(t, attr, "step_id", "step-abc")
}

func TestAction(t *testing.T) {
	attr := log.Action(api.ActionSendEmail)
	assertAttrEqual(t, attr, "action", "send_email")
}

func TestStatus(t *testing.T) {
	attr := log.Status(api.ExecutionCompleted)
	assertAttrEqual(t, attr, "status", "completed")
}

func TestError(t *testing.T) {
	attr := log.Error(nil)
	assertAttrEqual(t, attr, "error", "")

	attr = log.Error(errStub("boom"))
	assertAttrEqual(t, attr, "error", "boom")
}

func TestErrorString(t *testing.T) {
	attr := log.ErrorString("badness")
	assertAttrEqual(t, attr, "error", "badness")
}

func (e errStub) Error() string { return string(e) }

func assertAttrEqual(t *testing.T, attr slog.Attr, key, value string) {
	t.Helper()
	assert.Equal(t, key, attr.Key)
	assert.Equal(t, value, attr.Value.String())
}
