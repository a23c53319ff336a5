package assert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/courier/internal/config"
	"github.com/kode4food/courier/internal/validator"
	"github.com/kode4food/courier/pkg/api"
)

// Wrapper wraps testify assertions with courier-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 10 * time.Millisecond

// New creates a new test assertion wrapper with both assert and require from
// testify plus courier-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    assert.New(t),
	}
}

// PlanValid asserts that a plan passes validation and returns the result so
// warnings can be inspected
func (w *Wrapper) PlanValid(p *api.Plan) *api.ValidationResult {
	w.Helper()
	res := validator.Validate(p)
	w.True(res.Valid, "plan should be valid: %s", res.Error())
	w.Empty(res.Errors)
	return res
}

// PlanInvalid asserts that a plan fails validation with an error whose
// message contains the expected text
func (w *Wrapper) PlanInvalid(
	p *api.Plan, expectedErrorContains string,
) *api.ValidationResult {
	w.Helper()
	res := validator.Validate(p)
	w.False(res.Valid, "plan should be invalid")
	if expectedErrorContains != "" {
		w.Contains(res.Error(), expectedErrorContains)
	}
	return res
}

// ExecutionStatus asserts the final status of an execution
func (w *Wrapper) ExecutionStatus(
	ex *api.Execution, expected api.ExecutionStatus,
) {
	w.Helper()
	w.Require.NotNil(ex)
	w.Equal(expected, ex.Status, "execution error: %s", ex.Error)
}

// StepStatuses asserts the recorded status of each step in plan order
func (w *Wrapper) StepStatuses(
	ex *api.Execution, expected ...api.StepStatus,
) {
	w.Helper()
	got := make([]api.StepStatus, 0, len(ex.Results))
	for _, r := range ex.Results {
		got = append(got, r.Status)
	}
	w.Equal(expected, got)
}

// StepOutput asserts the output recorded for a step
func (w *Wrapper) StepOutput(ex *api.Execution, id api.StepID, expected any) {
	w.Helper()
	res := ex.Result(id)
	if w.NotNil(res, "step %s has no result", id) {
		w.Equal(expected, res.Output)
	}
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.APIPort > 0 && cfg.APIPort <= config.MaxTCPPort)
	w.True(cfg.ShutdownTimeout > 0)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	if w.Error(err) && contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}

// EventuallyWithError runs a condition that returns an error until it
// succeeds or times out
func (w *Wrapper) EventuallyWithError(
	condition func() error, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		err := condition()
		if err == nil {
			return
		}
		lastErr = err
		time.Sleep(DefaultRetryInterval)
	}
	if lastErr != nil {
		w.Fail(msg+": last error: "+lastErr.Error(), args...)
		return
	}
	w.Fail(msg, args...)
}
