package assert

import (
	"errors"
	"testing"
	"time"

	"github.com/kode4food/courier/internal/config"
	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/builder"
)

func validPlan() *api.Plan {
	return builder.NewPlan("Wrapper Plan").
		FromAddress("boss@example.com").
		Then(builder.SendEmail("reply", []string{"{{trigger.from}}"},
			"Re: {{trigger.subject}}", "Got it")).
		MustBuild()
}

func TestNew(t *testing.T) {
	wrapper := New(t)

	if wrapper.T != t {
		t.Error("Wrapper.T should be set to the testing.T instance")
	}
	if wrapper.Assertions == nil {
		t.Error("Wrapper.Assertions should be initialized")
	}
	if wrapper.Require == nil {
		t.Error("Wrapper.Require should be initialized")
	}
}

func TestPlanValid(t *testing.T) {
	res := New(t).PlanValid(validPlan())
	if !res.Valid {
		t.Error("expected a valid result")
	}
}

func TestPlanInvalid(t *testing.T) {
	p := validPlan()
	p.Steps[0].Inputs = &api.SendEmailInputs{
		To:      []string{"{{missing.data}}"},
		Subject: "s",
		Body:    "b",
	}
	res := New(t).PlanInvalid(p, "missing")
	if res.Valid {
		t.Error("expected an invalid result")
	}
}

func TestExecutionAssertions(t *testing.T) {
	ex := &api.Execution{
		Status: api.ExecutionCompleted,
		Results: []*api.StepResult{
			{StepID: "a", Status: api.StepSuccess, Output: "done"},
			{StepID: "b", Status: api.StepSkipped},
		},
	}
	w := New(t)
	w.ExecutionStatus(ex, api.ExecutionCompleted)
	w.StepStatuses(ex, api.StepSuccess, api.StepSkipped)
	w.StepOutput(ex, "a", "done")
}

func TestConfigAssertions(t *testing.T) {
	w := New(t)
	w.ConfigValid(config.NewDefaultConfig())

	cfg := config.NewDefaultConfig()
	cfg.APIPort = 0
	w.ConfigInvalid(cfg, "invalid API port")
}

func TestEventually(t *testing.T) {
	count := 0
	New(t).Eventually(func() bool {
		count++
		return count >= 3
	}, time.Second, "condition should pass")
	if count < 3 {
		t.Errorf("expected at least 3 checks, got %d", count)
	}
}

func TestEventuallyWithError(t *testing.T) {
	count := 0
	New(t).EventuallyWithError(func() error {
		count++
		if count < 2 {
			return errors.New("not yet")
		}
		return nil
	}, time.Second, "condition should pass")
	if count < 2 {
		t.Errorf("expected at least 2 checks, got %d", count)
	}
}
