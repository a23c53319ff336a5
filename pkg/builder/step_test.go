package builder_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/builder"
)

func TestSendEmailStep(t *testing.T) {
	step, err := builder.SendEmail(
		"reply", []string{"{{trigger.from}}"}, "Re: {{trigger.subject}}", "ok",
	).Build()
	require.NoError(t, err)

	assert.Equal(t, api.StepID("reply"), step.ID)
	assert.Equal(t, api.ActionSendEmail, step.Action)
	in, ok := step.Inputs.(*api.SendEmailInputs)
	require.True(t, ok)
	assert.Equal(t, []string{"{{trigger.from}}"}, in.To)
	assert.Nil(t, step.Condition)
	assert.Nil(t, step.ErrorPolicy)
}

func TestStepImmutable(t *testing.T) {
	base := builder.AddLabels("tag", "{{trigger.email_id}}", "urgent")
	guarded := base.When("analyze.data", api.OperatorContains, "urgent")

	plain, err := base.Build()
	require.NoError(t, err)
	assert.Nil(t, plain.Condition)

	cond, err := guarded.Build()
	require.NoError(t, err)
	require.NotNil(t, cond.Condition)
	assert.Equal(t, api.ConditionPreviousOutput, cond.Condition.Type)
	assert.Equal(t, "analyze.data", cond.Condition.Field)
	assert.Equal(t, "urgent", cond.Condition.Value)
}

func TestStepPolicies(t *testing.T) {
	step, err := builder.RunAnalysis("analyze", "Summarize", "body").
		Retry(3, 250*time.Millisecond).
		NotifyOnError("ops@example.com").
		Build()
	require.NoError(t, err)

	p := step.ErrorPolicy
	require.NotNil(t, p)
	assert.Equal(t, api.PolicyRetry, p.Type)
	assert.Equal(t, 3, p.RetryCount)
	assert.Equal(t, int64(250), p.RetryDelayMs)
	assert.Equal(t, "ops@example.com", p.NotifyEmail)

	step, err = builder.RunAnalysis("analyze", "Summarize", "body").
		FallbackTo("backup").
		Build()
	require.NoError(t, err)
	assert.Equal(t, api.PolicyFallback, step.ErrorPolicy.Type)
	assert.Equal(t, api.StepID("backup"), step.ErrorPolicy.FallbackStepID)

	step, err = builder.RunAnalysis("analyze", "Summarize", "body").
		ContinueOnError().
		Build()
	require.NoError(t, err)
	assert.Equal(t, api.PolicyContinue, step.ErrorPolicy.Type)
}

func TestStepNever(t *testing.T) {
	step, err := builder.ListenForSenders(
		"listen", time.Hour, "boss@example.com",
	).Never().Build()
	require.NoError(t, err)
	assert.Equal(t, api.ConditionNever, step.Condition.Type)
	in := step.Inputs.(*api.ListenForSendersInputs)
	assert.Equal(t, 60, in.DurationMinutes)
}

func TestStepBuildRejectsInvalid(t *testing.T) {
	_, err := builder.SendEmail("", []string{"a@example.com"}, "s", "b").
		Build()
	assert.ErrorIs(t, err, api.ErrStepIDEmpty)

	_, err = builder.AddLabels("tag", "{{trigger.email_id}}").
		WithAction(api.ActionSendEmail).
		Build()
	assert.Error(t, err)
}
