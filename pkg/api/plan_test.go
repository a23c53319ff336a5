package api_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/courier/pkg/api"
)

func testPlan() *api.Plan {
	return &api.Plan{
		ID:   "plan-1",
		Name: "Reply to boss",
		Trigger: api.Trigger{
			Type: api.TriggerFromAddress, Address: "boss@example.com",
		},
		Steps: []*api.Step{
			{
				ID:     "reply",
				Action: api.ActionSendEmail,
				Inputs: &api.SendEmailInputs{
					To: []string{"{{trigger.from}}"}, Subject: "ok", Body: "ok",
				},
			},
		},
	}
}

func TestPlanValidate(t *testing.T) {
	assert.NoError(t, testPlan().Validate())

	p := testPlan()
	p.ID = ""
	assert.ErrorIs(t, p.Validate(), api.ErrPlanIDEmpty)

	p = testPlan()
	p.Name = "  "
	assert.ErrorIs(t, p.Validate(), api.ErrPlanNameEmpty)

	p = testPlan()
	p.Steps = nil
	assert.ErrorIs(t, p.Validate(), api.ErrPlanStepsEmpty)
}

func TestPlanStepLookup(t *testing.T) {
	p := testPlan()
	assert.Equal(t, 0, p.StepIndex("reply"))
	assert.Equal(t, -1, p.StepIndex("missing"))
	assert.NotNil(t, p.GetStep("reply"))
	assert.Nil(t, p.GetStep("missing"))
}

func TestTriggerValidate(t *testing.T) {
	tests := []struct {
		name    string
		trigger api.Trigger
		err     error
	}{
		{
			name:    "from address",
			trigger: api.Trigger{Type: api.TriggerFromAddress, Address: "a@b"},
		},
		{
			name:    "from address empty",
			trigger: api.Trigger{Type: api.TriggerFromAddress},
			err:     api.ErrTriggerAddressEmpty,
		},
		{
			name: "subject regex",
			trigger: api.Trigger{
				Type: api.TriggerSubject, Subject: "^inv", Match: api.MatchRegex,
			},
		},
		{
			name:    "subject empty",
			trigger: api.Trigger{Type: api.TriggerSubject, Match: api.MatchExact},
			err:     api.ErrTriggerSubjectEmpty,
		},
		{
			name: "subject bad match",
			trigger: api.Trigger{
				Type: api.TriggerSubject, Subject: "x", Match: "fuzzy",
			},
			err: api.ErrInvalidSubjectMatch,
		},
		{
			name:    "timer interval",
			trigger: api.Trigger{Type: api.TriggerTimer, IntervalMinutes: 15},
		},
		{
			name:    "timer daily",
			trigger: api.Trigger{Type: api.TriggerTimer, DailyAt: "08:30"},
		},
		{
			name:    "timer missing mode",
			trigger: api.Trigger{Type: api.TriggerTimer},
			err:     api.ErrTimerModeRequired,
		},
		{
			name: "timer both modes",
			trigger: api.Trigger{
				Type: api.TriggerTimer, IntervalMinutes: 5, DailyAt: "08:30",
			},
			err: api.ErrTimerModeAmbiguous,
		},
		{
			name:    "timer bad daily",
			trigger: api.Trigger{Type: api.TriggerTimer, DailyAt: "8am"},
			err:     api.ErrInvalidDailyAt,
		},
		{
			name:    "unknown type",
			trigger: api.Trigger{Type: "webhook"},
			err:     api.ErrInvalidTriggerType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.trigger.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestTriggerNextDaily(t *testing.T) {
	trig := api.Trigger{Type: api.TriggerTimer, DailyAt: "09:30"}

	before := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	next, err := trig.NextDaily(before)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC), next)

	after := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	next, err = trig.NextDaily(after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 5, 9, 30, 0, 0, time.UTC), next)

	exact := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	next, err = trig.NextDaily(exact)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 5, 9, 30, 0, 0, time.UTC), next)
}

func TestTriggerDescribe(t *testing.T) {
	assert.Equal(t, "timer every 15m",
		(&api.Trigger{Type: api.TriggerTimer, IntervalMinutes: 15}).Describe(),
	)
	assert.Equal(t, "from_address a@b",
		(&api.Trigger{Type: api.TriggerFromAddress, Address: "a@b"}).Describe(),
	)
}
