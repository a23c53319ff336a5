package builder

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/kode4food/courier/pkg/api"
)

// Plan builds a plan from a trigger and an ordered list of steps
type Plan struct {
	id          api.PlanID
	name        string
	description string
	trigger     api.Trigger
	steps       []*Step
	disabled    bool
}

var (
	camelCaseRegex = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	delimiterRegex = regexp.MustCompile(`[\s_]+`)
)

// NewPlan creates a plan builder. The ID is derived from the name
func NewPlan(name string) *Plan {
	return &Plan{
		id:   api.SanitizeID(api.PlanID(toKebabCase(name))),
		name: name,
	}
}

func (p *Plan) WithID(id api.PlanID) *Plan {
	res := *p
	res.id = id
	return &res
}

func (p *Plan) WithDescription(desc string) *Plan {
	res := *p
	res.description = desc
	return &res
}

// FromAddress triggers the plan on mail from addr
func (p *Plan) FromAddress(addr string) *Plan {
	return p.withTrigger(api.Trigger{
		Type:    api.TriggerFromAddress,
		Address: addr,
	})
}

// SubjectIs triggers the plan on mail whose subject equals subject
func (p *Plan) SubjectIs(subject string) *Plan {
	return p.subject(api.MatchExact, subject)
}

// SubjectContains triggers the plan on mail whose subject contains subject
func (p *Plan) SubjectContains(subject string) *Plan {
	return p.subject(api.MatchContains, subject)
}

// SubjectMatches triggers the plan on mail whose subject matches pattern
func (p *Plan) SubjectMatches(pattern string) *Plan {
	return p.subject(api.MatchRegex, pattern)
}

// Every triggers the plan on a fixed interval, rounded down to minutes
func (p *Plan) Every(interval time.Duration) *Plan {
	return p.withTrigger(api.Trigger{
		Type:            api.TriggerTimer,
		IntervalMinutes: int(interval / time.Minute),
	})
}

// DailyAt triggers the plan once a day at the HH:MM wall-clock time
func (p *Plan) DailyAt(at string) *Plan {
	return p.withTrigger(api.Trigger{
		Type:    api.TriggerTimer,
		DailyAt: at,
	})
}

// Then appends steps in execution order
func (p *Plan) Then(steps ...*Step) *Plan {
	res := *p
	res.steps = append(slices.Clone(p.steps), steps...)
	return &res
}

// Disabled builds the plan without registering its trigger
func (p *Plan) Disabled() *Plan {
	res := *p
	res.disabled = true
	return &res
}

// Build returns the configured plan after checking its own structure.
// Cross-step checks are left to the engine's validator
func (p *Plan) Build() (*api.Plan, error) {
	plan := &api.Plan{
		ID:          p.id,
		Name:        p.name,
		Description: p.description,
		Trigger:     p.trigger,
		Enabled:     !p.disabled,
		Steps:       make([]*api.Step, 0, len(p.steps)),
	}
	for _, s := range p.steps {
		step, err := s.Build()
		if err != nil {
			return nil, err
		}
		plan.Steps = append(plan.Steps, step)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// MustBuild is Build for plans known to be well-formed, such as fixtures
func (p *Plan) MustBuild() *api.Plan {
	plan, err := p.Build()
	if err != nil {
		panic(err)
	}
	return plan
}

func (p *Plan) subject(match api.SubjectMatch, subject string) *Plan {
	return p.withTrigger(api.Trigger{
		Type:    api.TriggerSubject,
		Match:   match,
		Subject: subject,
	})
}

func (p *Plan) withTrigger(t api.Trigger) *Plan {
	res := *p
	res.trigger = t
	return &res
}

func toKebabCase(s string) string {
	s = camelCaseRegex.ReplaceAllString(s, "$1-$2")
	s = delimiterRegex.ReplaceAllString(s, "-")
	return strings.ToLower(s)
}
