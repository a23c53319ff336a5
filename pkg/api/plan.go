package api

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	// Plan is a user-authored automation: one trigger and ordered steps
	Plan struct {
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
		Trigger     Trigger   `json:"trigger"`
		ID          PlanID    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description,omitempty"`
		Steps       []*Step   `json:"steps"`
		Enabled     bool      `json:"enabled"`
	}

	// TriggerType tags which trigger variant is active
	TriggerType string

	// SubjectMatch selects how a subject trigger compares subjects
	SubjectMatch string

	// Trigger is a tagged variant; Type determines which fields apply
	Trigger struct {
		Type            TriggerType  `json:"type"`
		Address         string       `json:"address,omitempty"`
		Subject         string       `json:"subject,omitempty"`
		Match           SubjectMatch `json:"match,omitempty"`
		IntervalMinutes int          `json:"interval_minutes,omitempty"`
		DailyAt         string       `json:"daily_at,omitempty"`
	}
)

const (
	TriggerFromAddress TriggerType = "from_address"
	TriggerSubject     TriggerType = "subject"
	TriggerTimer       TriggerType = "timer"

	MatchExact    SubjectMatch = "exact"
	MatchContains SubjectMatch = "contains"
	MatchRegex    SubjectMatch = "regex"
)

// DailyLayout is the wall-clock format accepted by daily timer triggers
const DailyLayout = "15:04"

var (
	ErrPlanIDEmpty         = errors.New("plan ID empty")
	ErrPlanNameEmpty       = errors.New("plan name empty")
	ErrPlanStepsEmpty      = errors.New("plan requires at least one step")
	ErrInvalidTriggerType  = errors.New("invalid trigger type")
	ErrTriggerAddressEmpty = errors.New("trigger address empty")
	ErrTriggerSubjectEmpty = errors.New("trigger subject empty")
	ErrInvalidSubjectMatch = errors.New("invalid subject match")
	ErrTimerModeRequired   = errors.New(
		"timer requires interval_minutes or daily_at",
	)
	ErrTimerModeAmbiguous = errors.New(
		"timer interval_minutes and daily_at are exclusive",
	)
	ErrInvalidDailyAt = errors.New("daily_at must be HH:MM")
)

// Validate checks the plan's own structure without cross-step analysis
func (p *Plan) Validate() error {
	if p.ID == "" {
		return ErrPlanIDEmpty
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrPlanNameEmpty
	}
	if len(p.Steps) == 0 {
		return ErrPlanStepsEmpty
	}
	return p.Trigger.Validate()
}

// GetStep returns the step with the given ID, or nil
func (p *Plan) GetStep(id StepID) *Step {
	if idx := p.StepIndex(id); idx >= 0 {
		return p.Steps[idx]
	}
	return nil
}

// StepIndex returns the position of the step with the given ID, or -1
func (p *Plan) StepIndex(id StepID) int {
	for i, s := range p.Steps {
		if s != nil && s.ID == id {
			return i
		}
	}
	return -1
}

// Validate checks that the fields required by the trigger's variant are
// present and well-formed. Regex syntax is checked by the validator
func (t *Trigger) Validate() error {
	switch t.Type {
	case TriggerFromAddress:
		if strings.TrimSpace(t.Address) == "" {
			return ErrTriggerAddressEmpty
		}
	case TriggerSubject:
		if t.Subject == "" {
			return ErrTriggerSubjectEmpty
		}
		switch t.Match {
		case MatchExact, MatchContains, MatchRegex:
		default:
			return fmt.Errorf("%w: %q", ErrInvalidSubjectMatch, t.Match)
		}
	case TriggerTimer:
		hasInterval := t.IntervalMinutes > 0
		hasDaily := t.DailyAt != ""
		switch {
		case hasInterval && hasDaily:
			return ErrTimerModeAmbiguous
		case !hasInterval && !hasDaily:
			return ErrTimerModeRequired
		case hasDaily:
			if _, err := time.Parse(DailyLayout, t.DailyAt); err != nil {
				return fmt.Errorf("%w: %q", ErrInvalidDailyAt, t.DailyAt)
			}
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTriggerType, t.Type)
	}
	return nil
}

// Interval returns the period of an interval timer trigger
func (t *Trigger) Interval() time.Duration {
	return time.Duration(t.IntervalMinutes) * time.Minute
}

// NextDaily returns the next occurrence of a daily timer trigger strictly
// after now: today if the wall-clock time has not yet passed, else tomorrow
func (t *Trigger) NextDaily(now time.Time) (time.Time, error) {
	at, err := time.Parse(DailyLayout, t.DailyAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDailyAt, t.DailyAt)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(),
		at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// Describe renders the trigger for execution records and logs
func (t *Trigger) Describe() string {
	switch t.Type {
	case TriggerFromAddress:
		return fmt.Sprintf("from_address %s", t.Address)
	case TriggerSubject:
		return fmt.Sprintf("subject %s %q", t.Match, t.Subject)
	case TriggerTimer:
		if t.DailyAt != "" {
			return fmt.Sprintf("timer daily at %s", t.DailyAt)
		}
		return fmt.Sprintf("timer every %dm", t.IntervalMinutes)
	default:
		return string(t.Type)
	}
}
