package api

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type (
	// PlanID uniquely identifies a stored plan
	PlanID string

	// StepID identifies a step within a plan
	StepID string

	// ExecutionID uniquely identifies one run of a plan
	ExecutionID string
)

// TriggerRef is the reserved first reference segment that addresses the
// trigger payload rather than a step output
const TriggerRef = "trigger"

// InvalidIDChars matches characters not permitted in plan and step IDs. Valid
// characters are: letters, digits, underscore, dot, hyphen, plus, space
var InvalidIDChars = regexp.MustCompile(`[^a-zA-Z0-9_.\-+ ]`)

// SanitizeID lowercases an ID, removes invalid characters, replaces spaces
// with hyphens, and trims leading and trailing hyphens
func SanitizeID[T ~string](id T) T {
	lower := strings.ToLower(string(id))
	sanitized := InvalidIDChars.ReplaceAllString(lower, "")
	sanitized = strings.ReplaceAll(sanitized, " ", "-")
	return T(strings.Trim(sanitized, "-"))
}

// NewPlanID returns a random plan identifier
func NewPlanID() PlanID {
	return PlanID(uuid.NewString())
}

// NewExecutionID returns a random execution identifier
func NewExecutionID() ExecutionID {
	return ExecutionID(uuid.NewString())
}
