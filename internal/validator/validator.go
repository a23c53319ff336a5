package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kode4food/courier/internal/resolve"
	"github.com/kode4food/courier/pkg/api"
)

type checker struct {
	plan       *api.Plan
	res        *api.ValidationResult
	available  map[string]*shape
	positions  map[api.StepID]int
	referenced map[string]bool
}

// Validate statically analyzes a plan. It walks steps in order, tracking
// which outputs exist at each point, and reports every problem it finds
// rather than stopping at the first. Validate never panics and always
// returns a result
func Validate(plan *api.Plan) *api.ValidationResult {
	res := api.NewValidationResult()
	if plan == nil {
		res.AddError(api.ValidationIssue{Message: "plan is missing"})
		return res
	}

	c := &checker{
		plan:       plan,
		res:        res,
		available:  map[string]*shape{},
		positions:  map[api.StepID]int{},
		referenced: map[string]bool{},
	}
	c.checkPlan()
	c.checkTrigger()
	c.checkSteps()
	c.checkUnused()
	return res
}

func (c *checker) checkPlan() {
	if strings.TrimSpace(c.plan.Name) == "" {
		c.error("", "name", "plan name is required", "")
	}
	if len(c.plan.Steps) == 0 {
		c.error("", "steps", "plan requires at least one step", "")
	}
}

func (c *checker) checkTrigger() {
	t := &c.plan.Trigger
	if err := t.Validate(); err != nil {
		c.error("", "trigger", err.Error(), "")
	}
	if t.Type == api.TriggerSubject && t.Match == api.MatchRegex {
		if _, err := regexp.Compile("(?i)" + t.Subject); err != nil {
			c.error("", "trigger.subject",
				fmt.Sprintf("invalid regular expression: %v", err), "",
			)
		}
	}
	c.available[api.TriggerRef] = triggerShape(t)
}

func (c *checker) checkSteps() {
	for i, s := range c.plan.Steps {
		if s == nil || s.ID == "" {
			continue
		}
		if _, ok := c.positions[s.ID]; !ok {
			c.positions[s.ID] = i
		}
	}

	seen := map[api.StepID]bool{}
	for i, s := range c.plan.Steps {
		if s == nil {
			c.error("", "steps", fmt.Sprintf("step %d is empty", i), "")
			continue
		}
		usable := c.checkIdentity(s, seen)
		actionOK := c.checkAction(s)
		c.checkCondition(s)
		c.checkInputRefs(s)
		c.checkPolicy(s, i)
		if usable && actionOK {
			c.available[string(s.ID)] = actionShapes[s.Action]
		}
	}
}

func (c *checker) checkIdentity(s *api.Step, seen map[api.StepID]bool) bool {
	switch {
	case s.ID == "":
		c.error("", "id", "step id is required", "")
		return false
	case string(s.ID) == api.TriggerRef:
		c.error(s.ID, "id",
			fmt.Sprintf("step id %q is reserved", api.TriggerRef), "",
		)
		return false
	case strings.Contains(string(s.ID), "."):
		c.error(s.ID, "id", "step id cannot contain '.'", "")
		return false
	case seen[s.ID]:
		c.error(s.ID, "id", fmt.Sprintf("duplicate step id %q", s.ID), "")
		return false
	}
	seen[s.ID] = true
	return true
}

func (c *checker) checkAction(s *api.Step) bool {
	if !s.Action.IsValid() {
		names := make([]string, len(api.Actions))
		for i, a := range api.Actions {
			names[i] = string(a)
		}
		c.error(s.ID, "action",
			fmt.Sprintf("unknown action %q", s.Action),
			suggest(string(s.Action), names),
		)
		return false
	}
	if s.Inputs == nil {
		c.error(s.ID, "inputs",
			fmt.Sprintf("%s requires inputs", s.Action), "",
		)
		return true
	}
	if s.Inputs.Action() != s.Action {
		c.error(s.ID, "inputs", fmt.Sprintf(
			"inputs belong to %s, not %s", s.Inputs.Action(), s.Action,
		), "")
		return true
	}
	if err := s.Inputs.Validate(); err != nil {
		c.error(s.ID, "inputs", err.Error(), "")
	}
	return true
}

func (c *checker) checkCondition(s *api.Step) {
	cond := s.Condition
	if cond == nil {
		return
	}
	if err := cond.Validate(); err != nil {
		c.error(s.ID, "condition", err.Error(), "")
	}
	switch cond.Type {
	case api.ConditionNever:
		c.res.AddWarning(api.ValidationIssue{
			StepID:  s.ID,
			Field:   "condition",
			Message: "condition is never; step will always be skipped",
		})
	case api.ConditionPreviousOutput:
		if cond.Field != "" {
			c.checkRef(s.ID, "condition.field", cond.Field)
		}
	}
}

func (c *checker) checkInputRefs(s *api.Step) {
	if s.Inputs == nil {
		return
	}
	for _, ref := range resolve.InputReferences(s.Inputs) {
		c.checkRef(s.ID, "inputs", ref)
	}
}

func (c *checker) checkPolicy(s *api.Step, idx int) {
	p := s.ErrorPolicy
	if p == nil {
		return
	}
	if err := p.Validate(); err != nil {
		c.error(s.ID, "error_policy", err.Error(), "")
	}
	if p.Type != api.PolicyFallback || p.FallbackStepID == "" {
		return
	}

	pos, ok := c.positions[p.FallbackStepID]
	switch {
	case !ok:
		c.error(s.ID, "error_policy.fallback_step_id",
			fmt.Sprintf("fallback step %q does not exist", p.FallbackStepID),
			suggest(string(p.FallbackStepID), c.stepIDs()),
		)
	case pos <= idx:
		c.error(s.ID, "error_policy.fallback_step_id", fmt.Sprintf(
			"fallback step %q must appear later in the plan", p.FallbackStepID,
		), "")
	}
}

func (c *checker) checkRef(id api.StepID, field, ref string) {
	root, sub := splitRef(ref)
	c.referenced[root] = true

	sh, ok := c.available[root]
	if !ok {
		if _, exists := c.positions[api.StepID(root)]; exists {
			c.error(id, field, fmt.Sprintf(
				"referenced step %q not yet available", root,
			), "reference only the trigger or earlier steps")
			return
		}
		c.error(id, field,
			fmt.Sprintf("reference %q names unknown step %q", ref, root),
			suggest(root, c.availableRoots()),
		)
		return
	}

	if !sh.accepts(sub) {
		path := strings.Join(sub, ".")
		c.error(id, field,
			fmt.Sprintf("%q is not a known field of %q", path, root),
			suggestField(path, sh.available()),
		)
	}
}

func (c *checker) checkUnused() {
	for _, s := range c.plan.Steps {
		if s == nil || s.ID == "" {
			continue
		}
		sh, ok := c.available[string(s.ID)]
		if !ok || !sh.pure || c.referenced[string(s.ID)] {
			continue
		}
		c.res.AddWarning(api.ValidationIssue{
			StepID:  s.ID,
			Message: "step output is never used by a later step",
		})
	}
}

func (c *checker) error(id api.StepID, field, msg, hint string) {
	c.res.AddError(api.ValidationIssue{
		StepID:     id,
		Field:      field,
		Message:    msg,
		Suggestion: hint,
	})
}

func (c *checker) availableRoots() []string {
	res := make([]string, 0, len(c.available))
	for k := range c.available {
		res = append(res, k)
	}
	return res
}

func (c *checker) stepIDs() []string {
	res := make([]string, 0, len(c.positions))
	for id := range c.positions {
		res = append(res, string(id))
	}
	return res
}
