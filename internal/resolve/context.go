package resolve

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/kode4food/courier/pkg/api"
)

// Context accumulates the trigger payload and the output envelopes of steps
// that succeeded during one execution. Outputs keep insertion order
type Context struct {
	trigger any
	outputs map[api.StepID]*api.ActionResult
	order   []api.StepID
	mu      sync.RWMutex
}

// gjson treats these as path syntax unless escaped
const pathSyntax = `\.*?|#@!=<>%`

// NewContext returns a Context seeded with the trigger payload
func NewContext(trigger any) *Context {
	return &Context{
		trigger: trigger,
		outputs: map[api.StepID]*api.ActionResult{},
	}
}

// Trigger returns the trigger payload the context was seeded with
func (c *Context) Trigger() any {
	return c.trigger
}

// Set records the output envelope of a step. Setting a step twice replaces
// its envelope but keeps its original position
func (c *Context) Set(id api.StepID, res *api.ActionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.outputs[id]; !ok {
		c.order = append(c.order, id)
	}
	c.outputs[id] = res
}

// Get returns the output envelope of a step, if it has one
func (c *Context) Get(id api.StepID) (*api.ActionResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.outputs[id]
	return res, ok
}

// StepIDs returns the steps with recorded outputs in insertion order
func (c *Context) StepIDs() []api.StepID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// Lookup navigates a dotted reference path. The first segment is either
// "trigger" or a step ID; the rest walks into the selected value, with
// numeric segments indexing lists. Missing values, null values, and
// navigation into scalars all report false
func (c *Context) Lookup(path string) (any, bool) {
	segments := strings.Split(path, ".")
	for i, s := range segments {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, false
		}
		segments[i] = s
	}

	root, ok := c.root(segments[0])
	if !ok {
		return nil, false
	}

	doc, err := json.Marshal(root)
	if err != nil {
		return nil, false
	}

	var res gjson.Result
	if rest := segments[1:]; len(rest) == 0 {
		res = gjson.ParseBytes(doc)
	} else {
		res = gjson.GetBytes(doc, escapePath(rest))
	}
	if !res.Exists() || res.Type == gjson.Null {
		return nil, false
	}
	return res.Value(), true
}

func (c *Context) root(head string) (any, bool) {
	if head == api.TriggerRef {
		return c.trigger, c.trigger != nil
	}
	res, ok := c.Get(api.StepID(head))
	if !ok || res == nil {
		return nil, false
	}
	return res, true
}

func escapePath(segments []string) string {
	var buf strings.Builder
	for i, s := range segments {
		if i > 0 {
			buf.WriteByte('.')
		}
		for _, r := range s {
			if strings.ContainsRune(pathSyntax, r) {
				buf.WriteByte('\\')
			}
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
