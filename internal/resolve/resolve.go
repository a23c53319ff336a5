package resolve

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/kode4food/courier/pkg/api"
)

type mode int

const (
	rawMode mode = iota
	textMode
)

var (
	placeholder      = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)
	wholePlaceholder = regexp.MustCompile(`^\{\{\s*([^{}]+?)\s*\}\}$`)
)

// Resolve returns a copy of value with every {{path}} placeholder in its
// strings substituted from ctx. Lists and maps are walked recursively and
// other scalars pass through. A string that is exactly one placeholder
// becomes the referenced value itself; embedded placeholders are replaced by
// the value's text form. Placeholders that cannot be resolved are left
// verbatim and their paths are returned.
//
// Substitution is a single pass: text taken from ctx is never scanned for
// placeholders, so a subject or body containing {{...}} arrives verbatim.
// Callers must not feed a result back through Resolve
func Resolve(value any, ctx *Context) (any, []string) {
	r := &resolver{ctx: ctx, mode: rawMode}
	return r.value(value), r.unresolved
}

// ResolveInputs substitutes placeholders in typed step inputs and returns a
// fresh payload of the same variant. Every substituted value is rendered as
// text, except that a list entry referencing a list is spliced in place.
// Like Resolve, it makes a single pass
func ResolveInputs(in api.Inputs, ctx *Context) (api.Inputs, []string, error) {
	generic, err := toGeneric(in)
	if err != nil {
		return nil, nil, err
	}

	r := &resolver{ctx: ctx, mode: textMode}
	resolved := r.value(generic)

	data, err := json.Marshal(resolved)
	if err != nil {
		return nil, nil, err
	}
	res, err := api.NewInputs(in.Action())
	if err != nil {
		return nil, nil, err
	}
	if err := json.Unmarshal(data, res); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrResolvedInputs, err)
	}
	return res, r.unresolved, nil
}

// References returns the body of every placeholder found in value. Map keys
// are visited in sorted order
func References(value any) []string {
	var refs []string
	walkStrings(value, func(s string) {
		for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
			refs = append(refs, m[1])
		}
	})
	return refs
}

// InputReferences returns the placeholder bodies found in typed inputs
func InputReferences(in api.Inputs) []string {
	generic, err := toGeneric(in)
	if err != nil {
		return nil
	}
	return References(generic)
}

// Text renders a resolved value the way embedded placeholders do
func Text(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

type resolver struct {
	ctx        *Context
	unresolved []string
	mode       mode
}

func (r *resolver) value(v any) any {
	switch v := v.(type) {
	case string:
		return r.string(v)
	case []any:
		res := make([]any, 0, len(v))
		for _, item := range v {
			if spliced, ok := r.splice(item); ok {
				res = append(res, spliced...)
				continue
			}
			res = append(res, r.value(item))
		}
		return res
	case map[string]any:
		res := make(map[string]any, len(v))
		for k, item := range v {
			res[k] = r.value(item)
		}
		return res
	default:
		return v
	}
}

func (r *resolver) string(s string) any {
	if !strings.Contains(s, "{{") {
		return s
	}
	if m := wholePlaceholder.FindStringSubmatch(s); m != nil {
		val, ok := r.ctx.Lookup(m[1])
		if !ok {
			r.unresolved = append(r.unresolved, m[1])
			return s
		}
		if r.mode == textMode {
			return Text(val)
		}
		return val
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		path := placeholder.FindStringSubmatch(match)[1]
		val, ok := r.ctx.Lookup(path)
		if !ok {
			r.unresolved = append(r.unresolved, path)
			return match
		}
		return Text(val)
	})
}

func (r *resolver) splice(item any) ([]any, bool) {
	if r.mode != textMode {
		return nil, false
	}
	s, ok := item.(string)
	if !ok {
		return nil, false
	}
	m := wholePlaceholder.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	val, ok := r.ctx.Lookup(m[1])
	if !ok {
		return nil, false
	}
	list, ok := val.([]any)
	if !ok {
		return nil, false
	}
	res := make([]any, 0, len(list))
	for _, elem := range list {
		res = append(res, Text(elem))
	}
	return res, true
}

func toGeneric(in api.Inputs) (any, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var res any
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func walkStrings(v any, fn func(string)) {
	switch v := v.(type) {
	case string:
		fn(v)
	case []any:
		for _, item := range v {
			walkStrings(item, fn)
		}
	case []string:
		for _, item := range v {
			fn(item)
		}
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(v)) {
			walkStrings(v[k], fn)
		}
	}
}
