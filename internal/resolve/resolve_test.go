package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/courier/internal/resolve"
	"github.com/kode4food/courier/pkg/api"
)

func testContext() *resolve.Context {
	ctx := resolve.NewContext(map[string]any{
		"from":    "boss@example.com",
		"subject": "Quarterly numbers",
		"to":      []any{"me@example.com", "team@example.com"},
	})
	ctx.Set("analyze", api.Succeeded("URGENT"))
	ctx.Set("send", api.Succeeded(map[string]any{
		"message_id": "m-42",
		"tags":       []any{"a", "b"},
		"count":      3,
	}))
	return ctx
}

func TestLookup(t *testing.T) {
	ctx := testContext()

	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"trigger.from", "boss@example.com", true},
		{"trigger.to.1", "team@example.com", true},
		{"analyze.data", "URGENT", true},
		{"analyze.success", true, true},
		{"send.data.message_id", "m-42", true},
		{"send.data.tags.0", "a", true},
		{"send.data.count", float64(3), true},
		{"send.error", nil, false},
		{"analyze.data.length", nil, false},
		{"missing.data", nil, false},
		{"trigger.nope", nil, false},
		{"trigger..from", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := ctx.Lookup(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupEscapesPathSyntax(t *testing.T) {
	ctx := resolve.NewContext(map[string]any{
		"a*b": "star",
		"axb": "wild",
	})

	got, ok := ctx.Lookup("trigger.a*b")
	assert.True(t, ok)
	assert.Equal(t, "star", got)
}

func TestContextOrder(t *testing.T) {
	ctx := resolve.NewContext(nil)
	ctx.Set("b", api.Succeeded(1))
	ctx.Set("a", api.Succeeded(2))
	ctx.Set("b", api.Succeeded(3))

	assert.Equal(t, []api.StepID{"b", "a"}, ctx.StepIDs())
	res, ok := ctx.Get("b")
	require.True(t, ok)
	assert.Equal(t, 3, res.Data)

	_, ok = ctx.Lookup("trigger.anything")
	assert.False(t, ok)
}

func TestResolveStrings(t *testing.T) {
	ctx := testContext()

	res, unresolved := resolve.Resolve(map[string]any{
		"whole":    "{{ send.data.tags }}",
		"embedded": "Re: {{trigger.subject}} ({{send.data.count}})",
		"missing":  "hello {{nobody.data}}",
		"number":   42,
		"list":     []any{"{{analyze.data}}", true},
	}, ctx)

	assert.Equal(t, map[string]any{
		"whole":    []any{"a", "b"},
		"embedded": "Re: Quarterly numbers (3)",
		"missing":  "hello {{nobody.data}}",
		"number":   42,
		"list":     []any{"URGENT", true},
	}, res)
	assert.Equal(t, []string{"nobody.data"}, unresolved)
}

func TestResolveIdempotent(t *testing.T) {
	ctx := testContext()
	input := map[string]any{
		"subject": "Re: {{trigger.subject}}",
		"keep":    "{{later.data}}",
		"nested":  map[string]any{"to": []any{"{{trigger.from}}"}},
	}

	once, _ := resolve.Resolve(input, ctx)
	twice, _ := resolve.Resolve(once, ctx)
	assert.Equal(t, once, twice)
}

func TestResolveNoPlaceholders(t *testing.T) {
	in := []any{"plain", 1.5, nil, map[string]any{"k": "v"}}
	res, unresolved := resolve.Resolve(in, resolve.NewContext(nil))
	assert.Equal(t, in, res)
	assert.Empty(t, unresolved)
}

func TestResolveInputs(t *testing.T) {
	ctx := testContext()

	in := &api.SendEmailInputs{
		To:      []string{"{{trigger.to}}", "cfo@example.com"},
		Subject: "{{send.data.count}} items",
		Body:    "{{send.data.tags}}",
	}

	out, unresolved, err := resolve.ResolveInputs(in, ctx)
	require.NoError(t, err)
	assert.Empty(t, unresolved)

	send, ok := out.(*api.SendEmailInputs)
	require.True(t, ok)
	assert.Equal(t, []string{
		"me@example.com", "team@example.com", "cfo@example.com",
	}, send.To)
	assert.Equal(t, "3 items", send.Subject)
	assert.Equal(t, `["a","b"]`, send.Body)

	assert.Equal(t, "{{trigger.to}}", in.To[0])
}

func TestResolveInputsUnresolved(t *testing.T) {
	in := &api.AddLabelsInputs{LabelInputs: api.LabelInputs{
		EmailID: "{{trigger.email_id}}", Labels: []string{"x"},
	}}

	out, unresolved, err := resolve.ResolveInputs(in, resolve.NewContext(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"trigger.email_id"}, unresolved)
	assert.Equal(t, "{{trigger.email_id}}",
		out.(*api.AddLabelsInputs).EmailID,
	)
}

func TestReferences(t *testing.T) {
	refs := resolve.References(map[string]any{
		"b": "{{ step2.data }} and {{trigger.from}}",
		"a": []any{"{{step1.data.message_id}}", 3},
	})
	assert.Equal(t, []string{
		"step1.data.message_id", "step2.data", "trigger.from",
	}, refs)

	refs = resolve.InputReferences(&api.RunAnalysisInputs{
		Prompt: "Summarize {{trigger.body}}",
	})
	assert.Equal(t, []string{"trigger.body"}, refs)
}

func TestText(t *testing.T) {
	assert.Equal(t, "", resolve.Text(nil))
	assert.Equal(t, "x", resolve.Text("x"))
	assert.Equal(t, "true", resolve.Text(true))
	assert.Equal(t, `{"a":1}`, resolve.Text(map[string]any{"a": 1}))
}

func TestResolveSinglePass(t *testing.T) {
	ctx := resolve.NewContext(map[string]any{
		"from":    "a@b.c",
		"subject": "{{trigger.from}}",
	})

	got, unresolved := resolve.Resolve("S: {{trigger.subject}}", ctx)
	assert.Equal(t, "S: {{trigger.from}}", got)
	assert.Empty(t, unresolved)

	got, unresolved = resolve.Resolve("{{trigger.subject}}", ctx)
	assert.Equal(t, "{{trigger.from}}", got)
	assert.Empty(t, unresolved)

	in, unresolved, err := resolve.ResolveInputs(&api.SendEmailInputs{
		To:      []string{"{{trigger.from}}"},
		Subject: "Re: {{trigger.subject}}",
		Body:    "{{trigger.subject}}",
	}, ctx)
	require.NoError(t, err)
	assert.Empty(t, unresolved)
	send := in.(*api.SendEmailInputs)
	assert.Equal(t, []string{"a@b.c"}, send.To)
	assert.Equal(t, "Re: {{trigger.from}}", send.Subject)
	assert.Equal(t, "{{trigger.from}}", send.Body)
}
