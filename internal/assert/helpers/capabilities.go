package helpers

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kode4food/courier/internal/client"
	"github.com/kode4food/courier/pkg/api"
)

type (
	// MockCapabilities is a scripted client.Capabilities for tests. Results
	// are configured per step ID (read from the invocation metadata) or per
	// action; anything unconfigured succeeds with no data
	MockCapabilities struct {
		scripts   map[api.StepID][]Response
		byAction  map[api.ActionName]Response
		invoked   []Invocation
		invokedCh map[api.StepID]chan struct{}
		mu        sync.Mutex
	}

	// Response is one scripted capability outcome
	Response struct {
		Result *api.ActionResult
		Err    error
		Delay  time.Duration
	}

	// Invocation records one call made through the mock
	Invocation struct {
		Inputs   api.Inputs
		Metadata api.CapabilityMetadata
		Action   api.ActionName
	}
)

var _ client.Capabilities = (*MockCapabilities)(nil)

// NewMockCapabilities creates an empty mock
func NewMockCapabilities() *MockCapabilities {
	return &MockCapabilities{
		scripts:   map[api.StepID][]Response{},
		byAction:  map[api.ActionName]Response{},
		invokedCh: map[api.StepID]chan struct{}{},
	}
}

// SetResponse makes every invocation of a step succeed with data
func (m *MockCapabilities) SetResponse(id api.StepID, data any) {
	m.SetSequence(id, Response{Result: api.Succeeded(data)})
}

// SetFailure makes every invocation of a step return success=false
func (m *MockCapabilities) SetFailure(id api.StepID, msg string) {
	m.SetSequence(id, Response{Result: api.Failed(msg)})
}

// SetError makes every invocation of a step return err
func (m *MockCapabilities) SetError(id api.StepID, err error) {
	m.SetSequence(id, Response{Err: err})
}

// SetSequence scripts consecutive invocations of a step. The final
// response repeats once the others are used up
func (m *MockCapabilities) SetSequence(id api.StepID, rs ...Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[id] = rs
}

// SetActionResponse scripts every invocation of an action that has no step
// script of its own
func (m *MockCapabilities) SetActionResponse(
	action api.ActionName, r Response,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byAction[action] = r
}

// Invocations returns every recorded invocation in call order
func (m *MockCapabilities) Invocations() []Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.invoked)
}

// InvocationsOf returns the recorded invocations of one step
func (m *MockCapabilities) InvocationsOf(id api.StepID) []Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Invocation
	for _, inv := range m.invoked {
		if inv.Metadata.StepID == id {
			res = append(res, inv)
		}
	}
	return res
}

// Count returns how many times a step was invoked
func (m *MockCapabilities) Count(id api.StepID) int {
	return len(m.InvocationsOf(id))
}

// WasInvoked returns whether a step was invoked at least once
func (m *MockCapabilities) WasInvoked(id api.StepID) bool {
	return m.Count(id) > 0
}

// WaitForInvocation blocks until a step is invoked or the timeout expires
func (m *MockCapabilities) WaitForInvocation(
	id api.StepID, timeout time.Duration,
) bool {
	m.mu.Lock()
	ch, ok := m.invokedCh[id]
	if !ok {
		ch = make(chan struct{}, 1)
		m.invokedCh[id] = ch
	}
	m.mu.Unlock()

	if m.WasInvoked(id) {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return m.WasInvoked(id)
	}
}

func (m *MockCapabilities) SendEmail(
	ctx context.Context, in *api.SendEmailInputs,
) (*api.ActionResult, error) {
	return m.invoke(ctx, in)
}

func (m *MockCapabilities) ScheduleEmail(
	ctx context.Context, in *api.ScheduleEmailInputs,
) (*api.ActionResult, error) {
	return m.invoke(ctx, in)
}

func (m *MockCapabilities) RunAnalysis(
	ctx context.Context, in *api.RunAnalysisInputs,
) (*api.ActionResult, error) {
	return m.invoke(ctx, in)
}

func (m *MockCapabilities) AddLabels(
	ctx context.Context, in *api.AddLabelsInputs,
) (*api.ActionResult, error) {
	return m.invoke(ctx, in)
}

func (m *MockCapabilities) RemoveLabels(
	ctx context.Context, in *api.RemoveLabelsInputs,
) (*api.ActionResult, error) {
	return m.invoke(ctx, in)
}

func (m *MockCapabilities) ListenForSenders(
	ctx context.Context, in *api.ListenForSendersInputs,
) (*api.ActionResult, error) {
	return m.invoke(ctx, in)
}

func (m *MockCapabilities) invoke(
	ctx context.Context, in api.Inputs,
) (*api.ActionResult, error) {
	md := client.MetadataFrom(ctx)
	r := m.record(md, in)

	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Result == nil {
		return api.Succeeded(nil), nil
	}
	res := *r.Result
	return &res, nil
}

func (m *MockCapabilities) record(
	md api.CapabilityMetadata, in api.Inputs,
) Response {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.invoked = append(m.invoked, Invocation{
		Inputs:   in,
		Metadata: md,
		Action:   in.Action(),
	})
	if ch, ok := m.invokedCh[md.StepID]; ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}

	if script := m.scripts[md.StepID]; len(script) != 0 {
		r := script[0]
		if len(script) > 1 {
			m.scripts[md.StepID] = script[1:]
		}
		return r
	}
	return m.byAction[in.Action()]
}
