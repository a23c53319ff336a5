package validator

import (
	"slices"
	"strconv"
	"strings"

	"github.com/kode4food/courier/pkg/api"
)

// shape describes the paths a reference may address below one root
type shape struct {
	fields    map[string]bool
	indexable map[string]bool
	// pure actions have no effect besides their output
	pure bool
}

// TimerFields lists the trigger payload keys produced by timer triggers
var TimerFields = []string{"fired_at", "trigger"}

var envelope = []string{"success", "error"}

var actionShapes = map[api.ActionName]*shape{
	api.ActionSendEmail: newShape(
		[]string{"data", "data.message_id", "data.thread_id"}, nil,
	),
	api.ActionScheduleEmail: newShape(
		[]string{"data", "data.scheduled_id", "data.send_at"}, nil,
	),
	api.ActionRunAnalysis: withPure(newShape(
		[]string{"data"}, []string{"data"},
	)),
	api.ActionAddLabels:    newShape(nil, nil),
	api.ActionRemoveLabels: newShape(nil, nil),
	api.ActionListenForSenders: newShape(
		[]string{"data", "data.listener_id", "data.senders"},
		[]string{"data.senders"},
	),
}

func newShape(fields, indexable []string) *shape {
	res := &shape{
		fields:    map[string]bool{},
		indexable: map[string]bool{},
	}
	for _, f := range envelope {
		res.fields[f] = true
	}
	for _, f := range fields {
		res.fields[f] = true
	}
	for _, f := range indexable {
		res.indexable[f] = true
	}
	return res
}

func withPure(s *shape) *shape {
	s.pure = true
	return s
}

func triggerShape(t *api.Trigger) *shape {
	res := &shape{
		fields:    map[string]bool{},
		indexable: map[string]bool{},
	}
	if t.Type == api.TriggerTimer {
		for _, f := range TimerFields {
			res.fields[f] = true
		}
		return res
	}
	for _, f := range api.EmailFields {
		res.fields[f] = true
	}
	res.indexable["to"] = true
	res.indexable["labels"] = true
	return res
}

// accepts reports whether the dotted sub-path addresses a declared field.
// An empty sub-path addresses the root itself. Indexable fields accept one
// trailing numeric segment
func (s *shape) accepts(sub []string) bool {
	cur := ""
	for i, seg := range sub {
		next := seg
		if cur != "" {
			next = cur + "." + seg
		}
		if s.fields[next] {
			cur = next
			continue
		}
		if s.indexable[cur] && isIndex(seg) {
			return i == len(sub)-1
		}
		return false
	}
	return true
}

func (s *shape) available() []string {
	res := make([]string, 0, len(s.fields))
	for f := range s.fields {
		res = append(res, f)
	}
	slices.Sort(res)
	return res
}

func isIndex(seg string) bool {
	n, err := strconv.Atoi(seg)
	return err == nil && n >= 0
}

func splitRef(ref string) (string, []string) {
	parts := strings.Split(strings.TrimSpace(ref), ".")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts[0], parts[1:]
}
