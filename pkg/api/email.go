package api

import (
	"errors"
	"strings"
	"time"
)

// Email is the normalized message handed over by the mail sync subsystem
type Email struct {
	Date          time.Time `json:"date"`
	ID            string    `json:"id"`
	From          string    `json:"from"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	ThreadID      string    `json:"thread_id,omitempty"`
	To            []string  `json:"to"`
	Labels        []string  `json:"labels,omitempty"`
	IsRead        bool      `json:"is_read"`
	HasAttachment bool      `json:"has_attachment"`
}

// EmailFields lists the trigger payload keys produced by TriggerData
var EmailFields = []string{
	"email_id", "id", "from", "to", "subject", "body", "date", "labels",
	"is_read", "has_attachment", "thread_id",
}

var (
	ErrEmailIDMissing   = errors.New("email id empty")
	ErrEmailFromMissing = errors.New("email sender empty")
)

// Validate checks the fields required for trigger matching
func (e *Email) Validate() error {
	if e.ID == "" {
		return ErrEmailIDMissing
	}
	if e.From == "" {
		return ErrEmailFromMissing
	}
	return nil
}

// SenderAddress extracts the bare address from a From header such as
// "Jane Doe <jane@example.com>"
func (e *Email) SenderAddress() string {
	from := strings.TrimSpace(e.From)
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			from = from[start+1 : end]
		}
	}
	return strings.TrimSpace(from)
}

// TriggerData builds the JSON-like payload exposed to references as
// trigger.<field>
func (e *Email) TriggerData() map[string]any {
	return map[string]any{
		"email_id":       e.ID,
		"id":             e.ID,
		"from":           e.From,
		"to":             stringsToAny(e.To),
		"subject":        e.Subject,
		"body":           e.Body,
		"date":           e.Date.Format(time.RFC3339),
		"labels":         stringsToAny(e.Labels),
		"is_read":        e.IsRead,
		"has_attachment": e.HasAttachment,
		"thread_id":      e.ThreadID,
	}
}

func stringsToAny(in []string) []any {
	res := make([]any, len(in))
	for i, s := range in {
		res[i] = s
	}
	return res
}
