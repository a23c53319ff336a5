package api

import (
	"errors"
	"fmt"
	"time"
)

type (
	// Inputs is the closed set of action-specific step input payloads. Each
	// implementation belongs to exactly one ActionName
	Inputs interface {
		Action() ActionName
		Validate() error
		inputs()
	}

	// SendEmailInputs carries the arguments of the send_email action
	SendEmailInputs struct {
		To               []string `json:"to"`
		Cc               []string `json:"cc,omitempty"`
		Bcc              []string `json:"bcc,omitempty"`
		Subject          string   `json:"subject"`
		Body             string   `json:"body"`
		ReplyToMessageID string   `json:"reply_to_message_id,omitempty"`
	}

	// ScheduleEmailInputs carries the arguments of the schedule_email action.
	// Exactly one of SendAt or DelayMinutes selects the delivery time
	ScheduleEmailInputs struct {
		To           []string  `json:"to"`
		Subject      string    `json:"subject"`
		Body         string    `json:"body"`
		SendAt       time.Time `json:"send_at,omitzero"`
		DelayMinutes int       `json:"delay_minutes,omitempty"`
	}

	// RunAnalysisInputs carries the arguments of the run_analysis action
	RunAnalysisInputs struct {
		Prompt  string         `json:"prompt"`
		Content string         `json:"content,omitempty"`
		EmailID string         `json:"email_id,omitempty"`
		Format  AnalysisFormat `json:"format,omitempty"`
	}

	// LabelInputs carries the arguments shared by add_labels and
	// remove_labels
	LabelInputs struct {
		EmailID   string         `json:"email_id"`
		Labels    []string       `json:"labels"`
		Operation LabelOperation `json:"operation,omitempty"`
	}

	// AddLabelsInputs carries the arguments of the add_labels action
	AddLabelsInputs struct {
		LabelInputs
	}

	// RemoveLabelsInputs carries the arguments of the remove_labels action
	RemoveLabelsInputs struct {
		LabelInputs
	}

	// ListenForSendersInputs carries the arguments of the
	// listen_for_senders action
	ListenForSendersInputs struct {
		Senders         []string `json:"senders"`
		DurationMinutes int      `json:"duration_minutes,omitempty"`
	}

	// AnalysisFormat selects the shape of a run_analysis result
	AnalysisFormat string

	// LabelOperation selects how labels are applied to a message
	LabelOperation string
)

const (
	AnalysisText AnalysisFormat = "text"
	AnalysisList AnalysisFormat = "list"

	LabelAdd    LabelOperation = "add"
	LabelRemove LabelOperation = "remove"
	LabelSet    LabelOperation = "set"
)

var (
	ErrRecipientsEmpty     = errors.New("at least one recipient required")
	ErrSubjectEmpty        = errors.New("subject empty")
	ErrBodyEmpty           = errors.New("body empty")
	ErrSendTimeRequired    = errors.New("send_at or delay_minutes required")
	ErrSendTimeAmbiguous   = errors.New("send_at and delay_minutes are exclusive")
	ErrNegativeDelay       = errors.New("delay_minutes cannot be negative")
	ErrPromptEmpty         = errors.New("prompt empty")
	ErrInvalidFormat       = errors.New("invalid analysis format")
	ErrEmailIDEmpty        = errors.New("email_id empty")
	ErrLabelsEmpty         = errors.New("at least one label required")
	ErrInvalidOperation    = errors.New("invalid label operation")
	ErrSendersEmpty        = errors.New("at least one sender required")
	ErrNegativeDuration    = errors.New("duration_minutes cannot be negative")
	ErrBlankListEntry      = errors.New("list contains an empty entry")
	ErrOperationMismatched = errors.New("operation does not fit action")
)

var (
	_ Inputs = (*SendEmailInputs)(nil)
	_ Inputs = (*ScheduleEmailInputs)(nil)
	_ Inputs = (*RunAnalysisInputs)(nil)
	_ Inputs = (*AddLabelsInputs)(nil)
	_ Inputs = (*RemoveLabelsInputs)(nil)
	_ Inputs = (*ListenForSendersInputs)(nil)
)

// NewInputs returns an empty payload of the variant owned by action
func NewInputs(action ActionName) (Inputs, error) {
	switch action {
	case ActionSendEmail:
		return &SendEmailInputs{}, nil
	case ActionScheduleEmail:
		return &ScheduleEmailInputs{}, nil
	case ActionRunAnalysis:
		return &RunAnalysisInputs{}, nil
	case ActionAddLabels:
		return &AddLabelsInputs{}, nil
	case ActionRemoveLabels:
		return &RemoveLabelsInputs{}, nil
	case ActionListenForSenders:
		return &ListenForSendersInputs{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func (*SendEmailInputs) Action() ActionName { return ActionSendEmail }

func (in *SendEmailInputs) Validate() error {
	if err := requireList(in.To, ErrRecipientsEmpty); err != nil {
		return err
	}
	if in.Subject == "" {
		return ErrSubjectEmpty
	}
	if in.Body == "" {
		return ErrBodyEmpty
	}
	return nil
}

func (*ScheduleEmailInputs) Action() ActionName { return ActionScheduleEmail }

func (in *ScheduleEmailInputs) Validate() error {
	if err := requireList(in.To, ErrRecipientsEmpty); err != nil {
		return err
	}
	if in.Subject == "" {
		return ErrSubjectEmpty
	}
	if in.Body == "" {
		return ErrBodyEmpty
	}
	if in.DelayMinutes < 0 {
		return ErrNegativeDelay
	}
	hasAt := !in.SendAt.IsZero()
	hasDelay := in.DelayMinutes > 0
	switch {
	case hasAt && hasDelay:
		return ErrSendTimeAmbiguous
	case !hasAt && !hasDelay:
		return ErrSendTimeRequired
	}
	return nil
}

// DeliveryTime returns when the message should go out relative to now
func (in *ScheduleEmailInputs) DeliveryTime(now time.Time) time.Time {
	if !in.SendAt.IsZero() {
		return in.SendAt
	}
	return now.Add(time.Duration(in.DelayMinutes) * time.Minute)
}

func (*RunAnalysisInputs) Action() ActionName { return ActionRunAnalysis }

func (in *RunAnalysisInputs) Validate() error {
	if in.Prompt == "" {
		return ErrPromptEmpty
	}
	switch in.Format {
	case "", AnalysisText, AnalysisList:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, in.Format)
	}
}

func (*AddLabelsInputs) Action() ActionName { return ActionAddLabels }

func (in *AddLabelsInputs) Validate() error {
	if err := in.LabelInputs.validate(); err != nil {
		return err
	}
	if in.Operation == LabelRemove {
		return fmt.Errorf("%w: %s with %s",
			ErrOperationMismatched, in.Operation, ActionAddLabels)
	}
	return nil
}

// EffectiveOperation returns the operation with the action default applied
func (in *AddLabelsInputs) EffectiveOperation() LabelOperation {
	if in.Operation == "" {
		return LabelAdd
	}
	return in.Operation
}

func (*RemoveLabelsInputs) Action() ActionName { return ActionRemoveLabels }

func (in *RemoveLabelsInputs) Validate() error {
	if err := in.LabelInputs.validate(); err != nil {
		return err
	}
	if in.Operation == LabelAdd || in.Operation == LabelSet {
		return fmt.Errorf("%w: %s with %s",
			ErrOperationMismatched, in.Operation, ActionRemoveLabels)
	}
	return nil
}

// EffectiveOperation returns the operation with the action default applied
func (in *RemoveLabelsInputs) EffectiveOperation() LabelOperation {
	if in.Operation == "" {
		return LabelRemove
	}
	return in.Operation
}

func (*ListenForSendersInputs) Action() ActionName {
	return ActionListenForSenders
}

func (in *ListenForSendersInputs) Validate() error {
	if err := requireList(in.Senders, ErrSendersEmpty); err != nil {
		return err
	}
	if in.DurationMinutes < 0 {
		return ErrNegativeDuration
	}
	return nil
}

func (in *LabelInputs) validate() error {
	if in.EmailID == "" {
		return ErrEmailIDEmpty
	}
	if err := requireList(in.Labels, ErrLabelsEmpty); err != nil {
		return err
	}
	switch in.Operation {
	case "", LabelAdd, LabelRemove, LabelSet:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOperation, in.Operation)
	}
}

func requireList(items []string, emptyErr error) error {
	if len(items) == 0 {
		return emptyErr
	}
	for _, item := range items {
		if item == "" {
			return ErrBlankListEntry
		}
	}
	return nil
}

func (*SendEmailInputs) inputs()        {}
func (*ScheduleEmailInputs) inputs()    {}
func (*RunAnalysisInputs) inputs()      {}
func (*AddLabelsInputs) inputs()        {}
func (*RemoveLabelsInputs) inputs()     {}
func (*ListenForSendersInputs) inputs() {}
