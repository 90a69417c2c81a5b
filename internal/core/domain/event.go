package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the platform.
const (
	EventSubmissionCreated = "submission.created"
	EventFormPublished     = "form.published"
	EventFormCreated       = "form.created"
)

// ValidEvents lists the event types external consumers may subscribe to.
func ValidEvents() []string {
	return []string{EventSubmissionCreated, EventFormPublished, EventFormCreated}
}

// IsValidEvent reports whether event is a known subscribable event type.
func IsValidEvent(event string) bool {
	for _, e := range ValidEvents() {
		if e == event {
			return true
		}
	}
	return false
}

// Answer is one field's answer within a submission, carried with enough
// field metadata to render it without another lookup.
type Answer struct {
	FieldID    string      `json:"fieldId"`
	FieldLabel string      `json:"fieldLabel"`
	FieldType  string      `json:"fieldType"`
	Value      interface{} `json:"value"`
}

// SubmissionEvent is the immutable snapshot of a completed submission that
// the dispatch engine fans out. It is constructed once per dispatch and owned
// by the orchestrator for its duration.
type SubmissionEvent struct {
	SubmissionID uuid.UUID
	FormID       uuid.UUID
	FormTitle    string
	FormPublicID string
	Answers      []Answer // ordered as the form defines them
	CompletedAt  time.Time
}

// Data returns answers keyed by field ID.
func (e *SubmissionEvent) Data() map[string]interface{} {
	data := make(map[string]interface{}, len(e.Answers))
	for _, a := range e.Answers {
		data[a.FieldID] = a.Value
	}
	return data
}

// FormRef identifies the form an event belongs to, in the wire shape used by
// delivery envelopes.
type FormRef struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	PublicID string `json:"publicId"`
}

// FormRef builds the delivery-envelope form reference for this event.
func (e *SubmissionEvent) FormRef() FormRef {
	return FormRef{
		ID:       e.FormID.String(),
		Title:    e.FormTitle,
		PublicID: e.FormPublicID,
	}
}
