package natsserver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Jwl06/civicledger360/models"
)

// Subjects for violation lifecycle events.
const (
	SubjectPrefix    = "civic.violations"
	SubjectSubmitted = SubjectPrefix + ".submitted"
	SubjectReviewed  = SubjectPrefix + ".reviewed"
	SubjectAll       = SubjectPrefix + ".>"
)

// Event types
const (
	EventSubmitted = "violation.submitted"
	EventReviewed  = "violation.reviewed"
)

// Event is the payload published for every lifecycle change.
type Event struct {
	Type      string           `json:"type"`
	Violation models.Violation `json:"violation"`
	At        time.Time        `json:"at"`
}

// Publisher emits violation events.
type Publisher interface {
	PublishEvent(ev Event) error
}

// PublishEvent routes ev to its subject.
func (e *EmbeddedNATS) PublishEvent(ev Event) error {
	subject, err := SubjectFor(ev.Type)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return e.Publish(subject, data)
}

// SubjectFor maps an event type to its subject.
func SubjectFor(eventType string) (string, error) {
	switch eventType {
	case EventSubmitted:
		return SubjectSubmitted, nil
	case EventReviewed:
		return SubjectReviewed, nil
	default:
		return "", fmt.Errorf("unknown event type %q", eventType)
	}
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(Event) error { return nil }
