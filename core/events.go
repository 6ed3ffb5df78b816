package core

import (
	"context"
	"time"
)

type EventType string

const (
	EventSubmissionTransitioned EventType = "submission.transitioned"
	EventCriterionLinkChanged   EventType = "criterion.link_changed"
	EventEvidenceChanged        EventType = "evidence.changed" // created or withdrawn
	EventRequirementChanged     EventType = "requirement.changed"
	EventGatewayPassed          EventType = "gateway.passed"
	EventSamplingCreated        EventType = "sampling.created"
)

// Event is a state change exposed to external consumers (notifiers, caches, metrics).
type Event struct {
	Type            EventType `json:"type"`
	StudentID       string    `json:"student_id"`
	QualificationID string    `json:"qualification_id,omitempty"`
	CategoryID      string    `json:"category_id,omitempty"`
	SubmissionID    string    `json:"submission_id,omitempty"`
	RecordID        string    `json:"record_id,omitempty"`
	ActorID         string    `json:"actor_id,omitempty"`
	From            string    `json:"from,omitempty"`
	To              string    `json:"to,omitempty"`
	At              time.Time `json:"at"`
}

// EventPublisher delivers events to subscribers before Publish returns.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event)
}

type EventHandler func(ctx context.Context, evt Event)

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
