package worker

import (
	"time"

	"github.com/google/uuid"
)

// Priority levels for job scheduling.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

// JobType represents the type of a job.
type JobType = string

// Job types
const (
	JobEmailProcess JobType = "email.process"
	JobIndexRebuild         = "index.rebuild"
)

type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Priority  Priority       `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
	Retries   int            `json:"retries"`
}

func NewMessage(jobType string, payload map[string]any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		Priority:  PriorityNormal,
		CreatedAt: time.Now(),
		Retries:   0,
	}
}

// IsPriority checks if message should go to priority queue.
func (m *Message) IsPriority() bool {
	return m.Priority >= PriorityHigh
}

// EmailProcessPayload mirrors the inbound email wire format.
type EmailProcessPayload struct {
	AccountID   string   `json:"account_id"`
	MessageID   string   `json:"message_id"`
	Subject     string   `json:"subject"`
	FromEmail   string   `json:"from_email"`
	SentAt      string   `json:"sent_at,omitempty"`
	BodyText    string   `json:"body_text"`
	BodyHTML    string   `json:"body_html,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// IndexRebuildPayload configures an index rebuild run.
type IndexRebuildPayload struct {
	BatchSize int `json:"batch_size"`
}
