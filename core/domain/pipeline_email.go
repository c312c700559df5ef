package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxEmbeddingChars bounds the text sent to the embedding provider.
// Roughly 8k tokens at 4 chars/token, inside every OpenAI embedding
// model's context window.
const maxEmbeddingChars = 32000

// InboundEmail is a parsed email as delivered by the upstream parser.
// It carries no identity of its own; (AccountID, MessageID) identifies
// the processing attempt until an Email row is created.
type InboundEmail struct {
	AccountID   string    `json:"account_id"`
	MessageID   string    `json:"message_id"`
	Subject     string    `json:"subject"`
	FromEmail   string    `json:"from_email"`
	SentAt      time.Time `json:"sent_at"`
	BodyText    string    `json:"body_text"`
	BodyHTML    string    `json:"body_html,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
}

// Validate checks the fields the pipeline cannot proceed without.
func (in *InboundEmail) Validate() error {
	if strings.TrimSpace(in.AccountID) == "" {
		return fmt.Errorf("account_id is required")
	}
	if strings.TrimSpace(in.MessageID) == "" {
		return fmt.Errorf("message_id is required")
	}
	if strings.TrimSpace(in.Subject) == "" && strings.TrimSpace(in.BodyText) == "" {
		return fmt.Errorf("subject or body_text is required")
	}
	return nil
}

// EmbeddingText builds the canonical text representation used for
// embedding. Header lines first, then the plain-text body, truncated
// to keep the request inside the provider's context window.
func (in *InboundEmail) EmbeddingText() string {
	var b strings.Builder
	b.WriteString("Subject: ")
	b.WriteString(in.Subject)
	b.WriteString("\nFrom: ")
	b.WriteString(in.FromEmail)
	if !in.SentAt.IsZero() {
		b.WriteString("\nDate: ")
		b.WriteString(in.SentAt.UTC().Format(time.RFC3339))
	}
	b.WriteString("\n\n")
	b.WriteString(in.BodyText)

	text := b.String()
	if len(text) > maxEmbeddingChars {
		text = text[:maxEmbeddingChars]
	}
	return text
}

// ClassifierText builds the text handed to the classifier. Unlike
// EmbeddingText it has no header framing; classification operates on
// what the sender actually wrote.
func (in *InboundEmail) ClassifierText() string {
	if in.Subject == "" {
		return in.BodyText
	}
	return in.Subject + "\n\n" + in.BodyText
}

// Email is a persisted, classified email. The embedding is stored
// alongside the row so the similarity entry and the email share one
// lifecycle: creating or deleting one does the same to the other.
type Email struct {
	ID          uuid.UUID `json:"id" db:"id"`
	AccountID   string    `json:"account_id" db:"account_id"`
	MessageID   string    `json:"message_id" db:"message_id"`
	Subject     string    `json:"subject" db:"subject"`
	FromEmail   string    `json:"from_email" db:"from_email"`
	SentAt      time.Time `json:"sent_at" db:"sent_at"`
	BodyText    string    `json:"body_text" db:"body_text"`
	BodyHTML    *string   `json:"body_html,omitempty" db:"body_html"`
	Attachments []string  `json:"attachments" db:"-"`
	Embedding   []float32 `json:"-" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// NewEmail mints a persistable Email from an inbound one plus its
// embedding vector.
func NewEmail(in *InboundEmail, embedding []float32) *Email {
	e := &Email{
		ID:          uuid.New(),
		AccountID:   in.AccountID,
		MessageID:   in.MessageID,
		Subject:     in.Subject,
		FromEmail:   in.FromEmail,
		SentAt:      in.SentAt,
		BodyText:    in.BodyText,
		Attachments: in.Attachments,
		Embedding:   embedding,
	}
	if in.BodyHTML != "" {
		html := in.BodyHTML
		e.BodyHTML = &html
	}
	return e
}
