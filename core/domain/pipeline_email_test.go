package domain

import (
	"strings"
	"testing"
	"time"
)

func TestInboundEmailValidate(t *testing.T) {
	tests := []struct {
		name    string
		email   InboundEmail
		wantErr bool
	}{
		{
			name:    "complete email",
			email:   InboundEmail{AccountID: "a", MessageID: "m", Subject: "s", BodyText: "b"},
			wantErr: false,
		},
		{
			name:    "subject only",
			email:   InboundEmail{AccountID: "a", MessageID: "m", Subject: "s"},
			wantErr: false,
		},
		{
			name:    "body only",
			email:   InboundEmail{AccountID: "a", MessageID: "m", BodyText: "b"},
			wantErr: false,
		},
		{
			name:    "missing account",
			email:   InboundEmail{MessageID: "m", Subject: "s"},
			wantErr: true,
		},
		{
			name:    "missing message id",
			email:   InboundEmail{AccountID: "a", Subject: "s"},
			wantErr: true,
		},
		{
			name:    "no content",
			email:   InboundEmail{AccountID: "a", MessageID: "m"},
			wantErr: true,
		},
		{
			name:    "whitespace content",
			email:   InboundEmail{AccountID: "a", MessageID: "m", Subject: "  ", BodyText: " "},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.email.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEmbeddingText(t *testing.T) {
	in := &InboundEmail{
		AccountID: "a",
		MessageID: "m",
		Subject:   "Invoice for April",
		FromEmail: "billing@example.com",
		SentAt:    time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		BodyText:  "Please find the invoice attached.",
	}

	text := in.EmbeddingText()

	for _, want := range []string{
		"Subject: Invoice for April",
		"From: billing@example.com",
		"Date: 2026-04-01T09:00:00Z",
		"Please find the invoice attached.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("embedding text missing %q:\n%s", want, text)
		}
	}
}

func TestEmbeddingTextTruncation(t *testing.T) {
	in := &InboundEmail{
		AccountID: "a",
		MessageID: "m",
		Subject:   "s",
		BodyText:  strings.Repeat("x", maxEmbeddingChars*2),
	}

	if got := len(in.EmbeddingText()); got > maxEmbeddingChars {
		t.Errorf("embedding text length %d exceeds cap %d", got, maxEmbeddingChars)
	}
}

func TestClassifierText(t *testing.T) {
	withSubject := &InboundEmail{Subject: "Hello", BodyText: "World"}
	if got := withSubject.ClassifierText(); got != "Hello\n\nWorld" {
		t.Errorf("classifier text = %q", got)
	}

	bodyOnly := &InboundEmail{BodyText: "World"}
	if got := bodyOnly.ClassifierText(); got != "World" {
		t.Errorf("classifier text without subject = %q", got)
	}
}

func TestNewEmail(t *testing.T) {
	in := &InboundEmail{
		AccountID: "a",
		MessageID: "m",
		Subject:   "s",
		BodyText:  "b",
		BodyHTML:  "<p>b</p>",
	}
	vec := []float32{1, 0}

	e := NewEmail(in, vec)

	if e.ID.String() == "" {
		t.Error("email has no ID")
	}
	if e.AccountID != "a" || e.MessageID != "m" {
		t.Errorf("identity fields wrong: %+v", e)
	}
	if e.BodyHTML == nil || *e.BodyHTML != "<p>b</p>" {
		t.Error("html body not carried over")
	}
	if len(e.Embedding) != 2 {
		t.Error("embedding not attached")
	}

	plain := NewEmail(&InboundEmail{AccountID: "a", MessageID: "m", Subject: "s"}, vec)
	if plain.BodyHTML != nil {
		t.Error("empty html body stored as non-nil")
	}
}
