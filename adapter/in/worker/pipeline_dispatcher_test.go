package worker

import (
	"testing"
)

func TestParsePayloadEmailProcess(t *testing.T) {
	msg := NewMessage(JobEmailProcess, map[string]any{
		"account_id":  "acct-1",
		"message_id":  "m-1",
		"subject":     "Invoice",
		"from_email":  "billing@example.com",
		"sent_at":     "2026-03-01T10:00:00Z",
		"body_text":   "Please pay",
		"attachments": []string{"invoice.pdf"},
	})

	payload, err := ParsePayload[EmailProcessPayload](msg)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if payload.AccountID != "acct-1" || payload.MessageID != "m-1" {
		t.Errorf("identity fields wrong: %+v", payload)
	}
	if payload.Subject != "Invoice" || payload.FromEmail != "billing@example.com" {
		t.Errorf("header fields wrong: %+v", payload)
	}
	if len(payload.Attachments) != 1 || payload.Attachments[0] != "invoice.pdf" {
		t.Errorf("attachments wrong: %v", payload.Attachments)
	}
}

func TestParsePayloadIndexRebuild(t *testing.T) {
	msg := NewMessage(JobIndexRebuild, map[string]any{
		"batch_size": 250,
	})

	payload, err := ParsePayload[IndexRebuildPayload](msg)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if payload.BatchSize != 250 {
		t.Errorf("batch size = %d, want 250", payload.BatchSize)
	}
}

func TestParsePayloadMissingFieldsDefaultToZero(t *testing.T) {
	msg := NewMessage(JobIndexRebuild, map[string]any{})

	payload, err := ParsePayload[IndexRebuildPayload](msg)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if payload.BatchSize != 0 {
		t.Errorf("batch size = %d, want zero value", payload.BatchSize)
	}
}
