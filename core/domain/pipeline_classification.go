package domain

import (
	"time"

	"github.com/google/uuid"
)

// RequestType is the closed label set the classifier assigns.
type RequestType string

const (
	RequestReimbursement    RequestType = "REIMBURSEMENT"
	RequestInvoicePayment   RequestType = "INVOICE_PAYMENT"
	RequestAccountInquiry   RequestType = "ACCOUNT_INQUIRY"
	RequestStatementRequest RequestType = "STATEMENT_REQUEST"
	RequestOther            RequestType = "OTHER"
)

// RequestTypes returns all labels in their canonical order.
func RequestTypes() []RequestType {
	return []RequestType{
		RequestReimbursement,
		RequestInvoicePayment,
		RequestAccountInquiry,
		RequestStatementRequest,
		RequestOther,
	}
}

// Valid reports whether t is one of the known labels.
func (t RequestType) Valid() bool {
	switch t {
	case RequestReimbursement, RequestInvoicePayment, RequestAccountInquiry,
		RequestStatementRequest, RequestOther:
		return true
	}
	return false
}

// MinConfidence is the default floor below which a classification is
// flagged low-confidence. Low-confidence results are persisted as-is;
// the flag only signals that a human may want a second look.
const MinConfidence = 0.65

// DuplicateThreshold is the default cosine similarity at or above
// which a stored email counts as a duplicate.
const DuplicateThreshold = 0.9

// Classification is the persisted outcome of classifying one email.
type Classification struct {
	ID          int64       `json:"id" db:"id"`
	EmailID     uuid.UUID   `json:"email_id" db:"email_id"`
	RequestType RequestType `json:"request_type" db:"request_type"`
	Confidence  float64     `json:"confidence" db:"confidence"`
	IsDuplicate bool        `json:"is_duplicate" db:"is_duplicate"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// LowConfidence reports whether the classification fell below the
// given floor.
func (c *Classification) LowConfidence(floor float64) bool {
	return c.Confidence < floor
}

// SimilarEmail is one near-duplicate match, similarity in [0,1].
type SimilarEmail struct {
	EmailID    uuid.UUID `json:"email_id"`
	Similarity float64   `json:"similarity"`
}

// DuplicateVerdict is the outcome of a duplicate check. Matches are
// ordered by descending similarity.
type DuplicateVerdict struct {
	IsDuplicate bool           `json:"is_duplicate"`
	Matches     []SimilarEmail `json:"matches"`
}

// ClassificationResult is the caller-facing summary of one processing
// attempt. It is also what the processing log stores for successful
// attempts, so replays can return the original outcome verbatim.
type ClassificationResult struct {
	EmailID       uuid.UUID      `json:"email_id"`
	RequestType   RequestType    `json:"request_type"`
	Confidence    float64        `json:"confidence"`
	LowConfidence bool           `json:"low_confidence"`
	IsDuplicate   bool           `json:"is_duplicate"`
	SimilarEmails []SimilarEmail `json:"similar_emails"`
}
