package classification

import (
	"context"
	"testing"

	"pipeline_server/core/domain"
)

func TestRuleClassifier(t *testing.T) {
	classifier := NewRuleClassifier()

	tests := []struct {
		name           string
		text           string
		wantType       domain.RequestType
		wantConfidence float64
	}{
		{
			name:           "reimbursement keyword",
			text:           "Please reimburse my travel expenses from last week",
			wantType:       domain.RequestReimbursement,
			wantConfidence: 0.85,
		},
		{
			name:           "reimbursement stem matches reimbursing",
			text:           "Reimbursing the team lunch",
			wantType:       domain.RequestReimbursement,
			wantConfidence: 0.85,
		},
		{
			name:           "statement request",
			text:           "Could you send me my statement for March?",
			wantType:       domain.RequestStatementRequest,
			wantConfidence: 0.81,
		},
		{
			name:           "invoice keyword",
			text:           "Attached is the invoice for services rendered",
			wantType:       domain.RequestInvoicePayment,
			wantConfidence: 0.78,
		},
		{
			name:           "payment keyword",
			text:           "When will the payment be processed?",
			wantType:       domain.RequestInvoicePayment,
			wantConfidence: 0.78,
		},
		{
			name:           "account inquiry",
			text:           "I have a question about my account settings",
			wantType:       domain.RequestAccountInquiry,
			wantConfidence: 0.72,
		},
		{
			name:           "balance keyword",
			text:           "What is my current balance?",
			wantType:       domain.RequestAccountInquiry,
			wantConfidence: 0.72,
		},
		{
			name:           "no keyword falls through to other",
			text:           "Hello, just checking in",
			wantType:       domain.RequestOther,
			wantConfidence: 0.60,
		},
		{
			name:           "case insensitive",
			text:           "REIMBURSEMENT REQUEST",
			wantType:       domain.RequestReimbursement,
			wantConfidence: 0.85,
		},
		{
			name:           "more specific rule wins over later ones",
			text:           "Reimbursement for the invoice on my account",
			wantType:       domain.RequestReimbursement,
			wantConfidence: 0.85,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotConf, err := classifier.Classify(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if gotType != tt.wantType {
				t.Errorf("type = %s, want %s", gotType, tt.wantType)
			}
			if gotConf != tt.wantConfidence {
				t.Errorf("confidence = %f, want %f", gotConf, tt.wantConfidence)
			}
		})
	}
}

func TestRuleClassifierOtherBelowConfidenceFloor(t *testing.T) {
	classifier := NewRuleClassifier()

	_, conf, err := classifier.Classify(context.Background(), "nothing matches here")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if conf >= domain.MinConfidence {
		t.Errorf("OTHER confidence %f should sit below the floor %f", conf, domain.MinConfidence)
	}
}
