// Package classification provides the classifier backends. The rule
// classifier keeps the pipeline runnable without an LLM key and serves
// as the deterministic fallback; the LLM classifier lives in
// adapter/out/provider.
package classification

import (
	"context"
	"strings"

	"pipeline_server/core/domain"
)

// keywordRule maps substring hits to a label with a fixed confidence.
// First matching rule wins, so more specific intents sit higher.
type keywordRule struct {
	keywords    []string
	requestType domain.RequestType
	confidence  float64
}

var rules = []keywordRule{
	{[]string{"reimburs"}, domain.RequestReimbursement, 0.85},
	{[]string{"statement"}, domain.RequestStatementRequest, 0.81},
	{[]string{"invoice", "payment"}, domain.RequestInvoicePayment, 0.78},
	{[]string{"account", "balance"}, domain.RequestAccountInquiry, 0.72},
}

// otherConfidence is deliberately below the low-confidence floor so
// OTHER results always carry the review flag.
const otherConfidence = 0.60

// RuleClassifier assigns labels by keyword matching. Deterministic
// and dependency-free.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

func (c *RuleClassifier) Classify(_ context.Context, text string) (domain.RequestType, float64, error) {
	lowered := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lowered, kw) {
				return r.requestType, r.confidence, nil
			}
		}
	}
	return domain.RequestOther, otherConfidence, nil
}
