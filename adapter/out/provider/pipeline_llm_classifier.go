package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"pipeline_server/core/domain"
)

const classifyPrompt = `You label customer emails for a finance back office.
Assign exactly one request type from this list:
- REIMBURSEMENT: employee or customer asks for money back
- INVOICE_PAYMENT: an invoice, a bill, or a payment to be made
- ACCOUNT_INQUIRY: questions about an account or its balance
- STATEMENT_REQUEST: asks for an account statement or transaction history
- OTHER: anything else

Respond with JSON only: {"request_type": "<label>", "confidence": <0.0-1.0>}

Email:
%s`

// LLMClassifier labels emails with a chat completion constrained to
// JSON output.
type LLMClassifier struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	cb          *gobreaker.CircuitBreaker
}

type LLMClassifierConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func NewLLMClassifier(cfg LLMClassifierConfig) *LLMClassifier {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &LLMClassifier{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     cfg.Timeout,
		cb:          gobreaker.NewCircuitBreaker(breakerSettings("openai-classifier")),
	}
}

type classifyResponse struct {
	RequestType string  `json:"request_type"`
	Confidence  float64 `json:"confidence"`
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) (domain.RequestType, float64, error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.cb.Execute(func() (interface{}, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: fmt.Sprintf(classifyPrompt, text),
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("empty completion response")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		if parent.Err() != nil {
			return "", 0, parent.Err()
		}
		return "", 0, &domain.ClassificationFailure{Err: err}
	}

	var parsed classifyResponse
	if err := json.Unmarshal([]byte(res.(string)), &parsed); err != nil {
		return "", 0, &domain.ClassificationFailure{Err: fmt.Errorf("malformed classifier output: %w", err)}
	}

	label := domain.RequestType(strings.ToUpper(strings.TrimSpace(parsed.RequestType)))
	if !label.Valid() {
		return "", 0, &domain.ClassificationFailure{Err: fmt.Errorf("unknown request type %q", parsed.RequestType)}
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return label, confidence, nil
}
