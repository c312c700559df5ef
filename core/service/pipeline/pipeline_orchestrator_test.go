package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"pipeline_server/adapter/out/index"
	"pipeline_server/core/domain"
	"pipeline_server/core/port/out"
	"pipeline_server/core/service/dedup"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) Dimension() int { return len(f.vec) }

type fakeClassifier struct {
	label      domain.RequestType
	confidence float64
	err        error
	calls      int
}

func (f *fakeClassifier) Classify(_ context.Context, _ string) (domain.RequestType, float64, error) {
	f.calls++
	if f.err != nil {
		return "", 0, f.err
	}
	return f.label, f.confidence, nil
}

type fakeStore struct {
	mu      sync.Mutex
	emails  map[uuid.UUID]*domain.Email
	classes map[uuid.UUID]*domain.Classification
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		emails:  make(map[uuid.UUID]*domain.Email),
		classes: make(map[uuid.UUID]*domain.Classification),
	}
}

func (f *fakeStore) CreateClassified(_ context.Context, email *domain.Email, cls *domain.Classification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.emails[email.ID] = email
	f.classes[email.ID] = cls
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.emails[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return e, nil
}

func (f *fakeStore) GetEmbedding(_ context.Context, id uuid.UUID) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.emails[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return e.Embedding, nil
}

func (f *fakeStore) LatestClassification(_ context.Context, id uuid.UUID) (*domain.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.classes[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return c, nil
}

func (f *fakeStore) ListEmbeddings(_ context.Context, _, _ int) ([]out.EmbeddingRecord, error) {
	return nil, nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.emails, id)
	delete(f.classes, id)
	return nil
}

type fakeLog struct {
	mu        sync.Mutex
	entries   []*domain.ProcessingLogEntry
	lookupErr error
	recordErr error
}

func (f *fakeLog) HasSucceeded(_ context.Context, accountID, messageID string) (*domain.ClassificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.AccountID == accountID && e.MessageID == messageID && e.Status.Succeeded() && e.Result != nil {
			return e.Result, nil
		}
	}
	return nil, nil
}

func (f *fakeLog) Record(_ context.Context, entry *domain.ProcessingLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLog) List(_ context.Context, _, _ int) ([]*domain.ProcessingLogEntry, error) {
	return f.entries, nil
}

func (f *fakeLog) Stats(_ context.Context) (*domain.ProcessingStats, error) {
	return &domain.ProcessingStats{}, nil
}

// =============================================================================
// Harness
// =============================================================================

type fixture struct {
	embedder   *fakeEmbedder
	classifier *fakeClassifier
	store      *fakeStore
	plog       *fakeLog
	idx        *index.MemoryIndex
	orch       *Orchestrator
}

func newFixture(dim int) *fixture {
	vec := make([]float32, dim)
	vec[0] = 1

	f := &fixture{
		embedder:   &fakeEmbedder{vec: vec},
		classifier: &fakeClassifier{label: domain.RequestInvoicePayment, confidence: 0.92},
		store:      newFakeStore(),
		plog:       &fakeLog{},
		idx:        index.NewMemoryIndex(dim),
	}
	f.orch = NewOrchestrator(
		f.embedder,
		f.classifier,
		dedup.NewEngine(f.idx),
		f.store,
		f.plog,
		nil,
		Config{},
	)
	return f
}

func inbound(messageID string) *domain.InboundEmail {
	return &domain.InboundEmail{
		AccountID: "acct-1",
		MessageID: messageID,
		Subject:   "Invoice for April",
		FromEmail: "billing@example.com",
		SentAt:    time.Now(),
		BodyText:  "Please find the invoice attached.",
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestProcessSuccess(t *testing.T) {
	f := newFixture(4)

	result, err := f.orch.Process(context.Background(), inbound("m-1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if result.RequestType != domain.RequestInvoicePayment {
		t.Errorf("request type = %s, want %s", result.RequestType, domain.RequestInvoicePayment)
	}
	if result.IsDuplicate {
		t.Error("first email flagged as duplicate")
	}
	if result.LowConfidence {
		t.Error("confidence 0.92 flagged as low")
	}

	if len(f.store.emails) != 1 {
		t.Fatalf("stored %d emails, want 1", len(f.store.emails))
	}
	if _, ok := f.store.emails[result.EmailID]; !ok {
		t.Error("result email ID does not match stored email")
	}

	if n, _ := f.idx.Len(context.Background()); n != 1 {
		t.Errorf("index has %d entries, want 1", n)
	}

	if len(f.plog.entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(f.plog.entries))
	}
	entry := f.plog.entries[0]
	if entry.Status != domain.StatusSuccess {
		t.Errorf("status = %s, want success", entry.Status)
	}
	if entry.Result == nil || entry.EmailID == nil {
		t.Error("success entry missing result or email ID")
	}
}

func TestProcessDuplicate(t *testing.T) {
	f := newFixture(4)
	ctx := context.Background()

	first, err := f.orch.Process(ctx, inbound("m-1"))
	if err != nil {
		t.Fatalf("first process: %v", err)
	}

	// Same embedding, different message: a near-duplicate.
	second, err := f.orch.Process(ctx, inbound("m-2"))
	if err != nil {
		t.Fatalf("second process: %v", err)
	}

	if !second.IsDuplicate {
		t.Fatal("second email not flagged as duplicate")
	}
	if len(second.SimilarEmails) != 1 || second.SimilarEmails[0].EmailID != first.EmailID {
		t.Errorf("similar emails = %v, want [%s]", second.SimilarEmails, first.EmailID)
	}

	// Duplicates are still classified and persisted.
	if second.RequestType != domain.RequestInvoicePayment {
		t.Errorf("duplicate not classified: %s", second.RequestType)
	}
	if len(f.store.emails) != 2 {
		t.Errorf("stored %d emails, want 2", len(f.store.emails))
	}

	if f.plog.entries[1].Status != domain.StatusDuplicate {
		t.Errorf("second entry status = %s, want duplicate", f.plog.entries[1].Status)
	}
}

func TestProcessIdempotentReplay(t *testing.T) {
	f := newFixture(4)
	ctx := context.Background()

	first, err := f.orch.Process(ctx, inbound("m-1"))
	if err != nil {
		t.Fatalf("first process: %v", err)
	}
	embedCalls := f.embedder.calls

	replay, err := f.orch.Process(ctx, inbound("m-1"))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	if replay.EmailID != first.EmailID {
		t.Errorf("replay returned %s, want stored %s", replay.EmailID, first.EmailID)
	}
	if f.embedder.calls != embedCalls {
		t.Error("replay hit the embedder")
	}
	if len(f.store.emails) != 1 {
		t.Errorf("replay stored a second email")
	}
	if len(f.plog.entries) != 1 {
		t.Errorf("replay appended a log entry")
	}
}

func TestProcessEmbeddingFailure(t *testing.T) {
	f := newFixture(4)
	f.embedder.err = errors.New("provider down")

	_, err := f.orch.Process(context.Background(), inbound("m-1"))

	var embErr *domain.EmbeddingFailure
	if !errors.As(err, &embErr) {
		t.Fatalf("got %v, want EmbeddingFailure", err)
	}

	if len(f.store.emails) != 0 {
		t.Error("failed attempt persisted an email")
	}
	if len(f.plog.entries) != 1 {
		t.Fatalf("logged %d entries, want 1 error entry", len(f.plog.entries))
	}
	entry := f.plog.entries[0]
	if entry.Status != domain.StatusError {
		t.Errorf("status = %s, want error", entry.Status)
	}
	if entry.ErrorDetail == nil {
		t.Error("error entry missing detail")
	}
	if entry.Result != nil {
		t.Error("error entry carries a result")
	}
}

func TestProcessClassificationFailure(t *testing.T) {
	f := newFixture(4)
	f.classifier.err = errors.New("model unavailable")

	_, err := f.orch.Process(context.Background(), inbound("m-1"))

	var clsErr *domain.ClassificationFailure
	if !errors.As(err, &clsErr) {
		t.Fatalf("got %v, want ClassificationFailure", err)
	}
	if len(f.store.emails) != 0 {
		t.Error("failed attempt persisted an email")
	}
	if n, _ := f.idx.Len(context.Background()); n != 0 {
		t.Error("failed attempt entered the index")
	}
}

func TestProcessInvalidLabel(t *testing.T) {
	f := newFixture(4)
	f.classifier.label = "SOMETHING_ELSE"

	_, err := f.orch.Process(context.Background(), inbound("m-1"))

	var clsErr *domain.ClassificationFailure
	if !errors.As(err, &clsErr) {
		t.Fatalf("got %v, want ClassificationFailure for unknown label", err)
	}
}

func TestProcessPersistenceFailureIsAtomic(t *testing.T) {
	f := newFixture(4)
	f.store.err = errors.New("disk full")

	_, err := f.orch.Process(context.Background(), inbound("m-1"))

	var persErr *domain.PersistenceFailure
	if !errors.As(err, &persErr) {
		t.Fatalf("got %v, want PersistenceFailure", err)
	}

	if n, _ := f.idx.Len(context.Background()); n != 0 {
		t.Error("index gained an entry despite persist failure")
	}
	if len(f.plog.entries) != 1 || f.plog.entries[0].Status != domain.StatusError {
		t.Errorf("expected one error entry, got %v", f.plog.entries)
	}

	// After the failure clears, the same message processes cleanly.
	f.store.err = nil
	result, err := f.orch.Process(context.Background(), inbound("m-1"))
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if result.IsDuplicate {
		t.Error("retry flagged as duplicate of its own failed attempt")
	}
}

func TestProcessLowConfidence(t *testing.T) {
	f := newFixture(4)
	f.classifier.confidence = 0.4

	result, err := f.orch.Process(context.Background(), inbound("m-1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if !result.LowConfidence {
		t.Error("confidence 0.4 not flagged as low")
	}
	// Flagged, never rewritten.
	if result.Confidence != 0.4 {
		t.Errorf("confidence = %f, want 0.4 unchanged", result.Confidence)
	}
	if len(f.store.emails) != 1 {
		t.Error("low-confidence result not persisted")
	}
}

func TestProcessDimensionMismatchIsConfigurationError(t *testing.T) {
	f := newFixture(4)
	f.embedder.vec = []float32{1, 0} // index expects 4

	_, err := f.orch.Process(context.Background(), inbound("m-1"))

	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want ConfigurationError", err)
	}
	if len(f.store.emails) != 0 {
		t.Error("misconfigured attempt persisted an email")
	}
}

func TestProcessCancelledBeforeStart(t *testing.T) {
	f := newFixture(4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orch.Process(ctx, inbound("m-1"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}

	// Cancelled attempts never reach storage or the log.
	if len(f.store.emails) != 0 {
		t.Error("cancelled attempt persisted an email")
	}
	if len(f.plog.entries) != 0 {
		t.Errorf("cancelled attempt logged %d entries", len(f.plog.entries))
	}
}

func TestProcessInvalidInput(t *testing.T) {
	f := newFixture(4)

	_, err := f.orch.Process(context.Background(), &domain.InboundEmail{})
	if err == nil {
		t.Fatal("empty inbound email accepted")
	}
	if f.embedder.calls != 0 {
		t.Error("invalid input reached the embedder")
	}
}

func TestProcessLogWriteFailureAfterPersist(t *testing.T) {
	f := newFixture(4)

	// Let HasSucceeded pass, fail only the Record call.
	f.plog.recordErr = errors.New("log table locked")

	_, err := f.orch.Process(context.Background(), inbound("m-1"))

	var persErr *domain.PersistenceFailure
	if !errors.As(err, &persErr) {
		t.Fatalf("got %v, want PersistenceFailure when the success record cannot be written", err)
	}
}
