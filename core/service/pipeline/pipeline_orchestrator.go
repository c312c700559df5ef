// Package pipeline runs one email through the fixed processing
// sequence: idempotency check, embed, classify, duplicate check,
// atomic persist, log. Every attempt terminates in exactly one
// processing log entry unless it was cancelled before anything was
// stored.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pipeline_server/core/domain"
	"pipeline_server/core/port/out"
	"pipeline_server/core/service/dedup"
	"pipeline_server/pkg/logger"
)

// Config carries the tunables of one orchestrator instance.
type Config struct {
	// DuplicateThreshold is the minimum cosine similarity for a
	// stored email to count as a duplicate.
	DuplicateThreshold float64

	// MinConfidence is the floor below which results are flagged
	// low-confidence. They are still persisted unchanged.
	MinConfidence float64
}

func (c Config) withDefaults() Config {
	if c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1 {
		c.DuplicateThreshold = domain.DuplicateThreshold
	}
	if c.MinConfidence <= 0 || c.MinConfidence > 1 {
		c.MinConfidence = domain.MinConfidence
	}
	return c
}

// Orchestrator wires the pipeline stages together. It owns ordering
// and failure handling; the stages themselves live behind ports.
type Orchestrator struct {
	embedder   out.Embedder
	classifier out.Classifier
	dedup      *dedup.Engine
	store      out.EmailStore
	plog       out.ProcessingLog
	cache      out.ResultCache // optional
	cfg        Config
}

func NewOrchestrator(
	embedder out.Embedder,
	classifier out.Classifier,
	dedupEngine *dedup.Engine,
	store out.EmailStore,
	plog out.ProcessingLog,
	cache out.ResultCache,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		embedder:   embedder,
		classifier: classifier,
		dedup:      dedupEngine,
		store:      store,
		plog:       plog,
		cache:      cache,
		cfg:        cfg.withDefaults(),
	}
}

// Process runs one inbound email through the pipeline. Reprocessing an
// email whose (account_id, message_id) already has a successful log
// entry returns the stored result without touching any stage.
//
// Cancellation is honored between stages up to the persist step; once
// persistence starts, persist and log run to completion so storage and
// log cannot disagree.
func (o *Orchestrator) Process(ctx context.Context, in *domain.InboundEmail) (*domain.ClassificationResult, error) {
	start := time.Now()

	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid inbound email: %w", err)
	}

	// Idempotency short-circuit. The cache is read-through sugar;
	// the processing log is what decides.
	if o.cache != nil {
		if cached, err := o.cache.Get(ctx, in.AccountID, in.MessageID); err == nil && cached != nil {
			return cached, nil
		}
	}
	prior, err := o.plog.HasSucceeded(ctx, in.AccountID, in.MessageID)
	if err != nil {
		return nil, &domain.PersistenceFailure{Err: fmt.Errorf("failed to check processing log: %w", err)}
	}
	if prior != nil {
		o.cacheResult(ctx, in, prior)
		logger.WithFields(map[string]any{
			"account_id": in.AccountID,
			"message_id": in.MessageID,
		}).Debug("replay short-circuited by processing log")
		return prior, nil
	}

	// Embed.
	vec, err := o.embedder.Embed(ctx, in.EmbeddingText())
	if err != nil {
		return nil, o.fail(ctx, in, start, asStageError(err, func(e error) error { return &domain.EmbeddingFailure{Err: e} }))
	}
	vec = domain.NormalizeVector(vec)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Classify. The embedding is discarded if this fails; nothing
	// has been stored yet.
	label, confidence, err := o.classifier.Classify(ctx, in.ClassifierText())
	if err != nil {
		return nil, o.fail(ctx, in, start, asStageError(err, func(e error) error { return &domain.ClassificationFailure{Err: e} }))
	}
	if !label.Valid() {
		return nil, o.fail(ctx, in, start, &domain.ClassificationFailure{Err: fmt.Errorf("unknown request type %q", label)})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Duplicate check runs against the index BEFORE this email is
	// inserted, so it can never match itself.
	verdict, err := o.dedup.Check(ctx, vec, o.cfg.DuplicateThreshold)
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, o.fail(ctx, in, start, cfgErr)
		}
		return nil, o.fail(ctx, in, start, &domain.PersistenceFailure{Err: err})
	}

	// Last cancellation point. From here on the attempt runs to
	// completion even if the caller goes away.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	persistCtx := context.WithoutCancel(ctx)

	email := domain.NewEmail(in, vec)
	cls := &domain.Classification{
		EmailID:     email.ID,
		RequestType: label,
		Confidence:  confidence,
		IsDuplicate: verdict.IsDuplicate,
	}
	if err := o.store.CreateClassified(persistCtx, email, cls); err != nil {
		return nil, o.fail(persistCtx, in, start, &domain.PersistenceFailure{Err: err})
	}

	// Storage is the source of truth for the index; an in-process
	// index that misses this insert catches up on the next rebuild.
	if err := o.dedup.Insert(persistCtx, email.ID, vec); err != nil {
		logger.WithField("email_id", email.ID.String()).WithError(err).Warn("failed to insert into similarity index")
	}

	result := &domain.ClassificationResult{
		EmailID:       email.ID,
		RequestType:   label,
		Confidence:    confidence,
		LowConfidence: confidence < o.cfg.MinConfidence,
		IsDuplicate:   verdict.IsDuplicate,
		SimilarEmails: verdict.Matches,
	}

	status := domain.StatusSuccess
	if verdict.IsDuplicate {
		status = domain.StatusDuplicate
	}
	entry := domain.NewLogEntry(in.AccountID, in.MessageID, status, time.Since(start))
	entry.EmailID = &email.ID
	entry.Result = result
	if err := o.plog.Record(persistCtx, entry); err != nil {
		// The email row exists but the attempt has no durable
		// success record; callers must treat this as failed so a
		// retry can produce one.
		return nil, &domain.PersistenceFailure{Err: fmt.Errorf("failed to record processing log: %w", err)}
	}

	o.cacheResult(persistCtx, in, result)

	logger.WithFields(map[string]any{
		"account_id":   in.AccountID,
		"message_id":   in.MessageID,
		"email_id":     email.ID.String(),
		"request_type": string(label),
		"confidence":   confidence,
		"is_duplicate": verdict.IsDuplicate,
	}).WithDuration(time.Since(start)).Info("email processed")

	return result, nil
}

// fail records an error log entry for the attempt and returns the
// typed stage error. Cancellation errors pass through unrecorded; a
// cancelled attempt never reached storage.
func (o *Orchestrator) fail(ctx context.Context, in *domain.InboundEmail, start time.Time, stageErr error) error {
	if errors.Is(stageErr, context.Canceled) || errors.Is(stageErr, context.DeadlineExceeded) {
		return stageErr
	}

	detail := stageErr.Error()
	entry := domain.NewLogEntry(in.AccountID, in.MessageID, domain.StatusError, time.Since(start))
	entry.ErrorDetail = &detail

	logCtx := context.WithoutCancel(ctx)
	if err := o.plog.Record(logCtx, entry); err != nil {
		logger.WithFields(map[string]any{
			"account_id": in.AccountID,
			"message_id": in.MessageID,
		}).WithError(err).Error("failed to record error log entry")
	}

	logger.WithFields(map[string]any{
		"account_id": in.AccountID,
		"message_id": in.MessageID,
	}).WithError(stageErr).Error("email processing failed")
	return stageErr
}

func (o *Orchestrator) cacheResult(ctx context.Context, in *domain.InboundEmail, result *domain.ClassificationResult) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Set(ctx, in.AccountID, in.MessageID, result); err != nil {
		logger.WithField("message_id", in.MessageID).WithError(err).Warn("failed to cache result")
	}
}

// asStageError wraps err unless it is already one of the typed
// pipeline errors or a cancellation.
func asStageError(err error, wrap func(error) error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var (
		embErr *domain.EmbeddingFailure
		clsErr *domain.ClassificationFailure
		cfgErr *domain.ConfigurationError
	)
	if errors.As(err, &embErr) || errors.As(err, &clsErr) || errors.As(err, &cfgErr) {
		return err
	}
	return wrap(err)
}
