package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/invoice-reconciliation/internal/application/port"
	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
)

// DefaultConcurrency bounds how many documents a batch reconciles at once
const DefaultConcurrency = 4

// Runner runs the reconciliation pipeline for one invoice
type Runner interface {
	Run(ctx context.Context, doc port.DocumentRef) *entity.ReconciliationResult
	RunExtracted(ctx context.Context, extraction port.ExtractionResult) *entity.ReconciliationResult
}

// ProgressFunc is called after each document of a batch finishes
type ProgressFunc func(done, total int, result *entity.ReconciliationResult)

// BatchOptions controls ProcessBatch
type BatchOptions struct {
	Concurrency int
	Progress    ProgressFunc
	ReportPath  string
}

// BatchSummary is the outcome of a batch run. Results keep input order.
type BatchSummary struct {
	Results    []*entity.ReconciliationResult
	ByAction   map[entity.Action]int
	Failed     int
	ReportPath string
}

// ReconciliationService runs invoices through the pipeline and handles what
// happens to the results afterwards
type ReconciliationService interface {
	ProcessDocument(ctx context.Context, doc port.DocumentRef) (*entity.ReconciliationResult, error)
	ReconcileExtracted(ctx context.Context, extraction port.ExtractionResult) (*entity.ReconciliationResult, error)
	ProcessBatch(ctx context.Context, docs []port.DocumentRef, opts BatchOptions) (*BatchSummary, error)
	GetResult(ctx context.Context, key string) (*entity.ReconciliationResult, error)
	ListResults(ctx context.Context) ([]string, error)
}

type reconciliationServiceImpl struct {
	runner   Runner
	store    port.ResultStore
	notifier port.EscalationNotifier
	report   port.ReportWriter
	logger   *zap.Logger
}

// NewReconciliationService creates a service. store, notifier and report may be nil.
func NewReconciliationService(
	runner Runner,
	store port.ResultStore,
	notifier port.EscalationNotifier,
	report port.ReportWriter,
	logger *zap.Logger,
) ReconciliationService {
	return &reconciliationServiceImpl{
		runner:   runner,
		store:    store,
		notifier: notifier,
		report:   report,
		logger:   logger,
	}
}

// ProcessDocument reconciles one document. The result is returned even when
// saving it fails.
func (s *reconciliationServiceImpl) ProcessDocument(ctx context.Context, doc port.DocumentRef) (*entity.ReconciliationResult, error) {
	s.logger.Info("Reconciling document",
		zap.String("file", doc.Filename),
		zap.Int64("size_bytes", doc.SizeBytes))

	result := s.runner.Run(ctx, doc)
	return result, s.afterRun(ctx, result)
}

// ReconcileExtracted reconciles an invoice that was extracted elsewhere
func (s *reconciliationServiceImpl) ReconcileExtracted(ctx context.Context, extraction port.ExtractionResult) (*entity.ReconciliationResult, error) {
	result := s.runner.RunExtracted(ctx, extraction)
	return result, s.afterRun(ctx, result)
}

// afterRun notifies and saves a finished run. A run that failed because ctx
// was cancelled is neither notified nor saved; the caller gets the
// cancellation back so the document can be retried.
func (s *reconciliationServiceImpl) afterRun(ctx context.Context, result *entity.ReconciliationResult) error {
	if result.Failed() && errors.Is(ctx.Err(), context.Canceled) {
		s.logger.Warn("Reconciliation cancelled, result discarded",
			zap.String("run_id", result.RunID),
			zap.String("file", result.DocumentInfo.Filename))
		return fmt.Errorf("reconciliation cancelled: %w", ctx.Err())
	}

	s.logger.Info("Reconciliation finished",
		zap.String("run_id", result.RunID),
		zap.String("invoice_id", result.InvoiceID),
		zap.String("action", string(result.RecommendedAction)),
		zap.String("risk", string(result.RiskLevel)),
		zap.Float64("confidence", result.OverallConfidence),
		zap.Int("discrepancies", len(result.Discrepancies)))

	if result.RecommendedAction == entity.ActionEscalate && s.notifier != nil {
		if err := s.notifier.NotifyEscalation(ctx, result); err != nil {
			s.logger.Warn("Failed to notify escalation",
				zap.String("invoice_id", result.InvoiceID),
				zap.Error(err))
		}
	}

	if s.store == nil {
		return nil
	}
	path, err := s.store.Save(ctx, result)
	if err != nil {
		s.logger.Error("Failed to save result",
			zap.String("invoice_id", result.InvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to save result for %s: %w", result.InvoiceID, err)
	}
	s.logger.Debug("Result saved", zap.String("path", path))
	return nil
}

// ProcessBatch reconciles docs with bounded concurrency. A failed save does
// not stop the batch; the first such error is returned alongside the summary.
// Once ctx is cancelled no further documents are started, and documents
// whose run was cancelled are left out of the summary.
func (s *reconciliationServiceImpl) ProcessBatch(ctx context.Context, docs []port.DocumentRef, opts BatchOptions) (*BatchSummary, error) {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	slots := make([]*entity.ReconciliationResult, len(docs))

	var (
		mu       sync.Mutex
		done     int
		firstErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, doc := range docs {
		if gctx.Err() != nil {
			break
		}
		i, doc := i, doc
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			result, err := s.ProcessDocument(gctx, doc)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			slots[i] = result

			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if opts.Progress != nil {
				opts.Progress(done, len(docs), result)
			}
			return nil
		})
	}
	_ = g.Wait()

	results := make([]*entity.ReconciliationResult, 0, len(docs))
	for _, r := range slots {
		if r != nil {
			results = append(results, r)
		}
	}

	summary := &BatchSummary{
		Results:  results,
		ByAction: make(map[entity.Action]int),
	}
	for _, r := range results {
		summary.ByAction[r.RecommendedAction]++
		if r.Failed() {
			summary.Failed++
		}
	}

	if opts.ReportPath != "" && s.report != nil {
		if err := s.report.Write(opts.ReportPath, results); err != nil {
			return summary, fmt.Errorf("failed to write report: %w", err)
		}
		summary.ReportPath = opts.ReportPath
	}

	s.logger.Info("Batch finished",
		zap.Int("documents", len(docs)),
		zap.Int("reconciled", len(results)),
		zap.Int("failed", summary.Failed),
		zap.Int("auto_approve", summary.ByAction[entity.ActionAutoApprove]),
		zap.Int("flag_for_review", summary.ByAction[entity.ActionFlagForReview]),
		zap.Int("escalate_to_human", summary.ByAction[entity.ActionEscalate]))

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("batch cancelled after %d of %d documents: %w", len(results), len(docs), err)
	}
	return summary, firstErr
}

// GetResult loads a stored result
func (s *reconciliationServiceImpl) GetResult(ctx context.Context, key string) (*entity.ReconciliationResult, error) {
	if s.store == nil {
		return nil, ErrNoResultStore
	}
	return s.store.Load(ctx, key)
}

// ListResults returns the keys of stored results
func (s *reconciliationServiceImpl) ListResults(ctx context.Context) ([]string, error) {
	if s.store == nil {
		return nil, ErrNoResultStore
	}
	return s.store.List(ctx)
}
