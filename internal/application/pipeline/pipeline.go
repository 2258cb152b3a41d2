// Package pipeline runs one invoice through extraction, PO matching,
// discrepancy detection, resolution and optional review.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/application/port"
	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-reconciliation/internal/domain/workflow"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/discrepancy"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/matcher"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/resolution"
)

// Stage trace keys
const (
	StageExtraction  = "extraction"
	StageMatching    = "matching"
	StageDiscrepancy = "discrepancy_detection"
	StageResolution  = "resolution"
	StageReview      = "review"
)

const (
	unknownInvoiceID  = "UNKNOWN"
	statusSuccess     = "success"
	statusPartial     = "partial"
	statusFailed      = "failed"
	statusSkipped     = "skipped"
	providedReasoning = "Invoice data supplied pre-extracted."
)

// ErrNoInvoiceData is recorded when extraction returns nothing usable
var ErrNoInvoiceData = errors.New("extraction produced no invoice data")

// Config holds pipeline timeouts
type Config struct {
	ExtractionTimeout time.Duration
	ReviewTimeout     time.Duration
}

// DefaultConfig returns the default timeouts
func DefaultConfig() Config {
	return Config{
		ExtractionTimeout: 2 * time.Minute,
		ReviewTimeout:     time.Minute,
	}
}

// Pipeline wires the stages together. The pure stages are shared, so a
// Pipeline is safe for concurrent runs.
type Pipeline struct {
	extractor port.Extractor
	reviewer  port.Reviewer
	matcher   *matcher.Matcher
	detector  *discrepancy.Detector
	resolver  *resolution.Engine
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a pipeline. reviewer may be nil, in which case flagged invoices
// go straight to DONE.
func New(
	extractor port.Extractor,
	reviewer port.Reviewer,
	m *matcher.Matcher,
	d *discrepancy.Detector,
	r *resolution.Engine,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		reviewer:  reviewer,
		matcher:   m,
		detector:  d,
		resolver:  r,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// run is the mutable bookkeeping of one execution. It never leaves this package.
type run struct {
	result    *entity.ReconciliationResult
	sm        domainwf.StateMachine
	start     time.Time
	reasoning []string
}

func (p *Pipeline) newRun(info entity.DocumentInfo) *run {
	start := p.now()
	return &run{
		start: start,
		sm:    BuildPipelineStateMachine(),
		result: &entity.ReconciliationResult{
			RunID:               uuid.NewString(),
			InvoiceID:           unknownInvoiceID,
			ProcessingTimestamp: start.UTC(),
			DocumentInfo:        info,
			DocumentQuality:     entity.QualityUnknown,
			Discrepancies:       []entity.Discrepancy{},
			TotalVariance:       entity.TotalVariance{WithinTolerance: true},
			StageTraces:         map[string]entity.StageTrace{},
		},
	}
}

// Run extracts doc and reconciles it. Extraction failures end in the ERRORED
// state; the returned result is never nil.
func (p *Pipeline) Run(ctx context.Context, doc port.DocumentRef) *entity.ReconciliationResult {
	r := p.newRun(entity.DocumentInfo{
		Filename:        doc.Filename,
		FileSizeKB:      float64(doc.SizeBytes) / 1024,
		DocumentQuality: entity.QualityUnknown,
	})

	p.logger.Info("Reconciliation started",
		zap.String("run_id", r.result.RunID),
		zap.String("filename", doc.Filename))

	stageStart := p.now()
	extraction, err := p.extract(ctx, doc)
	if err != nil {
		return p.fail(ctx, r, stageStart, err)
	}

	p.trace(r, StageExtraction, stageStart, extraction.Confidence, statusSuccess, extraction.Reasoning)
	return p.reconcile(ctx, r, extraction)
}

// RunExtracted reconciles an invoice that was extracted elsewhere
func (p *Pipeline) RunExtracted(ctx context.Context, extraction port.ExtractionResult) *entity.ReconciliationResult {
	r := p.newRun(entity.DocumentInfo{DocumentQuality: extraction.DocumentQuality})

	stageStart := p.now()
	if extraction.Invoice == nil {
		return p.fail(ctx, r, stageStart, ErrNoInvoiceData)
	}
	if extraction.Reasoning == "" {
		extraction.Reasoning = providedReasoning
	}

	p.trace(r, StageExtraction, stageStart, extraction.Confidence, statusSuccess, extraction.Reasoning)
	return p.reconcile(ctx, r, &extraction)
}

func (p *Pipeline) extract(ctx context.Context, doc port.DocumentRef) (*port.ExtractionResult, error) {
	if p.extractor == nil {
		return nil, errors.New("no extractor configured")
	}

	extractCtx := ctx
	if p.cfg.ExtractionTimeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, p.cfg.ExtractionTimeout)
		defer cancel()
	}

	extraction, err := p.extractor.Extract(extractCtx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", doc.Filename, err)
	}
	if extraction == nil || extraction.Invoice == nil {
		return nil, ErrNoInvoiceData
	}
	return extraction, nil
}

// reconcile runs the pure stages and the optional review
func (p *Pipeline) reconcile(ctx context.Context, r *run, extraction *port.ExtractionResult) *entity.ReconciliationResult {
	inv := extraction.Invoice
	quality := extraction.DocumentQuality
	if quality == "" {
		quality = entity.QualityUnknown
	}

	res := r.result
	res.InvoiceID = inv.InvoiceNumber
	if res.InvoiceID == "" {
		res.InvoiceID = unknownInvoiceID
	}
	res.ExtractedData = inv
	res.ExtractionConfidence = extraction.Confidence
	res.DocumentQuality = quality
	res.DocumentInfo.DocumentQuality = quality
	r.reasoning = append(r.reasoning, extraction.Reasoning)

	if err := p.fire(ctx, r, domainwf.TriggerExtracted); err != nil {
		return p.finish(r)
	}

	// Matching
	stageStart := p.now()
	outcome := p.matcher.Match(inv)
	matching := outcome.Result
	res.MatchingResults = &matching
	status := statusPartial
	if matching.Matched() {
		status = statusSuccess
	}
	p.trace(r, StageMatching, stageStart, matching.POMatchConfidence, status, outcome.Reasoning)
	r.reasoning = append(r.reasoning, outcome.Reasoning)
	if err := p.fire(ctx, r, domainwf.TriggerMatched); err != nil {
		return p.finish(r)
	}

	// Discrepancy detection
	stageStart = p.now()
	po := outcome.PO()
	report := p.detector.Detect(inv, po)
	res.Discrepancies = report.Discrepancies
	res.TotalVariance = p.detector.TotalVariance(inv, po)
	detectConfidence, detectStatus := 0.95, statusSuccess
	if po == nil {
		detectConfidence, detectStatus = 0.80, statusPartial
	}
	p.trace(r, StageDiscrepancy, stageStart, detectConfidence, detectStatus, report.Reasoning)
	r.reasoning = append(r.reasoning, report.Reasoning)
	if err := p.fire(ctx, r, domainwf.TriggerDetected); err != nil {
		return p.finish(r)
	}

	// Resolution
	stageStart = p.now()
	outcomeRes := p.resolver.Resolve(resolution.Input{
		InvoiceNumber:        inv.InvoiceNumber,
		ExtractionConfidence: extraction.Confidence,
		DocumentQuality:      quality,
		Matching:             &matching,
		Discrepancies:        report.Discrepancies,
	})
	res.Resolution = &outcomeRes
	res.RecommendedAction = outcomeRes.RecommendedAction
	res.RiskLevel = outcomeRes.RiskLevel
	res.OverallConfidence = discrepancy.Round2(0.4*extraction.Confidence + 0.6*matching.POMatchConfidence)
	p.trace(r, StageResolution, stageStart, 0.95, statusSuccess,
		fmt.Sprintf("Recommended %s based on %d factors", outcomeRes.RecommendedAction, len(outcomeRes.RiskFactors)))
	r.reasoning = append(r.reasoning, outcomeRes.Reasoning)

	wantsReview := p.reviewer != nil && outcomeRes.RecommendedAction.NeedsHuman()
	if err := p.fire(withReviewWanted(ctx, wantsReview), r, domainwf.TriggerResolved); err != nil {
		return p.finish(r)
	}

	if r.sm.State() == domainwf.StateReviewing {
		p.review(ctx, r, po)
		if err := p.fire(ctx, r, domainwf.TriggerReviewed); err != nil {
			return p.finish(r)
		}
	} else if outcomeRes.RecommendedAction == entity.ActionAutoApprove {
		p.trace(r, StageReview, p.now(), 1.0, statusSkipped, "Auto-approved invoice, no review needed")
	}

	return p.finish(r)
}

// review asks the reviewer for a second opinion. Failures are recorded, not returned.
func (p *Pipeline) review(ctx context.Context, r *run, po *entity.PurchaseOrder) {
	res := r.result
	stageStart := p.now()

	reviewCtx := ctx
	if p.cfg.ReviewTimeout > 0 {
		var cancel context.CancelFunc
		reviewCtx, cancel = context.WithTimeout(ctx, p.cfg.ReviewTimeout)
		defer cancel()
	}

	review, err := p.reviewer.Review(reviewCtx, entity.ReviewRequest{
		Invoice:           res.ExtractedData,
		MatchedPO:         po,
		Discrepancies:     res.Discrepancies,
		RecommendedAction: res.RecommendedAction,
	})
	if err == nil && review == nil {
		err = errors.New("reviewer returned no result")
	}
	if err != nil {
		p.logger.Warn("Review failed",
			zap.String("run_id", res.RunID),
			zap.Error(err))
		feedback := fmt.Sprintf("Human review simulation failed: %v", err)
		res.HumanReviewFeedback = &feedback
		res.NeedsReprocessing = false
		p.trace(r, StageReview, stageStart, 0.5, statusFailed, fmt.Sprintf("Review simulation error: %v", err))
		r.reasoning = append(r.reasoning, "Human Reviewer: "+feedback)
		return
	}

	feedback := review.Feedback
	res.Review = review
	res.HumanReviewFeedback = &feedback
	res.NeedsReprocessing = review.NeedsReprocessing()

	reasoning := fmt.Sprintf("Human Reviewer simulation: %s. %s", review.ApprovalStatus, review.Feedback)
	if n := len(review.Corrections); n > 0 {
		reasoning += fmt.Sprintf(" Suggested %d corrections.", n)
	}
	p.trace(r, StageReview, stageStart, review.Confidence, statusSuccess, reasoning)
	if feedback != "" {
		r.reasoning = append(r.reasoning, "Human Reviewer: "+feedback)
	}
}

// fail moves the run to ERRORED and records the escalation
func (p *Pipeline) fail(ctx context.Context, r *run, stageStart time.Time, cause error) *entity.ReconciliationResult {
	res := r.result
	msg := cause.Error()

	p.logger.Error("Extraction failed",
		zap.String("run_id", res.RunID),
		zap.String("filename", res.DocumentInfo.Filename),
		zap.Error(cause))

	p.trace(r, StageExtraction, stageStart, 0, statusFailed, msg)
	res.Error = msg
	res.ExtractionConfidence = 0
	res.DocumentQuality = entity.QualityPoor
	res.DocumentInfo.DocumentQuality = entity.QualityPoor
	res.RecommendedAction = entity.ActionEscalate
	res.RiskLevel = entity.RiskHigh
	r.reasoning = append(r.reasoning, fmt.Sprintf("Processing failed with errors: %s. Manual review required.", msg))

	_ = p.fire(ctx, r, domainwf.TriggerExtractionFailed)
	return p.finish(r)
}

func (p *Pipeline) fire(ctx context.Context, r *run, trigger domainwf.Trigger) error {
	if err := r.sm.Fire(ctx, trigger); err != nil {
		p.logger.Error("State transition failed",
			zap.String("run_id", r.result.RunID),
			zap.String("trigger", trigger.String()),
			zap.Error(err))
		if r.result.Error == "" {
			r.result.Error = err.Error()
		}
		return err
	}
	return nil
}

func (p *Pipeline) trace(r *run, stage string, start time.Time, confidence float64, status, reasoning string) {
	r.result.StageTraces[stage] = entity.StageTrace{
		DurationMS: p.now().Sub(start).Milliseconds(),
		Confidence: confidence,
		Status:     status,
		Reasoning:  reasoning,
	}
}

func (p *Pipeline) finish(r *run) *entity.ReconciliationResult {
	res := r.result
	res.AgentReasoning = strings.Join(nonEmpty(r.reasoning), " ")
	res.ProcessingDurationSeconds = discrepancy.Round2(p.now().Sub(r.start).Seconds())

	history := r.sm.History()
	res.States = make([]string, len(history))
	for i, s := range history {
		res.States[i] = s.String()
	}

	p.logger.Info("Reconciliation finished",
		zap.String("run_id", res.RunID),
		zap.String("invoice_id", res.InvoiceID),
		zap.String("state", r.sm.State().String()),
		zap.String("action", string(res.RecommendedAction)),
		zap.Float64("confidence", res.OverallConfidence))

	return res
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
