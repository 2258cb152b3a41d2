package port

import (
	"context"

	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
)

// DocumentRef points at an invoice document on local disk
type DocumentRef struct {
	Path      string
	Filename  string
	SizeBytes int64
}

// ExtractionResult is what an Extractor produced for one document
type ExtractionResult struct {
	Invoice         *entity.ExtractedInvoice
	Confidence      float64
	DocumentQuality string
	Reasoning       string
}

// Extractor turns a document into structured invoice data
type Extractor interface {
	Extract(ctx context.Context, doc DocumentRef) (*ExtractionResult, error)
}

// Reviewer gives a second opinion on flagged or escalated invoices
type Reviewer interface {
	Review(ctx context.Context, req entity.ReviewRequest) (*entity.ReviewResult, error)
}

// EscalationNotifier tells a human channel about an escalated invoice
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, result *entity.ReconciliationResult) error
}
