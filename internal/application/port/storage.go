package port

import (
	"context"

	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
)

// ResultStore persists reconciliation results
type ResultStore interface {
	Save(ctx context.Context, result *entity.ReconciliationResult) (string, error)
	Load(ctx context.Context, invoiceID string) (*entity.ReconciliationResult, error)
	List(ctx context.Context) ([]string, error)
}

// ReportWriter writes a batch of results to a report file
type ReportWriter interface {
	Write(path string, results []*entity.ReconciliationResult) error
}
