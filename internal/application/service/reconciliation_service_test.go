package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/application/port"
	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
)

type mockRunner struct {
	runFunc func(doc port.DocumentRef) *entity.ReconciliationResult
}

func (m *mockRunner) Run(ctx context.Context, doc port.DocumentRef) *entity.ReconciliationResult {
	return m.runFunc(doc)
}

func (m *mockRunner) RunExtracted(ctx context.Context, extraction port.ExtractionResult) *entity.ReconciliationResult {
	return &entity.ReconciliationResult{
		InvoiceID:         extraction.Invoice.InvoiceNumber,
		RecommendedAction: entity.ActionAutoApprove,
		RiskLevel:         entity.RiskLow,
	}
}

type mockStore struct {
	mu      sync.Mutex
	saved   map[string]*entity.ReconciliationResult
	saveErr error
}

func newMockStore() *mockStore {
	return &mockStore{saved: make(map[string]*entity.ReconciliationResult)}
}

func (m *mockStore) Save(ctx context.Context, r *entity.ReconciliationResult) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[r.InvoiceID] = r
	return "/results/" + r.InvoiceID + ".json", nil
}

func (m *mockStore) Load(ctx context.Context, key string) (*entity.ReconciliationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.saved[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}

func (m *mockStore) List(ctx context.Context) ([]string, error) {
	return []string{"INV-1"}, nil
}

type mockNotifier struct {
	mu     sync.Mutex
	sent   []string
	notErr error
}

func (m *mockNotifier) NotifyEscalation(ctx context.Context, r *entity.ReconciliationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, r.InvoiceID)
	return m.notErr
}

type mockReport struct {
	path    string
	results []*entity.ReconciliationResult
}

func (m *mockReport) Write(path string, results []*entity.ReconciliationResult) error {
	m.path = path
	m.results = results
	return nil
}

func actionFor(doc port.DocumentRef) *entity.ReconciliationResult {
	switch doc.Filename {
	case "escalate.pdf":
		return &entity.ReconciliationResult{InvoiceID: "INV-E", RecommendedAction: entity.ActionEscalate, RiskLevel: entity.RiskHigh}
	case "flag.pdf":
		return &entity.ReconciliationResult{InvoiceID: "INV-F", RecommendedAction: entity.ActionFlagForReview, RiskLevel: entity.RiskMedium}
	case "broken.pdf":
		return &entity.ReconciliationResult{InvoiceID: "UNKNOWN", RecommendedAction: entity.ActionEscalate, RiskLevel: entity.RiskHigh, Error: "boom"}
	default:
		return &entity.ReconciliationResult{InvoiceID: "INV-A", RecommendedAction: entity.ActionAutoApprove, RiskLevel: entity.RiskLow}
	}
}

func TestProcessDocument(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		wantNotify bool
	}{
		{"auto approve is saved only", "approve.pdf", false},
		{"flag is saved only", "flag.pdf", false},
		{"escalate notifies", "escalate.pdf", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			notifier := &mockNotifier{}
			svc := NewReconciliationService(&mockRunner{runFunc: actionFor}, store, notifier, nil, zap.NewNop())

			result, err := svc.ProcessDocument(context.Background(), port.DocumentRef{Filename: tt.file})
			require.NoError(t, err)
			require.NotNil(t, result)

			assert.Contains(t, store.saved, result.InvoiceID)
			assert.Equal(t, tt.wantNotify, len(notifier.sent) == 1)
		})
	}
}

func TestProcessDocument_NotifierErrorIgnored(t *testing.T) {
	store := newMockStore()
	notifier := &mockNotifier{notErr: errors.New("lark down")}
	svc := NewReconciliationService(&mockRunner{runFunc: actionFor}, store, notifier, nil, zap.NewNop())

	result, err := svc.ProcessDocument(context.Background(), port.DocumentRef{Filename: "escalate.pdf"})
	require.NoError(t, err)
	assert.Equal(t, entity.ActionEscalate, result.RecommendedAction)
	assert.Contains(t, store.saved, "INV-E")
}

func TestProcessDocument_SaveError(t *testing.T) {
	store := newMockStore()
	store.saveErr = errors.New("read-only filesystem")
	svc := NewReconciliationService(&mockRunner{runFunc: actionFor}, store, nil, nil, zap.NewNop())

	result, err := svc.ProcessDocument(context.Background(), port.DocumentRef{Filename: "approve.pdf"})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.saveErr)
	require.NotNil(t, result)
	assert.Equal(t, "INV-A", result.InvoiceID)
}

func TestReconcileExtracted(t *testing.T) {
	store := newMockStore()
	svc := NewReconciliationService(&mockRunner{runFunc: actionFor}, store, nil, nil, zap.NewNop())

	result, err := svc.ReconcileExtracted(context.Background(), port.ExtractionResult{
		Invoice:    &entity.ExtractedInvoice{InvoiceNumber: "INV-X"},
		Confidence: 0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-X", result.InvoiceID)

	loaded, err := svc.GetResult(context.Background(), "INV-X")
	require.NoError(t, err)
	assert.Same(t, result, loaded)

	keys, err := svc.ListResults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"INV-1"}, keys)
}

func TestProcessBatch(t *testing.T) {
	docs := []port.DocumentRef{
		{Filename: "approve.pdf"},
		{Filename: "escalate.pdf"},
		{Filename: "flag.pdf"},
		{Filename: "broken.pdf"},
	}

	store := newMockStore()
	notifier := &mockNotifier{}
	report := &mockReport{}
	svc := NewReconciliationService(&mockRunner{runFunc: actionFor}, store, notifier, report, zap.NewNop())

	var mu sync.Mutex
	var progress []int
	summary, err := svc.ProcessBatch(context.Background(), docs, BatchOptions{
		Concurrency: 2,
		ReportPath:  "/tmp/report.xlsx",
		Progress: func(done, total int, r *entity.ReconciliationResult) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 4, total)
			progress = append(progress, done)
		},
	})
	require.NoError(t, err)

	require.Len(t, summary.Results, 4)
	assert.Equal(t, "INV-A", summary.Results[0].InvoiceID)
	assert.Equal(t, "INV-E", summary.Results[1].InvoiceID)
	assert.Equal(t, "INV-F", summary.Results[2].InvoiceID)
	assert.Equal(t, "UNKNOWN", summary.Results[3].InvoiceID)

	assert.Equal(t, 1, summary.ByAction[entity.ActionAutoApprove])
	assert.Equal(t, 1, summary.ByAction[entity.ActionFlagForReview])
	assert.Equal(t, 2, summary.ByAction[entity.ActionEscalate])
	assert.Equal(t, 1, summary.Failed)

	assert.ElementsMatch(t, []int{1, 2, 3, 4}, progress)
	assert.ElementsMatch(t, []string{"INV-E", "UNKNOWN"}, notifier.sent)

	assert.Equal(t, "/tmp/report.xlsx", summary.ReportPath)
	assert.Equal(t, "/tmp/report.xlsx", report.path)
	assert.Equal(t, summary.Results, report.results)
}

func TestProcessBatch_SaveErrorDoesNotStopBatch(t *testing.T) {
	store := newMockStore()
	store.saveErr = errors.New("no space")
	svc := NewReconciliationService(&mockRunner{runFunc: actionFor}, store, nil, nil, zap.NewNop())

	summary, err := svc.ProcessBatch(context.Background(), []port.DocumentRef{
		{Filename: "approve.pdf"},
		{Filename: "flag.pdf"},
	}, BatchOptions{})
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.Len(t, summary.Results, 2)
	assert.Empty(t, summary.ReportPath)
}

func TestResultLookup_NoStore(t *testing.T) {
	svc := NewReconciliationService(&mockRunner{runFunc: actionFor}, nil, nil, nil, zap.NewNop())

	_, err := svc.GetResult(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoResultStore)
	_, err = svc.ListResults(context.Background())
	assert.ErrorIs(t, err, ErrNoResultStore)

	_, err = svc.ProcessDocument(context.Background(), port.DocumentRef{Filename: "approve.pdf"})
	assert.NoError(t, err)
}

type cancellingRunner struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	ran    []string
}

func (c *cancellingRunner) Run(ctx context.Context, doc port.DocumentRef) *entity.ReconciliationResult {
	c.mu.Lock()
	c.ran = append(c.ran, doc.Filename)
	c.mu.Unlock()

	if doc.Filename == "stop.pdf" {
		c.cancel()
		return &entity.ReconciliationResult{
			InvoiceID:         "UNKNOWN",
			DocumentInfo:      entity.DocumentInfo{Filename: doc.Filename},
			RecommendedAction: entity.ActionEscalate,
			RiskLevel:         entity.RiskHigh,
			Error:             ctx.Err().Error(),
		}
	}
	return actionFor(doc)
}

func (c *cancellingRunner) RunExtracted(ctx context.Context, extraction port.ExtractionResult) *entity.ReconciliationResult {
	return nil
}

func TestProcessDocument_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name     string
		file     string
		wantErr  bool
		wantSave bool
	}{
		{"failed run is discarded", "broken.pdf", true, false},
		{"finished run is still saved", "approve.pdf", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			notifier := &mockNotifier{}
			svc := NewReconciliationService(&mockRunner{runFunc: actionFor}, store, notifier, nil, zap.NewNop())

			result, err := svc.ProcessDocument(ctx, port.DocumentRef{Filename: tt.file})
			require.NotNil(t, result)
			if tt.wantErr {
				assert.ErrorIs(t, err, context.Canceled)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantSave, len(store.saved) == 1)
			assert.Empty(t, notifier.sent)
		})
	}
}

func TestProcessBatch_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs := make([]port.DocumentRef, 50)
	for i := range docs {
		docs[i] = port.DocumentRef{Filename: "broken.pdf"}
	}

	store := newMockStore()
	notifier := &mockNotifier{}
	report := &mockReport{}
	var calls int
	runner := &mockRunner{runFunc: func(doc port.DocumentRef) *entity.ReconciliationResult {
		calls++
		return actionFor(doc)
	}}
	svc := NewReconciliationService(runner, store, notifier, report, zap.NewNop())

	summary, err := svc.ProcessBatch(ctx, docs, BatchOptions{Concurrency: 1, ReportPath: "/tmp/r.xlsx"})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Empty(t, summary.Results)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 0, calls)
	assert.Empty(t, store.saved)
	assert.Empty(t, notifier.sent)
}

func TestProcessBatch_CancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &cancellingRunner{cancel: cancel}
	store := newMockStore()
	notifier := &mockNotifier{}
	svc := NewReconciliationService(runner, store, notifier, nil, zap.NewNop())

	summary, err := svc.ProcessBatch(ctx, []port.DocumentRef{
		{Filename: "approve.pdf"},
		{Filename: "stop.pdf"},
		{Filename: "escalate.pdf"},
		{Filename: "flag.pdf"},
	}, BatchOptions{Concurrency: 1})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, "INV-A", summary.Results[0].InvoiceID)
	assert.Equal(t, []string{"approve.pdf", "stop.pdf"}, runner.ran)
	assert.Contains(t, store.saved, "INV-A")
	assert.NotContains(t, store.saved, "UNKNOWN")
	assert.Empty(t, notifier.sent)
}
