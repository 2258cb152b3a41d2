package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/application/port"
	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
	"github.com/garyjia/invoice-reconciliation/internal/invoice"
)

// Subfolders of the inbox that finished documents are moved into
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// DocumentProcessor reconciles one document
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, doc port.DocumentRef) (*entity.ReconciliationResult, error)
}

// InboxConfig holds configuration for the inbox worker
type InboxConfig struct {
	Dir            string
	PollInterval   time.Duration
	BatchSize      int
	ProcessTimeout time.Duration
}

// DefaultInboxConfig returns default configuration for dir
func DefaultInboxConfig(dir string) InboxConfig {
	return InboxConfig{
		Dir:            dir,
		PollInterval:   10 * time.Second,
		BatchSize:      5,
		ProcessTimeout: 3 * time.Minute,
	}
}

// InboxStatus is a snapshot of the worker's counters
type InboxStatus struct {
	Running        bool      `json:"running"`
	ProcessedCount int       `json:"processed_count"`
	FailedCount    int       `json:"failed_count"`
	LastPoll       time.Time `json:"last_poll"`
	LastError      string    `json:"last_error,omitempty"`
}

// InboxWorker polls a directory and reconciles every supported document
// dropped into it
type InboxWorker struct {
	config    InboxConfig
	processor DocumentProcessor
	logger    *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	running   bool
	processed int
	failed    int
	lastPoll  time.Time
	lastError error
}

// NewInboxWorker creates an inbox worker
func NewInboxWorker(config InboxConfig, processor DocumentProcessor, logger *zap.Logger) *InboxWorker {
	if config.PollInterval <= 0 {
		config.PollInterval = 10 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 5
	}
	return &InboxWorker{
		config:    config,
		processor: processor,
		logger:    logger,
	}
}

// Name returns the worker name
func (w *InboxWorker) Name() string {
	return "InboxWorker"
}

// Start creates the inbox folders and begins polling
func (w *InboxWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("inbox worker already running")
	}

	if err := w.ensureDirs(); err != nil {
		w.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true
	w.mu.Unlock()

	w.logger.Info("InboxWorker started",
		zap.String("dir", w.config.Dir),
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop(runCtx)
	return nil
}

// Stop cancels polling and waits for the in-flight batch to finish
func (w *InboxWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	status := w.Status()
	w.logger.Info("InboxWorker stopped",
		zap.Int("processed_count", status.ProcessedCount),
		zap.Int("failed_count", status.FailedCount))
	return nil
}

// Status returns the worker's counters
func (w *InboxWorker) Status() InboxStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := InboxStatus{
		Running:        w.running,
		ProcessedCount: w.processed,
		FailedCount:    w.failed,
		LastPoll:       w.lastPoll,
	}
	if w.lastError != nil {
		s.LastError = w.lastError.Error()
	}
	return s
}

func (w *InboxWorker) pollLoop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Inbox poll loop context cancelled")
			return
		case <-ticker.C:
			if _, err := w.PollOnce(ctx); err != nil {
				w.logger.Error("Inbox poll failed", zap.Error(err))
			}
		}
	}
}

// PollOnce reconciles up to BatchSize pending documents and returns how many
// were handled
func (w *InboxWorker) PollOnce(ctx context.Context) (int, error) {
	err := w.ensureDirs()
	var pending []string
	if err == nil {
		pending, err = w.Pending()
	}

	w.mu.Lock()
	w.lastPoll = time.Now()
	w.lastError = err
	w.mu.Unlock()

	if err != nil {
		return 0, err
	}
	if len(pending) > w.config.BatchSize {
		pending = pending[:w.config.BatchSize]
	}

	handled := 0
	for _, path := range pending {
		if ctx.Err() != nil {
			break
		}
		if w.processFile(ctx, path) {
			handled++
		}
	}
	return handled, nil
}

// Pending lists supported documents waiting in the inbox, sorted by name
func (w *InboxWorker) Pending() ([]string, error) {
	paths, err := invoice.ListDocuments(w.config.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan inbox: %w", err)
	}
	return paths, nil
}

// processFile reconciles one document and moves it out of the inbox. A run
// that fails after ctx is cancelled leaves the document in place for the
// next start and reports false.
func (w *InboxWorker) processFile(ctx context.Context, path string) bool {
	doc := port.DocumentRef{Path: path, Filename: filepath.Base(path)}
	if info, err := os.Stat(path); err == nil {
		doc.SizeBytes = info.Size()
	}

	procCtx := ctx
	if w.config.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		procCtx, cancel = context.WithTimeout(ctx, w.config.ProcessTimeout)
		defer cancel()
	}

	w.logger.Info("Processing inbox document", zap.String("file", doc.Filename))

	result, err := w.processor.ProcessDocument(procCtx, doc)
	ok := err == nil && result != nil && !result.Failed()
	if !ok && ctx.Err() != nil {
		w.logger.Info("Inbox document interrupted, left for retry",
			zap.String("file", doc.Filename))
		return false
	}
	if err != nil {
		w.logger.Error("Failed to process inbox document",
			zap.String("file", doc.Filename),
			zap.Error(err))
	}

	dest := w.failedDir()
	if ok {
		dest = w.processedDir()
	}
	if err := os.Rename(path, filepath.Join(dest, doc.Filename)); err != nil {
		w.logger.Error("Failed to move inbox document",
			zap.String("file", doc.Filename),
			zap.String("dest", dest),
			zap.Error(err))
	}

	w.mu.Lock()
	if ok {
		w.processed++
	} else {
		w.failed++
	}
	w.mu.Unlock()

	if result != nil {
		w.logger.Info("Inbox document reconciled",
			zap.String("file", doc.Filename),
			zap.String("invoice_id", result.InvoiceID),
			zap.String("action", string(result.RecommendedAction)),
			zap.Bool("failed", !ok))
	}
	return true
}

func (w *InboxWorker) ensureDirs() error {
	for _, dir := range []string{w.config.Dir, w.processedDir(), w.failedDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create inbox folder %s: %w", dir, err)
		}
	}
	return nil
}

func (w *InboxWorker) processedDir() string {
	return filepath.Join(w.config.Dir, ProcessedDir)
}

func (w *InboxWorker) failedDir() string {
	return filepath.Join(w.config.Dir, FailedDir)
}
