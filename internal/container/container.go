package container

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/application/pipeline"
	"github.com/garyjia/invoice-reconciliation/internal/application/service"
	"github.com/garyjia/invoice-reconciliation/internal/config"
	"github.com/garyjia/invoice-reconciliation/internal/infrastructure/worker"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/catalog"
)

// Container owns every long-lived component. Build it with New, start the
// background workers with Start and release them with Close.
type Container struct {
	config *config.Config
	logger *zap.Logger

	catalog  *catalog.Catalog
	external *ExternalBundle
	pipeline *pipeline.Pipeline
	service  service.ReconciliationService
	inbox    *worker.InboxWorker
	workers  *worker.Manager

	mu      sync.Mutex
	started bool
	closed  bool
}

// HealthStatus summarises which optional components are active
type HealthStatus struct {
	PurchaseOrders    int  `json:"purchase_orders"`
	ExtractionEnabled bool `json:"extraction_enabled"`
	ReviewEnabled     bool `json:"review_enabled"`
	NotifierEnabled   bool `json:"notifier_enabled"`
	InboxEnabled      bool `json:"inbox_enabled"`
	WorkersRunning    bool `json:"workers_running"`
}

// New builds all components in dependency order: catalog, external
// adapters, pipeline, service, workers
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	cat, err := ProvideCatalog(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	ext, err := ProvideExternal(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build external adapters: %w", err)
	}

	p := ProvidePipeline(cfg, cat, ext, logger)
	svc := ProvideService(cfg, p, ext, logger)

	c := &Container{
		config:   cfg,
		logger:   logger,
		catalog:  cat,
		external: ext,
		pipeline: p,
		service:  svc,
		workers:  worker.NewManager(logger),
	}

	if inbox := ProvideInbox(cfg, svc, logger); inbox != nil {
		c.inbox = inbox
		c.workers.Register(inbox)
	}

	logger.Info("Container initialized",
		zap.Int("purchase_orders", cat.Len()),
		zap.Bool("extraction_enabled", ext.Extractor != nil),
		zap.Bool("notifier_enabled", ext.Notifier != nil),
		zap.Bool("inbox_enabled", c.inbox != nil))

	return c, nil
}

// Start launches the background workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("container is closed")
	}
	if c.started {
		return nil
	}
	if err := c.workers.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.started = true
	return nil
}

// Close stops the workers. It is safe to call more than once.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.workers.StopAll(); err != nil {
		c.logger.Error("Failed to stop workers", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed")
	return nil
}

// Health reports the state of the optional components
func (c *Container) Health() HealthStatus {
	return HealthStatus{
		PurchaseOrders:    c.catalog.Len(),
		ExtractionEnabled: c.external.Extractor != nil,
		ReviewEnabled:     c.external.Reviewer != nil,
		NotifierEnabled:   c.external.Notifier != nil,
		InboxEnabled:      c.inbox != nil,
		WorkersRunning:    c.workers.IsRunning(),
	}
}

// Config returns the container's configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the container's logger
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Catalog returns the purchase order catalog
func (c *Container) Catalog() *catalog.Catalog {
	return c.catalog
}

// Pipeline returns the reconciliation pipeline
func (c *Container) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}

// Service returns the reconciliation service
func (c *Container) Service() service.ReconciliationService {
	return c.service
}

// Inbox returns the inbox worker, or nil when it is disabled
func (c *Container) Inbox() *worker.InboxWorker {
	return c.inbox
}
