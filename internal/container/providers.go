// Package container wires the reconciliation engine together from configuration.
package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/application/pipeline"
	"github.com/garyjia/invoice-reconciliation/internal/application/port"
	"github.com/garyjia/invoice-reconciliation/internal/application/service"
	"github.com/garyjia/invoice-reconciliation/internal/config"
	"github.com/garyjia/invoice-reconciliation/internal/infrastructure/external/lark"
	"github.com/garyjia/invoice-reconciliation/internal/infrastructure/external/openai"
	"github.com/garyjia/invoice-reconciliation/internal/infrastructure/report"
	"github.com/garyjia/invoice-reconciliation/internal/infrastructure/storage"
	"github.com/garyjia/invoice-reconciliation/internal/infrastructure/worker"
	"github.com/garyjia/invoice-reconciliation/internal/invoice"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/catalog"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/discrepancy"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/matcher"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/resolution"
)

// ExternalBundle holds the model-backed collaborators. Any of them may be nil.
type ExternalBundle struct {
	Extractor port.Extractor
	Reviewer  port.Reviewer
	Notifier  port.EscalationNotifier
}

// ProvideCatalog loads the purchase order catalog
func ProvideCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*catalog.Catalog, error) {
	c, err := catalog.Load(ctx, cfg.Catalog.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return c, nil
}

// ProvideExternal builds the extraction, review and notification adapters
// that the configuration enables
func ProvideExternal(cfg *config.Config, logger *zap.Logger) (*ExternalBundle, error) {
	bundle := &ExternalBundle{}

	if cfg.ExtractionEnabled() {
		prompts, err := openai.LoadPrompts(cfg.OpenAI.PromptsPath)
		if err != nil {
			return nil, err
		}
		aiCfg := openai.Config{
			APIKey:       cfg.OpenAI.APIKey,
			Model:        cfg.OpenAI.Model,
			BaseURL:      cfg.OpenAI.BaseURL,
			MaxRetries:   cfg.OpenAI.MaxRetries,
			RetryBackoff: cfg.OpenAI.RetryBackoff,
		}
		renderer := invoice.NewRenderer(cfg.OpenAI.MaxPages, logger)
		bundle.Extractor = openai.NewExtractor(aiCfg, prompts, renderer, logger)
		if cfg.Pipeline.ReviewEnabled {
			bundle.Reviewer = openai.NewReviewer(aiCfg, prompts, logger)
		}
	} else {
		logger.Warn("OpenAI API key not set, document extraction disabled")
	}

	larkCfg := lark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
		ChatID:    cfg.Lark.EscalationChatID,
	}
	if larkCfg.Enabled() {
		bundle.Notifier = lark.NewNotifier(larkCfg, logger)
	}

	return bundle, nil
}

// ProvidePipeline builds the reconciliation pipeline over cat
func ProvidePipeline(cfg *config.Config, cat *catalog.Catalog, ext *ExternalBundle, logger *zap.Logger) *pipeline.Pipeline {
	return pipeline.New(
		ext.Extractor,
		ext.Reviewer,
		matcher.New(cat, cfg.MatcherConfig(), logger),
		discrepancy.NewDetector(cfg.DiscrepancyTolerances(), logger),
		resolution.NewEngine(cfg.ResolutionThresholds(), logger),
		pipeline.Config{
			ExtractionTimeout: cfg.Pipeline.ExtractionTimeout,
			ReviewTimeout:     cfg.Pipeline.ReviewTimeout,
		},
		logger,
	)
}

// ProvideService builds the reconciliation service with JSON result storage
// and the spreadsheet report writer
func ProvideService(cfg *config.Config, p *pipeline.Pipeline, ext *ExternalBundle, logger *zap.Logger) service.ReconciliationService {
	return service.NewReconciliationService(
		p,
		storage.NewJSONResultStore(cfg.Storage.ResultsDir, logger),
		ext.Notifier,
		report.NewXLSXWriter(logger),
		logger,
	)
}

// ProvideInbox builds the inbox worker, or nil when it is disabled
func ProvideInbox(cfg *config.Config, svc service.ReconciliationService, logger *zap.Logger) *worker.InboxWorker {
	if !cfg.Inbox.Enabled {
		return nil
	}
	return worker.NewInboxWorker(worker.InboxConfig{
		Dir:            cfg.Inbox.Dir,
		PollInterval:   cfg.Inbox.PollInterval,
		BatchSize:      cfg.Inbox.BatchSize,
		ProcessTimeout: cfg.Inbox.ProcessTimeout,
	}, svc, logger)
}
