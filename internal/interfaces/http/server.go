// Package http exposes the reconciliation service over a small JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/application/service"
	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
	"github.com/garyjia/invoice-reconciliation/internal/infrastructure/worker"
)

// POCatalog is the read side of the purchase order catalog
type POCatalog interface {
	All() []entity.PurchaseOrder
	ByExactNumber(ref string) (*entity.PurchaseOrder, bool)
}

// InboxStatusProvider reports the inbox worker's counters
type InboxStatusProvider interface {
	Status() worker.InboxStatus
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	UploadDir      string
	MaxUploadBytes int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   5 * time.Minute,
		UploadDir:      os.TempDir(),
		MaxUploadBytes: 20 << 20,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	service    service.ReconciliationService
	catalog    POCatalog
	inbox      InboxStatusProvider
	logger     *zap.Logger
}

// NewServer creates a server. inbox may be nil.
func NewServer(
	config ServerConfig,
	svc service.ReconciliationService,
	catalog POCatalog,
	inbox InboxStatusProvider,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:  config,
		router:  gin.New(),
		service: svc,
		catalog: catalog,
		inbox:   inbox,
		logger:  logger,
	}
	if s.config.MaxUploadBytes > 0 {
		s.router.MaxMultipartMemory = s.config.MaxUploadBytes
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func (s *Server) setupRoutes() {
	h := NewHandlers(s.service, s.catalog, s.inbox, s.config, s.logger)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	{
		api.GET("/purchase-orders", h.ListPurchaseOrders)
		api.GET("/purchase-orders/:number", h.GetPurchaseOrder)

		api.POST("/reconcile", h.ReconcileInvoice)
		api.POST("/reconcile/document", h.ReconcileDocument)

		api.GET("/results", h.ListResults)
		api.GET("/results/:key", h.GetResult)

		api.GET("/inbox/status", h.InboxStatus)
	}
}

// Start serves until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the listen address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
