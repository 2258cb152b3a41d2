package http

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/application/port"
	"github.com/garyjia/invoice-reconciliation/internal/application/service"
	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
	"github.com/garyjia/invoice-reconciliation/internal/infrastructure/storage"
	"github.com/garyjia/invoice-reconciliation/internal/invoice"
)

// Version is reported by the health check
const Version = "1.0.0"

// Handlers contains all HTTP request handlers
type Handlers struct {
	service service.ReconciliationService
	catalog POCatalog
	inbox   InboxStatusProvider
	config  ServerConfig
	logger  *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	svc service.ReconciliationService,
	catalog POCatalog,
	inbox InboxStatusProvider,
	config ServerConfig,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		service: svc,
		catalog: catalog,
		inbox:   inbox,
		config:  config,
		logger:  logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	Version        string `json:"version"`
	PurchaseOrders int    `json:"purchase_orders"`
}

// ReconcileRequest is the body of POST /api/reconcile
type ReconcileRequest struct {
	Invoice              *entity.ExtractedInvoice `json:"invoice" binding:"required"`
	ExtractionConfidence *float64                 `json:"extraction_confidence"`
	DocumentQuality      string                   `json:"document_quality"`
}

// POSummary is a purchase order without its lines
type POSummary struct {
	PONumber  string  `json:"po_number"`
	Supplier  string  `json:"supplier"`
	Date      string  `json:"date"`
	Total     float64 `json:"total"`
	Currency  string  `json:"currency"`
	LineCount int     `json:"line_count"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:         "healthy",
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
			Version:        Version,
			PurchaseOrders: len(h.catalog.All()),
		},
	})
}

// ListPurchaseOrders handles GET /api/purchase-orders
func (h *Handlers) ListPurchaseOrders(c *gin.Context) {
	orders := h.catalog.All()
	summaries := make([]POSummary, 0, len(orders))
	for _, po := range orders {
		summaries = append(summaries, POSummary{
			PONumber:  po.PONumber,
			Supplier:  po.Supplier,
			Date:      po.Date,
			Total:     po.Total,
			Currency:  po.Currency,
			LineCount: len(po.LineItems),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].PONumber < summaries[j].PONumber
	})

	c.JSON(http.StatusOK, Response{Success: true, Data: summaries})
}

// GetPurchaseOrder handles GET /api/purchase-orders/:number
func (h *Handlers) GetPurchaseOrder(c *gin.Context) {
	number := c.Param("number")
	po, ok := h.catalog.ByExactNumber(number)
	if !ok {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   fmt.Sprintf("purchase order %s not found", number),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: po})
}

// ReconcileInvoice handles POST /api/reconcile with an already extracted invoice
func (h *Handlers) ReconcileInvoice(c *gin.Context) {
	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid reconcile request", zap.Error(err))
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}
	if err := req.Invoice.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	confidence := 1.0
	if req.ExtractionConfidence != nil {
		confidence = *req.ExtractionConfidence
		if confidence < 0 || confidence > 1 {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "extraction_confidence must be within [0, 1]",
			})
			return
		}
	}
	quality := req.DocumentQuality
	if quality == "" {
		quality = entity.QualityUnknown
	}

	result, err := h.service.ReconcileExtracted(c.Request.Context(), port.ExtractionResult{
		Invoice:         req.Invoice,
		Confidence:      confidence,
		DocumentQuality: quality,
	})
	h.respondResult(c, result, err)
}

// ReconcileDocument handles POST /api/reconcile/document with a multipart "file" upload
func (h *Handlers) ReconcileDocument(c *gin.Context) {
	if h.config.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.config.MaxUploadBytes)
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "missing file upload"})
		return
	}
	if !invoice.IsSupported(file.Filename) {
		c.JSON(http.StatusUnsupportedMediaType, Response{
			Success: false,
			Error:   fmt.Sprintf("unsupported document type: %s", filepath.Ext(file.Filename)),
		})
		return
	}

	name := filepath.Base(file.Filename)
	uploadDir := filepath.Join(h.config.UploadDir, uuid.NewString())
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		h.logger.Error("Failed to create upload directory", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to store upload"})
		return
	}
	defer os.RemoveAll(uploadDir)

	ext := strings.ToLower(filepath.Ext(name))
	path := filepath.Join(uploadDir, storage.SanitizeName(strings.TrimSuffix(name, filepath.Ext(name)))+ext)
	if err := c.SaveUploadedFile(file, path); err != nil {
		h.logger.Error("Failed to save upload", zap.String("file", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to store upload"})
		return
	}

	result, err := h.service.ProcessDocument(c.Request.Context(), port.DocumentRef{
		Path:      path,
		Filename:  name,
		SizeBytes: file.Size,
	})
	h.respondResult(c, result, err)
}

func (h *Handlers) respondResult(c *gin.Context, result *entity.ReconciliationResult, err error) {
	if err != nil {
		h.logger.Error("Reconciliation finished with error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Data: result, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ListResults handles GET /api/results
func (h *Handlers) ListResults(c *gin.Context) {
	keys, err := h.service.ListResults(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list results", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: keys})
}

// GetResult handles GET /api/results/:key
func (h *Handlers) GetResult(c *gin.Context) {
	key := c.Param("key")
	result, err := h.service.GetResult(c.Request.Context(), key)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrResultNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// InboxStatus handles GET /api/inbox/status
func (h *Handlers) InboxStatus(c *gin.Context) {
	if h.inbox == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "inbox worker not enabled"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.inbox.Status()})
}
