package openai

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/application/port"
	"github.com/garyjia/invoice-reconciliation/internal/invoice"
)

// PageRenderer turns a document into JPEG page images
type PageRenderer interface {
	Render(path string) ([][]byte, error)
}

// Extractor implements port.Extractor with a vision model
type Extractor struct {
	chat     *chatClient
	renderer PageRenderer
	prompt   PromptSpec
	model    string
	logger   *zap.Logger
}

// NewExtractor creates a vision extractor
func NewExtractor(cfg Config, prompts *PromptConfig, renderer PageRenderer, logger *zap.Logger) *Extractor {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Extractor{
		chat:     newChatClient(cfg, logger),
		renderer: renderer,
		prompt:   prompts.InvoiceExtraction,
		model:    cfg.Model,
		logger:   logger,
	}
}

// Extract renders doc and asks the model for the invoice fields
func (e *Extractor) Extract(ctx context.Context, doc port.DocumentRef) (*port.ExtractionResult, error) {
	e.logger.Info("Extracting invoice data with Vision API", zap.String("path", doc.Path))

	pages, err := e.renderer.Render(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}

	text, err := renderTemplate(e.prompt.UserTemplate, struct {
		Filename string
		Pages    int
	}{doc.Filename, len(pages)})
	if err != nil {
		return nil, err
	}

	contentParts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: text,
	}}
	for i, page := range pages {
		contentParts = append(contentParts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(page),
				Detail: openai.ImageURLDetailHigh,
			},
		})
		e.logger.Debug("Added page to request", zap.Int("page", i+1), zap.Int("size_bytes", len(page)))
	}

	content, err := e.chat.complete(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   e.prompt.MaxTokens,
		Temperature: e.prompt.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: e.prompt.System,
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: contentParts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Error("Vision API call failed", zap.Error(err))
		return nil, err
	}

	result, err := invoice.Decode(content)
	if err != nil {
		e.logger.Error("Failed to parse Vision API response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	e.logger.Info("Invoice data extracted successfully",
		zap.String("invoice_number", result.Invoice.InvoiceNumber),
		zap.Float64("total", result.Invoice.Total),
		zap.Float64("confidence", result.Confidence),
		zap.String("quality", result.DocumentQuality))

	return result, nil
}
