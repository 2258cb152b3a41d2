package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
)

const defaultReviewConfidence = 0.90

// Reviewer implements port.Reviewer by asking the model to act as an AP specialist
type Reviewer struct {
	chat   *chatClient
	prompt PromptSpec
	model  string
	logger *zap.Logger
}

// NewReviewer creates a model-backed reviewer
func NewReviewer(cfg Config, prompts *PromptConfig, logger *zap.Logger) *Reviewer {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Reviewer{
		chat:   newChatClient(cfg, logger),
		prompt: prompts.Review,
		model:  cfg.Model,
		logger: logger,
	}
}

type rawCorrection struct {
	Field          string      `json:"field"`
	CurrentValue   interface{} `json:"current_value"`
	SuggestedValue interface{} `json:"suggested_value"`
	Reason         string      `json:"reason"`
}

type rawReview struct {
	ApprovalStatus string          `json:"approval_status"`
	Corrections    []rawCorrection `json:"corrections"`
	Feedback       string          `json:"feedback"`
	Confidence     *float64        `json:"confidence"`
}

// Review asks for a second opinion on req
func (r *Reviewer) Review(ctx context.Context, req entity.ReviewRequest) (*entity.ReviewResult, error) {
	prompt, err := r.buildPrompt(req)
	if err != nil {
		return nil, err
	}

	content, err := r.chat.complete(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		MaxTokens:   r.prompt.MaxTokens,
		Temperature: r.prompt.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, err
	}

	result, err := parseReview(content)
	if err != nil {
		r.logger.Error("Failed to parse review response",
			zap.Error(err),
			zap.String("content", content))
		return nil, err
	}

	r.logger.Info("Review completed",
		zap.String("invoice_number", invoiceNumber(req.Invoice)),
		zap.String("approval_status", result.ApprovalStatus),
		zap.Int("corrections", len(result.Corrections)))

	return result, nil
}

func (r *Reviewer) buildPrompt(req entity.ReviewRequest) (string, error) {
	invoiceJSON := "No data"
	if req.Invoice != nil {
		data, err := json.MarshalIndent(req.Invoice, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal invoice: %w", err)
		}
		invoiceJSON = string(data)
	}

	poJSON := "No matched PO"
	if req.MatchedPO != nil {
		data, err := json.MarshalIndent(req.MatchedPO, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal purchase order: %w", err)
		}
		poJSON = string(data)
	}

	discrepancies := "None"
	if len(req.Discrepancies) > 0 {
		details := make([]string, len(req.Discrepancies))
		for i, d := range req.Discrepancies {
			details[i] = d.Details
		}
		discrepancies = strings.Join(details, "\n")
	}

	return renderTemplate(r.prompt.UserTemplate, map[string]string{
		"Invoice":        invoiceJSON,
		"MatchedPO":      poJSON,
		"Discrepancies":  discrepancies,
		"Recommendation": string(req.RecommendedAction),
	})
}

func parseReview(content string) (*entity.ReviewResult, error) {
	var raw rawReview
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		// Fallback: the model wrapped the JSON in prose or a code block
		jsonStr := extractJSON(content)
		if jsonStr == "" {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	result := &entity.ReviewResult{
		ApprovalStatus: raw.ApprovalStatus,
		Corrections:    make([]entity.Correction, 0, len(raw.Corrections)),
		Feedback:       raw.Feedback,
		Confidence:     defaultReviewConfidence,
	}
	if result.ApprovalStatus == "" {
		result.ApprovalStatus = entity.ReviewApproved
	}
	if raw.Confidence != nil {
		result.Confidence = *raw.Confidence
	}
	for _, c := range raw.Corrections {
		result.Corrections = append(result.Corrections, entity.Correction{
			Field:          c.Field,
			CurrentValue:   stringify(c.CurrentValue),
			SuggestedValue: stringify(c.SuggestedValue),
			Reason:         c.Reason,
		})
	}
	return result, nil
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func invoiceNumber(inv *entity.ExtractedInvoice) string {
	if inv == nil {
		return ""
	}
	return inv.InvoiceNumber
}

// extractJSON returns the first balanced JSON object in content
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escapeNext := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		switch {
		case escapeNext:
			escapeNext = false
		case ch == '\\' && inString:
			escapeNext = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
