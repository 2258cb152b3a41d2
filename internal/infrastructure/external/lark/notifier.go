package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	ChatID    string
}

// Enabled reports whether enough is configured to send messages
func (c Config) Enabled() bool {
	return c.AppID != "" && c.AppSecret != "" && c.ChatID != ""
}

// sendFunc delivers one message; swapped out in tests
type sendFunc func(ctx context.Context, receiveIDType, receiveID, msgType, content string) error

// Notifier implements port.EscalationNotifier by posting to a Lark group chat
type Notifier struct {
	chatID string
	send   sendFunc
	logger *zap.Logger
}

// NewNotifier creates a notifier backed by the Lark SDK
func NewNotifier(cfg Config, logger *zap.Logger) *Notifier {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)

	n := &Notifier{chatID: cfg.ChatID, logger: logger}
	n.send = func(ctx context.Context, receiveIDType, receiveID, msgType, content string) error {
		req := larkim.NewCreateMessageReqBuilder().
			ReceiveIdType(receiveIDType).
			Body(larkim.NewCreateMessageReqBodyBuilder().
				ReceiveId(receiveID).
				MsgType(msgType).
				Content(content).
				Build()).
			Build()

		resp, err := client.Im.Message.Create(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
		if !resp.Success() {
			return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
		}
		return nil
	}
	return n
}

// NotifyEscalation posts a summary of an escalated invoice to the chat
func (n *Notifier) NotifyEscalation(ctx context.Context, result *entity.ReconciliationResult) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	content, err := json.Marshal(map[string]string{"text": EscalationText(result)})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := n.send(ctx, "chat_id", n.chatID, "text", string(content)); err != nil {
		n.logger.Error("Failed to send escalation notice",
			zap.String("invoice_id", result.InvoiceID),
			zap.String("chat_id", n.chatID),
			zap.Error(err))
		return err
	}

	n.logger.Info("Escalation notice sent",
		zap.String("invoice_id", result.InvoiceID),
		zap.String("run_id", result.RunID))
	return nil
}

// EscalationText renders the message body for an escalated invoice
func EscalationText(result *entity.ReconciliationResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Invoice %s escalated for human review (risk %s, confidence %.2f)\n",
		result.InvoiceID, result.RiskLevel, result.OverallConfidence)
	if result.DocumentInfo.Filename != "" {
		fmt.Fprintf(&b, "Document: %s\n", result.DocumentInfo.Filename)
	}

	switch {
	case result.Error != "":
		fmt.Fprintf(&b, "Processing failed: %s\n", result.Error)
	case result.MatchingResults != nil && result.MatchingResults.MatchedPO != nil:
		fmt.Fprintf(&b, "Matched PO: %s (%s, %.2f)\n",
			*result.MatchingResults.MatchedPO, result.MatchingResults.MatchMethod, result.MatchingResults.POMatchConfidence)
	default:
		b.WriteString("Matched PO: none\n")
	}

	for _, d := range result.Discrepancies {
		fmt.Fprintf(&b, "- [%s] %s\n", d.Severity, d.Details)
	}
	if result.Resolution != nil && len(result.Resolution.RiskFactors) > 0 {
		fmt.Fprintf(&b, "Risk factors: %s\n", strings.Join(result.Resolution.RiskFactors, "; "))
	}

	return strings.TrimRight(b.String(), "\n")
}
