package openai

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptSpec holds one prompt and its model parameters
type PromptSpec struct {
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	System       string  `yaml:"system"`
	UserTemplate string  `yaml:"user_template"`
}

// PromptConfig holds all prompts used by the extractor and reviewer
type PromptConfig struct {
	InvoiceExtraction PromptSpec `yaml:"invoice_extraction"`
	Review            PromptSpec `yaml:"review"`
}

const extractionUserTemplate = `You are an expert invoice data extraction agent. Extract all structured data from this invoice image.

IMPORTANT: Extract EXACTLY what you see. Do not make up or assume values.

Return a JSON object with this exact structure:
{
    "invoice_number": "string",
    "invoice_date": "YYYY-MM-DD format",
    "supplier_name": "string",
    "supplier_address": "string or null",
    "supplier_vat": "string or null",
    "po_reference": "string or null (the Purchase Order reference if present)",
    "payment_terms": "string or null",
    "bill_to": {"company": "string", "address": "string"} or null,
    "line_items": [
        {
            "item_code": "string or null",
            "description": "string (product name/description)",
            "quantity": number,
            "unit": "string (kg, L, units, etc.)",
            "unit_price": number,
            "line_total": number
        }
    ],
    "subtotal": number,
    "vat_rate": number (as decimal, e.g., 0.20 for 20%),
    "vat_amount": number,
    "total": number,
    "currency": "string (GBP, EUR, USD, etc.)"
}

RULES:
1. If a field is not visible or unclear, use null
2. Extract ALL line items from the invoice table
3. Prices are numeric values only, no currency symbols
4. Dates use YYYY-MM-DD
5. If a PO reference exists, copy it exactly as shown (e.g. "PO-2024-001")`

const reviewUserTemplate = `Review the following processed invoice and provide feedback.

INVOICE DATA:
{{.Invoice}}

MATCHED PO:
{{.MatchedPO}}

DISCREPANCIES FOUND:
{{.Discrepancies}}

CURRENT RECOMMENDATION: {{.Recommendation}}

1. Identify obvious extraction errors (prices that look wrong, incomplete descriptions)
2. Check whether the PO match makes sense
3. Judge whether the recommendation is appropriate

Respond with JSON:
{
    "approval_status": "approved" | "needs_correction" | "rejected",
    "corrections": [
        {"field": "field_name", "current_value": "value", "suggested_value": "corrected_value", "reason": "why"}
    ],
    "feedback": "overall feedback about the processing quality",
    "confidence": 0.0-1.0
}`

// DefaultPrompts returns the built-in prompts
func DefaultPrompts() *PromptConfig {
	return &PromptConfig{
		InvoiceExtraction: PromptSpec{
			Temperature:  0.1,
			MaxTokens:    4096,
			System:       "You extract structured data from supplier invoices with perfect accuracy. Always respond with valid JSON.",
			UserTemplate: extractionUserTemplate,
		},
		Review: PromptSpec{
			Temperature:  0.2,
			MaxTokens:    1024,
			System:       "You are an experienced accounts payable specialist reviewing an invoice reconciliation result. Always respond with valid JSON.",
			UserTemplate: reviewUserTemplate,
		},
	}
}

// LoadPrompts loads prompt overrides from a YAML file on top of the defaults
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	prompts := DefaultPrompts()
	if promptsPath == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	return prompts, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
