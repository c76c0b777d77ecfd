// Package ai abstracts the LLM backends used for free-form replies and
// payment receipt analysis. Providers are interchangeable; the engine
// only sees this interface.
package ai

import (
	"context"
	"encoding/json"
	"strings"
)

// Provider is an LLM backend.
type Provider interface {
	// ChatCompletion returns a reply for the user message under the
	// given persona system prompt.
	ChatCompletion(ctx context.Context, system, user string) (string, error)

	// AnalyzeReceipt inspects a payment receipt image and extracts
	// what it can.
	AnalyzeReceipt(ctx context.Context, image []byte, mimeType string) (*ReceiptAnalysis, error)
}

// ReceiptAnalysis is what the vision model extracted from a receipt.
// Summary is always set; the other fields are best effort.
type ReceiptAnalysis struct {
	Amount  string `json:"valor"`
	Date    string `json:"data"`
	Payer   string `json:"pagador"`
	Summary string `json:"resumo"`
}

const receiptPrompt = `Você é um assistente que analisa comprovantes de pagamento de clientes de um provedor de internet. ` +
	`Extraia do comprovante: valor pago, data do pagamento e nome do pagador. ` +
	`Responda APENAS com um JSON no formato {"valor":"...","data":"...","pagador":"...","resumo":"..."} ` +
	`onde resumo é uma frase curta descrevendo o comprovante. Se algum campo não estiver visível, deixe-o vazio.`

// parseReceiptJSON decodes a model reply into a ReceiptAnalysis. Models
// wrap JSON in code fences or prose more often than not, so decoding is
// best effort: on failure the raw reply becomes the summary.
func parseReceiptJSON(reply string) *ReceiptAnalysis {
	text := strings.TrimSpace(reply)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			var out ReceiptAnalysis
			if err := json.Unmarshal([]byte(text[start:end+1]), &out); err == nil {
				if out.Summary == "" {
					out.Summary = strings.TrimSpace(reply)
				}
				return &out
			}
		}
	}
	return &ReceiptAnalysis{Summary: strings.TrimSpace(reply)}
}
