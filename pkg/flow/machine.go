package flow

import (
	"context"
	"errors"
	"strings"

	"github.com/veloznet/atendebot/pkg/ai"
	"github.com/veloznet/atendebot/pkg/billing"
	"github.com/veloznet/atendebot/pkg/chatwoot"
	"github.com/veloznet/atendebot/pkg/intent"
	"github.com/veloznet/atendebot/pkg/logger"
	"github.com/veloznet/atendebot/pkg/upstream"
	"github.com/veloznet/atendebot/pkg/webhook"
)

// Platform is the conversation API surface the engine drives. Matched
// by chatwoot.Client.
type Platform interface {
	GetConversation(ctx context.Context, conversationID int) (*chatwoot.Conversation, error)
	SendMessage(ctx context.Context, conversationID int, content string) error
	AddLabels(ctx context.Context, conversationID int, labels ...string) error
	MergeCustomAttributes(ctx context.Context, conversationID int, attrs map[string]any) error
	FetchAttachmentBytes(ctx context.Context, rawURL string) ([]byte, string, error)
}

// BillingLookup resolves a customer document to open invoices.
type BillingLookup interface {
	OverdueItems(ctx context.Context, document string) ([]billing.Item, error)
}

// Engine advances one conversation per inbound event. It holds no
// per-conversation memory; all state is read from and merged back into
// the conversation's attribute document.
type Engine struct {
	platform      Platform
	billing       BillingLookup
	ai            ai.Provider
	attachmentMax int64
}

// NewEngine wires the engine. provider may be nil, in which case
// free-form replies and receipt analysis degrade to fixed fallbacks.
func NewEngine(platform Platform, billing BillingLookup, provider ai.Provider, attachmentMax int64) *Engine {
	return &Engine{
		platform:      platform,
		billing:       billing,
		ai:            provider,
		attachmentMax: attachmentMax,
	}
}

// HandleEvent runs one transition of the state machine. Gateway
// failures abort the remaining side effects and propagate; billing and
// vision failures degrade to fallback replies instead.
func (e *Engine) HandleEvent(ctx context.Context, ev *webhook.InboundEvent) error {
	conv, err := e.platform.GetConversation(ctx, ev.ConversationID)
	if err != nil {
		return err
	}
	st := StateFromConversation(conv)

	if st.State == StateInitial {
		if !st.WelcomeSent && !st.hasLabel(labelWelcomeSent) {
			return e.sendWelcome(ctx, ev.ConversationID, conv)
		}
		// Welcome already went out but the state write was lost or
		// raced; resume from triage.
		st.State = StateTriage
	}

	// Attachments win over text in every state.
	if len(ev.Attachments) > 0 {
		return e.handleAttachment(ctx, ev.ConversationID, ev.Attachments[0])
	}

	switch st.State {
	case StateTriage:
		return e.handleTriage(ctx, ev)
	case StateFinanceWaitNeed:
		return e.handleFinanceNeed(ctx, ev)
	case StateFinanceWaitDoc:
		return e.handleFinanceDocument(ctx, ev)
	default:
		return e.handleFreeForm(ctx, ev, st)
	}
}

// sendWelcome greets a first-contact conversation. The sent flag is
// written as both a label and an attribute; either alone suppresses a
// repeat because the two writes are not transactionally linked.
func (e *Engine) sendWelcome(ctx context.Context, convID int, conv *chatwoot.Conversation) error {
	attrs := map[string]any{
		attrBotState:    string(StateTriage),
		attrBotAgent:    AgentTriage,
		attrWelcomeSent: true,
	}
	if phone := conv.Meta.Sender.PhoneNumber; phone != "" {
		attrs[attrPhone] = phone
	}
	if err := e.platform.MergeCustomAttributes(ctx, convID, attrs); err != nil {
		return err
	}
	if err := e.platform.AddLabels(ctx, convID, labelWelcomeSent, labelGPTOn); err != nil {
		return err
	}
	logger.InfoCF("flow", "Welcomed new conversation", map[string]any{"conversation_id": convID})
	return e.platform.SendMessage(ctx, convID, msgWelcome)
}

func (e *Engine) handleTriage(ctx context.Context, ev *webhook.InboundEvent) error {
	resolved := intent.ClassifyText(ev.Text)
	if resolved == intent.Unknown {
		resolved = e.classifyWithModel(ctx, ev.Text)
	}

	switch resolved {
	case intent.Support:
		return e.transition(ctx, ev.ConversationID, map[string]any{
			attrBotState: string(StateSupportCheck),
			attrBotAgent: AgentSupport,
		}, msgSupportGreeting)
	case intent.Finance:
		return e.transition(ctx, ev.ConversationID, map[string]any{
			attrBotState: string(StateFinanceWaitNeed),
			attrBotAgent: AgentFinance,
		}, msgFinanceMenu)
	case intent.Sales:
		return e.transition(ctx, ev.ConversationID, map[string]any{
			attrBotState: string(StateSalesFlow),
			attrBotAgent: AgentSales,
		}, msgSalesAsk)
	}
	return e.platform.SendMessage(ctx, ev.ConversationID, msgMenuAgain)
}

func (e *Engine) handleFinanceNeed(ctx context.Context, ev *webhook.InboundEvent) error {
	lower := strings.ToLower(ev.Text)
	choice := intent.MenuChoice(ev.Text)

	var need string
	switch {
	case choice == 1 || strings.Contains(lower, "boleto") || strings.Contains(lower, "segunda via") ||
		strings.Contains(lower, "2 via") || strings.Contains(lower, "fatura"):
		need = needBoleto
	case choice == 2 || strings.Contains(lower, "comprovante") || strings.Contains(lower, "paguei") ||
		strings.Contains(lower, "pagamento"):
		need = needReceipt
	default:
		return e.platform.SendMessage(ctx, ev.ConversationID, msgFinanceMenuAgain)
	}

	return e.transition(ctx, ev.ConversationID, map[string]any{
		attrBotState:    string(StateFinanceWaitDoc),
		attrFinanceNeed: need,
	}, msgAskDocument)
}

func (e *Engine) handleFinanceDocument(ctx context.Context, ev *webhook.InboundEvent) error {
	digits := stripNonDigits(ev.Text)
	if len(digits) != 11 && len(digits) != 14 {
		return e.platform.SendMessage(ctx, ev.ConversationID, msgAskDocumentAgain)
	}

	if err := e.platform.MergeCustomAttributes(ctx, ev.ConversationID, map[string]any{
		attrDocument: digits,
		attrBotState: string(StateFinanceHandle),
	}); err != nil {
		return err
	}

	reply := e.lookupOverdue(ctx, digits)
	return e.platform.SendMessage(ctx, ev.ConversationID, reply)
}

// lookupOverdue queries billing and renders the reply. Timeouts and
// upstream failures mean "no data", never a broken payment instruction.
func (e *Engine) lookupOverdue(ctx context.Context, document string) string {
	items, err := e.billing.OverdueItems(ctx, document)
	if err != nil {
		var te *upstream.TimeoutError
		if errors.As(err, &te) {
			logger.WarnCF("flow", "Billing lookup timed out", map[string]any{"elapsed": te.Elapsed.String()})
			return msgNoOverdue
		}
		logger.ErrorCF("flow", "Billing lookup failed", map[string]any{"error": err.Error()})
		return msgGenericFallback
	}
	return FormatOverdue(items)
}

// handleAttachment stores the attachment reference, runs vision on
// small images, and steers the conversation toward identification.
// Analysis failures degrade to an acknowledgement.
func (e *Engine) handleAttachment(ctx context.Context, convID int, att chatwoot.Attachment) error {
	attrs := map[string]any{
		attrBotState:       string(StateFinanceWaitDoc),
		attrBotAgent:       AgentFinance,
		attrAttachmentURL:  att.DataURL,
		attrAttachmentType: att.FileType,
	}
	reply := msgAskDocumentAfterAttachment

	if analysis := e.analyzeAttachment(ctx, att); analysis != nil {
		attrs[attrReceiptSummary] = analysis.Summary
		reply = msgReceiptSummary(analysis.Summary)
	}

	if err := e.platform.MergeCustomAttributes(ctx, convID, attrs); err != nil {
		return err
	}
	return e.platform.SendMessage(ctx, convID, reply)
}

// analyzeAttachment returns nil whenever vision analysis cannot or
// should not run.
func (e *Engine) analyzeAttachment(ctx context.Context, att chatwoot.Attachment) *ai.ReceiptAnalysis {
	if e.ai == nil || !isImage(att.FileType) {
		return nil
	}
	if e.attachmentMax > 0 && att.FileSize > e.attachmentMax {
		logger.InfoCF("flow", "Attachment over vision size limit", map[string]any{
			"size": att.FileSize, "limit": e.attachmentMax,
		})
		return nil
	}

	data, contentType, err := e.platform.FetchAttachmentBytes(ctx, att.DataURL)
	if err != nil {
		logger.WarnCF("flow", "Attachment fetch failed", map[string]any{"error": err.Error()})
		return nil
	}
	if e.attachmentMax > 0 && int64(len(data)) > e.attachmentMax {
		return nil
	}
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/jpeg"
	}

	analysis, err := e.ai.AnalyzeReceipt(ctx, data, contentType)
	if err != nil {
		logger.WarnCF("flow", "Receipt analysis failed", map[string]any{"error": err.Error()})
		return nil
	}
	if analysis == nil || strings.TrimSpace(analysis.Summary) == "" {
		return nil
	}
	return analysis
}

// handleFreeForm answers with the persona prompt for the current state.
// Completion failures degrade to the generic fallback.
func (e *Engine) handleFreeForm(ctx context.Context, ev *webhook.InboundEvent, st ConversationState) error {
	reply := msgGenericFallback
	if e.ai != nil {
		if out, err := e.ai.ChatCompletion(ctx, personaPrompt(st.State), ev.Text); err == nil && strings.TrimSpace(out) != "" {
			reply = strings.TrimSpace(out)
		} else if err != nil {
			logger.WarnCF("flow", "Completion failed", map[string]any{"error": err.Error()})
		}
	}
	return e.platform.SendMessage(ctx, ev.ConversationID, reply)
}

// classifyWithModel asks the completion service to break a tie the
// rules could not. Failures stay Unknown.
func (e *Engine) classifyWithModel(ctx context.Context, text string) intent.Intent {
	if e.ai == nil {
		return intent.Unknown
	}
	const system = `Classifique a mensagem de um cliente de provedor de internet em exatamente uma palavra: ` +
		`"support" (problema técnico), "finance" (boleto, fatura, pagamento), "sales" (planos, contratação) ou "unknown".`
	out, err := e.ai.ChatCompletion(ctx, system, text)
	if err != nil {
		logger.DebugCF("flow", "Model classification failed", map[string]any{"error": err.Error()})
		return intent.Unknown
	}
	return intent.ParseIntent(out)
}

// transition merges the attribute update, then sends the reply. The
// write goes first so a send failure leaves the conversation in the
// new state for the customer's retry.
func (e *Engine) transition(ctx context.Context, convID int, attrs map[string]any, reply string) error {
	if err := e.platform.MergeCustomAttributes(ctx, convID, attrs); err != nil {
		return err
	}
	return e.platform.SendMessage(ctx, convID, reply)
}

func isImage(fileType string) bool {
	return fileType == "image" || strings.HasPrefix(fileType, "image/")
}

func stripNonDigits(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
