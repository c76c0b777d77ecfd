// Package flow implements the per-conversation state machine that
// drives the triage, support, finance, and sales personas. State lives
// in the helpdesk platform's custom attributes; every write is a merge
// so concurrent handlers never clobber each other.
package flow

import (
	"strings"

	"github.com/veloznet/atendebot/pkg/chatwoot"
)

// State is the conversation's position in the bot flow.
type State string

const (
	StateInitial         State = ""
	StateTriage          State = "triage"
	StateSupportCheck    State = "support_check"
	StateFinanceWaitNeed State = "finance_wait_need"
	StateFinanceWaitDoc  State = "finance_wait_cpf_or_match"
	StateFinanceHandle   State = "finance_handle"
	StateSalesFlow       State = "sales_flow"
)

// Persona display labels stored alongside the state. Correlated with
// the state but not authoritative over it.
const (
	AgentTriage  = "triagem"
	AgentSupport = "suporte"
	AgentFinance = "financeiro"
	AgentSales   = "vendas"
)

// Custom attribute keys on the conversation document.
const (
	attrBotState       = "bot_state"
	attrBotAgent       = "bot_agent"
	attrDocument       = "cpf_cnpj"
	attrPhone          = "whatsapp_phone"
	attrFinanceNeed    = "finance_need"
	attrWelcomeSent    = "welcome_sent"
	attrAttachmentURL  = "last_attachment_url"
	attrAttachmentType = "last_attachment_type"
	attrReceiptSummary = "last_receipt_analysis"
)

// Conversation labels.
const (
	labelGPTOn       = "gpt_on"
	labelWelcomeSent = "welcome_sent"
)

// Finance need values.
const (
	needBoleto  = "boleto"
	needReceipt = "comprovante"
)

// ParseState maps a stored attribute value to a State. The store is a
// remote document with ad hoc strings, so anything unrecognized means
// the conversation starts over rather than crashing.
func ParseState(s string) State {
	switch State(strings.TrimSpace(s)) {
	case StateTriage, StateSupportCheck, StateFinanceWaitNeed,
		StateFinanceWaitDoc, StateFinanceHandle, StateSalesFlow:
		return State(strings.TrimSpace(s))
	}
	return StateInitial
}

// ConversationState is the bot-relevant view of a conversation's
// attribute document and labels.
type ConversationState struct {
	State       State
	Agent       string
	Document    string
	FinanceNeed string
	WelcomeSent bool
	Labels      []string
}

// StateFromConversation extracts the bot state from a fetched
// conversation.
func StateFromConversation(conv *chatwoot.Conversation) ConversationState {
	attrs := conv.CustomAttributes
	return ConversationState{
		State:       ParseState(attrString(attrs, attrBotState)),
		Agent:       attrString(attrs, attrBotAgent),
		Document:    attrString(attrs, attrDocument),
		FinanceNeed: attrString(attrs, attrFinanceNeed),
		WelcomeSent: attrBool(attrs, attrWelcomeSent),
		Labels:      conv.Labels,
	}
}

func (s ConversationState) hasLabel(name string) bool {
	for _, l := range s.Labels {
		if l == name {
			return true
		}
	}
	return false
}

func attrString(attrs map[string]any, key string) string {
	if attrs == nil {
		return ""
	}
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}

func attrBool(attrs map[string]any, key string) bool {
	if attrs == nil {
		return false
	}
	switch v := attrs[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	}
	return false
}
