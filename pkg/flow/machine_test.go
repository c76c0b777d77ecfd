package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/veloznet/atendebot/pkg/ai"
	"github.com/veloznet/atendebot/pkg/billing"
	"github.com/veloznet/atendebot/pkg/chatwoot"
	"github.com/veloznet/atendebot/pkg/upstream"
	"github.com/veloznet/atendebot/pkg/webhook"
)

// fakePlatform records side effects and serves the attribute document
// back on the next GetConversation, mimicking the remote store.
type fakePlatform struct {
	attrs       map[string]any
	labels      []string
	sent        []string
	sendErr     error
	attachments map[string]fakeBlob
	phone       string
}

type fakeBlob struct {
	data        []byte
	contentType string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		attrs:       make(map[string]any),
		attachments: make(map[string]fakeBlob),
	}
}

func (f *fakePlatform) GetConversation(ctx context.Context, conversationID int) (*chatwoot.Conversation, error) {
	attrs := make(map[string]any, len(f.attrs))
	for k, v := range f.attrs {
		attrs[k] = v
	}
	return &chatwoot.Conversation{
		ID:               conversationID,
		Labels:           append([]string(nil), f.labels...),
		CustomAttributes: attrs,
		Meta:             chatwoot.ConversationMeta{Sender: chatwoot.Contact{PhoneNumber: f.phone}},
	}, nil
}

func (f *fakePlatform) SendMessage(ctx context.Context, conversationID int, content string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, content)
	return nil
}

func (f *fakePlatform) AddLabels(ctx context.Context, conversationID int, labels ...string) error {
	for _, l := range labels {
		found := false
		for _, have := range f.labels {
			if have == l {
				found = true
				break
			}
		}
		if !found {
			f.labels = append(f.labels, l)
		}
	}
	return nil
}

func (f *fakePlatform) MergeCustomAttributes(ctx context.Context, conversationID int, attrs map[string]any) error {
	for k, v := range attrs {
		f.attrs[k] = v
	}
	return nil
}

func (f *fakePlatform) FetchAttachmentBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	blob, ok := f.attachments[rawURL]
	if !ok {
		return nil, "", errors.New("not found")
	}
	return blob.data, blob.contentType, nil
}

type fakeBillingLookup struct {
	items    []billing.Item
	err      error
	queried  []string
}

func (f *fakeBillingLookup) OverdueItems(ctx context.Context, document string) ([]billing.Item, error) {
	f.queried = append(f.queried, document)
	return f.items, f.err
}

type fakeAI struct {
	chatReply string
	chatErr   error
	analysis  *ai.ReceiptAnalysis
	visionErr error
}

func (f *fakeAI) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	return f.chatReply, f.chatErr
}

func (f *fakeAI) AnalyzeReceipt(ctx context.Context, image []byte, mimeType string) (*ai.ReceiptAnalysis, error) {
	return f.analysis, f.visionErr
}

func event(convID int, text string) *webhook.InboundEvent {
	return &webhook.InboundEvent{ConversationID: convID, MessageID: "1", Text: text, Incoming: true}
}

func TestHandleEvent_FreshConversationGetsWelcomeOnce(t *testing.T) {
	p := newFakePlatform()
	p.phone = "+5511999990000"
	e := NewEngine(p, &fakeBillingLookup{}, nil, 0)

	if err := e.HandleEvent(context.Background(), event(1, "oi")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.sent) != 1 || !strings.Contains(p.sent[0], "1️⃣") {
		t.Fatalf("expected welcome menu, got %v", p.sent)
	}
	if p.attrs[attrBotState] != string(StateTriage) {
		t.Errorf("bot_state: got %v", p.attrs[attrBotState])
	}
	if p.attrs[attrWelcomeSent] != true {
		t.Errorf("welcome_sent attribute not set")
	}
	if p.attrs[attrPhone] != "+5511999990000" {
		t.Errorf("phone not captured: %v", p.attrs[attrPhone])
	}
	hasLabel := false
	for _, l := range p.labels {
		if l == labelWelcomeSent {
			hasLabel = true
		}
	}
	if !hasLabel {
		t.Error("welcome_sent label not applied")
	}

	// Redelivery after state wrote through: classification runs, not a
	// second welcome.
	if err := e.HandleEvent(context.Background(), event(1, "oi")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.sent) != 2 {
		t.Fatalf("expected exactly one more message, got %v", p.sent)
	}
	if p.sent[1] == msgWelcome {
		t.Error("welcome sent twice")
	}
}

func TestHandleEvent_LabelAloneSuppressesWelcome(t *testing.T) {
	p := newFakePlatform()
	p.labels = []string{labelWelcomeSent}
	e := NewEngine(p, &fakeBillingLookup{}, nil, 0)

	if err := e.HandleEvent(context.Background(), event(1, "oi")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.sent) != 1 || p.sent[0] == msgWelcome {
		t.Fatalf("label guard failed: %v", p.sent)
	}
}

func TestHandleEvent_TriageMenuChoiceFinance(t *testing.T) {
	p := newFakePlatform()
	p.attrs[attrBotState] = string(StateTriage)
	p.attrs[attrWelcomeSent] = true
	e := NewEngine(p, &fakeBillingLookup{}, nil, 0)

	if err := e.HandleEvent(context.Background(), event(1, "2")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.attrs[attrBotState] != string(StateFinanceWaitNeed) {
		t.Errorf("bot_state: got %v, want %s", p.attrs[attrBotState], StateFinanceWaitNeed)
	}
	if p.attrs[attrBotAgent] != AgentFinance {
		t.Errorf("bot_agent: got %v, want %s", p.attrs[attrBotAgent], AgentFinance)
	}
	if len(p.sent) != 1 || !strings.Contains(p.sent[0], "boleto") {
		t.Fatalf("expected finance menu, got %v", p.sent)
	}
}

func TestHandleEvent_TriageUnknownRepresentsMenu(t *testing.T) {
	p := newFakePlatform()
	p.attrs[attrBotState] = string(StateTriage)
	p.attrs[attrWelcomeSent] = true
	e := NewEngine(p, &fakeBillingLookup{}, nil, 0)

	if err := e.HandleEvent(context.Background(), event(1, "bom dia")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.attrs[attrBotState] != string(StateTriage) {
		t.Errorf("state should be unchanged, got %v", p.attrs[attrBotState])
	}
	if len(p.sent) != 1 || p.sent[0] != msgMenuAgain {
		t.Fatalf("expected menu re-present, got %v", p.sent)
	}
}

func TestHandleEvent_FinanceNeedBoleto(t *testing.T) {
	p := newFakePlatform()
	p.attrs[attrBotState] = string(StateFinanceWaitNeed)
	p.attrs[attrWelcomeSent] = true
	e := NewEngine(p, &fakeBillingLookup{}, nil, 0)

	if err := e.HandleEvent(context.Background(), event(1, "1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.attrs[attrFinanceNeed] != needBoleto {
		t.Errorf("finance_need: got %v", p.attrs[attrFinanceNeed])
	}
	if p.attrs[attrBotState] != string(StateFinanceWaitDoc) {
		t.Errorf("bot_state: got %v", p.attrs[attrBotState])
	}
}

func TestHandleEvent_FinanceDocumentLookup(t *testing.T) {
	p := newFakePlatform()
	p.attrs[attrBotState] = string(StateFinanceWaitDoc)
	p.attrs[attrWelcomeSent] = true
	lookup := &fakeBillingLookup{items: []billing.Item{{
		Amount:  "150.00",
		DueDate: "2026-09-10",
		Barcode: "84670000001503",
	}}}
	e := NewEngine(p, lookup, nil, 0)

	if err := e.HandleEvent(context.Background(), event(1, "123.456.789-01")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(lookup.queried) != 1 || lookup.queried[0] != "12345678901" {
		t.Fatalf("lookup document: got %v", lookup.queried)
	}
	if p.attrs[attrDocument] != "12345678901" {
		t.Errorf("document attr: got %v", p.attrs[attrDocument])
	}
	if p.attrs[attrBotState] != string(StateFinanceHandle) {
		t.Errorf("bot_state: got %v", p.attrs[attrBotState])
	}
	if len(p.sent) != 1 {
		t.Fatalf("sent: %v", p.sent)
	}
	if !strings.Contains(p.sent[0], "150.00") || !strings.Contains(p.sent[0], "2026-09-10") {
		t.Errorf("reply missing invoice data: %q", p.sent[0])
	}
}

func TestHandleEvent_FinanceDocumentRejectsShortInput(t *testing.T) {
	p := newFakePlatform()
	p.attrs[attrBotState] = string(StateFinanceWaitDoc)
	p.attrs[attrWelcomeSent] = true
	lookup := &fakeBillingLookup{}
	e := NewEngine(p, lookup, nil, 0)

	if err := e.HandleEvent(context.Background(), event(1, "123")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(lookup.queried) != 0 {
		t.Error("lookup must not run for a malformed document")
	}
	if p.attrs[attrBotState] != string(StateFinanceWaitDoc) {
		t.Errorf("state should be unchanged, got %v", p.attrs[attrBotState])
	}
	if len(p.sent) != 1 || p.sent[0] != msgAskDocumentAgain {
		t.Fatalf("expected re-ask, got %v", p.sent)
	}
}

func TestHandleEvent_ImageAttachmentRunsVision(t *testing.T) {
	p := newFakePlatform()
	p.attrs[attrBotState] = string(StateTriage)
	p.attrs[attrWelcomeSent] = true
	p.attachments["https://cw/blob/1.png"] = fakeBlob{data: []byte("png"), contentType: "image/png"}
	provider := &fakeAI{analysis: &ai.ReceiptAnalysis{Summary: "Pagamento de R$ 89,90 em 28/08/2026"}}
	e := NewEngine(p, &fakeBillingLookup{}, provider, 5<<20)

	ev := event(1, "")
	ev.Attachments = []chatwoot.Attachment{{
		ID: 1, FileType: "image", DataURL: "https://cw/blob/1.png", FileSize: 2048,
	}}
	if err := e.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.attrs[attrBotState] != string(StateFinanceWaitDoc) {
		t.Errorf("bot_state: got %v, want %s", p.attrs[attrBotState], StateFinanceWaitDoc)
	}
	if p.attrs[attrReceiptSummary] != "Pagamento de R$ 89,90 em 28/08/2026" {
		t.Errorf("receipt summary attr: got %v", p.attrs[attrReceiptSummary])
	}
	if len(p.sent) != 1 || !strings.Contains(p.sent[0], "89,90") {
		t.Fatalf("expected summary in reply, got %v", p.sent)
	}
}

func TestHandleEvent_OversizedAttachmentSkipsVision(t *testing.T) {
	p := newFakePlatform()
	p.attrs[attrBotState] = string(StateTriage)
	p.attrs[attrWelcomeSent] = true
	provider := &fakeAI{analysis: &ai.ReceiptAnalysis{Summary: "should not be used"}}
	e := NewEngine(p, &fakeBillingLookup{}, provider, 1024)

	ev := event(1, "")
	ev.Attachments = []chatwoot.Attachment{{
		ID: 1, FileType: "image", DataURL: "https://cw/blob/big.png", FileSize: 10 << 20,
	}}
	if err := e.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.sent) != 1 || p.sent[0] != msgAskDocumentAfterAttachment {
		t.Fatalf("expected generic attachment ack, got %v", p.sent)
	}
	if _, ok := p.attrs[attrReceiptSummary]; ok {
		t.Error("no analysis should be stored for oversized attachments")
	}
}

func TestHandleEvent_VisionFailureDegrades(t *testing.T) {
	p := newFakePlatform()
	p.attrs[attrBotState] = string(StateFinanceWaitDoc)
	p.attrs[attrWelcomeSent] = true
	p.attachments["https://cw/blob/1.png"] = fakeBlob{data: []byte("png"), contentType: "image/png"}
	provider := &fakeAI{visionErr: errors.New("model unavailable")}
	e := NewEngine(p, &fakeBillingLookup{}, provider, 5<<20)

	ev := event(1, "")
	ev.Attachments = []chatwoot.Attachment{{
		ID: 1, FileType: "image", DataURL: "https://cw/blob/1.png", FileSize: 2048,
	}}
	if err := e.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("analysis failure must not fail the handler: %v", err)
	}
	if len(p.sent) != 1 || p.sent[0] != msgAskDocumentAfterAttachment {
		t.Fatalf("expected degraded ack, got %v", p.sent)
	}
}

func TestHandleEvent_SupportFallsBackToPersonaChat(t *testing.T) {
	p := newFakePlatform()
	p.attrs[attrBotState] = string(StateSupportCheck)
	p.attrs[attrWelcomeSent] = true
	provider := &fakeAI{chatReply: "Tente reiniciar o roteador."}
	e := NewEngine(p, &fakeBillingLookup{}, provider, 0)

	if err := e.HandleEvent(context.Background(), event(1, "minha internet caiu de novo")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.sent) != 1 || p.sent[0] != "Tente reiniciar o roteador." {
		t.Fatalf("expected model reply, got %v", p.sent)
	}
	if p.attrs[attrBotState] != string(StateSupportCheck) {
		t.Errorf("state should be unchanged, got %v", p.attrs[attrBotState])
	}
}

func TestHandleEvent_ChatFailureSendsGenericFallback(t *testing.T) {
	p := newFakePlatform()
	p.attrs[attrBotState] = string(StateSalesFlow)
	p.attrs[attrWelcomeSent] = true
	provider := &fakeAI{chatErr: errors.New("rate limited")}
	e := NewEngine(p, &fakeBillingLookup{}, provider, 0)

	if err := e.HandleEvent(context.Background(), event(1, "me fala dos planos")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.sent) != 1 || p.sent[0] != msgGenericFallback {
		t.Fatalf("expected generic fallback, got %v", p.sent)
	}
}

func TestHandleEvent_SendFailurePropagates(t *testing.T) {
	p := newFakePlatform()
	p.attrs[attrBotState] = string(StateTriage)
	p.attrs[attrWelcomeSent] = true
	p.sendErr = errors.New("upstream down")
	e := NewEngine(p, &fakeBillingLookup{}, nil, 0)

	if err := e.HandleEvent(context.Background(), event(1, "2")); err == nil {
		t.Fatal("send failure must propagate")
	}
}

func TestHandleEvent_BillingTimeoutTreatedAsNoData(t *testing.T) {
	p := newFakePlatform()
	p.attrs[attrBotState] = string(StateFinanceWaitDoc)
	p.attrs[attrWelcomeSent] = true
	lookup := &fakeBillingLookup{err: &upstream.TimeoutError{Op: "billing.OverdueItems"}}
	e := NewEngine(p, lookup, nil, 0)

	if err := e.HandleEvent(context.Background(), event(1, "12345678901")); err != nil {
		t.Fatalf("timeout must not fail the handler: %v", err)
	}
	if len(p.sent) != 1 || p.sent[0] != msgNoOverdue {
		t.Fatalf("expected no-data reply, got %v", p.sent)
	}
}

func TestHandleEvent_UnrecognizedStoredStateStartsOver(t *testing.T) {
	p := newFakePlatform()
	p.attrs[attrBotState] = "garbage_state"
	e := NewEngine(p, &fakeBillingLookup{}, nil, 0)

	if err := e.HandleEvent(context.Background(), event(1, "oi")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.sent) != 1 || p.sent[0] != msgWelcome {
		t.Fatalf("expected welcome for unrecognized state, got %v", p.sent)
	}
}
