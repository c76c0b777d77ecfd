package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/veloznet/atendebot/cmd/atendebot/internal"
	"github.com/veloznet/atendebot/pkg/ai"
	"github.com/veloznet/atendebot/pkg/billing"
	"github.com/veloznet/atendebot/pkg/chatwoot"
	"github.com/veloznet/atendebot/pkg/flow"
	"github.com/veloznet/atendebot/pkg/logger"
	"github.com/veloznet/atendebot/pkg/webhook"
)

const consoleConversationID = 1

func consoleCmd(debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	var provider ai.Provider
	if cfg.HasAIConfig() {
		provider, err = ai.CreateProvider(cfg)
		if err != nil {
			return fmt.Errorf("error creating provider: %w", err)
		}
	}

	var lookup flow.BillingLookup = memBilling{}
	if cfg.Billing.BaseURL != "" {
		lookup = billing.NewClient(
			cfg.Billing.BaseURL,
			cfg.Billing.APIKey,
			cfg.Billing.Status,
			time.Duration(cfg.Billing.TimeoutSeconds)*time.Second,
		)
	}

	platform := newMemPlatform()
	engine := flow.NewEngine(platform, lookup, provider, cfg.Bot.AttachmentMaxBytes)

	fmt.Printf("%s Console mode: messages stay local (Ctrl+C to exit)\n\n", internal.Logo)
	interactiveMode(engine)

	return nil
}

func interactiveMode(engine *flow.Engine) {
	prompt := fmt.Sprintf("%s You: ", internal.Logo)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".atendebot_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return
		}

		ev := &webhook.InboundEvent{
			ConversationID: consoleConversationID,
			MessageID:      uuid.NewString(),
			Text:           input,
			Incoming:       true,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		if err := engine.HandleEvent(ctx, ev); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
		cancel()
	}
}

// memPlatform is an in-memory stand-in for the helpdesk API so the
// whole flow can be exercised offline.
type memPlatform struct {
	attrs  map[string]any
	labels []string
}

func newMemPlatform() *memPlatform {
	return &memPlatform{attrs: make(map[string]any)}
}

func (m *memPlatform) GetConversation(ctx context.Context, conversationID int) (*chatwoot.Conversation, error) {
	attrs := make(map[string]any, len(m.attrs))
	for k, v := range m.attrs {
		attrs[k] = v
	}
	return &chatwoot.Conversation{
		ID:               conversationID,
		Labels:           append([]string(nil), m.labels...),
		CustomAttributes: attrs,
	}, nil
}

func (m *memPlatform) SendMessage(ctx context.Context, conversationID int, content string) error {
	fmt.Printf("\n🤖 Bot: %s\n\n", content)
	return nil
}

func (m *memPlatform) AddLabels(ctx context.Context, conversationID int, labels ...string) error {
	for _, l := range labels {
		if !m.hasLabel(l) {
			m.labels = append(m.labels, l)
		}
	}
	return nil
}

func (m *memPlatform) MergeCustomAttributes(ctx context.Context, conversationID int, attrs map[string]any) error {
	for k, v := range attrs {
		m.attrs[k] = v
	}
	return nil
}

func (m *memPlatform) FetchAttachmentBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	return nil, "", errors.New("attachments are not supported in console mode")
}

func (m *memPlatform) hasLabel(name string) bool {
	for _, l := range m.labels {
		if l == name {
			return true
		}
	}
	return false
}

type memBilling struct{}

func (memBilling) OverdueItems(ctx context.Context, document string) ([]billing.Item, error) {
	return nil, nil
}
