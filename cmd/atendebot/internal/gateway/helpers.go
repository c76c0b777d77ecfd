package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/veloznet/atendebot/cmd/atendebot/internal"
	"github.com/veloznet/atendebot/pkg/ai"
	"github.com/veloznet/atendebot/pkg/billing"
	"github.com/veloznet/atendebot/pkg/chatwoot"
	"github.com/veloznet/atendebot/pkg/flow"
	"github.com/veloznet/atendebot/pkg/logger"
	"github.com/veloznet/atendebot/pkg/webhook"
)

func gatewayCmd(debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if !debug && cfg.Log.Level != "" {
		logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	}

	if cfg.Chatwoot.BaseURL == "" {
		return fmt.Errorf("chatwoot.base_url is not configured (edit %s)", internal.GetConfigPath())
	}

	sessions := chatwoot.NewSessionManager(cfg.Chatwoot.BaseURL, cfg.Chatwoot.Email, cfg.Chatwoot.Password, nil)
	platform := chatwoot.NewClient(cfg.Chatwoot.BaseURL, cfg.Chatwoot.AccountID, sessions, nil)

	var billingClient *billing.Client
	if cfg.Billing.BaseURL != "" {
		billingClient = billing.NewClient(
			cfg.Billing.BaseURL,
			cfg.Billing.APIKey,
			cfg.Billing.Status,
			time.Duration(cfg.Billing.TimeoutSeconds)*time.Second,
		)
		fmt.Println("✓ Billing lookup enabled")
	} else {
		fmt.Println("⚠ Warning: billing lookup not configured")
	}

	var provider ai.Provider
	if cfg.HasAIConfig() {
		provider, err = ai.CreateProvider(cfg)
		if err != nil {
			return fmt.Errorf("error creating provider: %w", err)
		}
		fmt.Printf("✓ AI provider ready (model %s)\n", cfg.AI.Model)
	} else {
		fmt.Println("⚠ Warning: no AI provider configured, replies degrade to fixed fallbacks")
	}

	engine := flow.NewEngine(platform, billingOrNoop(billingClient), provider, cfg.Bot.AttachmentMaxBytes)
	deduper := webhook.NewDeduper(time.Duration(cfg.Bot.DedupeTTLSeconds) * time.Second)
	server := webhook.NewServer(cfg.Gateway.WebhookPath, deduper, engine)

	mux := http.NewServeMux()
	server.Routes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keepalive := chatwoot.NewKeepAlive(sessions, cfg.Chatwoot.KeepaliveCron)
	go keepalive.Run(ctx)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("gateway", "HTTP server error", map[string]any{"error": err.Error()})
		}
	}()

	fmt.Printf("✓ Gateway started on %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Printf("✓ Webhook endpoint at %s, health at /health and /ready\n", cfg.Gateway.WebhookPath)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WarnCF("gateway", "HTTP shutdown error", map[string]any{"error": err.Error()})
	}
	if err := server.Drain(shutdownCtx); err != nil {
		logger.WarnC("gateway", "In-flight events did not drain before deadline")
	}
	fmt.Println("✓ Gateway stopped")

	return nil
}

// billingOrNoop keeps the engine total when billing is not configured.
func billingOrNoop(c *billing.Client) flow.BillingLookup {
	if c != nil {
		return c
	}
	return noopBilling{}
}

type noopBilling struct{}

func (noopBilling) OverdueItems(ctx context.Context, document string) ([]billing.Item, error) {
	return nil, nil
}
