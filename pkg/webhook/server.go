package webhook

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/veloznet/atendebot/pkg/logger"
)

const (
	maxPayloadBytes = 1 << 20
	handlerTimeout  = 60 * time.Second
)

// Handler processes one normalized inbound event.
type Handler interface {
	HandleEvent(ctx context.Context, ev *InboundEvent) error
}

// Server receives platform webhook deliveries, acknowledges them
// immediately, and hands actionable events to the handler in the
// background. The platform retries on slow acks, so acknowledgement
// must never wait on downstream calls.
type Server struct {
	path    string
	dedupe  *Deduper
	handler Handler

	wg sync.WaitGroup
}

// NewServer returns a Server that listens on path and dispatches to
// handler after dedupe filtering.
func NewServer(path string, dedupe *Deduper, handler Handler) *Server {
	return &Server{path: path, dedupe: dedupe, handler: handler}
}

// Routes registers the webhook endpoint and the health probes on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc(s.path, s.handleWebhook)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleHealth)
}

// Drain waits for in-flight event processing to finish or the context
// to expire.
func (s *Server) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	// Ack before processing; delivery retries are driven by this
	// response, not by handler outcome.
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"accepted"}`))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.process(body)
	}()
}

func (s *Server) process(body []byte) {
	ev := Normalize(body)
	if ev == nil {
		logger.DebugC("webhook", "Dropped non-actionable delivery")
		return
	}
	if s.dedupe.Seen(ev) {
		logger.DebugCF("webhook", "Dropped duplicate delivery", map[string]any{
			"conversation_id": ev.ConversationID,
			"message_id":      ev.MessageID,
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := s.handler.HandleEvent(ctx, ev); err != nil {
		logger.ErrorCF("webhook", "Event handling failed", map[string]any{
			"conversation_id": ev.ConversationID,
			"error":           err.Error(),
		})
	}
}
