package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/veloznet/atendebot/pkg/logger"
)

// renewalWindow is how close to expiry a session may get before Acquire
// signs in again instead of reusing it.
const renewalWindow = 120 * time.Second

// AuthSession is the header-borne credential set issued by the platform's
// token auth. It is replaced wholesale on every successful sign-in.
type AuthSession struct {
	AccessToken string
	Client      string
	UID         string
	TokenType   string
	ExpiresAt   time.Time
}

// complete reports whether all identity fields required on outbound calls
// are present.
func (s AuthSession) complete() bool {
	return s.AccessToken != "" && s.Client != "" && s.UID != ""
}

func (s AuthSession) fresh(now time.Time) bool {
	return s.complete() && now.Before(s.ExpiresAt.Add(-renewalWindow))
}

// apply attaches the session headers to an outbound request.
func (s AuthSession) apply(req *http.Request) {
	req.Header.Set("access-token", s.AccessToken)
	req.Header.Set("client", s.Client)
	req.Header.Set("uid", s.UID)
	if s.TokenType != "" {
		req.Header.Set("token-type", s.TokenType)
	}
}

// AuthError is a sign-in or validate failure. It is fatal for the in-flight
// operation; the next Acquire re-authenticates from scratch.
type AuthError struct {
	Op     string
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}

func (e *AuthError) Unwrap() error { return e.Err }

// SessionManager owns the authenticated-session lifecycle with the helpdesk
// platform. All gateway calls go through Acquire; Invalidate forces the next
// acquisition to sign in again.
type SessionManager struct {
	baseURL  string
	email    string
	password string
	http     *http.Client
	now      func() time.Time

	mu      sync.Mutex
	session AuthSession
}

func NewSessionManager(baseURL, email, password string, httpClient *http.Client) *SessionManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &SessionManager{
		baseURL:  baseURL,
		email:    email,
		password: password,
		http:     httpClient,
		now:      time.Now,
	}
}

// Acquire returns a usable session, signing in first when none exists, the
// identity fields are incomplete, or expiry is inside the renewal window.
func (m *SessionManager) Acquire(ctx context.Context) (AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.fresh(m.now()) {
		return m.session, nil
	}
	return m.signInLocked(ctx)
}

// Invalidate discards the cached session so the next Acquire signs in again.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = AuthSession{}
}

// ForceSignIn unconditionally performs a fresh sign-in, replacing whatever
// session is cached. Used by the gateway's 401 retry path.
func (m *SessionManager) ForceSignIn(ctx context.Context) (AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signInLocked(ctx)
}

// Validate performs the cheap validate call to refresh expiry, falling back
// to a full sign-in when validation fails for any reason.
func (m *SessionManager) Validate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.session.complete() {
		_, err := m.signInLocked(ctx)
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/auth/validate_token", nil)
	if err != nil {
		return err
	}
	m.session.apply(req)

	resp, err := m.http.Do(req)
	if err == nil {
		defer drain(resp)
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			// The server may rotate any credential field on validate;
			// absorb whatever identity headers it sent back.
			m.session = absorb(m.session, resp.Header)
			return nil
		}
	}

	logger.DebugC("chatwoot", "Session validate failed, signing in again")
	_, serr := m.signInLocked(ctx)
	return serr
}

func (m *SessionManager) signInLocked(ctx context.Context) (AuthSession, error) {
	body, err := json.Marshal(signInPayload{Email: m.email, Password: m.password})
	if err != nil {
		return AuthSession{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/auth/sign_in", bytes.NewReader(body))
	if err != nil {
		return AuthSession{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return AuthSession{}, &AuthError{Op: "sign_in", Err: err}
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return AuthSession{}, &AuthError{Op: "sign_in", Status: resp.StatusCode}
	}

	session := absorb(AuthSession{}, resp.Header)
	if !session.complete() {
		return AuthSession{}, &AuthError{Op: "sign_in", Err: fmt.Errorf("response missing identity headers")}
	}

	m.session = session
	logger.DebugCF("chatwoot", "Signed in", map[string]any{
		"uid":     session.UID,
		"expires": session.ExpiresAt.Format(time.RFC3339),
	})
	return session, nil
}

// absorb overlays every identity header present in h onto prev. Fields the
// server did not send keep their previous values.
func absorb(prev AuthSession, h http.Header) AuthSession {
	s := prev
	if v := h.Get("access-token"); v != "" {
		s.AccessToken = v
	}
	if v := h.Get("client"); v != "" {
		s.Client = v
	}
	if v := h.Get("uid"); v != "" {
		s.UID = v
	}
	if v := h.Get("token-type"); v != "" {
		s.TokenType = v
	}
	if v := h.Get("expiry"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			s.ExpiresAt = time.Unix(unix, 0)
		} else {
			// Unparseable expiry: make the session immediately renewable
			// rather than trusting a stale deadline.
			s.ExpiresAt = time.Time{}
		}
	}
	return s
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
