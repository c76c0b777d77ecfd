package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/veloznet/atendebot/pkg/logger"
	"github.com/veloznet/atendebot/pkg/upstream"
)

// maxAttachmentFetch caps how many bytes FetchAttachmentBytes will read,
// independent of the orchestrator's own analysis ceiling.
const maxAttachmentFetch = 16 << 20

// Client is the typed gateway over the platform's conversation API. Every
// operation acquires credentials from the SessionManager, retries exactly
// once after a forced re-auth on 401, and surfaces any other non-2xx as an
// *upstream.Error.
type Client struct {
	baseURL   string
	accountID int
	sessions  *SessionManager
	http      *http.Client
}

func NewClient(baseURL string, accountID int, sessions *SessionManager, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:   baseURL,
		accountID: accountID,
		sessions:  sessions,
		http:      httpClient,
	}
}

func (c *Client) conversationURL(conversationID int) string {
	return fmt.Sprintf("%s/api/v1/accounts/%d/conversations/%d", c.baseURL, c.accountID, conversationID)
}

// GetConversation fetches the conversation document, including labels and
// the custom attribute store.
func (c *Client) GetConversation(ctx context.Context, conversationID int) (*Conversation, error) {
	resp, err := c.authedDo(ctx, "get_conversation", http.MethodGet, c.conversationURL(conversationID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var conv Conversation
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		return nil, fmt.Errorf("get_conversation: decoding response: %w", err)
	}
	return &conv, nil
}

// SendMessage posts an outgoing message to the conversation.
func (c *Client) SendMessage(ctx context.Context, conversationID int, content string) error {
	url := c.conversationURL(conversationID) + "/messages"
	resp, err := c.authedDo(ctx, "send_message", http.MethodPost, url, outgoingMessage{
		Content:     content,
		MessageType: "outgoing",
	})
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// AddLabels adds labels to the conversation. The write is additive: the
// current label set is read first and the union is written, so existing
// labels are never removed. If the dedicated label endpoint fails, the same
// union is PATCHed onto the conversation instead.
func (c *Client) AddLabels(ctx context.Context, conversationID int, labels ...string) error {
	requested := dedupeStrings(labels)
	if len(requested) == 0 {
		return nil
	}

	union := requested
	if conv, err := c.GetConversation(ctx, conversationID); err == nil {
		union = dedupeStrings(append(append([]string{}, conv.Labels...), requested...))
	}

	url := c.conversationURL(conversationID) + "/labels"
	resp, err := c.authedDo(ctx, "add_labels", http.MethodPost, url, labelsPayload{Labels: union})
	if err == nil {
		drain(resp)
		return nil
	}

	logger.WarnCF("chatwoot", "Label endpoint failed, falling back to PATCH", map[string]any{
		"conversation_id": conversationID,
		"error":           err.Error(),
	})

	resp, perr := c.authedDo(ctx, "add_labels_patch", http.MethodPatch, c.conversationURL(conversationID), labelsPayload{Labels: union})
	if perr != nil {
		return perr
	}
	drain(resp)
	return nil
}

// MergeCustomAttributes reads the current attribute document, shallow-merges
// attrs on top, and writes the result back. Unrelated fields written by a
// concurrent handler survive.
func (c *Client) MergeCustomAttributes(ctx context.Context, conversationID int, attrs map[string]any) error {
	if len(attrs) == 0 {
		return nil
	}

	conv, err := c.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	merged := make(map[string]any, len(conv.CustomAttributes)+len(attrs))
	for k, v := range conv.CustomAttributes {
		merged[k] = v
	}
	for k, v := range attrs {
		merged[k] = v
	}

	url := c.conversationURL(conversationID) + "/custom_attributes"
	resp, err := c.authedDo(ctx, "merge_custom_attributes", http.MethodPost, url, customAttributesPayload{CustomAttributes: merged})
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// FetchAttachmentBytes downloads an attachment by its absolute URL with the
// session headers attached. Returns the bytes and the declared content type.
func (c *Client) FetchAttachmentBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	resp, err := c.authedDo(ctx, "fetch_attachment", http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentFetch))
	if err != nil {
		return nil, "", fmt.Errorf("fetch_attachment: reading body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// authedDo performs one authenticated request. A 401 triggers exactly one
// forced sign-in and one retry; a second 401 is surfaced as a fatal
// *upstream.Error without further retries.
func (c *Client) authedDo(ctx context.Context, op, method, url string, payload any) (*http.Response, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding payload: %w", op, err)
		}
	}

	attempt := func(session AuthSession) (*http.Response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		session.apply(req)
		return c.http.Do(req)
	}

	session, err := c.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := attempt(session)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		logger.DebugCF("chatwoot", "Unauthorized, re-authenticating", map[string]any{"op": op})

		session, err = c.sessions.ForceSignIn(ctx)
		if err != nil {
			return nil, err
		}
		resp, err = attempt(session)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &upstream.Error{Op: op, Status: resp.StatusCode, Body: string(raw)}
	}

	return resp, nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
