// Package billing queries the ERP billing API for a customer's overdue
// invoices. Responses vary across ERP versions, so each item keeps its
// raw JSON alongside the fields we managed to decode.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/veloznet/atendebot/pkg/upstream"
)

// Item is one invoice returned by the billing API. Raw preserves the
// exact upstream object for the formatting layer, which scans it for
// field aliases the typed decode does not cover.
type Item struct {
	ID        FlexibleString `json:"id"`
	Amount    FlexibleString `json:"valor"`
	DueDate   FlexibleString `json:"vencimento"`
	Barcode   FlexibleString `json:"linha_digitavel"`
	PixCode   FlexibleString `json:"pix"`
	Link      FlexibleString `json:"link"`
	Status    FlexibleString `json:"status"`
	Raw       json.RawMessage `json:"-"`
}

// FlexibleString unmarshals from a JSON string or number. ERPs disagree
// on whether amounts and ids are quoted.
type FlexibleString string

func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexibleString(n.String())
		return nil
	}
	*f = ""
	return nil
}

// Client talks to the billing API.
type Client struct {
	baseURL string
	apiKey  string
	status  string
	http    *http.Client
}

// NewClient returns a billing client. timeout bounds each lookup; the
// conversation must not hang on a slow ERP.
func NewClient(baseURL, apiKey, status string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		status:  status,
		http:    &http.Client{Timeout: timeout},
	}
}

// OverdueItems fetches the customer's open invoices by document number
// (CPF or CNPJ). A timeout surfaces as upstream.TimeoutError so callers
// can degrade instead of failing the conversation.
func (c *Client) OverdueItems(ctx context.Context, document string) ([]Item, error) {
	start := time.Now()

	u := fmt.Sprintf("%s/invoices?document=%s&status=%s",
		c.baseURL, url.QueryEscape(document), url.QueryEscape(c.status))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			return nil, &upstream.TimeoutError{Op: "billing.OverdueItems", Elapsed: time.Since(start)}
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &upstream.Error{Op: "billing.OverdueItems", Status: resp.StatusCode, Body: string(body)}
	}

	return decodeItems(body)
}

// decodeItems accepts either a bare array or an object wrapping one
// under common envelope keys.
func decodeItems(body []byte) ([]Item, error) {
	var rawItems []json.RawMessage
	if err := json.Unmarshal(body, &rawItems); err != nil {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("billing: undecodable response: %w", err)
		}
		for _, key := range []string{"items", "invoices", "faturas", "data", "results"} {
			if inner, ok := envelope[key]; ok {
				if err := json.Unmarshal(inner, &rawItems); err == nil {
					break
				}
			}
		}
	}

	items := make([]Item, 0, len(rawItems))
	for _, raw := range rawItems {
		var it Item
		if err := json.Unmarshal(raw, &it); err != nil {
			continue
		}
		it.Raw = raw
		items = append(items, it)
	}
	return items, nil
}
