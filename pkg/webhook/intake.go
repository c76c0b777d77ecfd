// Package webhook turns raw platform webhook deliveries into canonical
// inbound events, suppressing duplicates and everything non-actionable
// before any conversation state is touched.
package webhook

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/veloznet/atendebot/pkg/chatwoot"
)

// InboundEvent is the canonical form of one actionable webhook delivery.
type InboundEvent struct {
	ConversationID int
	MessageID      string
	Text           string
	Attachments    []chatwoot.Attachment
	Private        bool
	Incoming       bool
}

// flexString accepts a JSON string or number; the platform is not
// consistent about id field types across webhook versions.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	*f = ""
	return nil
}

// messageDirection accepts the webhook's string form ("incoming") and the
// API's numeric form (0 incoming, 1 outgoing).
type messageDirection string

func (m *messageDirection) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = messageDirection(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		switch n {
		case 0:
			*m = "incoming"
		case 1:
			*m = "outgoing"
		default:
			*m = messageDirection(strconv.Itoa(n))
		}
		return nil
	}
	*m = ""
	return nil
}

type eventPayload struct {
	Event        string                `json:"event"`
	ID           flexString            `json:"id"`
	Content      string                `json:"content"`
	MessageType  messageDirection      `json:"message_type"`
	Private      bool                  `json:"private"`
	Conversation conversationRef       `json:"conversation"`
	Attachments  []chatwoot.Attachment `json:"attachments"`
}

type conversationRef struct {
	ID int `json:"id"`
}

// Normalize validates a raw webhook payload and returns the canonical
// event, or nil when the delivery is not actionable: wrong event kind,
// outgoing echo, private note, missing conversation id, or no content.
// Malformed JSON is treated the same as any other unactionable payload.
func Normalize(raw []byte) *InboundEvent {
	var p eventPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}

	if p.Event != "message_created" {
		return nil
	}
	if p.MessageType != "incoming" {
		return nil
	}
	if p.Private {
		return nil
	}
	if p.Conversation.ID <= 0 {
		return nil
	}

	text := strings.TrimSpace(p.Content)
	if text == "" && len(p.Attachments) == 0 {
		return nil
	}

	return &InboundEvent{
		ConversationID: p.Conversation.ID,
		MessageID:      string(p.ID),
		Text:           text,
		Attachments:    p.Attachments,
		Private:        false,
		Incoming:       true,
	}
}
