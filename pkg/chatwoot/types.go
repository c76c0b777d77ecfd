// Package chatwoot is a typed client for the helpdesk platform's
// conversation API, plus the authenticated-session lifecycle every call
// depends on.
package chatwoot

// Conversation is the subset of the platform's conversation document the
// orchestrator reads: labels, the custom attribute store, and the contact.
type Conversation struct {
	ID               int              `json:"id"`
	Status           string           `json:"status"`
	Labels           []string         `json:"labels"`
	CustomAttributes map[string]any   `json:"custom_attributes"`
	Meta             ConversationMeta `json:"meta"`
}

type ConversationMeta struct {
	Sender Contact `json:"sender"`
}

type Contact struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// Attachment mirrors the attachment entries the platform includes both in
// webhook payloads and in message documents.
type Attachment struct {
	ID       int    `json:"id"`
	FileType string `json:"file_type"`
	DataURL  string `json:"data_url"`
	FileSize int64  `json:"file_size"`
}

type outgoingMessage struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
}

type labelsPayload struct {
	Labels []string `json:"labels"`
}

type customAttributesPayload struct {
	CustomAttributes map[string]any `json:"custom_attributes"`
}

type signInPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
