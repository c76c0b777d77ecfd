package webhook

import "testing"

func TestNormalize_ActionableMessage(t *testing.T) {
	raw := []byte(`{
		"event": "message_created",
		"id": 991,
		"content": " preciso de ajuda ",
		"message_type": "incoming",
		"private": false,
		"conversation": {"id": 42}
	}`)

	ev := Normalize(raw)
	if ev == nil {
		t.Fatal("expected event, got nil")
	}
	if ev.ConversationID != 42 {
		t.Errorf("conversation id: got %d, want 42", ev.ConversationID)
	}
	if ev.MessageID != "991" {
		t.Errorf("message id: got %q, want %q", ev.MessageID, "991")
	}
	if ev.Text != "preciso de ajuda" {
		t.Errorf("text not trimmed: got %q", ev.Text)
	}
	if !ev.Incoming || ev.Private {
		t.Errorf("flags: incoming=%v private=%v", ev.Incoming, ev.Private)
	}
}

func TestNormalize_NumericMessageType(t *testing.T) {
	raw := []byte(`{
		"event": "message_created",
		"id": "5",
		"content": "oi",
		"message_type": 0,
		"conversation": {"id": 1}
	}`)

	if ev := Normalize(raw); ev == nil {
		t.Fatal("numeric incoming direction should be actionable")
	}

	raw = []byte(`{
		"event": "message_created",
		"id": "6",
		"content": "eco",
		"message_type": 1,
		"conversation": {"id": 1}
	}`)

	if ev := Normalize(raw); ev != nil {
		t.Fatal("numeric outgoing direction should be dropped")
	}
}

func TestNormalize_Drops(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"wrong event kind", `{"event":"conversation_updated","content":"x","message_type":"incoming","conversation":{"id":1}}`},
		{"outgoing echo", `{"event":"message_created","content":"x","message_type":"outgoing","conversation":{"id":1}}`},
		{"private note", `{"event":"message_created","content":"x","message_type":"incoming","private":true,"conversation":{"id":1}}`},
		{"missing conversation", `{"event":"message_created","content":"x","message_type":"incoming"}`},
		{"empty content no attachments", `{"event":"message_created","content":"   ","message_type":"incoming","conversation":{"id":1}}`},
		{"malformed json", `{"event":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if ev := Normalize([]byte(tc.raw)); ev != nil {
				t.Errorf("expected drop, got %+v", ev)
			}
		})
	}
}

func TestNormalize_AttachmentOnlyIsActionable(t *testing.T) {
	raw := []byte(`{
		"event": "message_created",
		"id": 7,
		"content": "",
		"message_type": "incoming",
		"conversation": {"id": 3},
		"attachments": [{"id": 1, "file_type": "image", "data_url": "https://cw/blob/1.png", "file_size": 2048}]
	}`)

	ev := Normalize(raw)
	if ev == nil {
		t.Fatal("attachment-only message should be actionable")
	}
	if len(ev.Attachments) != 1 {
		t.Fatalf("attachments: got %d, want 1", len(ev.Attachments))
	}
	if ev.Attachments[0].FileType != "image" {
		t.Errorf("file type: got %q", ev.Attachments[0].FileType)
	}
	if ev.Attachments[0].FileSize != 2048 {
		t.Errorf("file size: got %d", ev.Attachments[0].FileSize)
	}
}
