package whatsapp

// Webhook payload types for the Cloud API, trimmed to inbound text messages.
// Docs: https://developers.facebook.com/docs/whatsapp/cloud-api/webhooks

type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string           `json:"messaging_product"`
	Contacts         []Contact        `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
}

type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

type Profile struct {
	Name string `json:"name"`
}

type InboundMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *Text  `json:"text,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

// SenderName returns the profile name for a message sender, empty when the
// contacts block is missing.
func (v *Value) SenderName(from string) string {
	for _, contact := range v.Contacts {
		if contact.WaID == from {
			return contact.Profile.Name
		}
	}
	return ""
}
