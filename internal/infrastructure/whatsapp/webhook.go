package whatsapp

// ObjectBusinessAccount is the only webhook object the bot handles
const ObjectBusinessAccount = "whatsapp_business_account"

// FieldMessages is the change field carrying messages and statuses
const FieldMessages = "messages"

// WebhookPayload is the body Meta posts to the webhook
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups changes for one business account
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one webhook notification
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue holds either inbound messages or delivery statuses
type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
}

// Metadata identifies the receiving business number
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender profile
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// Message is one inbound message
type Message struct {
	ID        string       `json:"id"`
	From      string       `json:"from"`
	Timestamp string       `json:"timestamp"`
	Type      string       `json:"type"`
	Text      *MessageText `json:"text,omitempty"`
}

// MessageText is the text part of an inbound message
type MessageText struct {
	Body string `json:"body"`
}

// Body returns the text body, or "" for non-text messages
func (m Message) Body() string {
	if m.Text == nil {
		return ""
	}
	return m.Text.Body
}

// Status is a delivery status update for a message the bot sent
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// IsBusinessAccount reports whether the payload should be processed
func (p *WebhookPayload) IsBusinessAccount() bool {
	return p.Object == ObjectBusinessAccount
}

// TextMessages returns every text message in "messages" changes, in order
func (p *WebhookPayload) TextMessages() []Message {
	var out []Message
	for _, change := range p.messageChanges() {
		for _, msg := range change.Value.Messages {
			if msg.Type == TypeText {
				out = append(out, msg)
			}
		}
	}
	return out
}

// Statuses returns status updates from "messages" changes that carry no messages
func (p *WebhookPayload) Statuses() []Status {
	var out []Status
	for _, change := range p.messageChanges() {
		if len(change.Value.Messages) > 0 {
			continue
		}
		out = append(out, change.Value.Statuses...)
	}
	return out
}

func (p *WebhookPayload) messageChanges() []Change {
	if !p.IsBusinessAccount() {
		return nil
	}
	var out []Change
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field == FieldMessages {
				out = append(out, change)
			}
		}
	}
	return out
}
