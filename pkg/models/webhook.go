package models

// WebhookPayload represents the incoming JSON payload from WhatsApp. Only the
// parts needed to track outbound delivery are decoded.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Value ChangeValue `json:"value"`
	Field string      `json:"field"`
}

type ChangeValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Statuses []Status `json:"statuses,omitempty"`
}

// Status is a delivery update for a message we sent. ID is the wamid returned
// by the messages endpoint.
type Status struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"` // sent, delivered, read, failed
	Timestamp   string        `json:"timestamp"`
	RecipientID string        `json:"recipient_id"`
	Errors      []StatusError `json:"errors,omitempty"`
}

type StatusError struct {
	Code  int    `json:"code"`
	Title string `json:"title"`
}

// Statuses flattens every status update in the payload.
func (p WebhookPayload) Statuses() []Status {
	var out []Status
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			out = append(out, change.Value.Statuses...)
		}
	}
	return out
}
