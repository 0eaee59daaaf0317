package whatsapp

import (
	"github.com/go-playground/validator/v10"
)

// MessagingProduct is the fixed product name required on every outgoing message
const MessagingProduct = "whatsapp"

// Outgoing message types
const (
	TypeText     = "text"
	TypeImage    = "image"
	TypeDocument = "document"
)

// OutgoingMessage is the body of POST /messages
type OutgoingMessage struct {
	MessagingProduct string        `json:"messaging_product" validate:"required,eq=whatsapp"`
	To               string        `json:"to" validate:"required,numeric,min=5,max=20"`
	Type             string        `json:"type" validate:"required,oneof=text image document"`
	Text             *TextBody     `json:"text,omitempty" validate:"omitempty"`
	Image            *MediaLink    `json:"image,omitempty" validate:"omitempty"`
	Document         *DocumentLink `json:"document,omitempty" validate:"omitempty"`
}

// TextBody is a plain text message
type TextBody struct {
	Body       string `json:"body" validate:"required,max=4096"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

// MediaLink references media by public URL
type MediaLink struct {
	Link    string `json:"link" validate:"required,url"`
	Caption string `json:"caption,omitempty" validate:"max=1024"`
}

// DocumentLink references a document by public URL
type DocumentLink struct {
	Link     string `json:"link" validate:"required,url"`
	Filename string `json:"filename,omitempty" validate:"max=240"`
	Caption  string `json:"caption,omitempty" validate:"max=1024"`
}

// newValidator returns a validator that also checks that exactly one content
// block is set and that it matches Type
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateContent, OutgoingMessage{})
	return v
}

func validateContent(sl validator.StructLevel) {
	msg := sl.Current().Interface().(OutgoingMessage)

	set := 0
	for _, present := range []bool{msg.Text != nil, msg.Image != nil, msg.Document != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		sl.ReportError(msg.Type, "Type", "type", "one_content_block", "")
		return
	}

	var ok bool
	switch msg.Type {
	case TypeText:
		ok = msg.Text != nil
	case TypeImage:
		ok = msg.Image != nil
	case TypeDocument:
		ok = msg.Document != nil
	}
	if !ok {
		sl.ReportError(msg.Type, "Type", "type", "content_matches_type", "")
	}
}

// SendResult is the outcome of a successful send
type SendResult struct {
	MessageID string
	WaID      string
}

type sendResponse struct {
	Contacts []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}
