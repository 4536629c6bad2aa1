package whatsapp

import (
	"encoding/json"
)

const StatusApproved = "APPROVED"

// DefaultLanguage is used when a template carries no usable language code.
const DefaultLanguage = "en_US"

// Template is a message template as listed by the Graph API.
type Template struct {
	ID         string      `json:"id,omitempty"`
	Name       string      `json:"name"`
	Status     string      `json:"status"`
	Category   string      `json:"category,omitempty"`
	Language   Language    `json:"language"`
	Components []Component `json:"components,omitempty"`
}

// Component is one display part of a template (HEADER, BODY, FOOTER, BUTTONS).
type Component struct {
	Type   string `json:"type"`
	Format string `json:"format,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Language is a template language code. The API sends a plain string, older
// payloads an object with a "code" field. Any other shape decodes to "".
type Language string

func (l *Language) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err == nil {
		*l = Language(code)
		return nil
	}
	var obj struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		*l = Language(obj.Code)
		return nil
	}
	*l = ""
	return nil
}

// Code returns the language code, or DefaultLanguage when empty.
func (l Language) Code() string {
	if l == "" {
		return DefaultLanguage
	}
	return string(l)
}

// Preview is what an operator sees before sending.
type Preview struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Header   string `json:"header,omitempty"`
	Body     string `json:"body,omitempty"`
}

// Preview collects the text header and the body of t.
func (t Template) Preview() Preview {
	p := Preview{Name: t.Name, Language: t.Language.Code()}
	for _, comp := range t.Components {
		switch {
		case comp.Type == "HEADER" && comp.Format == "TEXT":
			p.Header = comp.Text
		case comp.Type == "BODY":
			p.Body = comp.Text
		}
	}
	return p
}

// FilterApproved keeps templates whose status is APPROVED, in order.
func FilterApproved(templates []Template) []Template {
	approved := make([]Template, 0, len(templates))
	for _, t := range templates {
		if t.Status == StatusApproved {
			approved = append(approved, t)
		}
	}
	return approved
}

// FindTemplate returns the template called name, or nil.
func FindTemplate(templates []Template, name string) *Template {
	for i := range templates {
		if templates[i].Name == name {
			return &templates[i]
		}
	}
	return nil
}
