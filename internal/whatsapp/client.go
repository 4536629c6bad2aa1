package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"whatsapp-sender/internal/config"
)

const templateFields = "name,components,status,language"

// maxTemplatePages bounds how many paging.next links ListTemplates follows.
const maxTemplatePages = 20

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(cfg.GraphAPIURL, "/"),
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Logger:     logger,
	}
}

// --- Message Structures ---

type GenericMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Template         *TemplateObj `json:"template,omitempty"`
}

type TemplateObj struct {
	Name     string      `json:"name"`
	Language LanguageObj `json:"language"`
}

type LanguageObj struct {
	Code string `json:"code"`
}

// SendResponse describes one POST to the messages endpoint. ErrorMessage is
// empty when the provider did not report one.
type SendResponse struct {
	StatusCode   int
	MessageID    string
	ErrorMessage string
}

// OK reports whether the provider accepted the message.
func (r SendResponse) OK() bool {
	return r.StatusCode == http.StatusOK
}

type graphError struct {
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
		Type    string `json:"type"`
	} `json:"error"`
}

type sendBody struct {
	graphError
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// APIError is returned when the Graph API answers a management call with an
// error status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Message)
}

// --- Helper Functions ---

// sendRequest returns the status and body of any HTTP response; err is set only
// when no response was received.
func (c *Client) sendRequest(ctx context.Context, method, rawURL, token string, body interface{}) (int, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return 0, nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// errorMessage pulls error.message out of a Graph response. Bodies that are not
// a JSON object are returned verbatim.
func errorMessage(body []byte) string {
	var parsed graphError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return string(body)
	}
	if parsed.Error == nil {
		return ""
	}
	return parsed.Error.Message
}

// --- Messaging Methods ---

// SendTemplateMessage posts one template message. A non-200 answer is not an
// error; it is described by the returned SendResponse. The error is set only
// for transport failures.
func (c *Client) SendTemplateMessage(ctx context.Context, token, phoneNumberID, to, templateName, languageCode string) (SendResponse, error) {
	msg := GenericMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: &TemplateObj{
			Name: templateName,
			Language: LanguageObj{
				Code: languageCode,
			},
		},
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.BaseURL, url.PathEscape(phoneNumberID))
	status, body, err := c.sendRequest(ctx, http.MethodPost, endpoint, token, msg)
	if err != nil {
		return SendResponse{StatusCode: status}, err
	}

	result := SendResponse{StatusCode: status}
	var parsed sendBody
	if jsonErr := json.Unmarshal(body, &parsed); jsonErr != nil {
		result.ErrorMessage = string(body)
	} else {
		if parsed.Error != nil {
			result.ErrorMessage = parsed.Error.Message
		}
		if len(parsed.Messages) > 0 {
			result.MessageID = parsed.Messages[0].ID
		}
	}

	c.logger().Debug("template message posted",
		zap.String("to", to),
		zap.String("template", templateName),
		zap.Int("status", status))
	return result, nil
}

// --- Template Management Methods ---

type templatePage struct {
	Data   []Template `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// ListTemplates returns the APPROVED templates of a business account,
// following pagination.
func (c *Client) ListTemplates(ctx context.Context, token, businessAccountID string) ([]Template, error) {
	params := url.Values{}
	params.Set("access_token", token)
	params.Set("fields", templateFields)
	next := fmt.Sprintf("%s/%s/message_templates?%s", c.BaseURL, url.PathEscape(businessAccountID), params.Encode())

	var all []Template
	for page := 0; next != "" && page < maxTemplatePages; page++ {
		status, body, err := c.sendRequest(ctx, http.MethodGet, next, "", nil)
		if err != nil {
			return nil, fmt.Errorf("fetch templates: %w", err)
		}
		if status >= http.StatusBadRequest {
			return nil, &APIError{StatusCode: status, Message: errorMessage(body)}
		}

		var parsed templatePage
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("decode templates: %w", err)
		}
		all = append(all, parsed.Data...)
		next = parsed.Paging.Next
	}

	approved := FilterApproved(all)
	c.logger().Debug("templates listed",
		zap.String("business_account_id", businessAccountID),
		zap.Int("total", len(all)),
		zap.Int("approved", len(approved)))
	return approved, nil
}
