// Package whatsapp sends messages through the WhatsApp Cloud API and defines
// the webhook payloads it posts back.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dilly/tablebot/internal/infrastructure/logger"
)

const (
	// DefaultBaseURL is the Graph API host
	DefaultBaseURL = "https://graph.facebook.com"
	// DefaultAPIVersion is the Graph API version messages are sent with
	DefaultAPIVersion = "v22.0"
	// DefaultTimeout bounds one send
	DefaultTimeout = 15 * time.Second

	maxResponseSize = 1 << 20
	tokenLogPrefix  = 10
)

var (
	// ErrMissingCredentials is returned by NewClient without token or phone number ID
	ErrMissingCredentials = errors.New("whatsapp: missing or invalid access token or phone number id")
	// ErrInvalidMessage wraps validation failures of outgoing messages
	ErrInvalidMessage = errors.New("whatsapp: invalid message")
	// ErrRequestFailed wraps transport failures
	ErrRequestFailed = errors.New("whatsapp: request failed")
)

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp: status %d: %s", e.StatusCode, e.Body)
}

// Config contains configuration for the Cloud API client
type Config struct {
	AccessToken   string
	PhoneNumberID string
	APIVersion    string
	BaseURL       string
	Timeout       time.Duration
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

// Client sends messages from one business phone number
type Client struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewClient creates a Cloud API client. The access token is trimmed and only
// its first characters are ever logged.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = &Config{}
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("whatsapp")

	token := strings.TrimSpace(config.AccessToken)
	phoneID := strings.TrimSpace(config.PhoneNumberID)
	if token == "" || phoneID == "" {
		log.Error("Failed to initialize WhatsApp client",
			zap.String("token_prefix", tokenPrefix(token)),
			zap.String("phone_number_id", phoneID))
		return nil, ErrMissingCredentials
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := config.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	log.Info("WhatsApp client initialized",
		zap.String("token_prefix", tokenPrefix(token)),
		zap.String("phone_number_id", phoneID),
		zap.String("api_version", version))

	return &Client{
		endpoint:    fmt.Sprintf("%s/%s/%s/messages", baseURL, version, phoneID),
		accessToken: token,
		httpClient:  httpClient,
		validate:    newValidator(),
		logger:      log,
	}, nil
}

// SendText sends a plain text message
func (c *Client) SendText(ctx context.Context, to, body string) (*SendResult, error) {
	return c.Send(ctx, &OutgoingMessage{
		To:   to,
		Type: TypeText,
		Text: &TextBody{Body: body},
	})
}

// SendImage sends an image referenced by a public URL
func (c *Client) SendImage(ctx context.Context, to, link string) (*SendResult, error) {
	return c.Send(ctx, &OutgoingMessage{
		To:    to,
		Type:  TypeImage,
		Image: &MediaLink{Link: link},
	})
}

// SendDocument sends a document referenced by a public URL
func (c *Client) SendDocument(ctx context.Context, to, link, filename string) (*SendResult, error) {
	return c.Send(ctx, &OutgoingMessage{
		To:       to,
		Type:     TypeDocument,
		Document: &DocumentLink{Link: link, Filename: filename},
	})
}

// Send validates and posts an outgoing message
func (c *Client) Send(ctx context.Context, msg *OutgoingMessage) (*SendResult, error) {
	msg.MessagingProduct = MessagingProduct
	if err := c.validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: failed to encode message: %w", err)
	}

	log := logger.WithLogger(ctx, c.logger).With(
		zap.String("to", msg.To),
		zap.String("type", msg.Type))

	respBody, err := c.doRequest(ctx, payload)
	if err != nil {
		log.Error("Error sending WhatsApp message", zap.Error(err))
		return nil, err
	}

	var resp sendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("whatsapp: failed to decode response: %w", err)
	}

	result := &SendResult{}
	if len(resp.Messages) > 0 {
		result.MessageID = resp.Messages[0].ID
	}
	if len(resp.Contacts) > 0 {
		result.WaID = resp.Contacts[0].WaID
	}

	log.Info("WhatsApp message sent", zap.String("sent_message_id", result.MessageID))
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func tokenPrefix(token string) string {
	n := min(tokenLogPrefix, len(token)/2)
	return token[:n] + "..."
}
