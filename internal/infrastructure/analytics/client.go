// Package analytics talks to the query processor that turns natural-language
// prompts into table data.
package analytics

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

	"go.uber.org/zap"

	"github.com/dilly/tablebot/internal/domain/table"
	"github.com/dilly/tablebot/internal/infrastructure/logger"
)

const (
	// DefaultBaseURL is the hosted query processor
	DefaultBaseURL = "https://query-processor-937194857721.europe-west1.run.app"
	// DefaultTimeout bounds one analytics call
	DefaultTimeout = 60 * time.Second

	maxResponseSize = 10 << 20
	logBodyLimit    = 512
)

// ErrRequestFailed wraps transport failures
var ErrRequestFailed = errors.New("analytics: request failed")

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("analytics: HTTP %d: %s", e.StatusCode, truncate(e.Body, logBodyLimit))
}

// QueryRequest is the body of a process_query call
type QueryRequest struct {
	Prompt string `json:"prompt"`
	ShopID string `json:"shop_id"`
}

// Config contains configuration for the analytics client
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client calls the analytics API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new analytics client
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     log.Named("analytics"),
	}
}

type shopEntry struct {
	CustomerID string `json:"customerId"`
}

// FetchShopIDs lists the shops the analytics API knows about.
// A body that is not a JSON array yields an empty list.
func (c *Client) FetchShopIDs(ctx context.Context) ([]string, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/get_shops", nil)
	if err != nil {
		return nil, err
	}
	log := logger.WithLogger(ctx, c.logger)
	log.Debug("Fetched shop IDs", zap.String("body", truncate(string(body), logBodyLimit)))

	var entries []shopEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		log.Warn("Unexpected shop IDs format, using empty list", zap.Error(err))
		return []string{}, nil
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.CustomerID != "" {
			ids = append(ids, e.CustomerID)
		}
	}
	return ids, nil
}

type queryResponse struct {
	Columns []table.Column    `json:"columns"`
	Rows    []json.RawMessage `json:"rows"`
}

// ProcessQuery runs a prompt against one shop and returns the resulting table.
// Missing columns or rows decode as empty; a row that is not an array becomes
// an empty row so every one of its cells renders as the fallback value.
func (c *Client) ProcessQuery(ctx context.Context, req QueryRequest) (*table.TableData, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("analytics: failed to encode request: %w", err)
	}

	log := logger.WithLogger(ctx, c.logger)
	log.Info("Processing analytics query",
		zap.String("prompt", req.Prompt),
		zap.String("shop_id", req.ShopID))

	body, err := c.doRequest(ctx, http.MethodPost, "/process_query", payload)
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("analytics: failed to decode response: %w", err)
	}

	data := &table.TableData{
		Columns: resp.Columns,
		Rows:    make([][]*table.Cell, 0, len(resp.Rows)),
	}
	if data.Columns == nil {
		data.Columns = []table.Column{}
	}
	for i, raw := range resp.Rows {
		var cells []*table.Cell
		if err := json.Unmarshal(raw, &cells); err != nil {
			log.Warn("Malformed analytics row", zap.Int("row", i), zap.Error(err))
			cells = nil
		}
		data.Rows = append(data.Rows, cells)
	}
	if data.IsEmpty() {
		log.Warn("Analytics query returned an empty table")
	}
	cols, rows := data.Shape()
	log.Debug("Analytics query answered", zap.Int("columns", cols), zap.Int("rows", rows))
	return data, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("analytics: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("analytics: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
