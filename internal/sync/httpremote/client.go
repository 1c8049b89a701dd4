// Package httpremote talks to a gradebook-syncd server. The change feed only
// signals that a newer document exists; the client always fetches the full
// document afterward, so a missed event costs one round trip, never data.
package httpremote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/gradebook/internal/document"
	"github.com/MarcoPoloResearchLab/gradebook/internal/sync"
)

const (
	defaultTimeout      = 15 * time.Second
	reconnectBackoff    = 3 * time.Second
	eventDocumentChange = "document-change"
)

var (
	errMissingBaseURL   = errors.New("base url is required")
	errMissingAccountID = errors.New("account id is required")
	noOpLogger          = zap.NewNop()
)

// ClientConfig describes a connection to a sync server.
type ClientConfig struct {
	BaseURL    string
	AccountID  string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client implements sync.Remote over the server's HTTP and SSE endpoints.
type Client struct {
	baseURL    string
	accountID  string
	httpClient *http.Client
	logger     *zap.Logger

	mu    gosync.Mutex
	token string
}

// NewClient validates the configuration and returns a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errMissingBaseURL
	}
	if strings.TrimSpace(cfg.AccountID) == "" {
		return nil, errMissingAccountID
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		accountID:  cfg.AccountID,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}

	body, err := json.Marshal(map[string]string{"account_id": c.accountID})
	if err != nil {
		return "", err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()
	if response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusBadRequest {
		return "", fmt.Errorf("token request rejected: %w", sync.ErrUnauthenticated)
	}
	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed with status %d", response.StatusCode)
	}

	var parsed tokenResponse
	if err := json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("token response missing access token: %w", sync.ErrUnauthenticated)
	}

	c.mu.Lock()
	c.token = parsed.AccessToken
	c.mu.Unlock()
	return parsed.AccessToken, nil
}

// invalidateToken drops the cached token so the next call re-authenticates.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

type documentResponse struct {
	Document    json.RawMessage `json:"document"`
	UpdatedAtMs int64           `json:"updated_at_ms"`
}

// Fetch implements sync.Remote.
func (c *Client) Fetch(ctx context.Context) (*document.Document, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/document", http.NoBody)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+token)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	if response.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
		return nil, fmt.Errorf("fetch rejected: %w", sync.ErrUnauthenticated)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed with status %d", response.StatusCode)
	}

	var parsed documentResponse
	if err := json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Document) == 0 || string(parsed.Document) == "null" {
		return nil, nil
	}

	doc := &document.Document{}
	if err := json.Unmarshal(parsed.Document, doc); err != nil {
		return nil, err
	}
	if doc.UpdatedAt == 0 {
		doc.UpdatedAt = parsed.UpdatedAtMs
	}
	return doc, nil
}

// Upsert implements sync.Remote.
func (c *Client) Upsert(ctx context.Context, doc *document.Document) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]json.RawMessage{"document": payload})
	if err != nil {
		return err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/v1/document", bytes.NewReader(body))
	if err != nil {
		return err
	}
	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if response.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
		return fmt.Errorf("push rejected: %w", sync.ErrUnauthenticated)
	}
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("push failed with status %d", response.StatusCode)
	}
	return nil
}

// Subscribe implements sync.Remote. The stream reconnects with a fixed backoff
// until the context ends or the cancel function runs.
func (c *Client) Subscribe(ctx context.Context, handler func(*document.Document)) (func(), error) {
	if _, err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	streamCtx, cancelStream := context.WithCancel(ctx)
	go c.streamLoop(streamCtx, handler)

	var once gosync.Once
	return func() {
		once.Do(cancelStream)
	}, nil
}

func (c *Client) streamLoop(ctx context.Context, handler func(*document.Document)) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.streamOnce(ctx, handler); err != nil && ctx.Err() == nil {
			c.logger.Warn("event stream interrupted", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectBackoff):
		}
	}
}

func (c *Client) streamOnce(ctx context.Context, handler func(*document.Document)) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/events?access_token="+token, http.NoBody)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "text/event-stream")

	// The streaming request must not inherit the client timeout.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	response, err := streamClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if response.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
		return fmt.Errorf("stream rejected: %w", sync.ErrUnauthenticated)
	}
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("stream failed with status %d", response.StatusCode)
	}

	reader := bufio.NewReader(response.Body)
	currentEvent := ""
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event:"):
			currentEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if currentEvent != eventDocumentChange {
				continue
			}
			doc, err := c.Fetch(ctx)
			if err != nil {
				c.logger.Warn("fetch after change event failed", zap.Error(err))
				continue
			}
			if doc != nil {
				handler(doc)
			}
		}
	}
}
