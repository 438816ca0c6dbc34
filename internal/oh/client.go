// Package oh is the optional Open Horizons integration. When configured it
// mirrors gate feedback into an OH endeavor's log so decisions surface in
// strategic planning. When unconfigured, or when OH is unreachable, the
// gate behaves exactly as without it; OH failures never block a verdict.
package oh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/Iron-Ham/phasegate/internal/errors"
)

// DefaultAPIURL is used when OH_API_URL is unset.
const DefaultAPIURL = "http://localhost:3001"

// requestTimeout bounds every OH API call.
const requestTimeout = 10 * time.Second

// Config holds the OH API connection settings.
type Config struct {
	APIURL string
	APIKey string
}

// FromEnv loads the connection settings from OH_API_URL and OH_API_KEY.
// Returns false when OH_API_KEY is unset; the URL alone does not enable
// the integration.
func FromEnv() (Config, bool) {
	key := os.Getenv("OH_API_KEY")
	if key == "" {
		return Config{}, false
	}
	apiURL := os.Getenv("OH_API_URL")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return Config{APIURL: apiURL, APIKey: key}, true
}

// Context is a personal or shared space in OH.
type Context struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Endeavor is a mission, aim, initiative, or task node in OH.
type Endeavor struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	NodeType    string `json:"node_type,omitempty"`
}

// Client talks to the OH HTTP API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a Client for the given connection settings.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: requestTimeout},
	}
}

// do issues one authenticated request and returns the response body.
// Non-2xx statuses become errors.RemoteAPIError.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &errors.RemoteAPIError{Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// GetContexts lists the contexts the API key has access to. The API
// returns either {"contexts": [...]} or a bare array.
func (c *Client) GetContexts(ctx context.Context) ([]Context, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/contexts", nil)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Contexts []Context `json:"contexts"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Contexts != nil {
		return wrapper.Contexts, nil
	}

	var contexts []Context
	if err := json.Unmarshal(data, &contexts); err != nil {
		return nil, fmt.Errorf("parse contexts response: %w", err)
	}
	return contexts, nil
}

// GetEndeavors lists the endeavor nodes in a context. The dashboard
// endpoint returns {"nodes": [...]} or a bare array.
func (c *Client) GetEndeavors(ctx context.Context, contextID string) ([]Endeavor, error) {
	path := "/api/dashboard?contextId=" + url.QueryEscape(contextID)
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Nodes []Endeavor `json:"nodes"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Nodes != nil {
		return wrapper.Nodes, nil
	}

	var endeavors []Endeavor
	if err := json.Unmarshal(data, &endeavors); err != nil {
		return nil, fmt.Errorf("parse dashboard response: %w", err)
	}
	return endeavors, nil
}

// Ping reports whether OH is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) bool {
	_, err := c.GetContexts(ctx)
	return err == nil
}

// LogDecision appends a markdown log entry to an endeavor. logDate is
// YYYY-MM-DD; empty means today. Returns the created log id, or "unknown"
// when the API omits it.
func (c *Client) LogDecision(ctx context.Context, endeavorID, content, logDate string) (string, error) {
	if logDate == "" {
		logDate = time.Now().UTC().Format("2006-01-02")
	}

	payload := struct {
		EntityType  string `json:"entity_type"`
		EntityID    string `json:"entity_id"`
		Content     string `json:"content"`
		ContentType string `json:"content_type"`
		LogDate     string `json:"log_date"`
	}{
		EntityType:  "endeavor",
		EntityID:    endeavorID,
		Content:     content,
		ContentType: "markdown",
		LogDate:     logDate,
	}

	data, err := c.do(ctx, http.MethodPost, "/api/logs", payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		Log *struct {
			ID string `json:"id"`
		} `json:"log"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parse log response: %w", err)
	}
	if resp.Log == nil || resp.Log.ID == "" {
		return "unknown", nil
	}
	return resp.Log.ID, nil
}

// Integration pairs a client with the endeavor decisions are logged to.
type Integration struct {
	Client     *Client
	EndeavorID string
}

// NewIntegration assembles the full integration from the environment and
// the configured endeavor id. Returns false unless both the API key and
// an endeavor id are present.
func NewIntegration(endeavorID string) (*Integration, bool) {
	cfg, ok := FromEnv()
	if !ok || endeavorID == "" {
		return nil, false
	}
	return &Integration{Client: NewClient(cfg), EndeavorID: endeavorID}, true
}

// LogFeedback posts gate feedback to the configured endeavor under a
// standard heading.
func (i *Integration) LogFeedback(ctx context.Context, feedback string) (string, error) {
	content := "## Phasegate Feedback\n\n" + feedback
	return i.Client.LogDecision(ctx, i.EndeavorID, content, "")
}
