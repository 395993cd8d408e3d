package task

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/provider"
)

// maxResponseSize caps task API response bodies (2 MB).
const maxResponseSize = 2 * 1024 * 1024

// Application-level submit result codes accepted as success: submitted,
// queued, and repeat-submission.
var successCodes = map[int]bool{1: true, 21: true, 22: true}

// ClientConfig holds the task API connection settings.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "https://mj.example.com/mj".
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates requests.
	APIKey string `yaml:"api_key"`

	// Timeout bounds each request. Defaults to 15s.
	Timeout time.Duration `yaml:"timeout"`
}

// SubmitResponse is the wire shape of a submission result.
type SubmitResponse struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
	Result      string `json:"result"`
	Status      string `json:"status"`
}

// Accepted reports whether the application-level code means the task was
// taken on.
func (r SubmitResponse) Accepted() bool { return successCodes[r.Code] }

// Detail is the wire shape of a task status fetch.
type Detail struct {
	Status     string `json:"status"`
	Prompt     string `json:"prompt"`
	Progress   string `json:"progress"`
	ImageURL   string `json:"imageUrl"`
	FailReason string `json:"failReason"`
	Action     string `json:"action"`
}

// Client talks to the image-generation task API.
type Client struct {
	config  ClientConfig
	headers provider.HeaderBuilder
	client  *http.Client
}

// NewClient creates a Client. A nil headers builder falls back to bearer
// auth from the config key.
func NewClient(cfg ClientConfig, headers provider.HeaderBuilder) (*Client, error) {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("task: base_url is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if headers == nil {
		headers = provider.BearerHeaders(cfg.APIKey)
	}
	return &Client{
		config:  cfg,
		headers: headers,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// submitPath maps an action to its submission endpoint.
func submitPath(action string) string {
	switch action {
	case ActionImagine:
		return "/submit/imagine"
	case ActionDescribe:
		return "/submit/describe"
	case ActionBlend:
		return "/submit/blend"
	default:
		// UPSCALE, VARIATION, and REROLL all go through /submit/change.
		return "/submit/change"
	}
}

// submitPayload builds the JSON body appropriate to the action.
func submitPayload(req Request) any {
	switch req.Action {
	case ActionImagine:
		return struct {
			Prompt      string   `json:"prompt"`
			Base64Array []string `json:"base64Array,omitempty"`
		}{Prompt: req.Prompt, Base64Array: req.Images}
	case ActionDescribe:
		return struct {
			Base64 string `json:"base64"`
		}{Base64: req.Images[0]}
	case ActionBlend:
		return struct {
			Base64Array []string `json:"base64Array"`
		}{Base64Array: req.Images}
	default:
		return struct {
			Action string `json:"action"`
			Index  int    `json:"index,omitempty"`
			TaskID string `json:"taskId"`
		}{Action: req.Action, Index: req.Index, TaskID: req.TargetTaskID}
	}
}

// Submit posts the request and returns the upstream submission result.
// A non-2xx response is a transport error; an application-level rejection
// is visible through SubmitResponse.Accepted.
func (c *Client) Submit(ctx context.Context, req Request) (SubmitResponse, error) {
	body, err := json.Marshal(submitPayload(req))
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("task: marshal submit: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+submitPath(req.Action), bytes.NewReader(body))
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("task: create request: %w", err)
	}
	c.headers(httpReq.Header.Set)

	raw, status, err := c.do(httpReq)
	if err != nil {
		return SubmitResponse{}, err
	}
	if status < 200 || status >= 300 {
		return SubmitResponse{}, fmt.Errorf("task: submit status %d: %s", status, strings.TrimSpace(string(raw)))
	}

	var resp SubmitResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return SubmitResponse{}, fmt.Errorf("task: unmarshal submit response: %w", err)
	}
	return resp, nil
}

// Fetch returns the current state of a task.
func (c *Client) Fetch(ctx context.Context, taskID string) (Detail, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/task/"+taskID+"/fetch", nil)
	if err != nil {
		return Detail{}, fmt.Errorf("task: create request: %w", err)
	}
	c.headers(httpReq.Header.Set)

	raw, status, err := c.do(httpReq)
	if err != nil {
		return Detail{}, err
	}
	if status < 200 || status >= 300 {
		return Detail{}, fmt.Errorf("task: fetch status %d: %s", status, strings.TrimSpace(string(raw)))
	}

	var detail Detail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return Detail{}, fmt.Errorf("task: unmarshal fetch response: %w", err)
	}
	return detail, nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("task: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("task: read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}
