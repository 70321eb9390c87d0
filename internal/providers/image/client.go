package image

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

	"conceptforge/internal/domain"
)

// Options configures the 2D generation client.
type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client calls the 2D image generation backend. Each call is a single
// blocking request that either returns a finished artifact or fails; retry
// policy belongs to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	model      string
}

// GenerateRequest describes one 2D generation call.
type GenerateRequest struct {
	Prompt          string
	RefinementNotes string
}

// Result is the finished artifact returned by the backend.
type Result struct {
	URL string
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	model := opts.Model
	if model == "" {
		model = "dall-e-3"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: client,
		baseURL:    base,
		token:      strings.TrimSpace(opts.APIKey),
		model:      model,
	}
}

type generationRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type generationResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate produces one concept image and returns its URL.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	if c == nil {
		return nil, errors.New("image client not configured")
	}
	if c.token == "" {
		return nil, errors.New("image: API key is missing")
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("image: prompt required")
	}
	if notes := strings.TrimSpace(req.RefinementNotes); notes != "" {
		prompt = prompt + ". " + notes
	}
	payload := generationRequest{
		Model:  c.model,
		Prompt: prompt,
		N:      1,
		Size:   "1024x1024",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	endpoint := c.baseURL + "/images/generations"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: image generation: %v", domain.ErrExternalService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: image generation: read response: %v", domain.ErrExternalService, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: image generation: http %d: %s", domain.ErrExternalService, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out generationResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: image generation: decode response: %v", domain.ErrExternalService, err)
	}
	if len(out.Data) == 0 || strings.TrimSpace(out.Data[0].URL) == "" {
		if out.Error.Message != "" {
			return nil, fmt.Errorf("%w: image generation: %s", domain.ErrExternalService, out.Error.Message)
		}
		return nil, fmt.Errorf("%w: image generation: empty response", domain.ErrExternalService)
	}
	return &Result{URL: out.Data[0].URL}, nil
}
