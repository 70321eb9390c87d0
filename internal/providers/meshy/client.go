package meshy

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

// Options configures the finalization client.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client wraps the Meshy image-to-3D API. The service runs generation
// out-of-band: CreateImageTo3DTask submits work and TaskStatus polls it; the
// client never blocks until completion.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// ModelURLs lists download locations for the produced model files.
type ModelURLs struct {
	Obj string `json:"obj"`
	Fbx string `json:"fbx"`
	Glb string `json:"glb"`
}

// TaskStatus is one polled snapshot of a finalization task.
type TaskStatus struct {
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	Error       string    `json:"error"`
	ModelURLs   ModelURLs `json:"model_urls"`
	TextureURLs []string  `json:"texture_urls"`
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.meshy.ai/v2"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: client,
		baseURL:    base,
		token:      strings.TrimSpace(opts.APIKey),
	}
}

type createTaskRequest struct {
	ImageURL  string `json:"image_url"`
	EnablePBR bool   `json:"enable_pbr"`
	ArtStyle  string `json:"art_style"`
	Name      string `json:"name,omitempty"`
}

type createTaskResponse struct {
	Result  string `json:"result"`
	Message string `json:"message"`
}

// CreateImageTo3DTask submits a finalization task and returns its task id.
func (c *Client) CreateImageTo3DTask(ctx context.Context, imageURL, name string) (string, error) {
	if c == nil {
		return "", errors.New("meshy client not configured")
	}
	if c.token == "" {
		return "", errors.New("meshy: API key is missing")
	}
	if strings.TrimSpace(imageURL) == "" {
		return "", errors.New("meshy: image url required")
	}
	payload := createTaskRequest{
		ImageURL:  imageURL,
		EnablePBR: true,
		ArtStyle:  "realistic",
		Name:      name,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/image-to-3d", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	var out createTaskResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: meshy: decode response: %v", domain.ErrExternalService, err)
	}
	if strings.TrimSpace(out.Result) == "" {
		if out.Message != "" {
			return "", fmt.Errorf("%w: meshy: %s", domain.ErrExternalService, out.Message)
		}
		return "", fmt.Errorf("%w: meshy: missing task id", domain.ErrExternalService)
	}
	return out.Result, nil
}

// TaskStatus fetches the current snapshot for a task.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	if c == nil {
		return nil, errors.New("meshy client not configured")
	}
	if strings.TrimSpace(taskID) == "" {
		return nil, errors.New("meshy: task id required")
	}
	raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/image-to-3d/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	var out TaskStatus
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: meshy: decode response: %v", domain.ErrExternalService, err)
	}
	return &out, nil
}

// Download fetches one produced model file.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("meshy client not configured")
	}
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("meshy: download url required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: meshy: download: %v", domain.ErrExternalService, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: meshy: download: http %d", domain.ErrExternalService, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: meshy: %v", domain.ErrExternalService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: meshy: read response: %v", domain.ErrExternalService, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: meshy: http %d: %s", domain.ErrExternalService, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
