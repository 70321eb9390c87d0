package mesh

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

// Options configures the prototype mesh client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client calls the Shap-E style prototype service, which converts a 2D image
// into a low-fidelity mesh in a single blocking call.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// PrototypeResult is the finished prototype artifact pair. ObjURL may be
// empty when the service has not finished writing geometry.
type PrototypeResult struct {
	ObjURL string `json:"obj_url"`
	GifURL string `json:"gif_url"`
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "http://localhost:7860"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			// Mesh inference is slow even for prototypes.
			timeout = 5 * time.Minute
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{httpClient: client, baseURL: base}
}

type prototypeRequest struct {
	ImageURL string `json:"image_url"`
}

// GeneratePrototype converts the image at imageURL into a prototype mesh.
func (c *Client) GeneratePrototype(ctx context.Context, imageURL string) (*PrototypeResult, error) {
	if c == nil {
		return nil, errors.New("mesh client not configured")
	}
	if strings.TrimSpace(imageURL) == "" {
		return nil, errors.New("mesh: image url required")
	}
	body, err := json.Marshal(prototypeRequest{ImageURL: imageURL})
	if err != nil {
		return nil, err
	}
	endpoint := c.baseURL + "/prototype"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: prototype generation: %v", domain.ErrExternalService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: prototype generation: read response: %v", domain.ErrExternalService, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: prototype generation: http %d: %s", domain.ErrExternalService, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out PrototypeResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: prototype generation: decode response: %v", domain.ErrExternalService, err)
	}
	if out.GifURL == "" && out.ObjURL == "" {
		return nil, fmt.Errorf("%w: prototype generation: empty response", domain.ErrExternalService)
	}
	return &out, nil
}
