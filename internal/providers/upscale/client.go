package upscale

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

	"github.com/rs/zerolog"

	"github.com/Houman6460/pixelperfect-sub005/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("upscale: api key is required")

// Request captures one upscaling invocation.
type Request struct {
	VideoURL         string
	ModelID          string
	ScaleFactor      int
	TargetResolution string
	RequestID        string
}

// Result is the normalized provider output.
type Result struct {
	OutputURL string
}

// Upscaler enhances a finished video through the external provider.
type Upscaler interface {
	Upscale(ctx context.Context, req Request) (*Result, error)
}

// Options configures the enhancement provider client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the upscaling provider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type wireRequest struct {
	VideoURL         string `json:"video_url"`
	Model            string `json:"model"`
	ScaleFactor      int    `json:"scale_factor"`
	TargetResolution string `json:"target_resolution,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

type wireResponse struct {
	OutputURL string `json:"output_url"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 10 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://upscale.videogen.example.com/v1"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Upscale invokes the provider once and blocks until the enhanced video is
// ready or the context is cancelled.
func (c *Client) Upscale(ctx context.Context, req Request) (*Result, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(req.VideoURL) == "" {
		return nil, errors.New("upscale: video url is required")
	}
	if req.ModelID == "" {
		return nil, errors.New("upscale: model id is required")
	}
	body, err := json.Marshal(wireRequest{
		VideoURL:         req.VideoURL,
		Model:            req.ModelID,
		ScaleFactor:      req.ScaleFactor,
		TargetResolution: req.TargetResolution,
		RequestID:        req.RequestID,
	})
	if err != nil {
		return nil, fmt.Errorf("upscale: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upscale", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upscale: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upscale: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("upscale: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail wireResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			return nil, fmt.Errorf("upscale: %s (%s)", detail.Message, detail.Code)
		}
		return nil, fmt.Errorf("upscale: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded wireResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("upscale: decode response: %w", err)
	}
	if decoded.Code != "" {
		return nil, fmt.Errorf("upscale: %s (%s)", decoded.Message, decoded.Code)
	}
	if decoded.OutputURL == "" {
		return nil, errors.New("upscale: empty output url")
	}
	c.logger.Debug().
		Str("model", req.ModelID).
		Int("scale_factor", req.ScaleFactor).
		Msg("upscale: video enhanced")
	return &Result{OutputURL: decoded.OutputURL}, nil
}

var _ Upscaler = (*Client)(nil)
