package generation

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

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
	"github.com/Houman6460/pixelperfect-sub005/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("generation: api key is required")

// Request captures the inputs for one segment generation call. Which fields
// are populated depends on the generation mode: prompt only for
// text-to-video, prompt+image for image-to-video and first-frame-to-video,
// prompt+video for video-to-video.
type Request struct {
	ModelID         string
	Mode            domain.GenerationMode
	DurationSec     int
	Prompt          string
	ImageURL        string
	VideoURL        string
	ExactFirstFrame bool
	AspectRatio     string
	Motion          map[string]any
	RequestID       string
}

// Result is the normalized provider output.
type Result struct {
	VideoURL    string
	ProviderID  string
	DurationSec int
}

// Generator produces one finished video per request.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Options configures the generation provider client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the video generation provider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type wireRequest struct {
	Model       string         `json:"model"`
	DurationSec int            `json:"duration_sec"`
	RequestID   string         `json:"request_id,omitempty"`
	Input       wireInput      `json:"input"`
	Parameters  wireParameters `json:"parameters,omitempty"`
}

type wireInput struct {
	Prompt             string `json:"prompt,omitempty"`
	ImageURL           string `json:"image_url,omitempty"`
	VideoURL           string `json:"video_url,omitempty"`
	UseExactFirstFrame bool   `json:"use_exact_first_frame,omitempty"`
}

type wireParameters struct {
	AspectRatio string         `json:"aspect_ratio,omitempty"`
	Motion      map[string]any `json:"motion,omitempty"`
}

type wireResponse struct {
	VideoURL    string `json:"video_url"`
	ID          string `json:"id"`
	DurationSec int    `json:"duration_sec"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.videogen.example.com/v1"
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

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Generate invokes the provider once and returns the finished video.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if req.ModelID == "" {
		return nil, errors.New("generation: model id is required")
	}
	payload := wireRequest{
		Model:       req.ModelID,
		DurationSec: req.DurationSec,
		RequestID:   req.RequestID,
		Input: wireInput{
			Prompt:             strings.TrimSpace(req.Prompt),
			ImageURL:           strings.TrimSpace(req.ImageURL),
			VideoURL:           strings.TrimSpace(req.VideoURL),
			UseExactFirstFrame: req.ExactFirstFrame,
		},
		Parameters: wireParameters{
			AspectRatio: req.AspectRatio,
			Motion:      req.Motion,
		},
	}

	endpoint := c.baseURL + "/generations"
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("generation: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("generation: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generation: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("generation: read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			return nil, fmt.Errorf("generation: %s (%s)", detail.Message, detail.Code)
		}
		return nil, fmt.Errorf("generation: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded wireResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("generation: decode response: %w", err)
	}
	if decoded.Code != "" {
		return nil, fmt.Errorf("generation: %s (%s)", decoded.Message, decoded.Code)
	}
	if decoded.VideoURL == "" {
		return nil, errors.New("generation: empty video url")
	}
	c.logger.Debug().
		Str("model", req.ModelID).
		Str("mode", string(req.Mode)).
		Str("provider_id", decoded.ID).
		Msg("generation: video produced")
	return &Result{VideoURL: decoded.VideoURL, ProviderID: decoded.ID, DurationSec: decoded.DurationSec}, nil
}

var _ Generator = (*Client)(nil)
