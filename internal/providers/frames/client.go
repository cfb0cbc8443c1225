package frames

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Houman6460/pixelperfect-sub005/internal/infra"
	"github.com/Houman6460/pixelperfect-sub005/internal/storage"
)

// ExtractRequest identifies the video whose boundary frames are needed.
// Timeline and segment ids scope the storage keys for rehosted frames.
type ExtractRequest struct {
	VideoURL   string
	TimelineID string
	SegmentID  string
}

// Frames holds the extracted frame artifacts. ThumbnailURL is derived from
// the first frame.
type Frames struct {
	FirstFrameURL string
	LastFrameURL  string
	ThumbnailURL  string
}

// Extractor returns first-frame and last-frame images for a finished video.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (*Frames, error)
}

// Options configures the frame-extraction client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	// Store, when set, rehosts the extracted frames in the blob store so
	// chained generations reference stable URLs instead of short-lived
	// provider links.
	Store storage.BlobStore
}

// Client performs HTTP calls to the frame-extraction service.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	store      storage.BlobStore
}

type extractPayload struct {
	VideoURL string `json:"video_url"`
}

type extractResponse struct {
	FirstFrameURL string `json:"first_frame_url"`
	LastFrameURL  string `json:"last_frame_url"`
	Code          string `json:"code"`
	Message       string `json:"message"`
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://frames.videogen.example.com/v1"
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
		store:      opts.Store,
	}, nil
}

// Extract asks the service for boundary frames and, when a blob store is
// configured, rehosts them under the segment's storage keys.
func (c *Client) Extract(ctx context.Context, req ExtractRequest) (*Frames, error) {
	videoURL := strings.TrimSpace(req.VideoURL)
	if videoURL == "" {
		return nil, errors.New("frames: video url is required")
	}
	body, err := json.Marshal(extractPayload{VideoURL: videoURL})
	if err != nil {
		return nil, fmt.Errorf("frames: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("frames: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("frames: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("frames: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail extractResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			return nil, fmt.Errorf("frames: %s (%s)", detail.Message, detail.Code)
		}
		return nil, fmt.Errorf("frames: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded extractResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("frames: decode response: %w", err)
	}
	if decoded.Code != "" {
		return nil, fmt.Errorf("frames: %s (%s)", decoded.Message, decoded.Code)
	}
	if decoded.FirstFrameURL == "" || decoded.LastFrameURL == "" {
		return nil, errors.New("frames: incomplete frame response")
	}

	result := &Frames{
		FirstFrameURL: decoded.FirstFrameURL,
		LastFrameURL:  decoded.LastFrameURL,
		ThumbnailURL:  decoded.FirstFrameURL,
	}
	if c.store == nil {
		return result, nil
	}

	first, err := c.rehost(ctx, decoded.FirstFrameURL, storage.KeyForFrame(req.TimelineID, req.SegmentID, "first.jpg"))
	if err != nil {
		return nil, err
	}
	last, err := c.rehost(ctx, decoded.LastFrameURL, storage.KeyForFrame(req.TimelineID, req.SegmentID, "last.jpg"))
	if err != nil {
		return nil, err
	}
	thumb, err := c.rehost(ctx, decoded.FirstFrameURL, storage.KeyForThumbnail(req.TimelineID, req.SegmentID))
	if err != nil {
		return nil, err
	}
	result.FirstFrameURL = first
	result.LastFrameURL = last
	result.ThumbnailURL = thumb
	return result, nil
}

func (c *Client) rehost(ctx context.Context, frameURL, key string) (string, error) {
	data, contentType, err := c.download(ctx, frameURL)
	if err != nil {
		return "", err
	}
	hosted, err := c.store.Write(ctx, key, data, contentType)
	if err != nil {
		return "", fmt.Errorf("frames: store frame: %w", err)
	}
	return hosted, nil
}

func (c *Client) download(ctx context.Context, frameURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(frameURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("frames: invalid frame url: %s", frameURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("frames: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("frames: download frame: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("frames: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("frames: read frame: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

var _ Extractor = (*Client)(nil)
