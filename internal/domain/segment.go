package domain

import "time"

// GenerationMode enumerates the kinds of input driving segment generation.
type GenerationMode string

const (
	ModeTextToVideo       GenerationMode = "text-to-video"
	ModeImageToVideo      GenerationMode = "image-to-video"
	ModeVideoToVideo      GenerationMode = "video-to-video"
	ModeFirstFrameToVideo GenerationMode = "first-frame-to-video"
)

// AllGenerationModes lists every supported mode in presentation order.
var AllGenerationModes = []GenerationMode{
	ModeTextToVideo,
	ModeImageToVideo,
	ModeVideoToVideo,
	ModeFirstFrameToVideo,
}

// IsValid reports whether the mode is one of the supported generation modes.
func (m GenerationMode) IsValid() bool {
	switch m {
	case ModeTextToVideo, ModeImageToVideo, ModeVideoToVideo, ModeFirstFrameToVideo:
		return true
	}
	return false
}

// SegmentStatus enumerates segment generation lifecycle states.
type SegmentStatus string

const (
	SegmentStatusPending    SegmentStatus = "pending"
	SegmentStatusGenerating SegmentStatus = "generating"
	SegmentStatusGenerated  SegmentStatus = "generated"
	SegmentStatusError      SegmentStatus = "error"
)

// EnhanceStatus is the segment-side projection of its latest enhancement job.
type EnhanceStatus string

const (
	EnhanceStatusNone       EnhanceStatus = "none"
	EnhanceStatusQueued     EnhanceStatus = "queued"
	EnhanceStatusProcessing EnhanceStatus = "processing"
	EnhanceStatusDone       EnhanceStatus = "done"
	EnhanceStatusFailed     EnhanceStatus = "failed"
)

// Segment is one generation unit owned exclusively by its timeline.
// Position is zero-based and defines both ordering and frame chaining:
// every segment at position > 0 is generated from the previous segment's
// last frame.
type Segment struct {
	ID                string
	TimelineID        string
	Position          int
	DurationSec       int
	ModelID           string
	GenerationMode    GenerationMode
	PromptText        string
	SourceURL         string
	Status            SegmentStatus
	VideoURL          string
	FirstFrameURL     string
	LastFrameURL      string
	ThumbnailURL      string
	GenerationTimeSec float64
	ErrorMessage      string

	EnhanceEnabled   bool
	EnhanceModel     string
	EnhanceStatus    EnhanceStatus
	EnhancedVideoURL string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsFirst reports whether the segment occupies the head of its timeline.
func (s *Segment) IsFirst() bool {
	return s.Position == 0
}

// SegmentGenerationOutput carries the artifacts persisted after a successful
// provider call and frame extraction.
type SegmentGenerationOutput struct {
	VideoURL          string
	FirstFrameURL     string
	LastFrameURL      string
	ThumbnailURL      string
	GenerationTimeSec float64
}
