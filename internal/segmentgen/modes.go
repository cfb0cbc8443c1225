package segmentgen

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
)

// ModeDescriptor is the static description of one generation mode exposed
// by the modes endpoint.
type ModeDescriptor struct {
	Mode             domain.GenerationMode `json:"mode"`
	Label            string                `json:"label"`
	Description      string                `json:"description"`
	FirstSegmentOnly bool                  `json:"first_segment_only"`
}

var modeDescriptions = map[domain.GenerationMode]string{
	domain.ModeTextToVideo:       "Generate a clip from a text prompt alone.",
	domain.ModeImageToVideo:      "Animate a still image. Chained segments always use this mode with the previous segment's last frame.",
	domain.ModeVideoToVideo:      "Restyle an uploaded source video.",
	domain.ModeFirstFrameToVideo: "Generate a clip that starts on the supplied image as its exact first frame.",
}

// ValidateMode decides whether a segment at the given position may use the
// requested mode. Only the first segment may use a mode other than
// image-to-video: every later segment is generated from the previous
// segment's last frame.
func ValidateMode(position int, mode domain.GenerationMode) error {
	if !mode.IsValid() {
		return fmt.Errorf("unknown generation mode %q: %w", mode, domain.ErrInvalidMode)
	}
	if position > 0 && mode != domain.ModeImageToVideo {
		return fmt.Errorf("segment at position %d must use %s: only the first segment supports alternate modes: %w",
			position, domain.ModeImageToVideo, domain.ErrInvalidMode)
	}
	return nil
}

// AvailableModes lists the modes a segment at the given position may use.
func AvailableModes(position int) []domain.GenerationMode {
	if position == 0 {
		modes := make([]domain.GenerationMode, len(domain.AllGenerationModes))
		copy(modes, domain.AllGenerationModes)
		return modes
	}
	return []domain.GenerationMode{domain.ModeImageToVideo}
}

// ModeDescriptors returns the static descriptor list for every mode.
func ModeDescriptors() []ModeDescriptor {
	titler := cases.Title(language.English)
	descriptors := make([]ModeDescriptor, 0, len(domain.AllGenerationModes))
	for _, mode := range domain.AllGenerationModes {
		descriptors = append(descriptors, ModeDescriptor{
			Mode:             mode,
			Label:            titler.String(strings.ReplaceAll(string(mode), "-", " ")),
			Description:      modeDescriptions[mode],
			FirstSegmentOnly: mode != domain.ModeImageToVideo,
		})
	}
	return descriptors
}
