package segmentgen

import (
	"fmt"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
)

// ResolveChainInput determines the image input that feeds the segment at
// index in a position-ordered segment slice. The first segment has no chain
// input. Any later segment takes the previous segment's last frame; if the
// previous segment has not reached generated (or produced no last frame)
// the chain input is undefined and generation must not proceed.
func ResolveChainInput(segments []domain.Segment, index int) (string, error) {
	if index < 0 || index >= len(segments) {
		return "", fmt.Errorf("segment index %d out of range", index)
	}
	if index == 0 {
		return "", nil
	}
	prev := segments[index-1]
	if prev.Status != domain.SegmentStatusGenerated {
		return "", fmt.Errorf("segment %d (status %s) is not generated yet: %w",
			prev.Position, prev.Status, domain.ErrMissingChainInput)
	}
	if prev.LastFrameURL == "" {
		return "", fmt.Errorf("segment %d has no last frame: %w", prev.Position, domain.ErrMissingChainInput)
	}
	return prev.LastFrameURL, nil
}

// PreviousSegmentID returns the id of the segment preceding index, or the
// empty string for the first segment.
func PreviousSegmentID(segments []domain.Segment, index int) string {
	if index <= 0 || index >= len(segments) {
		return ""
	}
	return segments[index-1].ID
}
