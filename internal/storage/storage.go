package storage

import "context"

// BlobStore persists binary artifacts (videos, frames, thumbnails)
// addressed by key and yields a retrievable URL for each stored object.
type BlobStore interface {
	Write(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// KeyForFrame builds the canonical object key for an extracted frame.
func KeyForFrame(timelineID, segmentID, name string) string {
	return "timelines/" + timelineID + "/segments/" + segmentID + "/frames/" + name
}

// KeyForThumbnail builds the canonical object key for a segment thumbnail.
func KeyForThumbnail(timelineID, segmentID string) string {
	return "timelines/" + timelineID + "/segments/" + segmentID + "/thumbnail.jpg"
}
