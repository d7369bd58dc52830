package tiler

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxHeight caps captured content to keep screenshots in memory bounds.
const DefaultMaxHeight = 50000

// ErrContentTooTall is returned by HeightLimit.Apply under OverflowReject.
var ErrContentTooTall = errors.New("content exceeds maximum height")

// OverflowPolicy decides what happens to content taller than the limit.
type OverflowPolicy string

const (
	// OverflowClip keeps the top Max pixels and drops the rest.
	OverflowClip OverflowPolicy = "clip"
	// OverflowReject fails the conversion.
	OverflowReject OverflowPolicy = "reject"
)

// ParseOverflowPolicy accepts "clip" or "reject" (case-insensitive); empty means clip.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverflowClip:
		return OverflowClip, nil
	case OverflowReject:
		return OverflowReject, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", s)
	}
}

// HeightLimit bounds a measured content height before capture.
type HeightLimit struct {
	Max    int
	Policy OverflowPolicy
}

// Apply returns the height to capture and whether content was clipped.
func (l HeightLimit) Apply(height int) (int, bool, error) {
	if height <= 0 {
		return 0, false, fmt.Errorf("%w: content height %d", ErrInvalidDimension, height)
	}
	limit := l.Max
	if limit <= 0 {
		limit = DefaultMaxHeight
	}
	if height <= limit {
		return height, false, nil
	}
	if l.Policy == OverflowReject {
		return 0, false, fmt.Errorf("%w: %dpx > %dpx", ErrContentTooTall, height, limit)
	}
	return limit, true, nil
}
