package filter

import (
	"strings"
	"time"

	"redscout/internal/types"
)

// Cutoff is a pure predicate over RawPost. The epoch threshold is computed
// once at run start.
type Cutoff struct {
	MinCreatedUTC int64
	RequireBody   bool
}

// NewCutoff builds a Cutoff that keeps posts created within the last
// cutoffDays of now.
func NewCutoff(now time.Time, cutoffDays int, requireBody bool) Cutoff {
	return Cutoff{
		MinCreatedUTC: now.AddDate(0, 0, -cutoffDays).Unix(),
		RequireBody:   requireBody,
	}
}

// Keep reports whether the post survives the filter.
func (c Cutoff) Keep(p types.RawPost) bool {
	if p.CreatedUTC < c.MinCreatedUTC {
		return false
	}
	if c.RequireBody && strings.TrimSpace(p.SelfText) == "" {
		return false
	}
	return true
}

// Apply filters posts, preserving order.
func (c Cutoff) Apply(posts []types.RawPost) []types.RawPost {
	kept := make([]types.RawPost, 0, len(posts))
	for _, p := range posts {
		if c.Keep(p) {
			kept = append(kept, p)
		}
	}
	return kept
}
