// Package retention bounds the growth of the chat-message collection, which
// otherwise grows without limit against a small storage quota.
package retention

import (
	"time"

	"github.com/nexushub/nexus/internal/model"
)

// Defaults for the chat history policy.
const (
	DefaultWindow = 24 * time.Hour
	DefaultCap    = 50
)

// Policy prunes a head-ordered (most-recent-first) message sequence with two
// composable stages: an age filter, then a count cap. Age runs first by
// design: capping first could retain stale messages that happen to sit inside
// the most-recent window after a long idle period.
type Policy struct {
	Window time.Duration // messages older than this are dropped
	Cap    int           // maximum messages kept after the age filter
}

// Default returns the standard 24-hour / 50-message policy.
func Default() Policy {
	return Policy{Window: DefaultWindow, Cap: DefaultCap}
}

// Apply returns the messages that survive the policy at time now, plus the
// number removed. The input is assumed head-first-most-recent; the cap keeps
// the first Cap entries of the post-age-filter sequence without re-sorting.
func (p Policy) Apply(msgs []model.ChatMessage, now time.Time) ([]model.ChatMessage, int) {
	cutoff := now.Add(-p.Window).UnixMilli()

	kept := make([]model.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Timestamp >= cutoff {
			kept = append(kept, m)
		}
	}
	if p.Cap > 0 && len(kept) > p.Cap {
		kept = kept[:p.Cap]
	}
	return kept, len(msgs) - len(kept)
}
