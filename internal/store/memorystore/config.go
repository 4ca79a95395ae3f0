package memorystore

import (
	"time"

	"github.com/flowsentinel/flowsentinel/pkg/flow"
)

// Config controls the bounded LRU + TTL behavior of Store, mirroring
// FlowSentinelInMemoryProperties's defaults from the original
// implementation.
type Config struct {
	// MaximumSize bounds the number of aggregates held at once. Beyond
	// this, the least-recently-used entry is evicted on insert. Zero
	// means DefaultMaximumSize.
	MaximumSize int
	// TTL is the base time-to-live for an entry from creation. Zero means
	// DefaultTTL.
	TTL time.Duration
	// SlidingEnabled, when true, resets an entry's remaining TTL on the
	// operations named by SlidingReset instead of letting it expire a
	// fixed duration after creation.
	SlidingEnabled bool
	// SlidingReset selects which operations reset the TTL when
	// SlidingEnabled is true. Zero value behaves as
	// flow.SlidingResetOnRead.
	SlidingReset flow.SlidingReset
	// AbsoluteTTL, when positive, caps an entry's lifetime regardless of
	// sliding resets: effective TTL is always min(TTL, remaining
	// absolute lifetime). Zero disables the cap.
	AbsoluteTTL time.Duration
}

const (
	// DefaultMaximumSize is used when Config.MaximumSize is zero.
	DefaultMaximumSize = 10_000
	// DefaultTTL is used when Config.TTL is zero.
	DefaultTTL = time.Hour
)

// WithDefaults returns a copy of c with zero-valued fields coerced to their
// documented defaults.
func (c Config) WithDefaults() Config {
	if c.MaximumSize <= 0 {
		c.MaximumSize = DefaultMaximumSize
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.SlidingReset == "" {
		c.SlidingReset = flow.SlidingResetOnRead
	}
	return c
}
