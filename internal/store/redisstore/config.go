package redisstore

import (
	"time"

	"github.com/flowsentinel/flowsentinel/pkg/flow"
)

// ConnMode selects whether the store dials its own dedicated Redis
// connection or reuses a *redis.Client the caller already built and shares
// with other components, mirroring FlowSentinelRedisProperties.Mode from
// the original implementation.
type ConnMode string

const (
	// ConnModeShared uses an externally supplied *redis.Client.
	ConnModeShared ConnMode = "SHARED"
	// ConnModeDedicated dials its own *redis.Client from Host/Port/etc.
	ConnModeDedicated ConnMode = "DEDICATED"
)

// Config controls the Redis store's key namespace, TTL policy, and
// connection parameters, mirroring FlowSentinelRedisProperties's defaults.
type Config struct {
	// KeyPrefix namespaces every key this store writes. Empty means
	// DefaultKeyPrefix.
	KeyPrefix string
	// TTL is the base time-to-live for an aggregate from creation. Zero
	// means DefaultTTL.
	TTL time.Duration
	// SlidingEnabled, when true, resets an aggregate's remaining TTL on
	// the operations named by SlidingReset.
	SlidingEnabled bool
	// SlidingReset selects which operations reset the TTL when
	// SlidingEnabled is true. Zero value behaves as
	// flow.SlidingResetOnRead.
	SlidingReset flow.SlidingReset
	// AbsoluteTTL, when positive, caps an aggregate's lifetime regardless
	// of sliding resets, computed from Meta.CreatedAt rather than a
	// separate cap key (see DESIGN.md for why this supersedes the
	// original implementation's split cap-key design).
	AbsoluteTTL time.Duration
	// MaxHistory bounds FlowAggregate.SnapshotHistory length. Zero means
	// flow.DefaultMaxHistory.
	MaxHistory int

	// Mode records dedicated vs. shared connection management. Neither
	// constructor reads it: New always takes a shared *redis.Client and
	// NewDedicated always dials its own from Host/Port/etc.
	Mode ConnMode
	Host string
	Port int
	Database int
	Password string
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

const (
	// DefaultKeyPrefix is used when Config.KeyPrefix is empty.
	DefaultKeyPrefix = "fs:flow:"
	// DefaultTTL is used when Config.TTL is zero.
	DefaultTTL = time.Hour
	// DefaultPort is used when Config.Port is zero.
	DefaultPort = 6379
)

// WithDefaults returns a copy of c with zero-valued fields coerced to their
// documented defaults.
func (c Config) WithDefaults() Config {
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.SlidingReset == "" {
		c.SlidingReset = flow.SlidingResetOnRead
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = flow.DefaultMaxHistory
	}
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.Mode == "" {
		c.Mode = ConnModeShared
	}
	return c
}
