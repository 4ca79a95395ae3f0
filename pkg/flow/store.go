package flow

import "context"

// SlidingReset controls which operations reset a store entry's sliding TTL
// window, mirroring the original implementation's expiry policy enum.
type SlidingReset string

const (
	// SlidingResetOnWrite resets the TTL only on saveAggregate.
	SlidingResetOnWrite SlidingReset = "ON_WRITE"
	// SlidingResetOnRead resets the TTL only on loadAggregate (never on
	// exists).
	SlidingResetOnRead SlidingReset = "ON_READ"
	// SlidingResetOnReadAndWrite resets the TTL on both reads and writes.
	SlidingResetOnReadAndWrite SlidingReset = "ON_READ_AND_WRITE"
)

// PartitionProvider optionally supplies an explicit partition key for a
// flow being persisted, overriding the default (Key.OwnerId). Returning
// ("", false) leaves the default in effect. Grounded in the original
// implementation's engine-level PartitionProvider dependency.
type PartitionProvider func(ctx context.Context, key FlowKey) (string, bool)

// Store is the persistence abstraction the engine and SessionManager use to
// load and save flow aggregates. Implementations (the in-memory store, the
// Redis store) are responsible for TTL/eviction policy; the interface
// itself is storage-shape only.
type Store interface {
	// SaveAggregate persists agg under key, overwriting any existing
	// aggregate for that key. Last writer wins.
	SaveAggregate(ctx context.Context, key FlowKey, agg FlowAggregate) error

	// LoadAggregate returns the aggregate for key. Returns an
	// EngineErrorNotFound *EngineError if no aggregate exists.
	LoadAggregate(ctx context.Context, key FlowKey) (FlowAggregate, error)

	// Exists reports whether an aggregate exists for key without altering
	// a sliding-TTL entry's expiration.
	Exists(ctx context.Context, key FlowKey) (bool, error)

	// Delete removes the aggregate for key, if present. Deleting an
	// absent key is not an error.
	Delete(ctx context.Context, key FlowKey) error

	// InvalidateByPartition deletes every aggregate whose
	// Meta.PartitionKey equals the given effective partition key, returning
	// the count removed.
	InvalidateByPartition(ctx context.Context, partitionKey string) (int, error)

	// ListActiveFlows returns the FlowKey of every currently persisted
	// aggregate belonging to the given effective partition key.
	ListActiveFlows(ctx context.Context, partitionKey string) ([]FlowKey, error)

	// BulkDelete removes every aggregate named by keys, returning the
	// count actually removed. Implementations perform this atomically
	// where the backend allows it (the Redis store uses a Lua script).
	BulkDelete(ctx context.Context, keys []FlowKey) (int, error)
}

// InvalidateByOwner is a convenience wrapper delegating to
// InvalidateByPartition using ownerId as the partition key, for stores
// whose partitioning scheme defaults the partition to the owner (the
// common case per FlowContext.EffectivePartitionKey).
func InvalidateByOwner(ctx context.Context, s Store, ownerId string) (int, error) {
	return s.InvalidateByPartition(ctx, ownerId)
}
