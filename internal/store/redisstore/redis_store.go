// Package redisstore implements flow.Store on top of Redis: aggregates are
// JSON-encoded under namespaced keys, with TTL/sliding/absolute-cap
// semantics computed from the aggregate's own FlowMeta.CreatedAt rather
// than a separate cap key (see DESIGN.md), and an atomic Lua-scripted bulk
// delete grounded in the teacher's lease Lua scripts.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowsentinel/flowsentinel/pkg/flow"
	"github.com/redis/go-redis/v9"
)

// Store implements flow.Store backed by a *redis.Client.
type Store struct {
	client *redis.Client
	cfg    Config
	now    func() time.Time
}

// New constructs a Store reusing an already-configured *redis.Client
// (ConnModeShared — the caller owns the client's lifecycle).
func New(client *redis.Client, cfg Config) *Store {
	return &Store{client: client, cfg: cfg.WithDefaults(), now: time.Now}
}

// NewDedicated constructs a Store that dials its own *redis.Client from
// cfg's Host/Port/Database/Password/timeouts (ConnModeDedicated).
func NewDedicated(cfg Config) *Store {
	cfg = cfg.WithDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.Database,
		DialTimeout:  cfg.ConnectTimeout,
		ReadTimeout:  cfg.CommandTimeout,
		WriteTimeout: cfg.CommandTimeout,
	})
	return &Store{client: client, cfg: cfg, now: time.Now}
}

var _ flow.Store = (*Store)(nil)

func (s *Store) aggregateKey(storageKey string) string {
	return s.cfg.KeyPrefix + storageKey + ":agg"
}

// partitionIndexKey names the Redis set tracking every storage key filed
// under partitionKey, used by InvalidateByPartition and ListActiveFlows
// instead of a SCAN over the whole keyspace.
func (s *Store) partitionIndexKey(partitionKey string) string {
	return s.cfg.KeyPrefix + "partition:" + partitionKey
}

func (s *Store) SaveAggregate(ctx context.Context, key flow.FlowKey, agg flow.FlowAggregate) error {
	data, err := json.Marshal(agg)
	if err != nil {
		return flow.NewDataAccessError(key.StorageKey(), "SaveAggregate", err)
	}

	storageKey := key.StorageKey()
	aggKey := s.aggregateKey(storageKey)
	now := s.now()
	isCreate := agg.Meta.Version <= 1
	ttl := s.nextTTL(agg.Meta.CreatedAt, now, isCreate || s.isWriteReset())
	if ttl <= 0 {
		// SET with a zero expiration would keep the key forever; an entry
		// past its deadline gets a near-zero TTL instead.
		ttl = time.Millisecond
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, aggKey, data, ttl)
	if agg.Meta.PartitionKey != "" {
		pipe.SAdd(ctx, s.partitionIndexKey(agg.Meta.PartitionKey), storageKey)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return flow.NewDataAccessError(storageKey, "SaveAggregate", err)
	}
	return nil
}

func (s *Store) LoadAggregate(ctx context.Context, key flow.FlowKey) (flow.FlowAggregate, error) {
	storageKey := key.StorageKey()
	data, err := s.client.Get(ctx, s.aggregateKey(storageKey)).Bytes()
	if err == redis.Nil {
		return flow.FlowAggregate{}, flow.NewEngineError(key, flow.EngineErrorNotFound, "no aggregate stored for this key")
	}
	if err != nil {
		return flow.FlowAggregate{}, flow.NewDataAccessError(storageKey, "LoadAggregate", err)
	}

	var agg flow.FlowAggregate
	if err := json.Unmarshal(data, &agg); err != nil {
		return flow.FlowAggregate{}, flow.NewDataAccessError(storageKey, "LoadAggregate", err)
	}

	if s.isReadReset() {
		ttl := s.nextTTL(agg.Meta.CreatedAt, s.now(), true)
		if err := s.client.Expire(ctx, s.aggregateKey(storageKey), ttl).Err(); err != nil {
			return flow.FlowAggregate{}, flow.NewDataAccessError(storageKey, "LoadAggregate", err)
		}
	}
	return agg, nil
}

// Exists checks key presence with EXISTS, which does not itself touch the
// key's TTL, matching the in-memory store's side-effect-free semantics.
func (s *Store) Exists(ctx context.Context, key flow.FlowKey) (bool, error) {
	n, err := s.client.Exists(ctx, s.aggregateKey(key.StorageKey())).Result()
	if err != nil {
		return false, flow.NewDataAccessError(key.StorageKey(), "Exists", err)
	}
	return n > 0, nil
}

func (s *Store) Delete(ctx context.Context, key flow.FlowKey) error {
	storageKey := key.StorageKey()
	agg, err := s.LoadAggregate(ctx, key)
	if err != nil {
		if _, ok := flow.IsEngineError(err, flow.EngineErrorNotFound); ok {
			return nil
		}
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.aggregateKey(storageKey))
	if agg.Meta.PartitionKey != "" {
		pipe.SRem(ctx, s.partitionIndexKey(agg.Meta.PartitionKey), storageKey)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return flow.NewDataAccessError(storageKey, "Delete", err)
	}
	return nil
}

func (s *Store) InvalidateByPartition(ctx context.Context, partitionKey string) (int, error) {
	members, err := s.client.SMembers(ctx, s.partitionIndexKey(partitionKey)).Result()
	if err != nil {
		return 0, flow.NewDataAccessError(partitionKey, "InvalidateByPartition", err)
	}
	if len(members) == 0 {
		return 0, nil
	}
	return s.bulkDeleteStorageKeys(ctx, partitionKey, members)
}

func (s *Store) ListActiveFlows(ctx context.Context, partitionKey string) ([]flow.FlowKey, error) {
	members, err := s.client.SMembers(ctx, s.partitionIndexKey(partitionKey)).Result()
	if err != nil {
		return nil, flow.NewDataAccessError(partitionKey, "ListActiveFlows", err)
	}
	var keys []flow.FlowKey
	for _, m := range members {
		data, err := s.client.Get(ctx, s.aggregateKey(m)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, flow.NewDataAccessError(m, "ListActiveFlows", err)
		}
		var agg flow.FlowAggregate
		if err := json.Unmarshal(data, &agg); err != nil {
			return nil, flow.NewDataAccessError(m, "ListActiveFlows", err)
		}
		keys = append(keys, agg.Meta.Key)
	}
	return keys, nil
}

func (s *Store) BulkDelete(ctx context.Context, keys []flow.FlowKey) (int, error) {
	storageKeys := make([]string, len(keys))
	for i, k := range keys {
		storageKeys[i] = k.StorageKey()
	}
	return s.bulkDeleteStorageKeys(ctx, "", storageKeys)
}

// bulkDeleteAggregatesLua atomically deletes every aggregate key in KEYS
// and, when partitionIndexKey is non-empty, removes the corresponding
// members from that partition's index set, returning the number of
// aggregate keys actually deleted. Grounded in the teacher's
// redisLeaseReleaseLua pattern: GET/DEL guarded by a single round trip so
// concurrent callers never observe a partially-deleted batch.
const bulkDeleteAggregatesLua = `
local deleted = 0
for i = 1, #KEYS do
	if redis.call('DEL', KEYS[i]) == 1 then
		deleted = deleted + 1
	end
end
if ARGV[1] ~= '' then
	redis.call('SREM', ARGV[1], unpack(ARGV, 2))
end
return deleted
`

func (s *Store) bulkDeleteStorageKeys(ctx context.Context, partitionKey string, storageKeys []string) (int, error) {
	aggKeys := make([]string, len(storageKeys))
	for i, sk := range storageKeys {
		aggKeys[i] = s.aggregateKey(sk)
	}

	argv := make([]any, 0, len(storageKeys)+1)
	if partitionKey != "" {
		argv = append(argv, s.partitionIndexKey(partitionKey))
	} else {
		argv = append(argv, "")
	}
	for _, sk := range storageKeys {
		argv = append(argv, sk)
	}

	res, err := s.client.Eval(ctx, bulkDeleteAggregatesLua, aggKeys, argv...).Result()
	if err != nil {
		return 0, flow.NewDataAccessError(partitionKey, "BulkDelete", err)
	}
	n, _ := res.(int64)
	return int(n), nil
}

func (s *Store) isWriteReset() bool {
	return s.cfg.SlidingEnabled && (s.cfg.SlidingReset == flow.SlidingResetOnWrite || s.cfg.SlidingReset == flow.SlidingResetOnReadAndWrite)
}

func (s *Store) isReadReset() bool {
	return s.cfg.SlidingEnabled && (s.cfg.SlidingReset == flow.SlidingResetOnRead || s.cfg.SlidingReset == flow.SlidingResetOnReadAndWrite)
}

// cappedBase returns the base TTL capped by AbsoluteTTL when configured,
// the window used for a fresh window (creation, or a sliding reset).
func (s *Store) cappedBase(age time.Duration) time.Duration {
	base := s.cfg.TTL
	if s.cfg.AbsoluteTTL <= 0 {
		return base
	}
	remaining := s.cfg.AbsoluteTTL - age
	if remaining < 0 {
		remaining = 0
	}
	if remaining < base {
		base = remaining
	}
	return base
}

// nextTTL returns the Redis TTL duration to apply to an aggregate key:
//   - reset true: a fresh window from now, capped by the remaining
//     absolute lifetime when AbsoluteTTL is configured (mirrors the
//     memory store's calculateSlidingExpiration).
//   - reset false: the time remaining until the fixed deadline established
//     at creation, so repeated writes never extend a non-sliding entry's
//     lifetime.
func (s *Store) nextTTL(createdAt, now time.Time, reset bool) time.Duration {
	if reset {
		return s.cappedBase(now.Sub(createdAt))
	}
	deadline := createdAt.Add(s.cappedBase(0))
	remaining := deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
