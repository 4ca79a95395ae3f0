// Package memorystore implements flow.Store as a bounded, thread-safe,
// in-process cache with LRU eviction and dynamic per-entry TTL.
//
// The original implementation gets this behavior from Caffeine's Expiry
// interface; no example in this module's corpus imports a Go LRU/TTL cache
// library (the corpus's caching needs are all backed by Redis), so this
// package ports the Caffeine expiry formula directly onto container/list +
// a map, the idiomatic Go shape for a hand-rolled LRU (see DESIGN.md).
package memorystore

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/flowsentinel/flowsentinel/pkg/flow"
)

type entry struct {
	key        string
	partition  string
	aggregate  flow.FlowAggregate
	createdAt  time.Time
	expiresAt  time.Time
}

// Store is a bounded LRU cache of flow aggregates with sliding or fixed TTL
// and an optional absolute lifetime cap.
type Store struct {
	cfg Config
	now func() time.Time

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recently used
}

// New constructs a Store from cfg, applying WithDefaults.
func New(cfg Config) *Store {
	return &Store{
		cfg:   cfg.WithDefaults(),
		now:   time.Now,
		items: make(map[string]*list.Element),
		order: list.New(),
	}
}

var _ flow.Store = (*Store)(nil)

func (s *Store) SaveAggregate(ctx context.Context, key flow.FlowKey, agg flow.FlowAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	storageKey := key.StorageKey()
	now := s.now()

	if el, ok := s.items[storageKey]; ok {
		e := el.Value.(*entry)
		e.aggregate = agg
		e.partition = agg.Meta.PartitionKey
		e.expiresAt = s.nextExpiry(e, now, true)
		s.order.MoveToFront(el)
		return nil
	}

	e := &entry{
		key:       storageKey,
		partition: agg.Meta.PartitionKey,
		aggregate: agg,
		createdAt: now,
	}
	e.expiresAt = s.initialExpiry(now)
	el := s.order.PushFront(e)
	s.items[storageKey] = el
	s.evictOverflow()
	return nil
}

func (s *Store) LoadAggregate(ctx context.Context, key flow.FlowKey) (flow.FlowAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.lookupLocked(key.StorageKey(), s.now())
	if !ok {
		return flow.FlowAggregate{}, flow.NewEngineError(key, flow.EngineErrorNotFound, "no aggregate stored for this key")
	}
	e := el.Value.(*entry)
	e.expiresAt = s.nextExpiry(e, s.now(), false)
	s.order.MoveToFront(el)
	return e.aggregate, nil
}

// Exists reports whether key has a live entry without resetting its TTL,
// matching the original implementation's asMap().containsKey() idiom for
// side-effect-free existence checks.
func (s *Store) Exists(ctx context.Context, key flow.FlowKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lookupLocked(key.StorageKey(), s.now())
	return ok, nil
}

func (s *Store) Delete(ctx context.Context, key flow.FlowKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key.StorageKey())
	return nil
}

func (s *Store) InvalidateByPartition(ctx context.Context, partitionKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var toRemove []string
	for el := s.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if e.partition == partitionKey && !s.isExpired(e, now) {
			toRemove = append(toRemove, e.key)
		}
	}
	for _, k := range toRemove {
		s.removeLocked(k)
	}
	return len(toRemove), nil
}

func (s *Store) ListActiveFlows(ctx context.Context, partitionKey string) ([]flow.FlowKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var keys []flow.FlowKey
	for el := s.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if e.partition != partitionKey || s.isExpired(e, now) {
			continue
		}
		keys = append(keys, e.aggregate.Meta.Key)
	}
	return keys, nil
}

func (s *Store) BulkDelete(ctx context.Context, keys []flow.FlowKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, k := range keys {
		if el, ok := s.lookupLocked(k.StorageKey(), now); ok {
			s.order.Remove(el)
			delete(s.items, k.StorageKey())
			n++
		}
	}
	return n, nil
}

// lookupLocked returns the live element for storageKey, lazily evicting it
// (without moving it in the LRU order) if it has expired. Callers hold s.mu.
func (s *Store) lookupLocked(storageKey string, now time.Time) (*list.Element, bool) {
	el, ok := s.items[storageKey]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if s.isExpired(e, now) {
		s.order.Remove(el)
		delete(s.items, storageKey)
		return nil, false
	}
	return el, true
}

func (s *Store) removeLocked(storageKey string) {
	if el, ok := s.items[storageKey]; ok {
		s.order.Remove(el)
		delete(s.items, storageKey)
	}
}

func (s *Store) evictOverflow() {
	for len(s.items) > s.cfg.MaximumSize {
		back := s.order.Back()
		if back == nil {
			return
		}
		e := back.Value.(*entry)
		s.order.Remove(back)
		delete(s.items, e.key)
	}
}

func (s *Store) isExpired(e *entry, now time.Time) bool {
	return now.After(e.expiresAt)
}

// initialExpiry implements the original implementation's expireAfterCreate:
// min(baseTTL, absoluteTTL) when an absolute cap is configured, else
// baseTTL.
func (s *Store) initialExpiry(now time.Time) time.Time {
	base := s.cfg.TTL
	if s.hasAbsoluteCap() && s.cfg.AbsoluteTTL < base {
		base = s.cfg.AbsoluteTTL
	}
	return now.Add(base)
}

// nextExpiry implements expireAfterUpdate/expireAfterRead: only recompute
// (reset) the TTL when sliding is enabled and the reset policy covers this
// operation; otherwise the existing expiry is left untouched.
func (s *Store) nextExpiry(e *entry, now time.Time, isWrite bool) time.Time {
	if !s.cfg.SlidingEnabled {
		return e.expiresAt
	}
	applies := (isWrite && (s.cfg.SlidingReset == flow.SlidingResetOnWrite || s.cfg.SlidingReset == flow.SlidingResetOnReadAndWrite)) ||
		(!isWrite && (s.cfg.SlidingReset == flow.SlidingResetOnRead || s.cfg.SlidingReset == flow.SlidingResetOnReadAndWrite))
	if !applies {
		return e.expiresAt
	}
	return s.calculateSlidingExpiration(e, now)
}

// calculateSlidingExpiration implements the Caffeine Expiry formula from
// the original implementation: remaining = absoluteTTL - age, expiry is
// min(baseTTL, remaining) clamped to non-negative, or plain baseTTL when no
// absolute cap is configured.
func (s *Store) calculateSlidingExpiration(e *entry, now time.Time) time.Time {
	base := s.cfg.TTL
	if !s.hasAbsoluteCap() {
		return now.Add(base)
	}
	age := now.Sub(e.createdAt)
	remaining := s.cfg.AbsoluteTTL - age
	if remaining < 0 {
		remaining = 0
	}
	if remaining < base {
		base = remaining
	}
	return now.Add(base)
}

func (s *Store) hasAbsoluteCap() bool {
	return s.cfg.AbsoluteTTL > 0
}
