package memorystore

import (
	"context"
	"testing"
	"time"

	"github.com/flowsentinel/flowsentinel/pkg/flow"
	"github.com/stretchr/testify/require"
)

func key(t *testing.T, owner, instance string) flow.FlowKey {
	t.Helper()
	k, err := flow.NewFlowKey("approval", owner, instance)
	require.NoError(t, err)
	return k
}

func aggregate(t *testing.T, k flow.FlowKey, partition string, now time.Time) flow.FlowAggregate {
	t.Helper()
	return flow.NewFlowAggregate(k, partition, flow.FlowSnapshot{CurrentStep: mustStep(t, "review")}, now)
}

func mustStep(t *testing.T, v string) flow.StepId {
	t.Helper()
	id, err := flow.NewStepId(v)
	require.NoError(t, err)
	return id
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := New(Config{})
	k := key(t, "user-1", "inst-1")
	agg := aggregate(t, k, "user-1", time.Now())

	require.NoError(t, s.SaveAggregate(context.Background(), k, agg))

	got, err := s.LoadAggregate(context.Background(), k)
	require.NoError(t, err)
	require.Equal(t, agg.CurrentSnapshot.CurrentStep, got.CurrentSnapshot.CurrentStep)
}

func TestStore_LoadAggregate_NotFound(t *testing.T) {
	s := New(Config{})
	k := key(t, "user-1", "missing")
	_, err := s.LoadAggregate(context.Background(), k)
	require.Error(t, err)
	_, ok := flow.IsEngineError(err, flow.EngineErrorNotFound)
	require.True(t, ok)
}

func TestStore_ExistsDoesNotResetTTL(t *testing.T) {
	now := time.Now()
	s := New(Config{TTL: 50 * time.Millisecond, SlidingEnabled: true, SlidingReset: flow.SlidingResetOnRead})
	s.now = func() time.Time { return now }
	k := key(t, "user-1", "inst-1")
	require.NoError(t, s.SaveAggregate(context.Background(), k, aggregate(t, k, "user-1", now)))

	s.now = func() time.Time { return now.Add(40 * time.Millisecond) }
	exists, err := s.Exists(context.Background(), k)
	require.NoError(t, err)
	require.True(t, exists)

	s.now = func() time.Time { return now.Add(60 * time.Millisecond) }
	exists, err = s.Exists(context.Background(), k)
	require.NoError(t, err)
	require.False(t, exists, "Exists must not have reset the TTL, so the entry should have expired")
}

func TestStore_SlidingReadResetsTTL(t *testing.T) {
	now := time.Now()
	s := New(Config{TTL: 50 * time.Millisecond, SlidingEnabled: true, SlidingReset: flow.SlidingResetOnRead})
	s.now = func() time.Time { return now }
	k := key(t, "user-1", "inst-1")
	require.NoError(t, s.SaveAggregate(context.Background(), k, aggregate(t, k, "user-1", now)))

	s.now = func() time.Time { return now.Add(40 * time.Millisecond) }
	_, err := s.LoadAggregate(context.Background(), k)
	require.NoError(t, err)

	s.now = func() time.Time { return now.Add(70 * time.Millisecond) }
	_, err = s.LoadAggregate(context.Background(), k)
	require.NoError(t, err, "read at 40ms should have reset the 50ms TTL, so the entry survives to 70ms")
}

func TestStore_AbsoluteTTLCapsSlidingReset(t *testing.T) {
	now := time.Now()
	s := New(Config{
		TTL:            100 * time.Millisecond,
		SlidingEnabled: true,
		SlidingReset:   flow.SlidingResetOnRead,
		AbsoluteTTL:    60 * time.Millisecond,
	})
	s.now = func() time.Time { return now }
	k := key(t, "user-1", "inst-1")
	require.NoError(t, s.SaveAggregate(context.Background(), k, aggregate(t, k, "user-1", now)))

	s.now = func() time.Time { return now.Add(50 * time.Millisecond) }
	_, err := s.LoadAggregate(context.Background(), k)
	require.NoError(t, err)

	s.now = func() time.Time { return now.Add(65 * time.Millisecond) }
	_, err = s.LoadAggregate(context.Background(), k)
	require.Error(t, err, "absolute cap of 60ms must not be extended by the sliding reset at 50ms")
}

func TestStore_MaximumSizeEvictsLeastRecentlyUsed(t *testing.T) {
	s := New(Config{MaximumSize: 2})
	now := time.Now()
	s.now = func() time.Time { return now }

	k1 := key(t, "user-1", "inst-1")
	k2 := key(t, "user-1", "inst-2")
	k3 := key(t, "user-1", "inst-3")
	require.NoError(t, s.SaveAggregate(context.Background(), k1, aggregate(t, k1, "user-1", now)))
	require.NoError(t, s.SaveAggregate(context.Background(), k2, aggregate(t, k2, "user-1", now)))
	require.NoError(t, s.SaveAggregate(context.Background(), k3, aggregate(t, k3, "user-1", now)))

	_, err := s.LoadAggregate(context.Background(), k1)
	require.Error(t, err, "k1 should have been evicted as least recently used")

	_, err = s.LoadAggregate(context.Background(), k2)
	require.NoError(t, err)
	_, err = s.LoadAggregate(context.Background(), k3)
	require.NoError(t, err)
}

func TestStore_InvalidateByPartition(t *testing.T) {
	s := New(Config{})
	now := time.Now()
	s.now = func() time.Time { return now }

	k1 := key(t, "user-1", "inst-1")
	k2 := key(t, "user-1", "inst-2")
	k3 := key(t, "user-2", "inst-3")
	require.NoError(t, s.SaveAggregate(context.Background(), k1, aggregate(t, k1, "user-1", now)))
	require.NoError(t, s.SaveAggregate(context.Background(), k2, aggregate(t, k2, "user-1", now)))
	require.NoError(t, s.SaveAggregate(context.Background(), k3, aggregate(t, k3, "user-2", now)))

	n, err := s.InvalidateByPartition(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = s.LoadAggregate(context.Background(), k3)
	require.NoError(t, err)
}

func TestStore_ListActiveFlows(t *testing.T) {
	s := New(Config{})
	now := time.Now()
	s.now = func() time.Time { return now }

	k1 := key(t, "user-1", "inst-1")
	k2 := key(t, "user-1", "inst-2")
	require.NoError(t, s.SaveAggregate(context.Background(), k1, aggregate(t, k1, "user-1", now)))
	require.NoError(t, s.SaveAggregate(context.Background(), k2, aggregate(t, k2, "user-1", now)))

	keys, err := s.ListActiveFlows(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, keys, 2)
}

func TestStore_BulkDelete(t *testing.T) {
	s := New(Config{})
	now := time.Now()
	s.now = func() time.Time { return now }

	k1 := key(t, "user-1", "inst-1")
	k2 := key(t, "user-1", "inst-2")
	require.NoError(t, s.SaveAggregate(context.Background(), k1, aggregate(t, k1, "user-1", now)))
	require.NoError(t, s.SaveAggregate(context.Background(), k2, aggregate(t, k2, "user-1", now)))

	n, err := s.BulkDelete(context.Background(), []flow.FlowKey{k1, k2})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = s.LoadAggregate(context.Background(), k1)
	require.Error(t, err)
}
