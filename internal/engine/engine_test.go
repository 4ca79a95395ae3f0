package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flowsentinel/flowsentinel/pkg/flow"
	"github.com/stretchr/testify/require"
)

// fakeStore is a minimal in-memory flow.Store used only to exercise the
// engine's preview/persist orchestration in isolation from any real store
// implementation.
type fakeStore struct {
	mu   sync.Mutex
	data map[string]flow.FlowAggregate
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]flow.FlowAggregate)}
}

func (s *fakeStore) SaveAggregate(ctx context.Context, key flow.FlowKey, agg flow.FlowAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key.StorageKey()] = agg
	return nil
}

func (s *fakeStore) LoadAggregate(ctx context.Context, key flow.FlowKey) (flow.FlowAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.data[key.StorageKey()]
	if !ok {
		return flow.FlowAggregate{}, flow.NewEngineError(key, flow.EngineErrorNotFound, "not found")
	}
	return agg, nil
}

func (s *fakeStore) Exists(ctx context.Context, key flow.FlowKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key.StorageKey()]
	return ok, nil
}

func (s *fakeStore) Delete(ctx context.Context, key flow.FlowKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key.StorageKey())
	return nil
}

func (s *fakeStore) InvalidateByPartition(ctx context.Context, partitionKey string) (int, error) {
	return 0, nil
}

func (s *fakeStore) ListActiveFlows(ctx context.Context, partitionKey string) ([]flow.FlowKey, error) {
	return nil, nil
}

func (s *fakeStore) BulkDelete(ctx context.Context, keys []flow.FlowKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := s.data[k.StorageKey()]; ok {
			delete(s.data, k.StorageKey())
			n++
		}
	}
	return n, nil
}

func approvalDef(t *testing.T) flow.FlowDefinition {
	t.Helper()
	approve := flow.When("approve", mustStep(t, "done"), func(p map[string]any) bool {
		return p["decision"] == "approve"
	})
	reject := flow.When("reject", mustStep(t, "rejected"), func(p map[string]any) bool {
		return p["decision"] == "reject"
	})
	def, err := flow.NewFlowDefinitionBuilder("approval").
		InitialStep("review").
		Complex("review", approve, reject).
		StepEndOfFlow("done", "finish").
		StepEndOfFlow("rejected", "finish").
		Build()
	require.NoError(t, err)
	return def
}

func mustStep(t *testing.T, v string) flow.StepId {
	t.Helper()
	id, err := flow.NewStepId(v)
	require.NoError(t, err)
	return id
}

func testKey(t *testing.T) flow.FlowKey {
	t.Helper()
	k, err := flow.NewFlowKey("approval", "user-1", "inst-1")
	require.NoError(t, err)
	return k
}

func newTestEngine(t *testing.T, def flow.FlowDefinition) Engine {
	t.Helper()
	cache := flow.NewDefinitionCache()
	require.NoError(t, cache.Register(def))
	return New(Config{Store: newFakeStore(), Definitions: cache})
}

func TestEngine_StartThenGetState(t *testing.T) {
	def := approvalDef(t)
	eng := newTestEngine(t, def)
	key := testKey(t)

	state, err := eng.Start(context.Background(), key, def, map[string]any{"applicant": "jane"})
	require.NoError(t, err)
	require.Equal(t, "review", state.CurrentStep.Value())

	reloaded, err := eng.GetState(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, state.CurrentStep, reloaded.CurrentStep)
	require.Equal(t, "jane", reloaded.Attributes["applicant"])
}

func TestEngine_Start_AlreadyExists(t *testing.T) {
	def := approvalDef(t)
	eng := newTestEngine(t, def)
	key := testKey(t)

	_, err := eng.Start(context.Background(), key, def, nil)
	require.NoError(t, err)

	_, err = eng.Start(context.Background(), key, def, nil)
	require.Error(t, err)
	_, ok := flow.IsEngineError(err, flow.EngineErrorAlreadyExists)
	require.True(t, ok)
}

func TestEngine_Advance_ToCompletion(t *testing.T) {
	def := approvalDef(t)
	eng := newTestEngine(t, def)
	key := testKey(t)

	_, err := eng.Start(context.Background(), key, def, nil)
	require.NoError(t, err)

	state, err := eng.Advance(context.Background(), key, def, map[string]any{"decision": "approve"})
	require.NoError(t, err)
	require.Equal(t, "done", state.CurrentStep.Value())
	require.False(t, state.Completed)

	final, err := eng.Advance(context.Background(), key, def, nil)
	require.NoError(t, err)
	require.Equal(t, "done", final.CurrentStep.Value())
	require.True(t, final.Completed)
}

func TestEngine_Advance_NotFound(t *testing.T) {
	def := approvalDef(t)
	eng := newTestEngine(t, def)
	key := testKey(t)

	_, err := eng.Advance(context.Background(), key, def, nil)
	require.Error(t, err)
	_, ok := flow.IsEngineError(err, flow.EngineErrorNotFound)
	require.True(t, ok)
}

func TestEngine_Advance_AlreadyCompleted(t *testing.T) {
	def := approvalDef(t)
	eng := newTestEngine(t, def)
	key := testKey(t)

	_, err := eng.Start(context.Background(), key, def, nil)
	require.NoError(t, err)
	_, err = eng.Advance(context.Background(), key, def, map[string]any{"decision": "approve"})
	require.NoError(t, err)
	_, err = eng.Advance(context.Background(), key, def, nil)
	require.NoError(t, err)

	_, err = eng.Advance(context.Background(), key, def, nil)
	require.Error(t, err)
	_, ok := flow.IsEngineError(err, flow.EngineErrorAlreadyCompleted)
	require.True(t, ok)
}

func TestEngine_Persist_BumpsVersionAndAppendsHistory(t *testing.T) {
	store := newFakeStore()
	def := approvalDef(t)
	cache := flow.NewDefinitionCache()
	require.NoError(t, cache.Register(def))
	eng := New(Config{Store: store, Definitions: cache})
	key := testKey(t)

	_, err := eng.Start(context.Background(), key, def, nil)
	require.NoError(t, err)
	_, err = eng.Advance(context.Background(), key, def, map[string]any{"decision": "approve"})
	require.NoError(t, err)

	agg, err := store.LoadAggregate(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, 2, agg.Meta.Version)
	require.Len(t, agg.SnapshotHistory, 1)
	require.Equal(t, "review", agg.SnapshotHistory[0].CurrentStep.Value())
}

func TestRunToCompletion_DrivesPayloadSequence(t *testing.T) {
	def := approvalDef(t)
	eng := newTestEngine(t, def)
	key := testKey(t)

	report, err := RunToCompletion(context.Background(), eng, key, def, nil, []map[string]any{
		{"decision": "approve"},
		{},
	})
	require.NoError(t, err)
	require.True(t, report.Completed)
	require.Equal(t, 2, report.StepsExecuted)
	require.Equal(t, "done", report.LastStep.Value())
}

func TestRunToCompletion_StopsWhenPayloadsExhausted(t *testing.T) {
	def := approvalDef(t)
	eng := newTestEngine(t, def)
	key := testKey(t)

	report, err := RunToCompletion(context.Background(), eng, key, def, nil, []map[string]any{
		{"decision": "approve"},
	})
	require.NoError(t, err)
	require.False(t, report.Completed)
	require.Equal(t, 1, report.StepsExecuted)
}

func TestEngine_ObserverReceivesLifecycleEvents(t *testing.T) {
	obs := &flow.BasicMetrics{}
	def := approvalDef(t)
	cache := flow.NewDefinitionCache()
	require.NoError(t, cache.Register(def))
	eng := New(Config{Store: newFakeStore(), Definitions: cache, Observer: obs, Now: func() time.Time { return time.Unix(0, 0) }})
	key := testKey(t)

	_, err := eng.Start(context.Background(), key, def, nil)
	require.NoError(t, err)
	_, err = eng.Advance(context.Background(), key, def, map[string]any{"decision": "approve"})
	require.NoError(t, err)

	snap := obs.Snapshot()
	require.Equal(t, int64(2), snap.Persists)
	require.Equal(t, int64(1), snap.PreviewsStarted)
	require.Equal(t, int64(1), snap.PreviewsAdvanced)
}
