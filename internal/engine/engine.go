// Package engine implements Engine: the synchronous preview/persist
// state machine that drives a FlowDefinition's transition graph against a
// Store and a DefinitionProvider.
package engine

import (
	"context"
	"time"

	"github.com/flowsentinel/flowsentinel/pkg/flow"
)

// Engine is the public surface a caller drives a flow instance through. It
// mirrors the original implementation's FlowEngine interface: two-phase
// preview/persist primitives plus convenience wrappers that perform both
// phases in one call.
type Engine interface {
	// PreviewStart computes the initial FlowState for key without
	// persisting anything. Returns an *EngineError with
	// EngineErrorAlreadyExists if an aggregate already exists for key.
	PreviewStart(ctx context.Context, key flow.FlowKey, def flow.FlowDefinition, initialAttributes map[string]any) (flow.FlowState, error)

	// PreviewAdvance loads the current state for key and computes the
	// next FlowState by evaluating payload against the current step's
	// transitions, without persisting anything.
	PreviewAdvance(ctx context.Context, key flow.FlowKey, def flow.FlowDefinition, payload map[string]any) (flow.FlowState, error)

	// Persist writes state to the store under key, bumping the
	// aggregate's version and appending the previous current snapshot to
	// history.
	Persist(ctx context.Context, key flow.FlowKey, state flow.FlowState) error

	// Start previews and persists the initial state for key in one call.
	Start(ctx context.Context, key flow.FlowKey, def flow.FlowDefinition, initialAttributes map[string]any) (flow.FlowState, error)

	// Advance previews and persists the next state for key in one call.
	Advance(ctx context.Context, key flow.FlowKey, def flow.FlowDefinition, payload map[string]any) (flow.FlowState, error)

	// GetState reconstructs the current FlowState for key from the store,
	// or returns an *EngineError with EngineErrorNotFound.
	GetState(ctx context.Context, key flow.FlowKey) (flow.FlowState, error)
}

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Config bundles the dependencies an engine needs, mirroring the teacher's
// Config{Persistence, Observer} constructor-bundle idiom.
type Config struct {
	Store       flow.Store
	Definitions flow.DefinitionProvider
	Observer    flow.Observer
	Now         Clock
	MaxHistory  int
	// Partitions optionally overrides the effective partition key an
	// aggregate is filed under; nil means every key defaults to its
	// FlowKey.OwnerId.
	Partitions flow.PartitionProvider
}

type engineImpl struct {
	store       flow.Store
	definitions flow.DefinitionProvider
	observer    flow.Observer
	now         Clock
	maxHistory  int
	partitions  flow.PartitionProvider
}

// New constructs an Engine from cfg. A nil Observer defaults to
// flow.NoopObserver{}; a nil Now defaults to time.Now; a zero MaxHistory
// defaults to flow.DefaultMaxHistory.
func New(cfg Config) Engine {
	observer := cfg.Observer
	if observer == nil {
		observer = flow.NoopObserver{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = flow.DefaultMaxHistory
	}
	return &engineImpl{
		store:       cfg.Store,
		definitions: cfg.Definitions,
		observer:    observer,
		now:         now,
		maxHistory:  maxHistory,
		partitions:  cfg.Partitions,
	}
}

func (e *engineImpl) partitionFor(ctx context.Context, key flow.FlowKey) string {
	if e.partitions != nil {
		if p, ok := e.partitions(ctx, key); ok {
			return p
		}
	}
	return key.OwnerId
}

func (e *engineImpl) PreviewStart(ctx context.Context, key flow.FlowKey, def flow.FlowDefinition, initialAttributes map[string]any) (flow.FlowState, error) {
	e.observer.OnPreviewStart(ctx, key)

	exists, err := e.store.Exists(ctx, key)
	if err != nil {
		return flow.FlowState{}, e.fail(ctx, key, err)
	}
	if exists {
		return flow.FlowState{}, e.fail(ctx, key, flow.NewEngineError(key, flow.EngineErrorAlreadyExists, "a flow already exists for this key"))
	}

	return flow.NewFlowState(def, initialAttributes), nil
}

func (e *engineImpl) PreviewAdvance(ctx context.Context, key flow.FlowKey, def flow.FlowDefinition, payload map[string]any) (flow.FlowState, error) {
	current, err := e.GetState(ctx, key)
	if err != nil {
		return flow.FlowState{}, err
	}
	e.observer.OnPreviewAdvance(ctx, key, current.CurrentStep)

	next, err := current.Advance(key, def, payload)
	if err != nil {
		return flow.FlowState{}, e.fail(ctx, key, err)
	}
	return next, nil
}

func (e *engineImpl) Persist(ctx context.Context, key flow.FlowKey, state flow.FlowState) error {
	now := e.now()
	snapshot := state.ToSnapshot()

	existing, err := e.store.LoadAggregate(ctx, key)
	var agg flow.FlowAggregate
	if err == nil {
		agg = existing.AppendHistory(snapshot, now, e.maxHistory)
	} else if _, ok := flow.IsEngineError(err, flow.EngineErrorNotFound); ok {
		agg = flow.NewFlowAggregate(key, e.partitionFor(ctx, key), snapshot, now)
	} else {
		return e.fail(ctx, key, err)
	}

	if err := e.store.SaveAggregate(ctx, key, agg); err != nil {
		return e.fail(ctx, key, err)
	}
	e.observer.OnPersist(ctx, key, state.CurrentStep, state.Completed)
	return nil
}

func (e *engineImpl) Start(ctx context.Context, key flow.FlowKey, def flow.FlowDefinition, initialAttributes map[string]any) (flow.FlowState, error) {
	state, err := e.PreviewStart(ctx, key, def, initialAttributes)
	if err != nil {
		return flow.FlowState{}, err
	}
	if err := e.Persist(ctx, key, state); err != nil {
		return flow.FlowState{}, err
	}
	return state, nil
}

func (e *engineImpl) Advance(ctx context.Context, key flow.FlowKey, def flow.FlowDefinition, payload map[string]any) (flow.FlowState, error) {
	state, err := e.PreviewAdvance(ctx, key, def, payload)
	if err != nil {
		return flow.FlowState{}, err
	}
	if err := e.Persist(ctx, key, state); err != nil {
		return flow.FlowState{}, err
	}
	return state, nil
}

func (e *engineImpl) GetState(ctx context.Context, key flow.FlowKey) (flow.FlowState, error) {
	if _, err := e.definitions.Get(key.FlowName); err != nil {
		return flow.FlowState{}, e.fail(ctx, key, err)
	}

	agg, err := e.store.LoadAggregate(ctx, key)
	if err != nil {
		return flow.FlowState{}, e.fail(ctx, key, err)
	}
	return flow.FlowStateFromSnapshot(agg.CurrentSnapshot), nil
}

func (e *engineImpl) fail(ctx context.Context, key flow.FlowKey, err error) error {
	e.observer.OnEngineError(ctx, key, err)
	return err
}
