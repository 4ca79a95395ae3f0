// Package flowsentinel is the root entry point for the flow engine: it
// re-exports the public pkg/flow types and wires together ready-to-use
// Engine constructors over the in-memory and Redis stores so callers don't
// need to reach into internal packages.
package flowsentinel

import (
	"context"
	"log/slog"

	"github.com/flowsentinel/flowsentinel/internal/engine"
	"github.com/flowsentinel/flowsentinel/internal/session"
	"github.com/flowsentinel/flowsentinel/internal/store/memorystore"
	"github.com/flowsentinel/flowsentinel/internal/store/redisstore"
	"github.com/flowsentinel/flowsentinel/pkg/flow"
	"github.com/redis/go-redis/v9"
)

// Re-export key pkg/flow types so callers can depend on this package alone.

type (
	Engine                = engine.Engine
	FlowId                = flow.FlowId
	StepId                = flow.StepId
	FlowKey               = flow.FlowKey
	FlowContext           = flow.FlowContext
	FlowDefinition        = flow.FlowDefinition
	FlowDefinitionBuilder = flow.FlowDefinitionBuilder
	FlowState             = flow.FlowState
	FlowSnapshot          = flow.FlowSnapshot
	FlowAggregate         = flow.FlowAggregate
	Transition            = flow.Transition
	Store                 = flow.Store
	DefinitionProvider    = flow.DefinitionProvider
	DefinitionCache       = flow.DefinitionCache
	PartitionProvider     = flow.PartitionProvider
	Observer              = flow.Observer
	NoopObserver          = flow.NoopObserver
	LoggingObserver       = flow.LoggingObserver
	CompositeObserver     = flow.CompositeObserver
	BasicMetrics          = flow.BasicMetrics
	BasicMetricsSnapshot  = flow.BasicMetricsSnapshot
	SessionManager        = session.Manager
)

var (
	NewFlowKey               = flow.NewFlowKey
	NewFlowContext           = flow.NewFlowContext
	AnonymousContext         = flow.AnonymousContext
	ContextForUser           = flow.ContextForUser
	ContextWithPartition     = flow.ContextWithPartition
	WithFlowContext          = flow.WithFlowContext
	PartitionFromRequestContext = flow.PartitionFromRequestContext
	NewFlowDefinitionBuilder = flow.NewFlowDefinitionBuilder
	NewDefinitionCache       = flow.NewDefinitionCache
	NewCompositeObserver     = flow.NewCompositeObserver
	NewLoggingObserver       = flow.NewLoggingObserver
	ParseBytes               = flow.ParseBytes
	ParseFile                = flow.ParseFile
	NewSessionManager        = session.NewManager
)

// EngineOption customizes an Engine built by the constructors below, beyond
// the required store/definitions pair.
type EngineOption func(*engine.Config)

// WithObserver attaches an Observer to the engine.
func WithObserver(obs Observer) EngineOption {
	return func(c *engine.Config) { c.Observer = obs }
}

// WithMaxHistory bounds the number of retained snapshots per flow.
func WithMaxHistory(n int) EngineOption {
	return func(c *engine.Config) { c.MaxHistory = n }
}

// WithPartitionProvider overrides the default partition key (FlowKey.OwnerId)
// used when persisting aggregates.
func WithPartitionProvider(p PartitionProvider) EngineOption {
	return func(c *engine.Config) { c.Partitions = p }
}

func applyOptions(cfg engine.Config, opts []EngineOption) engine.Config {
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewInMemoryEngine returns an Engine backed by a bounded in-process cache,
// suitable for tests and single-instance deployments.
func NewInMemoryEngine(definitions flow.DefinitionProvider, opts ...EngineOption) Engine {
	return NewInMemoryEngineWithConfig(definitions, memorystore.Config{}, opts...)
}

// NewInMemoryEngineWithConfig is like NewInMemoryEngine but lets the caller
// tune eviction and TTL policy via memorystore.Config.
func NewInMemoryEngineWithConfig(definitions flow.DefinitionProvider, cfg memorystore.Config, opts ...EngineOption) Engine {
	return engine.New(applyOptions(engine.Config{
		Store:       memorystore.New(cfg),
		Definitions: definitions,
	}, opts))
}

// NewRedisEngine returns an Engine that persists flow aggregates in Redis
// using an already-configured *redis.Client.
func NewRedisEngine(client *redis.Client, definitions flow.DefinitionProvider, opts ...EngineOption) Engine {
	return NewRedisEngineWithConfig(client, definitions, redisstore.Config{}, opts...)
}

// NewRedisEngineWithConfig is like NewRedisEngine but lets the caller tune
// key namespace, TTL, and sliding/absolute policy via redisstore.Config.
func NewRedisEngineWithConfig(client *redis.Client, definitions flow.DefinitionProvider, cfg redisstore.Config, opts ...EngineOption) Engine {
	return engine.New(applyOptions(engine.Config{
		Store:       redisstore.New(client, cfg),
		Definitions: definitions,
	}, opts))
}

// NewRedisEngineDedicated dials its own Redis connection from cfg rather
// than reusing a caller-supplied client.
func NewRedisEngineDedicated(definitions flow.DefinitionProvider, cfg redisstore.Config, opts ...EngineOption) Engine {
	return engine.New(applyOptions(engine.Config{
		Store:       redisstore.NewDedicated(cfg),
		Definitions: definitions,
	}, opts))
}

// Convenience wrappers forwarding to the underlying Engine, mirroring the
// original implementation's top-level FlowSentinel facade methods.

// PreviewStart starts a new flow without persisting it.
func PreviewStart(ctx context.Context, eng Engine, key FlowKey, def FlowDefinition, initialAttributes map[string]any) (FlowState, error) {
	return eng.PreviewStart(ctx, key, def, initialAttributes)
}

// PreviewAdvance computes the next state for key without persisting it.
func PreviewAdvance(ctx context.Context, eng Engine, key FlowKey, def FlowDefinition, payload map[string]any) (FlowState, error) {
	return eng.PreviewAdvance(ctx, key, def, payload)
}

// Persist durably saves state for key.
func Persist(ctx context.Context, eng Engine, key FlowKey, state FlowState) error {
	return eng.Persist(ctx, key, state)
}

// Start starts and persists a new flow in one step.
func Start(ctx context.Context, eng Engine, key FlowKey, def FlowDefinition, initialAttributes map[string]any) (FlowState, error) {
	return eng.Start(ctx, key, def, initialAttributes)
}

// Advance advances and persists a flow in one step.
func Advance(ctx context.Context, eng Engine, key FlowKey, def FlowDefinition, payload map[string]any) (FlowState, error) {
	return eng.Advance(ctx, key, def, payload)
}

// GetState returns the persisted state for key.
func GetState(ctx context.Context, eng Engine, key FlowKey) (FlowState, error) {
	return eng.GetState(ctx, key)
}

// NewNoopLogger is a small convenience for tests that want a silent
// *slog.Logger without constructing one inline.
func NewNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
