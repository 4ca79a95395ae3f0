// Package flow contains the core building blocks used by the flowsentinel
// engine: identifiers, the flow definition graph, runtime state, the store
// abstraction, and the error and observability types shared by every
// implementation.
//
// Most callers interact with the higher-level flowsentinel package, which
// re-exports the types below and provides ready-made engine constructors.
// The flow package is for advanced use cases: custom store backends,
// alternative definition providers, or contributors working on the engine
// itself.
//
// # Concepts
//
//   - Identifiers: FlowId, StepId, FlowKey, FlowContext.
//   - Definition: FlowDefinition, StepDefinition, Transition — an immutable
//     directed graph of steps.
//   - Runtime state: FlowState, advanced one Transition at a time.
//   - Persistence: FlowSnapshot, FlowMeta, FlowAggregate, and the Store
//     interface implemented by the reference backends.
//   - Observability: Observer and its NoopObserver/CompositeObserver/
//     LoggingObserver/BasicMetrics implementations.
//
// None of these types perform I/O themselves; I/O lives behind the Store
// and DefinitionProvider interfaces so the engine stays a pure function of
// its inputs.
package flow
