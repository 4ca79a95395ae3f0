// Package flowsentinel provides a durable, resumable flow engine for
// multi-step operations that span requests: approval chains, onboarding
// wizards, checkout flows, anything that needs to remember "which step are
// we on" between round trips without committing to a full workflow
// orchestrator.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. FlowDefinition — an immutable graph of named steps and transitions
//  2. FlowState — the current step, completion flag, and attribute bag for
//     one running instance of a definition
//  3. Engine — the preview/persist protocol that advances state against a
//     definition and durably stores it
//  4. Store — the persistence abstraction (in-memory or Redis) an Engine
//     is built over
//
// # Definitions
//
// A FlowDefinition is built once, validated, and registered into a
// DefinitionCache by name:
//
//	def, err := flow.NewFlowDefinitionBuilder("approval").
//	    InitialStep("submit").
//	    Step("submit", "toReview", "review").
//	    Complex("review",
//	        flow.Always("approve", mustStep("approved")),
//	        flow.Always("reject", mustStep("rejected")),
//	    ).
//	    StepEndOfFlow("approved", "done").
//	    StepEndOfFlow("rejected", "done").
//	    Build()
//
// Definitions may also be parsed from a JSON document via flow.ParseBytes,
// for systems that want to author flows as data rather than Go code;
// parsed transitions are always unconditional, since predicates are Go
// closures and cannot be expressed in JSON.
//
// # Engine
//
// The Engine exposes a two-phase protocol: Preview computes the next
// FlowState without writing anything, so callers can render a confirmation
// screen or validate business rules before committing; Persist (or the
// combined Start/Advance) writes the result. Transition selection honors
// an explicit "__targetStep" payload key ahead of the definition's ordered
// predicate evaluation: its value names the destination step id of the
// transition to take, letting COMPLEX steps make an explicit decision
// (e.g. which of several destination steps to move to) instead of relying
// on payload-shape matching alone.
//
// # Stores
//
// memorystore backs an Engine with a bounded, sliding-TTL, in-process LRU;
// redisstore backs one with Redis, encoding aggregates as JSON and using a
// Redis set as a secondary index for partition-scoped operations
// (invalidate-by-owner, list-active-flows). Both honor the same sliding
// and absolute TTL policy and are interchangeable behind the Store
// interface.
//
// # Session management
//
// The session package wraps a Store with the common invalidation
// scenarios a service built on this engine actually needs: logout,
// security events (token revocation), administrative bulk cleanup, and
// cross-partition invalidation for tenant offboarding.
package flowsentinel
