package flow

import "maps"

// TargetStepPayloadKey is the reserved payload key a caller uses to pick an
// explicit transition by its destination step id, bypassing ordered
// predicate evaluation on a COMPLEX step. When present, its value must equal
// the To step of a transition on the current step whose predicate accepts
// the payload, or the engine reports EngineErrorIllegalTarget.
const TargetStepPayloadKey = "__targetStep"

// FlowState is the immutable runtime state of a flow instance: its current
// step and the accumulated attribute map. Advancing never mutates the
// receiver; it returns a new FlowState.
type FlowState struct {
	CurrentStep StepId
	Completed   bool
	Attributes  map[string]any
}

// NewFlowState creates the initial FlowState for a freshly started flow,
// seeded with initialAttributes (copied, never aliased).
func NewFlowState(def FlowDefinition, initialAttributes map[string]any) FlowState {
	return FlowState{
		CurrentStep: def.InitialStep,
		Completed:   false,
		Attributes:  copyAttributes(initialAttributes),
	}
}

// FlowStateFromSnapshot reconstructs a FlowState from a persisted snapshot.
func FlowStateFromSnapshot(snapshot FlowSnapshot) FlowState {
	return FlowState{
		CurrentStep: snapshot.CurrentStep,
		Completed:   snapshot.Completed,
		Attributes:  copyAttributes(snapshot.Attributes),
	}
}

// Advance evaluates the outgoing transition for the current step against
// payload and returns the resulting FlowState. It never mutates s or
// payload. It does not persist anything; callers decide whether and how to
// store the result.
//
// Selection rules:
//   - If payload carries TargetStepPayloadKey, the transition on the current
//     step whose destination step id (To.Value()) equals that value is
//     resolved first; it must exist and its predicate (if any) must accept
//     payload, or EngineErrorIllegalTarget is returned. An EndOfFlow
//     transition has no To and so can never be reached this way. There is
//     no fallback to ordered evaluation once an explicit target is given.
//   - Otherwise every transition's predicate is evaluated against payload
//     in declaration order and the accepting ones are collected. Exactly
//     one match is required: zero is EngineErrorNoMatch, and more than one
//     is EngineErrorAmbiguous.
//   - A SIMPLE step's single transition is taken when its predicate (if
//     any) accepts payload; otherwise EngineErrorNoMatch is returned.
//   - On a step whose matched transition is flow-terminal, the resulting
//     state keeps CurrentStep unchanged and sets Completed true.
func (s FlowState) Advance(key FlowKey, def FlowDefinition, payload map[string]any) (FlowState, error) {
	if s.Completed {
		return FlowState{}, NewEngineError(key, EngineErrorAlreadyCompleted, "flow instance has already completed")
	}
	step, err := def.Step(key, s.CurrentStep)
	if err != nil {
		return FlowState{}, err
	}

	transition, err := selectTransition(key, step, payload)
	if err != nil {
		return FlowState{}, err
	}

	merged := copyAttributes(s.Attributes)
	maps.Copy(merged, payload)
	delete(merged, TargetStepPayloadKey)

	next := FlowState{Attributes: merged}
	if transition.EndOfFlow {
		next.CurrentStep = s.CurrentStep
		next.Completed = true
	} else {
		next.CurrentStep = transition.To
		next.Completed = false
	}
	return next, nil
}

func selectTransition(key FlowKey, step StepDefinition, payload map[string]any) (Transition, error) {
	if target, ok := explicitTarget(payload); ok {
		t, found := step.transitionByTarget(target)
		if !found {
			return Transition{}, NewEngineError(key, EngineErrorIllegalTarget, "no transition to step "+target+" on step "+step.ID.Value())
		}
		if !t.matches(payload) {
			return Transition{}, NewEngineError(key, EngineErrorIllegalTarget, "transition to "+target+" rejects the given payload")
		}
		return t, nil
	}

	if step.NavigationType == NavigationSimple {
		t := step.Transitions[0]
		if !t.matches(payload) {
			return Transition{}, NewEngineError(key, EngineErrorNoMatch, "no transition on step "+step.ID.Value()+" matches the given payload")
		}
		return t, nil
	}

	var matched []Transition
	for _, t := range step.Transitions {
		if t.matches(payload) {
			matched = append(matched, t)
		}
	}
	switch len(matched) {
	case 0:
		return Transition{}, NewEngineError(key, EngineErrorNoMatch, "no transition on step "+step.ID.Value()+" matches the given payload")
	case 1:
		return matched[0], nil
	default:
		return Transition{}, NewEngineError(key, EngineErrorAmbiguous, "more than one transition on step "+step.ID.Value()+" matches the given payload")
	}
}

func explicitTarget(payload map[string]any) (string, bool) {
	if payload == nil {
		return "", false
	}
	v, ok := payload[TargetStepPayloadKey]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || isBlank(s) {
		return "", false
	}
	return s, true
}

// ToSnapshot captures s as a FlowSnapshot for persistence.
func (s FlowState) ToSnapshot() FlowSnapshot {
	return FlowSnapshot{
		CurrentStep: s.CurrentStep,
		Completed:   s.Completed,
		Attributes:  copyAttributes(s.Attributes),
	}
}

func copyAttributes(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	maps.Copy(dst, src)
	return dst
}
