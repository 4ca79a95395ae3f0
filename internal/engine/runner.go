package engine

import (
	"context"

	"github.com/flowsentinel/flowsentinel/pkg/flow"
)

// ExecutionReport summarizes a flow run driven end-to-end by
// RunToCompletion, grounded in the original implementation's
// FlowRunner/ExecutionReport pair.
type ExecutionReport struct {
	Completed     bool
	StepsExecuted int
	LastStep      flow.StepId
}

// RunToCompletion starts the flow named by key and drives it through the
// given sequence of advance payloads, stopping as soon as the flow reports
// completed or the payload sequence is exhausted. Unlike the original
// FlowRunner (which always advances with an empty payload, suited to
// auto-forwarding SIMPLE-only flows), this accepts one payload per step so
// it can drive COMPLEX steps that require an explicit decision.
func RunToCompletion(ctx context.Context, eng Engine, key flow.FlowKey, def flow.FlowDefinition, initialAttributes map[string]any, payloads []map[string]any) (ExecutionReport, error) {
	state, err := eng.Start(ctx, key, def, initialAttributes)
	if err != nil {
		return ExecutionReport{}, err
	}

	steps := 0
	for _, payload := range payloads {
		if state.Completed {
			break
		}
		state, err = eng.Advance(ctx, key, def, payload)
		if err != nil {
			return ExecutionReport{}, err
		}
		steps++
	}

	return ExecutionReport{
		Completed:     state.Completed,
		StepsExecuted: steps,
		LastStep:      state.CurrentStep,
	}, nil
}
