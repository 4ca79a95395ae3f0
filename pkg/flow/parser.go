package flow

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
)

// wireTransition is the JSON wire shape of a Transition: {"to":"<stepId>"}
// or {"endOfFlow":true}. Predicates cannot be expressed in JSON, so parsed
// transitions are always unconditional (When is nil); callers that need
// conditional transitions on a JSON-sourced definition attach predicates
// afterwards via FlowDefinition.Steps, or build the definition in code with
// FlowDefinitionBuilder instead.
type wireTransition struct {
	To        string `json:"to,omitempty"`
	EndOfFlow bool   `json:"endOfFlow,omitempty"`
}

type wireStep struct {
	ID             string           `json:"id"`
	NavigationType NavigationType   `json:"navigationType"`
	Transitions    []wireTransition `json:"transitions"`
}

type wireDefinition struct {
	ID          string     `json:"id"`
	InitialStep string     `json:"initialStep"`
	Steps       []wireStep `json:"steps"`
}

// ParseBytes parses a JSON-encoded FlowDefinition document, tolerant of
// unknown fields. source is used only to annotate errors.
func ParseBytes(source string, data []byte) (FlowDefinition, error) {
	return parse(source, bytes.NewReader(data))
}

// ParseString parses a JSON-encoded FlowDefinition document from a string.
func ParseString(source, data string) (FlowDefinition, error) {
	return ParseBytes(source, []byte(data))
}

// ParseReader parses a JSON-encoded FlowDefinition document from r.
func ParseReader(source string, r io.Reader) (FlowDefinition, error) {
	return parse(source, r)
}

// ParseFile reads and parses a JSON-encoded FlowDefinition document from
// path.
func ParseFile(path string) (FlowDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return FlowDefinition{}, NewParseError(path, err)
	}
	defer f.Close()
	return parse(path, f)
}

func parse(source string, r io.Reader) (FlowDefinition, error) {
	var wire wireDefinition
	dec := json.NewDecoder(r)
	// Unknown fields are tolerated, matching the original parser's
	// FAIL_ON_UNKNOWN_PROPERTIES=false ObjectMapper configuration.
	if err := dec.Decode(&wire); err != nil {
		return FlowDefinition{}, NewParseError(source, err)
	}

	id, err := NewFlowId(wire.ID)
	if err != nil {
		return FlowDefinition{}, NewParseError(source, err)
	}
	initial, err := NewStepId(wire.InitialStep)
	if err != nil {
		return FlowDefinition{}, NewParseError(source, err)
	}

	steps := make([]StepDefinition, 0, len(wire.Steps))
	for _, ws := range wire.Steps {
		stepID, err := NewStepId(ws.ID)
		if err != nil {
			return FlowDefinition{}, NewParseError(source, err)
		}
		transitions := make([]Transition, 0, len(ws.Transitions))
		for _, wt := range ws.Transitions {
			t := Transition{EndOfFlow: wt.EndOfFlow}
			if !wt.EndOfFlow {
				to, err := NewStepId(wt.To)
				if err != nil {
					return FlowDefinition{}, NewParseError(source, err)
				}
				t.To = to
			}
			transitions = append(transitions, t)
		}
		steps = append(steps, StepDefinition{ID: stepID, NavigationType: ws.NavigationType, Transitions: transitions})
	}

	def, err := NewFlowDefinition(id, initial, steps)
	if err != nil {
		return FlowDefinition{}, NewParseError(source, err)
	}
	return def, nil
}
