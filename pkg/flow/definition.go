package flow

// NavigationType distinguishes steps that move forward unconditionally
// (SIMPLE, exactly one transition) from steps whose outgoing transition is
// chosen by evaluating payload predicates in order (COMPLEX, one or more
// transitions).
type NavigationType string

const (
	// NavigationSimple steps have exactly one Transition, always taken.
	NavigationSimple NavigationType = "SIMPLE"
	// NavigationComplex steps have one or more Transitions, selected by
	// predicate evaluation or an explicit target.
	NavigationComplex NavigationType = "COMPLEX"
)

// TransitionPredicate decides whether a Transition applies to a given
// payload. A nil predicate is treated as always-true.
type TransitionPredicate func(payload map[string]any) bool

// Transition is one outgoing edge of a StepDefinition: either a move to
// another step (To set, EndOfFlow false) or a terminal edge (EndOfFlow
// true, To empty). Exactly one of these must hold.
type Transition struct {
	// Name is an optional authoring label, set by FlowDefinitionBuilder
	// callers for readability. It is not part of the wire format, is never
	// required, and plays no part in transition selection: the engine
	// resolves an explicit __targetStep against To.Value(), per the
	// documented algorithm, not against Name.
	Name string
	// To is the StepId this transition leads to. Empty when EndOfFlow.
	To StepId
	// EndOfFlow marks this transition as flow-terminal. When true, To must
	// be empty.
	EndOfFlow bool
	// When is the predicate gating this transition. Nil means always-true.
	When TransitionPredicate
}

// Always constructs an unconditional Transition to the given step.
func Always(name string, to StepId) Transition {
	return Transition{Name: name, To: to}
}

// When constructs a conditional Transition to the given step.
func When(name string, to StepId, pred TransitionPredicate) Transition {
	return Transition{Name: name, To: to, When: pred}
}

// EndOfFlowTransition constructs a terminal Transition.
func EndOfFlowTransition(name string) Transition {
	return Transition{Name: name, EndOfFlow: true}
}

// EndOfFlowWhen constructs a conditional terminal Transition.
func EndOfFlowWhen(name string, pred TransitionPredicate) Transition {
	return Transition{Name: name, EndOfFlow: true, When: pred}
}

// matches reports whether this transition's predicate accepts payload.
func (t Transition) matches(payload map[string]any) bool {
	if t.When == nil {
		return true
	}
	return t.When(payload)
}

// validate checks the exactly-one-of{To,EndOfFlow} invariant.
func (t Transition) validate(flowID, stepName string) error {
	hasTo := !isBlank(t.To.Value())
	if hasTo == t.EndOfFlow {
		return NewDefinitionError(flowID, "step "+stepName+": "+t.describe()+" must set exactly one of {To, EndOfFlow}")
	}
	return nil
}

// describe returns a human-readable label for diagnostics: the authoring
// Name when set, otherwise the destination step or "end-of-flow transition".
func (t Transition) describe() string {
	if !isBlank(t.Name) {
		return "transition " + t.Name
	}
	if !isBlank(t.To.Value()) {
		return "transition to " + t.To.Value()
	}
	return "end-of-flow transition"
}

// StepDefinition describes one node of the flow graph: its navigation type
// and its outgoing transitions.
type StepDefinition struct {
	ID             StepId
	NavigationType NavigationType
	Transitions    []Transition
}

func (s StepDefinition) validate(flowID string) error {
	name := s.ID.Value()
	if isBlank(name) {
		return NewDefinitionError(flowID, "step id cannot be blank")
	}
	if len(s.Transitions) == 0 {
		return NewDefinitionError(flowID, "step "+name+": must declare at least one transition")
	}
	if s.NavigationType == NavigationSimple && len(s.Transitions) != 1 {
		return NewDefinitionError(flowID, "step "+name+": SIMPLE navigation requires exactly one transition")
	}
	for _, t := range s.Transitions {
		if err := t.validate(flowID, name); err != nil {
			return err
		}
	}
	return nil
}

// transitionByTarget returns the first non-terminal transition whose
// destination step id equals target, per the engine's __targetStep
// selection rule ("find the transition whose to.value == targetStep").
func (s StepDefinition) transitionByTarget(target string) (Transition, bool) {
	for _, t := range s.Transitions {
		if !t.EndOfFlow && t.To.Value() == target {
			return t, true
		}
	}
	return Transition{}, false
}

// FlowDefinition is the immutable directed graph of steps that a flow
// instance is executed against. It is produced either by the Parser or by
// FlowDefinitionBuilder, and is never mutated after construction.
type FlowDefinition struct {
	ID          FlowId
	InitialStep StepId
	Steps       map[string]StepDefinition
}

// NewFlowDefinition validates and constructs a FlowDefinition. steps is
// keyed by StepDefinition.ID.Value() internally; callers pass a slice to
// preserve a natural authoring order.
func NewFlowDefinition(id FlowId, initialStep StepId, steps []StepDefinition) (FlowDefinition, error) {
	def := FlowDefinition{ID: id, InitialStep: initialStep, Steps: make(map[string]StepDefinition, len(steps))}
	for _, s := range steps {
		if _, dup := def.Steps[s.ID.Value()]; dup {
			return FlowDefinition{}, NewDefinitionError(id.Value(), "duplicate step id: "+s.ID.Value())
		}
		def.Steps[s.ID.Value()] = s
	}
	if err := def.validate(); err != nil {
		return FlowDefinition{}, err
	}
	return def, nil
}

func (d FlowDefinition) validate() error {
	flowID := d.ID.Value()
	if isBlank(flowID) {
		return NewDefinitionError(flowID, "flow id cannot be blank")
	}
	if len(d.Steps) == 0 {
		return NewDefinitionError(flowID, "flow must declare at least one step")
	}
	if isBlank(d.InitialStep.Value()) {
		return NewDefinitionError(flowID, "initial step cannot be blank")
	}
	if _, ok := d.Steps[d.InitialStep.Value()]; !ok {
		return NewDefinitionError(flowID, "initial step "+d.InitialStep.Value()+" is not among the declared steps")
	}
	for _, s := range d.Steps {
		if err := s.validate(flowID); err != nil {
			return err
		}
		for _, t := range s.Transitions {
			if t.EndOfFlow {
				continue
			}
			if _, ok := d.Steps[t.To.Value()]; !ok {
				return NewDefinitionError(flowID, "step "+s.ID.Value()+": "+t.describe()+" targets undeclared step "+t.To.Value())
			}
		}
	}
	return nil
}

// Step looks up a step by id, reporting an EngineErrorStepNotDefined error
// (not a DefinitionError: the definition itself is valid, the caller's
// reference to it is not) when absent.
func (d FlowDefinition) Step(key FlowKey, id StepId) (StepDefinition, error) {
	s, ok := d.Steps[id.Value()]
	if !ok {
		return StepDefinition{}, NewEngineError(key, EngineErrorStepNotDefined, "step "+id.Value()+" is not defined in flow "+d.ID.Value())
	}
	return s, nil
}

// FlowDefinitionBuilder provides a fluent API for constructing a
// FlowDefinition in code, mirroring the teacher's FlowBuilder.
type FlowDefinitionBuilder struct {
	id          string
	initialStep string
	steps       []StepDefinition
	err         error
}

// NewFlowDefinitionBuilder starts building a FlowDefinition named id.
func NewFlowDefinitionBuilder(id string) *FlowDefinitionBuilder {
	return &FlowDefinitionBuilder{id: id}
}

// InitialStep sets the flow's starting step.
func (b *FlowDefinitionBuilder) InitialStep(id string) *FlowDefinitionBuilder {
	b.initialStep = id
	return b
}

// Step appends a SIMPLE step with a single unconditional transition to to.
func (b *FlowDefinitionBuilder) Step(id, transitionName, to string) *FlowDefinitionBuilder {
	return b.addStep(id, NavigationSimple, []Transition{{Name: transitionName, To: mustStepId(to)}})
}

// StepEndOfFlow appends a SIMPLE step whose single transition ends the flow.
func (b *FlowDefinitionBuilder) StepEndOfFlow(id, transitionName string) *FlowDefinitionBuilder {
	return b.addStep(id, NavigationSimple, []Transition{{Name: transitionName, EndOfFlow: true}})
}

// Complex appends a COMPLEX step navigated by the given transitions,
// evaluated in order unless the payload carries an explicit __targetStep.
func (b *FlowDefinitionBuilder) Complex(id string, transitions ...Transition) *FlowDefinitionBuilder {
	return b.addStep(id, NavigationComplex, transitions)
}

func (b *FlowDefinitionBuilder) addStep(id string, nav NavigationType, transitions []Transition) *FlowDefinitionBuilder {
	if b.err != nil {
		return b
	}
	stepID, err := NewStepId(id)
	if err != nil {
		b.err = err
		return b
	}
	b.steps = append(b.steps, StepDefinition{ID: stepID, NavigationType: nav, Transitions: transitions})
	return b
}

// Build finalizes and validates the FlowDefinition.
func (b *FlowDefinitionBuilder) Build() (FlowDefinition, error) {
	if b.err != nil {
		return FlowDefinition{}, b.err
	}
	id, err := NewFlowId(b.id)
	if err != nil {
		return FlowDefinition{}, err
	}
	initial, err := NewStepId(b.initialStep)
	if err != nil {
		return FlowDefinition{}, err
	}
	return NewFlowDefinition(id, initial, b.steps)
}

func mustStepId(v string) StepId {
	id, err := NewStepId(v)
	if err != nil {
		return StepId{}
	}
	return id
}
