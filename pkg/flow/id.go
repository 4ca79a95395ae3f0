package flow

import (
	"context"
	"encoding/json"
	"strings"
)

// FlowId identifies a flow definition. It is immutable and compares by
// value; use NewFlowId to validate and construct one.
type FlowId struct {
	value string
}

// NewFlowId validates value and returns a FlowId.
func NewFlowId(value string) (FlowId, error) {
	if isBlank(value) {
		return FlowId{}, NewArgumentError("flowId", "cannot be null or blank")
	}
	return FlowId{value: value}, nil
}

// Value returns the underlying identifier string.
func (f FlowId) Value() string { return f.value }

func (f FlowId) String() string { return f.value }

// StepId identifies a step within a flow definition. Immutable, compares by
// value.
type StepId struct {
	value string
}

// NewStepId validates value and returns a StepId.
func NewStepId(value string) (StepId, error) {
	if isBlank(value) {
		return StepId{}, NewArgumentError("stepId", "cannot be null or blank")
	}
	return StepId{value: value}, nil
}

// Value returns the underlying identifier string.
func (s StepId) Value() string { return s.value }

func (s StepId) String() string { return s.value }

// MarshalJSON encodes a StepId as its bare string value.
func (s StepId) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.value)
}

// UnmarshalJSON decodes a StepId from a bare JSON string.
func (s *StepId) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	id, err := NewStepId(v)
	if err != nil {
		return err
	}
	*s = id
	return nil
}

// FlowKey is the composite key that uniquely identifies a running flow
// instance: the business process name, the owner's identity, and the
// instance identifier.
type FlowKey struct {
	// FlowName is the name of the business process (e.g. "moneyTransfer").
	// It doubles as the definition name resolved through a
	// DefinitionProvider.
	FlowName string
	// OwnerId is the identifier of the flow's owner. Empty for anonymous
	// flows.
	OwnerId string
	// InstanceId is the unique identifier for this specific flow instance.
	InstanceId string
}

// NewFlowKey validates and constructs a FlowKey. OwnerId may be blank for
// anonymous flows.
func NewFlowKey(flowName, ownerId, instanceId string) (FlowKey, error) {
	if isBlank(flowName) {
		return FlowKey{}, NewArgumentError("flowName", "cannot be null or blank")
	}
	if isBlank(instanceId) {
		return FlowKey{}, NewArgumentError("instanceId", "cannot be null or blank")
	}
	return FlowKey{FlowName: flowName, OwnerId: ownerId, InstanceId: instanceId}, nil
}

// DefinitionName is an alias for FlowName, used when resolving the
// FlowDefinition through a DefinitionProvider.
func (k FlowKey) DefinitionName() string { return k.FlowName }

// StorageKey renders the colon-delimited storage key:
// "<flowName>:<ownerId|anonymous>:<instanceId>".
func (k FlowKey) StorageKey() string {
	owner := k.OwnerId
	if isBlank(owner) {
		owner = "anonymous"
	}
	return k.FlowName + ":" + owner + ":" + k.InstanceId
}

func (k FlowKey) String() string { return k.StorageKey() }

// FlowContext carries the instance identity and partitioning information
// used by the store layer for multi-tenant bulk operations.
type FlowContext struct {
	// InstanceId is the flow instance identifier.
	InstanceId string
	// OwnerId optionally identifies the owner (customer, user).
	OwnerId string
	// PartitionKey is the key used for partition-scoped bulk operations
	// (tenant, shard, region). When empty, the effective partition falls
	// back to OwnerId.
	PartitionKey string
}

// NewFlowContext validates and constructs a FlowContext. An empty
// partitionKey is stored as given; EffectivePartitionKey then falls back to
// OwnerId.
func NewFlowContext(instanceId, ownerId, partitionKey string) (FlowContext, error) {
	if isBlank(instanceId) {
		return FlowContext{}, NewArgumentError("instanceId", "cannot be null or blank")
	}
	return FlowContext{InstanceId: instanceId, OwnerId: ownerId, PartitionKey: partitionKey}, nil
}

// AnonymousContext creates a FlowContext for anonymous flows: no owner, no
// partition.
func AnonymousContext(instanceId string) (FlowContext, error) {
	return NewFlowContext(instanceId, "", "")
}

// ContextForUser creates a FlowContext partitioned by the given user id.
func ContextForUser(instanceId, userId string) (FlowContext, error) {
	return NewFlowContext(instanceId, userId, userId)
}

// ContextWithPartition creates a FlowContext with an owner distinct from the
// partition key (e.g. a shared partition across several owners).
func ContextWithPartition(instanceId, ownerId, partitionKey string) (FlowContext, error) {
	return NewFlowContext(instanceId, ownerId, partitionKey)
}

// EffectivePartitionKey returns PartitionKey, falling back to OwnerId when
// PartitionKey is blank.
func (c FlowContext) EffectivePartitionKey() string {
	if !isBlank(c.PartitionKey) {
		return c.PartitionKey
	}
	return c.OwnerId
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

type flowContextKey struct{}

// WithFlowContext attaches fc to ctx, so it can travel alongside the
// request all the way down to the engine without threading an extra
// parameter through every call.
func WithFlowContext(ctx context.Context, fc FlowContext) context.Context {
	return context.WithValue(ctx, flowContextKey{}, fc)
}

// FlowContextFromContext retrieves a FlowContext previously attached with
// WithFlowContext.
func FlowContextFromContext(ctx context.Context) (FlowContext, bool) {
	fc, ok := ctx.Value(flowContextKey{}).(FlowContext)
	return fc, ok
}

// PartitionFromRequestContext is a PartitionProvider that reads the
// effective partition key off a FlowContext attached to ctx via
// WithFlowContext, falling back to the engine default (FlowKey.OwnerId)
// when none is present.
func PartitionFromRequestContext(ctx context.Context, _ FlowKey) (string, bool) {
	fc, ok := FlowContextFromContext(ctx)
	if !ok {
		return "", false
	}
	return fc.EffectivePartitionKey(), true
}
