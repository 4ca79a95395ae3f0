package flow

import "time"

// FlowSnapshot is the point-in-time runtime state of a flow instance,
// suitable for persistence and reconstruction via FlowStateFromSnapshot.
type FlowSnapshot struct {
	CurrentStep StepId         `json:"currentStep"`
	Completed   bool           `json:"completed"`
	Attributes  map[string]any `json:"attributes"`
}

// FlowStatus classifies the lifecycle stage of a persisted flow instance.
// The vocabulary is open-ended (implementations may add their own values,
// e.g. a FAILED state for external failure tracking); this module produces
// only the three below.
type FlowStatus string

const (
	// FlowStatusNew marks the aggregate created by the first persist of a
	// flow instance (mirrors the original implementation's
	// FlowMeta.createNew default).
	FlowStatusNew FlowStatus = "NEW"
	// FlowStatusRunning marks an aggregate that has been persisted at
	// least once past its initial creation and has not completed.
	FlowStatusRunning FlowStatus = "RUNNING"
	// FlowStatusCompleted marks an aggregate whose current snapshot has
	// Completed set.
	FlowStatusCompleted FlowStatus = "COMPLETED"
)

// FlowMeta carries the bookkeeping fields that travel alongside a
// FlowSnapshot: identity, status, current step, timestamps, and a version
// counter bumped on every persist so repeated writes are observable (spec
// reserves Version "for implementations that wish to add one"). The engine
// bumps it through FlowAggregate.AppendHistory; the stores save Version as
// given.
type FlowMeta struct {
	Key FlowKey `json:"key"`
	// PartitionKey is the effective partition this aggregate is filed
	// under for InvalidateByPartition/ListActiveFlows. Defaults to
	// Key.OwnerId when no explicit partition was supplied at persist
	// time, matching FlowContext.EffectivePartitionKey.
	PartitionKey string `json:"partitionKey,omitempty"`
	// Status is the lifecycle stage of this aggregate; see FlowStatus.
	Status FlowStatus `json:"status"`
	// Step mirrors CurrentSnapshot.CurrentStep.Value() at the time this
	// meta was written, so a store can report a flow's position without
	// decoding the whole snapshot.
	Step      string    `json:"step"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int       `json:"version"`
}

// NewFlowMeta creates the initial FlowMeta for a flow being started at now,
// filed under partitionKey and positioned at step.
func NewFlowMeta(key FlowKey, partitionKey, step string, now time.Time) FlowMeta {
	return FlowMeta{
		Key:          key,
		PartitionKey: partitionKey,
		Status:       FlowStatusNew,
		Step:         step,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
}

// NextVersion returns a copy of m with UpdatedAt set to now, Version
// incremented, Step set to step, and Status advanced to RUNNING or
// COMPLETED depending on completed. CreatedAt is left untouched. Used when
// re-persisting an existing aggregate.
func (m FlowMeta) NextVersion(now time.Time, step string, completed bool) FlowMeta {
	next := m
	next.UpdatedAt = now
	next.Version = m.Version + 1
	next.Step = step
	if completed {
		next.Status = FlowStatusCompleted
	} else {
		next.Status = FlowStatusRunning
	}
	return next
}

// DefaultMaxHistory bounds the number of prior snapshots
// FlowAggregate.AppendHistory retains when no explicit limit is configured.
const DefaultMaxHistory = 10

// FlowAggregate is the unified persisted shape for a flow instance: its
// bookkeeping metadata, its current snapshot, and a bounded trail of
// previous snapshots. This supersedes the split meta/snapshot store design
// of the original implementation, which let the two drift out of sync.
type FlowAggregate struct {
	Meta            FlowMeta       `json:"meta"`
	CurrentSnapshot FlowSnapshot   `json:"currentSnapshot"`
	SnapshotHistory []FlowSnapshot `json:"snapshotHistory,omitempty"`
}

// NewFlowAggregate creates the aggregate for a flow instance that has just
// been started.
func NewFlowAggregate(key FlowKey, partitionKey string, snapshot FlowSnapshot, now time.Time) FlowAggregate {
	return FlowAggregate{
		Meta:            NewFlowMeta(key, partitionKey, snapshot.CurrentStep.Value(), now),
		CurrentSnapshot: snapshot,
	}
}

// AppendHistory returns a copy of a with its previous CurrentSnapshot pushed
// onto the history trail and next installed as CurrentSnapshot, evicting
// the oldest history entries beyond maxSize, and Meta advanced through
// NextVersion. maxSize <= 0 means DefaultMaxHistory.
func (a FlowAggregate) AppendHistory(next FlowSnapshot, now time.Time, maxSize int) FlowAggregate {
	if maxSize <= 0 {
		maxSize = DefaultMaxHistory
	}
	history := append(append([]FlowSnapshot{}, a.SnapshotHistory...), a.CurrentSnapshot)
	if len(history) > maxSize {
		history = history[len(history)-maxSize:]
	}
	return FlowAggregate{
		Meta:            a.Meta.NextVersion(now, next.CurrentStep.Value(), next.Completed),
		CurrentSnapshot: next,
		SnapshotHistory: history,
	}
}
