package flow

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Observer receives callbacks from the engine for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay preview/persist calls.
type Observer interface {
	// OnPreviewStart is called before a start preview is evaluated.
	OnPreviewStart(ctx context.Context, key FlowKey)

	// OnPreviewAdvance is called before an advance preview is evaluated,
	// with the step the flow was on before advancing.
	OnPreviewAdvance(ctx context.Context, key FlowKey, step StepId)

	// OnPersist is called after a preview result has been written to the
	// store, with the resulting current step and completion flag.
	OnPersist(ctx context.Context, key FlowKey, step StepId, completed bool)

	// OnEngineError is called whenever an engine operation returns an
	// error, before the error is returned to the caller.
	OnEngineError(ctx context.Context, key FlowKey, err error)
}

// NoopObserver is an Observer that does nothing. It is the default when no
// observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnPreviewStart(ctx context.Context, key FlowKey)                       {}
func (NoopObserver) OnPreviewAdvance(ctx context.Context, key FlowKey, step StepId)        {}
func (NoopObserver) OnPersist(ctx context.Context, key FlowKey, step StepId, done bool)    {}
func (NoopObserver) OnEngineError(ctx context.Context, key FlowKey, err error)             {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnPreviewStart(ctx context.Context, key FlowKey) {
	for _, o := range c.observers {
		o.OnPreviewStart(ctx, key)
	}
}

func (c *CompositeObserver) OnPreviewAdvance(ctx context.Context, key FlowKey, step StepId) {
	for _, o := range c.observers {
		o.OnPreviewAdvance(ctx, key, step)
	}
}

func (c *CompositeObserver) OnPersist(ctx context.Context, key FlowKey, step StepId, completed bool) {
	for _, o := range c.observers {
		o.OnPersist(ctx, key, step, completed)
	}
}

func (c *CompositeObserver) OnEngineError(ctx context.Context, key FlowKey, err error) {
	for _, o := range c.observers {
		o.OnEngineError(ctx, key, err)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs preview/persist lifecycle
// events using logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnPreviewStart(ctx context.Context, key FlowKey) {
	o.Logger.DebugContext(ctx, "preview_start",
		slog.String("flow", key.FlowName),
		slog.String("instance_id", key.InstanceId),
	)
}

func (o *LoggingObserver) OnPreviewAdvance(ctx context.Context, key FlowKey, step StepId) {
	o.Logger.DebugContext(ctx, "preview_advance",
		slog.String("flow", key.FlowName),
		slog.String("instance_id", key.InstanceId),
		slog.String("step", step.Value()),
	)
}

func (o *LoggingObserver) OnPersist(ctx context.Context, key FlowKey, step StepId, completed bool) {
	o.Logger.InfoContext(ctx, "persist",
		slog.String("flow", key.FlowName),
		slog.String("instance_id", key.InstanceId),
		slog.String("step", step.Value()),
		slog.Bool("completed", completed),
	)
}

func (o *LoggingObserver) OnEngineError(ctx context.Context, key FlowKey, err error) {
	o.Logger.ErrorContext(ctx, "engine_error",
		slog.String("flow", key.FlowName),
		slog.String("instance_id", key.InstanceId),
		slog.Any("error", err),
	)
}

// BasicMetrics collects simple engine counters. It implements Observer, and
// can be combined with LoggingObserver via NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	previewsStarted   atomic.Int64
	previewsAdvanced  atomic.Int64
	persists          atomic.Int64
	completions       atomic.Int64
	errors            atomic.Int64
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	PreviewsStarted  int64
	PreviewsAdvanced int64
	Persists         int64
	Completions      int64
	Errors           int64
}

func (m *BasicMetrics) OnPreviewStart(ctx context.Context, key FlowKey) {
	m.previewsStarted.Add(1)
}

func (m *BasicMetrics) OnPreviewAdvance(ctx context.Context, key FlowKey, step StepId) {
	m.previewsAdvanced.Add(1)
}

func (m *BasicMetrics) OnPersist(ctx context.Context, key FlowKey, step StepId, completed bool) {
	m.persists.Add(1)
	if completed {
		m.completions.Add(1)
	}
}

func (m *BasicMetrics) OnEngineError(ctx context.Context, key FlowKey, err error) {
	m.errors.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	return BasicMetricsSnapshot{
		PreviewsStarted:  m.previewsStarted.Load(),
		PreviewsAdvanced: m.previewsAdvanced.Load(),
		Persists:         m.persists.Load(),
		Completions:      m.completions.Load(),
		Errors:           m.errors.Load(),
	}
}
