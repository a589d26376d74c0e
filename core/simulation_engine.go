package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/netexpanse/internal/eventlog"
	"github.com/signalsfoundry/netexpanse/internal/simrand"
	"github.com/signalsfoundry/netexpanse/kb"
	"github.com/signalsfoundry/netexpanse/model"
)

const tracerName = "github.com/signalsfoundry/netexpanse/core"

// World is everything a tick reads and produces.
type World struct {
	Tick       uint64
	Servers    *kb.Graph
	Operations []model.RunningOperation
	Player     model.PlayerProgress
	Rivals     []model.RivalAgent
	// NextPID is the next process id to hand out.
	NextPID int
}

// Clone returns a deep copy sharing nothing with w.
func (w World) Clone() World {
	out := w
	if w.Servers != nil {
		out.Servers = w.Servers.Clone()
	}
	out.Operations = append([]model.RunningOperation(nil), w.Operations...)
	out.Player = w.Player.Clone()
	out.Rivals = make([]model.RivalAgent, len(w.Rivals))
	for i, r := range w.Rivals {
		out.Rivals[i] = r.Clone()
	}
	return out
}

// TickListener observes each committed tick.
type TickListener func(ctx context.Context, w World, events []model.LogEvent)

// Engine runs the tick pipeline: snapshot, operations, rivals.
type Engine struct {
	ops       *OperationSimulator
	rivals    *RivalEngine
	events    *eventlog.Factory
	metrics   MetricsRecorder
	tracer    trace.Tracer
	listeners []TickListener
}

type engineConfig struct {
	tick    time.Duration
	events  *eventlog.Factory
	metrics MetricsRecorder
	tracer  trace.Tracer
}

// EngineOption configures optional engine dependencies.
type EngineOption func(*engineConfig)

// WithTickInterval sets the simulated time that passes per tick.
func WithTickInterval(d time.Duration) EngineOption {
	return func(c *engineConfig) { c.tick = d }
}

// WithEventFactory shares an event factory with the caller so that ids and
// tick stamps stay in one sequence.
func WithEventFactory(f *eventlog.Factory) EngineOption {
	return func(c *engineConfig) { c.events = f }
}

// WithMetrics wires a metrics recorder.
func WithMetrics(m MetricsRecorder) EngineOption {
	return func(c *engineConfig) { c.metrics = m }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) EngineOption {
	return func(c *engineConfig) { c.tracer = t }
}

// NewEngine builds an engine drawing every random decision from rng.
func NewEngine(rng simrand.Rand, opts ...EngineOption) *Engine {
	cfg := engineConfig{tick: DefaultTickInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.events == nil {
		cfg.events = eventlog.NewFactory(nil, nil)
	}
	if cfg.metrics == nil {
		cfg.metrics = noopRecorder{}
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(tracerName)
	}
	return &Engine{
		ops:     NewOperationSimulator(cfg.tick, rng, cfg.events, cfg.metrics),
		rivals:  NewRivalEngine(rng, cfg.events, cfg.metrics),
		events:  cfg.events,
		metrics: cfg.metrics,
		tracer:  cfg.tracer,
	}
}

// RegisterTickListener adds fn to the listeners called after every tick.
func (e *Engine) RegisterTickListener(fn TickListener) {
	e.listeners = append(e.listeners, fn)
}

// Tick advances w by one tick and returns the new world and the log events
// produced. w.Servers is not modified; the returned world carries a
// copy-on-write snapshot of it. The operation stage runs to completion
// before the rival stage starts, and both write the same snapshot.
func (e *Engine) Tick(ctx context.Context, w World) (World, []model.LogEvent) {
	start := time.Now()
	tick := w.Tick + 1

	ctx, span := e.tracer.Start(ctx, "sim.tick", trace.WithAttributes(attribute.Int64("sim.tick", int64(tick))))
	defer span.End()

	e.events.SetTick(tick)
	graph := w.Servers.Snapshot()

	_, opSpan := e.tracer.Start(ctx, "sim.operations")
	opRes := e.ops.Step(graph, w.Operations, w.Player)
	opSpan.SetAttributes(attribute.Int("sim.operations.live", len(opRes.Operations)))
	opSpan.End()

	_, rivalSpan := e.tracer.Start(ctx, "sim.rivals")
	rivalRes := e.rivals.Step(graph, w.Rivals)
	rivalSpan.SetAttributes(attribute.Int("sim.rivals", len(rivalRes.Agents)))
	rivalSpan.End()

	next := World{
		Tick:       tick,
		Servers:    graph,
		Operations: opRes.Operations,
		Player:     opRes.Player,
		Rivals:     rivalRes.Agents,
		NextPID:    w.NextPID,
	}
	events := opRes.Events
	if rivalRes.Event != nil {
		events = append(events, *rivalRes.Event)
	}
	span.SetAttributes(attribute.Int("sim.events", len(events)))

	e.metrics.SetWorldCounts(graph.Len(), len(next.Operations), next.Rivals)
	e.metrics.ObserveTick(time.Since(start))

	for _, fn := range e.listeners {
		fn(ctx, next, events)
	}
	return next, events
}
