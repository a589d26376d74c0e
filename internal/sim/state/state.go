// Package state holds the authoritative game world: one writer per tick,
// read-only snapshots for everyone else, and the player command handlers.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/netexpanse/core"
	"github.com/signalsfoundry/netexpanse/internal/eventlog"
	"github.com/signalsfoundry/netexpanse/internal/logging"
	"github.com/signalsfoundry/netexpanse/internal/sim/worldgen"
	"github.com/signalsfoundry/netexpanse/internal/simrand"
	"github.com/signalsfoundry/netexpanse/model"
)

// WorldState guards the committed world. Ticks and player commands take
// the write lock, so commands always land between ticks.
type WorldState struct {
	mu sync.RWMutex

	world core.World

	// logs is the bounded terminal history.
	logs   *eventlog.Buffer
	events *eventlog.Factory

	gen *worldgen.Generator
	rng simrand.Rand
	now func() time.Time

	log     logging.Logger
	metrics MetricsRecorder

	subsMu      sync.Mutex
	subscribers []func([]model.LogEvent)

	history []model.LogEvent
}

// MetricsRecorder receives world-growth events.
type MetricsRecorder interface {
	WorldExpanded(trigger string)
}

// Expansion triggers.
const (
	TriggerGateway    = "gateway"
	TriggerHiddenNode = "hidden_node"
)

// Ticker advances a world by one tick.
type Ticker interface {
	Tick(ctx context.Context, w core.World) (core.World, []model.LogEvent)
}

// Option customises WorldState construction.
type Option func(*WorldState)

// WithRand sets the random source used by commands. Share it with the
// engine to keep a whole run reproducible from one seed.
func WithRand(r simrand.Rand) Option {
	return func(s *WorldState) {
		s.rng = r
	}
}

// WithEventFactory sets the factory used to build command log events.
func WithEventFactory(f *eventlog.Factory) Option {
	return func(s *WorldState) {
		s.events = f
	}
}

// WithClock sets the clock used to stamp operation start times.
func WithClock(now func() time.Time) Option {
	return func(s *WorldState) {
		s.now = now
	}
}

// WithMaxLogs bounds the log history.
func WithMaxLogs(n int) Option {
	return func(s *WorldState) {
		s.logs = eventlog.NewBuffer(n)
	}
}

// WithHistory seeds the log history, e.g. from a save.
func WithHistory(events []model.LogEvent) Option {
	return func(s *WorldState) {
		s.history = events
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *WorldState) {
		s.metrics = m
	}
}

// NewWorldState takes ownership of world.
func NewWorldState(world core.World, log logging.Logger, opts ...Option) *WorldState {
	if log == nil {
		log = logging.Noop()
	}
	s := &WorldState{
		world: world,
		log:   log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.rng == nil {
		s.rng = simrand.New(0)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.events == nil {
		s.events = eventlog.NewFactory(nil, nil)
	}
	if s.logs == nil {
		s.logs = eventlog.NewBuffer(eventlog.DefaultMaxLogs)
	}
	s.logs.Append(s.history...)
	s.history = nil
	if s.world.NextPID < 1 {
		s.world.NextPID = 1
	}
	s.gen = worldgen.New(s.rng)
	return s
}

// FreshWorld builds a new game: home plus public-relay, a level-1 player
// and the rival roster.
func FreshWorld(rng simrand.Rand) core.World {
	graph := worldgen.New(rng).InitializeWorld()
	return core.World{
		Servers: graph,
		Player:  model.NewPlayerProgress(model.Cities[0]),
		Rivals:  core.InitializeRoster(graph, rng),
		NextPID: 1,
	}
}

// Snapshot returns a consistent read-only view of the committed world. The
// graph is a copy-on-write snapshot, so later ticks never show through.
func (s *WorldState) Snapshot() core.World {
	// Write lock: taking a graph snapshot resets write ownership on the
	// committed graph.
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.world
	w.Servers = s.world.Servers.Snapshot()
	w.Operations = append([]model.RunningOperation(nil), s.world.Operations...)
	w.Player = s.world.Player.Clone()
	w.Rivals = make([]model.RivalAgent, len(s.world.Rivals))
	for i, r := range s.world.Rivals {
		w.Rivals[i] = r.Clone()
	}
	return w
}

// Server returns a copy of the named server.
func (s *WorldState) Server(hostname string) (*model.ServerNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.world.Servers.Get(hostname)
	if n == nil {
		return nil, false
	}
	return n.Clone(), true
}

// Player returns a copy of the player's progress.
func (s *WorldState) Player() model.PlayerProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world.Player.Clone()
}

// Tick is the number of committed ticks.
func (s *WorldState) Tick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world.Tick
}

// Logs returns up to n of the newest log events; n <= 0 returns all.
func (s *WorldState) Logs(n int) []model.LogEvent {
	return s.logs.Recent(n)
}

// Subscribe registers fn to receive every batch of committed log events,
// from ticks and commands alike. fn runs outside the state lock.
func (s *WorldState) Subscribe(fn func([]model.LogEvent)) {
	if fn == nil {
		return
	}
	s.subsMu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.subsMu.Unlock()
}

// RunTick advances the committed world through t and publishes the events
// it produced.
func (s *WorldState) RunTick(ctx context.Context, t Ticker) []model.LogEvent {
	s.mu.Lock()
	next, events := t.Tick(ctx, s.world)
	s.world = next
	s.logs.Append(events...)
	s.mu.Unlock()

	s.publish(events)
	return events
}

// Restore replaces the committed world, e.g. after loading a save.
func (s *WorldState) Restore(ctx context.Context, world core.World) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if world.NextPID < 1 {
		world.NextPID = 1
	}
	s.world = world
	logging.WithTickLogger(ctx, s.log).Info(ctx, "world restored",
		logging.Int("servers", world.Servers.Len()),
		logging.Int("operations", len(world.Operations)),
		logging.Int("rivals", len(world.Rivals)),
	)
}

func (s *WorldState) publish(events []model.LogEvent) {
	if len(events) == 0 {
		return
	}
	s.subsMu.Lock()
	subs := append([]func([]model.LogEvent){}, s.subscribers...)
	s.subsMu.Unlock()
	for _, fn := range subs {
		fn(events)
	}
}
