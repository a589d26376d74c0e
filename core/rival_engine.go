package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/netexpanse/internal/eventlog"
	"github.com/signalsfoundry/netexpanse/internal/simrand"
	"github.com/signalsfoundry/netexpanse/kb"
	"github.com/signalsfoundry/netexpanse/model"
)

const (
	toggleChance = 0.002
	heistChance  = 0.05
	chatChance   = 0.02

	heistThreshold = 500_000
	maxStealShare  = 0.2

	moveTicks           = 5
	analyzeTicks        = 5
	aggressiveHackTicks = 15
	deliberateHackTicks = 25
)

// RivalEngine runs the rival agents' state machines, one tick at a time.
type RivalEngine struct {
	rng         simrand.Rand
	events      *eventlog.Factory
	metrics     MetricsRecorder
	distanceCap int
}

// NewRivalEngine builds an engine drawing decisions from rng.
func NewRivalEngine(rng simrand.Rand, events *eventlog.Factory, metrics MetricsRecorder) *RivalEngine {
	if events == nil {
		events = eventlog.NewFactory(nil, nil)
	}
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &RivalEngine{rng: rng, events: events, metrics: metrics, distanceCap: DefaultDistanceCap}
}

// RivalResult is the roster after one tick plus the single log line, if
// any, the rivals produced.
type RivalResult struct {
	Agents []model.RivalAgent
	Event  *model.LogEvent
}

// Step processes agents in order against g. Each agent observes the
// mutations of the agents before it. The last mechanical log wins; if no
// agent produced one an ambient chat line may be emitted instead.
func (e *RivalEngine) Step(g *kb.Graph, agents []model.RivalAgent) RivalResult {
	res := RivalResult{Agents: make([]model.RivalAgent, len(agents))}
	for i := range agents {
		agent := agents[i].Clone()
		if ev := e.stepAgent(g, &agent); ev != nil {
			res.Event = ev
		}
		res.Agents[i] = agent
	}
	if res.Event == nil {
		res.Event = e.ambientChat(res.Agents)
	}
	return res
}

func (e *RivalEngine) stepAgent(g *kb.Graph, agent *model.RivalAgent) *model.LogEvent {
	if simrand.Chance(e.rng, toggleChance) {
		agent.IsOnline = !agent.IsOnline
		agent.ResetPlan()
		return nil
	}
	if !agent.IsOnline {
		return nil
	}

	if !g.Has(agent.CurrentHost) {
		agent.CurrentHost = model.HomeHostname
		agent.ResetPlan()
		if !g.Has(agent.CurrentHost) {
			return nil
		}
	}

	observe(g, agent)

	if agent.ActionTimer > 0 {
		agent.ActionTimer--
		if agent.ActionTimer > 0 {
			return nil
		}
		var ev *model.LogEvent
		switch agent.ActionState {
		case model.StateHacking:
			ev = e.attack(g, agent)
		case model.StateMoving:
			if agent.TargetHost != "" && g.Has(agent.TargetHost) {
				agent.CurrentHost = agent.TargetHost
			}
		case model.StateIdle, model.StateAnalyzing:
		}
		agent.ResetPlan()
		return ev
	}

	e.decide(g, agent)
	return nil
}

// observe records the current host and its neighbours.
func observe(g *kb.Graph, agent *model.RivalAgent) {
	agent.KnowledgeBase.Add(agent.CurrentHost)
	agent.VisitedNodes.Add(agent.CurrentHost)
	for _, n := range g.Neighbors(agent.CurrentHost) {
		agent.KnowledgeBase.Add(n)
	}
}

// attack resolves a finished hack against the agent's current host, reading
// the node as already mutated earlier in this tick.
func (e *RivalEngine) attack(g *kb.Graph, agent *model.RivalAgent) *model.LogEvent {
	target := g.Get(agent.CurrentHost)
	if target == nil || target.MoneyAvailable <= 0 {
		return nil
	}
	share := min(maxStealShare, agent.HackingSkill*0.5/100)
	stolen := math.Floor(target.MoneyAvailable * share)
	if stolen <= 0 {
		return nil
	}

	oldSecurity := target.SecurityLevel
	node := g.Mutable(agent.CurrentHost)
	node.MoneyAvailable -= stolen
	node.RaiseSecurity(0.2)

	agent.Reputation += max(1, math.Floor(oldSecurity/2))
	agent.HackingSkill += 0.1
	e.metrics.RivalHack(agent.Strategy)
	e.metrics.CreditsStolen(ActorRival, stolen)

	if stolen > heistThreshold && simrand.Chance(e.rng, heistChance) {
		ev := e.events.New(model.LogWarn, fmt.Sprintf(
			"Network Alert: Large data exfiltration detected on %s by %s (%s).",
			agent.CurrentHost, agent.Name, agent.Strategy))
		return &ev
	}
	return nil
}

func (e *RivalEngine) ambientChat(agents []model.RivalAgent) *model.LogEvent {
	if !simrand.Chance(e.rng, chatChance) {
		return nil
	}
	online := make([]*model.RivalAgent, 0, len(agents))
	for i := range agents {
		if agents[i].IsOnline {
			online = append(online, &agents[i])
		}
	}
	if len(online) == 0 {
		return nil
	}
	actor := online[e.rng.IntN(len(online))]
	pool := chatPool(actor.Faction, actor.Strategy)
	ev := e.events.Chat(actor.Name, pool[e.rng.IntN(len(pool))])
	return &ev
}
