package core

import (
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/netexpanse/internal/eventlog"
	"github.com/signalsfoundry/netexpanse/internal/simrand"
	"github.com/signalsfoundry/netexpanse/kb"
	"github.com/signalsfoundry/netexpanse/model"
)

const (
	// DefaultTickInterval is the fixed scheduler period.
	DefaultTickInterval = 200 * time.Millisecond
	// BaseHackingExp is the experience one resolved operation is worth
	// before the per-kind multiplier.
	BaseHackingExp = 5.0

	factionRepShare  = 0.1
	invitationChance = 0.1
)

// OperationSimulator advances running player operations by one tick.
type OperationSimulator struct {
	tick    time.Duration
	rng     simrand.Rand
	events  *eventlog.Factory
	metrics MetricsRecorder
}

// NewOperationSimulator builds a simulator that assumes tick elapses per step.
func NewOperationSimulator(tick time.Duration, rng simrand.Rand, events *eventlog.Factory, metrics MetricsRecorder) *OperationSimulator {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	if events == nil {
		events = eventlog.NewFactory(nil, nil)
	}
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &OperationSimulator{tick: tick, rng: rng, events: events, metrics: metrics}
}

// OperationResult is what one step produces.
type OperationResult struct {
	Operations []model.RunningOperation
	Player     model.PlayerProgress
	Events     []model.LogEvent
}

// Step advances every operation and applies the effects of those that
// complete a loop to g, which must be the tick's private snapshot.
// Operations whose target no longer exists are dropped.
func (s *OperationSimulator) Step(g *kb.Graph, ops []model.RunningOperation, player model.PlayerProgress) OperationResult {
	res := OperationResult{
		Operations: make([]model.RunningOperation, 0, len(ops)),
		Player:     player.Clone(),
	}

	for _, op := range ops {
		if op.Duration > 0 {
			op.Progress += 100 * float64(s.tick) / float64(op.Duration)
		} else {
			op.Progress = 100
		}
		if op.Progress < 100 {
			res.Operations = append(res.Operations, op)
			continue
		}

		target := g.Mutable(op.Target)
		if target == nil {
			s.metrics.OperationDropped()
			continue
		}

		gain := s.apply(target, op.Kind, &res.Player)
		res.Events = append(res.Events, s.reward(&res.Player, gain)...)
		s.metrics.OperationResolved(op.Kind)

		op.Progress = 0
		res.Operations = append(res.Operations, op)
	}
	return res
}

// apply mutates target for kind and returns the experience earned.
func (s *OperationSimulator) apply(target *model.ServerNode, kind model.OperationKind, player *model.PlayerProgress) float64 {
	exp := BaseHackingExp
	switch kind {
	case model.OpWeaken:
		target.LowerSecurity(2)
		exp *= 1.5
	case model.OpGrow:
		target.MoneyAvailable = min(target.MaxMoney, target.MoneyAvailable*1.05)
		target.RaiseSecurity(0.5)
	case model.OpSiphon:
		stolen := Siphon(target)
		player.Credits += stolen
		s.metrics.CreditsStolen(ActorPlayer, stolen)
		exp *= 2
	}
	return exp
}

// Siphon drains the share of money that the target's security lets
// through and returns the amount taken.
func Siphon(target *model.ServerNode) float64 {
	share := max(0, (100-target.SecurityLevel)/200)
	stolen := math.Floor(target.MoneyAvailable * share)
	target.MoneyAvailable -= stolen
	target.RaiseSecurity(1)
	return stolen
}

// reward credits exp to the player and its factions and reports level ups.
func (s *OperationSimulator) reward(player *model.PlayerProgress, exp float64) []model.LogEvent {
	player.Exp += exp
	for _, f := range player.Factions {
		player.Reputation[f] += exp * factionRepShare
	}

	skill := model.SkillForExp(player.Exp)
	levelled := skill > player.HackingSkill
	player.HackingSkill = skill
	if !levelled {
		return nil
	}

	events := []model.LogEvent{
		s.events.New(model.LogSuccess, fmt.Sprintf("Level Up! Hacking Skill: %d", skill)),
	}
	for _, faction := range model.Factions {
		if player.HasFaction(faction) {
			continue
		}
		if simrand.Chance(s.rng, invitationChance) {
			events = append(events, s.events.Chat(faction,
				fmt.Sprintf("We have noticed your skills. Type 'join %s' to align with us.", faction)))
		}
	}
	return events
}
