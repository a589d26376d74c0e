package core

import (
	"github.com/signalsfoundry/netexpanse/internal/simrand"
	"github.com/signalsfoundry/netexpanse/kb"
	"github.com/signalsfoundry/netexpanse/model"
)

// RivalNames is the fixed roster, in processing order.
var RivalNames = []string{
	"Ghost", "Viper", "Null", "ZeroCool", "AcidBurn", "Cereal",
	"Morpheus", "Trinity", "Neo", "Case", "Molly",
}

const rivalOnlineChance = 0.7

// InitializeRoster creates the rival roster. Every agent starts on the same
// randomly chosen host of g (home when g is empty), with strategies cycling
// AGGRESSIVE, STEALTH, EXPLORER.
func InitializeRoster(g *kb.Graph, rng simrand.Rand) []model.RivalAgent {
	start := model.HomeHostname
	if hosts := g.Hostnames(); len(hosts) > 0 {
		start = hosts[rng.IntN(len(hosts))]
	}

	strategies := []model.Strategy{
		model.StrategyAggressive, model.StrategyStealth, model.StrategyExplorer,
	}
	roster := make([]model.RivalAgent, 0, len(RivalNames))
	for i, name := range RivalNames {
		roster = append(roster, model.RivalAgent{
			Name:          name,
			Faction:       model.Factions[i%len(model.Factions)],
			Strategy:      strategies[i%len(strategies)],
			Reputation:    float64(simrand.IntRange(rng, 500, 2499)),
			HackingSkill:  float64(simrand.IntRange(rng, 10, 59)),
			IsOnline:      simrand.Chance(rng, rivalOnlineChance),
			CurrentHost:   start,
			ActionState:   model.StateIdle,
			KnowledgeBase: model.NewHostSet(model.HomeHostname, model.PublicRelayHostname),
			VisitedNodes:  model.NewHostSet(start),
		})
	}
	return roster
}
