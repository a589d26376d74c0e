package core

import (
	"math"

	"github.com/signalsfoundry/netexpanse/kb"
	"github.com/signalsfoundry/netexpanse/model"
)

// explorerReach is how close an unvisited host must be for an explorer to
// head there instead of scoring targets.
const explorerReach = 3

// Utility scores s as a hack target for agent standing distance hops away.
// Hosts the agent is not skilled enough for, or that hold no money, score 0.
func Utility(agent *model.RivalAgent, s *model.ServerNode, distance int) float64 {
	if agent.HackingSkill < s.SecurityLevel/3 || s.MoneyAvailable <= 0 {
		return 0
	}
	money := s.MoneyAvailable
	security := max(1, s.SecurityLevel)

	var score float64
	switch agent.Strategy {
	case model.StrategyAggressive:
		score = math.Pow(money, 1.2) / math.Pow(security, 0.8)
	case model.StrategyStealth:
		score = money / math.Pow(security, 1.5)
	case model.StrategyExplorer:
		score = money / security
	}
	return score * math.Pow(0.9, float64(distance))
}

// decide picks the next action for an idle agent.
func (e *RivalEngine) decide(g *kb.Graph, agent *model.RivalAgent) {
	dist := distanceTable(Distances(g, agent.CurrentHost, e.distanceCap))
	known := knownServers(g, agent)

	if agent.Strategy == model.StrategyExplorer && e.exploreNearby(g, agent, known, dist) {
		return
	}

	best, bestScore := "", -1.0
	for _, s := range known {
		score := Utility(agent, s, dist.to(s.Hostname))
		if score > bestScore {
			best, bestScore = s.Hostname, score
		}
	}

	if bestScore > 0 {
		if best == agent.CurrentHost {
			agent.ActionState = model.StateHacking
			agent.ActionTimer = hackTicks(agent.Strategy)
			return
		}
		if hop, ok := ShortestNextHop(g, agent.CurrentHost, best); ok {
			moveTo(agent, hop)
			return
		}
		agent.ActionState = model.StateAnalyzing
		agent.ActionTimer = analyzeTicks
		return
	}

	e.wander(g, agent, known)
}

// exploreNearby moves an explorer toward the closest unvisited known host
// when one lies within explorerReach. It reports whether a move was made.
func (e *RivalEngine) exploreNearby(g *kb.Graph, agent *model.RivalAgent, known []*model.ServerNode, dist distanceTable) bool {
	target, minDist := "", Unreachable
	for _, s := range known {
		if agent.VisitedNodes.Has(s.Hostname) {
			continue
		}
		if d := dist.to(s.Hostname); d < minDist {
			target, minDist = s.Hostname, d
		}
	}
	if target == "" || minDist > explorerReach || target == agent.CurrentHost {
		return false
	}
	hop, ok := ShortestNextHop(g, agent.CurrentHost, target)
	if !ok {
		return false
	}
	moveTo(agent, hop)
	return true
}

// wander heads for a random unvisited known host, or failing that a random
// neighbour. An agent with no neighbours stays idle.
func (e *RivalEngine) wander(g *kb.Graph, agent *model.RivalAgent, known []*model.ServerNode) {
	var unvisited []string
	for _, s := range known {
		if !agent.VisitedNodes.Has(s.Hostname) {
			unvisited = append(unvisited, s.Hostname)
		}
	}
	if len(unvisited) > 0 {
		target := unvisited[e.rng.IntN(len(unvisited))]
		if hop, ok := ShortestNextHop(g, agent.CurrentHost, target); ok {
			moveTo(agent, hop)
			return
		}
	}

	neighbors := g.Neighbors(agent.CurrentHost)
	if len(neighbors) == 0 {
		return
	}
	moveTo(agent, neighbors[e.rng.IntN(len(neighbors))])
}

// knownServers resolves the agent's knowledge base against g in
// discovery order, skipping hosts that no longer exist.
func knownServers(g *kb.Graph, agent *model.RivalAgent) []*model.ServerNode {
	known := make([]*model.ServerNode, 0, agent.KnowledgeBase.Len())
	for _, h := range agent.KnowledgeBase.Items() {
		if s := g.Get(h); s != nil {
			known = append(known, s)
		}
	}
	return known
}

func moveTo(agent *model.RivalAgent, hop string) {
	agent.ActionState = model.StateMoving
	agent.TargetHost = hop
	agent.ActionTimer = moveTicks
}

func hackTicks(s model.Strategy) int {
	if s == model.StrategyAggressive {
		return aggressiveHackTicks
	}
	return deliberateHackTicks
}
