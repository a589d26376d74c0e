package core

import (
	"math"
	"strings"
	"testing"

	"github.com/signalsfoundry/netexpanse/internal/simrand"
	"github.com/signalsfoundry/netexpanse/kb"
	"github.com/signalsfoundry/netexpanse/model"
)

// chain links the given nodes in order: n0 - n1 - n2 ...
func chain(nodes ...*model.ServerNode) *kb.Graph {
	g := kb.NewGraph()
	for i, n := range nodes {
		g.Upsert(n)
		if i > 0 {
			_ = g.Connect(nodes[i-1].Hostname, n.Hostname)
		}
	}
	return g
}

func host(name string, security, money float64) *model.ServerNode {
	return &model.ServerNode{
		Hostname:       name,
		SecurityLevel:  security,
		MinSecurity:    min(security, 1),
		MoneyAvailable: money,
		MaxMoney:       max(money, 1),
	}
}

func agent(name string, strategy model.Strategy, at string, skill float64, known ...string) model.RivalAgent {
	return model.RivalAgent{
		Name:          name,
		Faction:       "NiteSec",
		Strategy:      strategy,
		HackingSkill:  skill,
		IsOnline:      true,
		CurrentHost:   at,
		KnowledgeBase: model.NewHostSet(known...),
		VisitedNodes:  model.NewHostSet(at),
	}
}

// calm never toggles, never chats and never raises heist alerts.
func calm() *simrand.Scripted { return &simrand.Scripted{FloatDefault: 0.5} }

func TestUtility(t *testing.T) {
	a := agent("A", model.StrategyAggressive, "home", 40)
	s := host("s", 90, 1_000_000)
	if got := Utility(&a, s, 0); got <= 0 {
		t.Fatalf("skill 40 vs security 90 scored %v, want > 0", got)
	}

	weak := agent("W", model.StrategyAggressive, "home", 20)
	if got := Utility(&weak, s, 0); got != 0 {
		t.Fatalf("skill 20 vs security 90 scored %v, want 0", got)
	}
	if got := Utility(&a, host("broke", 10, 0), 0); got != 0 {
		t.Fatalf("moneyless host scored %v, want 0", got)
	}

	tests := []struct {
		strategy model.Strategy
		want     float64
	}{
		{model.StrategyAggressive, math.Pow(1_000_000, 1.2) / math.Pow(90, 0.8)},
		{model.StrategyStealth, 1_000_000 / math.Pow(90, 1.5)},
		{model.StrategyExplorer, 1_000_000.0 / 90},
	}
	for _, tt := range tests {
		ag := agent("x", tt.strategy, "home", 40)
		if got := Utility(&ag, s, 0); math.Abs(got-tt.want) > 1e-9*tt.want {
			t.Fatalf("%v utility = %v, want %v", tt.strategy, got, tt.want)
		}
		near, far := Utility(&ag, s, 0), Utility(&ag, s, 2)
		if math.Abs(far-near*0.81) > 1e-9*near {
			t.Fatalf("%v distance penalty: far=%v near=%v", tt.strategy, far, near)
		}
	}

	zeroSec := agent("z", model.StrategyStealth, "home", 10)
	if got := Utility(&zeroSec, host("open", 0, 100), 0); got != 100 {
		t.Fatalf("zero-security utility = %v, want 100", got)
	}
}

func TestKnowledgeUpdate(t *testing.T) {
	g := chain(host("home", 0, 0), host("relay", 5, 0), host("a", 5, 0))
	roster := []model.RivalAgent{agent("A", model.StrategyStealth, "relay", 10)}
	roster[0].ActionState = model.StateMoving
	roster[0].TargetHost = "a"
	roster[0].ActionTimer = 3

	res := NewRivalEngine(calm(), nil, nil).Step(g, roster)
	got := res.Agents[0]
	for _, h := range []string{"relay", "home", "a"} {
		if !got.KnowledgeBase.Has(h) {
			t.Fatalf("knowledge missing %s: %v", h, got.KnowledgeBase.Items())
		}
	}
	if !got.VisitedNodes.Has("relay") || got.VisitedNodes.Has("a") {
		t.Fatalf("visited = %v", got.VisitedNodes.Items())
	}
	if got.ActionTimer != 2 || got.ActionState != model.StateMoving {
		t.Fatalf("state=%v timer=%d, want MOVING/2", got.ActionState, got.ActionTimer)
	}
	if roster[0].KnowledgeBase.Len() != 0 {
		t.Fatalf("input roster mutated")
	}
}

func TestHackCycle(t *testing.T) {
	g := chain(host("relay", 5, 0), host("a", 10, 1_000_000), host("b", 5, 0))
	eng := NewRivalEngine(calm(), nil, nil)
	roster := []model.RivalAgent{agent("A", model.StrategyAggressive, "a", 20, "a")}

	res := eng.Step(g, roster)
	roster = res.Agents
	if roster[0].ActionState != model.StateHacking || roster[0].ActionTimer != aggressiveHackTicks {
		t.Fatalf("after decide state=%v timer=%d", roster[0].ActionState, roster[0].ActionTimer)
	}

	for i := 1; i < aggressiveHackTicks; i++ {
		roster = eng.Step(g, roster).Agents
	}
	if got := g.Get("a").MoneyAvailable; got != 1_000_000 {
		t.Fatalf("money touched before timer expiry: %v", got)
	}

	roster = eng.Step(g, roster).Agents
	a := g.Get("a")
	if a.MoneyAvailable != 900_000 {
		t.Fatalf("money = %v, want 900000", a.MoneyAvailable)
	}
	if math.Abs(a.SecurityLevel-10.2) > 1e-9 {
		t.Fatalf("security = %v, want 10.2", a.SecurityLevel)
	}
	if roster[0].Reputation != 5 || math.Abs(roster[0].HackingSkill-20.1) > 1e-9 {
		t.Fatalf("agent rep=%v skill=%v", roster[0].Reputation, roster[0].HackingSkill)
	}
	if roster[0].ActionState != model.StateIdle || roster[0].ActionTimer != 0 {
		t.Fatalf("agent not back to idle: %v/%d", roster[0].ActionState, roster[0].ActionTimer)
	}
}

func TestMoveTowardBestTarget(t *testing.T) {
	g := chain(host("home", 0, 0), host("relay", 5, 0), host("a", 5, 500_000))
	eng := NewRivalEngine(calm(), nil, nil)
	roster := []model.RivalAgent{agent("A", model.StrategyAggressive, "home", 20, "home", "a")}

	roster = eng.Step(g, roster).Agents
	if roster[0].ActionState != model.StateMoving || roster[0].TargetHost != "relay" || roster[0].ActionTimer != moveTicks {
		t.Fatalf("after decide %+v", roster[0])
	}
	for range moveTicks {
		roster = eng.Step(g, roster).Agents
	}
	if roster[0].CurrentHost != "relay" || roster[0].ActionState != model.StateIdle {
		t.Fatalf("after move host=%s state=%v", roster[0].CurrentHost, roster[0].ActionState)
	}
}

func TestAnalyzingWhenNoPath(t *testing.T) {
	g := chain(host("home", 0, 0))
	g.Upsert(host("island", 5, 500_000))
	roster := []model.RivalAgent{agent("A", model.StrategyStealth, "home", 20, "island")}

	got := NewRivalEngine(calm(), nil, nil).Step(g, roster).Agents[0]
	if got.ActionState != model.StateAnalyzing || got.ActionTimer != analyzeTicks {
		t.Fatalf("state=%v timer=%d, want ANALYZING/%d", got.ActionState, got.ActionTimer, analyzeTicks)
	}
}

func TestExplorerPrefersNearbyUnvisited(t *testing.T) {
	rich := host("home", 1, 5_000_000)
	g := chain(rich, host("relay", 5, 0))
	roster := []model.RivalAgent{agent("E", model.StrategyExplorer, "home", 50)}

	got := NewRivalEngine(calm(), nil, nil).Step(g, roster).Agents[0]
	if got.ActionState != model.StateMoving || got.TargetHost != "relay" {
		t.Fatalf("explorer %v -> %q, want MOVING to relay", got.ActionState, got.TargetHost)
	}

	// The same layout makes a stealth agent hack where it stands.
	roster = []model.RivalAgent{agent("S", model.StrategyStealth, "home", 50)}
	got = NewRivalEngine(calm(), nil, nil).Step(g, roster).Agents[0]
	if got.ActionState != model.StateHacking || got.ActionTimer != deliberateHackTicks {
		t.Fatalf("stealth %v/%d, want HACKING/%d", got.ActionState, got.ActionTimer, deliberateHackTicks)
	}
}

func TestWanderFallback(t *testing.T) {
	g := chain(host("home", 0, 0), host("relay", 5, 0), host("a", 5, 0))
	roster := []model.RivalAgent{agent("A", model.StrategyAggressive, "relay", 20, "a")}
	got := NewRivalEngine(calm(), nil, nil).Step(g, roster).Agents[0]
	if got.ActionState != model.StateMoving || got.ActionTimer != moveTicks {
		t.Fatalf("wander state=%v timer=%d", got.ActionState, got.ActionTimer)
	}
	if got.TargetHost != "home" && got.TargetHost != "a" {
		t.Fatalf("wander target %q is not a neighbour", got.TargetHost)
	}

	lonely := chain(host("solo", 0, 0))
	roster = []model.RivalAgent{agent("B", model.StrategyStealth, "solo", 20)}
	got = NewRivalEngine(calm(), nil, nil).Step(lonely, roster).Agents[0]
	if got.ActionState != model.StateIdle || got.TargetHost != "" {
		t.Fatalf("isolated agent %v -> %q, want IDLE", got.ActionState, got.TargetHost)
	}
}

func TestVanishedHostReturnsHome(t *testing.T) {
	g := chain(host("home", 0, 0), host("relay", 5, 0))
	roster := []model.RivalAgent{agent("A", model.StrategyStealth, "ghost", 20)}
	roster[0].ActionState = model.StateHacking
	roster[0].ActionTimer = 7

	got := NewRivalEngine(calm(), nil, nil).Step(g, roster).Agents[0]
	if got.CurrentHost != "home" {
		t.Fatalf("host = %q, want home", got.CurrentHost)
	}
	if got.ActionState == model.StateHacking {
		t.Fatalf("plan not discarded: %v", got.ActionState)
	}
	if !got.VisitedNodes.Has("home") {
		t.Fatalf("home not marked visited")
	}
}

func TestMovingTargetVanishedStaysPut(t *testing.T) {
	g := chain(host("home", 0, 0), host("relay", 5, 0))
	roster := []model.RivalAgent{agent("A", model.StrategyStealth, "relay", 20)}
	roster[0].ActionState = model.StateMoving
	roster[0].TargetHost = "ghost"
	roster[0].ActionTimer = 1

	got := NewRivalEngine(calm(), nil, nil).Step(g, roster).Agents[0]
	if got.CurrentHost != "relay" || got.ActionState != model.StateIdle {
		t.Fatalf("host=%q state=%v, want relay/IDLE", got.CurrentHost, got.ActionState)
	}
}

func TestAgentsSeeEarlierMutations(t *testing.T) {
	g := chain(host("a", 10, 1_000_000))
	first := agent("A", model.StrategyAggressive, "a", 20)
	second := agent("B", model.StrategyAggressive, "a", 20)
	for _, ag := range []*model.RivalAgent{&first, &second} {
		ag.ActionState = model.StateHacking
		ag.ActionTimer = 1
	}

	NewRivalEngine(calm(), nil, nil).Step(g, []model.RivalAgent{first, second})
	if got := g.Get("a").MoneyAvailable; got != 810_000 {
		t.Fatalf("money = %v, want 810000 (second hack reads first's result)", got)
	}
}

func TestToggleAndOffline(t *testing.T) {
	g := chain(host("home", 0, 0), host("relay", 5, 0))
	online := agent("A", model.StrategyStealth, "relay", 20)
	online.ActionState = model.StateMoving
	online.TargetHost = "home"
	online.ActionTimer = 4
	offline := agent("B", model.StrategyStealth, "relay", 20)
	offline.IsOnline = false

	rng := &simrand.Scripted{Floats: []float64{0.001}, FloatDefault: 0.5}
	res := NewRivalEngine(rng, nil, nil).Step(g, []model.RivalAgent{online, offline})

	a := res.Agents[0]
	if a.IsOnline || a.ActionState != model.StateIdle || a.ActionTimer != 0 || a.TargetHost != "" {
		t.Fatalf("toggled agent = %+v", a)
	}
	b := res.Agents[1]
	if b.IsOnline || b.KnowledgeBase.Len() != 0 {
		t.Fatalf("offline agent was processed: %+v", b)
	}
}

func TestAmbientChat(t *testing.T) {
	g := chain(host("home", 0, 0), host("relay", 5, 0))
	a := agent("Ghost", model.StrategyExplorer, "relay", 20)
	a.ActionState = model.StateMoving
	a.TargetHost = "home"
	a.ActionTimer = 3

	rng := &simrand.Scripted{Floats: []float64{0.5, 0.01}, Ints: []int{0, 0}, FloatDefault: 0.5}
	res := NewRivalEngine(rng, nil, nil).Step(g, []model.RivalAgent{a})
	if res.Event == nil {
		t.Fatalf("expected chat event")
	}
	if res.Event.Kind != model.LogChat || res.Event.Sender != "Ghost" || res.Event.Message != "Any NiteSec members nearby?" {
		t.Fatalf("chat = %+v", res.Event)
	}
}

func TestHeistAlert(t *testing.T) {
	g := chain(host("vault", 10, 5_000_000))
	a := agent("Viper", model.StrategyStealth, "vault", 40)
	a.ActionState = model.StateHacking
	a.ActionTimer = 1

	rng := &simrand.Scripted{Floats: []float64{0.5, 0.01}, FloatDefault: 0.5}
	res := NewRivalEngine(rng, nil, nil).Step(g, []model.RivalAgent{a})
	if got := g.Get("vault").MoneyAvailable; got != 4_000_000 {
		t.Fatalf("money = %v, want 4000000", got)
	}
	if res.Event == nil || res.Event.Kind != model.LogWarn {
		t.Fatalf("event = %+v, want warn", res.Event)
	}
	want := "Network Alert: Large data exfiltration detected on vault by Viper (STEALTH)."
	if res.Event.Message != want {
		t.Fatalf("message = %q, want %q", res.Event.Message, want)
	}
}

func TestInitializeRoster(t *testing.T) {
	g := chain(host("home", 0, 0), host("public-relay", 5, 0), host("x", 5, 0))
	roster := InitializeRoster(g, simrand.New(11))

	if len(roster) != len(RivalNames) {
		t.Fatalf("roster size = %d, want %d", len(roster), len(RivalNames))
	}
	start := roster[0].CurrentHost
	if !g.Has(start) {
		t.Fatalf("start host %q not in graph", start)
	}
	for i, r := range roster {
		if r.Name != RivalNames[i] || r.Faction != model.Factions[i%len(model.Factions)] {
			t.Fatalf("agent %d identity = %s/%s", i, r.Name, r.Faction)
		}
		if want := model.Strategy(i % 3); r.Strategy != want {
			t.Fatalf("agent %d strategy = %v, want %v", i, r.Strategy, want)
		}
		if r.CurrentHost != start {
			t.Fatalf("agent %d starts at %q, want shared %q", i, r.CurrentHost, start)
		}
		if r.Reputation < 500 || r.Reputation > 2499 || r.HackingSkill < 10 || r.HackingSkill > 59 {
			t.Fatalf("agent %d rep=%v skill=%v out of range", i, r.Reputation, r.HackingSkill)
		}
		if !r.KnowledgeBase.Has("home") || !r.KnowledgeBase.Has("public-relay") || !r.VisitedNodes.Has(start) {
			t.Fatalf("agent %d memory = %v / %v", i, r.KnowledgeBase.Items(), r.VisitedNodes.Items())
		}
	}
}

func TestChatPools(t *testing.T) {
	for _, s := range []model.Strategy{model.StrategyAggressive, model.StrategyStealth, model.StrategyExplorer} {
		pool := chatPool("Daedalus", s)
		if len(pool) != 11 {
			t.Fatalf("%v pool size = %d, want 11", s, len(pool))
		}
		if !strings.Contains(pool[0], "Daedalus") {
			t.Fatalf("generic line not faction keyed: %q", pool[0])
		}
	}
}

func TestUtilityTieKeepsFirstKnown(t *testing.T) {
	g := kb.NewGraph()
	g.Upsert(host("home", 0, 0))
	g.Upsert(host("a", 5, 500_000))
	g.Upsert(host("b", 5, 500_000))
	_ = g.Connect("home", "a")
	_ = g.Connect("home", "b")

	tests := []struct {
		known []string
		want  string
	}{
		{[]string{"a", "b"}, "a"},
		// Knowledge order wins over adjacency order.
		{[]string{"b", "a"}, "b"},
	}
	for _, tt := range tests {
		roster := []model.RivalAgent{agent("A", model.StrategyAggressive, "home", 20, tt.known...)}
		got := NewRivalEngine(calm(), nil, nil).Step(g, roster).Agents[0]
		if got.ActionState != model.StateMoving || got.TargetHost != tt.want {
			t.Fatalf("known %v: state=%v target=%q, want MOVING to %q", tt.known, got.ActionState, got.TargetHost, tt.want)
		}
	}
}

func TestExplorerReachLimit(t *testing.T) {
	explorer := func(hosts ...string) model.RivalAgent {
		a := agent("E", model.StrategyExplorer, "home", 50, hosts...)
		for _, h := range hosts[:len(hosts)-1] {
			a.VisitedNodes.Add(h)
		}
		return a
	}

	// The only unvisited host is four hops out: score targets instead.
	g := chain(host("home", 1, 5_000_000), host("r1", 5, 0), host("r2", 5, 0), host("r3", 5, 0), host("far", 5, 0))
	roster := []model.RivalAgent{explorer("r1", "r2", "r3", "far")}
	got := NewRivalEngine(calm(), nil, nil).Step(g, roster).Agents[0]
	if got.ActionState != model.StateHacking || got.ActionTimer != deliberateHackTicks {
		t.Fatalf("far explorer %v/%d, want HACKING/%d", got.ActionState, got.ActionTimer, deliberateHackTicks)
	}

	// Three hops is still within reach.
	g = chain(host("home", 1, 5_000_000), host("r1", 5, 0), host("r2", 5, 0), host("near", 5, 0))
	roster = []model.RivalAgent{explorer("r1", "r2", "near")}
	got = NewRivalEngine(calm(), nil, nil).Step(g, roster).Agents[0]
	if got.ActionState != model.StateMoving || got.TargetHost != "r1" {
		t.Fatalf("near explorer %v -> %q, want MOVING to r1", got.ActionState, got.TargetHost)
	}
}
