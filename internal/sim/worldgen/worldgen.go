// Package worldgen synthesizes server nodes and grows the world graph when
// nodes are breached.
package worldgen

import (
	"fmt"
	"math"
	"strings"

	"github.com/signalsfoundry/netexpanse/internal/simrand"
	"github.com/signalsfoundry/netexpanse/kb"
	"github.com/signalsfoundry/netexpanse/model"
)

const (
	homeRAM = 8

	rivalNodeChance    = 0.2
	databaseChance     = 0.4
	flavorFileChance   = 0.4
	earlyGatewayChance = 0.1

	minNeighbors = 2
	maxNeighbors = 4

	layoutWidth  = 800
	layoutHeight = 600
)

// Generator creates server nodes. Parameters are random; shape is fixed.
type Generator struct {
	rng simrand.Rand
}

// New returns a generator drawing from rng.
func New(rng simrand.Rand) *Generator {
	return &Generator{rng: rng}
}

// DifficultyMultiplier scales security, money and RAM with depth.
func DifficultyMultiplier(depth int) float64 {
	return 1 + float64(depth)*0.8
}

// Generate synthesizes a node at depth. A non-empty parent is recorded as
// its first connection; the caller is responsible for the reverse edge.
func (g *Generator) Generate(depth int, parent, city string, isGateway bool) *model.ServerNode {
	org := model.Organizations[g.rng.IntN(len(model.Organizations))]

	typ := model.ServerWorkstation
	switch {
	case isGateway:
		typ = model.ServerGateway
	case depth == 0:
		typ = model.ServerMainframe
	case simrand.Chance(g.rng, rivalNodeChance):
		typ = model.ServerRivalNode
	case simrand.Chance(g.rng, databaseChance):
		typ = model.ServerDatabase
	}

	var hostname string
	switch {
	case depth == 0:
		hostname = model.HomeHostname
	case depth == 1 && parent == "":
		hostname = model.PublicRelayHostname
	default:
		hostname = g.hostname(org, typ, city)
	}

	mult := DifficultyMultiplier(depth)
	node := &model.ServerNode{
		Hostname:     hostname,
		IP:           g.ip(),
		Depth:        depth,
		City:         city,
		Organization: org,
		Type:         typ,
		Files:        []model.File{},
		Connections:  []string{},
		X:            g.rng.Float64() * layoutWidth,
		Y:            g.rng.Float64() * layoutHeight,
	}
	if parent != "" {
		node.Connections = append(node.Connections, parent)
	}

	if depth == 0 {
		node.Organization = "Player"
		node.HasRoot = true
		node.MaxRAM = homeRAM
		return node
	}

	node.MinSecurity = min(100, max(1, math.Floor(5*mult)))
	security := math.Floor(float64(simrand.IntRange(g.rng, 5, 15)) * mult)
	node.SecurityLevel = max(node.MinSecurity, min(100, security))

	node.MaxMoney = math.Floor(float64(simrand.IntRange(g.rng, 1_000_000, 5_000_000)) * mult)
	money := math.Floor(float64(simrand.IntRange(g.rng, 20_000, 1_000_000)) * mult)
	node.MoneyAvailable = min(node.MaxMoney, money)

	exp := math.Floor(float64(simrand.IntRange(g.rng, 2, 6)) + float64(depth)*0.4)
	node.MaxRAM = math.Pow(2, min(12, exp))
	node.PortsRequired = min(5, int(math.Floor(float64(depth)/1.5)))

	if simrand.Chance(g.rng, flavorFileChance) {
		node.Files = append(node.Files, model.File{
			Name:    fmt.Sprintf("log_%d.log", simrand.IntRange(g.rng, 1000, 9999)),
			Content: fmt.Sprintf("SERVER: %s\nLOC: %s\nSTATUS: OK\nTraffic Normal.", hostname, city),
		})
	}
	if typ == model.ServerRivalNode {
		node.Files = append(node.Files, model.File{
			Name:    "operative_manifest.enc",
			Content: "ENCRYPTED RIVAL DATA. HACK TO DECRYPT.",
		})
	}
	return node
}

// InitializeWorld builds the starting graph: home wired to public-relay in
// the first city, with the starter files on home.
func (g *Generator) InitializeWorld() *kb.Graph {
	city := model.Cities[0]
	home := g.Generate(0, "", city, false)
	home.Files = model.InitialHomeFiles()
	relay := g.Generate(1, "", city, false)

	graph := kb.NewGraph()
	graph.Upsert(home)
	graph.Upsert(relay)
	_ = graph.Connect(home.Hostname, relay.Hostname)
	return graph
}

// ExpandWorld attaches 2-4 freshly generated neighbours to source and
// returns the hostnames actually added. Breaching a Gateway moves the new
// nodes into the next city; otherwise they stay local and may include an
// early Gateway. A hostname collision skips that neighbour.
func (g *Generator) ExpandWorld(graph *kb.Graph, source string) []string {
	src := graph.Get(source)
	if src == nil {
		return nil
	}

	movingCities := src.Type == model.ServerGateway
	city := src.City
	if movingCities {
		city = NextCity(src.City)
	}

	count := simrand.IntRange(g.rng, minNeighbors, maxNeighbors)
	added := make([]string, 0, count)
	for range count {
		isGateway := !movingCities && simrand.Chance(g.rng, earlyGatewayChance)
		n := g.Generate(src.Depth+1, src.Hostname, city, isGateway)
		if err := graph.Insert(n); err != nil {
			continue
		}
		if err := graph.Connect(src.Hostname, n.Hostname); err != nil {
			continue
		}
		added = append(added, n.Hostname)
	}
	return added
}

// NextCity returns the city after city in the fixed cyclic order. Unknown
// cities advance to the first entry.
func NextCity(city string) string {
	for i, c := range model.Cities {
		if c == city {
			return model.Cities[(i+1)%len(model.Cities)]
		}
	}
	return model.Cities[0]
}

func (g *Generator) hostname(org string, typ model.ServerType, city string) string {
	short := func(s string) string {
		if len(s) > 3 {
			return s[:3]
		}
		return s
	}
	var kind string
	switch typ {
	case model.ServerMainframe:
		kind = "core"
	case model.ServerDatabase:
		kind = "db"
	case model.ServerGateway:
		kind = "gw"
	default:
		kind = "node"
	}
	return fmt.Sprintf("%s-%s-%s-%d",
		strings.ToUpper(short(city)),
		strings.ToLower(short(org)),
		kind,
		simrand.IntRange(g.rng, 10, 99),
	)
}

func (g *Generator) ip() string {
	return fmt.Sprintf("%d.%d.%d.%d",
		simrand.IntRange(g.rng, 1, 255),
		simrand.IntRange(g.rng, 0, 255),
		simrand.IntRange(g.rng, 0, 255),
		simrand.IntRange(g.rng, 1, 254),
	)
}
