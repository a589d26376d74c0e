// Package persist reads and writes save games.
//
// A save is a single JSON document. Paths ending in ".sz" are snappy
// compressed. Writes go to a temporary file that is renamed over the old
// save, so a crash mid-write leaves the previous save intact.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/golang/snappy"

	"github.com/signalsfoundry/netexpanse/core"
	"github.com/signalsfoundry/netexpanse/internal/logging"
	"github.com/signalsfoundry/netexpanse/internal/sim/worldgen"
	"github.com/signalsfoundry/netexpanse/internal/simrand"
	"github.com/signalsfoundry/netexpanse/kb"
	"github.com/signalsfoundry/netexpanse/model"
)

const (
	// FormatVersion is written into every save.
	FormatVersion = 2

	// EnvHome overrides the directory holding the default save.
	EnvHome = "NETEXPANSE_HOME"

	compressedExt = ".sz"
)

var (
	// ErrNoSave indicates there is no save at the path.
	ErrNoSave = errors.New("no save file")
	// ErrCorrupt indicates the save could not be decoded.
	ErrCorrupt = errors.New("save file corrupt")
)

// Migrations reported by Decode.
const (
	MigratedPlayer   = "player"
	MigratedFactions = "factions"
	MigratedServers  = "servers"
	MigratedRoster   = "roster"
	MigratedPIDs     = "pids"
)

// Document is the on-disk layout. Servers are keyed by hostname; ServerOrder
// keeps the insertion order of the graph.
type Document struct {
	Version     int                          `json:"version"`
	SavedAt     time.Time                    `json:"savedAt"`
	Tick        uint64                       `json:"tick"`
	NextPID     int                          `json:"nextPid"`
	Player      *model.PlayerProgress        `json:"player"`
	Servers     map[string]*model.ServerNode `json:"servers"`
	ServerOrder []string                     `json:"serverOrder,omitempty"`
	Processes   []model.RunningOperation     `json:"processes"`
	Rivals      json.RawMessage              `json:"rivals"`
	Logs        []model.LogEvent             `json:"logs"`
}

// Loaded is a decoded and migrated save.
type Loaded struct {
	World core.World
	Logs  []model.LogEvent
	// Migrations lists the repairs applied while loading, in order.
	Migrations []string
}

// DefaultPath is $NETEXPANSE_HOME/save.json.sz, or .netexpanse/save.json.sz
// when the variable is unset.
func DefaultPath() string {
	dir := os.Getenv(EnvHome)
	if dir == "" {
		dir = ".netexpanse"
	}
	return filepath.Join(dir, "save.json"+compressedExt)
}

// Store saves to and loads from one path.
type Store struct {
	path string
	log  logging.Logger
	now  func() time.Time
}

// NewStore returns a store for path; an empty path means DefaultPath.
func NewStore(path string, log logging.Logger) *Store {
	if path == "" {
		path = DefaultPath()
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Store{path: path, log: log, now: time.Now}
}

// Path is the file the store reads and writes.
func (s *Store) Path() string { return s.path }

func (s *Store) compressed() bool {
	return strings.HasSuffix(s.path, compressedExt)
}

// Save writes w and its log history.
func (s *Store) Save(ctx context.Context, w core.World, logs []model.LogEvent) error {
	data, err := Encode(w, logs, s.now())
	if err != nil {
		return err
	}
	if s.compressed() {
		data = snappy.Encode(nil, data)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create save dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename save: %w", err)
	}

	s.log.Debug(ctx, "game saved",
		logging.String("path", s.path),
		logging.Int("bytes", len(data)),
		logging.Any("tick", w.Tick),
	)
	return nil
}

// Load reads and migrates the save. rng seeds any regenerated world or
// roster.
func (s *Store) Load(ctx context.Context, rng simrand.Rand) (Loaded, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Loaded{}, fmt.Errorf("%w: %s", ErrNoSave, s.path)
	}
	if err != nil {
		return Loaded{}, fmt.Errorf("read save: %w", err)
	}
	if s.compressed() {
		data, err = snappy.Decode(nil, data)
		if err != nil {
			return Loaded{}, fmt.Errorf("%w: decompress: %v", ErrCorrupt, err)
		}
	}

	loaded, err := Decode(data, rng)
	if err != nil {
		return Loaded{}, err
	}
	for _, m := range loaded.Migrations {
		s.log.Warn(ctx, "save migrated", logging.String("path", s.path), logging.String("migration", m))
	}
	s.log.Info(ctx, "game loaded",
		logging.String("path", s.path),
		logging.Any("tick", loaded.World.Tick),
		logging.Int("servers", loaded.World.Servers.Len()),
	)
	return loaded, nil
}

// Encode renders w as a save document.
func Encode(w core.World, logs []model.LogEvent, savedAt time.Time) ([]byte, error) {
	doc := Document{
		Version:   FormatVersion,
		SavedAt:   savedAt.UTC(),
		Tick:      w.Tick,
		NextPID:   w.NextPID,
		Player:    &w.Player,
		Servers:   make(map[string]*model.ServerNode),
		Processes: w.Operations,
		Logs:      logs,
	}
	if w.Servers != nil {
		for _, n := range w.Servers.All() {
			doc.Servers[n.Hostname] = n
		}
		doc.ServerOrder = w.Servers.Hostnames()
	}
	rivals := w.Rivals
	if rivals == nil {
		rivals = []model.RivalAgent{}
	}
	raw, err := json.Marshal(rivals)
	if err != nil {
		return nil, fmt.Errorf("encode rivals: %w", err)
	}
	doc.Rivals = raw

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode save: %w", err)
	}
	return data, nil
}

// Decode parses a save document and repairs what older saves lack: a
// missing player or faction list, a missing world, a roster from before
// strategies and visited sets existed, and one-sided links.
func Decode(data []byte, rng simrand.Rand) (Loaded, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Loaded{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var out Loaded
	migrate := func(name string) { out.Migrations = append(out.Migrations, name) }

	switch {
	case doc.Player == nil:
		out.World.Player = model.NewPlayerProgress(model.Cities[0])
		migrate(MigratedPlayer)
	default:
		out.World.Player = *doc.Player
		if out.World.Player.Factions == nil {
			out.World.Player.Factions = []string{}
			migrate(MigratedFactions)
		}
		if out.World.Player.Programs == nil {
			out.World.Player.Programs = []string{}
		}
		if out.World.Player.Reputation == nil {
			out.World.Player.Reputation = map[string]float64{}
		}
		out.World.Player.HackingSkill = model.SkillForExp(out.World.Player.Exp)
	}

	if len(doc.Servers) == 0 {
		out.World.Servers = worldgen.New(rng).InitializeWorld()
		migrate(MigratedServers)
	} else {
		out.World.Servers = buildGraph(doc.Servers, doc.ServerOrder)
	}

	rivals, legacy, err := decodeRivals(doc.Rivals)
	if err != nil {
		return Loaded{}, err
	}
	if legacy {
		rivals = core.InitializeRoster(out.World.Servers, rng)
		migrate(MigratedRoster)
	}
	out.World.Rivals = rivals

	out.World.Tick = doc.Tick
	out.World.Operations = doc.Processes
	out.World.NextPID = doc.NextPID
	if minPID := nextFreePID(doc.Processes); out.World.NextPID < minPID {
		out.World.NextPID = minPID
		if len(doc.Processes) > 0 {
			migrate(MigratedPIDs)
		}
	}
	out.Logs = doc.Logs
	return out, nil
}

// buildGraph inserts nodes in saved order, then hosts the order missed in
// name order, and rebuilds links so every edge is symmetric and points at
// a known host.
func buildGraph(nodes map[string]*model.ServerNode, order []string) *kb.Graph {
	hosts := make([]string, 0, len(nodes))
	seen := make(map[string]struct{}, len(nodes))
	for _, h := range order {
		if _, ok := nodes[h]; ok {
			if _, dup := seen[h]; !dup {
				hosts = append(hosts, h)
				seen[h] = struct{}{}
			}
		}
	}
	var rest []string
	for h := range nodes {
		if _, ok := seen[h]; !ok {
			rest = append(rest, h)
		}
	}
	slices.Sort(rest)
	hosts = append(hosts, rest...)

	g := kb.NewGraph()
	links := make(map[string][]string, len(hosts))
	for _, h := range hosts {
		n := nodes[h]
		if n == nil {
			continue
		}
		n.Hostname = h
		links[h] = n.Connections
		n.Connections = nil
		g.Upsert(n)
	}
	for _, h := range hosts {
		for _, peer := range links[h] {
			// Unknown peers are dropped.
			_ = g.Connect(h, peer)
		}
	}
	return g
}

// decodeRivals reports legacy when the roster is empty or its first agent
// predates strategies or visited sets.
func decodeRivals(raw json.RawMessage) ([]model.RivalAgent, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, true, nil
	}
	var probe []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, false, fmt.Errorf("%w: rivals: %v", ErrCorrupt, err)
	}
	if len(probe) == 0 {
		return nil, true, nil
	}
	if _, ok := probe[0]["strategy"]; !ok {
		return nil, true, nil
	}
	if _, ok := probe[0]["visitedNodes"]; !ok {
		return nil, true, nil
	}

	var rivals []model.RivalAgent
	if err := json.Unmarshal(raw, &rivals); err != nil {
		// Unknown strategy names and the like come from older builds.
		return nil, true, nil
	}
	return rivals, false, nil
}

func nextFreePID(ops []model.RunningOperation) int {
	next := 1
	for _, op := range ops {
		next = max(next, op.PID+1)
	}
	return next
}
