package state

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/signalsfoundry/netexpanse/core"
	"github.com/signalsfoundry/netexpanse/internal/logging"
	"github.com/signalsfoundry/netexpanse/internal/sim/worldgen"
	"github.com/signalsfoundry/netexpanse/internal/simrand"
	"github.com/signalsfoundry/netexpanse/kb"
	"github.com/signalsfoundry/netexpanse/model"
)

var (
	// ErrServerNotFound indicates the named host does not exist.
	ErrServerNotFound = kb.ErrServerNotFound
	// ErrNotExecutable indicates a script names no operation.
	ErrNotExecutable = core.ErrNotExecutable
	// ErrFileNotFound indicates the named file is not on the host.
	ErrFileNotFound = errors.New("file not found")
	// ErrInvalidFilename indicates an empty file name.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrInsufficientRAM indicates home lacks RAM for a new operation.
	ErrInsufficientRAM = errors.New("insufficient home RAM")
	// ErrRootRequired indicates the command needs root on the host.
	ErrRootRequired = errors.New("root access required")
	// ErrAlreadyRoot indicates the host was already breached.
	ErrAlreadyRoot = errors.New("root access already obtained")
	// ErrPortsClosed indicates too few ports are open to breach.
	ErrPortsClosed = errors.New("not enough open ports")
	// ErrSkillTooLow indicates the player's skill is below the breach threshold.
	ErrSkillTooLow = errors.New("hacking skill too low")
	// ErrProgramMissing indicates the port opener is not owned.
	ErrProgramMissing = errors.New("program missing")
	// ErrPortAlreadyOpen indicates the port is already open.
	ErrPortAlreadyOpen = errors.New("port already open")
	// ErrUnknownFaction indicates the faction does not exist.
	ErrUnknownFaction = errors.New("unknown faction")
	// ErrAlreadyMember indicates the player already joined the faction.
	ErrAlreadyMember = errors.New("already a faction member")
	// ErrUnknownProgram indicates the program is not sold.
	ErrUnknownProgram = errors.New("unknown program")
	// ErrAlreadyOwned indicates the program was already bought.
	ErrAlreadyOwned = errors.New("program already owned")
	// ErrInsufficientFunds indicates the player cannot afford the purchase.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrProcessNotFound indicates no live operation has the pid.
	ErrProcessNotFound = errors.New("process not found")
)

const hiddenNodeChance = 0.2

// txn collects the log events a command emits while the lock is held.
type txn struct {
	s      *WorldState
	events []model.LogEvent
}

func (t *txn) emit(kind model.LogKind, msg string) {
	t.events = append(t.events, t.s.events.New(kind, msg))
}

// reject records the single log line for a refused command and returns err.
// Callers must not have mutated anything.
func (t *txn) reject(kind model.LogKind, msg string, err error) error {
	t.emit(kind, msg)
	return err
}

// exec runs fn under the write lock, commits the events it emitted and
// publishes them once the lock is released.
func (s *WorldState) exec(ctx context.Context, op string, fn func(t *txn) error) error {
	s.mu.Lock()
	t := &txn{s: s}
	err := fn(t)
	s.logs.Append(t.events...)
	s.mu.Unlock()

	log := logging.WithTickLogger(ctx, s.log)
	if err != nil {
		log.Debug(ctx, "command rejected", logging.String("command", op), logging.Any("error", err))
	} else {
		log.Debug(ctx, "command applied", logging.String("command", op))
	}
	s.publish(t.events)
	return err
}

// LaunchOperation starts script, stored on host, looping against target.
// RAM is reserved on the home node until the operation is killed.
func (s *WorldState) LaunchOperation(ctx context.Context, host, script, target string) (model.RunningOperation, error) {
	var op model.RunningOperation
	err := s.exec(ctx, "run", func(t *txn) error {
		g := s.world.Servers
		cur := g.Get(host)
		if cur == nil {
			return t.reject(model.LogError, "Invalid host.", fmt.Errorf("%w: %q", ErrServerNotFound, host))
		}
		file, ok := cur.FindFile(script)
		if !ok {
			return t.reject(model.LogError, "Script not found on current server.", fmt.Errorf("%w: %q", ErrFileNotFound, script))
		}
		tgt := g.Get(target)
		if tgt == nil {
			return t.reject(model.LogError, "Invalid target.", fmt.Errorf("%w: %q", ErrServerNotFound, target))
		}
		if !tgt.HasRoot && target != model.HomeHostname {
			return t.reject(model.LogError, "Root access required on target.", fmt.Errorf("%w: %q", ErrRootRequired, target))
		}
		kind, err := core.ClassifyScript(file.Content)
		if err != nil {
			return t.reject(model.LogWarn, "Script contains no valid operations.", fmt.Errorf("%w: %q", err, script))
		}
		cost := core.ScriptRAMCost(file.Content)
		home := g.Get(model.HomeHostname)
		if home == nil || home.RAMUsed+cost > home.MaxRAM {
			return t.reject(model.LogError, fmt.Sprintf("Insufficient Home RAM. Need %gGB.", cost),
				fmt.Errorf("%w: need %g", ErrInsufficientRAM, cost))
		}

		op = model.RunningOperation{
			PID:       s.world.NextPID,
			Filename:  script,
			Target:    target,
			Kind:      kind,
			StartedAt: s.now(),
			Duration:  core.OperationDuration(kind, s.world.Player.HackingSkill, tgt.SecurityLevel),
			RAMCost:   cost,
		}
		s.world.NextPID++
		g.Mutable(model.HomeHostname).RAMUsed += cost
		s.world.Operations = append(s.world.Operations, op)
		t.emit(model.LogSuccess, fmt.Sprintf("Process %d started against %s.", op.PID, target))
		return nil
	})
	return op, err
}

// KillOperation stops pid and releases its RAM reservation.
func (s *WorldState) KillOperation(ctx context.Context, pid int) error {
	return s.exec(ctx, "kill", func(t *txn) error {
		idx := slices.IndexFunc(s.world.Operations, func(op model.RunningOperation) bool { return op.PID == pid })
		if idx < 0 {
			return t.reject(model.LogError, fmt.Sprintf("Process %d not found.", pid), fmt.Errorf("%w: %d", ErrProcessNotFound, pid))
		}
		op := s.world.Operations[idx]
		s.world.Operations = slices.Delete(slices.Clone(s.world.Operations), idx, idx+1)
		if home := s.world.Servers.Mutable(model.HomeHostname); home != nil {
			home.RAMUsed = max(0, home.RAMUsed-op.RAMCost)
		}
		t.emit(model.LogInfo, fmt.Sprintf("Process %d killed.", pid))
		return nil
	})
}

// Breach grants root on host once enough ports are open and the player's
// skill clears the security threshold. A Gateway always unlocks new nodes
// in the next city; other hosts sometimes reveal a hidden local node.
func (s *WorldState) Breach(ctx context.Context, host string) error {
	return s.exec(ctx, "breach", func(t *txn) error {
		g := s.world.Servers
		n := g.Get(host)
		if n == nil {
			return t.reject(model.LogError, "Invalid host.", fmt.Errorf("%w: %q", ErrServerNotFound, host))
		}
		if n.HasRoot {
			return t.reject(model.LogWarn, "Root access already obtained.", fmt.Errorf("%w: %q", ErrAlreadyRoot, host))
		}
		if n.OpenPorts < n.PortsRequired {
			return t.reject(model.LogError, fmt.Sprintf("Breach failed. Open ports: %d/%d", n.OpenPorts, n.PortsRequired),
				fmt.Errorf("%w: %d/%d", ErrPortsClosed, n.OpenPorts, n.PortsRequired))
		}
		if float64(s.world.Player.HackingSkill) < n.SecurityLevel/3 {
			need := int(math.Floor(n.SecurityLevel / 3))
			return t.reject(model.LogError, fmt.Sprintf("Skill too low. Need approx level %d.", need),
				fmt.Errorf("%w: need %d", ErrSkillTooLow, need))
		}

		g.Mutable(host).HasRoot = true
		switch {
		case n.Type == model.ServerGateway:
			s.expandLocked(ctx, host, TriggerGateway)
			t.emit(model.LogSystem, fmt.Sprintf("GATEWAY BREACH SUCCESSFUL. ROUTE TO [%s] UNLOCKED.", worldgen.NextCity(n.City)))
		case simrand.Chance(s.rng, hiddenNodeChance):
			s.expandLocked(ctx, host, TriggerHiddenNode)
			t.emit(model.LogInfo, "Local hidden node discovered.")
		}
		t.emit(model.LogSuccess, "ACCESS GRANTED. ROOT PRIVILEGES ASSIGNED.")
		return nil
	})
}

func (s *WorldState) expandLocked(ctx context.Context, host, trigger string) {
	added := s.gen.ExpandWorld(s.world.Servers, host)
	if s.metrics != nil {
		s.metrics.WorldExpanded(trigger)
	}
	logging.WithTickLogger(ctx, s.log).Info(ctx, "world expanded",
		logging.String("source", host),
		logging.String("trigger", trigger),
		logging.Int("added", len(added)),
	)
}

// OpenPort opens one service port on host using the matching program.
func (s *WorldState) OpenPort(ctx context.Context, host string, kind model.PortKind) error {
	return s.exec(ctx, "open"+kind.String(), func(t *txn) error {
		n := s.world.Servers.Get(host)
		if n == nil {
			return t.reject(model.LogError, "Invalid host.", fmt.Errorf("%w: %q", ErrServerNotFound, host))
		}
		program := model.PortProgram(kind)
		if !s.world.Player.HasProgram(program) {
			return t.reject(model.LogError, fmt.Sprintf("Program %s missing.", program), fmt.Errorf("%w: %s", ErrProgramMissing, program))
		}
		if n.Ports.IsOpen(kind) {
			return t.reject(model.LogWarn, "Port already open.", fmt.Errorf("%w: %s on %q", ErrPortAlreadyOpen, kind, host))
		}
		m := s.world.Servers.Mutable(host)
		m.Ports.Open(kind)
		m.OpenPorts++
		t.emit(model.LogSuccess, fmt.Sprintf("open%s executed successfully.", kind))
		return nil
	})
}

// JoinFaction adds the player to faction with zero reputation.
func (s *WorldState) JoinFaction(ctx context.Context, faction string) error {
	return s.exec(ctx, "join", func(t *txn) error {
		p := &s.world.Player
		if p.HasFaction(faction) {
			return t.reject(model.LogWarn, fmt.Sprintf("Already a member of %s.", faction), fmt.Errorf("%w: %s", ErrAlreadyMember, faction))
		}
		if !model.IsFaction(faction) {
			return t.reject(model.LogError, fmt.Sprintf("Faction %s not found or not recruiting.", faction),
				fmt.Errorf("%w: %s", ErrUnknownFaction, faction))
		}
		*p = p.Clone()
		p.Factions = append(p.Factions, faction)
		p.Reputation[faction] = 0
		t.emit(model.LogSuccess, fmt.Sprintf("Joined %s. Welcome to the fold.", faction))
		return nil
	})
}

// BuyProgram debits the program's cost and adds it to the player's tools.
func (s *WorldState) BuyProgram(ctx context.Context, name string) error {
	return s.exec(ctx, "buy", func(t *txn) error {
		prog, ok := model.FindProgram(name)
		if !ok {
			return t.reject(model.LogError, "Item not available.", fmt.Errorf("%w: %s", ErrUnknownProgram, name))
		}
		p := &s.world.Player
		if p.HasProgram(name) {
			return t.reject(model.LogWarn, "Already owned.", fmt.Errorf("%w: %s", ErrAlreadyOwned, name))
		}
		if p.Credits < prog.Cost {
			return t.reject(model.LogError, "Insufficient funds.", fmt.Errorf("%w: need %.0f", ErrInsufficientFunds, prog.Cost))
		}
		*p = p.Clone()
		p.Credits -= prog.Cost
		p.Programs = append(p.Programs, name)
		t.emit(model.LogSuccess, fmt.Sprintf("Purchased %s", name))
		return nil
	})
}

// WriteFile creates or replaces a file on host, keeping its position.
func (s *WorldState) WriteFile(ctx context.Context, host, name, content string) error {
	return s.exec(ctx, "write", func(t *txn) error {
		if name == "" {
			return t.reject(model.LogError, "Invalid filename.", ErrInvalidFilename)
		}
		if !s.world.Servers.Has(host) {
			return t.reject(model.LogError, "Invalid host.", fmt.Errorf("%w: %q", ErrServerNotFound, host))
		}
		n := s.world.Servers.Mutable(host)
		idx := slices.IndexFunc(n.Files, func(f model.File) bool { return f.Name == name })
		if idx >= 0 {
			n.Files[idx].Content = content
		} else {
			n.Files = append(n.Files, model.File{Name: name, Content: content})
		}
		t.emit(model.LogSuccess, fmt.Sprintf("File %s saved.", name))
		return nil
	})
}

// RemoveFile deletes a file from host. Root is required except on home.
func (s *WorldState) RemoveFile(ctx context.Context, host, name string) error {
	return s.exec(ctx, "rm", func(t *txn) error {
		n := s.world.Servers.Get(host)
		if n == nil {
			return t.reject(model.LogError, "Invalid host.", fmt.Errorf("%w: %q", ErrServerNotFound, host))
		}
		if host != model.HomeHostname && !n.HasRoot {
			return t.reject(model.LogError, "Root access required to delete files.", fmt.Errorf("%w: %q", ErrRootRequired, host))
		}
		idx := slices.IndexFunc(n.Files, func(f model.File) bool { return f.Name == name })
		if idx < 0 {
			return t.reject(model.LogError, "File not found.", fmt.Errorf("%w: %q", ErrFileNotFound, name))
		}
		m := s.world.Servers.Mutable(host)
		m.Files = slices.Delete(m.Files, idx, idx+1)
		t.emit(model.LogSuccess, fmt.Sprintf("Deleted %s", name))
		return nil
	})
}
