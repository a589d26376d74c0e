package state

import (
	"testing"

	"github.com/signalsfoundry/netexpanse/core"
	"github.com/signalsfoundry/netexpanse/internal/logging"
	"github.com/signalsfoundry/netexpanse/internal/simrand"
	"github.com/signalsfoundry/netexpanse/kb"
	"github.com/signalsfoundry/netexpanse/model"
)

type stubMetricsRecorder struct {
	triggers []string
}

func (r *stubMetricsRecorder) WorldExpanded(trigger string) {
	r.triggers = append(r.triggers, trigger)
}

// testWorld is home (root, 8GB, the stock files) linked to "target", which
// needs one open port, and to a Gateway "gw" in Sector-12.
func testWorld(t *testing.T) core.World {
	t.Helper()
	g := kb.NewGraph()
	g.Upsert(&model.ServerNode{
		Hostname: model.HomeHostname,
		City:     model.Cities[0],
		Type:     model.ServerMainframe,
		HasRoot:  true,
		MaxRAM:   8,
		Files:    model.InitialHomeFiles(),
	})
	g.Upsert(&model.ServerNode{
		Hostname:       "target",
		Depth:          1,
		City:           model.Cities[0],
		Type:           model.ServerDatabase,
		SecurityLevel:  20,
		MinSecurity:    5,
		MoneyAvailable: 50_000,
		MaxMoney:       1_000_000,
		PortsRequired:  1,
		Files:          []model.File{{Name: "a.log", Content: "a"}, {Name: "b.log", Content: "b"}},
	})
	g.Upsert(&model.ServerNode{
		Hostname:      "gw",
		Depth:         2,
		City:          model.Cities[0],
		Type:          model.ServerGateway,
		SecurityLevel: 3,
		MinSecurity:   1,
		MaxMoney:      1_000_000,
	})
	for _, h := range []string{"target", "gw"} {
		if err := g.Connect(model.HomeHostname, h); err != nil {
			t.Fatalf("Connect(home, %s): %v", h, err)
		}
	}
	return core.World{
		Servers: g,
		Player:  model.NewPlayerProgress(model.Cities[0]),
		NextPID: 1,
	}
}

// calmRand never crosses any probability threshold and picks index 0.
func calmRand() simrand.Rand {
	return &simrand.Scripted{FloatDefault: 0.5}
}

func newTestState(t *testing.T, opts ...Option) *WorldState {
	t.Helper()
	opts = append([]Option{WithRand(calmRand())}, opts...)
	return NewWorldState(testWorld(t), logging.Noop(), opts...)
}

func lastLog(t *testing.T, s *WorldState) model.LogEvent {
	t.Helper()
	logs := s.Logs(1)
	if len(logs) != 1 {
		t.Fatalf("no log events recorded")
	}
	return logs[0]
}
