package kb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/signalsfoundry/netexpanse/model"
)

func node(host string) *model.ServerNode {
	return &model.ServerNode{Hostname: host, MoneyAvailable: 100, MaxMoney: 1000}
}

func TestUpsertAndGet(t *testing.T) {
	g := NewGraph()
	if created := g.Upsert(node("a")); !created {
		t.Fatalf("Upsert(a) created=false, want true")
	}
	if created := g.Upsert(node("a")); created {
		t.Fatalf("second Upsert(a) created=true, want false")
	}
	if got := g.Get("a"); got == nil || got.Hostname != "a" {
		t.Fatalf("Get(a) = %#v", got)
	}
	if g.Get("missing") != nil {
		t.Fatalf("Get(missing) should be nil")
	}
	if g.Len() != 1 {
		t.Fatalf("Len = %d, want 1", g.Len())
	}
}

func TestInsertCollision(t *testing.T) {
	g := NewGraph()
	if err := g.Insert(node("a")); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if err := g.Insert(node("a")); !errors.Is(err, ErrServerExists) {
		t.Fatalf("Insert duplicate err = %v, want ErrServerExists", err)
	}
}

func TestConnectIsSymmetricAndIdempotent(t *testing.T) {
	g := NewGraph()
	g.Upsert(node("a"))
	g.Upsert(node("b"))

	for range 3 {
		if err := g.Connect("a", "b"); err != nil {
			t.Fatalf("Connect error: %v", err)
		}
	}
	if got := g.Neighbors("a"); len(got) != 1 || got[0] != "b" {
		t.Fatalf("Neighbors(a) = %v, want [b]", got)
	}
	if got := g.Neighbors("b"); len(got) != 1 || got[0] != "a" {
		t.Fatalf("Neighbors(b) = %v, want [a]", got)
	}

	if err := g.Connect("a", "ghost"); !errors.Is(err, ErrServerNotFound) {
		t.Fatalf("Connect to missing err = %v, want ErrServerNotFound", err)
	}
	if err := g.Connect("a", "a"); err != nil {
		t.Fatalf("self Connect error: %v", err)
	}
	if len(g.Neighbors("a")) != 1 {
		t.Fatalf("self Connect should not add an edge")
	}
}

func TestAllKeepsInsertionOrder(t *testing.T) {
	g := NewGraph()
	want := []string{"zeta", "alpha", "mid"}
	for _, h := range want {
		g.Upsert(node(h))
	}
	g.Upsert(node("alpha")) // replace keeps position

	all := g.All()
	for i, n := range all {
		if n.Hostname != want[i] {
			t.Fatalf("All()[%d] = %q, want %q", i, n.Hostname, want[i])
		}
	}
}

func TestSnapshotCopyOnWrite(t *testing.T) {
	g := NewGraph()
	g.Upsert(node("a"))
	g.Upsert(node("b"))

	snap := g.Snapshot()
	snap.Mutable("a").MoneyAvailable = 5
	if err := snap.Connect("a", "b"); err != nil {
		t.Fatalf("Connect error: %v", err)
	}

	if got := g.Get("a").MoneyAvailable; got != 100 {
		t.Fatalf("original money = %v, want 100", got)
	}
	if len(g.Neighbors("a")) != 0 {
		t.Fatalf("original adjacency changed: %v", g.Neighbors("a"))
	}

	// Writes on the parent after the snapshot must not leak into it either.
	g.Mutable("b").SecurityLevel = 42
	if got := snap.Get("b").SecurityLevel; got != 0 {
		t.Fatalf("snapshot saw parent write: security=%v", got)
	}

	// A node written twice in the same snapshot is cloned only once.
	first := snap.Mutable("a")
	if second := snap.Mutable("a"); first != second {
		t.Fatalf("Mutable cloned an already owned node")
	}
}

func TestCloneIsDeep(t *testing.T) {
	g := NewGraph()
	g.Upsert(node("a"))
	g.Upsert(node("b"))
	_ = g.Connect("a", "b")

	c := g.Clone()
	c.Mutable("a").Connections[0] = "changed"
	if g.Neighbors("a")[0] != "b" {
		t.Fatalf("Clone shares adjacency with original")
	}
}

func TestConnectPropertySymmetry(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("adjacency stays symmetric under random connects and snapshots", prop.ForAll(
		func(pairs []int) bool {
			g := NewGraph()
			for i := range 8 {
				g.Upsert(node(fmt.Sprintf("n%d", i)))
			}
			for i, p := range pairs {
				a := fmt.Sprintf("n%d", p%8)
				b := fmt.Sprintf("n%d", (p/8)%8)
				if i%5 == 0 {
					g = g.Snapshot()
				}
				if err := g.Connect(a, b); err != nil {
					return false
				}
			}
			for _, n := range g.All() {
				seen := map[string]bool{}
				for _, c := range n.Connections {
					if seen[c] {
						return false
					}
					seen[c] = true
					if !g.Get(c).IsConnected(n.Hostname) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 63)),
	))

	properties.TestingRun(t)
}
