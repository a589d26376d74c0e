package eventlog

import (
	"fmt"
	"testing"
	"time"

	"github.com/signalsfoundry/netexpanse/internal/simrand"
	"github.com/signalsfoundry/netexpanse/model"
)

func TestFactoryDeterministicIDs(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC) }
	a := NewFactory(simrand.NewReader(7), clock)
	b := NewFactory(simrand.NewReader(7), clock)

	for i := range 5 {
		ea := a.New(model.LogInfo, "x")
		eb := b.New(model.LogInfo, "x")
		if ea.ID != eb.ID {
			t.Fatalf("event %d ids differ: %s vs %s", i, ea.ID, eb.ID)
		}
	}
}

func TestFactoryStampsTickAndSender(t *testing.T) {
	f := NewFactory(nil, nil)
	f.SetTick(12)
	ev := f.Chat("Ghost", "hello")
	if ev.Kind != model.LogChat || ev.Sender != "Ghost" || ev.Tick != 12 {
		t.Fatalf("Chat() = %#v", ev)
	}
	if ev.ID == "" || ev.Timestamp.IsZero() {
		t.Fatalf("Chat() missing id or timestamp: %#v", ev)
	}
}

func TestBufferEvictsOldest(t *testing.T) {
	buf := NewBuffer(3)
	for i := range 5 {
		buf.Append(model.LogEvent{Message: fmt.Sprintf("m%d", i)})
	}
	got := buf.Recent(0)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Message != "m2" || got[2].Message != "m4" {
		t.Fatalf("Recent = %v", got)
	}
	if last := buf.Recent(1); len(last) != 1 || last[0].Message != "m4" {
		t.Fatalf("Recent(1) = %v", last)
	}
}
