// Package eventlog builds game log events and keeps the bounded history
// shown to terminals.
package eventlog

import (
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/netexpanse/model"
)

// DefaultMaxLogs bounds the buffer when no size is configured.
const DefaultMaxLogs = 100

// Factory stamps LogEvents with an id, the clock time and the current tick.
type Factory struct {
	mu   sync.Mutex
	ids  io.Reader
	now  func() time.Time
	tick uint64
}

// NewFactory returns a factory drawing ids from ids (crypto random when nil)
// and timestamps from now (time.Now when nil).
func NewFactory(ids io.Reader, now func() time.Time) *Factory {
	if now == nil {
		now = time.Now
	}
	return &Factory{ids: ids, now: now}
}

// SetTick records the tick stamped onto subsequent events.
func (f *Factory) SetTick(tick uint64) {
	f.mu.Lock()
	f.tick = tick
	f.mu.Unlock()
}

// New builds an event of the given kind.
func (f *Factory) New(kind model.LogKind, msg string) model.LogEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.LogEvent{
		ID:        f.nextIDLocked(),
		Kind:      kind,
		Message:   msg,
		Timestamp: f.now().UTC(),
		Tick:      f.tick,
	}
}

// Chat builds a chat line attributed to sender.
func (f *Factory) Chat(sender, msg string) model.LogEvent {
	ev := f.New(model.LogChat, msg)
	ev.Sender = sender
	return ev
}

func (f *Factory) nextIDLocked() string {
	if f.ids == nil {
		return uuid.NewString()
	}
	id, err := uuid.NewRandomFromReader(f.ids)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Buffer keeps the newest events up to a fixed size.
type Buffer struct {
	mu     sync.RWMutex
	max    int
	events []model.LogEvent
}

// NewBuffer returns a buffer holding at most size events.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultMaxLogs
	}
	return &Buffer{max: size}
}

// Append adds events, evicting the oldest past the limit.
func (b *Buffer) Append(events ...model.LogEvent) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
	if over := len(b.events) - b.max; over > 0 {
		b.events = append([]model.LogEvent(nil), b.events[over:]...)
	}
}

// Recent returns up to n of the newest events, oldest first. n <= 0 returns all.
func (b *Buffer) Recent(n int) []model.LogEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	start := 0
	if n > 0 && n < len(b.events) {
		start = len(b.events) - n
	}
	return append([]model.LogEvent(nil), b.events[start:]...)
}

// Len is the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
