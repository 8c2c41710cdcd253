// Package eventbus implements the best-effort broadcast channel from
// writers (the Turn Loop, the Tool Executor) to N observers: per-writer
// order preserved, no global order across writers. Delivery is uniformly
// non-blocking — a full lane drops the event rather than stalling the
// writer, so a slow observer never blocks the engine.
package eventbus

import (
	"context"
	"sync/atomic"

	"github.com/linggen/linggen-agent/pkg/models"
)

// Sink receives events. Implementations must be non-blocking or handle
// backpressure gracefully and safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, e models.Event)
}

// Config sizes the two priority lanes.
type Config struct {
	HighPriBuffer int // Run/Activity/StateUpdated
	LowPriBuffer  int // Token (model deltas)
}

// DefaultConfig sizes the two lanes for typical single-process load.
func DefaultConfig() Config {
	return Config{HighPriBuffer: 32, LowPriBuffer: 256}
}

// Bus implements two-lane priority delivery over a single fixed-capacity
// buffer per lane: run lifecycle, tool activity, and state events get their
// own lane so a burst of token deltas can't crowd them out, but both lanes
// drop on overflow rather than block — the session log is the durable
// record; the bus is a best-effort live feed on top of it.
type Bus struct {
	highPri chan models.Event
	lowPri  chan models.Event
	merged  chan models.Event
	dropped uint64
	closed  uint32

	onDrop func() // optional metrics hook, called once per dropped event on either lane
}

// New creates a Bus and starts its merge goroutine. The returned channel
// should be drained by the caller (e.g. the CLI's event printer).
func New(config Config) (*Bus, <-chan models.Event) {
	if config.HighPriBuffer <= 0 {
		config.HighPriBuffer = 32
	}
	if config.LowPriBuffer <= 0 {
		config.LowPriBuffer = 256
	}
	b := &Bus{
		highPri: make(chan models.Event, config.HighPriBuffer),
		lowPri:  make(chan models.Event, config.LowPriBuffer),
		merged:  make(chan models.Event, config.HighPriBuffer),
	}
	go b.mergeLoop()
	return b, b.merged
}

// OnDrop registers a callback invoked whenever an event of either priority
// is dropped, so callers can wire it to a metrics counter.
func (b *Bus) OnDrop(fn func()) { b.onDrop = fn }

func (b *Bus) mergeLoop() {
	defer close(b.merged)
	for {
		select {
		case e, ok := <-b.highPri:
			if ok {
				b.merged <- e
				continue
			}
			for e := range b.lowPri {
				b.merged <- e
			}
			return
		default:
		}

		select {
		case e, ok := <-b.highPri:
			if ok {
				b.merged <- e
			} else {
				for e := range b.lowPri {
					b.merged <- e
				}
				return
			}
		case e, ok := <-b.lowPri:
			if ok {
				b.merged <- e
			}
		}
	}
}

func isDroppable(k models.EventKind) bool {
	return k == models.EventToken
}

// Emit dispatches e through the appropriate lane. Both lanes are
// non-blocking: when a lane's buffer is full the event is dropped rather
// than stalling the caller, so a slow observer never stalls the Turn Loop.
func (b *Bus) Emit(ctx context.Context, e models.Event) {
	if atomic.LoadUint32(&b.closed) == 1 {
		return
	}
	lane := b.highPri
	if isDroppable(e.Kind) {
		lane = b.lowPri
	}
	select {
	case lane <- e:
	default:
		atomic.AddUint64(&b.dropped, 1)
		if b.onDrop != nil {
			b.onDrop()
		}
	}
}

// DroppedCount returns the number of events dropped across both lanes.
func (b *Bus) DroppedCount() uint64 { return atomic.LoadUint64(&b.dropped) }

// Close stops the bus and closes the merged output channel.
func (b *Bus) Close() {
	if !atomic.CompareAndSwapUint32(&b.closed, 0, 1) {
		return
	}
	close(b.highPri)
	close(b.lowPri)
}
