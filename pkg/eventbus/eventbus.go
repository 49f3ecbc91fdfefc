// Package eventbus implements the process-wide broadcast channel described
// in §4.7: a single multi-writer, multi-reader bus of bounded per-subscriber
// capacity. A lagging subscriber never blocks a publisher; instead it
// receives a synthetic Lag{skipped} event and resumes from the current
// head, mirroring the registry's own backpressure-over-blocking stance
// (pkg/registry) rather than anything borrowed from the teacher directly —
// there is no equivalent fan-out primitive in the teacher repo, so this is
// newly authored in its idiom (a mutex-guarded subscriber map; the lock is
// held while publishing, but every send is non-blocking, so it never waits
// on a subscriber).
package eventbus

import (
	"sync"
	"time"

	"github.com/kz-league/cs2kz-api/internal/telemetry"
)

// subscriberCapacity bounds each subscriber's channel so one slow SSE
// client cannot grow memory without bound.
const subscriberCapacity = 64

// Event is a single tagged, named occurrence broadcast to every subscriber.
type Event struct {
	Name      string
	Payload   any
	Timestamp time.Time
}

// LagPayload is the synthetic event a subscriber receives in place of the
// events it could not keep up with.
type LagPayload struct {
	Skipped int `json:"skipped"`
}

type subscriber struct {
	ch      chan Event
	skipped int
}

// Bus is the process-wide event broadcaster. The zero value is not usable;
// construct with New.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int64]*subscriber
	nextID      int64
}

func New() *Bus {
	return &Bus{subscribers: make(map[int64]*subscriber)}
}

// Subscribe registers a new subscriber and returns its event channel and an
// Unsubscribe function. The channel is closed by Unsubscribe; callers must
// not close it themselves.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{ch: make(chan Event, subscriberCapacity)}
	b.subscribers[id] = sub

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(s.ch)
		}
	}
	return sub.ch, unsubscribe
}

// Publish fans name/payload out to every subscriber, in publish order.
// A subscriber whose channel is full is skipped rather than blocked; it
// accrues a lag counter that is flushed as a synthetic "lag" event the
// next time that subscriber has room.
func (b *Bus) Publish(name string, payload any) {
	event := Event{Name: name, Payload: payload, Timestamp: time.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		if sub.skipped > 0 {
			lagEvent := Event{Name: "lag", Payload: LagPayload{Skipped: sub.skipped}, Timestamp: event.Timestamp}
			select {
			case sub.ch <- lagEvent:
				sub.skipped = 0
			default:
				sub.skipped++
				telemetry.EventBusLagTotal.Inc()
				continue
			}
		}

		select {
		case sub.ch <- event:
		default:
			sub.skipped++
			telemetry.EventBusLagTotal.Inc()
		}
	}
}
