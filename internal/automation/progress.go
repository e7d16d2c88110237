package automation

import "sync"

// ProgressEvent is one progress report from a run. Progress is a 0-100
// percentage, monotonically non-decreasing within a run.
type ProgressEvent struct {
	Progress int    `json:"progress"`
	Step     Step   `json:"step"`
	Message  string `json:"message"`
}

// ProgressFunc receives progress events. It is invoked synchronously at each
// state transition and must not block the run.
type ProgressFunc func(ProgressEvent)

// Broadcaster fans progress events out to any number of subscribers so
// logging, UI bridges and metrics can attach without coupling to the
// orchestrator's internals. Subscriber panics are swallowed; observation must
// never break the automation.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]ProgressFunc
	next int
	last int
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]ProgressFunc)}
}

// Subscribe attaches fn and returns a function that detaches it.
func (b *Broadcaster) Subscribe(fn ProgressFunc) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers ev to every subscriber. Progress values are clamped so
// observers always see a non-decreasing sequence even if states report out of
// order during failure unwinding.
func (b *Broadcaster) Publish(ev ProgressEvent) {
	b.mu.Lock()
	if ev.Progress < b.last {
		ev.Progress = b.last
	}
	b.last = ev.Progress
	fns := make([]ProgressFunc, 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		func() {
			defer func() { _ = recover() }()
			fn(ev)
		}()
	}
}
