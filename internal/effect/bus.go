package effect

import "sync"

// Bus is a fan-out pub/sub for effects. It implements Sink.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Effect]struct{}
}

// NewBus creates a new effect bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Effect]struct{})}
}

// Emit sends an effect to all subscribers (non-blocking).
func (b *Bus) Emit(e Effect) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives effects.
func (b *Bus) Subscribe() chan Effect {
	ch := make(chan Effect, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Effect) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of live subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Recorder keeps every effect it receives. Used by tests and the CLI.
type Recorder struct {
	mu      sync.Mutex
	effects []Effect
}

func (r *Recorder) Emit(e Effect) {
	r.mu.Lock()
	r.effects = append(r.effects, e)
	r.mu.Unlock()
}

// Effects returns a copy of everything recorded so far.
func (r *Recorder) Effects() []Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Effect(nil), r.effects...)
}

// OfKind returns the recorded effects of the given kind.
func (r *Recorder) OfKind(k Kind) []Effect {
	var out []Effect
	for _, e := range r.Effects() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the most recent effect of kind k.
func (r *Recorder) Last(k Kind) (Effect, bool) {
	es := r.OfKind(k)
	if len(es) == 0 {
		return Effect{}, false
	}
	return es[len(es)-1], true
}

// Reset clears the recorder.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.effects = nil
	r.mu.Unlock()
}

// Fanout emits to every sink in order.
type Fanout []Sink

func (f Fanout) Emit(e Effect) {
	for _, s := range f {
		s.Emit(e)
	}
}
