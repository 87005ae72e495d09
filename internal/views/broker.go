package views

import "sync"

// Broker fans snapshots out to subscribers. Each subscriber sees the latest
// snapshot; one that falls behind skips intermediate ones.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
	latest *Snapshot
	closed bool
}

// NewBroker returns a broker with no subscribers.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan Snapshot)}
}

// Subscribe returns a channel of snapshots and a func that ends the
// subscription. A new subscriber immediately receives the latest snapshot
// if one was published. The channel is closed on unsubscribe or Close.
func (b *Broker) Subscribe() (<-chan Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	if b.latest != nil {
		ch <- *b.latest
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers s to every subscriber without blocking.
func (b *Broker) Publish(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.latest = &s

	for _, ch := range b.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		// drop the stale snapshot, then deliver
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Latest returns the last published snapshot.
func (b *Broker) Latest() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.latest == nil {
		return Snapshot{}, false
	}
	return *b.latest, true
}

// Close ends every subscription. Later publishes are ignored.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
