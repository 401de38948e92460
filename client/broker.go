package client

import "sync"

// DefaultSubscriberBuffer is used when Subscribe is given a non-positive
// buffer.
const DefaultSubscriberBuffer = 64

// broker fans out updates to subscribers, dropping for slow ones.
type broker struct {
	mu     sync.Mutex
	subs   map[chan Update]struct{}
	closed bool
}

func newBroker() *broker {
	return &broker{subs: make(map[chan Update]struct{})}
}

func (b *broker) subscribe(buffer int) (<-chan Update, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Update, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

func (b *broker) publish(u Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- u:
		default:
			// Drop if subscriber is slow.
		}
	}
}

// close ends every subscription.
func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
