package arena

import (
	"sync"

	"github.com/charmbracelet/log"
)

const subscriberBuffer = 16

// Broadcaster fans frames out to spectators. A spectator that falls behind
// misses frames rather than slowing the match down.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[int]chan Frame
	nextID      int
	last        *Frame
	logger      *log.Logger
}

func NewBroadcaster(logger *log.Logger) *Broadcaster {
	if logger == nil {
		logger = log.Default()
	}
	return &Broadcaster{
		subscribers: map[int]chan Frame{},
		logger:      logger,
	}
}

// Subscribe returns a channel of frames, primed with the latest frame if
// there is one, and a function that ends the subscription.
func (b *Broadcaster) Subscribe() (<-chan Frame, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan Frame, subscriberBuffer)
	if b.last != nil {
		ch <- *b.last
	}
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(sub)
			}
		})
	}
}

func (b *Broadcaster) OnFrame(frame Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.last = &frame
	for id, ch := range b.subscribers {
		select {
		case ch <- frame:
		default:
			b.logger.Debug("Spectator is behind, dropping frame", "subscriber", id, "frame", frame.State.Frame)
		}
	}
}

func (b *Broadcaster) Latest() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return Frame{}, false
	}
	return *b.last, true
}

func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close ends every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
