package books

import (
	"context"
	"log"
	"sync"

	"github.com/mrlokans/flashshelf/internal/remote"
)

const subscriberBuffer = 64

// Feed fans change events out to in-process subscribers. A subscriber that
// falls a full buffer behind is dropped and its channel closed; consumers
// treat that the same as a lost realtime connection.
type Feed struct {
	mu          sync.Mutex
	subscribers map[chan remote.ChangeEvent]struct{}
}

var _ remote.ChangeFeed = (*Feed)(nil)

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan remote.ChangeEvent]struct{})}
}

// Subscribe registers a listener until ctx is done.
func (f *Feed) Subscribe(ctx context.Context) (<-chan remote.ChangeEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := make(chan remote.ChangeEvent, subscriberBuffer)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.remove(ch)
	}()
	return ch, nil
}

func (f *Feed) remove(ch chan remote.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subscribers[ch]; ok {
		delete(f.subscribers, ch)
		close(ch)
	}
}

// Publish delivers event to every subscriber without blocking.
func (f *Feed) Publish(event remote.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for ch := range f.subscribers {
		select {
		case ch <- event:
		default:
			log.Printf("[feed] subscriber fell behind, dropping it")
			delete(f.subscribers, ch)
			close(ch)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}
