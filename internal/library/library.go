// Package library keeps the in-memory mirror of the books table.
//
// Every change to the collection (fetch results, fetch failures and change
// events) is queued and applied by one writer goroutine, so the mirror sees
// a single total order of mutations. Readers take immutable snapshots.
package library

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/mrlokans/flashshelf/internal/entities"
	"github.com/mrlokans/flashshelf/internal/remote"
)

// ErrClosed is returned for work submitted after Close.
var ErrClosed = errors.New("library closed")

// MessageFetchFailed is shown when a fetch error carries no text of its own.
const MessageFetchFailed = "書籍の取得に失敗しました"

// State is a point-in-time view of the collection. Books must be treated as
// read-only; the writer never mutates a slice it has published.
type State struct {
	Books   []entities.Book `json:"books"`
	Loading bool            `json:"loading"`
	Error   string          `json:"error,omitempty"`
}

type mutation struct {
	apply func(State) State
	done  chan struct{}
}

// Library owns the authoritative collection and forwards writes to the store.
type Library struct {
	store remote.BookStore
	feed  remote.ChangeFeed

	queue   chan mutation
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once

	mu    sync.RWMutex
	state State

	// Owned by the writer goroutine. Events applied while at least one fetch
	// is in flight are logged so the fetched list can catch up with them.
	fetching int
	pending  []remote.ChangeEvent

	watchMu  sync.Mutex
	watchers map[chan State]struct{}

	live atomic.Bool
}

// New creates a library and starts its writer. Call Close to stop it.
func New(store remote.BookStore, feed remote.ChangeFeed) *Library {
	l := &Library{
		store:    store,
		feed:     feed,
		queue:    make(chan mutation, 64),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		state:    State{Books: []entities.Book{}, Loading: true},
		watchers: make(map[chan State]struct{}),
	}
	go l.writer()
	return l
}

func (l *Library) writer() {
	defer close(l.stopped)
	for {
		select {
		case <-l.stop:
			return
		case m := <-l.queue:
			l.mu.Lock()
			l.state = m.apply(l.state)
			snapshot := l.state
			l.mu.Unlock()

			l.notify(snapshot)
			if m.done != nil {
				close(m.done)
			}
		}
	}
}

// enqueue hands a mutation to the writer and waits until it is applied.
func (l *Library) enqueue(ctx context.Context, apply func(State) State) error {
	m := mutation{apply: apply, done: make(chan struct{})}
	select {
	case l.queue <- m:
	case <-l.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-m.done:
		return nil
	case <-l.stopped:
		return ErrClosed
	}
}

// Close stops the writer and closes every watcher channel.
func (l *Library) Close() {
	l.once.Do(func() {
		close(l.stop)
		<-l.stopped

		l.watchMu.Lock()
		for ch := range l.watchers {
			delete(l.watchers, ch)
			close(ch)
		}
		l.watchMu.Unlock()
	})
}

// Snapshot returns the current state.
func (l *Library) Snapshot() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Live reports whether Run is currently consuming a change feed.
func (l *Library) Live() bool {
	return l.live.Load()
}

// Watch returns a channel that receives the latest state after every applied
// mutation. Slow readers only see the most recent state. The channel is
// closed when ctx is done or the library closes.
func (l *Library) Watch(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	// Snapshot under watchMu so no notification can slip in between.
	l.watchMu.Lock()
	ch <- l.Snapshot()
	select {
	case <-l.stop:
		l.watchMu.Unlock()
		close(ch)
		return ch
	default:
	}
	l.watchers[ch] = struct{}{}
	l.watchMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-l.stop:
		}
		l.watchMu.Lock()
		defer l.watchMu.Unlock()
		if _, ok := l.watchers[ch]; ok {
			delete(l.watchers, ch)
			close(ch)
		}
	}()
	return ch
}

func (l *Library) notify(state State) {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()

	for ch := range l.watchers {
		select {
		case ch <- state:
		default:
			// Drop the stale state; only this goroutine sends.
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

// FetchAll loads the whole table. On success the collection is replaced and
// any previous error cleared; on failure the collection is left as it is and
// the error is recorded for display.
func (l *Library) FetchAll(ctx context.Context) error {
	// start is the log position this fetch replays from.
	var start int
	if err := l.enqueue(ctx, func(s State) State {
		l.fetching++
		start = len(l.pending)
		s.Loading = true
		return s
	}); err != nil {
		return err
	}

	books, fetchErr := l.store.List(ctx)
	if fetchErr != nil {
		log.Printf("[library] Error fetching books: %v", fetchErr)
		message := fetchErr.Error()
		if message == "" {
			message = MessageFetchFailed
		}
		if err := l.enqueue(context.WithoutCancel(ctx), func(s State) State {
			l.endFetch()
			s.Loading = false
			s.Error = message
			return s
		}); err != nil {
			return err
		}
		return fmt.Errorf("fetch books: %w", fetchErr)
	}

	if books == nil {
		books = []entities.Book{}
	}
	return l.enqueue(context.WithoutCancel(ctx), func(s State) State {
		// Events may or may not be reflected in the list already; replaying
		// them is idempotent.
		books = ApplyAll(books, l.pending[start:])
		l.endFetch()
		return State{Books: books, Loading: false}
	})
}

// endFetch runs on the writer goroutine.
func (l *Library) endFetch() {
	l.fetching--
	if l.fetching == 0 {
		l.pending = nil
	}
}

// Run subscribes to the change feed, loads the table and then applies change
// events until ctx is done (returns nil) or the feed ends (returns
// remote.ErrFeedClosed). A failed initial fetch is recorded but does not stop
// event processing.
func (l *Library) Run(ctx context.Context) error {
	if !l.live.CompareAndSwap(false, true) {
		return errors.New("library already running")
	}
	defer l.live.Store(false)

	events, err := l.feed.Subscribe(ctx)
	if err != nil {
		log.Printf("[library] Error subscribing to changes: %v", err)
		_ = l.FetchAll(ctx)
		return fmt.Errorf("subscribe: %w", err)
	}

	_ = l.FetchAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return remote.ErrFeedClosed
			}
			if err := l.ApplyEvent(ctx, event); err != nil {
				if errors.Is(err, ErrClosed) {
					return err
				}
				return nil
			}
		}
	}
}

// ApplyEvent queues one change event for the writer.
func (l *Library) ApplyEvent(ctx context.Context, event remote.ChangeEvent) error {
	return l.enqueue(ctx, func(s State) State {
		if l.fetching > 0 {
			l.pending = append(l.pending, event)
		}
		s.Books = Apply(s.Books, event)
		return s
	})
}

// AddBook inserts one row with exactly the supplied fields. The collection
// changes when the matching insert event arrives.
func (l *Library) AddBook(ctx context.Context, book entities.NewBook) error {
	if err := l.store.Insert(ctx, book); err != nil {
		log.Printf("[library] Error adding book: %v", err)
		return err
	}
	return nil
}

// DeleteBook removes the row with the given id.
func (l *Library) DeleteBook(ctx context.Context, id string) error {
	if err := l.store.Delete(ctx, id); err != nil {
		log.Printf("[library] Error deleting book: %v", err)
		return err
	}
	return nil
}

// UpdateBook patches the row with the given id.
func (l *Library) UpdateBook(ctx context.Context, id string, update entities.BookUpdate) error {
	if err := l.store.Update(ctx, id, update); err != nil {
		log.Printf("[library] Error updating book: %v", err)
		return err
	}
	return nil
}
