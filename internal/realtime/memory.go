package realtime

import (
	"context"
	"sync"
)

// MemoryFeed fans events out to in-process subscribers. Sends never block: a
// subscriber whose buffer is full misses the event, which is harmless because
// one pending cue already triggers a full refetch.
type MemoryFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan ChangeEvent
}

// NewMemoryFeed returns an empty in-process feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string]map[int]chan ChangeEvent)}
}

// Publish delivers ev to every current subscriber of ev.Table.
func (f *MemoryFeed) Publish(_ context.Context, ev ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[ev.Table] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber for table.
func (f *MemoryFeed) Subscribe(ctx context.Context, table string) (<-chan ChangeEvent, func(), error) {
	ch := make(chan ChangeEvent, subscriberBuffer)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	if f.subs[table] == nil {
		f.subs[table] = make(map[int]chan ChangeEvent)
	}
	f.subs[table][id] = ch
	f.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs[table], id)
			if len(f.subs[table]) == 0 {
				delete(f.subs, table)
			}
			f.mu.Unlock()
			close(ch)
		})
	}
	stop := context.AfterFunc(ctx, release)
	cancel := func() {
		stop()
		release()
	}

	return ch, cancel, nil
}

// Subscribers reports how many subscribers table has.
func (f *MemoryFeed) Subscribers(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[table])
}

var _ Feed = (*MemoryFeed)(nil)
