// Package changefeed fans out committed feed mutations to live observers.
// Observers receive the subscriber's full feed snapshot, newest first, on
// every commit; a newer snapshot supersedes an undelivered older one, so a
// slow observer never blocks a writer.
package changefeed

import (
	"sync"
	"sync/atomic"

	"github.com/saviour-labs/alertfeed/internal/models"
)

type subscription struct {
	subscriberID string
	ch           chan []models.Alert
}

type Feed struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID atomic.Uint64
	closed bool
}

func New() *Feed {
	return &Feed{
		subs: make(map[uint64]*subscription),
	}
}

// Subscribe registers an observer for one subscriber's feed. The returned
// channel carries full snapshots; it is closed on Unsubscribe or Close.
func (f *Feed) Subscribe(subscriberID string) (uint64, <-chan []models.Alert) {
	id := f.nextID.Add(1)
	sub := &subscription{
		subscriberID: subscriberID,
		ch:           make(chan []models.Alert, 1),
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(sub.ch)
		return id, sub.ch
	}
	f.subs[id] = sub
	f.mu.Unlock()

	return id, sub.ch
}

// Unsubscribe stops deliveries and closes the observer's channel. Safe to
// call more than once; other observers are unaffected.
func (f *Feed) Unsubscribe(id uint64) {
	f.mu.Lock()
	if sub, ok := f.subs[id]; ok {
		close(sub.ch)
		delete(f.subs, id)
	}
	f.mu.Unlock()
}

// Publish delivers a snapshot to every observer of the given subscriber.
// Each observer's queue holds one pending snapshot; when it is full the
// stale snapshot is dropped in favor of the new one. Snapshots are complete
// states, so the replacement preserves commit order as seen by the observer.
func (f *Feed) Publish(subscriberID string, snapshot []models.Alert) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, sub := range f.subs {
		if sub.subscriberID != subscriberID {
			continue
		}
		for {
			select {
			case sub.ch <- snapshot:
			default:
				select {
				case <-sub.ch: // discard the superseded snapshot
					continue
				default:
					continue
				}
			}
			break
		}
	}
}

// ObserverCount reports live observers for a subscriber.
func (f *Feed) ObserverCount(subscriberID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, sub := range f.subs {
		if sub.subscriberID == subscriberID {
			n++
		}
	}
	return n
}

// Close closes all observer channels and rejects future subscriptions.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, sub := range f.subs {
		close(sub.ch)
		delete(f.subs, id)
	}
}
