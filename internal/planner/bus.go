package planner

import (
	"sync"

	"timely/internal/model"
)

// UpdateKind says what changed.
type UpdateKind string

const (
	UpdateActivity  UpdateKind = "activity"
	UpdateProposal  UpdateKind = "proposal"
	UpdateSelection UpdateKind = "selection"
	UpdateConfirmed UpdateKind = "confirmed"
	UpdateReset     UpdateKind = "reset"
)

// Update is published after every state change.
type Update struct {
	Kind     UpdateKind
	Snapshot Snapshot
	// Event is set for UpdateConfirmed.
	Event *model.Event
}

const subscriberBuffer = 8

type bus struct {
	mu   sync.RWMutex
	subs map[chan Update]struct{}
}

func newBus() *bus {
	return &bus{subs: make(map[chan Update]struct{})}
}

func (b *bus) subscribe() (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// publish never blocks; a full subscriber drops the update.
func (b *bus) publish(u Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
