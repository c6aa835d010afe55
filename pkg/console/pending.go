package console

import (
	"time"

	"github.com/google/uuid"

	"userconsole/pkg/users"
)

// EventKind names a live-update event as sent by the hub.
type EventKind string

const (
	EventCreated EventKind = "UserCreated"
	EventUpdated EventKind = "UserUpdated"
	EventDeleted EventKind = "UserDeleted"
)

type pendingWrite struct {
	kind     EventKind
	recordID int64 // zero until the backend has assigned an id
	input    users.Input
	expires  time.Time
}

// pendingSet tracks local writes whose live-update echo should be dropped.
// Each write gets its own correlation id so concurrent writes never consume
// each other's echo. Callers hold the controller lock.
type pendingSet struct {
	ttl     time.Duration
	now     func() time.Time
	entries map[uuid.UUID]pendingWrite
}

func newPendingSet(ttl time.Duration) *pendingSet {
	return &pendingSet{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[uuid.UUID]pendingWrite),
	}
}

func (p *pendingSet) add(kind EventKind, recordID int64, in users.Input) uuid.UUID {
	id := uuid.New()
	p.entries[id] = pendingWrite{
		kind:     kind,
		recordID: recordID,
		input:    in,
		expires:  p.now().Add(p.ttl),
	}
	return id
}

// resolve records the id the backend assigned to a pending create.
func (p *pendingSet) resolve(corr uuid.UUID, recordID int64) {
	w, ok := p.entries[corr]
	if !ok {
		return
	}
	w.recordID = recordID
	p.entries[corr] = w
}

func (p *pendingSet) drop(corr uuid.UUID) {
	delete(p.entries, corr)
}

func (p *pendingSet) len() int {
	p.prune()
	return len(p.entries)
}

func (p *pendingSet) prune() {
	now := p.now()
	for id, w := range p.entries {
		if !now.Before(w.expires) {
			delete(p.entries, id)
		}
	}
}

// consume removes and reports the pending write that event u echoes.
// An id match wins; a create whose id is still unknown matches on content.
func (p *pendingSet) consume(kind EventKind, u users.User) bool {
	p.prune()

	var (
		fallback uuid.UUID
		found    bool
	)
	for id, w := range p.entries {
		if w.kind != kind {
			continue
		}
		if w.recordID != 0 && w.recordID == u.ID {
			delete(p.entries, id)
			return true
		}
		if !found && w.recordID == 0 && w.input.Name == u.Name && w.input.Email == u.Email {
			fallback, found = id, true
		}
	}
	if found {
		delete(p.entries, fallback)
	}
	return found
}
