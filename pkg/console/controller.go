package console

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"userconsole/pkg/users"
)

// Controller owns the console state. Every state change goes through a
// reducer under mu; backend calls are made without holding it.
type Controller struct {
	api users.UserAPI
	// Optional: logger can be injected
	logger interface {
		Printf(string, ...interface{})
	}

	mu      sync.Mutex
	state   State
	pending *pendingSet

	subsMu sync.RWMutex
	subs   []func(State)
}

// NewController creates a controller showing pageSize records per page.
// Echo suppression entries older than pendingTTL are forgotten.
func NewController(api users.UserAPI, pageSize int, pendingTTL time.Duration) *Controller {
	return &Controller{
		api:     api,
		logger:  log.New(log.Writer(), "[console] ", log.LstdFlags),
		state:   NewState(pageSize),
		pending: newPendingSet(pendingTTL),
	}
}

// SetLogger replaces the default logger.
func (c *Controller) SetLogger(l interface{ Printf(string, ...interface{}) }) {
	c.logger = l
}

// Subscribe registers fn to receive a snapshot after every state change.
func (c *Controller) Subscribe(fn func(State)) {
	c.subsMu.Lock()
	c.subs = append(c.subs, fn)
	c.subsMu.Unlock()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Controller) notify() {
	snap := c.Snapshot()
	c.subsMu.RLock()
	subs := append([]func(State){}, c.subs...)
	c.subsMu.RUnlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// update runs reducer under the lock and notifies subscribers afterwards.
func (c *Controller) update(reducer func(State) State) {
	c.mu.Lock()
	c.state = reducer(c.state)
	c.mu.Unlock()
	c.notify()
}

// LoadPage fetches page n and replaces the displayed records. A response
// that was overtaken by a newer LoadPage is discarded. On failure the
// state is left as it was.
func (c *Controller) LoadPage(ctx context.Context, n int) error {
	if n < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, n)
	}

	c.mu.Lock()
	var gen uint64
	c.state, gen = BeginLoad(c.state)
	size := c.state.PageSize
	c.mu.Unlock()

	page, err := c.api.ListPaged(ctx, n, size)
	if err != nil {
		c.logger.Printf("error fetching users (page %d): %v", n, err)
		return fmt.Errorf("load page %d: %w", n, err)
	}

	c.mu.Lock()
	next, applied := PageLoaded(c.state, gen, n, page)
	c.state = next
	last, past := PastLastPage(next)
	c.mu.Unlock()

	if !applied {
		c.logger.Printf("discarding stale page %d response (generation %d)", n, gen)
		return nil
	}
	// Past the end: only the clamped reload is published.
	if past {
		return c.LoadPage(ctx, last)
	}
	c.notify()
	return nil
}

// SelectPage maps a zero-indexed page selector to a page load.
func (c *Controller) SelectPage(ctx context.Context, selected int) error {
	if selected < 0 {
		return fmt.Errorf("%w: selector %d", ErrInvalidPage, selected)
	}
	return c.LoadPage(ctx, selected+1)
}

// Resync reloads the current page, e.g. after the live channel reconnects
// and may have missed events.
func (c *Controller) Resync(ctx context.Context) error {
	c.mu.Lock()
	page := c.state.Page
	c.mu.Unlock()
	return c.LoadPage(ctx, page)
}

// CreateRecord creates a user and shows the page it lands on.
func (c *Controller) CreateRecord(ctx context.Context, name, email string) error {
	in := users.Input{Name: name, Email: email}

	c.mu.Lock()
	corr := c.pending.add(EventCreated, 0, in)
	c.mu.Unlock()

	created, err := c.api.CreateUser(ctx, in)
	if err != nil {
		c.mu.Lock()
		c.pending.drop(corr)
		c.mu.Unlock()
		c.logger.Printf("error creating user: %v", err)
		return fmt.Errorf("create user: %w", err)
	}

	c.mu.Lock()
	if created.ID != 0 {
		c.pending.resolve(corr, created.ID)
	}
	if c.state.Form.Open && !c.state.Form.Editing {
		c.state = CloseForm(c.state)
	}
	target := CreateTargetPage(c.state)
	c.mu.Unlock()
	c.notify()

	// Load failures are logged by LoadPage; the create itself succeeded.
	_ = c.LoadPage(ctx, target)
	return nil
}

// UpdateRecord patches the shown record right away and reverts the patch
// if the backend rejects the update.
func (c *Controller) UpdateRecord(ctx context.Context, id int64, name, email string) error {
	in := users.Input{Name: name, Email: email}

	c.mu.Lock()
	next, prev, patched := PatchRecord(c.state, id, name, email)
	c.state = next
	corr := c.pending.add(EventUpdated, id, in)
	c.mu.Unlock()
	if patched {
		c.notify()
	}

	if err := c.api.UpdateUser(ctx, id, in); err != nil {
		c.mu.Lock()
		c.pending.drop(corr)
		if patched {
			c.state = RevertPatch(c.state, users.User{ID: id, Name: name, Email: email}, prev)
		}
		c.mu.Unlock()
		c.notify()
		c.logger.Printf("error updating user %d: %v", id, err)
		return fmt.Errorf("update user %d: %w", id, err)
	}

	c.update(func(s State) State {
		if s.Form.Open && s.Form.Editing && s.Form.TargetID == id {
			return CloseForm(s)
		}
		return s
	})
	return nil
}

// DeleteRecord removes the record right away, restores it if the backend
// rejects the delete, and steps back one page when a non-first page
// becomes empty.
func (c *Controller) DeleteRecord(ctx context.Context, id int64) error {
	c.mu.Lock()
	next, removed, index, ok := RemoveRecord(c.state, id)
	c.state = next
	c.mu.Unlock()
	if ok {
		c.notify()
	}

	if err := c.api.DeleteUser(ctx, id); err != nil {
		if ok {
			c.update(func(s State) State { return ReinsertRecord(s, removed, index) })
		}
		c.logger.Printf("error deleting user %d: %v", id, err)
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	if !ok {
		return nil
	}

	c.mu.Lock()
	next, stepped := StepBackIfEmpty(c.state)
	c.state = next
	page := next.Page
	c.mu.Unlock()

	if stepped {
		c.notify()
		_ = c.LoadPage(ctx, page)
	}
	return nil
}

func (c *Controller) OpenCreateForm() {
	c.update(OpenCreateForm)
}

func (c *Controller) OpenEditForm(id int64) error {
	c.mu.Lock()
	next, err := OpenEditForm(c.state, id)
	c.state = next
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.notify()
	return nil
}

func (c *Controller) CloseForm() {
	c.update(CloseForm)
}

// SaveForm submits the open form as a create or an update.
func (c *Controller) SaveForm(ctx context.Context, name, email string) error {
	c.mu.Lock()
	form := c.state.Form
	if !form.Open {
		c.mu.Unlock()
		return ErrFormClosed
	}
	c.state = FillForm(c.state, name, email)
	c.mu.Unlock()

	if form.Editing {
		return c.UpdateRecord(ctx, form.TargetID, name, email)
	}
	return c.CreateRecord(ctx, name, email)
}

// RecordCreated applies a live creation event unless it echoes a local create.
func (c *Controller) RecordCreated(ctx context.Context, u users.User) {
	c.mu.Lock()
	if c.pending.consume(EventCreated, u) {
		c.mu.Unlock()
		c.logger.Printf("suppressed echo of local create (user %d)", u.ID)
		return
	}
	c.state = ApplyCreated(c.state, u)
	c.mu.Unlock()
	c.notify()
}

// RecordUpdated applies a live update event unless it echoes a local update.
func (c *Controller) RecordUpdated(ctx context.Context, u users.User) {
	c.mu.Lock()
	if c.pending.consume(EventUpdated, u) {
		c.mu.Unlock()
		c.logger.Printf("suppressed echo of local update (user %d)", u.ID)
		return
	}
	c.state = ApplyUpdated(c.state, u)
	c.mu.Unlock()
	c.notify()
}

// RecordDeleted always applies; removing an id that is not shown is a no-op.
func (c *Controller) RecordDeleted(ctx context.Context, id int64) {
	c.mu.Lock()
	next, stepped := ApplyDeleted(c.state, id)
	changed := len(next.Records) != len(c.state.Records)
	c.state = next
	page := next.Page
	c.mu.Unlock()

	if !changed {
		return
	}
	c.notify()
	if stepped {
		_ = c.LoadPage(ctx, page)
	}
}

// PendingWrites reports how many local writes still await their echo.
func (c *Controller) PendingWrites() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.len()
}
