// ABOUTME: Debounced per-product quantity updates
// ABOUTME: Each product has at most one scheduled task; a new change replaces it

package cart

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Update tracks one UpdateQuantity call until the server settles it.
type Update struct {
	ProductID string
	Target    int

	origin int
	done   chan struct{}
	err    error
}

func newUpdate(productID string, target, origin int) *Update {
	return &Update{ProductID: productID, Target: target, origin: origin, done: make(chan struct{})}
}

// Done is closed once the update is settled.
func (u *Update) Done() <-chan struct{} { return u.done }

// Err is the outcome. Only valid after Done is closed.
func (u *Update) Err() error { return u.err }

// Wait blocks until the update settles or ctx ends.
func (u *Update) Wait(ctx context.Context) error {
	select {
	case <-u.done:
		return u.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Confirmed is the quantity to display once settled: the target on success,
// otherwise the last confirmed quantity to roll back to.
func (u *Update) Confirmed() int {
	<-u.done
	if u.err == nil {
		return u.Target
	}
	return u.origin
}

func (u *Update) resolve(origin int, err error) {
	u.origin = origin
	u.err = err
	close(u.done)
}

type task struct {
	ctx    context.Context
	id     string
	origin int
	target int
	timer  *time.Timer
	update *Update
}

type flight struct {
	done chan struct{}
}

// UpdateQuantity moves productID from origin to target after the debounce
// window. Calls for the same product inside the window replace each other and
// keep the first call's origin, so one request carries the whole change. Once
// the manager has confirmed a quantity for productID, that quantity wins over
// the caller's origin.
//
// The cache is never written optimistically. When the returned Update fails,
// the caller rolls its display back to Confirmed().
func (m *Manager) UpdateQuantity(ctx context.Context, productID string, target, origin int) (*Update, error) {
	if target < 1 {
		return nil, ErrInvalidQuantity
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	if prev, ok := m.pending[productID]; ok {
		prev.timer.Stop()
		delete(m.pending, productID)
		origin = prev.origin
		prev.update.resolve(m.known(productID, prev.origin), ErrSuperseded)
	}
	baseline := m.known(productID, origin)

	u := newUpdate(productID, target, baseline)
	_, sending := m.inflight[productID]
	if target == baseline && !sending {
		u.resolve(baseline, nil)
		return u, nil
	}

	t := &task{ctx: ctx, id: productID, origin: baseline, target: target, update: u}
	t.timer = time.AfterFunc(m.debounce, func() { m.fire(t) })
	m.pending[productID] = t
	return u, nil
}

// known is the last quantity the server confirmed for id, or fallback when
// nothing has been confirmed yet. Callers hold m.mu.
func (m *Manager) known(id string, fallback int) int {
	if q, ok := m.confirmed[id]; ok {
		return q
	}
	return fallback
}

// fire sends t's delta. A change whose predecessor for the same product is
// still in flight waits for it. Every delta is measured against the confirmed
// record at send time.
func (m *Manager) fire(t *task) {
	m.mu.Lock()
	if m.pending[t.id] != t {
		m.mu.Unlock()
		return
	}
	delete(m.pending, t.id)
	prev := m.inflight[t.id]
	fl := &flight{done: make(chan struct{})}
	m.inflight[t.id] = fl
	m.mu.Unlock()

	if prev != nil {
		<-prev.done
	}
	m.mu.Lock()
	baseline := m.known(t.id, t.origin)
	m.mu.Unlock()

	delta := t.target - baseline
	var err error
	switch {
	case delta > 0:
		err = m.send(t.ctx, "add to cart", http.MethodPost, PathAdd, t.id, delta)
	case delta < 0:
		err = m.send(t.ctx, "remove from cart", http.MethodDelete, PathRemove, t.id, -delta)
	}
	slog.Debug("Quantity update settled", "product_id", t.id, "origin", baseline, "target", t.target, "delta", delta, "ok", err == nil)

	m.mu.Lock()
	var missing *NotInCartError
	switch {
	case err == nil:
		m.confirmed[t.id] = t.target
	case errors.As(err, &missing):
		// The line is gone; the next load says what is left.
		delete(m.confirmed, t.id)
	default:
		m.confirmed[t.id] = baseline
	}
	if m.inflight[t.id] == fl {
		delete(m.inflight, t.id)
	}
	m.mu.Unlock()
	close(fl.done)
	t.update.resolve(baseline, err)
}

// settle cancels scheduled updates for the products match accepts and waits
// for their requests already on the wire. Cancelled updates fail with
// ErrSuperseded.
func (m *Manager) settle(ctx context.Context, match func(id string) bool) error {
	m.mu.Lock()
	var waits []<-chan struct{}
	for id, t := range m.pending {
		if !match(id) {
			continue
		}
		t.timer.Stop()
		delete(m.pending, id)
		t.update.resolve(m.known(id, t.origin), ErrSuperseded)
	}
	for id, fl := range m.inflight {
		if match(id) {
			waits = append(waits, fl.done)
		}
	}
	m.mu.Unlock()
	return waitAll(ctx, waits)
}

// Flush sends every scheduled update now and waits until all updates,
// scheduled or already sent, have settled.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	var waits []<-chan struct{}
	for _, t := range m.pending {
		waits = append(waits, t.update.done)
		if t.timer.Stop() {
			go m.fire(t)
		}
	}
	for _, fl := range m.inflight {
		waits = append(waits, fl.done)
	}
	m.mu.Unlock()
	return waitAll(ctx, waits)
}

func waitAll(ctx context.Context, waits []<-chan struct{}) error {
	for _, ch := range waits {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
