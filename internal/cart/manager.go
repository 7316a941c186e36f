// ABOUTME: Cart consistency manager mirroring the server-authoritative cart
// ABOUTME: Caches confirmed state only and collapses quantity bursts per product

package cart

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/hiu1412/carshop/internal/cache"
	"github.com/hiu1412/carshop/internal/gateway"
)

// Cart API paths.
const (
	PathCart   = "/cart/me"
	PathAdd    = "/cart/add"
	PathRemove = "/cart/remove"
	PathClear  = "/cart/clear"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultCacheTTL = 30 * time.Second

	cartKey = "cart"
)

// Requester issues API calls. *gateway.Gateway satisfies it.
type Requester interface {
	Request(ctx context.Context, method, path string, body interface{}, headers map[string]string) (*gateway.Response, error)
}

// Notifier receives user-visible failures that are not returned to a caller
// directly, such as a failed cart load.
type Notifier interface {
	Notify(err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(err error)

func (f NotifierFunc) Notify(err error) { f(err) }

type logNotifier struct{}

func (logNotifier) Notify(err error) {
	slog.Warn("Cart failure", "error", err)
}

// Options configures a Manager.
type Options struct {
	// Debounce is the per-product quiescence window (default 500ms).
	Debounce time.Duration
	// CacheTTL bounds how long a confirmed cart snapshot is served (default
	// 30s). A negative value disables the snapshot so every read hits the
	// server.
	CacheTTL time.Duration
	// Notifier receives GetCart failures (default: logged).
	Notifier Notifier
}

// Manager owns the client view of one user's cart.
type Manager struct {
	req      Requester
	cache    *cache.Cache[[]Item]
	loads    singleflight.Group
	notifier Notifier
	debounce time.Duration

	mu       sync.Mutex
	gen      uint64
	pending   map[string]*task   // scheduled, not yet sent
	inflight  map[string]*flight // sent, awaiting the server
	confirmed map[string]int     // last quantity the server confirmed
	closed    bool
}

// New creates a manager issuing calls through req.
func New(req Requester, opts Options) *Manager {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	switch {
	case opts.CacheTTL == 0:
		opts.CacheTTL = DefaultCacheTTL
	case opts.CacheTTL < 0:
		opts.CacheTTL = 0
	}
	if opts.Notifier == nil {
		opts.Notifier = logNotifier{}
	}
	return &Manager{
		req:      req,
		cache:    cache.New[[]Item](opts.CacheTTL, 0),
		notifier: opts.Notifier,
		debounce: opts.Debounce,
		pending:   make(map[string]*task),
		inflight:  make(map[string]*flight),
		confirmed: make(map[string]int),
	}
}

// GetCart returns the confirmed cart lines. It never returns a nil slice: on
// failure it returns an empty list with the error, and reports every failure
// except ErrNotAuthenticated to the Notifier.
func (m *Manager) GetCart(ctx context.Context) ([]Item, error) {
	if items, ok := m.cache.Get(cartKey); ok {
		return cloneItems(items), nil
	}

	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	v, err, _ := m.loads.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		items, err := m.fetch(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		// A mutation confirmed after this load started makes it stale.
		if m.gen == gen {
			m.cache.Set(cartKey, items)
			m.record(items)
		}
		m.mu.Unlock()
		return items, nil
	})
	if err != nil {
		err = classify("load cart", "", err)
		if !errors.Is(err, ErrNotAuthenticated) {
			m.notifier.Notify(err)
		}
		return []Item{}, err
	}
	return cloneItems(v.([]Item)), nil
}

// record takes the quantities of a fresh load as confirmed, except for
// products with a request still on the wire. Callers hold m.mu.
func (m *Manager) record(items []Item) {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		seen[it.ProductID] = true
		if _, busy := m.inflight[it.ProductID]; !busy {
			m.confirmed[it.ProductID] = it.Quantity
		}
	}
	for id := range m.confirmed {
		if _, busy := m.inflight[id]; !busy && !seen[id] {
			delete(m.confirmed, id)
		}
	}
}

func (m *Manager) fetch(ctx context.Context) ([]Item, error) {
	resp, err := m.req.Request(ctx, http.MethodGet, PathCart, nil, nil)
	if err != nil {
		return nil, err
	}
	var data wireCart
	if err := resp.DecodeData(&data); err != nil {
		return nil, err
	}
	return data.toItems()
}

// TotalItems is the number of distinct lines in the current cart.
func (m *Manager) TotalItems(ctx context.Context) (int, error) {
	items, err := m.GetCart(ctx)
	return TotalItems(items), err
}

// TotalPrice is recomputed from the current lines on every call.
func (m *Manager) TotalPrice(ctx context.Context) (decimal.Decimal, error) {
	items, err := m.GetCart(ctx)
	return TotalPrice(items), err
}

// AddItem adds quantity units of productID. Use 1 for a single unit.
func (m *Manager) AddItem(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if m.isClosed() {
		return ErrClosed
	}
	err := m.send(ctx, "add to cart", http.MethodPost, PathAdd, productID, quantity)
	if err == nil {
		m.adjust(productID, quantity)
	}
	return err
}

// RemoveItem removes quantity units of productID, dropping the line when it
// reaches zero. Quantity updates still scheduled for productID are cancelled
// and updates already sent are waited for first.
func (m *Manager) RemoveItem(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if m.isClosed() {
		return ErrClosed
	}
	if err := m.settle(ctx, func(id string) bool { return id == productID }); err != nil {
		return err
	}
	err := m.send(ctx, "remove from cart", http.MethodDelete, PathRemove, productID, quantity)
	if err == nil {
		m.adjust(productID, -quantity)
	}
	return err
}

// RemoveLine drops productID from the cart whatever its quantity. Like
// RemoveItem it first cancels or waits out quantity updates for the product,
// then removes the quantity a fresh load reports.
func (m *Manager) RemoveLine(ctx context.Context, productID string) error {
	if m.isClosed() {
		return ErrClosed
	}
	if err := m.settle(ctx, func(id string) bool { return id == productID }); err != nil {
		return err
	}
	m.invalidate()
	items, err := m.GetCart(ctx)
	if err != nil {
		return err
	}
	it, ok := Find(items, productID)
	if !ok || it.Quantity < 1 {
		return &NotInCartError{ProductID: productID}
	}
	if err := m.send(ctx, "remove from cart", http.MethodDelete, PathRemove, productID, it.Quantity); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.confirmed, productID)
	m.mu.Unlock()
	return nil
}

// adjust moves a confirmed record by delta after a direct add or remove.
func (m *Manager) adjust(productID string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.confirmed[productID]
	if !ok {
		return
	}
	if q += delta; q > 0 {
		m.confirmed[productID] = q
	} else {
		delete(m.confirmed, productID)
	}
}

func (m *Manager) send(ctx context.Context, op, method, path, productID string, quantity int) error {
	body := map[string]interface{}{"car_id": productID, "quantity": quantity}
	if _, err := m.req.Request(ctx, method, path, body, nil); err != nil {
		err = classify(op, productID, err)
		// The server disagreed with our view of stock or lines.
		if IsBusinessRule(err) {
			m.invalidate()
		}
		slog.Debug("Cart change rejected", "op", op, "product_id", productID, "quantity", quantity, "error", err)
		return err
	}
	m.invalidate()
	slog.Debug("Cart change confirmed", "op", op, "product_id", productID, "quantity", quantity)
	return nil
}

// ClearCart removes every line. Scheduled quantity updates are cancelled and
// updates already sent are waited for first.
func (m *Manager) ClearCart(ctx context.Context) error {
	if m.isClosed() {
		return ErrClosed
	}
	if err := m.settle(ctx, func(string) bool { return true }); err != nil {
		return err
	}
	if _, err := m.req.Request(ctx, http.MethodDelete, PathClear, nil, nil); err != nil {
		return classify("clear cart", "", err)
	}
	m.mu.Lock()
	m.confirmed = make(map[string]int)
	m.mu.Unlock()
	m.invalidate()
	return nil
}

// Invalidate drops the cached snapshot so the next read hits the server.
func (m *Manager) Invalidate() {
	m.invalidate()
}

func (m *Manager) invalidate() {
	m.mu.Lock()
	m.gen++
	m.cache.Invalidate(cartKey)
	m.mu.Unlock()
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close stops accepting new work, then sends pending updates and waits for
// them.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	err := m.Flush(ctx)
	m.cache.Close()
	return err
}
