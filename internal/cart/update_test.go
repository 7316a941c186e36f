// ABOUTME: Ordering tests for the cart manager using a gated stub requester
// ABOUTME: Covers load collapsing, stale loads and changes queued behind an in-flight delta

package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/hiu1412/carshop/internal/gateway"
)

type stubCall struct {
	method   string
	path     string
	quantity int
}

// stubRequester records calls and lets a test hold them until released.
type stubRequester struct {
	mu      sync.Mutex
	calls   []stubCall
	started chan stubCall
	gate    chan error // nil: answer immediately
	cart    string
}

func newStub() *stubRequester {
	return &stubRequester{started: make(chan stubCall, 16), cart: `{"status":"success","data":{"cart":[]}}`}
}

func (s *stubRequester) Request(ctx context.Context, method, path string, body interface{}, headers map[string]string) (*gateway.Response, error) {
	c := stubCall{method: method, path: path}
	if m, ok := body.(map[string]interface{}); ok {
		c.quantity, _ = m["quantity"].(int)
	}
	s.mu.Lock()
	s.calls = append(s.calls, c)
	gate := s.gate
	cart := s.cart
	s.mu.Unlock()
	s.started <- c

	if gate != nil {
		if err := <-gate; err != nil {
			return nil, err
		}
	}
	if path == PathCart {
		return &gateway.Response{StatusCode: http.StatusOK, Body: []byte(cart)}, nil
	}
	return &gateway.Response{StatusCode: http.StatusOK, Body: []byte(`{"status":"success","data":null}`)}, nil
}

func (s *stubRequester) hold() {
	s.mu.Lock()
	s.gate = make(chan error)
	s.mu.Unlock()
}

func (s *stubRequester) release(err error) {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	gate <- err
}

func (s *stubRequester) recorded() []stubCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stubCall(nil), s.calls...)
}

func waitStarted(t *testing.T, s *stubRequester) stubCall {
	t.Helper()
	select {
	case c := <-s.started:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no request started")
		return stubCall{}
	}
}

func cartBody(quantity int) string {
	return fmt.Sprintf(`{"status":"success","data":{"cart":[{"id":"c1","cars":[{"id":"car-1","model":"Camry","price":"100.00","pivot":{"quantity":%d}}]}]}}`, quantity)
}

func TestGetCart_ConcurrentLoadsShareOneRequest(t *testing.T) {
	stub := newStub()
	stub.cart = cartBody(2)
	stub.hold()
	m := New(stub, Options{CacheTTL: time.Minute})

	var wg sync.WaitGroup
	results := make([][]Item, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = m.GetCart(context.Background())
		}()
	}
	waitStarted(t, stub)
	time.Sleep(50 * time.Millisecond)
	stub.release(nil)
	wg.Wait()

	if n := len(stub.recorded()); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
	for i, items := range results {
		if len(items) != 1 || items[0].Quantity != 2 {
			t.Errorf("result %d = %+v", i, items)
		}
	}
}

func TestGetCart_StaleLoadIsNotCached(t *testing.T) {
	stub := newStub()
	stub.cart = cartBody(1)
	stub.hold()
	m := New(stub, Options{CacheTTL: time.Minute})

	done := make(chan struct{})
	go func() {
		_, _ = m.GetCart(context.Background())
		close(done)
	}()
	waitStarted(t, stub)

	// A mutation is confirmed while the load is in flight.
	m.Invalidate()
	stub.release(nil)
	<-done

	stub.mu.Lock()
	stub.gate = nil
	stub.cart = cartBody(3)
	stub.mu.Unlock()

	items, err := m.GetCart(context.Background())
	if err != nil {
		t.Fatalf("GetCart() error = %v", err)
	}
	if len(items) != 1 || items[0].Quantity != 3 {
		t.Errorf("items = %+v, want the fresh quantity 3", items)
	}
	if n := len(stub.recorded()); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
}

func TestUpdateQuantity_WaitsForInFlightDelta(t *testing.T) {
	stub := newStub()
	stub.hold()
	m := New(stub, Options{Debounce: 10 * time.Millisecond})
	ctx := context.Background()

	first, _ := m.UpdateQuantity(ctx, "car-1", 3, 2)
	if c := waitStarted(t, stub); c.path != PathAdd || c.quantity != 1 {
		t.Fatalf("first call = %+v, want add 1", c)
	}

	// The display already shows 3; the user goes back down to 2.
	second, _ := m.UpdateQuantity(ctx, "car-1", 2, 3)
	time.Sleep(50 * time.Millisecond)
	if n := len(stub.recorded()); n != 1 {
		t.Fatalf("second change sent before the first settled (%d calls)", n)
	}

	go stub.release(nil) // first succeeds: confirmed is now 3
	if c := waitStarted(t, stub); c.path != PathRemove || c.quantity != 1 {
		t.Fatalf("second call = %+v, want remove 1", c)
	}
	stub.release(nil)

	if err := first.Wait(ctx); err != nil {
		t.Errorf("first error = %v", err)
	}
	if err := second.Wait(ctx); err != nil {
		t.Errorf("second error = %v", err)
	}
	if second.Confirmed() != 2 {
		t.Errorf("Confirmed() = %d, want 2", second.Confirmed())
	}
}

func TestUpdateQuantity_InFlightFailureResetsBaseline(t *testing.T) {
	stub := newStub()
	stub.hold()
	m := New(stub, Options{Debounce: 10 * time.Millisecond})
	ctx := context.Background()

	first, _ := m.UpdateQuantity(ctx, "car-1", 3, 2)
	waitStarted(t, stub)
	second, _ := m.UpdateQuantity(ctx, "car-1", 2, 3)
	time.Sleep(50 * time.Millisecond)

	stub.release(errors.New("connection reset"))

	if err := first.Wait(ctx); err == nil {
		t.Error("first update should fail")
	}
	if first.Confirmed() != 2 {
		t.Errorf("first Confirmed() = %d, want rollback to 2", first.Confirmed())
	}
	// Confirmed is back at 2, which is the second target: nothing to send.
	if err := second.Wait(ctx); err != nil {
		t.Errorf("second error = %v", err)
	}
	if n := len(stub.recorded()); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestUpdateQuantity_StaleOriginWhileFirstInFlight(t *testing.T) {
	stub := newStub()
	stub.hold()
	m := New(stub, Options{Debounce: 10 * time.Millisecond})
	ctx := context.Background()

	first, _ := m.UpdateQuantity(ctx, "car-1", 3, 2)
	waitStarted(t, stub)

	// The caller still believes 2 is confirmed.
	second, _ := m.UpdateQuantity(ctx, "car-1", 4, 2)
	time.Sleep(50 * time.Millisecond)

	go stub.release(nil)
	if c := waitStarted(t, stub); c.path != PathAdd || c.quantity != 1 {
		t.Fatalf("second call = %+v, want add 1", c)
	}
	stub.release(nil)

	if err := first.Wait(ctx); err != nil {
		t.Errorf("first error = %v", err)
	}
	if err := second.Wait(ctx); err != nil {
		t.Errorf("second error = %v", err)
	}
}

func TestUpdateQuantity_StaleOriginAfterFirstSettled(t *testing.T) {
	stub := newStub()
	stub.hold()
	m := New(stub, Options{Debounce: 100 * time.Millisecond})
	ctx := context.Background()

	first, _ := m.UpdateQuantity(ctx, "car-1", 3, 2)
	waitStarted(t, stub)

	// Scheduled while the first is on the wire, fired after it settled.
	second, _ := m.UpdateQuantity(ctx, "car-1", 4, 2)
	stub.release(nil)
	if err := first.Wait(ctx); err != nil {
		t.Fatalf("first error = %v", err)
	}

	if c := waitStarted(t, stub); c.path != PathAdd || c.quantity != 1 {
		t.Fatalf("second call = %+v, want add 1", c)
	}
	stub.release(nil)
	if err := second.Wait(ctx); err != nil {
		t.Errorf("second error = %v", err)
	}
	if second.Confirmed() != 4 {
		t.Errorf("Confirmed() = %d, want 4", second.Confirmed())
	}
}

func TestUpdateQuantity_FailedFirstSettledBeforeSecondFires(t *testing.T) {
	stub := newStub()
	stub.hold()
	m := New(stub, Options{Debounce: 100 * time.Millisecond})
	ctx := context.Background()

	first, _ := m.UpdateQuantity(ctx, "car-1", 3, 2)
	waitStarted(t, stub)
	second, _ := m.UpdateQuantity(ctx, "car-1", 2, 3)
	stub.release(errors.New("connection reset"))
	if err := first.Wait(ctx); err == nil {
		t.Fatal("first update should fail")
	}

	// The server is still at 2, the second target: nothing to send.
	if err := second.Wait(ctx); err != nil {
		t.Errorf("second error = %v", err)
	}
	if n := len(stub.recorded()); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}

	// A later change from the same stale view is measured from 2 as well.
	third, _ := m.UpdateQuantity(ctx, "car-1", 2, 3)
	if err := third.Wait(ctx); err != nil {
		t.Errorf("third error = %v", err)
	}
	if n := len(stub.recorded()); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestRemoveItem_WaitsForSentUpdate(t *testing.T) {
	stub := newStub()
	stub.hold()
	m := New(stub, Options{Debounce: 10 * time.Millisecond})
	ctx := context.Background()

	u, _ := m.UpdateQuantity(ctx, "car-1", 3, 2)
	waitStarted(t, stub)

	removed := make(chan error, 1)
	go func() { removed <- m.RemoveItem(ctx, "car-1", 3) }()
	time.Sleep(50 * time.Millisecond)
	if n := len(stub.recorded()); n != 1 {
		t.Fatalf("remove sent before the update settled (%d calls)", n)
	}

	go stub.release(nil)
	if c := waitStarted(t, stub); c.path != PathRemove || c.quantity != 3 {
		t.Fatalf("second call = %+v, want remove 3", c)
	}
	stub.release(nil)
	if err := <-removed; err != nil {
		t.Errorf("RemoveItem() error = %v", err)
	}
	if err := u.Wait(ctx); err != nil {
		t.Errorf("update error = %v", err)
	}
}

func TestClose_RejectsUpdatesWhileFlushing(t *testing.T) {
	stub := newStub()
	stub.hold()
	m := New(stub, Options{Debounce: time.Hour})
	ctx := context.Background()

	u, _ := m.UpdateQuantity(ctx, "car-1", 3, 2)
	closed := make(chan error, 1)
	go func() { closed <- m.Close(ctx) }()
	waitStarted(t, stub)

	if _, err := m.UpdateQuantity(ctx, "car-2", 2, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("UpdateQuantity() during Close error = %v, want ErrClosed", err)
	}
	stub.release(nil)
	if err := <-closed; err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := u.Err(); err != nil {
		t.Errorf("flushed update error = %v", err)
	}
	if n := len(stub.recorded()); n != 1 {
		t.Errorf("requests = %d, want only the flushed update", n)
	}
}

func TestUpdateQuantity_ProductsAreIndependent(t *testing.T) {
	stub := newStub()
	m := New(stub, Options{Debounce: 20 * time.Millisecond})
	ctx := context.Background()

	a, _ := m.UpdateQuantity(ctx, "car-1", 2, 1)
	b, _ := m.UpdateQuantity(ctx, "car-2", 3, 1)
	if err := a.Wait(ctx); err != nil {
		t.Errorf("car-1 error = %v", err)
	}
	if err := b.Wait(ctx); err != nil {
		t.Errorf("car-2 error = %v", err)
	}
	if n := len(stub.recorded()); n != 2 {
		t.Errorf("requests = %d, want one per product", n)
	}
}

func TestClassify(t *testing.T) {
	stockData, _ := json.Marshal(map[string]int{"available_stock": 3, "current_quantity": 1, "requested_quantity": 5})
	tests := []struct {
		name string
		err  error
		want func(error) bool
	}{
		{"stock", &gateway.APIError{StatusCode: 400, Message: "Not enough stock", Data: stockData}, func(err error) bool {
			var e *StockExceededError
			return errors.As(err, &e) && e.Available == 3 && e.Current == 1 && e.Requested == 5
		}},
		{"not in cart", &gateway.APIError{StatusCode: 404, Message: "Car not found in cart"}, func(err error) bool {
			var e *NotInCartError
			return errors.As(err, &e)
		}},
		{"session expired", fmt.Errorf("wrapped: %w", gateway.ErrSessionExpired), func(err error) bool {
			return errors.Is(err, ErrNotAuthenticated)
		}},
		{"unauthorized", &gateway.APIError{StatusCode: 401}, func(err error) bool {
			return errors.Is(err, ErrNotAuthenticated)
		}},
		{"stock without data", &gateway.APIError{StatusCode: 400, Message: "Not enough stock"}, func(err error) bool {
			var e *StockExceededError
			return errors.As(err, &e) && IsBusinessRule(err) && e.Requested == 0
		}},
		{"stock with malformed data", &gateway.APIError{StatusCode: 400, Message: "Not enough stock", Data: json.RawMessage(`"sold out"`)}, func(err error) bool {
			var e *StockExceededError
			return errors.As(err, &e) && e.ProductID == "car-1"
		}},
		{"generic", errors.New("boom"), func(err error) bool {
			var e *Error
			return errors.As(err, &e) && !IsBusinessRule(err)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("add to cart", "car-1", tt.err)
			if !tt.want(got) {
				t.Errorf("classify() = %T %v", got, got)
			}
		})
	}
}
