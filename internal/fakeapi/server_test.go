// ABOUTME: Tests for the fake storefront API
// ABOUTME: Checks the auth cookie flow, cart errors and hooks used by other packages' tests

package fakeapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
)

type envelope struct {
	Status  string          `json:"status"`
	Message json.RawMessage `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestClient(t *testing.T) (*httptest.Server, *Server, *http.Client) {
	t.Helper()
	fake := NewServer()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return srv, fake, &http.Client{Jar: jar}
}

func call(t *testing.T, c *http.Client, method, url, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, env
}

func login(t *testing.T, srv *httptest.Server, c *http.Client) string {
	t.Helper()
	status, env := call(t, c, http.MethodPost, srv.URL+"/auth/login", "", map[string]string{
		"email": "customer@example.com", "password": "secret",
	})
	if status != http.StatusOK {
		t.Fatalf("login status = %d", status)
	}
	var data struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.AccessToken == "" {
		t.Fatalf("login data = %s (%v)", env.Data, err)
	}
	return data.AccessToken
}

func TestLoginAndRefreshCookie(t *testing.T) {
	srv, fake, c := newTestClient(t)
	token := login(t, srv, c)

	fake.ExpireAccessTokens()
	if status, _ := call(t, c, http.MethodGet, srv.URL+"/cart/me", token, nil); status != http.StatusUnauthorized {
		t.Fatalf("expired token status = %d, want 401", status)
	}

	status, env := call(t, c, http.MethodPost, srv.URL+"/auth/refresh", "", map[string]string{})
	if status != http.StatusOK {
		t.Fatalf("refresh status = %d", status)
	}
	var data struct {
		AccessToken string `json:"access_token"`
	}
	_ = json.Unmarshal(env.Data, &data)
	if status, _ := call(t, c, http.MethodGet, srv.URL+"/cart/me", data.AccessToken, nil); status != http.StatusOK {
		t.Fatalf("refreshed token status = %d", status)
	}
	if fake.RefreshCalls() != 1 {
		t.Errorf("RefreshCalls() = %d, want 1", fake.RefreshCalls())
	}
}

func TestRefreshWithoutCookie(t *testing.T) {
	srv, _, c := newTestClient(t)
	if status, _ := call(t, c, http.MethodPost, srv.URL+"/auth/refresh", "", nil); status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}

func TestRevokeRefresh(t *testing.T) {
	srv, fake, c := newTestClient(t)
	login(t, srv, c)
	fake.RevokeRefresh()
	if status, _ := call(t, c, http.MethodPost, srv.URL+"/auth/refresh", "", nil); status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}

func TestAddToCartStockExceeded(t *testing.T) {
	srv, _, c := newTestClient(t)
	token := login(t, srv, c)

	status, env := call(t, c, http.MethodPost, srv.URL+"/cart/add", token, map[string]interface{}{"car_id": "car-3", "quantity": 5})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if string(env.Message) != `"Not enough stock"` {
		t.Errorf("message = %s", env.Message)
	}
	var data map[string]int
	_ = json.Unmarshal(env.Data, &data)
	if data["available_stock"] != 2 || data["current_quantity"] != 0 || data["requested_quantity"] != 5 {
		t.Errorf("data = %v", data)
	}
}

func TestRemoveMissingLine(t *testing.T) {
	srv, _, c := newTestClient(t)
	token := login(t, srv, c)

	status, env := call(t, c, http.MethodDelete, srv.URL+"/cart/remove", token, map[string]interface{}{"car_id": "car-1", "quantity": 1})
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if string(env.Message) != `"Car not found in cart"` {
		t.Errorf("message = %s", env.Message)
	}
}

func TestCartAddRemove(t *testing.T) {
	srv, fake, c := newTestClient(t)
	token := login(t, srv, c)

	call(t, c, http.MethodPost, srv.URL+"/cart/add", token, map[string]interface{}{"car_id": "car-1", "quantity": 3})
	call(t, c, http.MethodDelete, srv.URL+"/cart/remove", token, map[string]interface{}{"car_id": "car-1", "quantity": 1})
	if got := fake.CartQuantity("user-1", "car-1"); got != 2 {
		t.Errorf("quantity = %d, want 2", got)
	}
	call(t, c, http.MethodDelete, srv.URL+"/cart/remove", token, map[string]interface{}{"car_id": "car-1"})
	if got := fake.CartQuantity("user-1", "car-1"); got != 0 {
		t.Errorf("quantity after full remove = %d, want 0", got)
	}
}

func TestFailNext(t *testing.T) {
	srv, fake, c := newTestClient(t)
	fake.FailNext(http.MethodGet, "/cars", http.StatusInternalServerError, "boom", nil)

	if status, _ := call(t, c, http.MethodGet, srv.URL+"/cars", "", nil); status != http.StatusInternalServerError {
		t.Errorf("first status = %d, want 500", status)
	}
	if status, _ := call(t, c, http.MethodGet, srv.URL+"/cars", "", nil); status != http.StatusOK {
		t.Errorf("second status = %d, want 200", status)
	}
	if n := len(fake.Calls(http.MethodGet, "/cars")); n != 2 {
		t.Errorf("recorded %d calls, want 2", n)
	}
}

func TestOrderAndPaymentFlow(t *testing.T) {
	srv, fake, c := newTestClient(t)
	token := login(t, srv, c)

	call(t, c, http.MethodPost, srv.URL+"/cart/add", token, map[string]interface{}{"car_id": "car-2", "quantity": 2})
	status, env := call(t, c, http.MethodPost, srv.URL+"/order/create", token, map[string]string{"type": "cart"})
	if status != http.StatusCreated {
		t.Fatalf("create order status = %d", status)
	}
	var created struct {
		Order Order `json:"order"`
	}
	_ = json.Unmarshal(env.Data, &created)
	if created.Order.TotalPrice != "50001.00" {
		t.Errorf("total = %s, want 50001.00", created.Order.TotalPrice)
	}
	if got := fake.CartQuantity("user-1", "car-2"); got != 0 {
		t.Errorf("cart not emptied, quantity = %d", got)
	}

	_, env = call(t, c, http.MethodPost, srv.URL+"/payment/create-link", token, map[string]interface{}{
		"order_id": created.Order.ID, "amount": 50001,
	})
	var code int64
	if err := json.Unmarshal(env.Data, &code); err != nil || code == 0 {
		t.Fatalf("order code = %s (%v)", env.Data, err)
	}

	fake.SetPaymentStatus(jsonString(code), PaymentPaid)
	_, env = call(t, c, http.MethodGet, srv.URL+"/payment/check-status/"+jsonString(code), "", nil)
	var ps struct {
		Status string `json:"status"`
	}
	_ = json.Unmarshal(env.Message, &ps)
	if ps.Status != PaymentPaid {
		t.Errorf("payment status = %q, want PAID", ps.Status)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	srv, _, c := newTestClient(t)
	token := login(t, srv, c)
	if status, _ := call(t, c, http.MethodGet, srv.URL+"/users", token, nil); status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", status)
	}
}

func jsonString(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
