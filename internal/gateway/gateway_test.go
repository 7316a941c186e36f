// ABOUTME: Tests for the authenticated gateway against the in-memory fake API
// ABOUTME: Covers the shared refresh, single retry, auth-endpoint exemption and sign-out

package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/hiu1412/carshop/internal/fakeapi"
	"github.com/hiu1412/carshop/internal/session"
)

type testEnv struct {
	gw        *Gateway
	fake      *fakeapi.Server
	store     *session.MemoryStore
	signedOut atomic.Int32
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{fake: fakeapi.NewServer(), store: session.NewMemoryStore()}
	srv := httptest.NewServer(env.fake)
	t.Cleanup(srv.Close)

	jar, err := session.NewJar("")
	if err != nil {
		t.Fatalf("NewJar() error = %v", err)
	}
	gw, err := New(Options{
		BaseURL:     srv.URL,
		Credentials: env.store,
		Jar:         jar,
		Timeout:     5 * time.Second,
		OnSignedOut: func(error) { env.signedOut.Add(1) },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.gw = gw
	return env
}

// signIn logs the customer in through the gateway and fills the slot.
func (e *testEnv) signIn(t *testing.T) string {
	t.Helper()
	resp, err := e.gw.Request(context.Background(), http.MethodPost, PathLogin, map[string]string{
		"email":    "customer@example.com",
		"password": "secret",
	}, nil)
	if err != nil {
		t.Fatalf("login error = %v", err)
	}
	var data struct {
		AccessToken string `json:"access_token"`
	}
	if err := resp.DecodeData(&data); err != nil {
		t.Fatalf("DecodeData() error = %v", err)
	}
	if err := e.store.SetToken(&oauth2.Token{AccessToken: data.AccessToken, TokenType: "Bearer"}); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}
	return data.AccessToken
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{Credentials: session.NewMemoryStore()}); err == nil {
		t.Error("expected error for missing base URL")
	}
	if _, err := New(Options{BaseURL: "http://localhost"}); err == nil {
		t.Error("expected error for missing credential store")
	}
}

func TestRequest_AttachesBearer(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t)

	if _, err := env.gw.Request(context.Background(), http.MethodGet, "/cart/me", nil, nil); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	calls := env.fake.Calls(http.MethodGet, "/cart/me")
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].Auth != "Bearer "+token {
		t.Errorf("Authorization = %q, want Bearer %s", calls[0].Auth, token)
	}
}

func TestRequest_AddsLeadingSlash(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.gw.Request(context.Background(), http.MethodGet, "cars", nil, nil); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if n := len(env.fake.Calls(http.MethodGet, "/cars")); n != 1 {
		t.Errorf("got %d calls to /cars, want 1", n)
	}
}

func TestRequest_EmptyPath(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.gw.Request(context.Background(), http.MethodGet, "", nil, nil)
	if !errors.Is(err, ErrEmptyPath) {
		t.Fatalf("error = %v, want ErrEmptyPath", err)
	}
	if n := len(env.fake.Calls("", "")); n != 0 {
		t.Errorf("made %d network calls, want 0", n)
	}
}

func TestRequest_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	env := newTestEnv(t)
	old := env.signIn(t)
	env.fake.SetRefreshDelay(200 * time.Millisecond)
	env.fake.ExpireAccessTokens()

	const n = 8
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := env.gw.Request(ctx, http.MethodGet, "/cart/me", nil, nil)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	if got := env.fake.RefreshCalls(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	tok, _ := env.store.Token()
	if tok == nil || tok.AccessToken == old {
		t.Errorf("slot token = %v, want a refreshed token", tok)
	}
}

func TestRequest_SecondUnauthorizedIsReturned(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	env.fake.FailNext(http.MethodGet, "/order/me", http.StatusUnauthorized, "Unauthenticated", nil)
	env.fake.FailNext(http.MethodGet, "/order/me", http.StatusUnauthorized, "Unauthenticated", nil)

	_, err := env.gw.Request(context.Background(), http.MethodGet, "/order/me", nil, nil)
	if !IsUnauthorized(err) {
		t.Fatalf("error = %v, want 401 APIError", err)
	}
	if n := len(env.fake.Calls(http.MethodGet, "/order/me")); n != 2 {
		t.Errorf("calls = %d, want 2 (no third attempt)", n)
	}
	if got := env.fake.RefreshCalls(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
}

func TestRequest_SilentRefreshOnCartAdd(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	env.fake.ExpireAccessTokens()

	body := map[string]interface{}{"car_id": "car-1", "quantity": 1}
	if _, err := env.gw.Request(context.Background(), http.MethodPost, "/cart/add", body, nil); err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	calls := env.fake.Calls(http.MethodPost, "/cart/add")
	if len(calls) != 2 {
		t.Fatalf("cart/add calls = %d, want 2", len(calls))
	}
	if calls[0].Auth == calls[1].Auth {
		t.Error("retry should carry the refreshed token")
	}
	if calls[1].Body["car_id"] != "car-1" {
		t.Errorf("retry body = %v, want same payload", calls[1].Body)
	}
	if got := env.fake.CartQuantity("user-1", "car-1"); got != 1 {
		t.Errorf("server quantity = %d, want 1", got)
	}
	if env.signedOut.Load() != 0 {
		t.Error("OnSignedOut should not be called on a successful refresh")
	}
}

func TestRequest_AuthEndpointsAreExempt(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)

	_, err := env.gw.Request(context.Background(), http.MethodPost, PathLogin, map[string]string{
		"email":    "customer@example.com",
		"password": "wrong",
	}, nil)
	if !IsUnauthorized(err) {
		t.Fatalf("error = %v, want 401", err)
	}
	if got := env.fake.RefreshCalls(); got != 0 {
		t.Errorf("refresh calls = %d, want 0", got)
	}
	calls := env.fake.Calls(http.MethodPost, PathLogin)
	last := calls[len(calls)-1]
	if last.Auth != "" {
		t.Errorf("login carried Authorization %q", last.Auth)
	}
}

func TestRequest_RefreshFailureSignsOut(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	env.fake.RevokeRefresh()
	env.fake.SetRefreshDelay(200 * time.Millisecond)
	env.fake.ExpireAccessTokens()

	const n = 5
	errs := make([]error, n)
	g := new(errgroup.Group)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, errs[i] = env.gw.Request(context.Background(), http.MethodGet, "/cart/me", nil, nil)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if !errors.Is(err, ErrSessionExpired) {
			t.Errorf("request %d error = %v, want ErrSessionExpired", i, err)
		}
	}
	if got := env.fake.RefreshCalls(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	if tok, _ := env.store.Token(); tok != nil {
		t.Errorf("slot = %v, want cleared", tok)
	}
	if got := env.signedOut.Load(); got != 1 {
		t.Errorf("OnSignedOut calls = %d, want 1", got)
	}

	// Signed out: a stale request is not retried automatically.
	_, err := env.gw.recoverCredentials(context.Background(), &oauth2.Token{AccessToken: "stale"})
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("recoverCredentials() error = %v, want ErrSessionExpired", err)
	}
	if got := env.fake.RefreshCalls(); got != 1 {
		t.Errorf("refresh calls after sign-out = %d, want 1", got)
	}
}

func TestRequest_UsesTokenRefreshedByOthers(t *testing.T) {
	env := newTestEnv(t)
	old := env.signIn(t)
	env.fake.ExpireAccessTokens()

	// Another caller already refreshed: the slot holds a newer token.
	if _, err := env.gw.Request(context.Background(), http.MethodGet, "/cart/me", nil, nil); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	tok, err := env.gw.recoverCredentials(context.Background(), &oauth2.Token{AccessToken: old})
	if err != nil {
		t.Fatalf("recoverCredentials() error = %v", err)
	}
	if tok.AccessToken == old {
		t.Error("expected the newer slot token")
	}
	if got := env.fake.RefreshCalls(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
}

func TestRequest_APIErrorCarriesEnvelope(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)

	_, err := env.gw.Request(context.Background(), http.MethodPost, "/cart/add", map[string]interface{}{"car_id": "car-3", "quantity": 9}, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "Not enough stock" {
		t.Errorf("APIError = %+v", apiErr)
	}
	var data struct {
		Available int `json:"available_stock"`
	}
	if err := apiErr.DecodeData(&data); err != nil || data.Available != 2 {
		t.Errorf("DecodeData() = %+v, %v", data, err)
	}
	if !strings.Contains(apiErr.Error(), "Not enough stock") {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestRequest_NetworkErrorIsImmediate(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gw, err := New(Options{BaseURL: url, Credentials: session.NewMemoryStore()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = gw.Request(context.Background(), http.MethodGet, "/cars", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "cannot connect to backend") {
		t.Errorf("error = %v, want connection error", err)
	}
}

func TestRequest_CanceledContext(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.gw.Request(ctx, http.MethodGet, "/cars", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "request canceled") {
		t.Errorf("error = %v, want request canceled", err)
	}
}

func TestIsAuthEndpoint(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/auth/login", true},
		{"/auth/register", true},
		{"/auth/refresh", true},
		{"/auth/refresh?x=1", true},
		{"/auth/user", false},
		{"/auth/logout", false},
		{"/auth/loginx", false},
		{"/cart/add", false},
	}
	for _, tt := range tests {
		if got := isAuthEndpoint(tt.path); got != tt.want {
			t.Errorf("isAuthEndpoint(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("Cookie", "refresh_token=abc")
	h.Set("Accept", "application/json")

	got := redactHeaders(h)
	if got["Authorization"] == "Bearer secret" || got["Cookie"] == "refresh_token=abc" {
		t.Errorf("sensitive headers not redacted: %v", got)
	}
	if got["Accept"] != "application/json" {
		t.Errorf("Accept = %q", got["Accept"])
	}
}
