// ABOUTME: In-memory fake of the storefront REST API for tests and local demos
// ABOUTME: Routes with gorilla/mux and exposes hooks to force 401s and failures

package fakeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

const refreshCookieName = "refresh_token"

// Call is one request the server received.
type Call struct {
	Method string
	Path   string
	Body   map[string]interface{}
	Auth   string
	Header http.Header
}

type failure struct {
	status  int
	message string
	data    interface{}
}

// Server is an http.Handler serving the fake API. All state lives in memory.
type Server struct {
	router *mux.Router

	mu            sync.Mutex
	now           func() time.Time
	seq           int
	users         map[string]*User
	passwords     map[string]string // email -> password
	accessTokens  map[string]string // token -> user id
	refreshTokens map[string]string // token -> user id
	cars          map[string]*Car
	carOrder      []string
	brands        map[string]*Brand
	brandOrder    []string
	carts         map[string]map[string]*cartLine // user id -> car id -> line
	orders        map[string]*Order
	orderOrder    []string
	payments      map[string]string // order code -> PAID | PENDING | CANCELLED
	orderCodes    map[string]string // order code -> order id
	nextCode      int64
	calls         []Call
	failures      map[string][]failure // "METHOD /path" -> queued failures
	refreshCalls  int
	refreshDelay  time.Duration
	refreshFails  bool
}

type cartLine struct {
	quantity int
	seq      int
	added    string
	updated  string
}

type ctxKey struct{}

// NewServer returns a server seeded with two brands, three cars, a customer
// (customer@example.com / secret) and an admin (admin@example.com / secret).
func NewServer() *Server {
	s := &Server{
		now:           time.Now,
		users:         make(map[string]*User),
		passwords:     make(map[string]string),
		accessTokens:  make(map[string]string),
		refreshTokens: make(map[string]string),
		cars:          make(map[string]*Car),
		brands:        make(map[string]*Brand),
		carts:         make(map[string]map[string]*cartLine),
		orders:        make(map[string]*Order),
		payments:      make(map[string]string),
		orderCodes:    make(map[string]string),
		nextCode:      100000,
		failures:      make(map[string][]failure),
	}
	s.seed()
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.record, s.injectFailures)

	// Public
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/google", s.handleGoogleURL).Methods(http.MethodGet)
	r.HandleFunc("/auth/verify-email/{token}", s.handleVerifyEmail).Methods(http.MethodPost)
	r.HandleFunc("/auth/resend-verification-email", s.handleResendVerification).Methods(http.MethodPost)
	r.HandleFunc("/cars", s.handleListCars).Methods(http.MethodGet)
	r.HandleFunc("/cars/newest", s.handleNewestCars).Methods(http.MethodGet)
	r.HandleFunc("/cars/{id}", s.handleGetCar).Methods(http.MethodGet)
	r.HandleFunc("/brands", s.handleListBrands).Methods(http.MethodGet)
	r.HandleFunc("/brands/{id}", s.handleGetBrand).Methods(http.MethodGet)
	r.HandleFunc("/payment/check-status/{code}", s.handleCheckPayment).Methods(http.MethodGet)

	// Signed in
	r.Handle("/auth/logout", s.authed(s.handleLogout)).Methods(http.MethodPost)
	r.Handle("/auth/user", s.authed(s.handleMe)).Methods(http.MethodGet)
	r.Handle("/cart/me", s.authed(s.handleGetCart)).Methods(http.MethodGet)
	r.Handle("/cart/add", s.authed(s.handleAddToCart)).Methods(http.MethodPost)
	r.Handle("/cart/remove", s.authed(s.handleRemoveFromCart)).Methods(http.MethodDelete)
	r.Handle("/cart/clear", s.authed(s.handleClearCart)).Methods(http.MethodDelete)
	r.Handle("/order/me", s.authed(s.handleMyOrders)).Methods(http.MethodGet)
	r.Handle("/order/create", s.authed(s.handleCreateOrder)).Methods(http.MethodPost)
	r.Handle("/order/cancel/{id}", s.authed(s.handleCancelOrder)).Methods(http.MethodDelete)
	r.Handle("/order/{id}", s.authed(s.handleGetOrder)).Methods(http.MethodGet)
	r.Handle("/payment/create-link", s.authed(s.handleCreatePaymentLink)).Methods(http.MethodPost)
	r.Handle("/payment/{id}/create-url", s.authed(s.handleCreatePaymentURL)).Methods(http.MethodPost)

	// Admin
	r.Handle("/cars", s.admin(s.handleCreateCar)).Methods(http.MethodPost)
	r.Handle("/cars/{id}", s.admin(s.handleUpdateCar)).Methods(http.MethodPut, http.MethodPost)
	r.Handle("/cars/{id}", s.admin(s.handleDeleteCar)).Methods(http.MethodDelete)
	r.Handle("/brands", s.admin(s.handleCreateBrand)).Methods(http.MethodPost)
	r.Handle("/brands/{id}", s.admin(s.handleUpdateBrand)).Methods(http.MethodPut, http.MethodPost)
	r.Handle("/brands/{id}", s.admin(s.handleDeleteBrand)).Methods(http.MethodDelete)
	r.Handle("/order", s.admin(s.handleListOrders)).Methods(http.MethodGet)
	r.Handle("/admin/orders/{id}/status", s.admin(s.handleUpdateOrderStatus)).Methods(http.MethodPatch)
	r.Handle("/users", s.admin(s.handleListUsers)).Methods(http.MethodGet)
	r.Handle("/users/{id}", s.admin(s.handleGetUser)).Methods(http.MethodGet)
	r.Handle("/users/{id}", s.admin(s.handleUpdateUser)).Methods(http.MethodPut)
	r.Handle("/users/{id}", s.admin(s.handleDeleteUser)).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found", nil)
	})
	return r
}

func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return s.requireAuth(h)
}

func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return s.requireAuth(s.requireAdmin(h))
}

// --- test hooks ---

// ExpireAccessTokens invalidates every issued access token. The next request
// carrying one gets a 401.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTokens = make(map[string]string)
}

// RevokeRefresh makes every subsequent refresh call fail with 401.
func (s *Server) RevokeRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshFails = true
}

// SetRefreshDelay slows the refresh endpoint down so concurrent callers overlap.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// RefreshCalls returns how many times /auth/refresh was hit.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// FailNext queues a failure for the next request matching method and path.
// data is sent as the envelope's data field.
func (s *Server) FailNext(method, path string, status int, message string, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.failures[key] = append(s.failures[key], failure{status: status, message: message, data: data})
}

// Calls returns every recorded request matching method and path. An empty
// method or path matches anything.
func (s *Server) Calls(method, path string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if (method == "" || c.Method == method) && (path == "" || c.Path == path) {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets recorded requests.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// SetPaymentStatus sets the status reported for an order code.
func (s *Server) SetPaymentStatus(code, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[code] = status
}

// SetStock overrides a car's stock.
func (s *Server) SetStock(carID string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cars[carID]; ok {
		c.Stock = stock
	}
}

// CartQuantity returns the server-side quantity of carID in userID's cart.
func (s *Server) CartQuantity(userID, carID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if line, ok := s.carts[userID][carID]; ok {
		return line.quantity
	}
	return 0
}

// IssueSession signs email in directly and returns the access and refresh tokens.
func (s *Server) IssueSession(email string) (access, refresh string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userByEmail(email)
	if u == nil {
		return "", "", fmt.Errorf("no user %s", email)
	}
	access, refresh = s.issueTokensLocked(u.ID)
	return access, refresh, nil
}

// --- middleware ---

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{}
		if r.Body != nil && r.ContentLength != 0 {
			raw := readBody(r)
			_ = json.Unmarshal(raw, &body)
		}
		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Body: body, Auth: r.Header.Get("Authorization"), Header: r.Header.Clone()})
		s.mu.Unlock()
		slog.Debug("fakeapi request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		queued := s.failures[key]
		var f *failure
		if len(queued) > 0 {
			f = &queued[0]
			s.failures[key] = queued[1:]
		}
		s.mu.Unlock()
		if f != nil {
			writeError(w, f.status, f.message, f.data)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		userID, ok := s.accessTokens[token]
		s.mu.Unlock()
		if token == "" || !ok {
			writeError(w, http.StatusUnauthorized, "Unauthenticated", nil)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		u := s.users[userIDFrom(r)]
		s.mu.Unlock()
		if u == nil || u.Role != "admin" {
			writeError(w, http.StatusForbidden, "Forbidden", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

// --- helpers ---

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *Server) issueTokensLocked(userID string) (access, refresh string) {
	access = s.nextID("at")
	refresh = s.nextID("rt")
	s.accessTokens[access] = userID
	s.refreshTokens[refresh] = userID
	return access, refresh
}

func (s *Server) userByEmail(email string) *User {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}
