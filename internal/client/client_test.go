// ABOUTME: Tests for the storefront API client
// ABOUTME: Runs against the in-memory fake API through a real gateway

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hiu1412/carshop/internal/fakeapi"
	"github.com/hiu1412/carshop/internal/gateway"
	"github.com/hiu1412/carshop/internal/session"
)

func newTestClient(t *testing.T) (*Client, *fakeapi.Server) {
	t.Helper()
	fake := fakeapi.NewServer()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	sess := session.NewInMemory()
	gw, err := gateway.New(gateway.Options{
		BaseURL:     server.URL,
		Credentials: sess.Credentials(),
		Jar:         sess.Jar(),
		Timeout:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("gateway.New() error = %v", err)
	}
	c := New(gw, Options{Session: sess})
	t.Cleanup(c.Close)
	return c, fake
}

func login(t *testing.T, c *Client, email string) *User {
	t.Helper()
	u, err := c.Login(context.Background(), email, "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return u
}

func TestLogin_FillsSession(t *testing.T) {
	c, _ := newTestClient(t)
	u := login(t, c, "customer@example.com")

	if u.Role != RoleCustomer {
		t.Errorf("expected role customer, got %s", u.Role)
	}
	if !c.Session().SignedIn() {
		t.Error("expected session to be signed in")
	}
	p, err := c.Session().Profile()
	if err != nil || p == nil || p.Email != "customer@example.com" {
		t.Errorf("profile = %+v, %v", p, err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	c, fake := newTestClient(t)
	_, err := c.Login(context.Background(), "customer@example.com", "nope")
	if !gateway.IsUnauthorized(err) {
		t.Fatalf("expected 401, got %v", err)
	}
	if c.Session().SignedIn() {
		t.Error("expected no session after failed login")
	}
	if fake.RefreshCalls() != 0 {
		t.Error("failed login must not trigger a refresh")
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.Register(context.Background(), RegisterInput{
		FullName:             "New User",
		Email:                "customer@example.com",
		Password:             "secret1",
		PasswordConfirmation: "secret2",
	})
	var apiErr *gateway.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", apiErr.StatusCode)
	}
	if len(apiErr.Errors["email"]) == 0 || len(apiErr.Errors["password"]) == 0 {
		t.Errorf("expected email and password errors, got %v", apiErr.Errors)
	}
}

func TestRegister_SignsIn(t *testing.T) {
	c, _ := newTestClient(t)
	u, err := c.Register(context.Background(), RegisterInput{
		FullName:             "New User",
		Email:                "new@example.com",
		Password:             "secret1",
		PasswordConfirmation: "secret1",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if u.Verified() {
		t.Error("new account should not be verified yet")
	}
	if !c.Session().SignedIn() {
		t.Error("expected session after register")
	}

	if err := c.VerifyEmail(context.Background(), "new@example.com", "token-123"); err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}
	me, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if !me.Verified() {
		t.Error("expected verified account")
	}
}

func TestLogout_EndsSessionEvenOnServerFailure(t *testing.T) {
	c, fake := newTestClient(t)
	login(t, c, "customer@example.com")
	fake.FailNext(http.MethodPost, "/auth/logout", http.StatusInternalServerError, "boom", nil)

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if c.Session().SignedIn() {
		t.Error("expected session to be ended")
	}
}

func TestSilentRefreshKeepsSessionAlive(t *testing.T) {
	c, fake := newTestClient(t)
	login(t, c, "customer@example.com")
	fake.ExpireAccessTokens()

	if _, err := c.Me(context.Background()); err != nil {
		t.Fatalf("Me() after expiry error = %v", err)
	}
	if fake.RefreshCalls() != 1 {
		t.Errorf("expected 1 refresh, got %d", fake.RefreshCalls())
	}
}

func TestListCars_Pagination(t *testing.T) {
	c, _ := newTestClient(t)
	page, err := c.ListCars(context.Background(), CarQuery{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("ListCars() error = %v", err)
	}
	if len(page.Cars) != 1 {
		t.Errorf("expected 1 car on page 2, got %d", len(page.Cars))
	}
	if page.Pagination.Total != 3 || page.Pagination.TotalPages != 2 || !page.Pagination.HasPrevPage {
		t.Errorf("unexpected pagination %+v", page.Pagination)
	}
}

func TestListCars_Filters(t *testing.T) {
	c, _ := newTestClient(t)
	page, err := c.ListCars(context.Background(), CarQuery{BrandID: "brand-2"})
	if err != nil {
		t.Fatalf("ListCars() error = %v", err)
	}
	if len(page.Cars) != 1 || page.Cars[0].Model != "VF 8" {
		t.Errorf("unexpected cars %+v", page.Cars)
	}
}

func TestGetCar_DecimalPrice(t *testing.T) {
	c, _ := newTestClient(t)
	car, err := c.GetCar(context.Background(), "car-2")
	if err != nil {
		t.Fatalf("GetCar() error = %v", err)
	}
	if !car.Price.Equal(decimal.RequireFromString("25000.50")) {
		t.Errorf("expected price 25000.50, got %s", car.Price)
	}
	if car.Brand == nil || car.Brand.Name != "Toyota" {
		t.Errorf("expected brand Toyota, got %+v", car.Brand)
	}
}

func TestGetCar_NotFound(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.GetCar(context.Background(), "missing")
	if !gateway.HasStatus(err, http.StatusNotFound) {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestNewestCars(t *testing.T) {
	c, _ := newTestClient(t)
	cars, err := c.NewestCars(context.Background(), 2)
	if err != nil {
		t.Fatalf("NewestCars() error = %v", err)
	}
	if len(cars) != 2 || cars[0].ID != "car-3" {
		t.Errorf("unexpected newest cars %+v", cars)
	}
}

func TestGetBrand_Cached(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		b, err := c.GetBrand(ctx, "brand-1")
		if err != nil {
			t.Fatalf("GetBrand() error = %v", err)
		}
		if b.Name != "Toyota" {
			t.Errorf("expected Toyota, got %s", b.Name)
		}
	}
	if n := len(fake.Calls(http.MethodGet, "/brands/brand-1")); n != 1 {
		t.Errorf("expected 1 request, got %d", n)
	}
}

func TestListBrands_PrimesCache(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	if _, err := c.ListBrands(ctx); err != nil {
		t.Fatalf("ListBrands() error = %v", err)
	}
	if _, err := c.GetBrand(ctx, "brand-2"); err != nil {
		t.Fatalf("GetBrand() error = %v", err)
	}
	if n := len(fake.Calls(http.MethodGet, "/brands/brand-2")); n != 0 {
		t.Errorf("expected cached brand, got %d requests", n)
	}
}

func TestAdminCarLifecycle(t *testing.T) {
	c, _ := newTestClient(t)
	login(t, c, "admin@example.com")
	ctx := context.Background()

	model, brand := "Yaris", "brand-1"
	price := decimal.RequireFromString("18000.99")
	stock := 4
	car, err := c.CreateCar(ctx, CarInput{Model: &model, BrandID: &brand, Price: &price, Stock: &stock})
	if err != nil {
		t.Fatalf("CreateCar() error = %v", err)
	}
	if !car.Price.Equal(price) || car.Stock != 4 {
		t.Errorf("unexpected car %+v", car)
	}

	color := "silver"
	updated, err := c.UpdateCar(ctx, car.ID, CarInput{Color: &color})
	if err != nil {
		t.Fatalf("UpdateCar() error = %v", err)
	}
	if updated.Color != "silver" || updated.Model != "Yaris" {
		t.Errorf("unexpected update %+v", updated)
	}

	if err := c.DeleteCar(ctx, car.ID); err != nil {
		t.Fatalf("DeleteCar() error = %v", err)
	}
	if _, err := c.GetCar(ctx, car.ID); !gateway.HasStatus(err, http.StatusNotFound) {
		t.Errorf("expected 404 after delete, got %v", err)
	}
}

func TestAdminCalls_ForbiddenForCustomer(t *testing.T) {
	c, _ := newTestClient(t)
	login(t, c, "customer@example.com")
	_, err := c.ListUsers(context.Background(), 1)
	if !gateway.HasStatus(err, http.StatusForbidden) {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestBrandUpdateRefreshesCache(t *testing.T) {
	c, _ := newTestClient(t)
	login(t, c, "admin@example.com")
	ctx := context.Background()

	if _, err := c.GetBrand(ctx, "brand-2"); err != nil {
		t.Fatalf("GetBrand() error = %v", err)
	}
	name := "VinFast Auto"
	if _, err := c.UpdateBrand(ctx, "brand-2", BrandInput{Name: &name}); err != nil {
		t.Fatalf("UpdateBrand() error = %v", err)
	}
	b, _ := c.GetBrand(ctx, "brand-2")
	if b.Name != name {
		t.Errorf("expected %q, got %q", name, b.Name)
	}
}

func TestCheckoutFlow(t *testing.T) {
	c, fake := newTestClient(t)
	login(t, c, "customer@example.com")
	ctx := context.Background()

	if _, err := c.api.Request(ctx, http.MethodPost, "/cart/add", map[string]interface{}{"car_id": "car-1", "quantity": 1}, nil); err != nil {
		t.Fatalf("add to cart error = %v", err)
	}
	order, err := c.CreateOrderFromCart(ctx)
	if err != nil {
		t.Fatalf("CreateOrderFromCart() error = %v", err)
	}
	if order.Status != OrderPending || !order.TotalPrice.Equal(decimal.NewFromInt(30000)) {
		t.Errorf("unexpected order %+v", order)
	}
	calls := fake.Calls(http.MethodPost, "/order/create")
	if len(calls) != 1 || calls[0].Header.Get(headerIdempotencyKey) == "" {
		t.Error("expected an Idempotency-Key header on order creation")
	}

	link, err := c.CreatePaymentLink(ctx, order.ID, order.TotalPrice)
	if err != nil {
		t.Fatalf("CreatePaymentLink() error = %v", err)
	}
	if link.URL == "" || link.OrderCode == "" {
		t.Fatalf("unexpected link %+v", link)
	}

	status, err := c.CheckPaymentStatus(ctx, link.OrderCode)
	if err != nil {
		t.Fatalf("CheckPaymentStatus() error = %v", err)
	}
	if status.Status != PaymentPending || status.Terminal() {
		t.Errorf("expected pending, got %+v", status)
	}

	fake.SetPaymentStatus(link.OrderCode, PaymentPaid)
	status, _ = c.CheckPaymentStatus(ctx, link.OrderCode)
	if status.Status != PaymentPaid || !status.Terminal() {
		t.Errorf("expected paid, got %+v", status)
	}

	got, err := c.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if got.Status != OrderCompleted || got.Payment == nil || got.Payment.PaidAt == nil {
		t.Errorf("expected completed paid order, got %+v", got)
	}
}

func TestCreatePaymentURL(t *testing.T) {
	c, _ := newTestClient(t)
	login(t, c, "customer@example.com")
	ctx := context.Background()
	_, _ = c.api.Request(ctx, http.MethodPost, "/cart/add", map[string]interface{}{"car_id": "car-2", "quantity": 1}, nil)
	order, err := c.CreateOrderFromCart(ctx)
	if err != nil {
		t.Fatalf("CreateOrderFromCart() error = %v", err)
	}

	link, err := c.CreatePaymentURL(ctx, order.ID)
	if err != nil {
		t.Fatalf("CreatePaymentURL() error = %v", err)
	}
	if link.URL == "" || link.OrderCode == "" {
		t.Errorf("unexpected link %+v", link)
	}
}

func TestCancelOrder(t *testing.T) {
	c, _ := newTestClient(t)
	login(t, c, "customer@example.com")
	ctx := context.Background()
	_, _ = c.api.Request(ctx, http.MethodPost, "/cart/add", map[string]interface{}{"car_id": "car-1", "quantity": 1}, nil)
	order, _ := c.CreateOrderFromCart(ctx)

	cancelled, err := c.CancelOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("CancelOrder() error = %v", err)
	}
	if cancelled.Status != OrderCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	orders, err := c.MyOrders(ctx)
	if err != nil || len(orders) != 1 {
		t.Fatalf("MyOrders() = %v, %v", orders, err)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	c, _ := newTestClient(t)
	if _, err := c.UpdateOrderStatus(context.Background(), "order-1", "shipped"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestAdminOrdersAndUsers(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	login(t, c, "customer@example.com")
	_, _ = c.api.Request(ctx, http.MethodPost, "/cart/add", map[string]interface{}{"car_id": "car-1", "quantity": 1}, nil)
	order, err := c.CreateOrderFromCart(ctx)
	if err != nil {
		t.Fatalf("CreateOrderFromCart() error = %v", err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	login(t, c, "admin@example.com")
	page, err := c.ListOrders(ctx, 1)
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if page.Total != 1 {
		t.Errorf("expected 1 order, got %d", page.Total)
	}
	updated, err := c.UpdateOrderStatus(ctx, order.ID, OrderCompleted)
	if err != nil {
		t.Fatalf("UpdateOrderStatus() error = %v", err)
	}
	if updated.Status != OrderCompleted {
		t.Errorf("expected completed, got %s", updated.Status)
	}

	users, err := c.ListUsers(ctx, 1)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if users.Total != 2 {
		t.Errorf("expected 2 users, got %d", users.Total)
	}
	role := RoleAdmin
	u, err := c.UpdateUser(ctx, "user-1", UserUpdate{Role: &role})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if u.Role != RoleAdmin {
		t.Errorf("expected admin, got %s", u.Role)
	}
	if err := c.DeleteUser(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if _, err := c.GetUser(ctx, "user-1"); !gateway.HasStatus(err, http.StatusNotFound) {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestGoogleAuthURL(t *testing.T) {
	c, _ := newTestClient(t)
	u, err := c.GoogleAuthURL(context.Background())
	if err != nil {
		t.Fatalf("GoogleAuthURL() error = %v", err)
	}
	if u == "" {
		t.Error("expected a URL")
	}
}

func TestConnectionError(t *testing.T) {
	gw, err := gateway.New(gateway.Options{BaseURL: "http://localhost:99999", Credentials: session.NewMemoryStore()})
	if err != nil {
		t.Fatalf("gateway.New() error = %v", err)
	}
	c := New(gw, Options{})
	if _, err := c.ListBrands(context.Background()); err == nil {
		t.Error("expected connection error, got nil")
	}
}
