// ABOUTME: Wire types and JSON envelope helpers for the fake storefront API
// ABOUTME: Shapes mirror the real backend's {status, message, data} responses

package fakeapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// User is a storefront account.
type User struct {
	ID              string `json:"id"`
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	Phone           string `json:"phone,omitempty"`
	Address         string `json:"address,omitempty"`
	EmailVerifiedAt string `json:"email_verified_at,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// Brand is a car manufacturer.
type Brand struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	LogoURL     string `json:"logo_url,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Car is a catalogue entry. Price is a decimal string.
type Car struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	BrandID      string `json:"brand_id"`
	Color        string `json:"color,omitempty"`
	Price        string `json:"price"`
	ImageURL     string `json:"image_url,omitempty"`
	Stock        int    `json:"stock"`
	FuelType     string `json:"fuel_type,omitempty"`
	Availability string `json:"availability"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type carWithBrand struct {
	Car
	Brand *Brand `json:"brand,omitempty"`
}

type pivot struct {
	CartID    string `json:"cart_id"`
	CarID     string `json:"car_id"`
	Quantity  int    `json:"quantity"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type cartCar struct {
	carWithBrand
	Pivot pivot `json:"pivot"`
}

type cartRecord struct {
	ID     string    `json:"id"`
	UserID string    `json:"user_id"`
	Cars   []cartCar `json:"cars"`
}

// OrderDetail is one car line of an order.
type OrderDetail struct {
	ID            string `json:"id"`
	OrderID       string `json:"order_id"`
	CarID         string `json:"car_id"`
	Quantity      int    `json:"quantity"`
	Price         string `json:"price"`
	SubtotalPrice string `json:"subtotal_price"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	Car           Car    `json:"car"`
}

// Payment is the payment record attached to an order.
type Payment struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"order_id"`
	Amount    string  `json:"amount"`
	Status    string  `json:"status"`
	PaidAt    *string `json:"paid_at"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// Order is a placed order.
type Order struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	TotalPrice   string        `json:"total_price"`
	Status       string        `json:"status"`
	OrderTime    string        `json:"order_time"`
	CreatedAt    string        `json:"created_at"`
	UpdatedAt    string        `json:"updated_at"`
	OrderDetails []OrderDetail `json:"order_details"`
	Payment      *Payment      `json:"payment"`
}

type pagination struct {
	Total       int  `json:"total"`
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	Limit       int  `json:"limit"`
	HasNextPage bool `json:"has_next_page"`
	HasPrevPage bool `json:"has_prev_page"`
}

func (s *Server) seed() {
	ts := s.timestamp()
	s.brands["brand-1"] = &Brand{ID: "brand-1", Name: "Toyota", Description: "Japanese manufacturer", CreatedAt: ts, UpdatedAt: ts}
	s.brands["brand-2"] = &Brand{ID: "brand-2", Name: "VinFast", Description: "Vietnamese manufacturer", CreatedAt: ts, UpdatedAt: ts}
	s.brandOrder = []string{"brand-1", "brand-2"}

	cars := []*Car{
		{ID: "car-1", Model: "Camry", Year: 2023, BrandID: "brand-1", Color: "white", Price: "30000.00", Stock: 5, FuelType: "gasoline", Availability: "available"},
		{ID: "car-2", Model: "Corolla Cross", Year: 2024, BrandID: "brand-1", Color: "red", Price: "25000.50", Stock: 3, FuelType: "hybrid", Availability: "available"},
		{ID: "car-3", Model: "VF 8", Year: 2024, BrandID: "brand-2", Color: "blue", Price: "45000.00", Stock: 2, FuelType: "electric", Availability: "available"},
	}
	for i, c := range cars {
		// Spread creation times so "newest" has a stable order.
		created := s.now().Add(time.Duration(i) * time.Minute).UTC().Format(time.RFC3339)
		c.CreatedAt, c.UpdatedAt = created, created
		s.cars[c.ID] = c
		s.carOrder = append(s.carOrder, c.ID)
	}

	verified := ts
	s.users["user-1"] = &User{ID: "user-1", FullName: "Nguyen Van A", Email: "customer@example.com", Role: "customer", EmailVerifiedAt: verified, CreatedAt: ts, UpdatedAt: ts}
	s.users["user-2"] = &User{ID: "user-2", FullName: "Store Admin", Email: "admin@example.com", Role: "admin", EmailVerifiedAt: verified, CreatedAt: ts, UpdatedAt: ts}
	s.passwords["customer@example.com"] = "secret"
	s.passwords["admin@example.com"] = "secret"
	s.seq = 100
}

func writeJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	writeEnvelope(w, status, message, data)
}

// writeEnvelope writes a success envelope whose message may be any JSON value.
func writeEnvelope(w http.ResponseWriter, status int, message, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "success",
		"message": message,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]interface{}{
		"status":  "error",
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	_ = json.NewEncoder(w).Encode(body)
}

func writeValidation(w http.ResponseWriter, errs map[string][]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "error",
		"message": "Validation failed",
		"errors":  errs,
	})
}

// readBody returns the request body and puts it back so handlers can read it again.
func readBody(r *http.Request) []byte {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil
	}
	r.Body = io.NopCloser(strings.NewReader(string(raw)))
	return raw
}

func decodeBody(r *http.Request, v interface{}) error {
	raw := readBody(r)
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
