// ABOUTME: API resource types for the storefront client
// ABOUTME: Money fields are decimals; the API sends them as strings

package client

import (
	"github.com/shopspring/decimal"

	"github.com/hiu1412/carshop/internal/session"
)

// Roles
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// Order statuses accepted by the back office.
const (
	OrderPending   = "pending"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

// Payment gateway statuses.
const (
	PaymentPaid      = "PAID"
	PaymentPending   = "PENDING"
	PaymentCancelled = "CANCELLED"
)

// User represents an account
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

// Profile converts the user to the session profile.
func (u *User) Profile() *session.Profile {
	return &session.Profile{ID: u.ID, FullName: u.FullName, Email: u.Email, Role: u.Role}
}

// Verified reports whether the email address was confirmed.
func (u *User) Verified() bool {
	return u.EmailVerifiedAt != ""
}

// Brand represents a car manufacturer
type Brand struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	LogoURL     string `json:"logo_url,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Car represents a catalogue entry
type Car struct {
	ID           string          `json:"id"`
	Model        string          `json:"model"`
	Year         int             `json:"year"`
	BrandID      string          `json:"brand_id"`
	Color        string          `json:"color,omitempty"`
	Price        decimal.Decimal `json:"price"`
	ImageURL     string          `json:"image_url,omitempty"`
	Stock        int             `json:"stock"`
	FuelType     string          `json:"fuel_type,omitempty"`
	Availability string          `json:"availability"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
	Brand        *Brand          `json:"brand,omitempty"`
}

// Pagination is the page block of list responses
type Pagination struct {
	Total       int  `json:"total"`
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	Limit       int  `json:"limit"`
	HasNextPage bool `json:"has_next_page"`
	HasPrevPage bool `json:"has_prev_page"`
}

// CarPage is one page of the catalogue
type CarPage struct {
	Cars       []Car      `json:"cars"`
	Pagination Pagination `json:"pagination"`
}

// CarQuery filters the catalogue
type CarQuery struct {
	Page    int
	Limit   int
	Search  string
	BrandID string
}

// CarInput creates or updates a car. Nil fields are left unchanged on update.
type CarInput struct {
	Model        *string          `json:"model,omitempty"`
	Year         *int             `json:"year,omitempty"`
	BrandID      *string          `json:"brand_id,omitempty"`
	Color        *string          `json:"color,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	ImageURL     *string          `json:"image_url,omitempty"`
	Stock        *int             `json:"stock,omitempty"`
	FuelType     *string          `json:"fuel_type,omitempty"`
	Availability *string          `json:"availability,omitempty"`
}

// BrandInput creates or updates a brand
type BrandInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	LogoURL     *string `json:"logo_url,omitempty"`
}

// OrderDetail is one car line of an order
type OrderDetail struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	CarID         string          `json:"car_id"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	SubtotalPrice decimal.Decimal `json:"subtotal_price"`
	Car           Car             `json:"car"`
}

// Payment is the payment record of an order
type Payment struct {
	ID      string          `json:"id"`
	OrderID string          `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Status  string          `json:"status"`
	PaidAt  *string         `json:"paid_at"`
}

// Order represents a placed order
type Order struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	Status       string          `json:"status"`
	OrderTime    string          `json:"order_time"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
	OrderDetails []OrderDetail   `json:"order_details"`
	Payment      *Payment        `json:"payment"`
}

// OrderPage is one page of the back-office order list
type OrderPage struct {
	Orders []Order `json:"orders"`
	Total  int     `json:"total"`
}

// UserPage is one page of the back-office user list
type UserPage struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
}

// UserUpdate changes an account. Nil fields are left unchanged.
type UserUpdate struct {
	FullName *string `json:"full_name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Role     *string `json:"role,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
}

// RegisterInput is the sign-up form
type RegisterInput struct {
	FullName             string `json:"full_name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// PaymentLink is a checkout URL for an order
type PaymentLink struct {
	URL       string `json:"payment_url"`
	OrderCode string `json:"order_code"`
}

// PaymentStatus is the gateway's view of a payment
type PaymentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Terminal reports whether polling can stop.
func (p *PaymentStatus) Terminal() bool {
	return p.Status == PaymentPaid || p.Status == PaymentCancelled
}
