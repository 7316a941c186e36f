// ABOUTME: Error conditions surfaced by the cart manager
// ABOUTME: Classifies server responses into stock, not-in-cart, auth and generic failures

package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hiu1412/carshop/internal/gateway"
)

var (
	// ErrInvalidQuantity is returned before any network call for quantities below 1.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrNotAuthenticated means there is no usable session. It is never
	// reported through the Notifier.
	ErrNotAuthenticated = errors.New("not signed in")

	// ErrSuperseded resolves an update that a later update for the same
	// product replaced before it was sent.
	ErrSuperseded = errors.New("update superseded by a later change")

	// ErrClosed is returned by operations on a closed manager.
	ErrClosed = errors.New("cart manager is closed")
)

// Server messages that mark business-rule failures.
const (
	msgNotEnoughStock = "not enough stock"
	msgNotInCart      = "not found in cart"
)

// StockExceededError carries the server's stock counts unchanged. The counts
// are zero when the server sent none.
type StockExceededError struct {
	ProductID string
	Available int
	Current   int
	Requested int
}

func (e *StockExceededError) Error() string {
	if e.Requested == 0 {
		return fmt.Sprintf("not enough stock for %s", e.ProductID)
	}
	return fmt.Sprintf("not enough stock for %s: %d available, %d already in cart, %d requested",
		e.ProductID, e.Available, e.Current, e.Requested)
}

// NotInCartError means the server has no line for the product. The local
// view is stale and should be reloaded.
type NotInCartError struct {
	ProductID string
}

func (e *NotInCartError) Error() string {
	return fmt.Sprintf("car %s is no longer in your cart, refresh the cart and try again", e.ProductID)
}

// Error is a generic cart failure.
type Error struct {
	Op        string
	ProductID string
	Err       error
}

func (e *Error) Error() string {
	if e.ProductID != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Op, e.ProductID, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is the message shown for generic failures.
func (e *Error) UserMessage() string {
	return "Something went wrong with your cart. Please try again."
}

// IsBusinessRule reports whether err is a stock or not-in-cart condition.
func IsBusinessRule(err error) bool {
	var stock *StockExceededError
	var missing *NotInCartError
	return errors.As(err, &stock) || errors.As(err, &missing)
}

// classify maps a gateway error for op on productID to a cart condition.
// The server message and data decide, not the HTTP status.
func classify(op, productID string, err error) error {
	if errors.Is(err, gateway.ErrSessionExpired) || gateway.IsUnauthorized(err) {
		return fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}

	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		msg := strings.ToLower(apiErr.Message)
		switch {
		case strings.Contains(msg, msgNotEnoughStock):
			var data struct {
				Available int `json:"available_stock"`
				Current   int `json:"current_quantity"`
				Requested int `json:"requested_quantity"`
			}
			if decodeErr := apiErr.DecodeData(&data); decodeErr != nil {
				// Still a stock rejection, just without the counts.
				return &StockExceededError{ProductID: productID}
			}
			return &StockExceededError{
				ProductID: productID,
				Available: data.Available,
				Current:   data.Current,
				Requested: data.Requested,
			}
		case strings.Contains(msg, msgNotInCart):
			return &NotInCartError{ProductID: productID}
		}
	}
	return &Error{Op: op, ProductID: productID, Err: err}
}
