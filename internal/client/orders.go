// ABOUTME: Order and payment calls
// ABOUTME: Order creation carries an idempotency key so a retried request cannot double-order

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidStatus is returned for order statuses the back office does not accept.
var ErrInvalidStatus = errors.New("status must be one of pending, completed, cancelled")

type orderData struct {
	Order Order `json:"order"`
}

// MyOrders returns the signed-in user's orders.
func (c *Client) MyOrders(ctx context.Context) ([]Order, error) {
	var data struct {
		Orders []Order `json:"orders"`
	}
	if err := c.getData(ctx, http.MethodGet, "/order/me", nil, nil, &data); err != nil {
		return nil, err
	}
	return data.Orders, nil
}

// GetOrder returns one order with its lines and payment.
func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	var data orderData
	if err := c.getData(ctx, http.MethodGet, pathf("/order/%s", id), nil, nil, &data); err != nil {
		return nil, err
	}
	return &data.Order, nil
}

// CreateOrderFromCart turns the current cart into an order. The server
// empties the cart.
func (c *Client) CreateOrderFromCart(ctx context.Context) (*Order, error) {
	var data orderData
	headers := map[string]string{headerIdempotencyKey: uuid.NewString()}
	body := map[string]string{"type": "cart"}
	if err := c.getData(ctx, http.MethodPost, "/order/create", body, headers, &data); err != nil {
		return nil, err
	}
	return &data.Order, nil
}

// CancelOrder cancels a pending order.
func (c *Client) CancelOrder(ctx context.Context, id string) (*Order, error) {
	var data orderData
	if err := c.getData(ctx, http.MethodDelete, pathf("/order/cancel/%s", id), nil, nil, &data); err != nil {
		return nil, err
	}
	return &data.Order, nil
}

// ListOrders returns one page of every order (admin).
func (c *Client) ListOrders(ctx context.Context, page int) (*OrderPage, error) {
	var data OrderPage
	if err := c.getData(ctx, http.MethodGet, pageQuery("/order", page, 0), nil, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// UpdateOrderStatus sets an order's status (admin).
func (c *Client) UpdateOrderStatus(ctx context.Context, id, status string) (*Order, error) {
	switch status {
	case OrderPending, OrderCompleted, OrderCancelled:
	default:
		return nil, ErrInvalidStatus
	}
	var data orderData
	body := map[string]string{"status": status}
	if err := c.getData(ctx, http.MethodPatch, pathf("/admin/orders/%s/status", id), body, nil, &data); err != nil {
		return nil, err
	}
	return &data.Order, nil
}

// CreatePaymentURL asks the payment provider for a checkout page for orderID.
func (c *Client) CreatePaymentURL(ctx context.Context, orderID string) (*PaymentLink, error) {
	var link PaymentLink
	if err := c.getData(ctx, http.MethodPost, pathf("/payment/%s/create-url", orderID), nil, nil, &link); err != nil {
		return nil, err
	}
	if link.URL == "" {
		return nil, fmt.Errorf("invalid response from backend: no payment URL")
	}
	return &link, nil
}

// CreatePaymentLink creates a checkout link for amount. The URL comes back as
// the message and the order code as the data.
func (c *Client) CreatePaymentLink(ctx context.Context, orderID string, amount decimal.Decimal) (*PaymentLink, error) {
	body := map[string]interface{}{"order_id": orderID, "amount": amount}
	resp, err := c.api.Request(ctx, http.MethodPost, "/payment/create-link", body, nil)
	if err != nil {
		return nil, err
	}
	var code json.Number
	if err := resp.DecodeData(&code); err != nil {
		return nil, err
	}
	link := &PaymentLink{URL: resp.Message(), OrderCode: code.String()}
	if link.URL == "" {
		return nil, fmt.Errorf("invalid response from backend: no payment URL")
	}
	return link, nil
}

// CheckPaymentStatus reports PAID, PENDING or CANCELLED for an order code.
func (c *Client) CheckPaymentStatus(ctx context.Context, orderCode string) (*PaymentStatus, error) {
	resp, err := c.api.Request(ctx, http.MethodGet, pathf("/payment/check-status/%s", orderCode), nil, nil)
	if err != nil {
		return nil, err
	}
	var env struct {
		Message PaymentStatus `json:"message"`
	}
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	if env.Message.Status == "" {
		return nil, fmt.Errorf("invalid response from backend: no payment status")
	}
	return &env.Message, nil
}
