// ABOUTME: Order and payment routes of the fake API
// ABOUTME: Orders are created from the cart; payment status is driven by SetPaymentStatus

package fakeapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// Payment gateway statuses reported by check-status.
const (
	PaymentPaid      = "PAID"
	PaymentPending   = "PENDING"
	PaymentCancelled = "CANCELLED"
)

var orderStatuses = map[string]bool{"pending": true, "completed": true, "cancelled": true}

func (s *Server) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	s.mu.Lock()
	orders := []Order{}
	for _, id := range s.orderOrder {
		if o := s.orders[id]; o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, "", map[string]interface{}{"orders": orders})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)

	s.mu.Lock()
	orders := make([]Order, 0, len(s.orderOrder))
	for _, id := range s.orderOrder {
		orders = append(orders, *s.orders[id])
	}
	s.mu.Unlock()

	total := len(orders)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	writeJSON(w, http.StatusOK, "", map[string]interface{}{"orders": orders[start:end], "total": total})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	o, ok := s.orders[id]
	var out Order
	if ok {
		out = *o
	}
	admin := s.users[userIDFrom(r)] != nil && s.users[userIDFrom(r)].Role == "admin"
	s.mu.Unlock()
	if !ok || (out.UserID != userIDFrom(r) && !admin) {
		writeError(w, http.StatusNotFound, "Order not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, "", map[string]interface{}{"order": out})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Type string `json:"type"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}
	if in.Type != "cart" {
		writeValidation(w, map[string][]string{"type": {"The selected type is invalid."}})
		return
	}

	userID := userIDFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.cartLocked(userID)[0].Cars
	if len(lines) == 0 {
		writeError(w, http.StatusBadRequest, "Cart is empty", nil)
		return
	}
	for _, line := range lines {
		if line.Pivot.Quantity > s.cars[line.ID].Stock {
			writeError(w, http.StatusBadRequest, "Not enough stock", map[string]int{
				"available_stock":    s.cars[line.ID].Stock,
				"current_quantity":   line.Pivot.Quantity,
				"requested_quantity": line.Pivot.Quantity,
			})
			return
		}
	}

	ts := s.timestamp()
	order := &Order{ID: s.nextID("order"), UserID: userID, Status: "pending", OrderTime: ts, CreatedAt: ts, UpdatedAt: ts}
	total := decimal.Zero
	for _, line := range lines {
		price := decimal.RequireFromString(line.Price)
		subtotal := price.Mul(decimal.NewFromInt(int64(line.Pivot.Quantity)))
		total = total.Add(subtotal)
		order.OrderDetails = append(order.OrderDetails, OrderDetail{
			ID:            s.nextID("detail"),
			OrderID:       order.ID,
			CarID:         line.ID,
			Quantity:      line.Pivot.Quantity,
			Price:         price.StringFixed(2),
			SubtotalPrice: subtotal.StringFixed(2),
			CreatedAt:     ts,
			UpdatedAt:     ts,
			Car:           line.Car,
		})
		s.cars[line.ID].Stock -= line.Pivot.Quantity
	}
	order.TotalPrice = total.StringFixed(2)
	order.Payment = &Payment{ID: s.nextID("payment"), OrderID: order.ID, Amount: order.TotalPrice, Status: "pending", CreatedAt: ts, UpdatedAt: ts}

	s.orders[order.ID] = order
	s.orderOrder = append(s.orderOrder, order.ID)
	delete(s.carts, userID)
	writeJSON(w, http.StatusCreated, "Order created", map[string]interface{}{"order": *order})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.UserID != userIDFrom(r) {
		writeError(w, http.StatusNotFound, "Order not found", nil)
		return
	}
	if o.Status != "pending" {
		writeError(w, http.StatusBadRequest, "Only pending orders can be cancelled", nil)
		return
	}
	s.cancelLocked(o)
	writeJSON(w, http.StatusOK, "Order cancelled", map[string]interface{}{"order": *o})
}

func (s *Server) cancelLocked(o *Order) {
	o.Status = "cancelled"
	o.UpdatedAt = s.timestamp()
	for _, d := range o.OrderDetails {
		if c, ok := s.cars[d.CarID]; ok {
			c.Stock += d.Quantity
		}
	}
	if o.Payment != nil && o.Payment.Status == "pending" {
		o.Payment.Status = "failed"
	}
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}
	if !orderStatuses[in.Status] {
		writeValidation(w, map[string][]string{"status": {"The selected status is invalid."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Order not found", nil)
		return
	}
	if in.Status == "cancelled" && o.Status != "cancelled" {
		s.cancelLocked(o)
	} else {
		o.Status = in.Status
		o.UpdatedAt = s.timestamp()
	}
	writeJSON(w, http.StatusOK, "Order status updated", map[string]interface{}{"order": *o})
}

func (s *Server) newOrderCodeLocked(orderID string) string {
	s.nextCode++
	code := strconv.FormatInt(s.nextCode, 10)
	s.orderCodes[code] = orderID
	s.payments[code] = PaymentPending
	return code
}

func (s *Server) handleCreatePaymentURL(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.UserID != userIDFrom(r) {
		writeError(w, http.StatusNotFound, "Order not found", nil)
		return
	}
	if o.Status != "pending" {
		writeError(w, http.StatusBadRequest, "Order is not awaiting payment", nil)
		return
	}
	code := s.newOrderCodeLocked(o.ID)
	writeJSON(w, http.StatusOK, "Payment URL created", map[string]interface{}{
		"payment_url": checkoutURL(code),
		"order_code":  code,
	})
}

func (s *Server) handleCreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	var in struct {
		OrderID string          `json:"order_id"`
		Amount  decimal.Decimal `json:"amount"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[in.OrderID]
	if !ok || o.UserID != userIDFrom(r) {
		writeError(w, http.StatusNotFound, "Order not found", nil)
		return
	}
	if !in.Amount.Equal(decimal.RequireFromString(o.TotalPrice)) {
		writeError(w, http.StatusBadRequest, "Amount does not match order total", nil)
		return
	}
	code := s.newOrderCodeLocked(o.ID)
	n, _ := strconv.ParseInt(code, 10, 64)
	// The checkout URL travels in message and the order code in data.
	writeJSON(w, http.StatusOK, checkoutURL(code), n)
}

func (s *Server) handleCheckPayment(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.payments[code]
	if !ok {
		writeError(w, http.StatusNotFound, "Payment not found", nil)
		return
	}

	msg := "Payment is pending"
	switch status {
	case PaymentPaid:
		msg = "Payment successful"
		if o, ok := s.orders[s.orderCodes[code]]; ok && o.Payment != nil && o.Payment.Status != "completed" {
			ts := s.timestamp()
			o.Payment.Status = "completed"
			o.Payment.PaidAt = &ts
			o.Status = "completed"
		}
	case PaymentCancelled:
		msg = "Payment was cancelled"
	}
	writeEnvelope(w, http.StatusOK, map[string]string{"status": status, "message": msg}, nil)
}

func checkoutURL(code string) string {
	return fmt.Sprintf("https://pay.example.com/checkout/%s", code)
}
