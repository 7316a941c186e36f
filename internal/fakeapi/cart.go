// ABOUTME: Cart routes of the fake API
// ABOUTME: Enforces stock limits and reports missing lines the way the real backend does

package fakeapi

import (
	"net/http"
	"sort"
)

type cartChange struct {
	CarID    string `json:"car_id"`
	Quantity int    `json:"quantity"`
}

// cartLocked renders userID's cart in the backend's nested cart[].cars[] shape.
func (s *Server) cartLocked(userID string) []cartRecord {
	lines := s.carts[userID]
	ids := make([]string, 0, len(lines))
	for id := range lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lines[ids[i]].seq < lines[ids[j]].seq })

	cartID := "cart-" + userID
	cars := make([]cartCar, 0, len(ids))
	for _, id := range ids {
		c, ok := s.cars[id]
		if !ok {
			continue
		}
		line := lines[id]
		cars = append(cars, cartCar{
			carWithBrand: s.withBrandLocked(c),
			Pivot: pivot{
				CartID:    cartID,
				CarID:     id,
				Quantity:  line.quantity,
				CreatedAt: line.added,
				UpdatedAt: line.updated,
			},
		})
	}
	return []cartRecord{{ID: cartID, UserID: userID, Cars: cars}}
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cart := s.cartLocked(userIDFrom(r))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, "", map[string]interface{}{"cart": cart})
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var in cartChange
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}
	if in.CarID == "" {
		writeValidation(w, map[string][]string{"car_id": {"The car id field is required."}})
		return
	}
	if in.Quantity < 1 {
		writeValidation(w, map[string][]string{"quantity": {"The quantity must be at least 1."}})
		return
	}

	userID := userIDFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cars[in.CarID]
	if !ok {
		writeError(w, http.StatusNotFound, "Car not found", nil)
		return
	}
	lines := s.carts[userID]
	if lines == nil {
		lines = make(map[string]*cartLine)
		s.carts[userID] = lines
	}
	current := 0
	if line, ok := lines[in.CarID]; ok {
		current = line.quantity
	}
	if current+in.Quantity > c.Stock {
		writeError(w, http.StatusBadRequest, "Not enough stock", map[string]int{
			"available_stock":    c.Stock,
			"current_quantity":   current,
			"requested_quantity": in.Quantity,
		})
		return
	}

	ts := s.timestamp()
	if line, ok := lines[in.CarID]; ok {
		line.quantity += in.Quantity
		line.updated = ts
	} else {
		s.seq++
		lines[in.CarID] = &cartLine{quantity: in.Quantity, seq: s.seq, added: ts, updated: ts}
	}
	writeJSON(w, http.StatusOK, "Car added to cart", map[string]interface{}{"cart": s.cartLocked(userID)})
}

func (s *Server) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	var in cartChange
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	userID := userIDFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.carts[userID][in.CarID]
	if !ok {
		writeError(w, http.StatusNotFound, "Car not found in cart", nil)
		return
	}
	// No quantity removes the whole line.
	if in.Quantity <= 0 || in.Quantity >= line.quantity {
		delete(s.carts[userID], in.CarID)
	} else {
		line.quantity -= in.Quantity
		line.updated = s.timestamp()
	}
	writeJSON(w, http.StatusOK, "Car removed from cart", map[string]interface{}{"cart": s.cartLocked(userID)})
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	s.mu.Lock()
	delete(s.carts, userID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, "Cart cleared", nil)
}
