// ABOUTME: Car and brand catalogue routes of the fake API
// ABOUTME: Public listing and detail plus admin create, update and delete

package fakeapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type carInput struct {
	Model        *string `json:"model"`
	Year         *int    `json:"year"`
	BrandID      *string `json:"brand_id"`
	Color        *string `json:"color"`
	Price        *string `json:"price"`
	ImageURL     *string `json:"image_url"`
	Stock        *int    `json:"stock"`
	FuelType     *string `json:"fuel_type"`
	Availability *string `json:"availability"`
}

type brandInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	LogoURL     *string `json:"logo_url"`
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func (s *Server) withBrandLocked(c *Car) carWithBrand {
	out := carWithBrand{Car: *c}
	if b, ok := s.brands[c.BrandID]; ok {
		bc := *b
		out.Brand = &bc
	}
	return out
}

func (s *Server) handleListCars(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 12)
	search := strings.ToLower(r.URL.Query().Get("search"))
	brand := r.URL.Query().Get("brand_id")

	s.mu.Lock()
	var all []carWithBrand
	for _, id := range s.carOrder {
		c := s.cars[id]
		if brand != "" && c.BrandID != brand {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Model), search) {
			continue
		}
		all = append(all, s.withBrandLocked(c))
	}
	s.mu.Unlock()

	total := len(all)
	pages := (total + limit - 1) / limit
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, "", map[string]interface{}{
		"cars": append([]carWithBrand{}, all[start:end]...),
		"pagination": pagination{
			Total:       total,
			CurrentPage: page,
			TotalPages:  pages,
			Limit:       limit,
			HasNextPage: page < pages,
			HasPrevPage: page > 1,
		},
	})
}

func (s *Server) handleNewestCars(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 8)

	s.mu.Lock()
	var all []carWithBrand
	for _, id := range s.carOrder {
		all = append(all, s.withBrandLocked(s.cars[id]))
	}
	s.mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt > all[j].CreatedAt })
	if len(all) > limit {
		all = all[:limit]
	}
	writeJSON(w, http.StatusOK, "", map[string]interface{}{"cars": all})
}

func (s *Server) handleGetCar(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	c, ok := s.cars[id]
	var out carWithBrand
	if ok {
		out = s.withBrandLocked(c)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Car not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, "", map[string]interface{}{"car": out})
}

func (s *Server) handleCreateCar(w http.ResponseWriter, r *http.Request) {
	var in carInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	errs := map[string][]string{}
	if in.Model == nil || strings.TrimSpace(*in.Model) == "" {
		errs["model"] = []string{"The model field is required."}
	}
	if in.Price == nil {
		errs["price"] = []string{"The price field is required."}
	} else if _, err := decimal.NewFromString(*in.Price); err != nil {
		errs["price"] = []string{"The price must be a number."}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if in.BrandID == nil {
		errs["brand_id"] = []string{"The brand id field is required."}
	} else if _, ok := s.brands[*in.BrandID]; !ok {
		errs["brand_id"] = []string{"The selected brand id is invalid."}
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	ts := s.timestamp()
	c := &Car{ID: s.nextID("car"), Availability: "available", CreatedAt: ts, UpdatedAt: ts}
	applyCarInput(c, in)
	s.cars[c.ID] = c
	s.carOrder = append(s.carOrder, c.ID)
	writeJSON(w, http.StatusCreated, "Car created", map[string]interface{}{"car": s.withBrandLocked(c)})
}

func (s *Server) handleUpdateCar(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in carInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}
	if in.Price != nil {
		if _, err := decimal.NewFromString(*in.Price); err != nil {
			writeValidation(w, map[string][]string{"price": {"The price must be a number."}})
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cars[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Car not found", nil)
		return
	}
	applyCarInput(c, in)
	c.UpdatedAt = s.timestamp()
	writeJSON(w, http.StatusOK, "Car updated", map[string]interface{}{"car": s.withBrandLocked(c)})
}

func applyCarInput(c *Car, in carInput) {
	if in.Model != nil {
		c.Model = *in.Model
	}
	if in.Year != nil {
		c.Year = *in.Year
	}
	if in.BrandID != nil {
		c.BrandID = *in.BrandID
	}
	if in.Color != nil {
		c.Color = *in.Color
	}
	if in.Price != nil {
		c.Price = decimal.RequireFromString(*in.Price).StringFixed(2)
	}
	if in.ImageURL != nil {
		c.ImageURL = *in.ImageURL
	}
	if in.Stock != nil {
		c.Stock = *in.Stock
	}
	if in.FuelType != nil {
		c.FuelType = *in.FuelType
	}
	if in.Availability != nil {
		c.Availability = *in.Availability
	}
}

func (s *Server) handleDeleteCar(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cars[id]; !ok {
		writeError(w, http.StatusNotFound, "Car not found", nil)
		return
	}
	delete(s.cars, id)
	s.carOrder = removeID(s.carOrder, id)
	for _, lines := range s.carts {
		delete(lines, id)
	}
	writeJSON(w, http.StatusOK, "Car deleted", nil)
}

func (s *Server) handleListBrands(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	brands := make([]Brand, 0, len(s.brandOrder))
	for _, id := range s.brandOrder {
		brands = append(brands, *s.brands[id])
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, "", map[string]interface{}{"brands": brands, "total": len(brands)})
}

func (s *Server) handleGetBrand(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	b, ok := s.brands[id]
	var out Brand
	if ok {
		out = *b
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Brand not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, "", map[string]interface{}{"brand": out})
}

func (s *Server) handleCreateBrand(w http.ResponseWriter, r *http.Request) {
	var in brandInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		writeValidation(w, map[string][]string{"name": {"The name field is required."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.timestamp()
	b := &Brand{ID: s.nextID("brand"), CreatedAt: ts, UpdatedAt: ts}
	applyBrandInput(b, in)
	s.brands[b.ID] = b
	s.brandOrder = append(s.brandOrder, b.ID)
	writeJSON(w, http.StatusCreated, "Brand created", map[string]interface{}{"brand": *b})
}

func (s *Server) handleUpdateBrand(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in brandInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.brands[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Brand not found", nil)
		return
	}
	applyBrandInput(b, in)
	b.UpdatedAt = s.timestamp()
	writeJSON(w, http.StatusOK, "Brand updated", map[string]interface{}{"brand": *b})
}

func applyBrandInput(b *Brand, in brandInput) {
	if in.Name != nil {
		b.Name = *in.Name
	}
	if in.Description != nil {
		b.Description = *in.Description
	}
	if in.LogoURL != nil {
		b.LogoURL = *in.LogoURL
	}
}

func (s *Server) handleDeleteBrand(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.brands[id]; !ok {
		writeError(w, http.StatusNotFound, "Brand not found", nil)
		return
	}
	for _, c := range s.cars {
		if c.BrandID == id {
			writeError(w, http.StatusConflict, "Brand still has cars", nil)
			return
		}
	}
	delete(s.brands, id)
	s.brandOrder = removeID(s.brandOrder, id)
	writeJSON(w, http.StatusOK, "Brand deleted", nil)
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
