// ABOUTME: Catalogue calls for cars and brands
// ABOUTME: Brand lookups are served from a TTL cache; admin writes invalidate it

package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ListCars returns one page of the catalogue.
func (c *Client) ListCars(ctx context.Context, q CarQuery) (*CarPage, error) {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.BrandID != "" {
		v.Set("brand_id", q.BrandID)
	}
	path := "/cars"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var page CarPage
	if err := c.getData(ctx, http.MethodGet, path, nil, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetCar returns a single car with its brand.
func (c *Client) GetCar(ctx context.Context, id string) (*Car, error) {
	var data struct {
		Car Car `json:"car"`
	}
	if err := c.getData(ctx, http.MethodGet, pathf("/cars/%s", id), nil, nil, &data); err != nil {
		return nil, err
	}
	return &data.Car, nil
}

// NewestCars returns the most recently added cars.
func (c *Client) NewestCars(ctx context.Context, limit int) ([]Car, error) {
	var data struct {
		Cars []Car `json:"cars"`
	}
	if err := c.getData(ctx, http.MethodGet, pageQuery("/cars/newest", 0, limit), nil, nil, &data); err != nil {
		return nil, err
	}
	return data.Cars, nil
}

// CreateCar adds a car (admin).
func (c *Client) CreateCar(ctx context.Context, in CarInput) (*Car, error) {
	var data struct {
		Car Car `json:"car"`
	}
	if err := c.getData(ctx, http.MethodPost, "/cars", in, nil, &data); err != nil {
		return nil, err
	}
	return &data.Car, nil
}

// UpdateCar changes a car (admin).
func (c *Client) UpdateCar(ctx context.Context, id string, in CarInput) (*Car, error) {
	var data struct {
		Car Car `json:"car"`
	}
	if err := c.getData(ctx, http.MethodPut, pathf("/cars/%s", id), in, nil, &data); err != nil {
		return nil, err
	}
	return &data.Car, nil
}

// DeleteCar removes a car (admin).
func (c *Client) DeleteCar(ctx context.Context, id string) error {
	return c.getData(ctx, http.MethodDelete, pathf("/cars/%s", id), nil, nil, nil)
}

// ListBrands returns every brand and primes the brand cache.
func (c *Client) ListBrands(ctx context.Context) ([]Brand, error) {
	var data struct {
		Brands []Brand `json:"brands"`
	}
	if err := c.getData(ctx, http.MethodGet, "/brands", nil, nil, &data); err != nil {
		return nil, err
	}
	for _, b := range data.Brands {
		c.brands.Set(b.ID, b)
	}
	return data.Brands, nil
}

// GetBrand returns a brand, from cache when possible.
func (c *Client) GetBrand(ctx context.Context, id string) (*Brand, error) {
	if b, ok := c.brands.Get(id); ok {
		return &b, nil
	}
	var data struct {
		Brand Brand `json:"brand"`
	}
	if err := c.getData(ctx, http.MethodGet, pathf("/brands/%s", id), nil, nil, &data); err != nil {
		return nil, err
	}
	c.brands.Set(id, data.Brand)
	return &data.Brand, nil
}

// CreateBrand adds a brand (admin).
func (c *Client) CreateBrand(ctx context.Context, in BrandInput) (*Brand, error) {
	var data struct {
		Brand Brand `json:"brand"`
	}
	if err := c.getData(ctx, http.MethodPost, "/brands", in, nil, &data); err != nil {
		return nil, err
	}
	c.brands.Set(data.Brand.ID, data.Brand)
	return &data.Brand, nil
}

// UpdateBrand changes a brand (admin).
func (c *Client) UpdateBrand(ctx context.Context, id string, in BrandInput) (*Brand, error) {
	var data struct {
		Brand Brand `json:"brand"`
	}
	c.brands.Invalidate(id)
	if err := c.getData(ctx, http.MethodPut, pathf("/brands/%s", id), in, nil, &data); err != nil {
		return nil, err
	}
	c.brands.Set(id, data.Brand)
	return &data.Brand, nil
}

// DeleteBrand removes a brand (admin).
func (c *Client) DeleteBrand(ctx context.Context, id string) error {
	c.brands.Invalidate(id)
	return c.getData(ctx, http.MethodDelete, pathf("/brands/%s", id), nil, nil, nil)
}
