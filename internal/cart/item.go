// ABOUTME: Cart line types and derived totals
// ABOUTME: Lines are decoded from the server's nested cart[].cars[].pivot shape

package cart

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is the car snapshot carried on a cart line for rendering.
type Product struct {
	ID           string          `json:"id"`
	Model        string          `json:"model"`
	Year         int             `json:"year"`
	BrandID      string          `json:"brand_id"`
	BrandName    string          `json:"brand_name,omitempty"`
	Color        string          `json:"color,omitempty"`
	Price        decimal.Decimal `json:"price"`
	ImageURL     string          `json:"image_url,omitempty"`
	Stock        int             `json:"stock"`
	FuelType     string          `json:"fuel_type,omitempty"`
	Availability string          `json:"availability,omitempty"`
}

// Item is one distinct product line. Quantity is always server-confirmed.
type Item struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
}

// Subtotal is unit price times quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TotalItems counts distinct lines, not units.
func TotalItems(items []Item) int {
	return len(items)
}

// TotalPrice sums unit price times quantity over items.
func TotalPrice(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Find returns the line for productID.
func Find(items []Item, productID string) (Item, bool) {
	for _, it := range items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return Item{}, false
}

type wireCart struct {
	Cart []struct {
		ID   string    `json:"id"`
		Cars []wireCar `json:"cars"`
	} `json:"cart"`
}

type wireCar struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	BrandID      string `json:"brand_id"`
	Color        string `json:"color"`
	Price        string `json:"price"`
	ImageURL     string `json:"image_url"`
	Stock        int    `json:"stock"`
	FuelType     string `json:"fuel_type"`
	Availability string `json:"availability"`
	Brand        *struct {
		Name string `json:"name"`
	} `json:"brand"`
	Pivot struct {
		Quantity int `json:"quantity"`
	} `json:"pivot"`
}

// toItems flattens every cart record into lines, merging repeated products.
func (w wireCart) toItems() ([]Item, error) {
	items := []Item{}
	index := map[string]int{}
	for _, c := range w.Cart {
		for _, car := range c.Cars {
			price, err := decimal.NewFromString(car.Price)
			if err != nil {
				return nil, fmt.Errorf("invalid price %q for %s: %w", car.Price, car.ID, err)
			}
			if i, ok := index[car.ID]; ok {
				items[i].Quantity += car.Pivot.Quantity
				continue
			}
			p := Product{
				ID:           car.ID,
				Model:        car.Model,
				Year:         car.Year,
				BrandID:      car.BrandID,
				Color:        car.Color,
				Price:        price,
				ImageURL:     car.ImageURL,
				Stock:        car.Stock,
				FuelType:     car.FuelType,
				Availability: car.Availability,
			}
			if car.Brand != nil {
				p.BrandName = car.Brand.Name
			}
			index[car.ID] = len(items)
			items = append(items, Item{ProductID: car.ID, Quantity: car.Pivot.Quantity, Product: p})
		}
	}
	return items, nil
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
