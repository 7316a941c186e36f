// ABOUTME: Catalogue commands: cars list/show/newest and brands list/show
// ABOUTME: Public endpoints, no sign-in needed

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hiu1412/carshop/internal/client"
	"github.com/hiu1412/carshop/internal/tui/icons"
	"github.com/hiu1412/carshop/internal/tui/styles"
	"github.com/hiu1412/carshop/internal/tui/widgets"
)

// maxParallelFetches bounds concurrent detail requests
const maxParallelFetches = 4

var (
	carsPage    int
	carsLimit   int
	carsSearch  string
	carsBrandID string
	newestLimit int
)

var carsCmd = &cobra.Command{
	Use:   "cars",
	Short: "Browse the car catalogue",
}

var carsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cars, one page at a time",
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int {
			return runCarsList(ctx, os.Stdout, client.CarQuery{
				Page: carsPage, Limit: carsLimit, Search: carsSearch, BrandID: carsBrandID,
			})
		})
	},
}

var carsShowCmd = &cobra.Command{
	Use:   "show <car-id>...",
	Short: "Show one or more cars",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runCarsShow(ctx, os.Stdout, args) })
	},
}

var carsNewestCmd = &cobra.Command{
	Use:   "newest",
	Short: "Show the most recently added cars",
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runCarsNewest(ctx, os.Stdout, newestLimit) })
	},
}

var brandsCmd = &cobra.Command{
	Use:   "brands",
	Short: "Browse car brands",
}

var brandsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List brands",
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runBrandsList(ctx, os.Stdout) })
	},
}

var brandsShowCmd = &cobra.Command{
	Use:   "show <brand-id>",
	Short: "Show a brand and its cars",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runBrandsShow(ctx, os.Stdout, args[0]) })
	},
}

func init() {
	rootCmd.AddCommand(carsCmd, brandsCmd)
	carsCmd.AddCommand(carsListCmd, carsShowCmd, carsNewestCmd)
	brandsCmd.AddCommand(brandsListCmd, brandsShowCmd)

	carsListCmd.Flags().IntVar(&carsPage, "page", 1, "Page number")
	carsListCmd.Flags().IntVar(&carsLimit, "limit", 12, "Cars per page")
	carsListCmd.Flags().StringVar(&carsSearch, "search", "", "Filter by model name")
	carsListCmd.Flags().StringVar(&carsBrandID, "brand", "", "Filter by brand ID")
	carsNewestCmd.Flags().IntVar(&newestLimit, "limit", 8, "Number of cars")
}

// runCarsList lists one catalogue page and returns exit code
func runCarsList(ctx context.Context, w io.Writer, q client.CarQuery) int {
	if q.Page < 1 || q.Limit < 1 {
		return fail(w, fmt.Errorf("--page and --limit must be at least 1"))
	}
	return withApp(ctx, w, func(a *app) int {
		page, err := a.client.ListCars(ctx, q)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, page)
		}
		fmt.Fprintln(w, formatCarsHuman(page.Cars))
		p := page.Pagination
		fmt.Fprintf(w, "\nPage %d of %d (%d cars)\n", p.CurrentPage, p.TotalPages, p.Total)
		return exitOK
	})
}

// runCarsShow fetches every requested car concurrently
func runCarsShow(ctx context.Context, w io.Writer, ids []string) int {
	return withApp(ctx, w, func(a *app) int {
		cars := make([]*client.Car, len(ids))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxParallelFetches)
		for i, id := range ids {
			g.Go(func() error {
				car, err := a.client.GetCar(gctx, id)
				if err != nil {
					return fmt.Errorf("car %s: %w", id, err)
				}
				if car.Brand == nil && car.BrandID != "" {
					if b, err := a.client.GetBrand(gctx, car.BrandID); err == nil {
						car.Brand = b
					}
				}
				cars[i] = car
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fail(w, err)
		}

		if IsJSONOutput() {
			return writeJSON(w, cars)
		}
		for i, car := range cars {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, formatCarDetailHuman(car))
		}
		return exitOK
	})
}

// runCarsNewest shows the newest cars
func runCarsNewest(ctx context.Context, w io.Writer, limit int) int {
	return withApp(ctx, w, func(a *app) int {
		cars, err := a.client.NewestCars(ctx, limit)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, cars)
		}
		fmt.Fprintln(w, formatCarsHuman(cars))
		return exitOK
	})
}

// runBrandsList lists every brand
func runBrandsList(ctx context.Context, w io.Writer) int {
	return withApp(ctx, w, func(a *app) int {
		brands, err := a.client.ListBrands(ctx)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, brands)
		}
		if len(brands) == 0 {
			fmt.Fprintln(w, "No brands.")
			return exitOK
		}
		for _, b := range brands {
			fmt.Fprintf(w, "%s %-12s %s\n", icons.Brand, b.ID, b.Name)
		}
		return exitOK
	})
}

// runBrandsShow fetches a brand and its cars in parallel
func runBrandsShow(ctx context.Context, w io.Writer, id string) int {
	return withApp(ctx, w, func(a *app) int {
		var brand *client.Brand
		var page *client.CarPage

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			brand, err = a.client.GetBrand(gctx, id)
			return err
		})
		g.Go(func() error {
			var err error
			page, err = a.client.ListCars(gctx, client.CarQuery{Page: 1, Limit: 50, BrandID: id})
			return err
		})
		if err := g.Wait(); err != nil {
			return fail(w, err)
		}

		if IsJSONOutput() {
			return writeJSON(w, map[string]interface{}{"brand": brand, "cars": page.Cars})
		}
		fmt.Fprintln(w, styles.Title.Render(fmt.Sprintf("%s %s", icons.Brand, brand.Name)))
		if brand.Description != "" {
			fmt.Fprintln(w, brand.Description)
		}
		fmt.Fprintln(w, formatCarsHuman(page.Cars))
		return exitOK
	})
}

// formatCarsHuman formats a list of cars as a table
func formatCarsHuman(cars []client.Car) string {
	if len(cars) == 0 {
		return "No cars found."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-10s %-24s %-5s %14s %6s\n", "ID", "MODEL", "YEAR", "PRICE", "STOCK")
	for _, c := range cars {
		name := c.Model
		if c.Brand != nil {
			name = c.Brand.Name + " " + c.Model
		}
		fmt.Fprintf(&sb, "%-10s %-24s %-5d %14s %6d\n", c.ID, truncate(name, 24), c.Year, styles.FormatMoney(c.Price), c.Stock)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatCarDetailHuman formats one car for human readability
func formatCarDetailHuman(c *client.Car) string {
	brand := c.BrandID
	if c.Brand != nil {
		brand = c.Brand.Name
	}
	stock := widgets.StatusText(fmt.Sprintf("%d in stock", c.Stock), widgets.StockLevel(c.Stock))
	return fmt.Sprintf(`%s %s %s (%d)
ID:        %s
Price:     %s
Stock:     %s
Color:     %s
Fuel:      %s
Status:    %s`,
		icons.Car, brand, c.Model, c.Year,
		c.ID,
		styles.Money(c.Price),
		stock,
		orDash(c.Color),
		orDash(c.FuelType),
		orDash(c.Availability))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
