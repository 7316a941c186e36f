// ABOUTME: Cart commands: show, add, remove, set, clear and the interactive editor
// ABOUTME: Every change goes through the cart manager so the cache stays consistent

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hiu1412/carshop/internal/cart"
	"github.com/hiu1412/carshop/internal/logger"
	"github.com/hiu1412/carshop/internal/tui/carteditor"
	"github.com/hiu1412/carshop/internal/tui/icons"
	"github.com/hiu1412/carshop/internal/tui/styles"
)

const editorLogFile = "carshop.log"

var (
	cartAddQuantity    int
	cartRemoveQuantity int
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "View and change your cart",
}

var cartShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the cart with totals",
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runCartShow(ctx, os.Stdout) })
	},
}

var cartAddCmd = &cobra.Command{
	Use:   "add <car-id>",
	Short: "Add a car to the cart",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runCartAdd(ctx, os.Stdout, args[0], cartAddQuantity) })
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove <car-id>",
	Short: "Remove units of a car, or the whole line",
	Long: `Remove --quantity units of a car from the cart. Without --quantity, or with a
quantity at least the line's quantity, the whole line is removed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runCartRemove(ctx, os.Stdout, args[0], cartRemoveQuantity) })
	},
}

var cartSetCmd = &cobra.Command{
	Use:   "set <car-id> <quantity>",
	Short: "Set the quantity of a car in the cart",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stdout, "Error: quantity must be a number, got %q\n", args[1])
			os.Exit(exitError)
		}
		exitWith(func(ctx context.Context) int { return runCartSet(ctx, os.Stdout, args[0], qty) })
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runCartClear(ctx, os.Stdout) })
	},
}

var cartEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit quantities interactively",
	Long: `Open the interactive cart editor. Quantity changes show immediately and are
sent once you pause; anything the shop rejects is rolled back on screen.`,
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runCartEdit(ctx, os.Stdout) })
	},
}

func init() {
	rootCmd.AddCommand(cartCmd)
	cartCmd.AddCommand(cartShowCmd, cartAddCmd, cartRemoveCmd, cartSetCmd, cartClearCmd, cartEditCmd)

	cartAddCmd.Flags().IntVarP(&cartAddQuantity, "quantity", "q", 1, "Number of units")
	cartRemoveCmd.Flags().IntVarP(&cartRemoveQuantity, "quantity", "q", 0, "Number of units (default: whole line)")
}

// runCartShow prints the cart and returns exit code
func runCartShow(ctx context.Context, w io.Writer) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.requireSignIn(); err != nil {
			return fail(w, err)
		}
		return printCart(ctx, w, a)
	})
}

func printCart(ctx context.Context, w io.Writer, a *app) int {
	items, err := a.cart.GetCart(ctx)
	if err != nil {
		return fail(w, err)
	}
	if IsJSONOutput() {
		return writeJSON(w, cartView{Items: items, TotalItems: cart.TotalItems(items), TotalPrice: cart.TotalPrice(items).StringFixed(2)})
	}
	fmt.Fprintln(w, formatCartHuman(items))
	return exitOK
}

// cartView is the JSON shape of the cart
type cartView struct {
	Items      []cart.Item `json:"items"`
	TotalItems int         `json:"total_items"`
	TotalPrice string      `json:"total_price"`
}

// runCartAdd adds units of a car
func runCartAdd(ctx context.Context, w io.Writer, carID string, qty int) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.requireSignIn(); err != nil {
			return fail(w, err)
		}
		if err := a.cart.AddItem(ctx, carID, qty); err != nil {
			return fail(w, err)
		}
		if !IsJSONOutput() {
			fmt.Fprintf(w, "%s Added %d x %s to your cart.\n\n", icons.CheckOK, qty, carID)
		}
		return printCart(ctx, w, a)
	})
}

// runCartRemove removes units of a car, or the whole line when qty is 0
func runCartRemove(ctx context.Context, w io.Writer, carID string, qty int) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.requireSignIn(); err != nil {
			return fail(w, err)
		}
		if qty == 0 {
			if err := a.cart.RemoveLine(ctx, carID); err != nil {
				return fail(w, err)
			}
			if !IsJSONOutput() {
				fmt.Fprintf(w, "%s Removed %s from your cart.\n\n", icons.CheckOK, carID)
			}
			return printCart(ctx, w, a)
		}
		if err := a.cart.RemoveItem(ctx, carID, qty); err != nil {
			return fail(w, err)
		}
		if !IsJSONOutput() {
			fmt.Fprintf(w, "%s Removed %d x %s from your cart.\n\n", icons.CheckOK, qty, carID)
		}
		return printCart(ctx, w, a)
	})
}

// runCartSet moves a line to an exact quantity through the debounced update
// path, then flushes so the command does not wait out the debounce window.
func runCartSet(ctx context.Context, w io.Writer, carID string, qty int) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.requireSignIn(); err != nil {
			return fail(w, err)
		}
		items, err := a.cart.GetCart(ctx)
		if err != nil {
			return fail(w, err)
		}
		it, inCart := cart.Find(items, carID)
		if !inCart {
			if err := a.cart.AddItem(ctx, carID, qty); err != nil {
				return fail(w, err)
			}
			return printCart(ctx, w, a)
		}

		u, err := a.cart.UpdateQuantity(ctx, carID, qty, it.Quantity)
		if err != nil {
			return fail(w, err)
		}
		if err := a.cart.Flush(ctx); err != nil {
			return fail(w, err)
		}
		if err := u.Wait(ctx); err != nil {
			return fail(w, err)
		}
		return printCart(ctx, w, a)
	})
}

// runCartClear empties the cart
func runCartClear(ctx context.Context, w io.Writer) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.requireSignIn(); err != nil {
			return fail(w, err)
		}
		if err := a.cart.ClearCart(ctx); err != nil {
			return fail(w, err)
		}
		fmt.Fprintln(w, "Cart cleared.")
		return exitOK
	})
}

// runCartEdit opens the interactive editor. Logs go to a file so they do not
// tear the screen.
func runCartEdit(ctx context.Context, w io.Writer) int {
	cfg, err := loadConfig()
	if err != nil {
		return fail(w, err)
	}
	logFile, err := logger.OpenFile(cfg.ConfigDir, editorLogFile)
	if err != nil {
		return fail(w, err)
	}
	defer logFile.Close()

	a, err := newApp(ctx, logFile)
	if err != nil {
		return fail(w, err)
	}
	defer a.Close(ctx)

	if err := a.requireSignIn(); err != nil {
		return fail(w, err)
	}
	if err := carteditor.Run(ctx, a.cart); err != nil {
		return fail(w, err)
	}
	// Settle anything still waiting out the debounce before reporting.
	if err := a.cart.Flush(ctx); err != nil {
		return fail(w, err)
	}
	return printCart(ctx, w, a)
}

// formatCartHuman formats the cart as a table with totals
func formatCartHuman(items []cart.Item) string {
	if len(items) == 0 {
		return "Your cart is empty."
	}
	var sb strings.Builder
	sb.WriteString(styles.Title.Render(fmt.Sprintf("%s Your cart", icons.Cart)))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%-10s %-24s %4s %14s %14s\n", "ID", "CAR", "QTY", "PRICE", "SUBTOTAL")
	for _, it := range items {
		name := strings.TrimSpace(it.Product.BrandName + " " + it.Product.Model)
		fmt.Fprintf(&sb, "%-10s %-24s %4d %14s %14s\n",
			it.ProductID, truncate(name, 24), it.Quantity,
			styles.FormatMoney(it.Product.Price), styles.FormatMoney(it.Subtotal()))
	}
	n := cart.TotalItems(items)
	fmt.Fprintf(&sb, "\n%d %s, total %s", n, plural(n, "line", "lines"), styles.Money(cart.TotalPrice(items)))
	return sb.String()
}
