// ABOUTME: Checkout and order commands
// ABOUTME: Places an order from the cart, lists, shows and cancels orders

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hiu1412/carshop/internal/cart"
	"github.com/hiu1412/carshop/internal/client"
	"github.com/hiu1412/carshop/internal/payment"
	"github.com/hiu1412/carshop/internal/tui/forms"
	"github.com/hiu1412/carshop/internal/tui/icons"
	"github.com/hiu1412/carshop/internal/tui/styles"
	"github.com/hiu1412/carshop/internal/tui/widgets"
)

var errEmptyCart = errors.New("your cart is empty")

var (
	checkoutPay   string
	checkoutWatch bool
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Place an order for everything in the cart",
	Long: `Place an order for the whole cart and optionally start paying for it.

--pay link   create a payment link for the order total
--pay url    create a checkout page for the order
--pay later  only place the order

In a terminal, the payment method is asked for when --pay is not given.
With --watch the command waits until the payment completes.`,
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int {
			choose := payWith(forms.PayLater)
			switch {
			case checkoutPay != "":
				m, err := forms.ParsePaymentMethod(checkoutPay)
				if err != nil {
					return fail(os.Stdout, err)
				}
				choose = payWith(m)
			case isInteractive():
				choose = forms.SelectPaymentMethod
			}
			return runCheckout(ctx, os.Stdout, choose, checkoutWatch)
		})
	},
}

// payWith chooses m without asking
func payWith(m forms.PaymentMethod) func(string) (forms.PaymentMethod, error) {
	return func(string) (forms.PaymentMethod, error) { return m, nil }
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Your orders",
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your orders",
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runOrdersList(ctx, os.Stdout) })
	},
}

var ordersShowCmd = &cobra.Command{
	Use:   "show <order-id>",
	Short: "Show an order with its lines and payment",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runOrdersShow(ctx, os.Stdout, args[0]) })
	},
}

var ordersCancelCmd = &cobra.Command{
	Use:   "cancel <order-id>",
	Short: "Cancel a pending order",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int {
			if isInteractive() {
				ok, err := forms.Confirm(fmt.Sprintf("Cancel order %s?", args[0]))
				if err != nil {
					return fail(os.Stdout, err)
				}
				if !ok {
					return exitOK
				}
			}
			return runOrdersCancel(ctx, os.Stdout, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(checkoutCmd, ordersCmd)
	ordersCmd.AddCommand(ordersListCmd, ordersShowCmd, ordersCancelCmd)

	checkoutCmd.Flags().StringVar(&checkoutPay, "pay", "", "Payment method: link, url or later")
	checkoutCmd.Flags().BoolVar(&checkoutWatch, "watch", false, "Wait for the payment to complete")
}

// checkoutResult is the JSON shape of the checkout command
type checkoutResult struct {
	Order   *client.Order         `json:"order"`
	Payment *client.PaymentLink   `json:"payment,omitempty"`
	Status  *client.PaymentStatus `json:"payment_status,omitempty"`
}

// runCheckout places the order and starts the payment picked by choose,
// which is shown the cart total.
func runCheckout(ctx context.Context, w io.Writer, choose func(total string) (forms.PaymentMethod, error), watch bool) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.requireSignIn(); err != nil {
			return fail(w, err)
		}
		items, err := a.cart.GetCart(ctx)
		if err != nil {
			return fail(w, err)
		}
		if len(items) == 0 {
			return fail(w, errEmptyCart)
		}
		// Settle pending edits so the order matches what the user sees.
		if err := a.cart.Flush(ctx); err != nil {
			return fail(w, err)
		}
		method, err := choose(styles.FormatMoney(cart.TotalPrice(items)))
		if err != nil {
			return fail(w, err)
		}

		order, err := a.client.CreateOrderFromCart(ctx)
		if err != nil {
			return fail(w, err)
		}
		// The server emptied the cart.
		a.cart.Invalidate()

		result := checkoutResult{Order: order}
		switch method {
		case forms.PayByLink:
			result.Payment, err = a.client.CreatePaymentLink(ctx, order.ID, order.TotalPrice)
		case forms.PayByURL:
			result.Payment, err = a.client.CreatePaymentURL(ctx, order.ID)
		}
		if err != nil {
			fmt.Fprintf(w, "Order %s was placed but no payment could be started.\n", order.ID)
			return fail(w, err)
		}

		if !IsJSONOutput() {
			fmt.Fprintln(w, formatOrderHuman(order))
			if result.Payment != nil {
				fmt.Fprintf(w, "\n%s Pay here: %s\n", icons.Money, result.Payment.URL)
				fmt.Fprintf(w, "Order code: %s\n", result.Payment.OrderCode)
			}
		}

		code := exitOK
		if watch && result.Payment != nil {
			result.Status, err = watchPayment(ctx, w, a.poller, result.Payment.OrderCode)
			code = exitCode(err)
			if err != nil && !IsJSONOutput() {
				fail(w, err)
			}
		}

		if IsJSONOutput() {
			writeJSON(w, result)
		}
		return code
	})
}

// runOrdersList lists the signed-in user's orders
func runOrdersList(ctx context.Context, w io.Writer) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.requireSignIn(); err != nil {
			return fail(w, err)
		}
		orders, err := a.client.MyOrders(ctx)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, orders)
		}
		fmt.Fprintln(w, formatOrdersHuman(orders))
		return exitOK
	})
}

// runOrdersShow shows one order
func runOrdersShow(ctx context.Context, w io.Writer, id string) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.requireSignIn(); err != nil {
			return fail(w, err)
		}
		order, err := a.client.GetOrder(ctx, id)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, order)
		}
		fmt.Fprintln(w, formatOrderHuman(order))
		return exitOK
	})
}

// runOrdersCancel cancels a pending order
func runOrdersCancel(ctx context.Context, w io.Writer, id string) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.requireSignIn(); err != nil {
			return fail(w, err)
		}
		order, err := a.client.CancelOrder(ctx, id)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, order)
		}
		fmt.Fprintf(w, "Order %s cancelled.\n", order.ID)
		return exitOK
	})
}

// formatOrdersHuman formats a list of orders as a table
func formatOrdersHuman(orders []client.Order) string {
	if len(orders) == 0 {
		return "No orders yet."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-12s %-22s %14s  %s\n", "ID", "PLACED", "TOTAL", "STATUS")
	for _, o := range orders {
		fmt.Fprintf(&sb, "%-12s %-22s %14s  %s\n", o.ID, o.OrderTime, styles.FormatMoney(o.TotalPrice), widgets.OrderBadge(o.Status))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatOrderHuman formats one order with its lines and payment
func formatOrderHuman(o *client.Order) string {
	var sb strings.Builder
	sb.WriteString(styles.Title.Render(fmt.Sprintf("%s Order %s", icons.Order, o.ID)))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Status:  %s\n", widgets.OrderBadge(o.Status))
	fmt.Fprintf(&sb, "Placed:  %s\n\n", o.OrderTime)
	for _, d := range o.OrderDetails {
		name := strings.TrimSpace(d.Car.Model)
		if d.Car.Brand != nil {
			name = d.Car.Brand.Name + " " + name
		}
		if name == "" {
			name = d.CarID
		}
		fmt.Fprintf(&sb, "  %-24s %3d x %14s = %14s\n", truncate(name, 24), d.Quantity, styles.FormatMoney(d.Price), styles.FormatMoney(d.SubtotalPrice))
	}
	fmt.Fprintf(&sb, "\nTotal:   %s", styles.Money(o.TotalPrice))
	if o.Payment != nil {
		fmt.Fprintf(&sb, "\nPayment: %s", widgets.PaymentBadge(o.Payment.Status))
		if o.Payment.PaidAt != nil {
			fmt.Fprintf(&sb, " at %s", *o.Payment.PaidAt)
		}
	}
	return sb.String()
}

// watchPayment polls until the payment settles, printing progress in human mode
func watchPayment(ctx context.Context, w io.Writer, p *payment.Poller, code string) (*client.PaymentStatus, error) {
	if !IsJSONOutput() {
		fmt.Fprintf(w, "%s Waiting for payment %s (Ctrl+C to stop)...\n", icons.Pending, code)
	}
	return p.Watch(ctx, code, func(u payment.Update) {
		if IsJSONOutput() {
			return
		}
		if u.Err != nil {
			fmt.Fprintf(w, "  check %d failed: %v\n", u.Attempt, u.Err)
			return
		}
		fmt.Fprintf(w, "  check %d: %s\n", u.Attempt, widgets.StatusText(u.Status.Status, widgets.PaymentLevel(u.Status.Status)))
	})
}
