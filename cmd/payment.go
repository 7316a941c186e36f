// ABOUTME: Payment commands: one-off status check and watching until settled
// ABOUTME: Exit 0 when paid, 1 when cancelled or timed out, 2 on errors

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hiu1412/carshop/internal/client"
	"github.com/hiu1412/carshop/internal/tui/widgets"
)

var paymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Follow order payments",
}

var paymentStatusCmd = &cobra.Command{
	Use:   "status <order-code>",
	Short: "Check a payment once",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runPaymentStatus(ctx, os.Stdout, args[0]) })
	},
}

var paymentWatchCmd = &cobra.Command{
	Use:   "watch <order-code>",
	Short: "Wait until a payment is paid or cancelled",
	Long: `Check the payment right away and then every CARSHOP_PAYMENT_POLL_INTERVAL seconds
until it is PAID or CANCELLED, or CARSHOP_PAYMENT_POLL_TIMEOUT elapses.

Exit codes:
  0 - Payment completed
  1 - Payment cancelled or still pending at the timeout
  2 - Error (connectivity, session expired)`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runPaymentWatch(ctx, os.Stdout, args[0]) })
	},
}

func init() {
	rootCmd.AddCommand(paymentCmd)
	paymentCmd.AddCommand(paymentStatusCmd, paymentWatchCmd)
}

// runPaymentStatus checks a payment once
func runPaymentStatus(ctx context.Context, w io.Writer, code string) int {
	return withApp(ctx, w, func(a *app) int {
		status, err := a.client.CheckPaymentStatus(ctx, code)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, status)
		}
		fmt.Fprintln(w, formatPaymentHuman(code, status))
		return exitOK
	})
}

// runPaymentWatch polls until the payment settles
func runPaymentWatch(ctx context.Context, w io.Writer, code string) int {
	return withApp(ctx, w, func(a *app) int {
		status, err := watchPayment(ctx, w, a.poller, code)
		if IsJSONOutput() {
			out := map[string]interface{}{"order_code": code, "status": status}
			if err != nil {
				out["error"] = errorMessage(err)
			}
			writeJSON(w, out)
			return exitCode(err)
		}
		if err != nil {
			return fail(w, err)
		}
		fmt.Fprintln(w, formatPaymentHuman(code, status))
		return exitOK
	})
}

// formatPaymentHuman formats a payment status for human readability
func formatPaymentHuman(code string, s *client.PaymentStatus) string {
	out := fmt.Sprintf("Payment %s: %s", code, widgets.PaymentBadge(s.Status))
	if s.Message != "" {
		out += "\n" + s.Message
	}
	return out
}
