// ABOUTME: Status command for the carshop CLI
// ABOUTME: Shows API connectivity, who is signed in, and a cart summary

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hiu1412/carshop/internal/cart"
	"github.com/hiu1412/carshop/internal/tui/styles"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, session and cart summary",
	Long:  `Check that the API is reachable and show the signed-in account with a summary of its cart.`,
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runStatus(ctx, os.Stdout) })
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusReport is the JSON shape of the status command
type statusReport struct {
	APIURL     string           `json:"api_url"`
	Reachable  bool             `json:"reachable"`
	Error      string           `json:"error,omitempty"`
	SignedIn   bool             `json:"signed_in"`
	Email      string           `json:"email,omitempty"`
	Role       string           `json:"role,omitempty"`
	CartLines  int              `json:"cart_lines"`
	CartTotal  *decimal.Decimal `json:"cart_total,omitempty"`
	CartDetail string           `json:"cart_error,omitempty"`
}

// runStatus executes the status check and returns exit code
func runStatus(ctx context.Context, w io.Writer) int {
	return withApp(ctx, w, func(a *app) int {
		report := statusReport{APIURL: a.cfg.APIURL}

		if _, err := a.client.ListBrands(ctx); err != nil {
			report.Error = err.Error()
		} else {
			report.Reachable = true
		}

		if a.session.SignedIn() {
			report.SignedIn = true
			if p, err := a.session.Profile(); err == nil && p != nil {
				report.Email, report.Role = p.Email, p.Role
			}
			if report.Reachable {
				if items, err := a.cart.GetCart(ctx); err != nil {
					report.CartDetail = errorMessage(err)
				} else {
					report.CartLines = len(items)
					total := cart.TotalPrice(items)
					report.CartTotal = &total
				}
			}
		}

		if IsJSONOutput() {
			writeJSON(w, report)
		} else {
			fmt.Fprintln(w, formatStatusHuman(&report))
		}
		if !report.Reachable {
			return exitError
		}
		return exitOK
	})
}

// formatStatusHuman formats the status report for human readability
func formatStatusHuman(r *statusReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "API:        %s\n", r.APIURL)
	if r.Reachable {
		fmt.Fprintf(&sb, "Status:     %s\n", styles.StatusOK.Render("reachable"))
	} else {
		fmt.Fprintf(&sb, "Status:     %s (%s)\n", styles.StatusCritical.Render("unreachable"), r.Error)
	}

	if !r.SignedIn {
		sb.WriteString("Session:    not signed in")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Signed in:  %s (%s)\n", r.Email, r.Role)
	switch {
	case r.CartDetail != "":
		fmt.Fprintf(&sb, "Cart:       %s", r.CartDetail)
	case r.CartTotal != nil:
		fmt.Fprintf(&sb, "Cart:       %d %s, %s", r.CartLines, plural(r.CartLines, "line", "lines"), styles.Money(*r.CartTotal))
	default:
		sb.WriteString("Cart:       unavailable")
	}
	return sb.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
