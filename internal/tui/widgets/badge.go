// ABOUTME: Status badge widgets for quick visual status indication
// ABOUTME: Maps order, payment and stock states to colored badges

package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hiu1412/carshop/internal/tui/icons"
)

// StatusLevel represents the severity of a status
type StatusLevel int

const (
	StatusOK StatusLevel = iota
	StatusWarning
	StatusCritical
	StatusInfo
	StatusNeutral
)

// Badge colors
var (
	BadgeOKBg      = lipgloss.Color("#10B981")
	BadgeOKFg      = lipgloss.Color("#FFFFFF")
	BadgeWarnBg    = lipgloss.Color("#F59E0B")
	BadgeWarnFg    = lipgloss.Color("#000000")
	BadgeCritBg    = lipgloss.Color("#EF4444")
	BadgeCritFg    = lipgloss.Color("#FFFFFF")
	BadgeInfoBg    = lipgloss.Color("#3B82F6")
	BadgeInfoFg    = lipgloss.Color("#FFFFFF")
	BadgeNeutralBg = lipgloss.Color("#6B7280")
	BadgeNeutralFg = lipgloss.Color("#FFFFFF")
)

func colors(level StatusLevel) (bg, fg lipgloss.Color) {
	switch level {
	case StatusOK:
		return BadgeOKBg, BadgeOKFg
	case StatusWarning:
		return BadgeWarnBg, BadgeWarnFg
	case StatusCritical:
		return BadgeCritBg, BadgeCritFg
	case StatusInfo:
		return BadgeInfoBg, BadgeInfoFg
	default:
		return BadgeNeutralBg, BadgeNeutralFg
	}
}

// Badge renders a colored status badge
func Badge(text string, level StatusLevel) string {
	bg, fg := colors(level)
	return lipgloss.NewStyle().
		Background(bg).
		Foreground(fg).
		Padding(0, 1).
		Bold(true).
		Render(text)
}

// OrderLevel maps an order status (pending, completed, cancelled).
func OrderLevel(status string) StatusLevel {
	switch strings.ToLower(status) {
	case "completed":
		return StatusOK
	case "pending":
		return StatusWarning
	case "cancelled":
		return StatusCritical
	default:
		return StatusNeutral
	}
}

// PaymentLevel maps a payment status from either the order record
// (pending, completed, failed) or the gateway (PENDING, PAID, CANCELLED).
func PaymentLevel(status string) StatusLevel {
	switch strings.ToLower(status) {
	case "paid", "completed":
		return StatusOK
	case "pending":
		return StatusWarning
	case "cancelled", "failed":
		return StatusCritical
	default:
		return StatusNeutral
	}
}

// StockLevel flags sold-out and low stock.
func StockLevel(stock int) StatusLevel {
	switch {
	case stock <= 0:
		return StatusCritical
	case stock <= 2:
		return StatusWarning
	default:
		return StatusOK
	}
}

// OrderBadge renders an order status badge
func OrderBadge(status string) string {
	return Badge(strings.ToUpper(status), OrderLevel(status))
}

// PaymentBadge renders a payment status badge
func PaymentBadge(status string) string {
	return Badge(strings.ToUpper(status), PaymentLevel(status))
}

// StatusIcon returns the appropriate icon for a status level
func StatusIcon(level StatusLevel) string {
	bg, _ := colors(level)
	style := lipgloss.NewStyle().Foreground(bg)
	switch level {
	case StatusOK:
		return style.Render(icons.CheckOK.String())
	case StatusWarning:
		return style.Render(icons.Warning.String())
	case StatusCritical:
		return style.Render(icons.Critical.String())
	case StatusInfo:
		return style.Render(icons.Info.String())
	default:
		return style.Render("•")
	}
}

// StatusText returns styled status text with icon
func StatusText(text string, level StatusLevel) string {
	bg, _ := colors(level)
	return fmt.Sprintf("%s %s", StatusIcon(level), lipgloss.NewStyle().Foreground(bg).Render(text))
}
