// ABOUTME: Payment method selection shown after an order is placed
// ABOUTME: Same select-menu pattern as the rest of the interactive forms

package forms

import (
	"fmt"

	"github.com/charmbracelet/huh"
)

// PaymentMethod is how the customer wants to pay for a new order
type PaymentMethod int

const (
	PayByLink PaymentMethod = iota
	PayByURL
	PayLater
)

// String returns the flag value of a PaymentMethod
func (m PaymentMethod) String() string {
	switch m {
	case PayByLink:
		return "link"
	case PayByURL:
		return "url"
	case PayLater:
		return "later"
	default:
		return "unknown"
	}
}

// ParsePaymentMethod parses a --pay flag value
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	for _, m := range []PaymentMethod{PayByLink, PayByURL, PayLater} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown payment method %q (use link, url or later)", s)
}

type methodOption struct {
	label string
	value PaymentMethod
}

var methodOptions = []methodOption{
	{label: "Payment link (amount checked by the gateway)", value: PayByLink},
	{label: "Checkout page for this order", value: PayByURL},
	{label: "Pay later", value: PayLater},
}

// SelectPaymentMethod asks how to pay an order of the given total
func SelectPaymentMethod(total string) (PaymentMethod, error) {
	var options []huh.Option[PaymentMethod]
	for _, opt := range methodOptions {
		options = append(options, huh.NewOption(opt.label, opt.value))
	}

	selected := PayByLink
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[PaymentMethod]().
				Title("How do you want to pay?").
				Description("Order total: " + total).
				Options(options...).
				Value(&selected),
		),
	).WithTheme(Theme())

	if err := form.Run(); err != nil {
		return 0, err
	}
	return selected, nil
}

// Confirm asks a yes/no question
func Confirm(title string) (bool, error) {
	ok := false
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithTheme(Theme()).Run()
	return ok, err
}
