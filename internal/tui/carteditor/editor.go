// ABOUTME: Interactive cart editor as a bubbletea model
// ABOUTME: Shows quantity changes immediately and rolls back what the server rejects

package carteditor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/hiu1412/carshop/internal/cart"
	"github.com/hiu1412/carshop/internal/tui/icons"
	"github.com/hiu1412/carshop/internal/tui/styles"
	"github.com/hiu1412/carshop/internal/tui/widgets"
)

// Cart is what the editor needs from the cart manager. *cart.Manager satisfies it.
type Cart interface {
	GetCart(ctx context.Context) ([]cart.Item, error)
	UpdateQuantity(ctx context.Context, productID string, target, origin int) (*cart.Update, error)
	RemoveLine(ctx context.Context, productID string) error
}

// cartLoadedMsg is sent when the cart has been (re)loaded
type cartLoadedMsg struct {
	items []cart.Item
	err   error
}

// updateSettledMsg is sent when a quantity update is confirmed or rejected
type updateSettledMsg struct {
	update *cart.Update
}

// removedMsg is sent when a line removal completes
type removedMsg struct {
	productID string
	err       error
}

// Editor is the cart editing screen
type Editor struct {
	ctx  context.Context
	cart Cart

	items     []cart.Item
	shown     map[string]int          // quantity on screen
	confirmed map[string]int          // quantity the server last accepted
	latest    map[string]*cart.Update // newest update per product
	cursor    int

	loading bool
	err     error
	notice  string

	spinner spinner.Model
	keys    keyMap
	help    help.Model
	width   int
}

// New creates an editor for c
func New(ctx context.Context, c Cart) *Editor {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Warning)

	return &Editor{
		ctx:       ctx,
		cart:      c,
		shown:     map[string]int{},
		confirmed: map[string]int{},
		latest:    map[string]*cart.Update{},
		loading:   true,
		spinner:   s,
		keys:      defaultKeys(),
		help:      help.New(),
	}
}

// Init implements tea.Model
func (e *Editor) Init() tea.Cmd {
	return tea.Batch(e.spinner.Tick, e.load())
}

func (e *Editor) load() tea.Cmd {
	return func() tea.Msg {
		items, err := e.cart.GetCart(e.ctx)
		return cartLoadedMsg{items: items, err: err}
	}
}

func waitFor(u *cart.Update) tea.Cmd {
	return func() tea.Msg {
		<-u.Done()
		return updateSettledMsg{update: u}
	}
}

// Update implements tea.Model
func (e *Editor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		e.width = msg.Width
		e.help.Width = msg.Width
		return e, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		e.spinner, cmd = e.spinner.Update(msg)
		return e, cmd

	case cartLoadedMsg:
		e.loading = false
		e.err = msg.err
		if msg.err == nil {
			e.setItems(msg.items)
		}
		return e, nil

	case updateSettledMsg:
		return e, e.settle(msg.update)

	case removedMsg:
		if msg.err != nil {
			e.err = msg.err
		} else {
			e.notice = "Removed from cart"
		}
		e.loading = true
		return e, e.load()

	case tea.KeyMsg:
		return e.handleKey(msg)
	}
	return e, nil
}

func (e *Editor) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, e.keys.Quit):
		return e, tea.Quit
	case key.Matches(msg, e.keys.Up):
		if e.cursor > 0 {
			e.cursor--
		}
	case key.Matches(msg, e.keys.Down):
		if e.cursor < len(e.items)-1 {
			e.cursor++
		}
	case key.Matches(msg, e.keys.Increase):
		return e, e.change(+1)
	case key.Matches(msg, e.keys.Decrease):
		return e, e.change(-1)
	case key.Matches(msg, e.keys.Remove):
		return e, e.remove()
	case key.Matches(msg, e.keys.Reload):
		e.loading = true
		e.err, e.notice = nil, ""
		return e, e.load()
	}
	return e, nil
}

// change moves the selected line's displayed quantity by delta right away and
// schedules the server update.
func (e *Editor) change(delta int) tea.Cmd {
	item, ok := e.selected()
	if !ok {
		return nil
	}
	id := item.ProductID
	target := e.shown[id] + delta
	if target < 1 {
		e.notice = "Press d to remove this car from the cart"
		return nil
	}

	u, err := e.cart.UpdateQuantity(e.ctx, id, target, e.confirmed[id])
	if err != nil {
		e.err = err
		return nil
	}
	e.err, e.notice = nil, ""
	e.shown[id] = target
	e.latest[id] = u
	return waitFor(u)
}

// settle applies a finished update. Superseded updates are ignored; a newer
// update for the same product keeps the optimistic value on screen.
func (e *Editor) settle(u *cart.Update) tea.Cmd {
	if errors.Is(u.Err(), cart.ErrSuperseded) {
		return nil
	}
	id := u.ProductID
	e.confirmed[id] = u.Confirmed()

	if e.latest[id] != u {
		return nil
	}
	delete(e.latest, id)
	e.shown[id] = u.Confirmed()

	if err := u.Err(); err != nil {
		e.err = err
		// Stock and not-in-cart answers mean the local view is stale.
		if cart.IsBusinessRule(err) {
			e.loading = true
			return e.load()
		}
	}
	return nil
}

func (e *Editor) remove() tea.Cmd {
	item, ok := e.selected()
	if !ok {
		return nil
	}
	id := item.ProductID
	// The manager cancels the product's pending update; the reload shows
	// what the server kept.
	delete(e.latest, id)
	return func() tea.Msg {
		return removedMsg{productID: id, err: e.cart.RemoveLine(e.ctx, id)}
	}
}

func (e *Editor) setItems(items []cart.Item) {
	e.items = items
	for _, it := range items {
		e.confirmed[it.ProductID] = it.Quantity
		if _, busy := e.latest[it.ProductID]; !busy {
			e.shown[it.ProductID] = it.Quantity
		}
	}
	if e.cursor >= len(items) {
		e.cursor = len(items) - 1
	}
	if e.cursor < 0 {
		e.cursor = 0
	}
}

func (e *Editor) selected() (cart.Item, bool) {
	if e.loading || len(e.items) == 0 {
		return cart.Item{}, false
	}
	return e.items[e.cursor], true
}

// displayTotal prices the lines at their on-screen quantities.
func (e *Editor) displayTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range e.items {
		total = total.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(e.shown[it.ProductID]))))
	}
	return total
}

// View implements tea.Model
func (e *Editor) View() string {
	var sb strings.Builder
	sb.WriteString(styles.Title.Render(fmt.Sprintf("%s Your cart", icons.Cart)))
	sb.WriteString("\n")

	switch {
	case e.loading && len(e.items) == 0:
		sb.WriteString(e.spinner.View() + " Loading cart...\n")
	case len(e.items) == 0:
		sb.WriteString(styles.Subtitle.Render("Your cart is empty.") + "\n")
	default:
		for i, it := range e.items {
			sb.WriteString(e.renderLine(i, it))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%d %s   Total %s\n",
			cart.TotalItems(e.items), plural(cart.TotalItems(e.items), "line", "lines"), styles.Money(e.displayTotal())))
	}

	if e.err != nil {
		sb.WriteString("\n" + widgets.StatusText(Message(e.err), widgets.StatusCritical) + "\n")
	} else if e.notice != "" {
		sb.WriteString("\n" + widgets.StatusText(e.notice, widgets.StatusInfo) + "\n")
	}

	sb.WriteString(styles.Help.Render(e.help.View(e.keys)))
	return sb.String()
}

func (e *Editor) renderLine(i int, it cart.Item) string {
	cursor := "  "
	name := fmt.Sprintf("%s %s", it.Product.BrandName, it.Product.Model)
	if i == e.cursor {
		cursor = styles.KeyStyle.Render("> ")
		name = styles.Selected.Render(name)
	}

	qty := fmt.Sprintf("x%d", e.shown[it.ProductID])
	if _, busy := e.latest[it.ProductID]; busy {
		qty = styles.Pending.Render(qty) + " " + e.spinner.View()
	} else {
		qty = styles.ValueStyle.Render(qty)
	}

	subtotal := it.Product.Price.Mul(decimal.NewFromInt(int64(e.shown[it.ProductID])))
	return fmt.Sprintf("%s%-28s %s  %s", cursor, name, qty, styles.Money(subtotal))
}

// Message turns a cart error into a line for the user.
func Message(err error) string {
	var stock *cart.StockExceededError
	var missing *cart.NotInCartError
	var generic *cart.Error
	switch {
	case errors.As(err, &stock) && stock.Requested == 0:
		return "Not enough stock for that quantity. The cart was reloaded."
	case errors.As(err, &stock):
		return fmt.Sprintf("Only %d in stock (you have %d in your cart)", stock.Available, stock.Current)
	case errors.As(err, &missing):
		return "That car is no longer in your cart. The cart was reloaded."
	case errors.Is(err, cart.ErrNotAuthenticated):
		return "Your session has expired. Run 'carshop login' and try again."
	case errors.As(err, &generic):
		return generic.UserMessage()
	default:
		return err.Error()
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Run starts the editor and blocks until the user quits
func Run(ctx context.Context, c Cart) error {
	p := tea.NewProgram(New(ctx, c), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
