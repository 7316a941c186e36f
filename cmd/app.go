// ABOUTME: Wires configuration, session, gateway, cart manager and API client
// ABOUTME: Built once per command invocation and closed before exit

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/hiu1412/carshop/internal/cart"
	"github.com/hiu1412/carshop/internal/client"
	"github.com/hiu1412/carshop/internal/config"
	"github.com/hiu1412/carshop/internal/gateway"
	"github.com/hiu1412/carshop/internal/logger"
	"github.com/hiu1412/carshop/internal/payment"
	"github.com/hiu1412/carshop/internal/session"
	"github.com/hiu1412/carshop/internal/telemetry"
)

// Exit codes
const (
	exitOK       = 0
	exitRejected = 1
	exitError    = 2
)

const closeTimeout = 5 * time.Second

var errNotSignedIn = errors.New("not signed in, run 'carshop login' first")

type app struct {
	cfg      *config.Config
	session  *session.Session
	gateway  *gateway.Gateway
	client   *client.Client
	cart     *cart.Manager
	poller   *payment.Poller
	shutdown func(context.Context) error
}

// loadConfig reads .env and the environment, then applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.APIURL = strings.TrimRight(GetAPIURL(), "/")
	cfg.ConfigDir = GetConfigDir()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp builds every component. Logs go to logOut (stderr for plain commands).
func newApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: logOut})

	sess, err := session.Open(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	gw, err := gateway.New(gateway.Options{
		BaseURL:     cfg.APIURL,
		Credentials: sess.Credentials(),
		Jar:         sess.Jar(),
		Timeout:     cfg.RequestTimeout,
		OnSignedOut: func(err error) {
			slog.Warn("Signed out after failed token refresh", "error", err)
			if endErr := sess.End(); endErr != nil {
				slog.Error("Failed to clear session", "error", endErr)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	c := client.New(gw, client.Options{Session: sess})
	return &app{
		cfg:      cfg,
		session:  sess,
		gateway:  gw,
		client:   c,
		cart:     cart.New(gw, cartOptions(cfg)),
		poller:   payment.NewPoller(c, cfg.PaymentPollInterval, cfg.PaymentPollTimeout),
		shutdown: telemetry.Setup(ctx, "carshop"),
	}, nil
}

// cartOptions maps the cart settings. A configured TTL of zero means "always
// refetch", which the manager spells as a negative TTL.
func cartOptions(cfg *config.Config) cart.Options {
	ttl := cfg.CartCacheTTL
	if ttl == 0 {
		ttl = -1
	}
	return cart.Options{Debounce: cfg.CartDebounce, CacheTTL: ttl}
}

// Close flushes pending cart edits and persists the session.
func (a *app) Close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()

	if err := a.cart.Close(ctx); err != nil {
		slog.Warn("Pending cart changes were not confirmed", "error", err)
	}
	a.client.Close()
	if err := a.session.Save(); err != nil {
		slog.Warn("Failed to save session", "error", err)
	}
	if err := a.shutdown(ctx); err != nil {
		slog.Warn("Failed to flush traces", "error", err)
	}
}

// requireSignIn fails fast when no access token is stored.
func (a *app) requireSignIn() error {
	if !a.session.SignedIn() {
		return errNotSignedIn
	}
	return nil
}

// requireAdmin checks the stored profile. The server enforces it as well.
func (a *app) requireAdmin() error {
	if err := a.requireSignIn(); err != nil {
		return err
	}
	p, err := a.session.Profile()
	if err != nil {
		return err
	}
	if !p.IsAdmin() {
		return errors.New("this command needs an admin account")
	}
	return nil
}

// withApp builds the app, runs fn and closes the app.
func withApp(ctx context.Context, w io.Writer, fn func(a *app) int) int {
	a, err := newApp(ctx, os.Stderr)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitError
	}
	defer a.Close(ctx)
	return fn(a)
}

// fail prints err and returns its exit code
func fail(w io.Writer, err error) int {
	fmt.Fprintf(w, "Error: %s\n", errorMessage(err))
	return exitCode(err)
}

// exitCode maps an error to the documented exit codes
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case cart.IsBusinessRule(err),
		errors.Is(err, payment.ErrPaymentCancelled),
		errors.Is(err, payment.ErrTimeout),
		errors.Is(err, errEmptyCart):
		return exitRejected
	default:
		return exitError
	}
}

// errorMessage prefers the messages meant for shoppers
func errorMessage(err error) string {
	var generic *cart.Error
	var apiErr *gateway.APIError
	switch {
	case errors.Is(err, cart.ErrNotAuthenticated), errors.Is(err, gateway.ErrSessionExpired):
		return "your session has expired, run 'carshop login' and try again"
	case cart.IsBusinessRule(err):
		return err.Error()
	case errors.As(err, &generic):
		return fmt.Sprintf("%s (%v)", generic.UserMessage(), generic.Err)
	case errors.As(err, &apiErr) && len(apiErr.Errors) > 0:
		var sb strings.Builder
		sb.WriteString(err.Error())
		for field, msgs := range apiErr.Errors {
			for _, m := range msgs {
				fmt.Fprintf(&sb, "\n  %s: %s", field, m)
			}
		}
		return sb.String()
	default:
		return err.Error()
	}
}

// writeJSON writes v as indented JSON
func writeJSON(w io.Writer, v interface{}) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitError
	}
	fmt.Fprintln(w, string(data))
	return exitOK
}

// signalContext is canceled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// exitWith runs a command body and exits non-zero when it fails
func exitWith(run func(ctx context.Context) int) {
	ctx, cancel := signalContext()
	exitCode := run(ctx)
	cancel()
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// isInteractive reports whether prompts can be shown
func isInteractive() bool {
	return !jsonOutput && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
