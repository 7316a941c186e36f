// ABOUTME: Authentication calls: login, register, logout and account verification
// ABOUTME: Login and register fill the session; logout always ends it

package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/hiu1412/carshop/internal/gateway"
)

type authData struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
}

// Login signs in and stores the access token and profile in the session. The
// refresh cookie lands in the session's jar.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var data authData
	body := map[string]string{"email": email, "password": password}
	if err := c.getData(ctx, http.MethodPost, gateway.PathLogin, body, nil, &data); err != nil {
		return nil, err
	}
	if err := c.startSession(&data); err != nil {
		return nil, err
	}
	slog.Info("Signed in", "user_id", data.User.ID, "role", data.User.Role)
	return &data.User, nil
}

// Register creates an account. When the server also signs the user in, the
// session is filled as on Login.
func (c *Client) Register(ctx context.Context, in RegisterInput) (*User, error) {
	var data authData
	if err := c.getData(ctx, http.MethodPost, gateway.PathRegister, in, nil, &data); err != nil {
		return nil, err
	}
	if data.AccessToken != "" {
		if err := c.startSession(&data); err != nil {
			return nil, err
		}
	}
	return &data.User, nil
}

func (c *Client) startSession(data *authData) error {
	if data.AccessToken == "" {
		return fmt.Errorf("invalid response from backend: no access token")
	}
	tok := &oauth2.Token{AccessToken: data.AccessToken, TokenType: "Bearer"}
	if err := c.session.Credentials().SetToken(tok); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	if err := c.session.SetProfile(data.User.Profile()); err != nil {
		return fmt.Errorf("failed to store profile: %w", err)
	}
	if err := c.session.Save(); err != nil {
		slog.Warn("Failed to persist cookies", "error", err)
	}
	return nil
}

// Logout tells the server and then ends the local session, even when the
// server call fails.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.api.Request(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		slog.Warn("Server logout failed, ending local session anyway", "error", err)
	}
	if err := c.session.End(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Me returns the signed-in user and refreshes the stored profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var data struct {
		User User `json:"user"`
	}
	if err := c.getData(ctx, http.MethodGet, "/auth/user", nil, nil, &data); err != nil {
		return nil, err
	}
	if err := c.session.SetProfile(data.User.Profile()); err != nil {
		slog.Warn("Failed to store profile", "error", err)
	}
	return &data.User, nil
}

// VerifyEmail confirms an address with the token from the verification mail.
func (c *Client) VerifyEmail(ctx context.Context, email, token string) error {
	body := map[string]string{"email": email}
	return c.getData(ctx, http.MethodPost, pathf("/auth/verify-email/%s", token), body, nil, nil)
}

// ResendVerification asks for a new verification mail.
func (c *Client) ResendVerification(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.getData(ctx, http.MethodPost, "/auth/resend-verification-email", body, nil, nil)
}

// GoogleAuthURL returns the URL that starts Google sign-in in a browser.
func (c *Client) GoogleAuthURL(ctx context.Context) (string, error) {
	var data struct {
		URL string `json:"url"`
	}
	if err := c.getData(ctx, http.MethodGet, "/auth/google", nil, nil, &data); err != nil {
		return "", err
	}
	return data.URL, nil
}
