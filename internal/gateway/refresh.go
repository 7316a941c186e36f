// ABOUTME: Refresh state machine shared by every request that sees a 401
// ABOUTME: One refresh call in flight at a time; other callers wait in the pending queue

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
)

type refreshState int

const (
	stateIdle refreshState = iota
	stateRefreshing
)

func (s refreshState) String() string {
	if s == stateRefreshing {
		return "REFRESHING"
	}
	return "IDLE"
}

type refreshOutcome struct {
	token *oauth2.Token
	err   error
}

// recoverCredentials returns a token to retry with after `rejected` got a 401.
//
// IDLE -> REFRESHING happens under g.mu before the refresh call is issued, so
// any caller that arrives while the call is in flight parks in g.pending. The
// queue is drained exactly once when the call resolves.
func (g *Gateway) recoverCredentials(ctx context.Context, rejected *oauth2.Token) (*oauth2.Token, error) {
	g.mu.Lock()
	if g.state == stateRefreshing {
		ch := make(chan refreshOutcome, 1)
		g.pending = append(g.pending, ch)
		g.mu.Unlock()

		select {
		case out := <-ch:
			return out.token, out.err
		case <-ctx.Done():
			return nil, g.handleRequestError(ctx, ctx.Err())
		}
	}

	// The slot changed after our request left: someone else already
	// refreshed (or signed in). Retry with that instead of refreshing again.
	current, err := g.creds.Token()
	if err == nil && current != nil && !sameToken(current, rejected) {
		g.mu.Unlock()
		return current, nil
	}
	// The slot was cleared since our request left: a refresh already failed
	// and signed the user out. No further automatic retries.
	if err == nil && current == nil && rejected != nil {
		g.mu.Unlock()
		return nil, ErrSessionExpired
	}

	g.state = stateRefreshing
	g.mu.Unlock()

	tok, err := g.refresh(ctx)

	g.mu.Lock()
	waiters := g.pending
	g.pending = nil
	g.state = stateIdle
	g.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshOutcome{token: tok, err: err}
	}
	if len(waiters) > 0 {
		slog.Debug("Released queued requests", "count", len(waiters), "refreshed", err == nil)
	}
	return tok, err
}

// refresh calls the refresh endpoint directly, outside Request, so it is never
// itself intercepted. The refresh cookie rides along via the client's jar.
// The call is detached from the caller's cancellation: waiters depend on it.
func (g *Gateway) refresh(ctx context.Context) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	slog.Info("Refreshing access token")
	tok, err := g.requestNewToken(ctx)
	if err != nil {
		slog.Warn("Token refresh failed, signing out", "error", err)
		if clearErr := g.creds.Clear(); clearErr != nil {
			slog.Error("Failed to clear credentials", "error", clearErr)
		}
		err = fmt.Errorf("%w: %w", ErrSessionExpired, err)
		if g.onSignedOut != nil {
			g.onSignedOut(err)
		}
		return nil, err
	}

	if err := g.creds.SetToken(tok); err != nil {
		slog.Error("Failed to store refreshed token", "error", err)
	}
	return tok, nil
}

func (g *Gateway) requestNewToken(ctx context.Context) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+PathRefresh, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(http.MethodPost, PathRefresh, resp.StatusCode, body)
	}

	var env struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse refresh response: %w", err)
	}
	if env.Data.AccessToken == "" {
		return nil, fmt.Errorf("refresh response has no access token")
	}
	return &oauth2.Token{AccessToken: env.Data.AccessToken, TokenType: "Bearer"}, nil
}

func sameToken(a, b *oauth2.Token) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.AccessToken == b.AccessToken
}
