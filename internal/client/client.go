// ABOUTME: Typed client for the car storefront API
// ABOUTME: Every call goes through the authenticated gateway and decodes the data envelope

package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hiu1412/carshop/internal/cache"
	"github.com/hiu1412/carshop/internal/gateway"
	"github.com/hiu1412/carshop/internal/session"
)

const (
	defaultBrandCacheTTL = 5 * time.Minute
	headerIdempotencyKey = "Idempotency-Key"
)

// Requester issues API calls. *gateway.Gateway satisfies it.
type Requester interface {
	Request(ctx context.Context, method, path string, body interface{}, headers map[string]string) (*gateway.Response, error)
}

// Options configures a Client.
type Options struct {
	// Session receives the token and profile on login and is ended on logout.
	Session *session.Session
	// BrandCacheTTL bounds brand lookups (default 5m, negative disables).
	BrandCacheTTL time.Duration
}

// Client is the storefront and back-office API client.
type Client struct {
	api     Requester
	session *session.Session
	brands  *cache.Cache[Brand]
}

// New creates a client on top of api.
func New(api Requester, opts Options) *Client {
	ttl := opts.BrandCacheTTL
	if ttl == 0 {
		ttl = defaultBrandCacheTTL
	}
	sess := opts.Session
	if sess == nil {
		sess = session.NewInMemory()
	}
	return &Client{
		api:     api,
		session: sess,
		brands:  cache.New[Brand](ttl, 0),
	}
}

// Session returns the session the client writes credentials to.
func (c *Client) Session() *session.Session {
	return c.session
}

// Close releases the brand cache.
func (c *Client) Close() {
	c.brands.Close()
}

// getData issues a request and decodes the envelope's data into v.
func (c *Client) getData(ctx context.Context, method, path string, body interface{}, headers map[string]string, v interface{}) error {
	resp, err := c.api.Request(ctx, method, path, body, headers)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return resp.DecodeData(v)
}

func pathf(format string, ids ...string) string {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = url.PathEscape(id)
	}
	return fmt.Sprintf(format, args...)
}

func pageQuery(path string, page, limit int) string {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
