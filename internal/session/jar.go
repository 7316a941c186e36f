// ABOUTME: Persistent cookie jar carrying the refresh credential
// ABOUTME: Records Set-Cookie headers and replays them after a restart

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"
	"time"
)

// Jar is an http.CookieJar that can be written to disk. The refresh cookie is
// HttpOnly on the server side; the jar stores it opaquely and nothing else in
// the program reads its value.
type Jar struct {
	mu      sync.Mutex
	inner   *cookiejar.Jar
	path    string
	records map[string]map[string]*http.Cookie // request URL -> cookie name -> cookie
}

type jarFile struct {
	Cookies map[string][]*http.Cookie `json:"cookies"`
}

// NewJar returns a jar backed by path. An empty path keeps cookies in memory only.
func NewJar(path string) (*Jar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	j := &Jar{
		inner:   inner,
		path:    path,
		records: make(map[string]map[string]*http.Cookie),
	}
	if path == "" {
		return j, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	var f jarFile
	if err := json.Unmarshal(raw, &f); err != nil {
		slog.Warn("Ignoring unreadable cookie file", "path", path, "error", err)
		return j, nil
	}
	for rawURL, cookies := range f.Cookies {
		u, err := url.Parse(rawURL)
		if err != nil {
			continue
		}
		j.SetCookies(u, cookies)
	}
	return j, nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.inner.SetCookies(u, cookies)

	key := recordKey(u)
	byName := j.records[key]
	if byName == nil {
		byName = make(map[string]*http.Cookie)
		j.records[key] = byName
	}
	now := time.Now()
	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			delete(byName, c.Name)
			continue
		}
		// MaxAge is relative to receipt; pin it to an absolute expiry so a
		// replay after restart does not extend the lifetime.
		stored := *c
		if stored.MaxAge > 0 {
			stored.Expires = now.Add(time.Duration(stored.MaxAge) * time.Second)
			stored.MaxAge = 0
		}
		byName[c.Name] = &stored
	}
	if len(byName) == 0 {
		delete(j.records, key)
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// Save writes the recorded cookies to disk. A memory-only jar is a no-op.
func (j *Jar) Save() error {
	if j.path == "" {
		return nil
	}
	j.mu.Lock()
	f := jarFile{Cookies: make(map[string][]*http.Cookie, len(j.records))}
	for key, byName := range j.records {
		for _, c := range byName {
			f.Cookies[key] = append(f.Cookies[key], c)
		}
	}
	j.mu.Unlock()

	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	if err := os.WriteFile(j.path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	return nil
}

// Clear forgets every cookie and removes the file.
func (j *Jar) Clear() error {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.inner = inner
	j.records = make(map[string]map[string]*http.Cookie)
	j.mu.Unlock()

	if j.path == "" {
		return nil
	}
	if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cookie file: %w", err)
	}
	return nil
}

func recordKey(u *url.URL) string {
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()
}
