// ABOUTME: Credential slot holding the access token between requests
// ABOUTME: File-backed store survives restarts; memory store serves tests

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// CredentialStore is the access-token slot. Token returns (nil, nil) when the
// slot is empty. Expiry is not tracked; the server reports it with a 401.
type CredentialStore interface {
	Token() (*oauth2.Token, error)
	SetToken(tok *oauth2.Token) error
	Clear() error
}

// ProfileStore remembers who is signed in, for display only.
type ProfileStore interface {
	Profile() (*Profile, error)
	SetProfile(p *Profile) error
}

// Profile is the signed-in user as last reported by the server.
type Profile struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == "admin"
}

type storeData struct {
	AccessToken string    `json:"access_token,omitempty"`
	TokenType   string    `json:"token_type,omitempty"`
	Profile     *Profile  `json:"profile,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (d *storeData) token() *oauth2.Token {
	if d.AccessToken == "" {
		return nil
	}
	return &oauth2.Token{AccessToken: d.AccessToken, TokenType: d.TokenType}
}

// FileStore persists the slot as JSON with 0600 permissions.
type FileStore struct {
	path string
	mu   sync.RWMutex
	data storeData
}

// NewFileStore loads path if it exists. A corrupt file is treated as an empty
// slot so a bad write never locks the user out.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		slog.Warn("Ignoring unreadable session file", "path", path, "error", err)
		s.data = storeData{}
	}
	return s, nil
}

func (s *FileStore) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.token(), nil
}

func (s *FileStore) SetToken(tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok == nil {
		s.data.AccessToken, s.data.TokenType = "", ""
	} else {
		s.data.AccessToken, s.data.TokenType = tok.AccessToken, tok.TokenType
	}
	return s.save()
}

func (s *FileStore) Profile() (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.Profile == nil {
		return nil, nil
	}
	p := *s.data.Profile
	return &p, nil
}

func (s *FileStore) SetProfile(p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Profile = p
	return s.save()
}

// Clear empties the slot and removes the file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = storeData{}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// save must be called with mu held.
func (s *FileStore) save() error {
	s.data.UpdatedAt = time.Now().UTC()
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// MemoryStore keeps the slot in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data storeData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.token(), nil
}

func (s *MemoryStore) SetToken(tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok == nil {
		s.data.AccessToken, s.data.TokenType = "", ""
		return nil
	}
	s.data.AccessToken, s.data.TokenType = tok.AccessToken, tok.TokenType
	return nil
}

func (s *MemoryStore) Profile() (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.Profile == nil {
		return nil, nil
	}
	p := *s.data.Profile
	return &p, nil
}

func (s *MemoryStore) SetProfile(p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Profile = p
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = storeData{}
	return nil
}
