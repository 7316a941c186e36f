// ABOUTME: Session context shared by the gateway and the commands
// ABOUTME: Owns the credential slot and cookie jar with an explicit lifecycle

package session

import (
	"errors"
	"fmt"
	"path/filepath"
)

const (
	sessionFile = "session.json"
	cookieFile  = "cookies.json"
)

// Store is what a Session needs from its credential slot.
type Store interface {
	CredentialStore
	ProfileStore
}

// Session is created once at process start and injected into the gateway.
// End tears it down at logout or after an unrecoverable refresh failure.
type Session struct {
	store Store
	jar   *Jar
}

// Open loads (or creates) the persisted session under dir.
func Open(dir string) (*Session, error) {
	store, err := NewFileStore(filepath.Join(dir, sessionFile))
	if err != nil {
		return nil, err
	}
	jar, err := NewJar(filepath.Join(dir, cookieFile))
	if err != nil {
		return nil, err
	}
	return &Session{store: store, jar: jar}, nil
}

// NewInMemory returns a session that is never written to disk.
func NewInMemory() *Session {
	jar, err := NewJar("")
	if err != nil {
		// cookiejar.New(nil) cannot fail
		panic(err)
	}
	return &Session{store: NewMemoryStore(), jar: jar}
}

// New assembles a session from explicit parts.
func New(store Store, jar *Jar) *Session {
	return &Session{store: store, jar: jar}
}

func (s *Session) Credentials() CredentialStore { return s.store }

func (s *Session) Jar() *Jar { return s.jar }

// SignedIn reports whether an access token is in the slot.
func (s *Session) SignedIn() bool {
	tok, err := s.store.Token()
	return err == nil && tok != nil && tok.AccessToken != ""
}

func (s *Session) Profile() (*Profile, error) {
	return s.store.Profile()
}

func (s *Session) SetProfile(p *Profile) error {
	return s.store.SetProfile(p)
}

// Save persists the cookie jar. The credential slot is written on every change.
func (s *Session) Save() error {
	if err := s.jar.Save(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// End clears the access token, the profile, and every cookie.
func (s *Session) End() error {
	return errors.Join(s.store.Clear(), s.jar.Clear())
}
