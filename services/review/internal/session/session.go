// Package session holds the signed-in user's credentials for one client
// process. A Session is created at start-up and passed to whatever needs it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotLoaded is returned when a Session is used before Load.
var ErrNotLoaded = errors.New("session not loaded")

// Credentials are the two values persisted between runs.
type Credentials struct {
	AuthToken string
	PushToken string
}

// Store persists Credentials.
type Store interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, c Credentials) error
	Clear(ctx context.Context) error
}

// Session is the auth and notification context of a client.
type Session struct {
	mu     sync.RWMutex
	store  Store
	creds  Credentials
	userID string
	role   string
	loaded bool
}

// New returns an unloaded session backed by store.
func New(store Store) *Session {
	return &Session{store: store}
}

// Load reads persisted credentials. A stored token that cannot be parsed is
// treated as signed out.
func (s *Session) Load(ctx context.Context) error {
	creds, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	s.userID, s.role = "", ""
	if creds.AuthToken != "" {
		if uid, role, err := subject(creds.AuthToken); err == nil {
			s.userID, s.role = uid, role
		} else {
			s.creds.AuthToken = ""
		}
	}
	s.loaded = true
	return nil
}

// Loaded reports whether Load has completed.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// SignedIn reports whether an auth token is present.
func (s *Session) SignedIn() bool {
	return s.Token() != ""
}

// Token returns the bearer token, or "" when signed out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.AuthToken
}

// UserID returns the token's user, or "".
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Role returns the token's role, or "".
func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// PushToken returns the device's push-notification token.
func (s *Session) PushToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.PushToken
}

// SignIn stores token after reading its subject. The token's signature is
// checked by the service, not here.
func (s *Session) SignIn(ctx context.Context, token string) error {
	uid, role, err := subject(token)
	if err != nil {
		return err
	}
	return s.update(ctx, func() {
		s.creds.AuthToken = token
		s.userID, s.role = uid, role
	})
}

// SetPushToken records the device's push-notification token.
func (s *Session) SetPushToken(ctx context.Context, token string) error {
	return s.update(ctx, func() { s.creds.PushToken = token })
}

// SignOut forgets both credentials.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.creds = Credentials{}
	s.userID, s.role = "", ""
	return nil
}

func (s *Session) update(ctx context.Context, apply func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	prev, prevUID, prevRole := s.creds, s.userID, s.role
	apply()
	if err := s.store.Save(ctx, s.creds); err != nil {
		s.creds, s.userID, s.role = prev, prevUID, prevRole
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

type tokenClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// subject reads the user and role from a JWT without verifying it.
func subject(token string) (userID, role string, err error) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", "", fmt.Errorf("parse token: %w", err)
	}
	userID = claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", "", errors.New("token has no subject")
	}
	return userID, claims.Role, nil
}
