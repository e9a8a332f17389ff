// Package app holds the process-wide authentication state.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"bikemetro/internal/session"
	"bikemetro/internal/status"
	"bikemetro/models"
)

// Backend is the part of the API client the auth state depends on.
type Backend interface {
	Login(ctx context.Context, username, password string) (models.Tokens, error)
	Register(ctx context.Context, req models.RegisterRequest) (models.Profile, error)
	Me(ctx context.Context) (models.Profile, error)
	UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (models.Profile, error)
	OnSessionExpired(fn func())
}

// State is the explicit replacement for a UI-tree auth context. It is safe
// for concurrent use. No lock is held while a remote call is in flight, so
// the session-expired hook may fire from inside any call.
type State struct {
	backend Backend
	store   session.Store

	mu      sync.RWMutex
	user    *models.Profile
	loading bool
}

func New(backend Backend, store session.Store) *State {
	s := &State{
		backend: backend,
		store:   store,
		loading: true,
	}
	backend.OnSessionExpired(s.Reset)
	return s
}

// Init restores the persisted session and revalidates it against the
// server. A rejected session is logged out; that is not an error.
func (s *State) Init(ctx context.Context) error {
	defer s.setLoading(false)

	sess, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("Init: %w", err)
	}
	if !sess.Authenticated() {
		return nil
	}
	s.setUser(sess.User)

	p, err := s.backend.Me(ctx)
	if err != nil {
		if status.KindOf(err) != status.KindAuthentication {
			// No verdict; keep the cached user until the server answers.
			slog.Warn("could not revalidate session", "error", err)
			return nil
		}
		slog.Info("stored session rejected, signing out", "error", err)
		return s.Logout(ctx)
	}

	sess.User = &p
	if err := s.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("Init: %w", err)
	}
	s.setUser(&p)
	return nil
}

// Login exchanges credentials for tokens, then loads the profile. The
// tokens are stored before the profile fetch so it is authenticated.
func (s *State) Login(ctx context.Context, username, password string) (models.Profile, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	tokens, err := s.backend.Login(ctx, username, password)
	if err != nil {
		return models.Profile{}, err
	}

	sess := session.Session{AccessToken: tokens.Access, RefreshToken: tokens.Refresh}
	if err := s.store.Save(ctx, sess); err != nil {
		return models.Profile{}, fmt.Errorf("Login: %w", err)
	}

	p, err := s.backend.Me(ctx)
	if err != nil {
		if cerr := s.store.Clear(ctx); cerr != nil {
			slog.Warn("could not clear session", "error", cerr)
		}
		s.Reset()
		return models.Profile{}, err
	}

	// A refresh during Me may have replaced the access token.
	if sess, err = s.store.Load(ctx); err != nil {
		return models.Profile{}, fmt.Errorf("Login: %w", err)
	}
	sess.User = &p
	if err := s.store.Save(ctx, sess); err != nil {
		return models.Profile{}, fmt.Errorf("Login: %w", err)
	}

	s.setUser(&p)
	slog.Info("signed in", "user_id", p.ID, "nickname", p.Nickname)
	return p, nil
}

// Register creates the account and signs in with its nickname.
func (s *State) Register(ctx context.Context, req models.RegisterRequest) (models.Profile, error) {
	if _, err := s.backend.Register(ctx, req); err != nil {
		return models.Profile{}, err
	}
	return s.Login(ctx, req.Nickname, req.Password)
}

// Logout clears the persisted session and the in-memory user.
func (s *State) Logout(ctx context.Context) error {
	defer s.Reset()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("Logout: %w", err)
	}
	return nil
}

// Reset drops the in-memory user. The store is left to its owner.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.loading = false
}

// UpdateProfile sends the changed fields and persists the returned profile.
func (s *State) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (models.Profile, error) {
	p, err := s.backend.UpdateProfile(ctx, upd)
	if err != nil {
		return models.Profile{}, err
	}

	sess, err := s.store.Load(ctx)
	if err != nil {
		return p, fmt.Errorf("UpdateProfile: %w", err)
	}
	sess.User = &p
	if err := s.store.Save(ctx, sess); err != nil {
		return p, fmt.Errorf("UpdateProfile: %w", err)
	}

	s.setUser(&p)
	return p, nil
}

// User returns a copy of the signed-in profile.
func (s *State) User() (models.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.Profile{}, false
	}
	return *s.user, true
}

func (s *State) Authenticated() bool {
	_, ok := s.User()
	return ok
}

func (s *State) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *State) setUser(p *models.Profile) {
	var cp *models.Profile
	if p != nil {
		v := *p
		cp = &v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = cp
}

func (s *State) setLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}
