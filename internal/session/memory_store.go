package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the session for the lifetime of the process only.
type MemoryStore struct {
	mu   sync.Mutex
	sess Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.sess
	if sess.User != nil {
		user := *sess.User
		sess.User = &user
	}
	return sess, nil
}

func (m *MemoryStore) Save(_ context.Context, sess Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess.User != nil {
		user := *sess.User
		sess.User = &user
	}
	m.sess = sess
	return nil
}

func (m *MemoryStore) SetAccessToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.AccessToken = token
	return nil
}

func (m *MemoryStore) RefreshToken(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.RefreshToken, nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = Session{}
	return nil
}
