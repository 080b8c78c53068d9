// Package stores provides Adapter implementations: an in-memory adapter for
// tests and prototypes, and a JSON-file adapter for small single-node
// deployments. Production deployments with a real database use the gorm
// subpackage or bring their own adapter.
package stores

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	nextauth "github.com/nextauthjs/next-auth-sub011"
)

// MemoryAdapter keeps everything in process memory. Data does not survive a
// restart; handshake correctness does not depend on it because all flow
// state lives in cookies.
type MemoryAdapter struct {
	mu       sync.Mutex
	users    map[string]nextauth.User
	byEmail  map[string]string
	accounts map[string]string // provider\x00providerAccountID → userID
	sessions map[string]nextauth.Session
	tokens   map[string]nextauth.VerificationToken // identifier\x00hash
}

// NewMemoryAdapter returns an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		users:    map[string]nextauth.User{},
		byEmail:  map[string]string{},
		accounts: map[string]string{},
		sessions: map[string]nextauth.Session{},
		tokens:   map[string]nextauth.VerificationToken{},
	}
}

var _ nextauth.Adapter = (*MemoryAdapter)(nil)

func accountKey(provider, providerAccountID string) string {
	return provider + "\x00" + providerAccountID
}

func (m *MemoryAdapter) GetUserByEmail(ctx context.Context, email string) (*nextauth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	u := m.users[id]
	return &u, nil
}

func (m *MemoryAdapter) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*nextauth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.accounts[accountKey(provider, providerAccountID)]
	if !ok {
		return nil, nil
	}
	u := m.users[id]
	return &u, nil
}

func (m *MemoryAdapter) CreateUser(ctx context.Context, user *nextauth.User) (*nextauth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *user
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.users[u.ID] = u
	if u.Email != "" {
		m.byEmail[u.Email] = u.ID
	}
	return &u, nil
}

func (m *MemoryAdapter) LinkAccount(ctx context.Context, account *nextauth.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[accountKey(account.Provider, account.ProviderAccountID)] = account.UserID
	return nil
}

func (m *MemoryAdapter) CreateVerificationToken(ctx context.Context, token *nextauth.VerificationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Identifier+"\x00"+token.Token] = *token
	return nil
}

func (m *MemoryAdapter) UseVerificationToken(ctx context.Context, identifier, tokenHash string) (*nextauth.VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := identifier + "\x00" + tokenHash
	vt, ok := m.tokens[key]
	if !ok {
		return nil, nil
	}
	delete(m.tokens, key)
	return &vt, nil
}

func (m *MemoryAdapter) CreateSession(ctx context.Context, session *nextauth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.SessionToken] = *session
	return nil
}

func (m *MemoryAdapter) UpdateSession(ctx context.Context, session *nextauth.Session) (*nextauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.SessionToken]; !ok {
		return nil, nil
	}
	m.sessions[session.SessionToken] = *session
	s := *session
	return &s, nil
}

func (m *MemoryAdapter) DeleteSession(ctx context.Context, sessionToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionToken)
	return nil
}

func (m *MemoryAdapter) GetSessionAndUser(ctx context.Context, sessionToken string) (*nextauth.Session, *nextauth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionToken]
	if !ok || time.Now().After(s.Expires) {
		return nil, nil, nil
	}
	u, ok := m.users[s.UserID]
	if !ok {
		return nil, nil, nil
	}
	return &s, &u, nil
}
