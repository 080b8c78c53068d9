package stores

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	nextauth "github.com/nextauthjs/next-auth-sub011"
)

// FSAdapter stores records as JSON files under a base directory, one
// subdirectory per record kind. Suitable for development and small
// single-node applications.
type FSAdapter struct {
	mu   sync.Mutex
	base string
}

// NewFSAdapter returns an adapter rooted at storagePath.
func NewFSAdapter(storagePath string) *FSAdapter {
	return &FSAdapter{base: storagePath}
}

var _ nextauth.Adapter = (*FSAdapter)(nil)

// fileKey flattens an arbitrary key into a safe filename.
func fileKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (a *FSAdapter) path(kind, key string) string {
	return filepath.Join(a.base, kind, key+".json")
}

func (a *FSAdapter) write(kind, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	path := a.path(kind, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// read unmarshals the record into v; found is false when no file exists.
func (a *FSAdapter) read(kind, key string, v any) (bool, error) {
	data, err := os.ReadFile(a.path(kind, key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

func (a *FSAdapter) remove(kind, key string) error {
	err := os.Remove(a.path(kind, key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// writeAtomic goes through a temp file and rename so a crash never leaves a
// half-written record behind.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (a *FSAdapter) GetUserByEmail(ctx context.Context, email string) (*nextauth.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var id string
	found, err := a.read("emails", fileKey(email), &id)
	if err != nil || !found {
		return nil, err
	}
	return a.userByID(id)
}

func (a *FSAdapter) userByID(id string) (*nextauth.User, error) {
	var user nextauth.User
	found, err := a.read("users", fileKey(id), &user)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

func (a *FSAdapter) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*nextauth.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var account nextauth.Account
	found, err := a.read("accounts", fileKey(provider, providerAccountID), &account)
	if err != nil || !found {
		return nil, err
	}
	return a.userByID(account.UserID)
}

func (a *FSAdapter) CreateUser(ctx context.Context, user *nextauth.User) (*nextauth.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := *user
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := a.write("users", fileKey(u.ID), &u); err != nil {
		return nil, err
	}
	if u.Email != "" {
		if err := a.write("emails", fileKey(u.Email), u.ID); err != nil {
			return nil, err
		}
	}
	return &u, nil
}

func (a *FSAdapter) LinkAccount(ctx context.Context, account *nextauth.Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.write("accounts", fileKey(account.Provider, account.ProviderAccountID), account)
}

func (a *FSAdapter) CreateVerificationToken(ctx context.Context, token *nextauth.VerificationToken) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.write("tokens", fileKey(token.Identifier, token.Token), token)
}

func (a *FSAdapter) UseVerificationToken(ctx context.Context, identifier, tokenHash string) (*nextauth.VerificationToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := fileKey(identifier, tokenHash)
	var vt nextauth.VerificationToken
	found, err := a.read("tokens", key, &vt)
	if err != nil || !found {
		return nil, err
	}
	if err := a.remove("tokens", key); err != nil {
		return nil, err
	}
	return &vt, nil
}

func (a *FSAdapter) CreateSession(ctx context.Context, session *nextauth.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.write("sessions", fileKey(session.SessionToken), session)
}

func (a *FSAdapter) UpdateSession(ctx context.Context, session *nextauth.Session) (*nextauth.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var existing nextauth.Session
	found, err := a.read("sessions", fileKey(session.SessionToken), &existing)
	if err != nil || !found {
		return nil, err
	}
	if err := a.write("sessions", fileKey(session.SessionToken), session); err != nil {
		return nil, err
	}
	s := *session
	return &s, nil
}

func (a *FSAdapter) DeleteSession(ctx context.Context, sessionToken string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remove("sessions", fileKey(sessionToken))
}

func (a *FSAdapter) GetSessionAndUser(ctx context.Context, sessionToken string) (*nextauth.Session, *nextauth.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var session nextauth.Session
	found, err := a.read("sessions", fileKey(sessionToken), &session)
	if err != nil || !found {
		return nil, nil, err
	}
	if time.Now().After(session.Expires) {
		return nil, nil, nil
	}
	user, err := a.userByID(session.UserID)
	if err != nil || user == nil {
		return nil, nil, err
	}
	return &session, user, nil
}
