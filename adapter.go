package nextauth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// User is an application account as the adapter stores it.
type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	Email         string     `json:"email,omitempty"`
	EmailVerified *time.Time `json:"emailVerified,omitempty"`
	Image         string     `json:"image,omitempty"`
}

// Account links a user to an external provider identity. Linking is
// idempotent on (Provider, ProviderAccountID).
type Account struct {
	Provider          string `json:"provider"`
	ProviderAccountID string `json:"providerAccountId"`
	UserID            string `json:"userId"`
	Type              string `json:"type"`
}

// Session is a server-side session record, used by the database strategy.
type Session struct {
	SessionToken string    `json:"sessionToken"`
	UserID       string    `json:"userId"`
	Expires      time.Time `json:"expires"`
}

// VerificationToken is a one-time, hashed, expiring token for passwordless
// sign-in. Token always holds the hash, never the raw value.
type VerificationToken struct {
	Identifier string    `json:"identifier"`
	Token      string    `json:"token"`
	Expires    time.Time `json:"expires"`
}

// Adapter is the persistence collaborator. The engine calls it for user and
// account CRUD, verification tokens, and (database strategy) sessions.
// Implementations live in the stores packages; applications bring their own
// for other databases.
type Adapter interface {
	// GetUserByEmail returns nil, nil when no user has the email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserByAccount resolves a provider identity to a user, nil when
	// unlinked.
	GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*User, error)

	// CreateUser persists a new user and returns it with its assigned ID.
	CreateUser(ctx context.Context, user *User) (*User, error)

	// LinkAccount records the provider↔user linkage. Linking the same
	// (provider, providerAccountID) twice must not create duplicates.
	LinkAccount(ctx context.Context, account *Account) error

	// CreateVerificationToken stores a hashed one-time token.
	CreateVerificationToken(ctx context.Context, token *VerificationToken) error

	// UseVerificationToken consumes a token exactly once. Returns nil, nil
	// if the token does not exist or was already used.
	UseVerificationToken(ctx context.Context, identifier, tokenHash string) (*VerificationToken, error)

	// CreateSession stores a new session record.
	CreateSession(ctx context.Context, session *Session) error

	// UpdateSession refreshes an existing session's expiry, returning nil
	// when the session is gone.
	UpdateSession(ctx context.Context, session *Session) (*Session, error)

	// DeleteSession removes a session by token. Deleting a missing session
	// is not an error.
	DeleteSession(ctx context.Context, sessionToken string) error

	// GetSessionAndUser resolves a session token to the session and its
	// user, nil, nil when expired or unknown.
	GetSessionAndUser(ctx context.Context, sessionToken string) (*Session, *User, error)
}

// HashVerificationToken computes the stored form of a verification token,
// keyed by the newest secret so a leaked database cannot mint magic links.
func HashVerificationToken(token, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
