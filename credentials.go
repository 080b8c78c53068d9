package nextauth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordLookup resolves an identifier to its user and stored bcrypt hash.
type PasswordLookup func(ctx context.Context, identifier string) (user *User, passwordHash string, err error)

// NewPasswordCredentials builds a credentials provider that verifies a
// bcrypt password hash. The lookup is the host's; rejected and unknown
// identifiers are indistinguishable to the caller.
func NewPasswordCredentials(id, name string, lookup PasswordLookup) *CredentialsProvider {
	return &CredentialsProvider{
		ID:   id,
		Name: name,
		Authorize: func(ctx context.Context, credentials map[string]string) (*User, error) {
			identifier := firstNonEmpty(credentials["username"], credentials["email"])
			password := credentials["password"]
			if identifier == "" || password == "" {
				return nil, fmt.Errorf("missing credentials")
			}
			user, hash, err := lookup(ctx, identifier)
			if err != nil || user == nil {
				return nil, nil
			}
			if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
				return nil, nil
			}
			return user, nil
		},
	}
}

// HashPassword is the companion for hosts storing new passwords.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
