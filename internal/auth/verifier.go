package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/angelmondragon/bikerent-backend/pkg/config"
	"github.com/angelmondragon/bikerent-backend/pkg/security"
)

// CredentialVerifier checks an operator's username and password.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (bool, error)
}

// ConfigVerifier authenticates the single operator configured through the environment.
type ConfigVerifier struct {
	username     string
	passwordHash string
}

func NewConfigVerifier(cfg config.AdminConfig) (*ConfigVerifier, error) {
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		return nil, fmt.Errorf("admin username is required")
	}
	if strings.TrimSpace(cfg.PasswordHash) == "" {
		return nil, fmt.Errorf("admin password hash is required")
	}
	return &ConfigVerifier{username: username, passwordHash: cfg.PasswordHash}, nil
}

func (v *ConfigVerifier) Verify(_ context.Context, username, password string) (bool, error) {
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(v.username)) == 1
	// the password is hashed on every call, username misses included
	passOK, err := security.VerifyPassword(password, v.passwordHash)
	if err != nil {
		return false, err
	}
	return userOK && passOK, nil
}
