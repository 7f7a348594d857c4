package phonepewebhook

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Authorizer checks the Authorization header PhonePe attaches to callbacks:
// the hex SHA-256 of "username:password" configured on the merchant dashboard.
type Authorizer struct {
	expected string
}

// NewAuthorizer returns nil when no credentials are configured, which disables the check.
func NewAuthorizer(username, password string) *Authorizer {
	if username == "" || password == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(username + ":" + password))
	return &Authorizer{expected: hex.EncodeToString(sum[:])}
}

// Verify reports whether header carries the expected digest. A nil Authorizer accepts everything.
func (a *Authorizer) Verify(header string) bool {
	if a == nil {
		return true
	}
	got := strings.ToLower(strings.TrimSpace(header))
	got = strings.TrimPrefix(got, "sha256 ")
	return subtle.ConstantTimeCompare([]byte(got), []byte(a.expected)) == 1
}
