package auth

import "github.com/golang-jwt/jwt/v5"

// RoleAdmin is the only role the back-office issues.
const RoleAdmin = "admin"

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Username string
	Role     string
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to operators.
type AccessTokenClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
