package models

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims is the access token payload minted by the identity provider.
// The subject carries the profile id.
type IdentityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller resolved from a token and the profile directory.
type Principal struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}
