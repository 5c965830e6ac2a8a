package models

import "github.com/golang-jwt/jwt/v5"

// AccessClaims is the payload of an externally issued access token. Subject
// carries the acting username.
type AccessClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Username returns the normalised subject.
func (c *AccessClaims) Username() string {
	return NormalizeUsername(c.Subject)
}
