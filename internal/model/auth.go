package model

import "github.com/golang-jwt/jwt/v5"

// UserClaims are the JWT claims issued by the auth API. The relay only
// verifies them; it never logs anyone in.
type UserClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}
