package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const TokenTypeSession TokenType = "session"

// Claims of a session token. Subject and UserID both hold the user identity.
type Claims struct {
	jwt.RegisteredClaims

	UserID      string    `json:"user_id"`
	PhoneNumber string    `json:"phone_number"`
	TokenType   TokenType `json:"token_type"`
}
