package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes student vs admin tokens.
type TokenType string

const (
	TokenTypeStudent TokenType = "student"
	TokenTypeAdmin   TokenType = "admin"
)

// Claims mirrors the claim set the backend signs into student tokens.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	UserID    int       `json:"user_id"`
	ClassID   int       `json:"class_id,omitempty"`
}

// ErrNotStudentToken is returned when a token was issued to a non-student.
var ErrNotStudentToken = errors.New("token is not a student token")

// PeekClaims decodes the claims of a token WITHOUT verifying its signature.
// The agent has no signing key; the backend remains the verifier. The
// result is only used for local bookkeeping such as draft keys and expiry
// warnings.
func PeekClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.TokenType != "" && claims.TokenType != TokenTypeStudent {
		return nil, ErrNotStudentToken
	}
	return claims, nil
}
