package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the JWT claims issued for access and refresh tokens
type TokenClaims struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id,string"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is a directory record resolved for credential checks and
// human-readable attribution in block records and audit entries
type Identity struct {
	ID           int64
	Email        string
	Name         string
	Role         string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}
