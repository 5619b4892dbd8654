package auth

import "errors"

// Sentinel errors surfaced by the auth subsystem. The HTTP layer collapses
// all authentication failures into a uniform unauthorized response so the
// distinct kinds never leak to clients; they exist for callers and tests.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrTokenNotFound      = errors.New("auth: token not found")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenRevoked       = errors.New("auth: token revoked")
	ErrTokenUsed          = errors.New("auth: token already used")
	ErrUserInactive       = errors.New("auth: user inactive")
	ErrPersistence        = errors.New("auth: persistence failure")
)

// CRUD sentinels for the management surface.
var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: resource conflict")
	ErrInvalidInput = errors.New("auth: invalid input")
)
