package auth

import "errors"

var (
	ErrUnauthenticated = errors.New("auth: not authenticated")
	ErrUnauthorized    = errors.New("auth: unauthorized")
)
