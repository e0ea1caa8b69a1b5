package models

import "errors"

var (
	ErrDuplicateUser = errors.New("user already exists")
	ErrAuthFailure   = errors.New("invalid username or password")
	ErrExpired       = errors.New("account expired")
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("access denied")
	ErrNetwork       = errors.New("playlist source unreachable")
	ErrInvalidInput  = errors.New("invalid input")
)
