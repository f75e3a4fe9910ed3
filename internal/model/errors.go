package model

import "errors"

var (
	// Credential and identity errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUnauthorized       = errors.New("unauthorized")

	// Lookup errors
	ErrNotFound            = errors.New("user not found")
	ErrMalformedIdentifier = errors.New("malformed user identifier")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
