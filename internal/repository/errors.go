// Package repository implements data access over MySQL.  Sentinel
// errors defined here let handlers distinguish expected failure
// scenarios from infrastructure problems.
package repository

import "errors"

// ErrEmailExists is returned when registering with an email that is
// already taken.  Handlers translate it into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrSessionNotFound is returned by the session catalog when no row
// matches the requested ID.  Handlers translate it into HTTP 404.
var ErrSessionNotFound = errors.New("session not found")
