// Package repository implements persistence over MySQL. Sentinel
// errors defined here let handlers distinguish failure scenarios
// without inspecting driver errors.
package repository

import "errors"

// ErrEmailExists is returned when registering a user whose email is
// already taken. Handlers should translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")
