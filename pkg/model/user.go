// Package model defines the core domain types for LobbyChat.
package model

import (
	"errors"
	"fmt"
	"strings"
)

const MaxUsernameLength = 32

// ReservedUsername is the name the server signs its own lines with.
// Clients may not claim it in any casing.
const ReservedUsername = "Server"

var ErrUsernameEmpty = errors.New("username must not be empty")
var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
var ErrUsernameReserved = fmt.Errorf("username %q is reserved", ReservedUsername)
var ErrUsernameInvalidChars = errors.New("username must contain only alphanumeric characters, underscores, or hyphens")
var ErrUsernameTaken = errors.New("username is already in use")

// ValidateUsername checks that a username is 1-32 ASCII alphanumeric, underscore,
// or hyphen characters and not the reserved server name. Uniqueness against the
// live roster is checked separately at join time.
func ValidateUsername(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if strings.EqualFold(name, ReservedUsername) {
		return ErrUsernameReserved
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return ErrUsernameInvalidChars
		}
	}
	return nil
}
