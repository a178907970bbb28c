package domain

import "errors"

// Credential failures are deliberately undifferentiated: a malformed token, a
// bad signature, a wrong issuer and an expired token all surface as the same
// error so callers cannot be used as a verification oracle.
var ErrCredentialInvalid = errors.New("invalid or expired credential")

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrAccountDeactivated   = errors.New("account deactivated")
	ErrForbidden            = errors.New("access forbidden")
	ErrAgentNotFound        = errors.New("agent not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrValidation           = errors.New("validation failed")
)
