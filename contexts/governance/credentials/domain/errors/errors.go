package errors

import "errors"

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrVoterRefRequired   = errors.New("voter reference is required")
	ErrInvalidWeight      = errors.New("credential weight must be positive")
	ErrConflict           = errors.New("credential already exists")
)
