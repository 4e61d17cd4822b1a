package errors

import "errors"

var (
	ErrMessageNotFound   = errors.New("notification message not found")
	ErrRecipientRequired = errors.New("notification recipient is required")
)
