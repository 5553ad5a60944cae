package credstore

import "errors"

var (
	// ErrUserNotFound is returned when a user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUser is returned when creating a user whose username
	// is already taken
	ErrDuplicateUser = errors.New("username already exists")

	// ErrCorruptStore is returned when the persisted store cannot be
	// parsed. It is fatal at load time.
	ErrCorruptStore = errors.New("corrupt user store")
)
