package authcore

import "errors"

var (
	// ErrInvalidCredentials is an exported constant or variable used by the authentication core.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is an exported constant or variable used by the authentication core.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountExists is an exported constant or variable used by the authentication core.
	ErrAccountExists = errors.New("account already exists")
	// ErrReadonlyAccess is an exported constant or variable used by the authentication core.
	ErrReadonlyAccess = errors.New("session has readonly access")
	// ErrUnauthenticated is an exported constant or variable used by the authentication core.
	ErrUnauthenticated = errors.New("unauthenticated")
)
