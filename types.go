package authcore

import (
	"context"
	"time"
)

// RoleBasicUser is the role every new account starts with.
const RoleBasicUser = "basic_user"

// Setting names the core reads and writes. Callers may store their own
// settings alongside these.
const (
	// SettingNameMfaSecret holds the TOTP seed, encrypted under the
	// user's server key.
	SettingNameMfaSecret = "MFA_SECRET"
)

// Server-side encryption versions recorded on a [Setting].
const (
	// EncryptionVersionUnencrypted marks a value stored as given.
	EncryptionVersionUnencrypted = 0
	// EncryptionVersionDefault marks a value sealed under the user's
	// server key.
	EncryptionVersionDefault = 1
)

// User is an account record. EncryptedServerKey is the user's data key
// wrapped under the process master key; it never exists unwrapped outside
// a single decrypt call.
type User struct {
	UUID               string
	Email              string
	PasswordHash       string
	EncryptedServerKey string
	Roles              []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Setting is one named per-user value. Value is nil when the setting was
// explicitly cleared; ServerEncryptionVersion records how the stored
// value is protected.
type Setting struct {
	UUID     string
	UserUUID string
	Name     string
	Value    *string

	ServerEncryptionVersion int
	Sensitive               bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserRepository persists user records. Lookups return (nil, nil) when no
// record matches; errors are reserved for backend failures.
type UserRepository interface {
	FindByUUID(ctx context.Context, userUUID string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Insert(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
}

// SettingRepository persists per-user settings under (user, name)
// uniqueness.
type SettingRepository interface {
	FindOneByNameAndUserUUID(ctx context.Context, name, userUUID string) (*Setting, error)
	FindAllByUserUUID(ctx context.Context, userUUID string) ([]*Setting, error)
	Upsert(ctx context.Context, setting *Setting) error
}
