package authcore

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Register creates a user account. Every new user gets a freshly
// generated server key wrapped under the master key, so settings can be
// encrypted for the user from the first write.
func (c *Core) Register(ctx context.Context, email, pass string) (*User, error) {
	existing, err := c.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAccountExists
	}

	hash, err := c.hasher.Hash(pass)
	if err != nil {
		return nil, err
	}

	serverKey, err := c.keystore.WrapNewUserKey()
	if err != nil {
		return nil, err
	}

	now := c.now()
	user := &User{
		UUID:               uuid.NewString(),
		Email:              email,
		PasswordHash:       hash,
		EncryptedServerKey: serverKey,
		Roles:              []string{RoleBasicUser},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := c.users.Insert(ctx, user); err != nil {
		return nil, err
	}

	event := newAuditEvent(AuditUserRegistered)
	event.UserUUID = user.UUID
	event.Email = email
	event.Success = true
	c.emit(ctx, event)
	c.logger.InfoContext(ctx, "user registered",
		slog.String("user_uuid", user.UUID))

	return user, nil
}
