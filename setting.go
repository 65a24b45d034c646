package authcore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// SettingInput describes a setting write. Values are encrypted under the
// user's server key unless Unencrypted is set; pass a nil Value to clear
// the setting while keeping its row.
type SettingInput struct {
	Name        string
	Value       *string
	Unencrypted bool
	Sensitive   bool
}

// SetSetting creates or replaces a user's setting. The stored value is
// sealed under the user's server key by default; the returned Setting
// carries the ciphertext, never the plaintext.
func (c *Core) SetSetting(ctx context.Context, user *User, input SettingInput) (*Setting, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("setting name required")
	}

	existing, err := c.settings.FindOneByNameAndUserUUID(ctx, input.Name, user.UUID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	setting := &Setting{
		UUID:      uuid.NewString(),
		UserUUID:  user.UUID,
		Name:      input.Name,
		Sensitive: input.Sensitive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		setting.UUID = existing.UUID
		setting.CreatedAt = existing.CreatedAt
	}

	switch {
	case input.Value == nil:
		setting.Value = nil
		setting.ServerEncryptionVersion = EncryptionVersionUnencrypted
	case input.Unencrypted:
		setting.Value = input.Value
		setting.ServerEncryptionVersion = EncryptionVersionUnencrypted
	default:
		sealed, err := c.keystore.EncryptForUser(*input.Value, user.EncryptedServerKey)
		if err != nil {
			return nil, fmt.Errorf("encrypt setting %s: %w", input.Name, err)
		}
		setting.Value = &sealed
		setting.ServerEncryptionVersion = EncryptionVersionDefault
	}

	if err := c.settings.Upsert(ctx, setting); err != nil {
		return nil, err
	}

	event := newAuditEvent(AuditSecretWritten)
	event.UserUUID = user.UUID
	event.Success = true
	event.Metadata = map[string]string{"setting": input.Name}
	c.emit(ctx, event)
	c.logger.DebugContext(ctx, "setting written",
		slog.String("user_uuid", user.UUID),
		slog.String("setting", input.Name))

	return setting, nil
}

// FindSettingDecrypted returns the plaintext value of a user's setting,
// or nil when the setting is absent or cleared.
func (c *Core) FindSettingDecrypted(ctx context.Context, userUUID, name string) (*string, error) {
	user, err := c.users.FindByUUID(ctx, userUUID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	setting, err := c.settings.FindOneByNameAndUserUUID(ctx, name, userUUID)
	if err != nil {
		return nil, err
	}
	if setting == nil || setting.Value == nil {
		return nil, nil
	}

	plaintext, err := c.settingPlaintext(user, setting)
	if err != nil {
		return nil, fmt.Errorf("decrypt setting %s: %w", name, err)
	}
	return &plaintext, nil
}

// settingPlaintext unwraps a stored setting value according to its
// recorded encryption version.
func (c *Core) settingPlaintext(user *User, setting *Setting) (string, error) {
	if setting.Value == nil {
		return "", nil
	}

	switch setting.ServerEncryptionVersion {
	case EncryptionVersionUnencrypted:
		return *setting.Value, nil
	case EncryptionVersionDefault:
		return c.keystore.DecryptForUser(*setting.Value, user.EncryptedServerKey)
	default:
		return "", fmt.Errorf("unsupported setting encryption version %d", setting.ServerEncryptionVersion)
	}
}
