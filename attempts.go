package authcore

import "context"

// IncreaseLoginAttempts records one failed attempt against an email and
// its resolved user. Returns true when the account is now locked. A core
// built without Redis has no guard, so this is a no-op.
func (c *Core) IncreaseLoginAttempts(ctx context.Context, email string) (bool, error) {
	if c.guard == nil {
		return false, nil
	}
	nowLocked, err := c.guard.Increase(ctx, email)
	if err != nil {
		return false, err
	}
	if nowLocked {
		c.metrics.observeLockout()
	}
	return nowLocked, nil
}

// ClearLoginAttempts resets both failure counters for an email.
func (c *Core) ClearLoginAttempts(ctx context.Context, email string) error {
	if c.guard == nil {
		return nil
	}
	return c.guard.Clear(ctx, email)
}

// IsAccountLocked reports whether sign-ins for this email are currently
// refused.
func (c *Core) IsAccountLocked(ctx context.Context, email string) (bool, error) {
	if c.guard == nil {
		return false, nil
	}
	return c.guard.IsLocked(ctx, email)
}
