package authcore

import (
	"context"
	"log/slog"

	"github.com/notesync/authcore/session"
)

// SignInResult carries the outcome of a successful sign-in. Tokens holds
// the only copy of the plaintext token pair.
type SignInResult struct {
	User    *User
	Session *session.Session
	Tokens  *session.Tokens
}

// SignIn verifies an email and password and issues a session. Ephemeral
// sessions skip the persistent store and vanish with their refresh
// window.
//
// Failed attempts count toward lockout under both the email and the
// resolved user; once the threshold is reached SignIn fails with
// ErrAccountLocked before touching the password hash. Callers running
// MFA do so with [Core.VerifyMFA] before calling SignIn.
func (c *Core) SignIn(ctx context.Context, email, pass string, device session.DeviceInfo, ephemeral bool) (*SignInResult, error) {
	if c.guard != nil {
		locked, err := c.guard.IsLocked(ctx, email)
		if err != nil {
			return nil, err
		}
		if locked {
			event := newAuditEvent(AuditSignInLocked)
			event.Email = email
			c.emit(ctx, event)
			c.metrics.observeSignIn("locked")
			return nil, ErrAccountLocked
		}
	}

	user, err := c.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		// Burn the same key-derivation cost as a real verification so
		// response timing does not reveal whether the email exists.
		_, _ = c.hasher.Verify(pass, c.decoyHash)
		return nil, c.recordFailedSignIn(ctx, email)
	}

	ok, err := c.hasher.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		return nil, c.recordFailedSignIn(ctx, email)
	}

	if c.guard != nil {
		if err := c.guard.Clear(ctx, email); err != nil {
			return nil, err
		}
	}

	if err := c.maybeRehash(ctx, user, pass); err != nil {
		return nil, err
	}

	result := &SignInResult{User: user}
	if ephemeral {
		ephemeralSession, tokens, err := c.sessions.CreateEphemeralSession(ctx, user.UUID, device)
		if err != nil {
			return nil, err
		}
		result.Session = &ephemeralSession.Session
		result.Tokens = tokens
	} else {
		sess, tokens, err := c.sessions.CreateSession(ctx, user.UUID, device)
		if err != nil {
			return nil, err
		}
		result.Session = sess
		result.Tokens = tokens
	}

	event := newAuditEvent(AuditSignInSucceeded)
	event.UserUUID = user.UUID
	event.Email = email
	event.SessionUUID = result.Session.UUID
	event.Success = true
	c.emit(ctx, event)
	c.metrics.observeSignIn("success")
	c.logger.InfoContext(ctx, "sign in succeeded",
		slog.String("user_uuid", user.UUID),
		slog.String("session_uuid", result.Session.UUID))

	return result, nil
}

func (c *Core) recordFailedSignIn(ctx context.Context, email string) error {
	if c.guard != nil {
		nowLocked, err := c.guard.Increase(ctx, email)
		if err != nil {
			return err
		}
		if nowLocked {
			c.metrics.observeLockout()
			event := newAuditEvent(AuditSignInLocked)
			event.Email = email
			c.emit(ctx, event)
			c.logger.WarnContext(ctx, "account locked after repeated failures",
				slog.String("email", email))
		}
	}

	event := newAuditEvent(AuditSignInFailed)
	event.Email = email
	c.emit(ctx, event)
	c.metrics.observeSignIn("failure")
	return ErrInvalidCredentials
}

// maybeRehash upgrades the stored hash when the verified password was
// hashed under weaker parameters.
func (c *Core) maybeRehash(ctx context.Context, user *User, pass string) error {
	needs, err := c.hasher.NeedsRehash(user.PasswordHash)
	if err != nil || !needs {
		return err
	}

	rehashed, err := c.hasher.Hash(pass)
	if err != nil {
		return err
	}
	user.PasswordHash = rehashed
	user.UpdatedAt = c.now()
	return c.users.Update(ctx, user)
}
