package authcore

import (
	"context"
	"log/slog"

	"github.com/notesync/authcore/session"
)

// SignOut revokes the session behind an access token. Tokens that
// resolve to a JWT have no server-side session, so signing out with one
// is a no-op. Readonly sessions cannot revoke themselves.
func (c *Core) SignOut(ctx context.Context, accessToken string) error {
	method, err := c.Resolve(ctx, accessToken)
	if err != nil {
		return err
	}

	switch m := method.(type) {
	case *MethodSessionToken:
		if m.Session.ReadonlyAccess {
			return ErrReadonlyAccess
		}
		if err := c.sessions.DeleteSessionForUser(ctx, m.Session.UserUUID, m.Session.UUID); err != nil {
			return err
		}

		event := newAuditEvent(AuditSignOut)
		event.UserUUID = m.Session.UserUUID
		event.SessionUUID = m.Session.UUID
		event.Success = true
		c.emit(ctx, event)
		c.logger.InfoContext(ctx, "signed out",
			slog.String("session_uuid", m.Session.UUID))
		return nil

	case *MethodJWT:
		if m.User == nil {
			return ErrUnauthenticated
		}
		return nil

	default:
		return ErrUnauthenticated
	}
}

// RevokeSession revokes one of a user's sessions by UUID, leaving the
// tombstone that tells the session's client it was signed out remotely.
// Readonly sessions may not revoke other sessions.
func (c *Core) RevokeSession(ctx context.Context, actor *session.Session, sessionUUID string) error {
	if actor.ReadonlyAccess {
		return ErrReadonlyAccess
	}
	if err := c.sessions.DeleteSessionForUser(ctx, actor.UserUUID, sessionUUID); err != nil {
		return err
	}

	event := newAuditEvent(AuditSessionRevoked)
	event.UserUUID = actor.UserUUID
	event.SessionUUID = sessionUUID
	event.Success = true
	c.emit(ctx, event)
	return nil
}

// RevokeOtherSessions revokes every session of the actor's user except
// the actor's own.
func (c *Core) RevokeOtherSessions(ctx context.Context, actor *session.Session) error {
	if actor.ReadonlyAccess {
		return ErrReadonlyAccess
	}
	if err := c.sessions.DeleteOtherSessionsForUser(ctx, actor.UserUUID, actor.UUID); err != nil {
		return err
	}

	event := newAuditEvent(AuditSessionRevoked)
	event.UserUUID = actor.UserUUID
	event.SessionUUID = actor.UUID
	event.Success = true
	event.Metadata = map[string]string{"scope": "others"}
	c.emit(ctx, event)
	return nil
}

// Refresh rotates the token pair of the session named by a refresh
// token.
func (c *Core) Refresh(ctx context.Context, refreshToken string) (*session.Session, *session.Tokens, error) {
	sess, tokens, err := c.sessions.RefreshTokens(ctx, refreshToken)
	if err != nil {
		return nil, nil, err
	}

	event := newAuditEvent(AuditSessionRefreshed)
	event.UserUUID = sess.UserUUID
	event.SessionUUID = sess.UUID
	event.Success = true
	c.emit(ctx, event)
	return sess, tokens, nil
}
