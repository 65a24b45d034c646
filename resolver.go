package authcore

import (
	"context"
	"log/slog"

	"github.com/notesync/authcore/session"
	"github.com/notesync/authcore/token"
)

// AuthenticationMethod is the outcome of resolving a raw credential.
// Exactly three concrete types implement it: [MethodJWT],
// [MethodSessionToken], and [MethodRevoked]. A nil method means the
// credential matched nothing.
type AuthenticationMethod interface {
	authenticationMethod()
}

// MethodJWT is a credential that verified as a signed JWT. User is nil
// when the token is valid but its subject no longer exists; callers
// treat that as unauthenticated.
type MethodJWT struct {
	User   *User
	Claims *token.SessionTokenClaims
}

func (*MethodJWT) authenticationMethod() {}

// MethodSessionToken is a credential that resolved to a live session.
type MethodSessionToken struct {
	User    *User
	Session *session.Session
}

func (*MethodSessionToken) authenticationMethod() {}

// MethodRevoked is a credential whose session was revoked. Transitioned
// reports whether this resolution was the first to deliver the
// revocation notice.
type MethodRevoked struct {
	RevokedSession *session.RevokedSession
	Transitioned   bool
}

func (*MethodRevoked) authenticationMethod() {}

// Resolve classifies a raw bearer credential. Strategies run in a fixed
// priority order: current-format JWT, legacy JWT, live session token,
// revoked session. The first match wins; a credential matching nothing
// resolves to (nil, nil).
//
// Resolving a revoked session marks its tombstone as received, so the
// revocation notice is delivered exactly once across concurrent callers.
func (c *Core) Resolve(ctx context.Context, rawToken string) (AuthenticationMethod, error) {
	if rawToken == "" {
		c.metrics.observeResolution("none")
		return nil, nil
	}

	for i, decoder := range c.decoders {
		claims := decoder.DecodeToken(rawToken)
		if claims == nil {
			continue
		}

		user, err := c.users.FindByUUID(ctx, claims.UserUUID)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			c.metrics.observeResolution("jwt")
		} else {
			c.metrics.observeResolution("legacy_jwt")
		}
		if user == nil {
			c.logger.DebugContext(ctx, "jwt subject no longer exists",
				slog.String("user_uuid", claims.UserUUID))
		}
		return &MethodJWT{User: user, Claims: claims}, nil
	}

	sess, err := c.sessions.GetSessionFromToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		user, err := c.users.FindByUUID(ctx, sess.UserUUID)
		if err != nil {
			return nil, err
		}
		c.metrics.observeResolution("session_token")
		return &MethodSessionToken{User: user, Session: sess}, nil
	}

	revoked, err := c.sessions.GetRevokedSessionFromToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if revoked != nil {
		transitioned, err := c.sessions.MarkRevokedSessionAsReceived(ctx, revoked.UUID)
		if err != nil {
			return nil, err
		}

		event := newAuditEvent(AuditRevokedTokenSeen)
		event.UserUUID = revoked.UserUUID
		event.SessionUUID = revoked.UUID
		event.Success = true
		c.emit(ctx, event)

		c.metrics.observeResolution("revoked")
		return &MethodRevoked{RevokedSession: revoked, Transitioned: transitioned}, nil
	}

	c.metrics.observeResolution("none")
	return nil, nil
}
