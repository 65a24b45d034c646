package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by mutations that target a session which
// does not exist in either storage tier.
var ErrSessionNotFound = errors.New("session not found")

// ErrRefreshExpired is returned when a refresh is attempted after the
// refresh window has lapsed.
var ErrRefreshExpired = errors.New("refresh token expired")

// Repository persists regular sessions. Lookups return (nil, nil) when no
// row matches; errors are reserved for backend failures.
type Repository interface {
	Insert(ctx context.Context, sess *Session) error
	Update(ctx context.Context, sess *Session) error
	FindByUUID(ctx context.Context, sessionUUID string) (*Session, error)
	FindAllByUserUUID(ctx context.Context, userUUID string) ([]*Session, error)
	Delete(ctx context.Context, sessionUUID string) error
}

// RevokedRepository persists revocation tombstones.
type RevokedRepository interface {
	Insert(ctx context.Context, revoked *RevokedSession) error
	FindByUUID(ctx context.Context, sessionUUID string) (*RevokedSession, error)

	// MarkAsReceived flips the received flag and reports whether this call
	// performed the transition. Implementations must make the flip
	// conditional so concurrent calls agree on a single winner.
	MarkAsReceived(ctx context.Context, sessionUUID string) (bool, error)
}

// EphemeralStore persists sessions that must not outlive their TTL.
type EphemeralStore interface {
	Save(ctx context.Context, sess *EphemeralSession, ttl time.Duration) error
	Get(ctx context.Context, sessionUUID string) (*EphemeralSession, error)
	FindAllByUserUUID(ctx context.Context, userUUID string) ([]*EphemeralSession, error)
	Delete(ctx context.Context, userUUID, sessionUUID string) error
}

// Service issues, resolves, refreshes, and revokes sessions across both
// storage tiers.
type Service struct {
	sessions   Repository
	ephemerals EphemeralStore
	revoked    RevokedRepository

	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

// NewService creates a session [Service]. accessTTL and refreshTTL bound
// the two token windows; refreshTTL also caps ephemeral session lifetime.
func NewService(
	sessions Repository,
	ephemerals EphemeralStore,
	revoked RevokedRepository,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) *Service {
	return &Service{
		sessions:   sessions,
		ephemerals: ephemerals,
		revoked:    revoked,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (s *Service) newSession(userUUID string, info DeviceInfo) (*Session, *Tokens, error) {
	sess := &Session{
		UUID:            uuid.NewString(),
		UserUUID:        userUUID,
		APIVersion:      info.APIVersion,
		UserAgent:       info.UserAgent,
		ReadonlyAccess:  info.Readonly,
		RedactUserAgent: info.RedactUserAgent,
	}

	tokens, err := s.rotateTokens(sess)
	if err != nil {
		return nil, nil, err
	}
	sess.CreatedAt = sess.UpdatedAt
	return sess, tokens, nil
}

// rotateTokens mints a fresh token pair, stores their digests on the
// session, and advances both expiration windows.
func (s *Service) rotateTokens(sess *Session) (*Tokens, error) {
	accessToken, err := GenerateToken(sess.UUID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := GenerateToken(sess.UUID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess.HashedAccessToken = HashToken(accessToken)
	sess.HashedRefreshToken = HashToken(refreshToken)
	sess.AccessExpiration = now.Add(s.accessTTL)
	sess.RefreshExpiration = now.Add(s.refreshTTL)
	sess.UpdatedAt = now

	return &Tokens{
		AccessToken:       accessToken,
		RefreshToken:      refreshToken,
		AccessExpiration:  sess.AccessExpiration,
		RefreshExpiration: sess.RefreshExpiration,
	}, nil
}

// CreateSession issues a new persistent session for a user and returns
// the plaintext token pair. The tokens are not recoverable later.
func (s *Service) CreateSession(ctx context.Context, userUUID string, info DeviceInfo) (*Session, *Tokens, error) {
	sess, tokens, err := s.newSession(userUUID, info)
	if err != nil {
		return nil, nil, err
	}
	if err := s.sessions.Insert(ctx, sess); err != nil {
		return nil, nil, err
	}
	return sess, tokens, nil
}

// CreateEphemeralSession issues a session that lives only in the
// ephemeral store for the duration of the refresh window.
func (s *Service) CreateEphemeralSession(ctx context.Context, userUUID string, info DeviceInfo) (*EphemeralSession, *Tokens, error) {
	sess, tokens, err := s.newSession(userUUID, info)
	if err != nil {
		return nil, nil, err
	}

	ephemeral := &EphemeralSession{Session: *sess}
	if err := s.ephemerals.Save(ctx, ephemeral, s.refreshTTL); err != nil {
		return nil, nil, err
	}
	return ephemeral, tokens, nil
}

// GetSessionFromToken resolves an opaque access token to its live
// session, checking the persistent tier first and the ephemeral tier
// second. It returns (nil, nil) for malformed tokens, unknown sessions,
// digest mismatches, and expired access windows.
func (s *Service) GetSessionFromToken(ctx context.Context, token string) (*Session, error) {
	sessionUUID, err := ParseToken(token)
	if err != nil {
		return nil, nil
	}

	sess, err := s.findInEitherTier(ctx, sessionUUID)
	if err != nil || sess == nil {
		return nil, err
	}

	if !tokenMatches(token, sess.HashedAccessToken) {
		return nil, nil
	}
	if sess.AccessExpired(s.now()) {
		return nil, nil
	}
	return sess, nil
}

// RefreshTokens rotates both tokens of the session named by the given
// refresh token. The previous pair stops working immediately. Fails with
// ErrSessionNotFound for unknown sessions, ErrInvalidToken for digest
// mismatches, and ErrRefreshExpired past the refresh window.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*Session, *Tokens, error) {
	sessionUUID, err := ParseToken(refreshToken)
	if err != nil {
		return nil, nil, err
	}

	sess, err := s.findInEitherTier(ctx, sessionUUID)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, ErrSessionNotFound
	}

	if !tokenMatches(refreshToken, sess.HashedRefreshToken) {
		return nil, nil, ErrInvalidToken
	}
	if sess.RefreshExpired(s.now()) {
		return nil, nil, ErrRefreshExpired
	}

	tokens, err := s.rotateTokens(sess)
	if err != nil {
		return nil, nil, err
	}

	ephemeral, err := s.ephemerals.Get(ctx, sess.UUID)
	if err != nil {
		return nil, nil, err
	}
	if ephemeral != nil {
		ephemeral.Session = *sess
		if err := s.ephemerals.Save(ctx, ephemeral, s.refreshTTL); err != nil {
			return nil, nil, err
		}
		return sess, tokens, nil
	}

	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, nil, err
	}
	return sess, tokens, nil
}

// CreateRevokedSession writes the tombstone for a session being revoked.
func (s *Service) CreateRevokedSession(ctx context.Context, sess *Session) (*RevokedSession, error) {
	revoked := &RevokedSession{
		UUID:      sess.UUID,
		UserUUID:  sess.UserUUID,
		Received:  false,
		CreatedAt: s.now(),
	}
	if err := s.revoked.Insert(ctx, revoked); err != nil {
		return nil, err
	}
	return revoked, nil
}

// GetRevokedSessionFromToken resolves a token to its revocation
// tombstone, if one exists. Returns (nil, nil) for malformed tokens and
// sessions that were never revoked.
func (s *Service) GetRevokedSessionFromToken(ctx context.Context, token string) (*RevokedSession, error) {
	sessionUUID, err := ParseToken(token)
	if err != nil {
		return nil, nil
	}
	return s.revoked.FindByUUID(ctx, sessionUUID)
}

// MarkRevokedSessionAsReceived flips the tombstone's received flag.
// The returned bool reports whether this call won the transition.
func (s *Service) MarkRevokedSessionAsReceived(ctx context.Context, sessionUUID string) (bool, error) {
	return s.revoked.MarkAsReceived(ctx, sessionUUID)
}

// DeleteSessionForUser revokes and removes one of the user's sessions,
// whichever tier it lives in. Fails with ErrSessionNotFound when the
// session does not exist or belongs to another user.
func (s *Service) DeleteSessionForUser(ctx context.Context, userUUID, sessionUUID string) error {
	sess, err := s.sessions.FindByUUID(ctx, sessionUUID)
	if err != nil {
		return err
	}
	if sess != nil && sess.UserUUID == userUUID {
		if _, err := s.CreateRevokedSession(ctx, sess); err != nil {
			return err
		}
		return s.sessions.Delete(ctx, sessionUUID)
	}

	ephemeral, err := s.ephemerals.Get(ctx, sessionUUID)
	if err != nil {
		return err
	}
	if ephemeral != nil && ephemeral.UserUUID == userUUID {
		if _, err := s.CreateRevokedSession(ctx, &ephemeral.Session); err != nil {
			return err
		}
		return s.ephemerals.Delete(ctx, userUUID, sessionUUID)
	}

	return ErrSessionNotFound
}

// DeleteOtherSessionsForUser revokes every session of the user except the
// one named, across both tiers.
func (s *Service) DeleteOtherSessionsForUser(ctx context.Context, userUUID, currentSessionUUID string) error {
	persistent, err := s.sessions.FindAllByUserUUID(ctx, userUUID)
	if err != nil {
		return err
	}
	for _, sess := range persistent {
		if sess.UUID == currentSessionUUID {
			continue
		}
		if _, err := s.CreateRevokedSession(ctx, sess); err != nil {
			return err
		}
		if err := s.sessions.Delete(ctx, sess.UUID); err != nil {
			return err
		}
	}

	ephemerals, err := s.ephemerals.FindAllByUserUUID(ctx, userUUID)
	if err != nil {
		return err
	}
	for _, sess := range ephemerals {
		if sess.UUID == currentSessionUUID {
			continue
		}
		if _, err := s.CreateRevokedSession(ctx, &sess.Session); err != nil {
			return err
		}
		if err := s.ephemerals.Delete(ctx, userUUID, sess.UUID); err != nil {
			return err
		}
	}
	return nil
}

// findInEitherTier checks the persistent store first, then the ephemeral
// store. Absence in both is (nil, nil).
func (s *Service) findInEitherTier(ctx context.Context, sessionUUID string) (*Session, error) {
	sess, err := s.sessions.FindByUUID(ctx, sessionUUID)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}

	ephemeral, err := s.ephemerals.Get(ctx, sessionUUID)
	if err != nil {
		return nil, err
	}
	if ephemeral == nil {
		return nil, nil
	}
	return &ephemeral.Session, nil
}

func tokenMatches(token, storedHash string) bool {
	computed := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
