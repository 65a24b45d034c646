package session

import "time"

// Session is a long-lived client session backed by the relational store.
//
// Only token digests are persisted. The plaintext access and refresh
// tokens exist solely in the [Tokens] value returned at issuance and are
// never recoverable afterwards.
type Session struct {
	UUID               string
	UserUUID           string
	HashedAccessToken  string
	HashedRefreshToken string

	APIVersion      string
	UserAgent       string
	ReadonlyAccess  bool
	RedactUserAgent bool

	AccessExpiration  time.Time
	RefreshExpiration time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeviceInfo returns the client properties recorded on the session. The
// user agent is withheld when the session was created with user-agent
// logging disabled.
func (s *Session) DeviceInfo() DeviceInfo {
	info := DeviceInfo{
		APIVersion:      s.APIVersion,
		Readonly:        s.ReadonlyAccess,
		RedactUserAgent: s.RedactUserAgent,
	}
	if !s.RedactUserAgent {
		info.UserAgent = s.UserAgent
	}
	return info
}

// AccessExpired reports whether the access token window has passed.
func (s *Session) AccessExpired(now time.Time) bool {
	return !now.Before(s.AccessExpiration)
}

// RefreshExpired reports whether the refresh token window has passed.
func (s *Session) RefreshExpired(now time.Time) bool {
	return !now.Before(s.RefreshExpiration)
}

// EphemeralSession is a session the client asked not to persist. It lives
// only in Redis and disappears when its refresh window lapses.
type EphemeralSession struct {
	Session
}

// RevokedSession is a tombstone left behind when a session is revoked.
// Received flips to true the first time the client presents the revoked
// token, so the "your session was revoked" response is delivered exactly
// once.
type RevokedSession struct {
	UUID      string
	UserUUID  string
	Received  bool
	CreatedAt time.Time
}

// DeviceInfo captures the client properties recorded on a new session.
// RedactUserAgent reflects the user's preference to keep user agents out
// of session listings; it is captured at creation and never changes.
type DeviceInfo struct {
	APIVersion      string
	UserAgent       string
	Readonly        bool
	RedactUserAgent bool
}

// Tokens carries the plaintext token pair handed to the client at
// issuance and refresh. It is never stored.
type Tokens struct {
	AccessToken       string
	RefreshToken      string
	AccessExpiration  time.Time
	RefreshExpiration time.Time
}
