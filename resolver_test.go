package authcore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/notesync/authcore/token"
)

func signTestJWT(t *testing.T, secret []byte, userUUID string) string {
	t.Helper()
	claims := &token.SessionTokenClaims{
		UserUUID: userUUID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return raw
}

func TestResolveEmptyToken(t *testing.T) {
	f := newCoreFixture(t, nil)

	method, err := f.core.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if method != nil {
		t.Fatalf("Resolve(\"\") = %T, want nil", method)
	}
}

func TestResolveGarbageToken(t *testing.T) {
	f := newCoreFixture(t, nil)

	method, err := f.core.Resolve(context.Background(), "not-a-credential")
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if method != nil {
		t.Fatalf("Resolve(garbage) = %T, want nil", method)
	}
}

func TestResolveCurrentJWT(t *testing.T) {
	f := newCoreFixture(t, nil)
	user := f.register("jwt@example.com", "correct horse")

	raw := signTestJWT(t, []byte("current-jwt-secret"), user.UUID)
	method, err := f.core.Resolve(context.Background(), raw)
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}

	m, ok := method.(*MethodJWT)
	if !ok {
		t.Fatalf("Resolve() = %T, want *MethodJWT", method)
	}
	if m.User == nil || m.User.UUID != user.UUID {
		t.Fatalf("resolved user = %+v, want %s", m.User, user.UUID)
	}
}

func TestResolveLegacyJWT(t *testing.T) {
	legacy := []byte("legacy-jwt-secret")
	f := newCoreFixture(t, func(cfg *Config) {
		cfg.Tokens.LegacyJWTSecret = legacy
	})
	user := f.register("legacy@example.com", "correct horse")

	raw := signTestJWT(t, legacy, user.UUID)
	method, err := f.core.Resolve(context.Background(), raw)
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if _, ok := method.(*MethodJWT); !ok {
		t.Fatalf("Resolve() = %T, want *MethodJWT", method)
	}
}

func TestResolveJWTWithoutLegacySecretConfigured(t *testing.T) {
	f := newCoreFixture(t, nil)
	user := f.register("nolegacy@example.com", "correct horse")

	raw := signTestJWT(t, []byte("legacy-jwt-secret"), user.UUID)
	method, err := f.core.Resolve(context.Background(), raw)
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if method != nil {
		t.Fatalf("Resolve() = %T, want nil for token under unknown secret", method)
	}
}

func TestResolveJWTSubjectMissing(t *testing.T) {
	f := newCoreFixture(t, nil)

	raw := signTestJWT(t, []byte("current-jwt-secret"), "00000000-0000-0000-0000-000000000000")
	method, err := f.core.Resolve(context.Background(), raw)
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}

	m, ok := method.(*MethodJWT)
	if !ok {
		t.Fatalf("Resolve() = %T, want *MethodJWT", method)
	}
	if m.User != nil {
		t.Fatalf("resolved user = %+v, want nil for missing subject", m.User)
	}
}

func TestResolveSessionToken(t *testing.T) {
	f := newCoreFixture(t, nil)
	user := f.register("session@example.com", "correct horse")
	result := f.signIn("session@example.com", "correct horse")

	method, err := f.core.Resolve(context.Background(), result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}

	m, ok := method.(*MethodSessionToken)
	if !ok {
		t.Fatalf("Resolve() = %T, want *MethodSessionToken", method)
	}
	if m.Session.UUID != result.Session.UUID {
		t.Fatalf("resolved session %s, want %s", m.Session.UUID, result.Session.UUID)
	}
	if m.User == nil || m.User.UUID != user.UUID {
		t.Fatalf("resolved user = %+v, want %s", m.User, user.UUID)
	}
}

func TestResolveRefreshTokenIsNotASession(t *testing.T) {
	f := newCoreFixture(t, nil)
	f.register("refresh@example.com", "correct horse")
	result := f.signIn("refresh@example.com", "correct horse")

	method, err := f.core.Resolve(context.Background(), result.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if method != nil {
		t.Fatalf("Resolve(refresh token) = %T, want nil", method)
	}
}

func TestResolveRevokedSessionDeliversOnce(t *testing.T) {
	f := newCoreFixture(t, nil)
	user := f.register("revoked@example.com", "correct horse")
	result := f.signIn("revoked@example.com", "correct horse")

	ctx := context.Background()
	if err := f.core.SignOut(ctx, result.Tokens.AccessToken); err != nil {
		t.Fatalf("SignOut() = %v", err)
	}

	method, err := f.core.Resolve(ctx, result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	m, ok := method.(*MethodRevoked)
	if !ok {
		t.Fatalf("Resolve() = %T, want *MethodRevoked", method)
	}
	if !m.Transitioned {
		t.Fatal("first resolution after revocation should transition the tombstone")
	}
	if m.RevokedSession.UserUUID != user.UUID {
		t.Fatalf("tombstone user %s, want %s", m.RevokedSession.UserUUID, user.UUID)
	}

	method, err = f.core.Resolve(ctx, result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	m, ok = method.(*MethodRevoked)
	if !ok {
		t.Fatalf("second Resolve() = %T, want *MethodRevoked", method)
	}
	if m.Transitioned {
		t.Fatal("second resolution must not claim the transition again")
	}

	event := f.waitForAuditEvent(AuditRevokedTokenSeen)
	if event.SessionUUID != result.Session.UUID {
		t.Fatalf("audit session %s, want %s", event.SessionUUID, result.Session.UUID)
	}
}

func TestResolvePrefersCurrentDecoderOverLegacy(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	// Both decoders accept the same secret, so any valid token matches
	// both; resolution must still credit the current decoder.
	cfg := validTestConfig()
	cfg.Tokens.LegacyJWTSecret = cfg.Tokens.JWTSecret

	registry := prometheus.NewRegistry()
	users := newMemoryUsers()
	core, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserRepository(users).
		WithSettingRepository(newMemorySettings()).
		WithSessionRepository(newMemorySessions()).
		WithRevokedSessionRepository(newMemoryRevoked()).
		WithMetricsRegisterer(registry).
		Build()
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	t.Cleanup(core.Close)

	user, err := core.Register(context.Background(), "both@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Register() = %v", err)
	}

	raw := signTestJWT(t, cfg.Tokens.JWTSecret, user.UUID)
	method, err := core.Resolve(context.Background(), raw)
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if _, ok := method.(*MethodJWT); !ok {
		t.Fatalf("Resolve() = %T, want *MethodJWT", method)
	}

	if got := testutil.ToFloat64(core.metrics.resolutions.WithLabelValues("jwt")); got != 1 {
		t.Fatalf("current-decoder resolutions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(core.metrics.resolutions.WithLabelValues("legacy_jwt")); got != 0 {
		t.Fatalf("legacy-decoder resolutions = %v, want 0", got)
	}
}
