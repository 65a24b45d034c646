package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockoutBackend indicates the lockout backend is unreachable.
var ErrLockoutBackend = errors.New("lockout backend unavailable")

// Config holds the failed-login lockout policy.
type Config struct {
	Threshold int
	Window    time.Duration // counter lifetime; also the lockout duration
}

// UserUUIDResolver maps an email to its user UUID. Implementations return
// "" for unknown emails; a lookup failure is an error.
type UserUUIDResolver interface {
	ResolveUserUUID(ctx context.Context, email string) (string, error)
}

// Guard tracks failed sign-in attempts per email and per user UUID and
// locks further attempts once either counter reaches the threshold.
//
// Two counters exist because attempts can arrive before the email maps to
// any user (typos, enumeration probes) and because an attacker may rotate
// email casing or aliases against one account. Both counters age out with
// the configured window.
type Guard struct {
	redis    redis.UniversalClient
	resolver UserUUIDResolver
	config   Config
}

// NewGuard creates a lockout [Guard]. A Threshold of 0 disables locking.
func NewGuard(redisClient redis.UniversalClient, resolver UserUUIDResolver, cfg Config) *Guard {
	return &Guard{redis: redisClient, resolver: resolver, config: cfg}
}

func (g *Guard) emailKey(email string) string {
	return "ala:email:" + email
}

func (g *Guard) userKey(userUUID string) string {
	return "ala:user:" + userUUID
}

// Increase records one failed attempt against the email and, when the
// email resolves to a user, against that user as well. Returns true when
// either counter has reached the threshold.
func (g *Guard) Increase(ctx context.Context, email string) (bool, error) {
	if g.config.Threshold <= 0 || email == "" {
		return false, nil
	}

	emailCount, err := g.bump(ctx, g.emailKey(email))
	if err != nil {
		return false, err
	}

	userUUID, err := g.resolver.ResolveUserUUID(ctx, email)
	if err != nil {
		return false, err
	}

	var userCount int64
	if userUUID != "" {
		userCount, err = g.bump(ctx, g.userKey(userUUID))
		if err != nil {
			return false, err
		}
	}

	threshold := int64(g.config.Threshold)
	return emailCount >= threshold || userCount >= threshold, nil
}

// Clear resets both counters after a successful authentication. The email
// counter is cleared first so a crash between the two deletes fails open
// for the user, not closed.
func (g *Guard) Clear(ctx context.Context, email string) error {
	if email == "" {
		return nil
	}

	if err := g.redis.Del(ctx, g.emailKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutBackend, err)
	}

	userUUID, err := g.resolver.ResolveUserUUID(ctx, email)
	if err != nil {
		return err
	}
	if userUUID == "" {
		return nil
	}

	if err := g.redis.Del(ctx, g.userKey(userUUID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutBackend, err)
	}
	return nil
}

// IsLocked reports whether sign-in attempts for this email must be
// refused. Unknown emails are still lockable through the email counter.
func (g *Guard) IsLocked(ctx context.Context, email string) (bool, error) {
	if g.config.Threshold <= 0 || email == "" {
		return false, nil
	}

	emailCount, err := g.count(ctx, g.emailKey(email))
	if err != nil {
		return false, err
	}

	userUUID, err := g.resolver.ResolveUserUUID(ctx, email)
	if err != nil {
		return false, err
	}

	var userCount int64
	if userUUID != "" {
		userCount, err = g.count(ctx, g.userKey(userUUID))
		if err != nil {
			return false, err
		}
	}

	threshold := int64(g.config.Threshold)
	return emailCount >= threshold || userCount >= threshold, nil
}

func (g *Guard) bump(ctx context.Context, key string) (int64, error) {
	count, err := g.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLockoutBackend, err)
	}

	if count == 1 && g.config.Window > 0 {
		// TTL on first failure makes the counter a rolling window.
		if err := g.redis.Expire(ctx, key, g.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrLockoutBackend, err)
		}
	}
	return count, nil
}

func (g *Guard) count(ctx context.Context, key string) (int64, error) {
	count, err := g.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutBackend, err)
	}
	return count, nil
}
