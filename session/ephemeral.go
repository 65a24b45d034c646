package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEphemeralBackend is an exported constant or variable used by the session service.
var ErrEphemeralBackend = errors.New("ephemeral session backend unavailable")

const defaultEphemeralPrefix = "aes"

// RedisEphemeralStore keeps ephemeral sessions in Redis, keyed by session
// UUID with a per-user index set for bulk lookups. Entries carry the
// refresh-window TTL and are never written anywhere else.
type RedisEphemeralStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisEphemeralStore creates an ephemeral session store backed by the
// given Redis client. prefix sets the key namespace; pass "" for the
// default.
func NewRedisEphemeralStore(redisClient redis.UniversalClient, prefix string) *RedisEphemeralStore {
	if prefix == "" {
		prefix = defaultEphemeralPrefix
	}
	return &RedisEphemeralStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisEphemeralStore) key(sessionUUID string) string {
	return s.prefix + ":" + sessionUUID
}

func (s *RedisEphemeralStore) userKey(userUUID string) string {
	return s.prefix + "u:" + userUUID
}

// Save persists an ephemeral session with the given TTL and indexes it
// under its user.
func (s *RedisEphemeralStore) Save(ctx context.Context, sess *EphemeralSession, ttl time.Duration) error {
	encoded, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.UUID), encoded, ttl)
		pipe.SAdd(ctx, s.userKey(sess.UserUUID), sess.UUID)
		pipe.Expire(ctx, s.userKey(sess.UserUUID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEphemeralBackend, err)
	}
	return nil
}

// Get returns the ephemeral session with the given UUID, or nil when none
// exists. Absence is not an error.
func (s *RedisEphemeralStore) Get(ctx context.Context, sessionUUID string) (*EphemeralSession, error) {
	data, err := s.redis.Get(ctx, s.key(sessionUUID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrEphemeralBackend, err)
	}

	sess := &EphemeralSession{}
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, fmt.Errorf("%w: corrupt payload: %v", ErrEphemeralBackend, err)
	}
	return sess, nil
}

// FindAllByUserUUID returns every live ephemeral session for a user.
// Index entries whose session key already expired are skipped.
func (s *RedisEphemeralStore) FindAllByUserUUID(ctx context.Context, userUUID string) ([]*EphemeralSession, error) {
	uuids, err := s.redis.SMembers(ctx, s.userKey(userUUID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrEphemeralBackend, err)
	}

	sessions := make([]*EphemeralSession, 0, len(uuids))
	for _, uuid := range uuids {
		sess, err := s.Get(ctx, uuid)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// Delete removes an ephemeral session and its index entry. Deleting a
// session that no longer exists is not an error.
func (s *RedisEphemeralStore) Delete(ctx context.Context, userUUID, sessionUUID string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionUUID))
		pipe.SRem(ctx, s.userKey(userUUID), sessionUUID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEphemeralBackend, err)
	}
	return nil
}
