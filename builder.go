package authcore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/notesync/authcore/crypter"
	"github.com/notesync/authcore/lockout"
	"github.com/notesync/authcore/password"
	"github.com/notesync/authcore/session"
	"github.com/notesync/authcore/token"
)

// Builder assembles a [Core] from configuration and storage backends.
//
// Builder instances are intended to be configured during initialization
// and then discarded after Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users      UserRepository
	settings   SettingRepository
	sessions   session.Repository
	revoked    session.RevokedRepository
	ephemerals session.EphemeralStore

	auditSink  AuditSink
	logger     *slog.Logger
	registerer prometheus.Registerer
	selector   BooleanSelector

	built bool
}

// New creates a [Builder] preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	defaults := defaultConfig()
	if cfg.Session.AccessTTL == 0 {
		cfg.Session.AccessTTL = defaults.Session.AccessTTL
	}
	if cfg.Session.RefreshTTL == 0 {
		cfg.Session.RefreshTTL = defaults.Session.RefreshTTL
	}
	if cfg.Password == (password.Params{}) {
		cfg.Password = defaults.Password
	}
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing ephemeral sessions and lockout
// counters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserRepository sets the user storage backend.
func (b *Builder) WithUserRepository(repo UserRepository) *Builder {
	b.users = repo
	return b
}

// WithSettingRepository sets the setting storage backend.
func (b *Builder) WithSettingRepository(repo SettingRepository) *Builder {
	b.settings = repo
	return b
}

// WithSessionRepository sets the persistent session storage backend.
func (b *Builder) WithSessionRepository(repo session.Repository) *Builder {
	b.sessions = repo
	return b
}

// WithRevokedSessionRepository sets the revocation tombstone backend.
func (b *Builder) WithRevokedSessionRepository(repo session.RevokedRepository) *Builder {
	b.revoked = repo
	return b
}

// WithEphemeralStore overrides the default Redis-backed ephemeral store.
func (b *Builder) WithEphemeralStore(store session.EphemeralStore) *Builder {
	b.ephemerals = store
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Absent a logger, the core stays
// silent.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsRegisterer enables Prometheus collection on the given
// registry.
func (b *Builder) WithMetricsRegisterer(reg prometheus.Registerer) *Builder {
	b.registerer = reg
	return b
}

// WithBooleanSelector overrides the deterministic chooser used by
// pseudo-MFA responses.
func (b *Builder) WithBooleanSelector(selector BooleanSelector) *Builder {
	b.selector = selector
	return b
}

// Build validates the configuration, wires every component, and returns
// the ready [Core]. The builder cannot be reused.
func (b *Builder) Build() (*Core, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user repository required")
	}
	if b.settings == nil {
		return nil, errors.New("setting repository required")
	}
	if b.sessions == nil {
		return nil, errors.New("session repository required")
	}
	if b.revoked == nil {
		return nil, errors.New("revoked session repository required")
	}
	if b.redis == nil && b.ephemerals == nil {
		return nil, errors.New("redis client required")
	}

	keystore, err := crypter.NewKeyStore(cfg.Crypto.MasterKey)
	if err != nil {
		return nil, err
	}

	decoders := []token.Decoder{token.NewJWTDecoder(cfg.Tokens.JWTSecret)}
	if len(cfg.Tokens.LegacyJWTSecret) > 0 {
		decoders = append(decoders, token.NewJWTDecoder(cfg.Tokens.LegacyJWTSecret))
	}

	ephemerals := b.ephemerals
	if ephemerals == nil {
		ephemerals = session.NewRedisEphemeralStore(b.redis, cfg.Session.EphemeralPrefix)
	}

	sessions := session.NewService(
		b.sessions,
		ephemerals,
		b.revoked,
		cfg.Session.AccessTTL,
		cfg.Session.RefreshTTL,
	)

	var guard *lockout.Guard
	if b.redis != nil {
		guard = lockout.NewGuard(b.redis, repoUUIDResolver{users: b.users}, cfg.Lockout)
	}

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	decoyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}

	var metrics *Metrics
	if b.registerer != nil {
		metrics = NewMetrics(b.registerer)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	selector := b.selector
	if selector == nil {
		seed := cfg.Pseudo.Seed
		if len(seed) == 0 {
			seed = cfg.Tokens.JWTSecret
		}
		selector = NewDeterministicSelector(seed)
	}

	core := &Core{
		config:    cfg,
		logger:    logger,
		keystore:  keystore,
		decoders:  decoders,
		sessions:  sessions,
		guard:     guard,
		hasher:    hasher,
		decoyHash: decoyHash,
		users:     b.users,
		settings:  b.settings,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   metrics,
		selector:  selector,
		now:       time.Now,
	}

	b.built = true
	return core, nil
}

type repoUUIDResolver struct {
	users UserRepository
}

func (r repoUUIDResolver) ResolveUserUUID(ctx context.Context, email string) (string, error) {
	user, err := r.users.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}
	return user.UUID, nil
}
