package authcore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/notesync/authcore/lockout"
	"github.com/notesync/authcore/password"
	"github.com/notesync/authcore/session"
)

// fastParams keeps Argon2id at its validation floor so tests stay quick.
var fastParams = password.Params{
	Memory:      8 * 1024,
	Time:        1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func testMasterKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

type memoryUsers struct {
	mu      sync.Mutex
	byUUID  map[string]*User
	byEmail map[string]*User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{
		byUUID:  make(map[string]*User),
		byEmail: make(map[string]*User),
	}
}

func (r *memoryUsers) FindByUUID(_ context.Context, userUUID string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byUUID[userUUID]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (r *memoryUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (r *memoryUsers) Insert(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.byUUID[user.UUID] = &copied
	r.byEmail[user.Email] = &copied
	return nil
}

func (r *memoryUsers) Update(_ context.Context, user *User) error {
	return r.Insert(context.Background(), user)
}

type settingKey struct {
	userUUID string
	name     string
}

type memorySettings struct {
	mu       sync.Mutex
	settings map[settingKey]*Setting
}

func newMemorySettings() *memorySettings {
	return &memorySettings{settings: make(map[settingKey]*Setting)}
}

func (r *memorySettings) FindOneByNameAndUserUUID(_ context.Context, name, userUUID string) (*Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	setting, ok := r.settings[settingKey{userUUID: userUUID, name: name}]
	if !ok {
		return nil, nil
	}
	copied := *setting
	return &copied, nil
}

func (r *memorySettings) FindAllByUserUUID(_ context.Context, userUUID string) ([]*Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Setting
	for key, setting := range r.settings {
		if key.userUUID == userUUID {
			copied := *setting
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memorySettings) Upsert(_ context.Context, setting *Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *setting
	r.settings[settingKey{userUUID: setting.UserUUID, name: setting.Name}] = &copied
	return nil
}

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[string]*session.Session)}
}

func (r *memorySessions) Insert(_ context.Context, sess *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *sess
	r.sessions[sess.UUID] = &copied
	return nil
}

func (r *memorySessions) Update(ctx context.Context, sess *session.Session) error {
	return r.Insert(ctx, sess)
}

func (r *memorySessions) FindByUUID(_ context.Context, sessionUUID string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[sessionUUID]
	if !ok {
		return nil, nil
	}
	copied := *sess
	return &copied, nil
}

func (r *memorySessions) FindAllByUserUUID(_ context.Context, userUUID string) ([]*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*session.Session
	for _, sess := range r.sessions {
		if sess.UserUUID == userUUID {
			copied := *sess
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memorySessions) Delete(_ context.Context, sessionUUID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionUUID)
	return nil
}

func (r *memorySessions) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type memoryRevoked struct {
	mu      sync.Mutex
	revoked map[string]*session.RevokedSession
}

func newMemoryRevoked() *memoryRevoked {
	return &memoryRevoked{revoked: make(map[string]*session.RevokedSession)}
}

func (r *memoryRevoked) Insert(_ context.Context, revoked *session.RevokedSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.revoked[revoked.UUID]; ok {
		return nil
	}
	copied := *revoked
	r.revoked[revoked.UUID] = &copied
	return nil
}

func (r *memoryRevoked) FindByUUID(_ context.Context, sessionUUID string) (*session.RevokedSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	revoked, ok := r.revoked[sessionUUID]
	if !ok {
		return nil, nil
	}
	copied := *revoked
	return &copied, nil
}

func (r *memoryRevoked) MarkAsReceived(_ context.Context, sessionUUID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	revoked, ok := r.revoked[sessionUUID]
	if !ok || revoked.Received {
		return false, nil
	}
	revoked.Received = true
	return true, nil
}

type coreFixture struct {
	t        *testing.T
	core     *Core
	users    *memoryUsers
	settings *memorySettings
	sessions *memorySessions
	revoked  *memoryRevoked
	sink     *ChannelSink
}

func newCoreFixture(t *testing.T, mutate func(*Config)) *coreFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := Config{
		Crypto: CryptoConfig{MasterKey: testMasterKey()},
		Tokens: TokenConfig{JWTSecret: []byte("current-jwt-secret")},
		Session: SessionConfig{
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		Lockout: lockout.Config{
			Threshold: 3,
			Window:    time.Minute,
		},
		Password: fastParams,
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 64,
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	users := newMemoryUsers()
	settings := newMemorySettings()
	sessions := newMemorySessions()
	revoked := newMemoryRevoked()
	sink := NewChannelSink(64)

	core, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserRepository(users).
		WithSettingRepository(settings).
		WithSessionRepository(sessions).
		WithRevokedSessionRepository(revoked).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	t.Cleanup(core.Close)

	return &coreFixture{
		t:        t,
		core:     core,
		users:    users,
		settings: settings,
		sessions: sessions,
		revoked:  revoked,
		sink:     sink,
	}
}

func (f *coreFixture) register(email, pass string) *User {
	f.t.Helper()
	user, err := f.core.Register(context.Background(), email, pass)
	if err != nil {
		f.t.Fatalf("Register(%q) = %v", email, err)
	}
	return user
}

func (f *coreFixture) signIn(email, pass string) *SignInResult {
	f.t.Helper()
	result, err := f.core.SignIn(context.Background(), email, pass, session.DeviceInfo{APIVersion: "20200115"}, false)
	if err != nil {
		f.t.Fatalf("SignIn(%q) = %v", email, err)
	}
	return result
}

// waitForAuditEvent drains the sink until an event of the wanted type
// shows up.
func (f *coreFixture) waitForAuditEvent(eventType string) AuditEvent {
	f.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-f.sink.Events():
			if event.EventType == eventType {
				return event
			}
		case <-deadline:
			f.t.Fatalf("no %q audit event arrived", eventType)
		}
	}
}
