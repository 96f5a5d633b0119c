package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgellow/yt-front/internal/auth"
	"github.com/dgellow/yt-front/internal/crypto"
	"github.com/dgellow/yt-front/internal/log"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// RedisConfig for the Redis-backed binding. Loaded from the environment by RedisConfigFromEnv.
type RedisConfig struct {
	// Addr like "localhost:6379". ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// ENV: REDIS_PASSWORD
	Password string `env:"REDIS_PASSWORD"`
	// ENV: REDIS_DB
	DB int `env:"REDIS_DB,default=0"`
	// KeyPrefix for all keys. ENV: SESSIONS_KEY_PREFIX
	KeyPrefix string `env:"SESSIONS_KEY_PREFIX,default=yt-front:sessions:"`
}

// RedisConfigFromEnv populates a RedisConfig from the environment; struct tags carry the defaults
func RedisConfigFromEnv() (RedisConfig, error) {
	var cfg RedisConfig
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return RedisConfig{}, fmt.Errorf("decoding redis config: %w", err)
	}
	return cfg, nil
}

var _ Binding = (*RedisBinding)(nil)

// RedisBinding stores each session as a hash with a TTL. Version bumps and
// compare-and-swap run in one Lua script so they are atomic across processes.
type RedisBinding struct {
	client    *redis.Client
	keyPrefix string
	encryptor crypto.Encryptor
	opts      options
}

// Session hash fields
const (
	fieldRecord  = "record"
	fieldVersion = "version"
	fieldCreated = "created"
	fieldExpires = "expires"
)

// storeScript writes the record and bumps the version. ARGV[4] is the
// expected version, or empty for an unconditional write.
// Returns the new version, -1 when the session is gone, -2 on conflict.
var storeScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 0 then
  return -1
end
if ARGV[4] ~= '' and redis.call('HGET', key, 'version') ~= ARGV[4] then
  return -2
end
local v = redis.call('HINCRBY', key, 'version', 1)
redis.call('HSET', key, 'record', ARGV[1], 'expires', ARGV[2])
redis.call('PEXPIRE', key, ARGV[3])
return v
`)

// NewRedisBinding connects to Redis and verifies the connection. Token records
// are encrypted with encryptor before they are written.
func NewRedisBinding(ctx context.Context, cfg RedisConfig, encryptor crypto.Encryptor, opts ...Option) (*RedisBinding, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "yt-front:sessions:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.LogInfoWithFields("session", "Connected to Redis", map[string]any{
		"addr":   addr,
		"db":     cfg.DB,
		"prefix": prefix,
	})

	return &RedisBinding{
		client:    client,
		keyPrefix: prefix,
		encryptor: encryptor,
		opts:      buildOptions(opts),
	}, nil
}

func (b *RedisBinding) key(id string) string { return b.keyPrefix + id }

func (b *RedisBinding) Create(ctx context.Context) (*Session, error) {
	id, err := crypto.GenerateSecureToken()
	if err != nil {
		return nil, err
	}
	now := b.opts.now()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(b.opts.ttl),
	}

	key := b.key(id)
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldVersion, 0,
			fieldCreated, now.UnixMilli(),
			fieldExpires, s.ExpiresAt.UnixMilli(),
		)
		pipe.PExpire(ctx, key, b.opts.ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return s, nil
}

func (b *RedisBinding) Attach(ctx context.Context, id string, rec *auth.TokenRecord) (uint64, error) {
	return b.store(ctx, id, rec, "")
}

func (b *RedisBinding) Update(ctx context.Context, id string, rec *auth.TokenRecord, expectedVersion uint64) (uint64, error) {
	return b.store(ctx, id, rec, strconv.FormatUint(expectedVersion, 10))
}

func (b *RedisBinding) store(ctx context.Context, id string, rec *auth.TokenRecord, expected string) (uint64, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encoding token record: %w", err)
	}
	sealed, err := b.encryptor.Encrypt(string(data))
	if err != nil {
		return 0, fmt.Errorf("encrypting token record: %w", err)
	}
	expires := b.opts.now().Add(b.opts.ttl)

	res, err := storeScript.Run(ctx, b.client, []string{b.key(id)},
		sealed,
		expires.UnixMilli(),
		b.opts.ttl.Milliseconds(),
		expected,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("storing session: %w", err)
	}

	switch res {
	case -1:
		return 0, ErrSessionNotFound
	case -2:
		return 0, ErrVersionConflict
	default:
		return uint64(res), nil
	}
}

func (b *RedisBinding) Resolve(ctx context.Context, id string) (*Session, error) {
	fields, err := b.client.HGetAll(ctx, b.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("resolving session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}
	return decodeSession(id, fields, b.encryptor)
}

func (b *RedisBinding) Close() error {
	return b.client.Close()
}

func decodeSession(id string, fields map[string]string, enc crypto.Encryptor) (*Session, error) {
	version, err := strconv.ParseUint(fields[fieldVersion], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid session version: %w", err)
	}
	created, err := strconv.ParseInt(fields[fieldCreated], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid session creation time: %w", err)
	}
	expires, err := strconv.ParseInt(fields[fieldExpires], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid session expiry: %w", err)
	}

	s := &Session{
		ID:        id,
		Version:   version,
		CreatedAt: time.UnixMilli(created),
		ExpiresAt: time.UnixMilli(expires),
	}
	if sealed, ok := fields[fieldRecord]; ok && sealed != "" {
		raw, err := enc.Decrypt(sealed)
		if err != nil {
			return nil, fmt.Errorf("decrypting token record: %w", err)
		}
		var rec auth.TokenRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decoding token record: %w", err)
		}
		s.Record = &rec
	}
	return s, nil
}
