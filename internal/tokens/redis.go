package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"chanlinks-go/internal/common/models"
)

const keyPrefix = "start_token:"

var (
	// KEYS[1] token key, ARGV: short_code, utm, created_at, ttl in ms
	insertScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], "short_code", ARGV[1], "utm", ARGV[2], "created_at", ARGV[3])
if tonumber(ARGV[4]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[4])
end
return 1
`)

	// KEYS[1] token key, ARGV[1] consumed_at. -1 unknown, 0 already consumed, 1 consumed now
	consumeScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
if redis.call("HEXISTS", KEYS[1], "consumed_at") == 1 then
	return 0
end
redis.call("HSET", KEYS[1], "consumed_at", ARGV[1])
return 1
`)
)

// RedisStore keeps tokens as hashes that expire after a TTL
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisConfig holds the connection settings of the redis token store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisStore connects to redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.TTL), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Mint(ctx context.Context, shortCode string, utm models.UTMParams) (*models.StartToken, error) {
	if utm == nil {
		utm = models.UTMParams{}
	}
	utmJSON, err := json.Marshal(utm)
	if err != nil {
		return nil, fmt.Errorf("encoding utm: %w", err)
	}

	createdAt := time.Now().UTC()

	token, err := mint(func(token string) (bool, error) {
		inserted, err := insertScript.Run(ctx, s.client,
			[]string{keyPrefix + token},
			shortCode, string(utmJSON), createdAt.Format(time.RFC3339Nano), s.ttl.Milliseconds(),
		).Int()
		if err != nil {
			return false, fmt.Errorf("inserting start token: %w", err)
		}
		if inserted == 0 {
			log.Warn().Str("short_code", shortCode).Msg("start token collision, regenerating")
		}
		return inserted == 1, nil
	})
	if err != nil {
		return nil, err
	}

	return &models.StartToken{
		Token:     token,
		ShortCode: shortCode,
		UTM:       utm,
		CreatedAt: createdAt,
	}, nil
}

func (s *RedisStore) Find(ctx context.Context, token string) (*models.StartToken, error) {
	fields, err := s.client.HGetAll(ctx, keyPrefix+token).Result()
	if err != nil {
		return nil, fmt.Errorf("finding start token: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	record := &models.StartToken{
		Token:     token,
		ShortCode: fields["short_code"],
	}
	if err := json.Unmarshal([]byte(fields["utm"]), &record.UTM); err != nil {
		return nil, fmt.Errorf("decoding utm: %w", err)
	}
	if record.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return nil, fmt.Errorf("decoding created_at: %w", err)
	}
	if v, ok := fields["consumed_at"]; ok {
		consumedAt, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("decoding consumed_at: %w", err)
		}
		record.ConsumedAt = &consumedAt
	}
	return record, nil
}

func (s *RedisStore) Consume(ctx context.Context, token string, at time.Time) error {
	result, err := consumeScript.Run(ctx, s.client,
		[]string{keyPrefix + token},
		at.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("consuming start token: %w", err)
	}

	switch result {
	case 1:
		return nil
	case 0:
		return ErrConsumed
	default:
		return ErrNotFound
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
