package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "session:"

// RedisStore keeps each session under its own key. Expiry is delegated to
// the key TTL, so DeleteExpired has nothing to do.
//
// Unlike SQLStore and MongoStore, saving a session whose expiry is already
// in the past removes the key, so a following Load reports it as missing.
type RedisStore struct {
	client  redis.Cmdable
	prefix  string
	codec   Codec
	corrupt CorruptPolicy
	logger  *slog.Logger
	now     func() time.Time
}

type RedisOptions struct {
	Prefix        string
	Codec         Codec
	CorruptPolicy CorruptPolicy
	Logger        *slog.Logger
}

func NewRedisStore(client redis.Cmdable, opts RedisOptions) *RedisStore {
	if opts.Prefix == "" {
		opts.Prefix = DefaultRedisPrefix
	}
	if opts.Codec == nil {
		opts.Codec = GobCodec{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &RedisStore{
		client:  client,
		prefix:  opts.Prefix,
		codec:   opts.Codec,
		corrupt: opts.CorruptPolicy,
		logger:  opts.Logger,
		now:     time.Now,
	}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Load(id string) (Data, bool, error) {
	if err := validateID(id); err != nil {
		return nil, false, err
	}
	ctx := context.TODO()

	val, err := r.client.Get(ctx, r.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StoreError{Op: "load", ID: id, Err: err}
	}

	data, err := r.codec.Decode(val)
	if err != nil {
		return corrupted(r.logger, r.corrupt, id, err)
	}
	return data, true, nil
}

// Save writes the payload with a TTL up to the session expiry. A session
// that is already expired is deleted instead.
func (r *RedisStore) Save(id string, data Data) error {
	if err := validateID(id); err != nil {
		return err
	}
	exp, ok, err := expiresOf(data)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if ok {
		ttl = time.Unix(exp, 0).Sub(r.now())
		if ttl <= 0 {
			return r.Delete(id)
		}
	}

	payload, err := r.codec.Encode(data)
	if err != nil {
		return fmt.Errorf("session: encode %q: %w", id, err)
	}

	ctx := context.TODO()
	if err := r.client.Set(ctx, r.key(id), payload, ttl).Err(); err != nil {
		return &StoreError{Op: "save", ID: id, Err: err}
	}
	return nil
}

func (r *RedisStore) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	ctx := context.TODO()
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return &StoreError{Op: "delete", ID: id, Err: err}
	}
	return nil
}

func (r *RedisStore) DeleteExpired(int64) error {
	return nil
}
