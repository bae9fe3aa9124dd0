package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func InitRedis(url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("redis: empty URL")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

// Deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// PassLock is a lease shared by every driver process, so a pass runs on at
// most one of them at a time. The TTL bounds how long a crashed holder can
// block the others.
type PassLock struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func NewPassLock(rdb *redis.Client, ttl time.Duration) *PassLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PassLock{Client: rdb, TTL: ttl, Prefix: "dailybot:pass:"}
}

// Acquire tries to take the lease for name. ok is false when another process
// holds it. The returned release is a no-op unless ok is true.
func (l *PassLock) Acquire(ctx context.Context, name string) (release func(context.Context) error, ok bool, err error) {
	key := l.Prefix + name
	token := uuid.NewString()

	ok, err = l.Client.SetNX(ctx, key, token, l.TTL).Result()
	if err != nil || !ok {
		return func(context.Context) error { return nil }, false, err
	}

	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.Client, []string{key}, token).Err()
	}, true, nil
}
