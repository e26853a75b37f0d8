package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Redis keeps sessions as sess:<sid> -> user id with a TTL, plus a
// usess:<user id> set so all of a user's sessions can be revoked.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func sessKey(sid string) string    { return "sess:" + sid }
func userKey(userID string) string { return "usess:" + userID }

func (r *Redis) Create(ctx context.Context, userID string) (string, error) {
	sid := uuid.NewString()
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessKey(sid), userID, r.ttl)
		p.SAdd(ctx, userKey(userID), sid)
		p.Expire(ctx, userKey(userID), r.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sid, nil
}

func (r *Redis) Lookup(ctx context.Context, sid string) (string, error) {
	userID, err := r.rdb.Get(ctx, sessKey(sid)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}
	return userID, nil
}

func (r *Redis) Revoke(ctx context.Context, sid string) error {
	userID, err := r.Lookup(ctx, sid)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, sessKey(sid))
		p.SRem(ctx, userKey(userID), sid)
		return nil
	})
	return err
}

func (r *Redis) RevokeUser(ctx context.Context, userID string) error {
	sids, err := r.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	keys := make([]string, 0, len(sids)+1)
	for _, sid := range sids {
		keys = append(keys, sessKey(sid))
	}
	keys = append(keys, userKey(userID))
	return r.rdb.Del(ctx, keys...).Err()
}
