package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "gd:"
	updateRetries      = 8
)

// Redis keeps each record as a JSON string, tracks children in sets so
// collections can be listed and subtrees deleted, and publishes the written
// path on a channel for subscribers.
type Redis struct {
	rdb    *redis.Client
	prefix string
	subs   *fanout

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{rdb: rdb, prefix: prefix, subs: newFanout()}
}

func (r *Redis) recKey(path string) string  { return r.prefix + "rec:" + path }
func (r *Redis) kidsKey(path string) string { return r.prefix + "kids:" + path }
func (r *Redis) channel() string            { return r.prefix + "changes" }

func (r *Redis) Get(ctx context.Context, path string) (json.RawMessage, error) {
	p, err := Clean(path)
	if err != nil {
		return nil, err
	}
	b, err := r.rdb.Get(ctx, r.recKey(p)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p, err)
	}
	return b, nil
}

// index registers p and its ancestors in their parents' child sets.
func (r *Redis) index(ctx context.Context, pipe redis.Pipeliner, p string) {
	for cur := p; cur != ""; cur = Parent(cur) {
		pipe.SAdd(ctx, r.kidsKey(Parent(cur)), Base(cur))
	}
}

func (r *Redis) Set(ctx context.Context, path string, value any) error {
	p, err := Clean(path)
	if err != nil {
		return err
	}
	raw, err := toRecord(value)
	if err != nil {
		return err
	}
	if raw == nil {
		return r.deleteTree(ctx, p)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.recKey(p), []byte(raw), 0)
		r.index(ctx, pipe, p)
		pipe.Publish(ctx, r.channel(), p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", p, err)
	}
	return nil
}

func (r *Redis) deleteTree(ctx context.Context, p string) error {
	var keys []string
	var walk func(string) error
	walk = func(cur string) error {
		keys = append(keys, r.recKey(cur), r.kidsKey(cur))
		kids, err := r.rdb.SMembers(ctx, r.kidsKey(cur)).Result()
		if err != nil {
			return err
		}
		for _, k := range kids {
			if err := walk(Join(cur, k)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(p); err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, r.kidsKey(Parent(p)), Base(p))
		pipe.Publish(ctx, r.channel(), p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return nil
}

// Update runs fn under WATCH and retries when another writer got in first.
// A nil result deletes only the record itself, not its children.
func (r *Redis) Update(ctx context.Context, path string, fn UpdateFunc) (json.RawMessage, error) {
	p, err := Clean(path)
	if err != nil {
		return nil, err
	}
	key := r.recKey(p)

	var out json.RawMessage
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			cur, err = nil, nil
		}
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		raw, err := toRecord(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if raw == nil {
				pipe.Del(ctx, key)
				pipe.SRem(ctx, r.kidsKey(Parent(p)), Base(p))
			} else {
				pipe.Set(ctx, key, []byte(raw), 0)
				r.index(ctx, pipe, p)
			}
			pipe.Publish(ctx, r.channel(), p)
			return nil
		})
		out = raw
		return err
	}

	for i := 0; i < updateRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrConflict
}

func (r *Redis) List(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	c, err := Clean(collection)
	if err != nil {
		return nil, err
	}
	kids, err := r.rdb.SMembers(ctx, r.kidsKey(c)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	out := make(map[string]json.RawMessage, len(kids))
	if len(kids) == 0 {
		return out, nil
	}

	keys := make([]string, len(kids))
	for i, k := range kids {
		keys[i] = r.recKey(Join(c, k))
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			// intermediate node without a record of its own
			continue
		}
		out[kids[i]] = json.RawMessage(s)
	}
	return out, nil
}

func (r *Redis) Subscribe(ctx context.Context, path string, fn Handler) (func(), error) {
	p, err := Clean(path)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.New("store: nil handler")
	}
	if err := r.ensureListener(ctx); err != nil {
		return nil, err
	}
	return r.subs.add(p, fn), nil
}

func (r *Redis) ensureListener(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubsub != nil {
		return nil
	}

	ps := r.rdb.Subscribe(context.Background(), r.channel())
	// wait for the confirmation so no publish after Subscribe returns is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	r.pubsub = ps
	r.done = make(chan struct{})
	go r.relay(ps, r.done)
	return nil
}

func (r *Redis) relay(ps *redis.PubSub, done chan struct{}) {
	defer close(done)
	ctx := context.Background()
	for msg := range ps.Channel() {
		path := msg.Payload
		if len(r.subs.matching(path)) == 0 {
			continue
		}
		raw, err := r.Get(ctx, path)
		if err != nil && !errors.Is(err, ErrNotFound) {
			logger.Warn("reload after publish failed", "path", path, "error", err)
			continue
		}
		r.subs.publish(Event{Path: path, Value: raw})
	}
}

func (r *Redis) Close() error {
	r.mu.Lock()
	ps, done := r.pubsub, r.done
	r.pubsub = nil
	r.mu.Unlock()
	if ps == nil {
		return nil
	}
	err := ps.Close()
	<-done
	return err
}
