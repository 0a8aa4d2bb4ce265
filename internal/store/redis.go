package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisFieldVersion = "v"
	redisFieldData    = "d"
)

// RedisStore keeps each document in a hash {prefix}:doc:{key} holding the
// version and the JSON value. Writes are published on {prefix}:events so every
// API instance fans them out to its local subscribers.
type RedisStore struct {
	client *redis.Client
	prefix string
	hub    *Hub
	logger *zap.Logger
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "manifest"
	}
	return &RedisStore{client: client, prefix: prefix, hub: NewHub(), logger: logger}
}

func (r *RedisStore) docKey(key string) string {
	return r.prefix + ":doc:" + key
}

func (r *RedisStore) channel() string {
	return r.prefix + ":events"
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key string) (Record, error) {
	values, err := r.client.HMGet(ctx, r.docKey(key), redisFieldVersion, redisFieldData).Result()
	if err != nil {
		return Record{}, err
	}
	return decodeHash(key, values)
}

// List implements Store.
func (r *RedisStore) List(ctx context.Context, prefix string) ([]Record, error) {
	pattern := r.docKey(prefix) + "*"
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)

	pipe := r.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HMGet(ctx, k, redisFieldVersion, redisFieldData)
	}
	if len(keys) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
	}

	out := make([]Record, 0, len(keys))
	docPrefix := r.docKey("")
	for i, k := range keys {
		rec, err := decodeHash(strings.TrimPrefix(k, docPrefix), cmds[i].Val())
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte) (int64, error) {
	k := r.docKey(key)
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, k, redisFieldVersion, 1)
		pipe.HSet(ctx, k, redisFieldData, value)
		return nil
	})
	if err != nil {
		return 0, err
	}
	version := incr.Val()
	r.publish(ctx, Event{Type: EventPut, Key: key, Version: version, Value: value})
	return version, nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	removed, err := r.client.Del(ctx, r.docKey(key)).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrNotFound
	}
	r.publish(ctx, Event{Type: EventDelete, Key: key})
	return nil
}

// CompareAndSwap implements Store using WATCH/MULTI.
func (r *RedisStore) CompareAndSwap(ctx context.Context, key string, expected int64, value []byte) (int64, error) {
	k := r.docKey(key)
	next := expected + 1
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, k, redisFieldVersion).Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return err
		}
		if current != expected {
			return ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if value == nil {
				pipe.Del(ctx, k)
				return nil
			}
			pipe.HSet(ctx, k, redisFieldVersion, next, redisFieldData, value)
			return nil
		})
		return err
	}, k)
	if errors.Is(err, redis.TxFailedErr) {
		return 0, ErrVersionConflict
	}
	if err != nil {
		return 0, err
	}

	if value == nil {
		r.publish(ctx, Event{Type: EventDelete, Key: key, Version: expected})
		return 0, nil
	}
	r.publish(ctx, Event{Type: EventPut, Key: key, Version: next, Value: value})
	return next, nil
}

// Subscribe implements Store. Events only arrive while Listen is running.
func (r *RedisStore) Subscribe(prefix string, fn func(Event)) func() {
	return r.hub.Subscribe(prefix, fn)
}

// Listen relays events from the shared Redis channel to local subscribers until ctx is done.
func (r *RedisStore) Listen(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel())
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warn("discarding malformed store event", zap.Error(err))
				continue
			}
			r.hub.Publish(ev)
		}
	}
}

func (r *RedisStore) publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error("encode store event", zap.String("key", ev.Key), zap.Error(err))
		return
	}
	if err := r.client.Publish(ctx, r.channel(), payload).Err(); err != nil {
		r.logger.Warn("publish store event", zap.String("key", ev.Key), zap.Error(err))
	}
}

func decodeHash(key string, values []interface{}) (Record, error) {
	if len(values) != 2 || values[0] == nil || values[1] == nil {
		return Record{}, ErrNotFound
	}
	versionRaw, _ := values[0].(string)
	data, _ := values[1].(string)
	version, err := strconv.ParseInt(versionRaw, 10, 64)
	if err != nil {
		return Record{}, err
	}
	return Record{Key: key, Version: version, Value: []byte(data)}, nil
}
