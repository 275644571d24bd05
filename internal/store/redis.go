package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/masa061580/pubmed-search-assistant/internal/models"
)

// NewRedisClient creates and pings a Redis client with optional password auth.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// RedisConversations stores each history as a Redis list of JSON messages.
// The key's TTL is refreshed on every append, so idle conversations expire
// on their own.
type RedisConversations struct {
	rdb  *redis.Client
	opts Options
}

func NewRedisConversations(rdb *redis.Client, opts Options) *RedisConversations {
	return &RedisConversations{rdb: rdb, opts: opts}
}

func conversationKey(id string) string { return "conversation:" + id }

func (s *RedisConversations) Get(ctx context.Context, id string) ([]models.Message, error) {
	vals, err := s.rdb.LRange(ctx, conversationKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	msgs := make([]models.Message, 0, len(vals))
	for _, v := range vals {
		var m models.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("redis decode message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if s.opts.MaxMessages > 0 {
		// LTRIM may have cut through a tool exchange
		msgs = dropOrphans(msgs)
	}
	return msgs, nil
}

func (s *RedisConversations) Append(ctx context.Context, id string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	vals := make([]interface{}, 0, len(msgs))
	for _, m := range stamp(msgs, time.Now()) {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("redis encode message: %w", err)
		}
		vals = append(vals, b)
	}

	key := conversationKey(id)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, vals...)
		if s.opts.MaxMessages > 0 {
			pipe.LTrim(ctx, key, int64(-s.opts.MaxMessages), -1)
		}
		if s.opts.TTL > 0 {
			pipe.Expire(ctx, key, s.opts.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

func (s *RedisConversations) Evict(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, conversationKey(id)).Err()
}
