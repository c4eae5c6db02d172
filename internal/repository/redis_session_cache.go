package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/waterbar/internal/model"
)

// RedisSessionCache はSessionRepositoryの前段に置くRedisキャッシュ。
// Redisの障害時はログを出して下位リポジトリにフォールバックする。
type RedisSessionCache struct {
	next   SessionRepository
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisSessionCache はRedisSessionCacheを生成する。
func NewRedisSessionCache(next SessionRepository, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisSessionCache {
	return &RedisSessionCache{next: next, client: client, ttl: ttl, logger: logger}
}

// NewRedisClient はREDIS_URLからクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func sessionKey(id string) string         { return "session:" + id }
func userSessionsKey(userID string) string { return "user_sessions:" + userID }

// Create はセッションを保存し、キャッシュにも書き込む。
func (c *RedisSessionCache) Create(ctx context.Context, session *model.Session) error {
	if err := c.next.Create(ctx, session); err != nil {
		return err
	}
	c.store(ctx, session)
	return nil
}

// FindByID はキャッシュを優先してセッションを取得する。期限切れの場合はnilを返す。
func (c *RedisSessionCache) FindByID(ctx context.Context, id string) (*model.Session, error) {
	raw, err := c.client.Get(ctx, sessionKey(id)).Bytes()
	switch {
	case err == nil:
		var s model.Session
		if jsonErr := json.Unmarshal(raw, &s); jsonErr == nil {
			if time.Now().Before(s.ExpiresAt) {
				return &s, nil
			}
			c.evict(ctx, id)
			return nil, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("session cache read failed", slog.String("error", err.Error()))
	}

	session, err := c.next.FindByID(ctx, id)
	if err != nil || session == nil {
		return session, err
	}
	c.store(ctx, session)
	return session, nil
}

// DeleteByID はセッションを削除し、キャッシュからも取り除く。
func (c *RedisSessionCache) DeleteByID(ctx context.Context, id string) error {
	if err := c.next.DeleteByID(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

// DeleteByUserID はユーザーの全セッションを削除し、キャッシュからも取り除く。
func (c *RedisSessionCache) DeleteByUserID(ctx context.Context, userID string) error {
	if err := c.next.DeleteByUserID(ctx, userID); err != nil {
		return err
	}
	ids, err := c.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		c.logger.Warn("session cache index read failed", slog.String("error", err.Error()))
		return nil
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, userSessionsKey(userID))
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("session cache delete failed", slog.String("error", err.Error()))
	}
	return nil
}

// store はセッションの残り有効期間とttlの短い方でキャッシュする。
func (c *RedisSessionCache) store(ctx context.Context, s *model.Session) {
	ttl := c.ttl
	if remaining := time.Until(s.ExpiresAt); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	_, err = c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(s.ID), raw, ttl)
		p.SAdd(ctx, userSessionsKey(s.UserID), s.ID)
		p.Expire(ctx, userSessionsKey(s.UserID), c.ttl)
		return nil
	})
	if err != nil {
		c.logger.Warn("session cache write failed", slog.String("error", err.Error()))
	}
}

func (c *RedisSessionCache) evict(ctx context.Context, id string) {
	if err := c.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		c.logger.Warn("session cache delete failed", slog.String("error", err.Error()))
	}
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionCache)(nil)
