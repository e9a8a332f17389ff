package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bikemetro/models"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	Redis redis.Cmdable
	Keys  Keys
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{Redis: client, Keys: NewKeys(prefix)}
}

func (s *RedisStore) Load(ctx context.Context) (Session, error) {
	values, err := s.Redis.MGet(ctx, s.Keys.All()...).Result()
	if err != nil {
		return Session{}, fmt.Errorf("session.Load: MGet: %w", err)
	}

	var sess Session
	sess.AccessToken = stringValue(values, 0)
	sess.RefreshToken = stringValue(values, 1)

	if raw := stringValue(values, 2); raw != "" {
		var user models.Profile
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return Session{}, fmt.Errorf("session.Load: json.Unmarshal: %w", err)
		}
		sess.User = &user
	}

	return sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	user := ""
	if sess.User != nil {
		raw, err := json.Marshal(sess.User)
		if err != nil {
			return fmt.Errorf("session.Save: json.Marshal: %w", err)
		}
		user = string(raw)
	}

	err := s.Redis.MSet(ctx,
		s.Keys.Token, sess.AccessToken,
		s.Keys.Refresh, sess.RefreshToken,
		s.Keys.User, user,
	).Err()
	if err != nil {
		return fmt.Errorf("session.Save: MSet: %w", err)
	}
	return nil
}

func (s *RedisStore) SetAccessToken(ctx context.Context, token string) error {
	if err := s.Redis.Set(ctx, s.Keys.Token, token, 0).Err(); err != nil {
		return fmt.Errorf("session.SetAccessToken: %w", err)
	}
	return nil
}

func (s *RedisStore) RefreshToken(ctx context.Context) (string, error) {
	token, err := s.Redis.Get(ctx, s.Keys.Refresh).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session.RefreshToken: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.Redis.Del(ctx, s.Keys.All()...).Err(); err != nil {
		return fmt.Errorf("session.Clear: %w", err)
	}
	return nil
}

func stringValue(values []any, i int) string {
	if i >= len(values) {
		return ""
	}
	if v, ok := values[i].(string); ok {
		return v
	}
	return ""
}
