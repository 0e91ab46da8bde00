package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/NordCoder/Reelpass/internal/domain/user"
	"github.com/redis/go-redis/v9"
)

var _ user.Cache = (*ProfileCache)(nil)

const profileKeyPrefix = "user_profile:"

// ProfileCache stores public user profiles as JSON. The password hash is
// excluded by the User json tags and never reaches redis.
type ProfileCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewProfileCache(client redis.Cmdable, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProfileCache{client: client, ttl: ttl}
}

func profileKey(id int64) string { return profileKeyPrefix + strconv.FormatInt(id, 10) }

func (c *ProfileCache) Get(ctx context.Context, id int64) (*user.User, error) {
	raw, err := c.client.Get(ctx, profileKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("profile cache get: %w", err)
	}
	var u user.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("profile cache decode: %w", err)
	}
	return &u, nil
}

func (c *ProfileCache) Set(ctx context.Context, u *user.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("profile cache encode: %w", err)
	}
	if err := c.client.Set(ctx, profileKey(u.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("profile cache set: %w", err)
	}
	return nil
}

func (c *ProfileCache) Del(ctx context.Context, id int64) error {
	if err := c.client.Del(ctx, profileKey(id)).Err(); err != nil {
		return fmt.Errorf("profile cache del: %w", err)
	}
	return nil
}
