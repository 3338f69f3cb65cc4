package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceStore mirrors online flags into Redis so sibling HTTP services can
// answer presence questions without a socket. The in-process registry stays
// the routing source of truth; this is a read-only convenience for others.
type PresenceStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewPresenceStore(client *redis.Client, prefix string, ttl time.Duration) *PresenceStore {
	return &PresenceStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *PresenceStore) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

func (s *PresenceStore) SetOnline(ctx context.Context, userID string, online bool) error {
	if !online {
		return s.client.Del(ctx, s.key(userID)).Err()
	}
	return s.client.Set(ctx, s.key(userID), time.Now().Unix(), s.ttl).Err()
}

// IsOnline reads the mirrored flag. A missing key means offline.
func (s *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	_, err := s.client.Get(ctx, s.key(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
