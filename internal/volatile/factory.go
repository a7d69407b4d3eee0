package volatile

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fractalcore/agentmem/internal/logging"
)

// NewStoreFromURL parses volatile_url as a Redis connection string and
// returns a ready RedisStore, mirroring graphstore.NewVectorIndex's
// config-driven factory pattern.
func NewStoreFromURL(volatileURL string, log *logging.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(volatileURL)
	if err != nil {
		return nil, fmt.Errorf("parse volatile_url %q: %w", volatileURL, err)
	}
	client := redis.NewClient(opts)
	return NewRedisStore(client, log), nil
}
