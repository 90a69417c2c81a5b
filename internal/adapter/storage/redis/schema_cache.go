package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SchemaCache implements ports.SchemaCache using Redis. It holds serialized
// provider schemas (Notion database properties, Airtable table fields) so
// consecutive dispatches skip the schema fetch.
type SchemaCache struct {
	client *goredis.Client
	prefix string
}

// NewSchemaCache creates a new Redis-backed schema cache.
func NewSchemaCache(client *goredis.Client) *SchemaCache {
	return &SchemaCache{
		client: client,
		prefix: "schema:",
	}
}

// Get retrieves a cached schema by key.
// Returns nil, nil if the key does not exist.
func (c *SchemaCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis schema get: %w", err)
	}
	return val, nil
}

// Set stores a schema in the cache with TTL.
func (c *SchemaCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis schema set: %w", err)
	}
	return nil
}
