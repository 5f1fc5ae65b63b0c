package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "aqstn:nodes"

// pruneScript removes ids from the set KEYS[1] whose record KEYS[i+1] is gone.
// EXISTS and SREM run atomically.
var pruneScript = redis.NewScript(`
local removed = 0
for i, id in ipairs(ARGV) do
  if redis.call("EXISTS", KEYS[i + 1]) == 0 then
    removed = removed + redis.call("SREM", KEYS[1], id)
  end
end
return removed
`)

// RedisConfig mirrors the redis section of the node configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// RedisStore keeps each node as a JSON string under <prefix>:<id> with a TTL
// and tracks ids in the set <prefix>.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings redis.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStoreWithClient(client, DefaultKeyPrefix), nil
}

// NewRedisStoreWithClient wraps an existing client. An empty prefix means
// DefaultKeyPrefix.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) nodeKey(id string) string {
	return s.prefix + ":" + id
}

// Put stores node for ttl and adds its id to the member set.
func (s *RedisStore) Put(ctx context.Context, node Node, ttl time.Duration) error {
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to encode node %s: %w", node.ID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.nodeKey(node.ID), data, ttl)
		pipe.SAdd(ctx, s.prefix, node.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store node %s: %w", node.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Node, error) {
	data, err := s.client.Get(ctx, s.nodeKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Node{}, ErrNodeNotFound
	}
	if err != nil {
		return Node{}, fmt.Errorf("failed to read node %s: %w", id, err)
	}
	return decodeNode(data)
}

// List returns live nodes and drops set members whose record expired.
func (s *RedisStore) List(ctx context.Context) ([]Node, error) {
	ids, err := s.client.SMembers(ctx, s.prefix).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	if len(ids) == 0 {
		return []Node{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.nodeKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}

	nodes := make([]Node, 0, len(values))
	var missing []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		node, err := decodeNode([]byte(raw))
		if err != nil {
			continue
		}
		nodes = append(nodes, node)
	}

	if len(missing) > 0 {
		if err := s.prune(ctx, missing); err != nil {
			return nil, err
		}
	}

	sortNodes(nodes)
	return nodes, nil
}

func (s *RedisStore) prune(ctx context.Context, ids []string) error {
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, s.prefix)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		keys = append(keys, s.nodeKey(id))
		args[i] = id
	}
	if err := pruneScript.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("failed to prune expired nodes: %w", err)
	}
	return nil
}

// Delete removes the node record and its set membership.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.nodeKey(id))
		pipe.SRem(ctx, s.prefix, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete node %s: %w", id, err)
	}
	return nil
}

// HealthCheck pings redis.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeNode(data []byte) (Node, error) {
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return Node{}, fmt.Errorf("failed to decode node: %w", err)
	}
	return node, nil
}
