package store

import (
    "context"
    "fmt"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// ResultStore keeps finished extraction payloads until they are downloaded.
type ResultStore struct {
    client *redis.Client
    ttl    time.Duration
}

func NewResultStore(redisURL string, ttl time.Duration) (*ResultStore, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, err }
    c := redis.NewClient(opt)
    if err := c.Ping(context.Background()).Err(); err != nil { return nil, err }
    if ttl <= 0 { ttl = 7 * 24 * time.Hour }
    return &ResultStore{client: c, ttl: ttl}, nil
}

func (s *ResultStore) Close() error { return s.client.Close() }

func (s *ResultStore) key(jobID string) string { return fmt.Sprintf("job:%s:result", jobID) }

// Save stores the serialized result with its content type.
func (s *ResultStore) Save(ctx context.Context, jobID string, payload []byte, contentType string) error {
    key := s.key(jobID)
    pipe := s.client.TxPipeline()
    pipe.HSet(ctx, key, map[string]interface{}{
        "payload":      string(payload),
        "content_type": contentType,
    })
    pipe.Expire(ctx, key, s.ttl)
    _, err := pipe.Exec(ctx)
    return err
}

// Get returns the payload and content type, or found=false when absent.
func (s *ResultStore) Get(ctx context.Context, jobID string) ([]byte, string, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
    if err != nil { return nil, "", false, err }
    if len(res) == 0 { return nil, "", false, nil }
    return []byte(res["payload"]), res["content_type"], true, nil
}
