package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type QueueConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration

	Key           string
	DeadLetterKey string
}

// QueueClient is the Redis-list transport the mandate notification feed lands
// on. Records are raw JSON bodies; batch pop with head re-queue gives the
// consumer redelivery semantics.
type QueueClient struct {
	raw *goredis.Client
	cfg QueueConfig
}

func NewQueueClient(cfg QueueConfig) (*QueueClient, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("queue: ping: %w", err)
	}

	return &QueueClient{raw: rdb, cfg: cfg}, nil
}

func (c *QueueClient) Close() {
	if c.raw == nil {
		return
	}
	_ = c.raw.Close()
}

// Push appends record bodies to the tail of the queue.
func (c *QueueClient) Push(ctx context.Context, bodies ...string) error {
	args := make([]any, len(bodies))
	for i, b := range bodies {
		args[i] = b
	}
	return c.raw.RPush(ctx, c.cfg.Key, args...).Err()
}

// PopBatch takes up to n records from the head of the queue. An empty queue
// returns no records and no error.
func (c *QueueClient) PopBatch(ctx context.Context, n int) ([]string, error) {
	bodies, err := c.raw.LPopCount(ctx, c.cfg.Key, n).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: pop: %w", err)
	}
	return bodies, nil
}

// Requeue puts records back at the head of the queue in their original order,
// so a failed batch is redelivered before newer records.
func (c *QueueClient) Requeue(ctx context.Context, bodies []string) error {
	args := make([]any, len(bodies))
	for i := range bodies {
		// LPush reverses; feed it back-to-front to preserve order
		args[i] = bodies[len(bodies)-1-i]
	}
	return c.raw.LPush(ctx, c.cfg.Key, args...).Err()
}

// DeadLetter moves an unprocessable record to the dead-letter list.
func (c *QueueClient) DeadLetter(ctx context.Context, body string) error {
	return c.raw.RPush(ctx, c.cfg.DeadLetterKey, body).Err()
}

// Len reports the number of pending records.
func (c *QueueClient) Len(ctx context.Context) (int64, error) {
	return c.raw.LLen(ctx, c.cfg.Key).Result()
}
