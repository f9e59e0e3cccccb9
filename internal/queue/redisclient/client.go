package redisclient

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// readyList is the nudge channel between producers and workers: job ids
// are LPUSHed after the postgres row commits, and workers BRPOP with a
// timeout before falling back to polling.
const readyList = "jobs:ready"

type Client struct {
	redisdb *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) *Client {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  -1, // BRPOP manages its own deadline
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.redisdb.Close()
}

// Nudge signals that a job is ready to run.
func (c *Client) Nudge(ctx context.Context, jobID string) error {
	return c.redisdb.LPush(ctx, readyList, jobID).Err()
}

// WaitForNudge blocks up to timeout for a ready signal. Returns
// ("", nil) on timeout, which callers treat as "go poll".
func (c *Client) WaitForNudge(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := c.redisdb.BRPop(ctx, timeout, readyList).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}

	// BRPOP returns [key, value]
	if len(res) != 2 {
		return "", nil
	}
	return res[1], nil
}
