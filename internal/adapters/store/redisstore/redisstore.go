// Package redisstore implements the store contract on a Redis server through
// go-redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/rankd/internal/adapters/store"
)

// Options configures the Redis session.
type Options struct {
	Host     string
	Port     int
	Password string
	DB       int
	// Timeout bounds dialing and every command read/write.
	Timeout time.Duration
}

// Addr returns host:port.
func (o Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Client is a store.Client backed by a go-redis client.
type Client struct {
	opts *redis.Options
	rdb  *redis.Client
}

var _ store.Client = (*Client)(nil)

// New builds a client without dialing. Connect opens the session.
func New(o Options) *Client {
	return &Client{opts: &redis.Options{
		Addr:         o.Addr(),
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.Timeout,
		ReadTimeout:  o.Timeout,
		WriteTimeout: o.Timeout,
		// The ranking server owns retries through its reconnect loop.
		MaxRetries: -1,
	}}
}

// Connect implements store.Client.
func (c *Client) Connect(ctx context.Context) error {
	if c.rdb == nil {
		c.rdb = redis.NewClient(c.opts)
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect %s: %w", c.opts.Addr, classify(err))
	}
	return nil
}

// Ping implements store.Client.
func (c *Client) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return store.ErrDisconnected
	}
	return classify(c.rdb.Ping(ctx).Err())
}

// Close implements store.Client.
func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	err := c.rdb.Close()
	c.rdb = nil
	return err
}

// Exists implements store.Client.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	if c.rdb == nil {
		return false, store.ErrDisconnected
	}
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, classify(err))
	}
	return n > 0, nil
}

// HMGet implements store.Client.
func (c *Client) HMGet(ctx context.Context, key string, fields ...string) ([]any, error) {
	if c.rdb == nil {
		return nil, store.ErrDisconnected
	}
	vals, err := c.rdb.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget %s: %w", key, classify(err))
	}
	return vals, nil
}

// Type implements store.Client.
func (c *Client) Type(ctx context.Context, key string) (string, error) {
	if c.rdb == nil {
		return "", store.ErrDisconnected
	}
	typ, err := c.rdb.Type(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("type %s: %w", key, classify(err))
	}
	return typ, nil
}

// HKeys implements store.Client.
func (c *Client) HKeys(ctx context.Context, key string) ([]string, error) {
	if c.rdb == nil {
		return nil, store.ErrDisconnected
	}
	keys, err := c.rdb.HKeys(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hkeys %s: %w", key, classify(err))
	}
	return keys, nil
}

// ZRangeByScore implements store.Client with ZRANGEBYSCORE or ZREVRANGEBYSCORE.
func (c *Client) ZRangeByScore(ctx context.Context, index string, r store.ScoreRange) ([]string, error) {
	if c.rdb == nil {
		return nil, store.ErrDisconnected
	}
	by := &redis.ZRangeBy{
		Min:    store.FormatBound(r.Min),
		Max:    store.FormatBound(r.Max),
		Offset: r.Offset,
		Count:  r.Count,
	}
	var cmd *redis.StringSliceCmd
	if r.Descending {
		cmd = c.rdb.ZRevRangeByScore(ctx, index, by)
	} else {
		cmd = c.rdb.ZRangeByScore(ctx, index, by)
	}
	members, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore %s: %w", index, classify(err))
	}
	return members, nil
}

// Pipelined implements store.Client.
func (c *Client) Pipelined(ctx context.Context, fn func(store.Batch)) error {
	if c.rdb == nil {
		return store.ErrDisconnected
	}
	var b *batch
	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		b = &batch{ctx: ctx, pipe: p}
		fn(b)
		return nil
	})
	for _, q := range b.cmds {
		n, cerr := q.cmd.Result()
		q.count.Set(n, classify(cerr))
	}
	if err != nil {
		return fmt.Errorf("pipeline: %w", classify(err))
	}
	return nil
}

type queued struct {
	cmd   *redis.IntCmd
	count *store.Count
}

type batch struct {
	ctx  context.Context
	pipe redis.Pipeliner
	cmds []queued
}

func (b *batch) track(cmd *redis.IntCmd) *store.Count {
	c := &store.Count{}
	b.cmds = append(b.cmds, queued{cmd: cmd, count: c})
	return c
}

func (b *batch) HSet(key string, fields ...store.Field) *store.Count {
	values := make([]any, 0, 2*len(fields))
	for _, f := range fields {
		values = append(values, f.Name, f.Value)
	}
	return b.track(b.pipe.HSet(b.ctx, key, values...))
}

func (b *batch) HDel(key string, fields ...string) *store.Count {
	return b.track(b.pipe.HDel(b.ctx, key, fields...))
}

func (b *batch) Del(key string) *store.Count {
	return b.track(b.pipe.Del(b.ctx, key))
}

func (b *batch) ZAdd(index, member string, score int64) *store.Count {
	return b.track(b.pipe.ZAdd(b.ctx, index, redis.Z{Score: float64(score), Member: member}))
}

func (b *batch) ZRem(index, member string) *store.Count {
	return b.track(b.pipe.ZRem(b.ctx, index, member))
}

// classify maps go-redis errors onto the store sentinels. Server replies are
// logical errors; everything else means the session is gone.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rerr redis.Error
	if errors.As(err, &rerr) && !errors.Is(err, redis.ErrClosed) {
		if strings.HasPrefix(rerr.Error(), "WRONGTYPE") {
			return fmt.Errorf("%w: %w", store.ErrWrongType, err)
		}
		return fmt.Errorf("%w: %w", store.ErrUnexpectedReply, err)
	}
	return fmt.Errorf("%w: %w", store.ErrDisconnected, err)
}
