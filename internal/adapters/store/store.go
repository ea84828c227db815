// Package store defines the command contract the ranking server needs from a
// backing key-value store.
package store

import (
	"context"
	"math"
	"strconv"
)

// Key types reported by Type.
const (
	TypeNone = "none"
	TypeHash = "hash"
	TypeZSet = "zset"
)

// Field is one hash field with its stored value.
type Field struct {
	Name  string
	Value string
}

// ScoreRange selects a window of a sorted index ordered by score.
type ScoreRange struct {
	Min, Max   float64
	Offset     int64
	Count      int64
	Descending bool
}

// FullRange returns the first count members over all scores.
func FullRange(count int64, descending bool) ScoreRange {
	return ScoreRange{Min: math.Inf(-1), Max: math.Inf(1), Count: count, Descending: descending}
}

// FormatBound renders a score bound the way Redis expects it.
func FormatBound(f float64) string {
	switch {
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsInf(f, 1):
		return "+inf"
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

// Client is a single logical session against the store. Callers serialize
// access; implementations need not be safe for interleaved batches.
type Client interface {
	// Connect (re)establishes the session.
	Connect(ctx context.Context) error
	// Ping reports whether the session is alive.
	Ping(ctx context.Context) error
	Close() error

	Exists(ctx context.Context, key string) (bool, error)
	// HMGet returns one entry per field, a string or nil when the field is missing.
	HMGet(ctx context.Context, key string, fields ...string) ([]any, error)
	Type(ctx context.Context, key string) (string, error)
	HKeys(ctx context.Context, key string) ([]string, error)
	ZRangeByScore(ctx context.Context, index string, r ScoreRange) ([]string, error)

	// Pipelined queues the commands fn issues on the batch, sends them in one
	// round trip and waits for every reply. It returns the first command error.
	Pipelined(ctx context.Context, fn func(Batch)) error
}

// Batch queues write commands. Results are available on the returned Count
// once Pipelined returns.
type Batch interface {
	HSet(key string, fields ...Field) *Count
	HDel(key string, fields ...string) *Count
	Del(key string) *Count
	ZAdd(index, member string, score int64) *Count
	ZRem(index, member string) *Count
}

// Count is the integer reply of a queued command.
type Count struct {
	n   int64
	err error
}

// Set fills the reply. Backends call it after the batch executes.
func (c *Count) Set(n int64, err error) {
	c.n = n
	c.err = err
}

// Val returns the integer reply.
func (c *Count) Val() int64 { return c.n }

// Err returns the command error.
func (c *Count) Err() error { return c.err }
