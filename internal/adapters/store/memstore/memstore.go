// Package memstore is an in-process implementation of the store contract:
// hashes plus treap-backed sorted sets sharing one keyspace. It can simulate
// an outage so the reconnect path can be exercised without a Redis server.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/rankd/internal/adapters/store"
)

// Store holds the whole keyspace in memory.
type Store struct {
	mu        sync.Mutex
	hashes    map[string]map[string]string
	zsets     map[string]*sortedSet
	available bool
	connected bool
	latency   time.Duration
}

var _ store.Client = (*Store)(nil)

// New constructs an empty store. The store starts available but not connected.
func New(opts ...Option) *Store {
	s := &Store{
		hashes:    make(map[string]map[string]string),
		zsets:     make(map[string]*sortedSet),
		available: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetAvailable toggles the simulated server. Taking it down drops the session,
// so Connect has to succeed again before commands are served.
func (s *Store) SetAvailable(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = up
	if !up {
		s.connected = false
	}
}

// Connect implements store.Client.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roundTrip()
	if !s.available {
		return fmt.Errorf("connect: %w", store.ErrDisconnected)
	}
	s.connected = true
	return nil
}

// Ping implements store.Client.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive()
}

// Close implements store.Client. Data survives a close.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

// Exists implements store.Client.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.command(); err != nil {
		return false, err
	}
	return s.typeOf(key) != store.TypeNone, nil
}

// Type implements store.Client.
func (s *Store) Type(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.command(); err != nil {
		return "", err
	}
	return s.typeOf(key), nil
}

// HMGet implements store.Client.
func (s *Store) HMGet(ctx context.Context, key string, fields ...string) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.command(); err != nil {
		return nil, err
	}
	if err := s.expect(key, store.TypeHash); err != nil {
		return nil, err
	}
	h := s.hashes[key]
	out := make([]any, len(fields))
	for i, f := range fields {
		if v, ok := h[f]; ok {
			out[i] = v
		}
	}
	return out, nil
}

// HKeys implements store.Client. Field names come back sorted.
func (s *Store) HKeys(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.command(); err != nil {
		return nil, err
	}
	if err := s.expect(key, store.TypeHash); err != nil {
		return nil, err
	}
	h := s.hashes[key]
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// ZRangeByScore implements store.Client.
func (s *Store) ZRangeByScore(ctx context.Context, index string, r store.ScoreRange) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.command(); err != nil {
		return nil, err
	}
	if err := s.expect(index, store.TypeZSet); err != nil {
		return nil, err
	}
	z, ok := s.zsets[index]
	if !ok {
		return []string{}, nil
	}
	return z.rangeByScore(r.Min, r.Max, r.Offset, r.Count, r.Descending), nil
}

// Pipelined implements store.Client. Queued commands run in order under one
// lock; a failing command does not stop the ones after it.
func (s *Store) Pipelined(ctx context.Context, fn func(store.Batch)) error {
	b := &batch{}
	fn(b)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.command(); err != nil {
		for _, c := range b.cmds {
			c.count.Set(0, err)
		}
		return err
	}
	var first error
	for _, c := range b.cmds {
		n, err := c.run(s)
		c.count.Set(n, err)
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Len returns the number of keys. Intended for tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hashes) + len(s.zsets)
}

// Score returns the score of member in index. Intended for tests.
func (s *Store) Score(index, member string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.zsets[index]
	if !ok {
		return 0, false
	}
	v, ok := z.scores[member]
	return v, ok
}

func (s *Store) roundTrip() {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
}

func (s *Store) alive() error {
	if !s.available || !s.connected {
		return store.ErrDisconnected
	}
	return nil
}

// command simulates one round trip. Callers hold mu.
func (s *Store) command() error {
	s.roundTrip()
	return s.alive()
}

func (s *Store) typeOf(key string) string {
	if _, ok := s.hashes[key]; ok {
		return store.TypeHash
	}
	if _, ok := s.zsets[key]; ok {
		return store.TypeZSet
	}
	return store.TypeNone
}

// expect fails with ErrWrongType when key exists with another type.
func (s *Store) expect(key, typ string) error {
	if t := s.typeOf(key); t != store.TypeNone && t != typ {
		return fmt.Errorf("%s is a %s: %w", key, t, store.ErrWrongType)
	}
	return nil
}

func (s *Store) hset(key string, fields []store.Field) (int64, error) {
	if err := s.expect(key, store.TypeHash); err != nil {
		return 0, err
	}
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	var added int64
	for _, f := range fields {
		if _, ok := h[f.Name]; !ok {
			added++
		}
		h[f.Name] = f.Value
	}
	return added, nil
}

func (s *Store) hdel(key string, fields []string) (int64, error) {
	if err := s.expect(key, store.TypeHash); err != nil {
		return 0, err
	}
	h, ok := s.hashes[key]
	if !ok {
		return 0, nil
	}
	var removed int64
	for _, f := range fields {
		if _, ok := h[f]; ok {
			delete(h, f)
			removed++
		}
	}
	if len(h) == 0 {
		delete(s.hashes, key)
	}
	return removed, nil
}

func (s *Store) del(key string) (int64, error) {
	switch s.typeOf(key) {
	case store.TypeHash:
		delete(s.hashes, key)
	case store.TypeZSet:
		delete(s.zsets, key)
	default:
		return 0, nil
	}
	return 1, nil
}

func (s *Store) zadd(index, member string, score int64) (int64, error) {
	if err := s.expect(index, store.TypeZSet); err != nil {
		return 0, err
	}
	z, ok := s.zsets[index]
	if !ok {
		z = newSortedSet()
		s.zsets[index] = z
	}
	return z.add(member, float64(score)), nil
}

func (s *Store) zrem(index, member string) (int64, error) {
	if err := s.expect(index, store.TypeZSet); err != nil {
		return 0, err
	}
	z, ok := s.zsets[index]
	if !ok {
		return 0, nil
	}
	n := z.rem(member)
	if z.len() == 0 {
		delete(s.zsets, index)
	}
	return n, nil
}

type queued struct {
	run   func(*Store) (int64, error)
	count *store.Count
}

type batch struct {
	cmds []queued
}

func (b *batch) push(run func(*Store) (int64, error)) *store.Count {
	c := &store.Count{}
	b.cmds = append(b.cmds, queued{run: run, count: c})
	return c
}

func (b *batch) HSet(key string, fields ...store.Field) *store.Count {
	return b.push(func(s *Store) (int64, error) { return s.hset(key, fields) })
}

func (b *batch) HDel(key string, fields ...string) *store.Count {
	return b.push(func(s *Store) (int64, error) { return s.hdel(key, fields) })
}

func (b *batch) Del(key string) *store.Count {
	return b.push(func(s *Store) (int64, error) { return s.del(key) })
}

func (b *batch) ZAdd(index, member string, score int64) *store.Count {
	return b.push(func(s *Store) (int64, error) { return s.zadd(index, member, score) })
}

func (b *batch) ZRem(index, member string) *store.Count {
	return b.push(func(s *Store) (int64, error) { return s.zrem(index, member) })
}
