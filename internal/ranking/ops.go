package ranking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/rankd/internal/adapters/store"
	"github.com/okian/rankd/internal/domain/model"
	"github.com/okian/rankd/internal/domain/stats"
	"github.com/okian/rankd/pkg/logger"
	"github.com/okian/rankd/pkg/metrics"
)

// Operation names used for logs and metrics.
const (
	opGet    = "get"
	opSet    = "set"
	opUpdate = "update"
	opDelete = "delete"
	opTop    = "top"
)

// getSync reads one record. Absent keys, missing fields and unparsable values
// all yield an invalid record.
func (s *Server) getSync(ctx context.Context, nickname, prefix string) stats.Stats {
	defer observe(opGet, time.Now())

	keys := stats.Keys(prefix)
	rec := stats.Invalid()
	err := s.conn.exec(ctx, func(c store.Client) error {
		ok, err := c.Exists(ctx, nickname)
		if err != nil || !ok {
			return err
		}
		vals, err := c.HMGet(ctx, nickname, keys...)
		if err != nil {
			return err
		}
		rec = s.decode(ctx, nickname, keys, vals)
		return nil
	})
	if err != nil {
		s.readFailed(ctx, opGet, err, logger.String("nickname", nickname), logger.String("prefix", prefix))
		return stats.Invalid()
	}
	return rec
}

// decode builds a record from an HMGET reply. The first missing or malformed
// field invalidates the record.
func (s *Server) decode(ctx context.Context, nickname string, keys []string, vals []any) stats.Stats {
	rec := stats.New()
	attrs := stats.Attributes()
	if len(vals) != len(keys) {
		s.logger.Error(ctx, "unexpected field count",
			logger.String("nickname", nickname),
			logger.Int("want", len(keys)),
			logger.Int("got", len(vals)),
		)
		return stats.Invalid()
	}
	for i, v := range vals {
		switch raw := v.(type) {
		case nil:
			s.logger.Debug(ctx, "field missing", logger.String("nickname", nickname), logger.String("field", keys[i]))
			rec.Invalidate()
			return rec
		case string:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				s.logger.Error(ctx, "field is not an integer",
					logger.String("nickname", nickname),
					logger.String("field", keys[i]),
					logger.Error(err),
				)
				rec.Invalidate()
				return rec
			}
			rec.Set(attrs[i], n)
		default:
			s.logger.Error(ctx, "unexpected field reply",
				logger.String("nickname", nickname),
				logger.String("field", keys[i]),
				logger.String("type", fmt.Sprintf("%T", v)),
			)
			rec.Invalidate()
			return rec
		}
	}
	return rec
}

// setSync overwrites the record and upserts every index in one pipeline.
func (s *Server) setSync(ctx context.Context, nickname string, rec stats.Stats, prefix string) {
	defer observe(opSet, time.Now())

	if err := s.write(ctx, nickname, rec, prefix); err != nil {
		s.writeFailed(ctx, model.Intent{Action: model.ActionSet, Nickname: nickname, Stats: rec, Prefix: prefix}, err)
	}
}

// updateSync merges delta into the stored record. It cannot create a record:
// an invalid read takes the failure path.
func (s *Server) updateSync(ctx context.Context, nickname string, delta stats.Stats, prefix string) {
	defer observe(opUpdate, time.Now())

	intent := model.Intent{Action: model.ActionUpdate, Nickname: nickname, Stats: delta, Prefix: prefix}
	cur := s.getSync(ctx, nickname, prefix)
	if !cur.Valid() {
		s.writeFailed(ctx, intent, ErrRecordUnavailable)
		return
	}
	if err := s.write(ctx, nickname, cur.Merge(delta), prefix); err != nil {
		s.writeFailed(ctx, intent, err)
	}
}

func (s *Server) write(ctx context.Context, nickname string, rec stats.Stats, prefix string) error {
	pairs := rec.Pairs(prefix)
	fields := make([]store.Field, len(pairs))
	for i, p := range pairs {
		fields[i] = store.Field{Name: p.Field, Value: p.Value}
	}
	return s.conn.exec(ctx, func(c store.Client) error {
		return c.Pipelined(ctx, func(b store.Batch) {
			b.HSet(nickname, fields...)
			for i, f := range fields {
				b.ZAdd(f.Name, nickname, rec.At(i))
			}
		})
	})
}

// deleteSync removes the record, or only the fields under prefix when prefix
// is set, and the nickname from every matching index.
func (s *Server) deleteSync(ctx context.Context, nickname, prefix string) {
	defer observe(opDelete, time.Now())

	var removed []string
	err := s.conn.exec(ctx, func(c store.Client) error {
		ok, err := c.Exists(ctx, nickname)
		if err != nil {
			return err
		}
		if !ok {
			return errNoop
		}
		typ, err := c.Type(ctx, nickname)
		if err != nil {
			return err
		}
		if typ != store.TypeHash {
			return fmt.Errorf("%s holds a %s: %w", nickname, typ, store.ErrWrongType)
		}
		fields, err := c.HKeys(ctx, nickname)
		if err != nil {
			return err
		}
		if prefix != "" {
			fields = filterPrefix(fields, prefix)
			if len(fields) == 0 {
				return errNoop
			}
		}

		var primary *store.Count
		err = c.Pipelined(ctx, func(b store.Batch) {
			if prefix != "" {
				primary = b.HDel(nickname, fields...)
			} else {
				primary = b.Del(nickname)
			}
			for _, f := range fields {
				b.ZRem(f, nickname)
			}
		})
		if err != nil {
			return err
		}
		if primary.Val() == 0 {
			return ErrNothingDeleted
		}
		removed = fields
		return nil
	})

	switch {
	case errors.Is(err, errNoop):
		s.logger.Info(ctx, "nothing to delete", logger.String("nickname", nickname), logger.String("prefix", prefix))
	case err != nil:
		s.writeFailed(ctx, model.Intent{Action: model.ActionDelete, Nickname: nickname, Prefix: prefix}, err)
	default:
		s.logger.Debug(ctx, "deleted",
			logger.String("nickname", nickname),
			logger.String("prefix", prefix),
			logger.Int("fields", len(removed)),
		)
	}
}

// filterPrefix keeps the fields that literally start with prefix.
func filterPrefix(fields []string, prefix string) []string {
	out := fields[:0]
	for _, f := range fields {
		if strings.HasPrefix(f, prefix) {
			out = append(out, f)
		}
	}
	return out
}

// topSync returns up to topN nicknames from the prefix+attribute index with
// their full records, in index order. It never touches the backlog.
func (s *Server) topSync(ctx context.Context, topN int, attribute, prefix string, biggestFirst bool) []model.Ranked {
	defer observe(opTop, time.Now())

	index := prefix + attribute
	var members []string
	err := s.conn.exec(ctx, func(c store.Client) error {
		ok, err := c.Exists(ctx, index)
		if err != nil {
			return err
		}
		if !ok {
			return errNoop
		}
		members, err = c.ZRangeByScore(ctx, index, store.FullRange(int64(topN), biggestFirst))
		return err
	})
	if errors.Is(err, errNoop) {
		s.logger.Debug(ctx, "index does not exist", logger.String("index", index))
		return []model.Ranked{}
	}
	if err != nil {
		s.readFailed(ctx, opTop, err, logger.String("index", index))
		return []model.Ranked{}
	}

	out := make([]model.Ranked, 0, len(members))
	for _, m := range members {
		out = append(out, model.Ranked{Nickname: m, Stats: s.getSync(ctx, m, prefix)})
	}
	return out
}

// readFailed logs a read error and checks the session.
func (s *Server) readFailed(ctx context.Context, op string, err error, fields ...logger.Field) {
	metrics.RecordOperationFailure(op)
	metrics.RecordStoreError(op, errorType(err))
	s.logger.Error(ctx, op+" failed", append(fields, logger.Error(err))...)
	s.checkConnection(ctx)
}

// writeFailed queues the intent for replay and checks the session.
func (s *Server) writeFailed(ctx context.Context, in model.Intent, err error) {
	op := string(in.Action)
	metrics.RecordOperationFailure(op)
	metrics.RecordStoreError(op, errorType(err))
	s.logger.Error(ctx, op+" failed",
		logger.String("nickname", in.Nickname),
		logger.String("prefix", in.Prefix),
		logger.Error(err),
	)
	s.backlog.push(ctx, in)
	s.checkConnection(ctx)
}

func (s *Server) checkConnection(ctx context.Context) {
	if !s.conn.isConnected(ctx) {
		s.conn.startReconnectLoop(ctx)
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, store.ErrDisconnected):
		return "disconnected"
	case errors.Is(err, store.ErrWrongType):
		return "wrong_type"
	case errors.Is(err, ErrNothingDeleted):
		return "nothing_deleted"
	case errors.Is(err, ErrRecordUnavailable):
		return "record_unavailable"
	default:
		return "unexpected"
	}
}

func observe(op string, start time.Time) {
	metrics.RecordOperationLatency(op, float64(time.Since(start).Microseconds())/1000)
}
