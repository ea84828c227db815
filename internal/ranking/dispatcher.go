package ranking

import (
	"context"

	"github.com/okian/rankd/internal/domain/model"
	"github.com/okian/rankd/internal/domain/stats"
	"github.com/okian/rankd/internal/tasks"
	"github.com/okian/rankd/pkg/metrics"
)

// Rejection reasons reported to metrics.
const (
	reasonDisabled = "disabled"
	reasonNickname = "empty_nickname"
	reasonReserved = "reserved_nickname"
	reasonInvalid  = "invalid_record"
	reasonCallback = "missing_callback"
	reasonLimit    = "invalid_limit"
)

// SetRanking overwrites the record of nickname under prefix.
func (s *Server) SetRanking(ctx context.Context, nickname string, rec stats.Stats, prefix string) bool {
	if !s.admit(ctx, opSet, nickname, prefix) {
		return false
	}
	if !rec.Valid() {
		return reject(opSet, reasonInvalid)
	}
	s.spawn(ctx, opSet, func(ctx context.Context) { s.setSync(ctx, nickname, rec, prefix) })
	return true
}

// UpdateRanking adds delta to the existing record of nickname under prefix.
func (s *Server) UpdateRanking(ctx context.Context, nickname string, delta stats.Stats, prefix string) bool {
	if !s.admit(ctx, opUpdate, nickname, prefix) {
		return false
	}
	s.spawn(ctx, opUpdate, func(ctx context.Context) { s.updateSync(ctx, nickname, delta, prefix) })
	return true
}

// DeleteRanking removes the record of nickname, or only its prefix fields.
func (s *Server) DeleteRanking(ctx context.Context, nickname, prefix string) bool {
	if !s.admit(ctx, opDelete, nickname, prefix) {
		return false
	}
	s.spawn(ctx, opDelete, func(ctx context.Context) { s.deleteSync(ctx, nickname, prefix) })
	return true
}

// GetRanking reads the record of nickname and hands it to onResult.
func (s *Server) GetRanking(ctx context.Context, nickname, prefix string, onResult func(stats.Stats)) bool {
	if !s.admit(ctx, opGet, nickname, prefix) {
		return false
	}
	if onResult == nil {
		return reject(opGet, reasonCallback)
	}
	s.spawn(ctx, opGet, func(ctx context.Context) { onResult(s.getSync(ctx, nickname, prefix)) })
	return true
}

// GetTopRanking reads the first topN entries of the prefix+attribute index,
// largest values first when biggestFirst is set, and hands them to onResult.
// An index that does not exist, including one for an unknown attribute,
// yields an empty result.
func (s *Server) GetTopRanking(ctx context.Context, topN int, attribute, prefix string, biggestFirst bool, onResult func([]model.Ranked)) bool {
	s.tracker.Sweep(ctx)
	switch {
	case !s.enabled():
		return reject(opTop, reasonDisabled)
	case onResult == nil:
		return reject(opTop, reasonCallback)
	case topN < 1:
		return reject(opTop, reasonLimit)
	}
	s.spawn(ctx, opTop, func(ctx context.Context) {
		onResult(s.topSync(ctx, topN, attribute, prefix, biggestFirst))
	})
	return true
}

// AwaitFutures blocks until every tracked task, the reconnect loop included,
// has finished.
func (s *Server) AwaitFutures() {
	s.tracker.Wait(context.Background())
}

// admit reaps finished tasks and runs the checks shared by every nickname
// operation.
func (s *Server) admit(ctx context.Context, op, nickname, prefix string) bool {
	s.tracker.Sweep(ctx)
	switch {
	case !s.enabled():
		return reject(op, reasonDisabled)
	case nickname == "":
		return reject(op, reasonNickname)
	case stats.IsReserved(nickname, prefix):
		return reject(op, reasonReserved)
	}
	return true
}

func (s *Server) spawn(ctx context.Context, op string, fn func(context.Context)) {
	metrics.RecordOperationSubmitted(op)
	s.tracker.Go(ctx, op, tasks.KindOperation, fn)
}

func reject(op, reason string) bool {
	metrics.RecordOperationRejected(op, reason)
	return false
}

// replay resubmits a backlog entry through the public surface.
func (s *Server) replay(ctx context.Context, in model.Intent) bool {
	switch in.Action {
	case model.ActionSet:
		return s.SetRanking(ctx, in.Nickname, in.Stats, in.Prefix)
	case model.ActionUpdate:
		return s.UpdateRanking(ctx, in.Nickname, in.Stats, in.Prefix)
	case model.ActionDelete:
		return s.DeleteRanking(ctx, in.Nickname, in.Prefix)
	default:
		return false
	}
}
