// Package model contains domain models passed between layers.
package model

import "github.com/okian/rankd/internal/domain/stats"

// Action is the kind of write a backlog entry replays.
type Action string

// Write actions.
const (
	ActionSet    Action = "set"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Ranked is one row of a top-K query: a nickname and its hydrated record.
type Ranked struct {
	Nickname string
	Stats    stats.Stats
}

// Intent is a failed write waiting for replay.
type Intent struct {
	Action   Action
	Nickname string
	Stats    stats.Stats // snapshot; zero for deletes
	Prefix   string
}
