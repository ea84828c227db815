// Package types contains common types used across the application
package types

import "github.com/okian/rankd/internal/domain/stats"

// Entry represents a leaderboard entry
type Entry struct {
	Rank     int         `json:"rank"`
	Nickname string      `json:"nickname"`
	Value    int64       `json:"value"`
	Stats    stats.Stats `json:"stats"`
}
