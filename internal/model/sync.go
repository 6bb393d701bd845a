package model

import (
	"time"

	"github.com/sakif/creator-outliers/internal/apperror"
)

// SyncResult describes the outcome of syncing one creator.
//
// OK is false when the adapter or the store failed; ErrorKind and Error then
// say why. A failed sync never leaves partial rows behind.
type SyncResult struct {
	RunID         string        `json:"runId"`
	CreatorID     int64         `json:"creatorId"`
	Platform      Platform      `json:"platform"`
	Handle        string        `json:"handle"`
	OK            bool          `json:"ok"`
	PostsUpserted int           `json:"postsUpserted"`
	Skipped       int           `json:"skipped"`
	Benchmark     int64         `json:"benchmark"`
	ErrorKind     apperror.Kind `json:"errorKind,omitempty"`
	Error         string        `json:"error,omitempty"`
	StartedAt     time.Time     `json:"startedAt"`
	Duration      time.Duration `json:"duration"`
}

// SyncFailure is the compact (creator, kind) pair reported for a failed creator.
type SyncFailure struct {
	CreatorID int64         `json:"creatorId"`
	Kind      apperror.Kind `json:"kind"`
}

// SyncReport aggregates one full watchlist sync. Results keep watchlist order.
type SyncReport struct {
	RunID      string        `json:"runId"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	Results    []SyncResult  `json:"results"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	PostCounts map[int64]int `json:"postCounts"`
	Failures   []SyncFailure `json:"failures"`
}
