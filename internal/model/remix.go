package model

import "time"

// Remix is one generated rewrite of a post's transcript. Remixes are
// append-only: every generation adds a row, nothing is ever updated.
type Remix struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"postId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
