package model

import "time"

// Metric names which engagement number drives a post's outlier score.
type Metric string

const (
	// MetricViews is the default primary metric.
	MetricViews Metric = "views"
	// MetricLikes is the proxy used by platforms that do not expose view counts.
	MetricLikes Metric = "likes"
)

// Post is one piece of published content, normalized across platforms.
//
// (CreatorID, PlatformPostID) is the natural key; a re-sync updates counters
// and the score in place. Transcript is owned by a separate operation and is
// never touched by sync.
//
// Benchmark is the rounded batch average the score was computed against. It
// is reported on sync results and never persisted.
type Post struct {
	ID              int64     `json:"id"`
	CreatorID       int64     `json:"creatorId"`
	PlatformPostID  string    `json:"platformPostId"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	ViewCount       int64     `json:"viewCount"`
	LikeCount       int64     `json:"likeCount"`
	CommentCount    int64     `json:"commentCount"`
	DurationSeconds *int      `json:"durationSeconds"`
	PublishedDate   string    `json:"publishedDate"` // YYYY-MM-DD, or "" when unknown
	ThumbnailURL    string    `json:"thumbnailUrl"`
	Metric          Metric    `json:"metric"`
	OutlierScore    float64   `json:"outlierScore"`
	Benchmark       int64     `json:"benchmark,omitempty"`
	Transcript      *string   `json:"transcript,omitempty"`
	SyncedAt        time.Time `json:"syncedAt"`
}

// PrimaryMetric returns the engagement value the post is scored on.
func (p Post) PrimaryMetric() int64 {
	if p.Metric == MetricLikes {
		return p.LikeCount
	}
	return p.ViewCount
}

// PostWithCreator is a post joined with the identity fields of its creator,
// used by the outlier feed and single-post lookups.
type PostWithCreator struct {
	Post
	CreatorUsername    string   `json:"creatorUsername"`
	CreatorPlatform    Platform `json:"creatorPlatform"`
	CreatorDisplayName string   `json:"creatorDisplayName"`
}
