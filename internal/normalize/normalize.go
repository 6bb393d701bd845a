// Package normalize maps raw adapter records onto the canonical model.Post.
//
// Post is a pure function: it never fails and never performs I/O. Every
// default (missing counts, empty titles, unknown dates) is filled in here,
// explicitly, so nothing downstream has to guess what a zero value means.
package normalize

import (
	"html"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"

	"github.com/sakif/creator-outliers/internal/adapter"
	"github.com/sakif/creator-outliers/internal/model"
)

const (
	// MaxTitleLength caps titles in runes. Instagram "titles" are whole captions.
	MaxTitleLength = 200
	UntitledTitle  = "Untitled"
	dateLayout     = "2006-01-02"
)

// titlePolicy removes every tag and keeps only text. It is safe for
// concurrent use once built.
var titlePolicy = bluemonday.StrictPolicy()

// Post converts one raw record. The result has no ID, CreatorID, score or
// SyncedAt; those are assigned by the scorer and the store.
func Post(platform model.Platform, raw adapter.RawPost) model.Post {
	metric := model.MetricViews
	if raw.Metric == model.MetricLikes {
		metric = model.MetricLikes
	}

	id := strings.TrimSpace(raw.ID)

	url := strings.TrimSpace(raw.URL)
	if url == "" {
		url = Permalink(platform, id)
	}

	return model.Post{
		PlatformPostID:  id,
		Title:           Title(raw.Title),
		URL:             url,
		ViewCount:       count(raw.Views),
		LikeCount:       count(raw.Likes),
		CommentCount:    count(raw.Comments),
		DurationSeconds: duration(raw.DurationSeconds),
		PublishedDate:   Date(raw.Published),
		ThumbnailURL:    strings.TrimSpace(raw.ThumbnailURL),
		Metric:          metric,
	}
}

// Title strips markup, collapses whitespace and truncates to MaxTitleLength runes.
func Title(s string) string {
	// StrictPolicy escapes the text it keeps ("&" becomes "&amp;"), so undo
	// that before measuring and storing.
	s = html.UnescapeString(titlePolicy.Sanitize(s))
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return UntitledTitle
	}
	if utf8.RuneCountInString(s) > MaxTitleLength {
		runes := []rune(s)
		s = strings.TrimSpace(string(runes[:MaxTitleLength]))
	}
	return s
}

// Date renders any recognised date as YYYY-MM-DD, or "" when the input is
// empty or unparseable. A timestamp with an offset keeps the calendar day of
// that offset; naive timestamps and unix seconds are read as UTC.
func Date(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// Compact YYYYMMDD first: dateparse would read eight digits as a number.
	if len(s) == 8 && isDigits(s) {
		if t, err := time.Parse("20060102", s); err == nil {
			return t.Format(dateLayout)
		}
		return ""
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return ""
	}
	return t.Format(dateLayout)
}

// Permalink builds the canonical post URL from a platform id. Instagram
// Graph media ids are not shortcodes, so no URL can be derived for them.
func Permalink(platform model.Platform, id string) string {
	if id == "" {
		return ""
	}
	switch platform {
	case model.PlatformYouTube:
		return "https://www.youtube.com/watch?v=" + id
	default:
		return ""
	}
}

func count(v *int64) int64 {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

func duration(v *float64) *int {
	if v == nil || *v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	d := int(math.Round(*v))
	return &d
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
