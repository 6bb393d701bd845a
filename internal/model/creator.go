// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data. Go favours composition over
// inheritance, so read models such as CreatorSummary embed the base struct.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies the content platform a creator publishes on.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
)

// Platforms lists every platform the engine knows how to sync.
var Platforms = []Platform{PlatformYouTube, PlatformInstagram}

// ParsePlatform accepts any casing ("YouTube", " instagram ") and returns
// the canonical Platform value.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported platform %q", s)
}

// Creator is one tracked identity on one platform.
//
// (Platform, Username) is the natural key. Username is always stored lower-cased
// without a leading "@"; see NormalizeUsername.
//
// WHY LastSyncedAt *time.Time?
// A freshly added creator has never been synced. A nil pointer serializes as
// JSON null, which is clearer to API consumers than the zero time 0001-01-01.
type Creator struct {
	ID           int64      `json:"id"`
	Platform     Platform   `json:"platform"`
	Username     string     `json:"username"`
	CanonicalURL string     `json:"canonicalUrl"`
	DisplayName  string     `json:"displayName"`
	AddedAt      time.Time  `json:"addedAt"`
	LastSyncedAt *time.Time `json:"lastSyncedAt"`
}

// CreatorSummary is the watchlist row: a creator plus aggregate post stats.
type CreatorSummary struct {
	Creator
	PostCount      int        `json:"postCount"`
	LatestPostSync *time.Time `json:"latestPostSync"`
}

// NormalizeUsername trims whitespace, drops a leading "@" and lower-cases.
func NormalizeUsername(username string) string {
	u := strings.TrimSpace(username)
	u = strings.TrimPrefix(u, "@")
	return strings.ToLower(strings.TrimSpace(u))
}
