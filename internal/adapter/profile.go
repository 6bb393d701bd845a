package adapter

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/model"
)

// Profile is what a pasted profile URL resolves to.
//
// Handle keeps the platform's original casing ("@SomeName", "UCxyz…",
// "c/Name"), because YouTube channel ids are case-sensitive. Username is the
// normalized natural-key form stored on the creator.
type Profile struct {
	Platform     model.Platform
	Username     string
	Handle       string
	CanonicalURL string
}

var (
	channelIDPattern = regexp.MustCompile(`^UC[0-9A-Za-z_-]{22}$`)
	igUsernameRe     = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)
)

// Instagram paths that look like usernames but are not profiles.
var igReserved = map[string]bool{
	"p": true, "reel": true, "reels": true, "stories": true, "explore": true,
	"tv": true, "accounts": true, "direct": true,
}

// IsChannelID reports whether s looks like a YouTube channel id.
func IsChannelID(s string) bool {
	return channelIDPattern.MatchString(s)
}

// ParseProfileURL recognises YouTube (/@name, /channel/ID, /c/name,
// /user/name) and Instagram (instagram.com/name) profile links. The scheme is
// optional. Anything else is a validation error.
func ParseProfileURL(raw string) (Profile, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Profile{}, apperror.ValidationFailed("url", "profile URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Profile{}, apperror.ValidationFailed("url", "profile URL is not a valid URL")
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := pathSegments(u.Path)

	switch host {
	case "youtube.com":
		return parseYouTube(segments)
	case "instagram.com":
		return parseInstagram(segments)
	}
	return Profile{}, apperror.ValidationFailed("url", "unrecognised profile URL: expected a YouTube or Instagram profile")
}

func parseYouTube(segments []string) (Profile, error) {
	invalid := apperror.ValidationFailed("url", "unrecognised YouTube profile URL")
	if len(segments) == 0 {
		return Profile{}, invalid
	}

	first := segments[0]
	switch {
	case strings.HasPrefix(first, "@") && len(first) > 1:
		return Profile{
			Platform:     model.PlatformYouTube,
			Username:     model.NormalizeUsername(first),
			Handle:       first,
			CanonicalURL: "https://www.youtube.com/" + first,
		}, nil

	case first == "channel" && len(segments) > 1 && IsChannelID(segments[1]):
		id := segments[1]
		return Profile{
			Platform:     model.PlatformYouTube,
			Username:     model.NormalizeUsername(id),
			Handle:       id,
			CanonicalURL: "https://www.youtube.com/channel/" + id,
		}, nil

	case (first == "c" || first == "user") && len(segments) > 1:
		handle := first + "/" + segments[1]
		return Profile{
			Platform:     model.PlatformYouTube,
			Username:     model.NormalizeUsername(segments[1]),
			Handle:       handle,
			CanonicalURL: "https://www.youtube.com/" + handle,
		}, nil
	}
	return Profile{}, invalid
}

func parseInstagram(segments []string) (Profile, error) {
	if len(segments) == 0 || igReserved[strings.ToLower(segments[0])] || !igUsernameRe.MatchString(segments[0]) {
		return Profile{}, apperror.ValidationFailed("url", "unrecognised Instagram profile URL")
	}
	username := model.NormalizeUsername(segments[0])
	return Profile{
		Platform:     model.PlatformInstagram,
		Username:     username,
		Handle:       username,
		CanonicalURL: "https://www.instagram.com/" + username + "/",
	}, nil
}

func pathSegments(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
