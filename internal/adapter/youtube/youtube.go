// Package youtube fetches a channel's recent uploads from the public
// YouTube Atom feed. No API key is required.
//
// TWO REQUESTS PER SYNC:
//
//  1. Resolve the handle to a channel id ("UC" + 22 chars). A handle that is
//     already a channel id skips this step. Otherwise the channel page is
//     fetched and the id read from its <meta>/<link> tags with goquery.
//  2. GET /feeds/videos.xml?channel_id=<id> and parse the Atom document with
//     gofeed. View and like counts live in the media:group extension.
//
// The feed only carries the newest ~15 uploads, which is why the default
// sync limit is well within what one request returns.
package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/sakif/creator-outliers/internal/adapter"
	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/model"
)

const (
	DefaultBaseURL   = "https://www.youtube.com"
	DefaultTimeout   = 20 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (compatible; creator-outliers/1.0)"
)

// Config holds the adapter settings.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Adapter implements adapter.PlatformAdapter for YouTube.
type Adapter struct {
	baseURL   string
	userAgent string
	client    *http.Client
	parser    *gofeed.Parser
	logger    *slog.Logger
}

var _ adapter.PlatformAdapter = (*Adapter)(nil)

// New creates a YouTube adapter. Zero config fields take their defaults.
func New(cfg Config, logger *slog.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 4,
		},
	}

	parser := gofeed.NewParser()
	parser.Client = client

	return &Adapter{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client:    client,
		parser:    parser,
		logger:    logger,
	}
}

// Platform implements adapter.PlatformAdapter.
func (a *Adapter) Platform() model.Platform {
	return model.PlatformYouTube
}

// FetchRecent implements adapter.PlatformAdapter. handle may be a profile
// URL, an @handle, a bare username, "c/Name", "user/Name" or a channel id.
func (a *Adapter) FetchRecent(ctx context.Context, handle string, limit int) ([]adapter.RawPost, error) {
	if limit <= 0 {
		return []adapter.RawPost{}, nil
	}

	channelID, err := a.resolveChannelID(ctx, handle)
	if err != nil {
		return nil, err
	}

	feed, err := a.fetchFeed(ctx, handle, channelID)
	if err != nil {
		return nil, err
	}

	posts := make([]adapter.RawPost, 0, min(limit, len(feed.Items)))
	for _, item := range feed.Items {
		if len(posts) == limit {
			break
		}
		posts = append(posts, toRawPost(item))
	}

	a.logger.Debug("youtube feed fetched",
		slog.String("handle", handle),
		slog.String("channel_id", channelID),
		slog.Int("entries", len(feed.Items)),
		slog.Int("returned", len(posts)),
	)
	return posts, nil
}

// resolveChannelID turns any accepted handle form into a channel id.
func (a *Adapter) resolveChannelID(ctx context.Context, handle string) (string, error) {
	path, err := channelPath(handle)
	if err != nil {
		return "", adapter.Failure(apperror.KindFatal, model.PlatformYouTube, handle, err)
	}
	if adapter.IsChannelID(path) {
		return path, nil
	}

	resp, err := a.get(ctx, a.baseURL+"/"+path)
	if err != nil {
		return "", adapter.RequestFailure(model.PlatformYouTube, handle, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", adapter.StatusFailure(model.PlatformYouTube, handle, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", adapter.RequestFailure(model.PlatformYouTube, handle, err)
	}

	if id := channelIDFromDocument(doc); id != "" {
		return id, nil
	}
	return "", adapter.Failure(apperror.KindNotFound, model.PlatformYouTube, handle,
		fmt.Errorf("no channel id on %s", path))
}

func (a *Adapter) fetchFeed(ctx context.Context, handle, channelID string) (*gofeed.Feed, error) {
	feedURL := a.baseURL + "/feeds/videos.xml?channel_id=" + url.QueryEscape(channelID)

	resp, err := a.get(ctx, feedURL)
	if err != nil {
		return nil, adapter.RequestFailure(model.PlatformYouTube, handle, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, adapter.StatusFailure(model.PlatformYouTube, handle, resp.StatusCode)
	}

	feed, err := a.parser.Parse(resp.Body)
	if err != nil {
		// A 200 that is not a feed means the page format changed under us.
		if ctx.Err() != nil {
			return nil, adapter.RequestFailure(model.PlatformYouTube, handle, ctx.Err())
		}
		return nil, adapter.Failure(apperror.KindFatal, model.PlatformYouTube, handle,
			fmt.Errorf("parsing feed: %w", err))
	}
	return feed, nil
}

func (a *Adapter) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	return a.client.Do(req)
}

// channelPath reduces a handle to the path segment(s) after youtube.com/,
// or to the bare channel id when that is what the handle is.
func channelPath(handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return "", fmt.Errorf("empty handle")
	}

	if strings.Contains(handle, "://") || strings.Contains(strings.ToLower(handle), "youtube.com") {
		profile, err := adapter.ParseProfileURL(handle)
		if err != nil {
			return "", err
		}
		if profile.Platform != model.PlatformYouTube {
			return "", fmt.Errorf("%s is not a YouTube profile", handle)
		}
		handle = profile.Handle
	}

	switch {
	case adapter.IsChannelID(handle):
		return handle, nil
	case strings.HasPrefix(handle, "@"),
		strings.HasPrefix(handle, "c/"),
		strings.HasPrefix(handle, "user/"):
		return handle, nil
	default:
		return "@" + handle, nil
	}
}

// channelIDFromDocument looks in the places a channel page exposes its id.
func channelIDFromDocument(doc *goquery.Document) string {
	candidates := []string{
		doc.Find(`meta[itemprop="identifier"]`).AttrOr("content", ""),
		doc.Find(`meta[itemprop="channelId"]`).AttrOr("content", ""),
		lastSegment(doc.Find(`link[rel="canonical"]`).AttrOr("href", "")),
		lastSegment(doc.Find(`meta[property="og:url"]`).AttrOr("content", "")),
	}
	for _, c := range candidates {
		if adapter.IsChannelID(c) {
			return c
		}
	}
	return ""
}

func lastSegment(s string) string {
	s = strings.TrimSuffix(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

func toRawPost(item *gofeed.Item) adapter.RawPost {
	raw := adapter.RawPost{
		ID:    extValue(item.Extensions, "yt", "videoId"),
		Title: item.Title,
		URL:   item.Link,
	}
	if raw.ID == "" {
		raw.ID = strings.TrimPrefix(item.GUID, "yt:video:")
	}

	if item.PublishedParsed != nil {
		raw.Published = item.PublishedParsed.UTC().Format(time.RFC3339)
	} else {
		raw.Published = item.Published
	}

	group := mediaGroup(item.Extensions)
	if group != nil {
		if thumb := child(group, "thumbnail"); thumb != nil {
			raw.ThumbnailURL = thumb.Attrs["url"]
		}
		if community := child(group, "community"); community != nil {
			if stats := child(community, "statistics"); stats != nil {
				raw.Views = parseCount(stats.Attrs["views"])
			}
			if rating := child(community, "starRating"); rating != nil {
				raw.Likes = parseCount(rating.Attrs["count"])
			}
		}
	}
	if raw.ThumbnailURL == "" && item.Image != nil {
		raw.ThumbnailURL = item.Image.URL
	}
	return raw
}

func extValue(exts ext.Extensions, prefix, name string) string {
	if vals := exts[prefix][name]; len(vals) > 0 {
		return strings.TrimSpace(vals[0].Value)
	}
	return ""
}

func mediaGroup(exts ext.Extensions) *ext.Extension {
	if groups := exts["media"]["group"]; len(groups) > 0 {
		return &groups[0]
	}
	return nil
}

func child(e *ext.Extension, name string) *ext.Extension {
	if kids := e.Children[name]; len(kids) > 0 {
		return &kids[0]
	}
	return nil
}

func parseCount(s string) *int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
