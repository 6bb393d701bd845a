// Package instagram fetches a creator's recent media through the Instagram
// Graph API "business discovery" edge.
//
// Business discovery lets one business account read public media of another
// business or creator account by username. It needs an access token and the
// id of the calling business account; without them the adapter refuses to
// make a request at all and reports auth_required.
//
// Graph does not expose view counts for other accounts, so every post this
// adapter returns carries Metric = likes: the scorer ranks Instagram posts by
// likes instead of views.
package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/creator-outliers/internal/adapter"
	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/model"
)

const (
	DefaultGraphURL   = "https://graph.facebook.com"
	DefaultAPIVersion = "v21.0"
	DefaultTimeout    = 20 * time.Second

	// maxBodyBytes bounds how much of a Graph response is read.
	maxBodyBytes = 4 << 20
)

// Config holds the adapter settings.
type Config struct {
	GraphURL    string
	APIVersion  string
	AccessToken string
	BusinessID  string
	Timeout     time.Duration
}

// Adapter implements adapter.PlatformAdapter for Instagram.
type Adapter struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

var _ adapter.PlatformAdapter = (*Adapter)(nil)

// New creates an Instagram adapter. The access token is attached to every
// request as a bearer token by an oauth2 transport.
func New(cfg Config, logger *slog.Logger) *Adapter {
	if cfg.GraphURL == "" {
		cfg.GraphURL = DefaultGraphURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.GraphURL = strings.TrimSuffix(cfg.GraphURL, "/")

	// oauth2.NewClient uses the context only to pick the base client.
	base := &http.Client{Timeout: cfg.Timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.AccessToken,
		TokenType:   "Bearer",
	}))
	client.Timeout = cfg.Timeout

	return &Adapter{cfg: cfg, client: client, logger: logger}
}

// Platform implements adapter.PlatformAdapter.
func (a *Adapter) Platform() model.Platform {
	return model.PlatformInstagram
}

// FetchRecent implements adapter.PlatformAdapter. handle may be a username,
// an @username or a profile URL.
func (a *Adapter) FetchRecent(ctx context.Context, handle string, limit int) ([]adapter.RawPost, error) {
	if a.cfg.AccessToken == "" || a.cfg.BusinessID == "" {
		return nil, adapter.Failure(apperror.KindAuthRequired, model.PlatformInstagram, handle,
			errors.New("INSTAGRAM_ACCESS_TOKEN and INSTAGRAM_BUSINESS_ID must be set"))
	}

	username, err := usernameFromHandle(handle)
	if err != nil {
		return nil, adapter.Failure(apperror.KindFatal, model.PlatformInstagram, handle, err)
	}
	if limit <= 0 {
		return []adapter.RawPost{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.discoveryURL(username, limit), nil)
	if err != nil {
		return nil, adapter.Failure(apperror.KindFatal, model.PlatformInstagram, handle, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, adapter.RequestFailure(model.PlatformInstagram, handle, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, adapter.RequestFailure(model.PlatformInstagram, handle, err)
	}

	var payload discoveryResponse
	decodeErr := json.Unmarshal(body, &payload)

	// Graph reports most failures as a 400 with an error object, so the
	// error object decides the kind before the status code does.
	if decodeErr == nil && payload.Error != nil {
		return nil, graphFailure(handle, payload.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, adapter.StatusFailure(model.PlatformInstagram, handle, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, adapter.Failure(apperror.KindFatal, model.PlatformInstagram, handle,
			fmt.Errorf("decoding response: %w", decodeErr))
	}
	if payload.BusinessDiscovery == nil {
		return nil, adapter.Failure(apperror.KindNotFound, model.PlatformInstagram, handle,
			errors.New("no business_discovery in response"))
	}

	items := payload.BusinessDiscovery.Media.Data
	posts := make([]adapter.RawPost, 0, min(limit, len(items)))
	for _, m := range items {
		if len(posts) == limit {
			break
		}
		posts = append(posts, m.toRawPost())
	}

	a.logger.Debug("instagram media fetched",
		slog.String("username", username),
		slog.Int("returned", len(posts)),
	)
	return posts, nil
}

func (a *Adapter) discoveryURL(username string, limit int) string {
	fields := fmt.Sprintf(
		"business_discovery.username(%s){username,name,media.limit(%d){id,caption,like_count,comments_count,timestamp,permalink,media_type,media_url,thumbnail_url}}",
		username, limit,
	)
	q := url.Values{}
	q.Set("fields", fields)
	return fmt.Sprintf("%s/%s/%s?%s", a.cfg.GraphURL, a.cfg.APIVersion, url.PathEscape(a.cfg.BusinessID), q.Encode())
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9._]{1,30}$`)

func usernameFromHandle(handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if strings.Contains(handle, "://") || strings.Contains(strings.ToLower(handle), "instagram.com") {
		profile, err := adapter.ParseProfileURL(handle)
		if err != nil {
			return "", err
		}
		if profile.Platform != model.PlatformInstagram {
			return "", fmt.Errorf("%s is not an Instagram profile", handle)
		}
		return profile.Username, nil
	}

	username := model.NormalizeUsername(handle)
	if !usernamePattern.MatchString(username) {
		return "", fmt.Errorf("%q is not a valid Instagram username", handle)
	}
	return username, nil
}

// =============================================================================
// Graph payloads
// =============================================================================

type discoveryResponse struct {
	BusinessDiscovery *struct {
		Username string `json:"username"`
		Media    struct {
			Data []media `json:"data"`
		} `json:"media"`
	} `json:"business_discovery"`
	Error *graphError `json:"error"`
}

type media struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	LikeCount     *int64 `json:"like_count"`
	CommentsCount *int64 `json:"comments_count"`
	Timestamp     string `json:"timestamp"`
	Permalink     string `json:"permalink"`
	MediaType     string `json:"media_type"`
	MediaURL      string `json:"media_url"`
	ThumbnailURL  string `json:"thumbnail_url"`
}

func (m media) toRawPost() adapter.RawPost {
	thumb := m.ThumbnailURL
	if thumb == "" && m.MediaType != "VIDEO" {
		thumb = m.MediaURL
	}
	return adapter.RawPost{
		ID:           m.ID,
		Title:        m.Caption,
		URL:          m.Permalink,
		Likes:        m.LikeCount,
		Comments:     m.CommentsCount,
		Published:    m.Timestamp,
		ThumbnailURL: thumb,
		Metric:       model.MetricLikes,
	}
}

type graphError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	Subcode   int    `json:"error_subcode"`
	FBTraceID string `json:"fbtrace_id"`
}

func (e *graphError) Error() string {
	return fmt.Sprintf("graph error %d: %s", e.Code, e.Message)
}

// userNotFoundSubcode is what business discovery returns for a username that
// does not exist or is not a business/creator account.
const userNotFoundSubcode = 2207013

// graphFailure maps Graph error codes onto failure kinds.
func graphFailure(handle string, ge *graphError) *apperror.AppError {
	kind := apperror.KindFatal
	switch ge.Code {
	case 190, 102, 10, 200:
		kind = apperror.KindAuthRequired
	case 1, 2, 4, 17, 32, 613:
		kind = apperror.KindTransient
	case 24, 110:
		kind = apperror.KindNotFound
	case 100:
		if ge.Subcode == userNotFoundSubcode {
			kind = apperror.KindNotFound
		}
	}
	return adapter.Failure(kind, model.PlatformInstagram, handle, ge)
}
