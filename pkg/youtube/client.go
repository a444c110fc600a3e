package youtube

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shpitdev/playlistrank/pkg/errs"
	"github.com/shpitdev/playlistrank/pkg/pipeline/core"
)

const (
	// DefaultBaseURL is the YouTube Data API v3 root.
	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

	// MaxPageSize is the largest maxResults the playlistItems endpoint accepts.
	MaxPageSize = 50

	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "playlistrank/1 (+https://github.com/shpitdev/playlistrank)"
)

// Config holds client parameters. Only APIKey is required.
type Config struct {
	APIKey string

	// BaseURL overrides the API root. Useful for proxies/testing.
	BaseURL string

	// DefaultCAPath is an optional PEM bundle that replaces the system trust store.
	DefaultCAPath string

	Timeout   time.Duration
	UserAgent string
}

// Client is a minimal HTTP client for the two Data API endpoints used here.
type Client struct {
	baseURL   *url.URL
	apiKey    string
	userAgent string
	http      *http.Client
}

// PlaylistItem is one entry of a playlist page.
type PlaylistItem struct {
	VideoID      string
	Title        string
	ThumbnailURL string
}

// LookupError reports a failed view count lookup for one video.
type LookupError struct {
	VideoID string
	Err     error
}

func (e *LookupError) Error() string {
	if e == nil {
		return "view count lookup failed"
	}
	return fmt.Sprintf("view count lookup failed for %q: %v", e.VideoID, e.Err)
}

func (e *LookupError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewClient constructs a client. A missing API key is reported as errs.ErrConfigMissing.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("%w: YouTube API key is required", errs.ErrConfigMissing)
	}

	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := parseBaseURL(raw)
	if err != nil {
		return nil, err
	}

	hc, err := newHTTPClient(cfg.DefaultCAPath, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Client{
		baseURL:   base,
		apiKey:    key,
		userAgent: ua,
		http:      hc,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL must include a host (got %q)", raw)
	}
	// Ensure the base path ends with a slash so ResolveReference treats it as a directory.
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func newHTTPClient(defaultCAPath string, timeout time.Duration) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConnsPerHost = 32
	if strings.TrimSpace(defaultCAPath) != "" {
		b, err := os.ReadFile(strings.TrimSpace(defaultCAPath))
		if err != nil {
			return nil, fmt.Errorf("read DEFAULT_CA_PATH file: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(b); !ok {
			return nil, fmt.Errorf("parse DEFAULT_CA_PATH PEM: no certs found")
		}
		tr.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

type playlistItemListResponse struct {
	NextPageToken string                  `json:"nextPageToken"`
	Items         *[]playlistItemResource `json:"items"`
}

type playlistItemResource struct {
	Snippet *struct {
		Title      string `json:"title"`
		ResourceID struct {
			VideoID string `json:"videoId"`
		} `json:"resourceId"`
		Thumbnails map[string]struct {
			URL string `json:"url"`
		} `json:"thumbnails"`
	} `json:"snippet"`
}

// PlaylistItems returns up to maxResults entries of the playlist, in playlist order.
// Pages are followed via nextPageToken when maxResults exceeds MaxPageSize.
// maxResults <= 0 selects a single full page.
func (c *Client) PlaylistItems(ctx context.Context, playlistID string, maxResults int) ([]PlaylistItem, error) {
	playlistID = strings.TrimSpace(playlistID)
	if playlistID == "" {
		return nil, errs.Validation("playlist id is required")
	}
	if maxResults <= 0 {
		maxResults = MaxPageSize
	}

	var out []PlaylistItem
	pageToken := ""
	for len(out) < maxResults {
		pageSize := min(maxResults-len(out), MaxPageSize)
		q := url.Values{}
		q.Set("part", "snippet")
		q.Set("maxResults", strconv.Itoa(pageSize))
		q.Set("playlistId", playlistID)
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		b, err := c.get(ctx, "playlistItems", q)
		if err != nil {
			return nil, err
		}

		var page playlistItemListResponse
		if err := json.Unmarshal(b, &page); err != nil {
			return nil, errs.Malformed("decode playlistItems response", err)
		}
		if page.Items == nil {
			return nil, errs.Malformed("playlistItems response has no items array", nil)
		}
		for i, res := range *page.Items {
			item, err := res.toItem()
			if err != nil {
				return nil, errs.Malformed(fmt.Sprintf("playlistItems entry %d", len(out)+i), err)
			}
			out = append(out, item)
			if len(out) == maxResults {
				break
			}
		}

		pageToken = strings.TrimSpace(page.NextPageToken)
		if pageToken == "" || len(*page.Items) == 0 {
			break
		}
	}
	return out, nil
}

func (r playlistItemResource) toItem() (PlaylistItem, error) {
	if r.Snippet == nil {
		return PlaylistItem{}, errors.New("missing snippet")
	}
	id := strings.TrimSpace(r.Snippet.ResourceID.VideoID)
	if id == "" {
		return PlaylistItem{}, errors.New("missing snippet.resourceId.videoId")
	}
	thumb := ""
	if t, ok := r.Snippet.Thumbnails["default"]; ok {
		thumb = strings.TrimSpace(t.URL)
	}
	return PlaylistItem{
		VideoID:      id,
		Title:        r.Snippet.Title,
		ThumbnailURL: thumb,
	}, nil
}

type videoListResponse struct {
	Items *[]struct {
		Statistics *struct {
			ViewCount json.RawMessage `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// ViewCount returns the view count of one video.
//
// A response whose first item lacks statistics.viewCount (or holds a value that
// is not a non-negative integer) yields 0. Every error is a *LookupError.
func (c *Client) ViewCount(ctx context.Context, videoID string) (uint64, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return 0, &LookupError{VideoID: videoID, Err: errs.Validation("video id is required")}
	}

	q := url.Values{}
	q.Set("id", videoID)
	q.Set("part", "statistics")

	b, err := c.get(ctx, "videos", q)
	if err != nil {
		return 0, &LookupError{VideoID: videoID, Err: err}
	}

	var resp videoListResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return 0, &LookupError{VideoID: videoID, Err: errs.Malformed("decode videos response", err)}
	}
	if resp.Items == nil {
		return 0, &LookupError{VideoID: videoID, Err: errs.Malformed("videos response has no items array", nil)}
	}
	if len(*resp.Items) == 0 || (*resp.Items)[0].Statistics == nil {
		return 0, nil
	}
	return parseCount((*resp.Items)[0].Statistics.ViewCount), nil
}

// parseCount accepts the API's quoted decimal string as well as a bare JSON
// number. Anything else is 0.
func parseCount(raw json.RawMessage) uint64 {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0
	}
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err != nil {
			return 0
		}
		s = strings.TrimSpace(unquoted)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (c *Client) get(ctx context.Context, op string, q url.Values) ([]byte, error) {
	q.Set("key", c.apiKey)
	u := c.resolve(op)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportErr(op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := readBody(resp)
	if err != nil {
		return nil, classifyTransportErr(op, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, classifyStatusErr(newHTTPError(op, resp, b))
	}
	return b, nil
}

func (c *Client) resolve(relPath string) *url.URL {
	relPath = strings.TrimPrefix(relPath, "/")
	rel := &url.URL{Path: relPath}
	return c.baseURL.ResolveReference(rel)
}

func classifyTransportErr(op string, err error) error {
	wrapped := fmt.Errorf("%w: %s: %w", errs.ErrUpstreamRequest, op, err)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &core.TransientError{Err: wrapped}
	}
	return wrapped
}

// classifyStatusErr marks the statuses worth retrying so the worker pool backs off
// on them when retries are enabled.
func classifyStatusErr(he *HTTPError) error {
	wrapped := fmt.Errorf("%w: %w", errs.ErrUpstreamRequest, he)
	switch {
	case he.StatusCode == http.StatusTooManyRequests || he.StatusCode/100 == 5:
		return &core.TransientError{Err: wrapped}
	case he.StatusCode == http.StatusForbidden && isRateLimitReason(he.Reason):
		return &core.LimitedTransientError{Err: wrapped, ExtraRetries: 1}
	default:
		return wrapped
	}
}

func isRateLimitReason(reason string) bool {
	switch reason {
	case "rateLimitExceeded", "userRateLimitExceeded":
		return true
	default:
		return false
	}
}
