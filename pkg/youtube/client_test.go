package youtube_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shpitdev/playlistrank/pkg/errs"
	"github.com/shpitdev/playlistrank/pkg/mockyoutube"
	"github.com/shpitdev/playlistrank/pkg/pipeline/core"
	"github.com/shpitdev/playlistrank/pkg/youtube"
)

const testKey = "AIzaTestKey"

func newTestClient(t *testing.T, srv *mockyoutube.Server) *youtube.Client {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := youtube.NewClient(youtube.Config{APIKey: testKey, BaseURL: ts.URL + mockyoutube.APIPrefix})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := youtube.NewClient(youtube.Config{APIKey: "  "})
	if !errors.Is(err, errs.ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
}

func TestPlaylistItems(t *testing.T) {
	t.Parallel()

	srv := mockyoutube.New()
	srv.RequireAPIKey(testKey)
	srv.AddPlaylist("PL1",
		mockyoutube.Video{ID: "v1", Title: "A", ThumbnailURL: "https://i.ytimg.com/vi/v1/default.jpg"},
		mockyoutube.Video{ID: "v2", Title: "B"},
		mockyoutube.Video{ID: "v3", Title: "C"},
	)
	client := newTestClient(t, srv)

	items, err := client.PlaylistItems(context.Background(), "PL1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0] != (youtube.PlaylistItem{VideoID: "v1", Title: "A", ThumbnailURL: "https://i.ytimg.com/vi/v1/default.jpg"}) {
		t.Fatalf("unexpected items[0]: %#v", items[0])
	}
	if items[1].VideoID != "v2" || items[1].ThumbnailURL != "" {
		t.Fatalf("unexpected items[1]: %#v", items[1])
	}

	calls := srv.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	q := calls[0].Query
	if q.Get("part") != "snippet" || q.Get("maxResults") != "3" || q.Get("playlistId") != "PL1" || q.Get("key") != testKey {
		t.Fatalf("unexpected query: %v", q)
	}
}

func TestPlaylistItems_FollowsPages(t *testing.T) {
	t.Parallel()

	videos := make([]mockyoutube.Video, 120)
	for i := range videos {
		videos[i] = mockyoutube.Video{ID: fmt.Sprintf("v%03d", i), Title: fmt.Sprintf("Video %d", i)}
	}
	srv := mockyoutube.New()
	srv.AddPlaylist("PLbig", videos...)
	client := newTestClient(t, srv)

	items, err := client.PlaylistItems(context.Background(), "PLbig", 75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 75 {
		t.Fatalf("expected 75 items, got %d", len(items))
	}
	for i, it := range items {
		if it.VideoID != videos[i].ID {
			t.Fatalf("items[%d]=%q want %q", i, it.VideoID, videos[i].ID)
		}
	}

	calls := srv.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 page requests, got %d", len(calls))
	}
	if calls[0].Query.Get("maxResults") != "50" || calls[1].Query.Get("maxResults") != "25" {
		t.Fatalf("unexpected page sizes: %q %q", calls[0].Query.Get("maxResults"), calls[1].Query.Get("maxResults"))
	}
	if calls[1].Query.Get("pageToken") == "" {
		t.Fatalf("expected second request to carry a page token")
	}

	t.Run("stops at end of playlist", func(t *testing.T) {
		items, err := client.PlaylistItems(context.Background(), "PLbig", 500)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(items) != len(videos) {
			t.Fatalf("expected %d items, got %d", len(videos), len(items))
		}
	})
}

func TestPlaylistItems_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unknown playlist is an upstream error", func(t *testing.T) {
		client := newTestClient(t, mockyoutube.New())
		_, err := client.PlaylistItems(context.Background(), "PLmissing", 5)
		if !errors.Is(err, errs.ErrUpstreamRequest) {
			t.Fatalf("expected ErrUpstreamRequest, got %v", err)
		}
		var he *youtube.HTTPError
		if !errors.As(err, &he) || he.StatusCode != http.StatusNotFound || he.Reason != "playlistNotFound" {
			t.Fatalf("unexpected http error: %#v", he)
		}
	})

	t.Run("empty playlist id is a validation error", func(t *testing.T) {
		client := newTestClient(t, mockyoutube.New())
		_, err := client.PlaylistItems(context.Background(), " ", 5)
		if !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	malformed := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html>oops</html>"},
		{name: "missing items", body: `{"kind":"youtube#playlistItemListResponse"}`},
		{name: "missing video id", body: `{"items":[{"snippet":{"title":"x","resourceId":{}}}]}`},
		{name: "missing snippet", body: `{"items":[{}]}`},
	}
	for _, tt := range malformed {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()
			client, err := youtube.NewClient(youtube.Config{APIKey: testKey, BaseURL: ts.URL})
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			_, err = client.PlaylistItems(context.Background(), "PL1", 5)
			if !errors.Is(err, errs.ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
			if errors.Is(err, errs.ErrUpstreamRequest) {
				t.Fatalf("malformed body must not be reported as upstream failure: %v", err)
			}
		})
	}
}

func TestViewCount(t *testing.T) {
	t.Parallel()

	srv := mockyoutube.New()
	srv.RequireAPIKey(testKey)
	srv.AddPlaylist("PL1",
		mockyoutube.Video{ID: "v1", Views: mockyoutube.Views(1234567)},
		mockyoutube.Video{ID: "hidden"},
	)
	srv.OverrideVideo("garbled", http.StatusOK, `{"items":[{"statistics":{"viewCount":"many"}}]}`)
	srv.OverrideVideo("numeric", http.StatusOK, `{"items":[{"statistics":{"viewCount":42}}]}`)
	srv.OverrideVideo("nostats", http.StatusOK, `{"items":[{"id":"nostats"}]}`)
	client := newTestClient(t, srv)

	tests := []struct {
		id   string
		want uint64
	}{
		{id: "v1", want: 1234567},
		{id: "hidden", want: 0},
		{id: "unknown", want: 0},
		{id: "garbled", want: 0},
		{id: "numeric", want: 42},
		{id: "nostats", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := client.ViewCount(context.Background(), tt.id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ViewCount(%q)=%d want=%d", tt.id, got, tt.want)
			}
		})
	}

	for _, c := range srv.Calls() {
		if c.Path != mockyoutube.APIPrefix+"/videos" || c.Query.Get("part") != "statistics" {
			t.Fatalf("unexpected call: %#v", c)
		}
	}
}

func TestViewCount_Errors(t *testing.T) {
	t.Parallel()

	srv := mockyoutube.New()
	srv.FailVideo("boom", http.StatusInternalServerError, "backendError")
	srv.FailVideo("quota", http.StatusForbidden, "quotaExceeded")
	srv.FailVideo("slowdown", http.StatusForbidden, "rateLimitExceeded")
	srv.OverrideVideo("html", http.StatusOK, "<html>")
	srv.OverrideVideo("noitems", http.StatusOK, `{"kind":"youtube#videoListResponse"}`)
	client := newTestClient(t, srv)

	tests := []struct {
		id        string
		kind      error
		transient bool
		limited   bool
	}{
		{id: "boom", kind: errs.ErrUpstreamRequest, transient: true},
		{id: "quota", kind: errs.ErrUpstreamRequest},
		{id: "slowdown", kind: errs.ErrUpstreamRequest, limited: true},
		{id: "html", kind: errs.ErrMalformedResponse},
		{id: "noitems", kind: errs.ErrMalformedResponse},
		{id: "", kind: errs.ErrValidation},
	}
	for _, tt := range tests {
		t.Run("id="+tt.id, func(t *testing.T) {
			_, err := client.ViewCount(context.Background(), tt.id)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			var le *youtube.LookupError
			if !errors.As(err, &le) || le.VideoID != tt.id {
				t.Fatalf("expected *LookupError for %q, got %#v", tt.id, err)
			}
			var te *core.TransientError
			if got := errors.As(err, &te); got != tt.transient {
				t.Fatalf("transient=%t want=%t (%v)", got, tt.transient, err)
			}
			var lte *core.LimitedTransientError
			if got := errors.As(err, &lte); got != tt.limited {
				t.Fatalf("limited=%t want=%t (%v)", got, tt.limited, err)
			}
		})
	}
}

func TestViewCount_DecodesCompressedBodies(t *testing.T) {
	t.Parallel()

	for _, enc := range []string{"gzip", "br"} {
		t.Run(enc, func(t *testing.T) {
			srv := mockyoutube.New()
			srv.AddPlaylist("PL1", mockyoutube.Video{ID: "v1", Views: mockyoutube.Views(200)})
			srv.SetContentEncoding(enc)
			client := newTestClient(t, srv)

			got, err := client.ViewCount(context.Background(), "v1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != 200 {
				t.Fatalf("expected 200, got %d", got)
			}
		})
	}
}

func TestHTTPError_DoesNotLeakAPIKey(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream said: " + r.URL.String()))
	}))
	defer ts.Close()

	client, err := youtube.NewClient(youtube.Config{APIKey: testKey, BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.ViewCount(context.Background(), "v1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if strings.Contains(err.Error(), testKey) {
		t.Fatalf("error leaks api key: %v", err)
	}
	var he *youtube.HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusBadGateway || he.Snippet == "" {
		t.Fatalf("unexpected http error: %#v", he)
	}
}
