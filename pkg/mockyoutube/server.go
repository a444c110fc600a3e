package mockyoutube

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"gopkg.in/yaml.v3"
)

// APIPrefix is the path the handler serves under; clients use <server URL>+APIPrefix
// as their base URL.
const APIPrefix = "/youtube/v3"

// Video is one fixture video. A nil Views omits statistics.viewCount from
// responses, the way the API does for videos with hidden counts.
type Video struct {
	ID           string  `yaml:"id"`
	Title        string  `yaml:"title"`
	ThumbnailURL string  `yaml:"thumbnail_url"`
	Views        *uint64 `yaml:"views"`
}

// Views returns a pointer to n, for building Video literals.
func Views(n uint64) *uint64 {
	return &n
}

// Fixture is the on-disk fixture format loaded by LoadFixture.
//
// Example (YAML):
//
//	playlists:
//	  PL123:
//	    - id: v1
//	      title: First
//	      views: 50
type Fixture struct {
	Playlists map[string][]Video `yaml:"playlists"`
}

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
	Query  url.Values
}

type override struct {
	status int
	body   string
}

// Server implements the playlistItems and videos endpoints of the Data API.
type Server struct {
	mu sync.Mutex

	playlists map[string][]string
	videos    map[string]Video
	overrides map[string]override
	calls     []Call

	apiKey   string
	encoding string
	latency  time.Duration

	inFlight int
	peak     int
}

// New constructs an empty mock server.
func New() *Server {
	return &Server{
		playlists: make(map[string][]string),
		videos:    make(map[string]Video),
		overrides: make(map[string]override),
	}
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (Fixture, error) {
	b, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture file: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture YAML: %w", err)
	}
	for pl, videos := range f.Playlists {
		for i, v := range videos {
			if strings.TrimSpace(v.ID) == "" {
				return Fixture{}, fmt.Errorf("playlist %q entry %d: id is required", pl, i)
			}
		}
	}
	return f, nil
}

// FromFixture constructs a server preloaded with the fixture's playlists.
func FromFixture(f Fixture) *Server {
	s := New()
	for id, videos := range f.Playlists {
		s.AddPlaylist(id, videos...)
	}
	return s
}

// AddPlaylist registers a playlist and its videos, in playlist order.
func (s *Server) AddPlaylist(playlistID string, videos ...Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(videos))
	for _, v := range videos {
		s.videos[v.ID] = v
		ids = append(ids, v.ID)
	}
	s.playlists[playlistID] = ids
}

// RequireAPIKey enforces that requests carry key=<apiKey>. Empty disables the check.
func (s *Server) RequireAPIKey(apiKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = strings.TrimSpace(apiKey)
}

// FailVideo makes videos?id=<videoID> answer with a Google error envelope.
func (s *Server) FailVideo(videoID string, status int, reason string) {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": http.StatusText(status),
			"errors":  []map[string]string{{"reason": reason, "domain": "youtube.video"}},
		},
	})
	s.OverrideVideo(videoID, status, string(body))
}

// OverrideVideo replaces the videos response for one id with a raw status and body.
func (s *Server) OverrideVideo(videoID string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[videoID] = override{status: status, body: body}
}

// SetContentEncoding compresses responses with "gzip" or "br" when the client
// accepts it. Empty disables compression.
func (s *Server) SetContentEncoding(encoding string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encoding = strings.ToLower(strings.TrimSpace(encoding))
}

// SetLatency delays every videos response by d.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(APIPrefix+"/playlistItems", s.handlePlaylistItems)
	mux.HandleFunc(APIPrefix+"/videos", s.handleVideos)
	return mux
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// PeakInFlight returns the largest number of concurrent videos requests seen.
func (s *Server) PeakInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

func (s *Server) recordCall(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query()})
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	expected := s.apiKey
	s.mu.Unlock()

	if expected == "" {
		return true
	}
	if r.URL.Query().Get("key") != expected {
		s.writeError(w, r, http.StatusBadRequest, "keyInvalid", "API key not valid. Please pass a valid API key.")
		return false
	}
	return true
}

type thumbnail struct {
	URL string `json:"url"`
}

type playlistItem struct {
	Kind    string `json:"kind"`
	Snippet struct {
		Title      string               `json:"title"`
		Position   int                  `json:"position"`
		Thumbnails map[string]thumbnail `json:"thumbnails,omitempty"`
		ResourceID struct {
			Kind    string `json:"kind"`
			VideoID string `json:"videoId"`
		} `json:"resourceId"`
	} `json:"snippet"`
}

func (s *Server) handlePlaylistItems(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r) {
		return
	}

	q := r.URL.Query()
	playlistID := q.Get("playlistId")
	pageSize := 5
	if v := q.Get("maxResults"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 50 {
			s.writeError(w, r, http.StatusBadRequest, "invalidParameter", "Invalid value for maxResults")
			return
		}
		pageSize = n
	}
	offset := 0
	if tok := q.Get("pageToken"); tok != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(tok, "page-"))
		if err != nil || n < 0 {
			s.writeError(w, r, http.StatusBadRequest, "invalidPageToken", "The request specifies an invalid page token.")
			return
		}
		offset = n
	}

	s.mu.Lock()
	ids, ok := s.playlists[playlistID]
	items := make([]playlistItem, 0, pageSize)
	for i := offset; ok && i < len(ids) && len(items) < pageSize; i++ {
		v := s.videos[ids[i]]
		var it playlistItem
		it.Kind = "youtube#playlistItem"
		it.Snippet.Title = v.Title
		it.Snippet.Position = i
		it.Snippet.ResourceID.Kind = "youtube#video"
		it.Snippet.ResourceID.VideoID = v.ID
		if v.ThumbnailURL != "" {
			it.Snippet.Thumbnails = map[string]thumbnail{"default": {URL: v.ThumbnailURL}}
		}
		items = append(items, it)
	}
	total := len(ids)
	s.mu.Unlock()

	if !ok {
		s.writeError(w, r, http.StatusNotFound, "playlistNotFound", "The playlist identified with the request's playlistId parameter cannot be found.")
		return
	}

	resp := map[string]any{
		"kind":     "youtube#playlistItemListResponse",
		"items":    items,
		"pageInfo": map[string]int{"totalResults": total, "resultsPerPage": pageSize},
	}
	if next := offset + len(items); next < total && len(items) > 0 {
		resp["nextPageToken"] = fmt.Sprintf("page-%d", next)
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r) {
		return
	}

	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	latency := s.latency
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-r.Context().Done():
			return
		}
	}

	id := r.URL.Query().Get("id")

	s.mu.Lock()
	ov, hasOverride := s.overrides[id]
	v, known := s.videos[id]
	s.mu.Unlock()

	if hasOverride {
		s.write(w, r, ov.status, "application/json", []byte(ov.body))
		return
	}

	items := []map[string]any{}
	if known {
		stats := map[string]any{"likeCount": "0"}
		if v.Views != nil {
			stats["viewCount"] = strconv.FormatUint(*v.Views, 10)
		}
		items = append(items, map[string]any{
			"kind":       "youtube#video",
			"id":         v.ID,
			"statistics": stats,
		})
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"kind":  "youtube#videoListResponse",
		"items": items,
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, reason, message string) {
	s.writeJSON(w, r, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"errors":  []map[string]string{{"reason": reason, "message": message}},
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("encode response: %v", err), http.StatusInternalServerError)
		return
	}
	s.write(w, r, status, "application/json; charset=UTF-8", b)
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, status int, contentType string, body []byte) {
	s.mu.Lock()
	encoding := s.encoding
	s.mu.Unlock()

	if encoding != "" && strings.Contains(r.Header.Get("Accept-Encoding"), encoding) {
		var buf bytes.Buffer
		var err error
		switch encoding {
		case "gzip":
			gz := gzip.NewWriter(&buf)
			if _, err = gz.Write(body); err == nil {
				err = gz.Close()
			}
		case "br":
			bw := brotli.NewWriter(&buf)
			if _, err = bw.Write(body); err == nil {
				err = bw.Close()
			}
		default:
			err = fmt.Errorf("unsupported encoding %q", encoding)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Encoding", encoding)
		body = buf.Bytes()
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
