package mockyoutube_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/shpitdev/playlistrank/pkg/mockyoutube"
)

func TestLoadFixture(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.yaml")
	body := `
playlists:
  PL1:
    - id: v1
      title: First
      thumbnail_url: https://i.ytimg.com/vi/v1/default.jpg
      views: 50
    - id: v2
      title: Hidden count
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	f, err := mockyoutube.LoadFixture(path)
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	videos := f.Playlists["PL1"]
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos, got %#v", videos)
	}
	if videos[0].Views == nil || *videos[0].Views != 50 {
		t.Fatalf("unexpected views for v1: %#v", videos[0])
	}
	if videos[1].Views != nil {
		t.Fatalf("expected nil views for v2, got %d", *videos[1].Views)
	}

	t.Run("rejects entries without id", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(bad, []byte("playlists:\n  PL1:\n    - title: x\n"), 0644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		if _, err := mockyoutube.LoadFixture(bad); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestServer_RejectsWrongKey(t *testing.T) {
	t.Parallel()

	srv := mockyoutube.New()
	srv.RequireAPIKey("right")
	srv.AddPlaylist("PL1", mockyoutube.Video{ID: "v1"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + mockyoutube.APIPrefix + "/videos?id=v1&part=statistics&key=wrong")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var env struct {
		Error struct {
			Errors []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	b, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if len(env.Error.Errors) != 1 || env.Error.Errors[0].Reason != "keyInvalid" {
		t.Fatalf("unexpected error body: %s", string(b))
	}
}

func TestServer_OmitsHiddenViewCount(t *testing.T) {
	t.Parallel()

	srv := mockyoutube.New()
	srv.AddPlaylist("PL1", mockyoutube.Video{ID: "v1"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + mockyoutube.APIPrefix + "/videos?id=v1&part=statistics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var body struct {
		Items []struct {
			Statistics map[string]string `json:"statistics"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(body.Items))
	}
	if _, ok := body.Items[0].Statistics["viewCount"]; ok {
		t.Fatalf("expected viewCount to be omitted: %#v", body.Items[0].Statistics)
	}
}
