package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shpitdev/playlistrank/pkg/mockyoutube"
)

func main() {
	addr := defaultString("MOCK_YOUTUBE_ADDR", ":8080")
	fixture := defaultString("MOCK_YOUTUBE_FIXTURE", "")
	apiKey := defaultString("MOCK_YOUTUBE_API_KEY", "")
	encoding := defaultString("MOCK_YOUTUBE_ENCODING", "")
	var latency time.Duration

	fs := flag.NewFlagSet("mock-youtube", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&fixture, "fixture", fixture, "YAML fixture file with playlists and videos")
	fs.StringVar(&apiKey, "api-key", apiKey, "Require requests to carry key=<api-key>; empty accepts any")
	fs.StringVar(&encoding, "encoding", encoding, "Compress responses with gzip or br when the client accepts it")
	fs.DurationVar(&latency, "latency", 0, "Delay added to every videos response")
	_ = fs.Parse(os.Args[1:])

	srv := mockyoutube.New()
	if fixture != "" {
		f, err := mockyoutube.LoadFixture(fixture)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "fixture error: %v\n", err)
			os.Exit(2)
		}
		srv = mockyoutube.FromFixture(f)
	}
	srv.RequireAPIKey(apiKey)
	srv.SetContentEncoding(encoding)
	srv.SetLatency(latency)

	_, _ = fmt.Fprintf(os.Stdout, "mock-youtube listening on %s (base URL http://<host>%s)\n", addr, mockyoutube.APIPrefix)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
