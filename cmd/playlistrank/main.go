package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shpitdev/playlistrank/internal/app"
	"github.com/shpitdev/playlistrank/internal/config"
	"github.com/shpitdev/playlistrank/internal/version"
	"github.com/shpitdev/playlistrank/pkg/errs"
	"github.com/shpitdev/playlistrank/pkg/pipeline/redact"
	"github.com/shpitdev/playlistrank/pkg/youtube"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := runCLI(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func runCLI(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}

	switch args[0] {
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	case "version", "--version":
		_, _ = fmt.Fprintf(stdout, "playlistrank %s\n", version.Current)
		return 0
	case "run":
		return runRank(ctx, args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command: %s\n\n", args[0])
		usage(stderr)
		return 2
	}
}

func runRank(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath     string
		playlistID     string
		maxResults     int
		displayLimit   int
		format         string
		baseURL        string
		workers        int
		maxRetries     int
		requestTimeout time.Duration
		rateLimitRPS   float64
		quiet          bool
	)
	fs.StringVar(&configPath, "config", "", "YAML config file (env: "+config.ConfigPathEnv+")")
	fs.StringVar(&playlistID, "playlist", "", "Playlist id (env: PLAYLIST_ID)")
	fs.IntVar(&maxResults, "max-results", 0, "Playlist entries to fetch; pages are followed past 50 (env: MAX_RESULTS)")
	fs.IntVar(&displayLimit, "limit", 0, "Ranked entries to print, 0 prints all (env: DISPLAY_LIMIT)")
	fs.StringVar(&format, "format", "", "Output format: markdown, text, csv, json (env: OUTPUT_FORMAT)")
	fs.StringVar(&baseURL, "base-url", "", "Data API base URL override (env: YOUTUBE_BASE_URL)")
	fs.IntVar(&workers, "workers", 0, "Concurrent view count lookups (env: WORKERS)")
	fs.IntVar(&maxRetries, "max-retries", 0, "Retries per lookup for transient failures (env: MAX_RETRIES)")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Per-lookup timeout (env: REQUEST_TIMEOUT)")
	fs.Float64Var(&rateLimitRPS, "rate-limit-rps", 0, "Global lookup rate limit (RPS), 0 disables (env: RATE_LIMIT_RPS)")
	fs.BoolVar(&quiet, "quiet", false, "Discard run logs")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 {
		_, _ = fmt.Fprintf(stderr, "run takes no positional arguments (got %q)\n", fs.Args())
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "playlist":
			cfg.PlaylistID = playlistID
		case "max-results":
			cfg.MaxResults = maxResults
		case "limit":
			cfg.DisplayLimit = displayLimit
		case "format":
			cfg.Format = format
		case "base-url":
			cfg.BaseURL = baseURL
		case "workers":
			cfg.Pipeline.Workers = workers
		case "max-retries":
			cfg.Pipeline.MaxRetries = maxRetries
		case "request-timeout":
			cfg.Pipeline.RequestTimeout = requestTimeout
		case "rate-limit-rps":
			cfg.Pipeline.RateLimitRPS = rateLimitRPS
		}
	})
	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	client, err := youtube.NewClient(youtube.Config{
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.BaseURL,
		DefaultCAPath: cfg.DefaultCAPath,
		UserAgent:     "playlistrank/" + version.Current,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "youtube config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	var logger *log.Logger
	if !quiet {
		logger = log.New(stderr, "", log.LstdFlags)
	}
	list, err := app.Run(ctx, cfg, client, stdout, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "run failed: %s\n", redact.Secrets(err.Error()))
		return exitCode(err)
	}
	if logger != nil {
		logger.Print(app.Describe(list))
	}
	return 0
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errs.ErrConfigMissing), errors.Is(err, errs.ErrValidation):
		return 2
	default:
		return 1
	}
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintf(w, `playlistrank: rank a YouTube playlist by view count

Usage:
  playlistrank <command> [flags]

Commands:
  run      Fetch the playlist, look up every view count, print the ranking
  version  Print the version
  help     Show this help

Examples:
  playlistrank run --limit 10
  playlistrank run --playlist PL4bD_p5B-nBnHmJCqkdhve5TAoop6I57P --format csv > ranked.csv

Environment:
  YOUTUBE_API_KEY      Data API key (required; DEVELOPER_KEY is also read)
  PLAYLISTRANK_CONFIG  Optional YAML config file
  PLAYLIST_ID, MAX_RESULTS, DISPLAY_LIMIT, OUTPUT_FORMAT, YOUTUBE_BASE_URL,
  DEFAULT_CA_PATH, WORKERS, MAX_RETRIES, REQUEST_TIMEOUT, RATE_LIMIT_RPS

A .env file in the working directory is loaded first when present. Flags take
precedence over the environment, which takes precedence over the config file.

Exit codes: 0 success, 2 configuration or validation error, 1 upstream failure.
`)
}
