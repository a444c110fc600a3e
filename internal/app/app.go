package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/shpitdev/playlistrank/internal/config"
	"github.com/shpitdev/playlistrank/internal/enrich"
	"github.com/shpitdev/playlistrank/internal/pipeline"
	"github.com/shpitdev/playlistrank/internal/present"
	"github.com/shpitdev/playlistrank/pkg/pipeline/redact"
)

// Client is the subset of the Data API the run needs. *youtube.Client satisfies it.
type Client interface {
	Catalog
	enrich.ViewCounter
}

// Stage names a step of one run, in the order the run moves through them.
type Stage string

const (
	StageFetching  Stage = "fetching_catalog"
	StageEnriching Stage = "enriching"
	StageRanking   Stage = "ranking"
	StageRendering Stage = "rendering"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// Run fetches the configured playlist, resolves every view count, ranks the
// records, and writes them to out in cfg's output format.
//
// cfg must already be validated. A nil logger discards run logs.
func Run(ctx context.Context, cfg config.Config, client Client, out io.Writer, logger *log.Logger) (enrich.RankedList, error) {
	r := newRun(logger)
	runStart := time.Now()
	r.logf(
		"run start: playlist=%s maxResults=%d displayLimit=%d format=%s workers=%d maxRetries=%d timeout=%s rateLimitRPS=%g",
		cfg.PlaylistID,
		cfg.MaxResults,
		cfg.DisplayLimit,
		cfg.OutputFormat(),
		cfg.Pipeline.Workers,
		cfg.Pipeline.MaxRetries,
		cfg.Pipeline.RequestTimeout,
		cfg.Pipeline.RateLimitRPS,
	)

	list, err := r.rank(ctx, cfg, client)
	if err != nil {
		return nil, err
	}

	r.enter(StageRendering)
	renderStart := time.Now()
	if err := present.Write(out, list, cfg.DisplayLimit, cfg.OutputFormat()); err != nil {
		return nil, r.fail(err)
	}
	r.enter(StageDone)
	r.logf(
		"run complete: records=%d renderDuration=%s totalDuration=%s",
		len(list),
		time.Since(renderStart).Round(time.Millisecond),
		time.Since(runStart).Round(time.Millisecond),
	)
	return list, nil
}

// Rank runs the fetch, enrich and rank stages and returns the full ranked list
// without rendering it.
func Rank(ctx context.Context, cfg config.Config, client Client, logger *log.Logger) (enrich.RankedList, error) {
	return newRun(logger).rank(ctx, cfg, client)
}

type run struct {
	id     string
	logger *log.Logger
	stage  Stage
}

func newRun(logger *log.Logger) *run {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &run{id: uuid.NewString(), logger: logger}
}

func (r *run) logf(format string, args ...any) {
	prefix := make([]any, 0, len(args)+1)
	prefix = append(prefix, r.id)
	prefix = append(prefix, args...)
	r.logger.Printf("run=%s "+format, prefix...)
}

func (r *run) enter(s Stage) {
	r.logf("stage: from=%s to=%s", r.stageName(), s)
	r.stage = s
}

func (r *run) stageName() Stage {
	if r.stage == "" {
		return "start"
	}
	return r.stage
}

func (r *run) fail(err error) error {
	r.logf("stage: from=%s to=%s error=%q", r.stageName(), StageFailed, redact.Secrets(err.Error()))
	r.stage = StageFailed
	return err
}

func (r *run) rank(ctx context.Context, cfg config.Config, client Client) (enrich.RankedList, error) {
	r.enter(StageFetching)
	fetchStart := time.Now()
	src := PlaylistSource{Catalog: client, PlaylistID: cfg.PlaylistID, MaxResults: cfg.MaxResults}
	items, err := src.Load(ctx)
	if err != nil {
		return nil, r.fail(err)
	}
	r.logf("loaded %d playlist items in %s", len(items), time.Since(fetchStart).Round(time.Millisecond))

	r.enter(StageEnriching)
	enrichStart := time.Now()
	opts := pipeline.Options{
		Workers:        cfg.Pipeline.Workers,
		MaxRetries:     cfg.Pipeline.MaxRetries,
		RequestTimeout: cfg.Pipeline.RequestTimeout,
		RateLimitRPS:   cfg.Pipeline.RateLimitRPS,
	}
	counter := newTracedLookup(client, r.logger, r.id, opts)
	records, err := pipeline.EnrichWithProgress(ctx, items, counter, opts, func(completed, total int, rec enrich.Record) {
		r.logf(
			"item enriched: video=%q views=%d completed=%d/%d enrichElapsed=%s",
			rec.VideoID,
			rec.Views,
			completed,
			total,
			time.Since(enrichStart).Round(time.Millisecond),
		)
	})
	if err != nil {
		var ee *pipeline.EnrichError
		if errors.As(err, &ee) {
			r.logf("enrichment aborted: index=%d video=%q", ee.Index, ee.VideoID)
		}
		return nil, r.fail(err)
	}
	r.logf("enrichment complete: records=%d duration=%s", len(records), time.Since(enrichStart).Round(time.Millisecond))

	r.enter(StageRanking)
	list := pipeline.Rank(records)
	if len(list) > 0 {
		r.logf("ranked %d records: top=%q views=%d", len(list), list[0].VideoID, list[0].Views)
	}
	return list, nil
}

// Describe formats a one-line summary of a run's outcome for the CLI.
func Describe(list enrich.RankedList) string {
	if len(list) == 0 {
		return "no videos ranked"
	}
	return fmt.Sprintf("ranked %d videos; top %q with %s views", len(list), list[0].Title, present.FormatCount(list[0].Views))
}
