package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shpitdev/playlistrank/internal/enrich"
	"github.com/shpitdev/playlistrank/pkg/errs"
	"github.com/shpitdev/playlistrank/pkg/pipeline/worker"
)

type Options struct {
	// Workers bounds the number of view count lookups in flight.
	Workers        int
	MaxRetries     int
	RequestTimeout time.Duration
	RateLimitRPS   float64
}

// EnrichError identifies the first lookup that failed a fail-fast run.
type EnrichError struct {
	Index   int
	VideoID string
	Err     error
}

func (e *EnrichError) Error() string {
	if e == nil {
		return "enrichment failed"
	}
	return fmt.Sprintf("enrich item %d (%s): %v", e.Index, e.VideoID, e.Err)
}

func (e *EnrichError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Progress is called once per successfully enriched record, in completion order.
type Progress func(completed, total int, rec enrich.Record)

// Enrich resolves the view count of every item concurrently and returns one record
// per item, ordered by playlist position.
//
// Enrichment is fail-fast: the first failed lookup cancels the rest and Enrich
// returns an *EnrichError and no records.
func Enrich(ctx context.Context, items []enrich.Item, counter enrich.ViewCounter, opts Options) ([]enrich.Record, error) {
	return EnrichWithProgress(ctx, items, counter, opts, nil)
}

// EnrichWithProgress is Enrich with a per-record completion callback.
func EnrichWithProgress(
	ctx context.Context,
	items []enrich.Item,
	counter enrich.ViewCounter,
	opts Options,
	progress Progress,
) ([]enrich.Record, error) {
	lookup := func(ctx context.Context, it enrich.Item) (uint64, error) {
		id := strings.TrimSpace(it.VideoID)
		if id == "" {
			return 0, errs.Validation("empty video id")
		}
		return counter.ViewCount(ctx, id)
	}

	var onResult func(worker.Result[enrich.Item, uint64]) error
	if progress != nil {
		completed := 0
		onResult = func(res worker.Result[enrich.Item, uint64]) error {
			if res.Err != nil {
				return nil
			}
			completed++
			progress(completed, len(items), enrich.NewRecord(res.Index, res.Input, res.Output))
			return nil
		}
	}

	out, err := worker.ProcessAllWithCallback(ctx, items, lookup, onResult, worker.Options{
		Workers:           opts.Workers,
		MaxRetries:        opts.MaxRetries,
		RequestTimeout:    opts.RequestTimeout,
		RateLimitRPS:      opts.RateLimitRPS,
		FailurePolicy:     worker.FailurePolicyFailFast,
		BackoffInitial:    200 * time.Millisecond,
		BackoffMax:        2 * time.Second,
		BackoffJitterFrac: 0.2,
	})
	if err != nil {
		var itemErr *worker.ItemError[enrich.Item]
		if errors.As(err, &itemErr) {
			return nil, &EnrichError{Index: itemErr.Index, VideoID: itemErr.Input.VideoID, Err: itemErr.Err}
		}
		return nil, err
	}

	records := make([]enrich.Record, 0, len(out))
	for _, res := range out {
		records = append(records, enrich.NewRecord(res.Index, res.Input, res.Output))
	}
	return records, nil
}
