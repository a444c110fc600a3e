package app

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shpitdev/playlistrank/internal/enrich"
	"github.com/shpitdev/playlistrank/internal/pipeline"
	"github.com/shpitdev/playlistrank/pkg/pipeline/redact"
	"github.com/shpitdev/playlistrank/pkg/pipeline/worker"
)

// tracedLookup logs a request/response pair around every view count lookup,
// including retries.
type tracedLookup struct {
	next           enrich.ViewCounter
	logger         *log.Logger
	runID          string
	maxRetries     int
	requestTimeout time.Duration

	mu       sync.Mutex
	attempts map[string]int
}

func newTracedLookup(next enrich.ViewCounter, logger *log.Logger, runID string, opts pipeline.Options) *tracedLookup {
	return &tracedLookup{
		next:           next,
		logger:         logger,
		runID:          runID,
		maxRetries:     opts.MaxRetries,
		requestTimeout: opts.RequestTimeout,
		attempts:       make(map[string]int),
	}
}

func (t *tracedLookup) ViewCount(ctx context.Context, videoID string) (uint64, error) {
	videoID = strings.TrimSpace(videoID)
	attempt := t.nextAttempt(videoID)

	deadlineIn := "none"
	if d, ok := ctx.Deadline(); ok {
		deadlineIn = time.Until(d).Round(time.Millisecond).String()
	}
	t.logger.Printf(
		"run=%s lookup request: video=%q attempt=%d timeout=%s deadlineIn=%s",
		t.runID,
		videoID,
		attempt,
		t.requestTimeout,
		deadlineIn,
	)

	start := time.Now()
	views, err := t.next.ViewCount(ctx, videoID)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		maxRetries := worker.MaxExtraRetries(t.maxRetries, err)
		retryable := worker.IsTransient(err)
		willRetry := retryable && attempt <= maxRetries
		t.logger.Printf(
			"run=%s lookup response: video=%q attempt=%d duration=%s status=error retryable=%t willRetry=%t maxExtraRetries=%d error=%q",
			t.runID,
			videoID,
			attempt,
			elapsed,
			retryable,
			willRetry,
			maxRetries,
			redact.Secrets(err.Error()),
		)
		return views, err
	}

	t.logger.Printf(
		"run=%s lookup response: video=%q attempt=%d duration=%s status=ok views=%d",
		t.runID,
		videoID,
		attempt,
		elapsed,
		views,
	)
	return views, nil
}

func (t *tracedLookup) nextAttempt(videoID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[videoID]++
	return t.attempts[videoID]
}
