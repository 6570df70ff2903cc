package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/wikipub/internal/preserve"
	"github.com/dgallion1/wikipub/internal/source"
	"github.com/dgallion1/wikipub/internal/stats"
	"github.com/dgallion1/wikipub/internal/wiki"
)

// PageStore reads and writes wiki pages. *wiki.Client implements it.
type PageStore interface {
	GetPage(ctx context.Context, pageID string) (*wiki.Page, error)
	UpdatePage(ctx context.Context, page *wiki.Page, body, message string) (*wiki.Page, error)
}

const updateMessage = "Published by wikipub"

// Worker processes a single publish job.
type Worker struct {
	pages   PageStore
	engine  *preserve.Engine
	stats   *stats.PreserveStats
	log     *slog.Logger
	srcOpts source.Options

	// backoff is swapped out in tests.
	backoff func(attempt int) time.Duration
}

func NewWorker(pages PageStore, engine *preserve.Engine, st *stats.PreserveStats, log *slog.Logger, srcOpts source.Options) *Worker {
	return &Worker{
		pages:   pages,
		engine:  engine,
		stats:   st,
		log:     log,
		srcOpts: srcOpts,
		backoff: Backoff,
	}
}

// Process renders the job's source, carries the page's inline comments over
// to the new body and writes it as the next page version.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "page_id", job.PageID, "filename", job.Filename)

	// Phase 1: Render
	job.SetStatus(StatusRendering, "rendering")
	r, err := source.ForFile(job.Filename, w.srcOpts)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "rendering")
		return
	}
	rendered, err := r.Render(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("render failed", "error", err)
		job.AddError(fmt.Sprintf("render: %s", err))
		job.SetStatus(StatusFailed, "rendering")
		return
	}
	job.ContentHash = ContentHashHex([]byte(rendered.Body))

	// A version conflict means someone edited the page between our read and
	// write; start again from a fresh read.
	for attempt := range MaxRetries {
		done, err := w.publish(ctx, job, rendered.Body, log)
		if done {
			return
		}
		if !errors.Is(err, wiki.ErrVersionConflict) {
			break
		}
		log.Warn("page changed during publish, retrying", "attempt", attempt)
	}
	job.AddError("page kept changing during publish")
	job.SetStatus(StatusFailed, "updating")
}

// publish runs one fetch-preserve-update cycle. It reports done when the job
// reached a final state; otherwise err is a version conflict.
func (w *Worker) publish(ctx context.Context, job *Job, body string, log *slog.Logger) (bool, error) {
	// Phase 2: Fetch
	job.SetStatus(StatusFetching, "fetching")
	current, err := withRetry(ctx, w, log, "get page", func() (*wiki.Page, error) {
		return w.pages.GetPage(ctx, job.PageID)
	})
	if err != nil {
		log.Error("fetch failed", "error", err)
		job.AddError(fmt.Sprintf("fetch: %s", err))
		job.SetStatus(StatusFailed, "fetching")
		return true, nil
	}

	// Phase 3: Preserve
	job.SetStatus(StatusPreserving, "preserving")
	res, err := w.engine.Preserve(current.Body, body)
	var engErr *preserve.EngineError
	switch {
	case err == nil:
		job.SetReport(res.Report)
		if w.stats != nil {
			w.stats.Record(res.Duration, res.Report.PreservedCount(), res.Report.DroppedCount())
		}
	case errors.As(err, &engErr) && engErr.Which == preserve.InputOld && job.Force:
		log.Warn("publishing without comment preservation", "error", err)
		job.AddError(fmt.Sprintf("preserve skipped: %s", err))
		res = preserve.Result{Body: body}
	default:
		log.Error("preserve failed", "error", err)
		job.AddError(fmt.Sprintf("preserve: %s", err))
		job.SetStatus(StatusFailed, "preserving")
		return true, nil
	}

	if res.Body == current.Body {
		log.Info("page body unchanged, skipping update", "version", current.Version)
		job.SetVersions(current.Version, current.Version)
		job.SetStatus(StatusUnchanged, "done")
		return true, nil
	}

	// Phase 4: Update
	job.SetStatus(StatusUpdating, "updating")
	target := *current
	if job.Title != "" {
		target.Title = job.Title
	}
	updated, err := withRetry(ctx, w, log, "update page", func() (*wiki.Page, error) {
		return w.pages.UpdatePage(ctx, &target, res.Body, updateMessage)
	})
	if errors.Is(err, wiki.ErrVersionConflict) {
		return false, err
	}
	if err != nil {
		log.Error("update failed", "error", err)
		job.AddError(fmt.Sprintf("update: %s", err))
		job.SetStatus(StatusFailed, "updating")
		return true, nil
	}

	job.SetVersions(current.Version, updated.Version)
	log.Info("page published",
		"from_version", current.Version,
		"to_version", updated.Version,
		"summary", res.Report.Summary(),
	)
	job.SetStatus(StatusCompleted, "done")
	return true, nil
}

// withRetry calls fn until it succeeds, fails with a non-retryable error or
// MaxRetries attempts are used.
func withRetry[T any](ctx context.Context, w *Worker, log *slog.Logger, op string, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error
	for attempt := range MaxRetries {
		result, lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) {
			return result, lastErr
		}
		log.Warn("retryable wiki error", "op", op, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(retryDelay(lastErr, attempt, w.backoff)):
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}
	return result, lastErr
}
