// Package preserve carries inline comment markers from a published wiki page
// body over to a freshly rendered body for the same page.
package preserve

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/wikipub/internal/matcher"
	"github.com/dgallion1/wikipub/internal/storage"
	"github.com/dgallion1/wikipub/internal/transfer"
)

// Stage names the step that failed.
type Stage string

const (
	StageParse    Stage = "parse"
	StageTransfer Stage = "transfer"
)

// Input names one of the two documents.
type Input string

const (
	InputOld Input = "old"
	InputNew Input = "new"
)

// EngineError wraps a fatal failure. Err is a *storage.ParseError for
// StageParse and a *transfer.CollisionError for StageTransfer.
type EngineError struct {
	Stage Stage
	Which Input
	Err   error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("preserve %s (%s document): %v", e.Stage, e.Which, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Result is the outcome of a successful Preserve.
type Result struct {
	Body     string
	Report   transfer.Report
	Duration time.Duration
}

// Engine runs comment preservation with fixed matching options. It holds no
// per-call state and may be used from several goroutines.
type Engine struct {
	opts   matcher.Options
	logger *slog.Logger
}

// NewEngine returns an engine. A nil logger discards output.
func NewEngine(opts matcher.Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{opts: opts, logger: logger}
}

// Options returns the engine's matching options.
func (e *Engine) Options() matcher.Options { return e.opts }

// Preserve parses both bodies, matches every marker of oldText against
// newText, inserts the matched markers and serializes the result. Unmatched
// markers are reported, not returned as errors.
func (e *Engine) Preserve(oldText, newText string) (Result, error) {
	start := time.Now()

	oldTree, err := storage.Parse(oldText)
	if err != nil {
		return Result{}, &EngineError{Stage: StageParse, Which: InputOld, Err: err}
	}
	newTree, err := storage.Parse(newText)
	if err != nil {
		return Result{}, &EngineError{Stage: StageParse, Which: InputNew, Err: err}
	}

	records := matcher.MatchAll(oldTree, newTree, e.opts)
	report, err := transfer.Apply(newTree, records)
	if err != nil {
		return Result{}, &EngineError{Stage: StageTransfer, Which: InputOld, Err: err}
	}

	body := storage.Serialize(newTree)
	elapsed := time.Since(start)
	for _, d := range report.Dropped {
		e.logger.Debug("comment dropped", "ref_id", d.RefID, "reason", d.Reason, "best_score", d.Score)
	}
	e.logger.Info("comments preserved",
		"total", report.Total,
		"preserved", report.PreservedCount(),
		"dropped", report.DroppedCount(),
		"duration_ms", elapsed.Milliseconds(),
	)
	return Result{Body: body, Report: report, Duration: elapsed}, nil
}

// PreserveComments is the single-call form of Engine.Preserve. A threshold
// <= 0 selects matcher.DefaultThreshold.
func PreserveComments(oldText, newText string, threshold float64) (string, transfer.Report, error) {
	res, err := NewEngine(matcher.Options{Threshold: threshold}, nil).Preserve(oldText, newText)
	if err != nil {
		return "", transfer.Report{}, err
	}
	return res.Body, res.Report, nil
}
