// Package engine is the public surface of the quickmidi analysis and
// correction core. The surrounding interface layer hands it raw events and
// an optional reference recording; it hands back an immutable report.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/varghele/quickmidi/audioref"
	"github.com/varghele/quickmidi/detect"
	"github.com/varghele/quickmidi/fix"
	"github.com/varghele/quickmidi/report"
	"github.com/varghele/quickmidi/timeline"
)

// Analyze runs detection only: no audio cross-reference, no mutation. The
// report's corrected track set is the input timeline itself.
func Analyze(ctx context.Context, raw []timeline.RawEvent, tempo timeline.TempoMap, tpqn uint16, opts Options) (*report.AnalysisReport, error) {
	logger := opts.logger()

	tl, err := timeline.Build(raw, tempo, tpqn)
	if err != nil {
		return nil, err
	}
	logger.Debug("timeline built", "tracks", len(tl.Tracks), "events", tl.EventCount())

	issues, err := detect.Run(ctx, tl, opts.detectOptions(tl))
	if err != nil {
		return nil, err
	}
	logger.Info("analysis complete", "issues", len(issues))

	return report.New(tl, tl, issues, nil, nil, nil), nil
}

// AnalyzeAndFix runs the full pipeline: detection, optional audio
// cross-reference, fix synthesis and transactional application. A nil clip
// means MIDI-only analysis; audio failures degrade to MIDI-only and are
// reported as warnings, never as errors.
func AnalyzeAndFix(ctx context.Context, raw []timeline.RawEvent, tempo timeline.TempoMap, tpqn uint16, clip *audioref.Clip, opts Options, policy fix.Policy) (*report.AnalysisReport, error) {
	logger := opts.logger()

	tl, err := timeline.Build(raw, tempo, tpqn)
	if err != nil {
		return nil, err
	}
	dopts := opts.detectOptions(tl)

	issues, err := detect.Run(ctx, tl, dopts)
	if err != nil {
		return nil, err
	}
	logger.Debug("detection complete", "issues", len(issues))

	var warnings []string
	if clip != nil {
		annotated, warn := crossReference(ctx, clip, tl, issues, opts)
		if warn != "" {
			warnings = append(warnings, warn)
			logger.Warn("audio cross-reference degraded", "reason", warn)
		} else {
			issues = annotated
		}
	}

	if !policy.Any() {
		logger.Info("auto-fix disabled by policy")
		return report.New(tl, tl, issues, nil, nil, warnings), nil
	}

	fixes := fix.Synthesize(tl, issues, policy)
	logger.Debug("fixes synthesized", "count", len(fixes))

	res, err := fix.Apply(ctx, tl, fixes, issues, dopts)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, res.Warnings...)
	logger.Info("fixes applied", "applied", len(res.Applied), "rejected", len(res.Rejected))

	return report.New(tl, res.Timeline, issues, res.Applied, res.Rejected, warnings), nil
}

// ExportCorrectedTimeline materializes the corrected track set as one
// ordered event sequence for the caller's MIDI codec to persist. With no
// fixes applied it reproduces the built timeline exactly.
func ExportCorrectedTimeline(r *report.AnalysisReport) []timeline.Event {
	return r.Corrected.Flatten()
}

// crossReference runs extraction and alignment as a cancellable background
// task under the configured wall-clock deadline. Any failure, including
// cancellation and timeout, returns the degraded-mode warning instead of
// annotations.
func crossReference(ctx context.Context, clip *audioref.Clip, tl *timeline.Timeline, issues []detect.Issue, opts Options) ([]detect.Issue, string) {
	timeout := opts.AudioTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		issues []detect.Issue
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		feats, err := audioref.Extract(actx, clip)
		if err != nil {
			ch <- outcome{err: err}
			return
		}
		annotated, err := audioref.Align(actx, feats, tl, issues, opts.alignOptions())
		ch <- outcome{issues: annotated, err: err}
	}()

	// The channel is buffered so the worker can always drain; the pipeline
	// never waits past the deadline for it.
	var out outcome
	select {
	case out = <-ch:
	case <-actx.Done():
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			return nil, "audio cross-reference timed out; continuing MIDI-only"
		}
		return nil, "audio cross-reference cancelled; continuing MIDI-only"
	}
	if out.err != nil {
		var extractErr *audioref.ExtractionError
		switch {
		case errors.As(out.err, &extractErr):
			return nil, fmt.Sprintf("audio cross-reference unavailable: %s", extractErr.Reason)
		case errors.Is(out.err, context.DeadlineExceeded):
			return nil, "audio cross-reference timed out; continuing MIDI-only"
		case errors.Is(out.err, context.Canceled):
			return nil, "audio cross-reference cancelled; continuing MIDI-only"
		default:
			return nil, fmt.Sprintf("audio cross-reference failed: %v", out.err)
		}
	}
	return out.issues, ""
}
