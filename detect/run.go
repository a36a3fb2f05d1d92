package detect

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/varghele/quickmidi/timeline"
)

// Detector scans a single track for one defect class. Implementations are
// pure: they never mutate the track and share no state, so any number can
// run concurrently.
type Detector interface {
	Name() string
	Scan(tr *timeline.Track, opts Options) []Issue
}

// Registry returns the detectors in their fixed canonical order. The order
// determines issue ordering within a track, so it never changes at runtime.
func Registry() []Detector {
	return []Detector{
		stuckNoteDetector{},
		overlapDetector{},
		zeroLengthDetector{},
		velocityOutlierDetector{},
		timingDriftDetector{},
		duplicateNoteDetector{},
	}
}

// Run executes every registered detector against every track, one goroutine
// per track, and joins before returning. A detector that panics on one
// track is reported as a warning issue for that track; sibling tracks are
// never affected. Output ordering is deterministic: tracks ascending, then
// time ascending, ties kept in registry order.
func Run(ctx context.Context, tl *timeline.Timeline, opts Options) ([]Issue, error) {
	perTrack := make([][]Issue, len(tl.Tracks))

	g, ctx := errgroup.WithContext(ctx)
	for i := range tl.Tracks {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for _, d := range Registry() {
				perTrack[i] = append(perTrack[i], scanSafe(d, &tl.Tracks[i], opts)...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Issue
	for _, issues := range perTrack {
		sort.SliceStable(issues, func(a, b int) bool { return issues[a].Time < issues[b].Time })
		out = append(out, issues...)
	}
	return out, nil
}

// scanSafe isolates a detector failure to the track it happened on.
func scanSafe(d Detector, tr *timeline.Track, opts Options) (issues []Issue) {
	defer func() {
		if r := recover(); r != nil {
			issues = []Issue{newIssue(Issue{
				Kind:     KindDetectorFailure,
				Severity: SeverityWarning,
				Track:    tr.Index,
				Detector: d.Name(),
				Note:     fmt.Sprintf("detector %s failed on track %d: %v", d.Name(), tr.Index, r),
			})}
		}
	}()
	return d.Scan(tr, opts)
}
