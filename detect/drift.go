package detect

import (
	"fmt"
	"math"

	"github.com/varghele/quickmidi/timeline"
)

// timingDriftDetector flags note onsets that sit off the rhythmic grid by
// more than the tolerance. Informational only; the proposed snapped time is
// attached so the fixer can quantize without recomputing the grid.
type timingDriftDetector struct{}

func (timingDriftDetector) Name() string { return "timing-drift" }

func (timingDriftDetector) Scan(tr *timeline.Track, opts Options) []Issue {
	step := opts.GridStep()
	if step <= 0 {
		return nil
	}

	var issues []Issue
	for _, s := range pairNotes(tr) {
		e := &tr.Events[s.On]
		snap := math.Round(e.Time/step) * step
		dev := math.Abs(e.Time - snap)
		if dev <= opts.DriftTolerance {
			continue
		}
		// The paired off rides along so quantizing preserves duration.
		events := []int{s.On}
		if s.Off >= 0 && tr.Events[s.Off].Time > e.Time {
			events = append(events, s.Off)
		}
		issues = append(issues, newIssue(Issue{
			Kind:         KindTimingDrift,
			Severity:     SeverityInfo,
			Track:        tr.Index,
			Events:       events,
			Detector:     "timing-drift",
			Time:         e.Time,
			ProposedTime: snap,
			Note:         fmt.Sprintf("onset %.0f ms off the 1/%d grid", dev*1000, opts.GridDivision),
		}))
	}
	return issues
}
