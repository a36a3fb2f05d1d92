package detect

import (
	"fmt"

	"github.com/varghele/quickmidi/timeline"
)

// zeroLengthDetector finds notes whose off lands at or before their on,
// which render as silence or a click on most synths.
type zeroLengthDetector struct{}

func (zeroLengthDetector) Name() string { return "zero-length" }

func (zeroLengthDetector) Scan(tr *timeline.Track, opts Options) []Issue {
	var issues []Issue
	for _, s := range pairNotes(tr) {
		if s.Off < 0 {
			continue
		}
		on := &tr.Events[s.On]
		off := &tr.Events[s.Off]
		if off.Time > on.Time {
			continue
		}
		issues = append(issues, newIssue(Issue{
			Kind:         KindZeroLength,
			Severity:     SeverityCritical,
			Track:        tr.Index,
			Events:       []int{s.On, s.Off},
			Detector:     "zero-length",
			Time:         on.Time,
			ProposedTime: on.Time + opts.TickSeconds,
			Note:         fmt.Sprintf("note %d on channel %d has zero or negative length", on.Key, on.Channel),
		}))
	}
	return issues
}
