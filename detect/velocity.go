package detect

import (
	"fmt"
	"math"

	"github.com/varghele/quickmidi/timeline"
)

// minVelocityNotes is the smallest sliding window worth computing
// statistics over; shorter tracks only get the range check.
const minVelocityNotes = 8

// velocityOutlierDetector flags note-on velocities outside the MIDI range
// or far from the local velocity distribution in a sliding window.
type velocityOutlierDetector struct{}

func (velocityOutlierDetector) Name() string { return "velocity-outlier" }

func (velocityOutlierDetector) Scan(tr *timeline.Track, opts Options) []Issue {
	var ons []int
	for i := range tr.Events {
		if tr.Events[i].Type == timeline.NoteOn {
			ons = append(ons, i)
		}
	}

	var issues []Issue
	for oi, idx := range ons {
		e := &tr.Events[idx]
		v := float64(e.Value)
		mean, std := windowStats(tr, ons, oi, opts.VelocityWindow)

		if e.Value < 1 || e.Value > 127 {
			issues = append(issues, newIssue(Issue{
				Kind:       KindVelocityOutlier,
				Severity:   SeverityWarning,
				Track:      tr.Index,
				Events:     []int{idx},
				Detector:   "velocity-outlier",
				Time:       e.Time,
				WindowMean: mean,
				WindowStd:  std,
				Note:       fmt.Sprintf("velocity %d outside valid range [1,127]", e.Value),
			}))
			continue
		}

		if len(ons) < minVelocityNotes || std == 0 {
			continue
		}
		if math.Abs(v-mean) > opts.VelocitySigma*std {
			issues = append(issues, newIssue(Issue{
				Kind:       KindVelocityOutlier,
				Severity:   SeverityWarning,
				Track:      tr.Index,
				Events:     []int{idx},
				Detector:   "velocity-outlier",
				Time:       e.Time,
				WindowMean: mean,
				WindowStd:  std,
				Note:       fmt.Sprintf("velocity %d is %.1f sigma from local mean %.1f", e.Value, math.Abs(v-mean)/std, mean),
			}))
		}
	}
	return issues
}

// windowStats computes mean and standard deviation of note-on velocities in
// a window centered on position oi of the note list.
func windowStats(tr *timeline.Track, ons []int, oi, window int) (mean, std float64) {
	if window <= 0 {
		window = 16
	}
	lo := oi - window/2
	if lo < 0 {
		lo = 0
	}
	hi := lo + window
	if hi > len(ons) {
		hi = len(ons)
	}
	n := float64(hi - lo)
	if n == 0 {
		return 0, 0
	}
	for _, idx := range ons[lo:hi] {
		mean += float64(tr.Events[idx].Value)
	}
	mean /= n
	for _, idx := range ons[lo:hi] {
		d := float64(tr.Events[idx].Value) - mean
		std += d * d
	}
	std = math.Sqrt(std / n)
	return mean, std
}
