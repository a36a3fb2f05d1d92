// Package detect scans built timelines for structural defects in recorded
// MIDI performances. Detectors are pure and run independently per track.
package detect

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/varghele/quickmidi/timeline"
)

// Kind identifies a defect class.
type Kind string

const (
	KindStuckNote       Kind = "stuck-note"
	KindOverlap         Kind = "overlap"
	KindZeroLength      Kind = "zero-length"
	KindVelocityOutlier Kind = "velocity-outlier"
	KindTimingDrift     Kind = "timing-drift"
	KindDuplicateNote   Kind = "duplicate-note"

	// KindDetectorFailure reports a detector that panicked on one track.
	// It is informational and never auto-fixed.
	KindDetectorFailure Kind = "detector-failure"
)

// Severity grades an issue.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	}
	return "info"
}

// Issue is one detected defect. Issues are never mutated after creation;
// the aligner returns annotated copies and the fixer supersedes them.
type Issue struct {
	ID       string
	Kind     Kind
	Severity Severity
	Track    int
	Events   []int // indices into the track's event slice, primary first
	Detector string
	Time     float64 // time of the primary affected event
	Note     string

	// Positional data the synthesizer needs so it never re-scans.
	ProposedTime float64 // snap/trim/extend target, time-domain fixes only
	Deadline     float64 // stuck notes: earliest of next same-pitch on / track end
	WindowMean   float64 // velocity outliers: local window statistics
	WindowStd    float64

	// Audio cross-reference annotations.
	AudioChecked    bool
	AudioConfidence float64 // in [0,1]: support for applying the fix
	PitchMismatch   bool
}

// newIssue stamps an issue with a fresh id.
func newIssue(is Issue) Issue {
	is.ID = uuid.NewString()
	return is
}

// Key returns the stable identity of an issue across re-detection: kind,
// track and the source ids of the affected events. Event indices shift when
// fixes mutate a track, source ids do not.
func (is *Issue) Key(tl *timeline.Timeline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d", is.Kind, is.Track)
	for _, idx := range is.Events {
		if idx >= 0 && idx < len(tl.Tracks[is.Track].Events) {
			fmt.Fprintf(&b, "|%d", tl.Tracks[is.Track].Events[idx].Source)
		}
	}
	return b.String()
}
