package detect

import (
	"fmt"
	"math"

	"github.com/varghele/quickmidi/timeline"
)

// stuckNoteDetector finds note-ons that never terminate: no matching
// note-off before end of track, or a later note-on of the same pitch and
// channel steals the only off under running-status ambiguity.
type stuckNoteDetector struct{}

func (stuckNoteDetector) Name() string { return "stuck-note" }

func (stuckNoteDetector) Scan(tr *timeline.Track, opts Options) []Issue {
	var issues []Issue
	trackEnd := 0.0
	if n := len(tr.Events); n > 0 {
		trackEnd = tr.Events[n-1].Time
	}

	for _, s := range pairNotes(tr) {
		if s.Off >= 0 {
			continue
		}
		on := &tr.Events[s.On]

		// The synthetic off can go no later than the next same-pitch
		// note-on; record it so the synthesizer never re-scans. A stuck
		// note that is itself the last event has no bound and the
		// duration cap decides.
		deadline := trackEnd
		for j := s.On + 1; j < len(tr.Events); j++ {
			e := &tr.Events[j]
			if e.Type == timeline.NoteOn && e.Channel == on.Channel && e.Key == on.Key {
				deadline = e.Time
				break
			}
		}
		if deadline <= on.Time {
			deadline = math.Inf(1)
		}

		issues = append(issues, newIssue(Issue{
			Kind:     KindStuckNote,
			Severity: SeverityCritical,
			Track:    tr.Index,
			Events:   []int{s.On},
			Detector: "stuck-note",
			Time:     on.Time,
			Deadline: deadline,
			Note:     fmt.Sprintf("note %d on channel %d never receives a note-off", on.Key, on.Channel),
		}))
	}
	return issues
}
