package fix

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/varghele/quickmidi/detect"
	"github.com/varghele/quickmidi/timeline"
)

// Op names a corrective operation.
type Op string

const (
	OpQuantizeTime    Op = "quantize-time"
	OpClampVelocity   Op = "clamp-velocity"
	OpMergeDuplicates Op = "merge-duplicates"
	OpInsertNoteOff   Op = "insert-note-off"
	OpDropEvent       Op = "drop-event"
)

// Fix is one corrective edit synthesized from an issue. Target events are
// referenced by source id, which stays stable while the applier reshuffles
// the candidate timeline.
type Fix struct {
	ID      string
	IssueID string
	Kind    detect.Kind
	Op      Op
	Track   int

	// Sources lists target event source ids, primary first. For
	// quantize-time the primary moves to Time and the rest shift by the
	// same delta; for drops every listed event is removed; for
	// insert-note-off the primary is the stuck note-on to terminate.
	Sources []int

	Time     float64 // new or inserted event time, time ops only
	Velocity uint8   // clamp target, velocity ops only

	// TargetTime orders fix application (ascending time of the issue).
	TargetTime float64

	Note string

	// Event delta, recorded by the applier. Before is nil for inserts,
	// After is nil for drops.
	Before *timeline.Event
	After  *timeline.Event
}

// audioSupports is the confidence above which the audio cross-reference is
// taken to agree that a fix is warranted, and below which (when checked) it
// is taken to contradict one.
const audioSupports = 0.5

// Synthesize proposes exactly one fix per fixable issue. Issues whose kind
// the policy disables, informational detector failures, and drift snaps the
// audio contradicts are skipped.
func Synthesize(tl *timeline.Timeline, issues []detect.Issue, policy Policy) []Fix {
	var fixes []Fix
	for i := range issues {
		is := &issues[i]
		if !policy.Enabled(is.Kind) {
			continue
		}
		if f, ok := synthOne(tl, is, policy); ok {
			f.ID = uuid.NewString()
			fixes = append(fixes, f)
		}
	}
	return fixes
}

func synthOne(tl *timeline.Timeline, is *detect.Issue, policy Policy) (Fix, bool) {
	tr := &tl.Tracks[is.Track]
	f := Fix{
		IssueID:    is.ID,
		Kind:       is.Kind,
		Track:      is.Track,
		TargetTime: is.Time,
		Sources:    sources(tr, is.Events),
	}

	switch is.Kind {
	case detect.KindStuckNote:
		on := &tr.Events[is.Events[0]]
		maxDur := policy.MaxNoteDuration
		if maxDur <= 0 {
			maxDur = 5.0
		}
		off := math.Min(is.Deadline, on.Time+maxDur)
		if off <= on.Time {
			off = on.Time + tl.TickDuration(on.Time)
		}
		f.Op = OpInsertNoteOff
		f.Time = off
		f.Note = fmt.Sprintf("insert note-off for note %d at %.3fs", on.Key, off)
		return f, true

	case detect.KindOverlap:
		earlierOn := &tr.Events[is.Events[2]]
		trimTo := is.ProposedTime
		if trimTo <= earlierOn.Time {
			trimTo = earlierOn.Time + tl.TickDuration(earlierOn.Time)
		}
		f.Op = OpQuantizeTime
		f.Sources = f.Sources[:1] // only the earlier note-off moves
		f.Time = trimTo
		f.Note = fmt.Sprintf("trim overlapping note-off to %.3fs", trimTo)
		return f, true

	case detect.KindZeroLength:
		if policy.DropSilentZeroLength && is.AudioChecked && is.AudioConfidence >= audioSupports {
			f.Op = OpDropEvent
			f.Note = "drop zero-length note absent from the audio"
			return f, true
		}
		on := &tr.Events[is.Events[0]]
		f.Op = OpQuantizeTime
		f.Sources = []int{tr.Events[is.Events[1]].Source}
		f.Time = is.ProposedTime
		if f.Time <= on.Time {
			f.Time = on.Time + tl.TickDuration(on.Time)
		}
		f.Note = fmt.Sprintf("extend note %d to minimum duration", on.Key)
		return f, true

	case detect.KindVelocityOutlier:
		e := &tr.Events[is.Events[0]]
		target, ok := clampVelocity(e.Value, is, policy)
		if !ok || target == e.Value {
			return Fix{}, false
		}
		f.Op = OpClampVelocity
		f.Velocity = target
		f.Note = fmt.Sprintf("clamp velocity %d to %d", e.Value, target)
		return f, true

	case detect.KindTimingDrift:
		// A corroborated MIDI onset is left alone: the performance was
		// where the audio says it was.
		if is.AudioChecked && is.AudioConfidence < audioSupports {
			return Fix{}, false
		}
		f.Op = OpQuantizeTime
		f.Time = is.ProposedTime
		f.Note = fmt.Sprintf("snap onset %.3fs to grid point %.3fs", is.Time, is.ProposedTime)
		return f, true

	case detect.KindDuplicateNote:
		// Drop the losing strike and its off; the winner keeps sounding.
		f.Op = OpMergeDuplicates
		f.Sources = append(f.Sources[:1], f.Sources[2:]...)
		f.Note = fmt.Sprintf("drop duplicate strike of note %d", tr.Events[is.Events[0]].Key)
		return f, true
	}
	return Fix{}, false
}

// clampVelocity picks the corrected velocity for an outlier.
func clampVelocity(v uint8, is *detect.Issue, policy Policy) (uint8, bool) {
	if v < 1 {
		return 1, true
	}
	if v > 127 {
		return 127, true
	}
	if !policy.SigmaClamp || is.WindowStd == 0 {
		return 0, false
	}
	lo := is.WindowMean - 2*is.WindowStd
	hi := is.WindowMean + 2*is.WindowStd
	t := float64(v)
	if t < lo {
		t = lo
	} else if t > hi {
		t = hi
	}
	if t < 1 {
		t = 1
	} else if t > 127 {
		t = 127
	}
	return uint8(t + 0.5), true
}

// sources maps track event indices to their stable source ids.
func sources(tr *timeline.Track, events []int) []int {
	out := make([]int, 0, len(events))
	for _, idx := range events {
		if idx >= 0 && idx < len(tr.Events) {
			out = append(out, tr.Events[idx].Source)
		}
	}
	return out
}
