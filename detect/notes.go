package detect

import "github.com/varghele/quickmidi/timeline"

// noteSpan pairs a note-on with its terminating note-off within one track.
// Off is -1 for a note that never ends.
type noteSpan struct {
	On, Off int
}

// pairNotes walks a track in timeline order and matches note-offs to open
// notes of the same channel and pitch. When several are open, the most
// recent one wins: the nearest unmatched note-on is the least surprising
// owner under running-status ambiguity.
func pairNotes(tr *timeline.Track) []noteSpan {
	type chKey struct {
		ch, key uint8
	}
	open := make(map[chKey][]int)   // event index stack per channel+pitch
	orphan := make(map[chKey][]int) // note-offs seen before any open note
	spanAt := make(map[int]int)     // note-on event index -> span index
	var spans []noteSpan

	for i := range tr.Events {
		e := &tr.Events[i]
		k := chKey{e.Channel, e.Key}
		switch e.Type {
		case timeline.NoteOn:
			spanAt[i] = len(spans)
			spans = append(spans, noteSpan{On: i, Off: -1})
			open[k] = append(open[k], i)
		case timeline.NoteOff:
			stack := open[k]
			if len(stack) == 0 {
				orphan[k] = append(orphan[k], i)
				continue
			}
			on := stack[len(stack)-1]
			open[k] = stack[:len(stack)-1]
			spans[spanAt[on]].Off = i
		}
	}

	// A note-off that sorts before its note-on (equal or reversed
	// timestamps) leaves an orphan off and a stuck on. Pair each orphan
	// with the first later unmatched on of the same channel and pitch so
	// the pair reads as a zero-length note rather than two defects.
	for si := range spans {
		s := &spans[si]
		if s.Off >= 0 {
			continue
		}
		on := &tr.Events[s.On]
		k := chKey{on.Channel, on.Key}
		for oi, off := range orphan[k] {
			if off >= 0 && tr.Events[off].Time <= on.Time {
				s.Off = off
				orphan[k][oi] = -1
				break
			}
		}
	}
	return spans
}
