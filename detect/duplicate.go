package detect

import (
	"fmt"
	"sort"

	"github.com/varghele/quickmidi/timeline"
)

// duplicateNoteDetector finds pairs of note-ons with identical channel and
// pitch struck within epsilon of each other, typically double-triggers from
// a bouncing key contact.
type duplicateNoteDetector struct{}

func (duplicateNoteDetector) Name() string { return "duplicate-note" }

func (duplicateNoteDetector) Scan(tr *timeline.Track, opts Options) []Issue {
	type chKey struct {
		ch, key uint8
	}
	offOf := make(map[int]int) // note-on index -> paired off index
	for _, s := range pairNotes(tr) {
		offOf[s.On] = s.Off
	}

	groups := make(map[chKey][]int)
	for i := range tr.Events {
		e := &tr.Events[i]
		if e.Type == timeline.NoteOn {
			groups[chKey{e.Channel, e.Key}] = append(groups[chKey{e.Channel, e.Key}], i)
		}
	}

	var keys []chKey
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ch != keys[j].ch {
			return keys[i].ch < keys[j].ch
		}
		return keys[i].key < keys[j].key
	})

	var issues []Issue
	for _, k := range keys {
		ons := groups[k]
		for i := 0; i+1 < len(ons); i++ {
			a := &tr.Events[ons[i]]
			b := &tr.Events[ons[i+1]]
			if b.Time-a.Time > opts.DuplicateEpsilon {
				continue
			}

			// The lower-velocity strike is the one to merge away; ties
			// keep the earlier. Its paired off rides along so the merge
			// leaves no orphan.
			loser, winner := ons[i+1], ons[i]
			if a.Value < b.Value {
				loser, winner = ons[i], ons[i+1]
			}
			events := []int{loser, winner}
			if off, ok := offOf[loser]; ok && off >= 0 {
				events = append(events, off)
			}

			issues = append(issues, newIssue(Issue{
				Kind:     KindDuplicateNote,
				Severity: SeverityWarning,
				Track:    tr.Index,
				Events:   events,
				Detector: "duplicate-note",
				Time:     a.Time,
				Note:     fmt.Sprintf("note %d on channel %d struck twice within %.1f ms", k.key, k.ch, (b.Time-a.Time)*1000),
			}))
		}
	}
	return issues
}
