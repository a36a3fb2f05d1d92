package detect

import (
	"fmt"
	"sort"

	"github.com/varghele/quickmidi/timeline"
)

// overlapDetector finds notes of the same pitch and channel whose sounding
// intervals intersect: the earlier note's off lands after the later note's
// on. Ambiguity over which off belongs to which on is already resolved by
// proximity in pairNotes.
type overlapDetector struct{}

func (overlapDetector) Name() string { return "overlap" }

func (overlapDetector) Scan(tr *timeline.Track, opts Options) []Issue {
	type chKey struct {
		ch, key uint8
	}
	groups := make(map[chKey][]noteSpan)
	for _, s := range pairNotes(tr) {
		on := &tr.Events[s.On]
		k := chKey{on.Channel, on.Key}
		groups[k] = append(groups[k], s)
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
		spans := groups[k]
		sort.Slice(spans, func(i, j int) bool {
			return tr.Events[spans[i].On].Time < tr.Events[spans[j].On].Time
		})
		for i := 0; i+1 < len(spans); i++ {
			a, b := spans[i], spans[i+1]
			if a.Off < 0 {
				continue // stuck, not an overlap
			}
			aOff := &tr.Events[a.Off]
			bOn := &tr.Events[b.On]
			if aOff.Time > bOn.Time {
				issues = append(issues, newIssue(Issue{
					Kind:         KindOverlap,
					Severity:     SeverityWarning,
					Track:        tr.Index,
					Events:       []int{a.Off, b.On, a.On},
					Detector:     "overlap",
					Time:         tr.Events[a.On].Time,
					ProposedTime: bOn.Time - opts.TickSeconds,
					Note:         fmt.Sprintf("note %d on channel %d still sounding when restruck", k.key, k.ch),
				}))
			}
		}
	}
	return issues
}
