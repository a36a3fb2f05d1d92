package timeline

import (
	"fmt"
	"sort"
)

// RawEvent is an unplaced event as read from a MIDI source, still in ticks.
type RawEvent struct {
	Tick    uint32
	Track   int
	Channel uint8
	Type    EventType
	Key     uint8
	Value   uint8
	Bytes   []byte
}

// Timeline is the built track set. Analysis operates purely on the
// absolute-time events; the tick mapping is retained privately so moved or
// synthesized events can be re-ticked for the external MIDI codec.
type Timeline struct {
	Tracks []Track
	TPQN   uint16

	tempo      *tempoTable
	nextSource int
}

// Build converts raw tick events plus a tempo map into sorted absolute-time
// tracks. It fails with MalformedTimelineError on non-monotonic tempo
// breakpoints or events referencing an undefined track or channel.
func Build(raw []RawEvent, tempo TempoMap, tpqn uint16) (*Timeline, error) {
	table, err := newTempoTable(tempo, tpqn)
	if err != nil {
		return nil, err
	}

	nTracks := 0
	for i, re := range raw {
		if re.Track < 0 {
			return nil, &MalformedTimelineError{Index: i, Reason: fmt.Sprintf("event references undefined track %d", re.Track)}
		}
		if re.Type != Meta && re.Channel > 15 {
			return nil, &MalformedTimelineError{Index: i, Reason: fmt.Sprintf("event references undefined channel %d", re.Channel)}
		}
		if re.Track+1 > nTracks {
			nTracks = re.Track + 1
		}
	}

	tl := &Timeline{
		Tracks: make([]Track, nTracks),
		TPQN:   tpqn,
		tempo:  table,
	}
	for i := range tl.Tracks {
		tl.Tracks[i].Index = i
	}

	for i, re := range raw {
		tl.Tracks[re.Track].Events = append(tl.Tracks[re.Track].Events, Event{
			Type:    re.Type,
			Track:   re.Track,
			Channel: re.Channel,
			Key:     re.Key,
			Value:   re.Value,
			Tick:    re.Tick,
			Time:    table.TimeAt(re.Tick),
			Source:  i,
			Bytes:   re.Bytes,
		})
	}
	tl.nextSource = len(raw)

	for i := range tl.Tracks {
		tl.Sort(i)
	}
	return tl, nil
}

// Sort restores canonical event order within one track after a mutation.
func (tl *Timeline) Sort(track int) {
	ev := tl.Tracks[track].Events
	sort.SliceStable(ev, func(i, j int) bool { return Less(&ev[i], &ev[j]) })
}

// Clone returns a deep copy sharing no event storage with the original.
// The fix applier builds its candidate from this.
func (tl *Timeline) Clone() *Timeline {
	out := &Timeline{
		Tracks:     make([]Track, len(tl.Tracks)),
		TPQN:       tl.TPQN,
		tempo:      tl.tempo,
		nextSource: tl.nextSource,
	}
	for i := range tl.Tracks {
		out.Tracks[i] = *tl.Tracks[i].Clone()
	}
	return out
}

// TickAt maps seconds back to the nearest tick for export.
func (tl *Timeline) TickAt(sec float64) uint32 {
	return tl.tempo.TickAt(sec)
}

// TimeAt maps an absolute tick to seconds.
func (tl *Timeline) TimeAt(tick uint32) float64 {
	return tl.tempo.TimeAt(tick)
}

// TickDuration returns the length in seconds of one tick at the given time.
func (tl *Timeline) TickDuration(sec float64) float64 {
	tick := tl.tempo.TickAt(sec)
	return tl.tempo.SecondsPerQuarterAt(tick) / float64(tl.TPQN)
}

// SecondsPerQuarter returns the quarter-note duration at the start of the
// recording, used as the reference for the rhythmic grid.
func (tl *Timeline) SecondsPerQuarter() float64 {
	return tl.tempo.SecondsPerQuarterAt(0)
}

// AllocSource hands out a fresh source id for a synthesized event.
func (tl *Timeline) AllocSource() int {
	id := tl.nextSource
	tl.nextSource++
	return id
}

// End returns the time of the last event across all tracks.
func (tl *Timeline) End() float64 {
	end := 0.0
	for i := range tl.Tracks {
		ev := tl.Tracks[i].Events
		if n := len(ev); n > 0 && ev[n-1].Time > end {
			end = ev[n-1].Time
		}
	}
	return end
}

// Flatten returns all events across tracks in canonical timeline order,
// ties between tracks broken by track index.
func (tl *Timeline) Flatten() []Event {
	var out []Event
	for i := range tl.Tracks {
		out = append(out, tl.Tracks[i].Events...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if a.Time == b.Time && typeRank(a.Type) == typeRank(b.Type) && a.Track != b.Track {
			return a.Track < b.Track
		}
		return Less(a, b)
	})
	return out
}

// EventCount returns the total number of events across tracks.
func (tl *Timeline) EventCount() int {
	n := 0
	for i := range tl.Tracks {
		n += len(tl.Tracks[i].Events)
	}
	return n
}
