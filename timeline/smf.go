package timeline

import (
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// FromSMF flattens a standard MIDI file into raw events, the tempo map and
// the tick resolution, ready for Build. Note-on events with velocity zero
// are normalized to note-offs.
func FromSMF(s *smf.SMF) ([]RawEvent, TempoMap, uint16, error) {
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, nil, 0, &MalformedTimelineError{Index: -1, Reason: "unsupported time format, expected metric ticks"}
	}

	var raw []RawEvent
	var tempo TempoMap
	for ti, track := range s.Tracks {
		var abs uint32
		for _, ev := range track {
			abs += ev.Delta
			msg := ev.Message

			var bpm float64
			if msg.GetMetaTempo(&bpm) {
				if bpm > 0 {
					tempo = append(tempo, TempoChange{Tick: abs, MicrosPerQuarter: uint32(60e6/bpm + 0.5)})
				}
				continue
			}
			if msg.Is(smf.MetaEndOfTrackMsg) {
				continue
			}

			re := RawEvent{Tick: abs, Track: ti}
			var ch, key, vel uint8
			switch {
			case msg.GetNoteOn(&ch, &key, &vel):
				re.Channel, re.Key, re.Value = ch, key, vel
				if vel == 0 {
					re.Type = NoteOff
				} else {
					re.Type = NoteOn
				}
			case msg.GetNoteOff(&ch, &key, &vel):
				re.Type, re.Channel, re.Key, re.Value = NoteOff, ch, key, vel
			case msg.GetControlChange(&ch, &key, &vel):
				re.Type, re.Channel, re.Key, re.Value = ControlChange, ch, key, vel
			case msg.GetProgramChange(&ch, &key):
				re.Type, re.Channel, re.Key = ProgramChange, ch, key
			default:
				re.Type = Meta
				re.Bytes = append([]byte(nil), msg...)
			}
			raw = append(raw, re)
		}
	}

	// Tempo events may be spread across tracks; the map must be ordered.
	sort.SliceStable(tempo, func(i, j int) bool { return tempo[i].Tick < tempo[j].Tick })
	tempo = dedupeTempo(tempo)

	return raw, tempo, uint16(ticks), nil
}

// dedupeTempo keeps the last tempo seen at any given tick so the map stays
// strictly increasing.
func dedupeTempo(m TempoMap) TempoMap {
	out := m[:0]
	for _, tc := range m {
		if n := len(out); n > 0 && out[n-1].Tick == tc.Tick {
			out[n-1] = tc
			continue
		}
		out = append(out, tc)
	}
	return out
}

// ToSMF re-encodes the timeline as a standard MIDI file, rebuilding per-track
// deltas from each event's tick. The tempo map is written into track zero.
func ToSMF(tl *Timeline, tempo TempoMap) *smf.SMF {
	out := smf.NewSMF1()
	out.TimeFormat = smf.MetricTicks(tl.TPQN)

	for i := range tl.Tracks {
		type tickEvent struct {
			tick uint32
			msg  smf.Message
		}
		var evs []tickEvent

		if i == 0 {
			for _, tc := range tempo {
				evs = append(evs, tickEvent{tc.Tick, smf.MetaTempo(60e6 / float64(tc.MicrosPerQuarter))})
			}
		}
		for _, e := range tl.Tracks[i].Events {
			var msg midi.Message
			switch e.Type {
			case NoteOn:
				msg = midi.NoteOn(e.Channel, e.Key, e.Value)
			case NoteOff:
				msg = midi.NoteOff(e.Channel, e.Key)
			case ControlChange:
				msg = midi.ControlChange(e.Channel, e.Key, e.Value)
			case ProgramChange:
				msg = midi.ProgramChange(e.Channel, e.Key)
			case Meta:
				evs = append(evs, tickEvent{e.Tick, smf.Message(e.Bytes)})
				continue
			}
			evs = append(evs, tickEvent{e.Tick, smf.Message(msg)})
		}

		sort.SliceStable(evs, func(a, b int) bool { return evs[a].tick < evs[b].tick })

		var track smf.Track
		var prev uint32
		for _, te := range evs {
			track = append(track, smf.Event{Delta: te.tick - prev, Message: te.msg})
			prev = te.tick
		}
		track.Close(0)
		out.Add(track)
	}
	return out
}
