package audioref

import (
	"context"
	"math"
	"sort"

	"github.com/varghele/quickmidi/detect"
	"github.com/varghele/quickmidi/timeline"
)

// Options for timeline-vs-audio alignment.
type Options struct {
	// LagWindow bounds how far apart a MIDI onset and its audio onset may
	// sit and still count as the same event, in seconds.
	LagWindow float64 `json:"lagWindow"`
}

// DefaultOptions returns the stock alignment window.
func DefaultOptions() Options {
	return Options{LagWindow: 0.150}
}

// quarterToneCents is the pitch disagreement beyond which the audio is
// considered to contradict the MIDI note.
const quarterToneCents = 50.0

// midiNote is one note-on from the timeline, referenced back to its event.
type midiNote struct {
	track, event int
	time         float64
	freq         float64
	matched      bool
	lag          float64
	pitchOff     bool
}

// Align matches MIDI note onsets to extracted audio onsets with a
// monotonic, lag-bounded pairing and returns a copy of the issue set with
// audio confidence merged in. It never creates new issue kinds. A MIDI note
// with no audio onset inside the window supports fixing issues on that
// note; a well-matched note argues against.
func Align(ctx context.Context, feats *Features, tl *timeline.Timeline, issues []detect.Issue, opts Options) ([]detect.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lag := opts.LagWindow
	if lag <= 0 {
		lag = 0.150
	}

	notes := collectNotes(tl)
	if len(notes) == 0 || feats == nil || len(feats.Onsets) == 0 {
		return annotate(issues, notes, lag), nil
	}

	if err := matchOnsets(ctx, notes, feats.Onsets, lag); err != nil {
		return nil, err
	}
	markPitchMismatches(notes, feats.Pitch)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return annotate(issues, notes, lag), nil
}

func collectNotes(tl *timeline.Timeline) []midiNote {
	var notes []midiNote
	for t := range tl.Tracks {
		for i := range tl.Tracks[t].Events {
			e := &tl.Tracks[t].Events[i]
			if e.Type != timeline.NoteOn {
				continue
			}
			notes = append(notes, midiNote{
				track: t,
				event: i,
				time:  e.Time,
				freq:  440 * math.Pow(2, (float64(e.Key)-69)/12),
			})
		}
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].time < notes[j].time })
	return notes
}

// matchOnsets pairs MIDI notes with audio onsets by dynamic programming
// over monotonic moves, each match bounded by the lag window. Skips cost a
// full window so the path only skips when no plausible match exists. The
// table fill is O(notes x onsets), so ctx is checked between rows.
func matchOnsets(ctx context.Context, notes []midiNote, onsets []float64, lag float64) error {
	m, n := len(notes), len(onsets)
	const inf = math.MaxFloat64 / 4

	cost := make([][]float64, m+1)
	from := make([][]uint8, m+1) // 1=match, 2=skip midi, 3=skip audio
	for i := range cost {
		cost[i] = make([]float64, n+1)
		from[i] = make([]uint8, n+1)
	}
	for j := 1; j <= n; j++ {
		cost[0][j] = float64(j) * lag
		from[0][j] = 3
	}
	for i := 1; i <= m; i++ {
		cost[i][0] = float64(i) * lag
		from[i][0] = 2
	}
	for i := 1; i <= m; i++ {
		if i%32 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j := 1; j <= n; j++ {
			d := math.Abs(notes[i-1].time - onsets[j-1])
			match := inf
			if d <= lag {
				match = cost[i-1][j-1] + d
			}
			skipMIDI := cost[i-1][j] + lag
			skipAudio := cost[i][j-1] + lag
			switch {
			case match <= skipMIDI && match <= skipAudio:
				cost[i][j], from[i][j] = match, 1
			case skipMIDI <= skipAudio:
				cost[i][j], from[i][j] = skipMIDI, 2
			default:
				cost[i][j], from[i][j] = skipAudio, 3
			}
		}
	}

	for i, j := m, n; i > 0 || j > 0; {
		switch from[i][j] {
		case 1:
			notes[i-1].matched = true
			notes[i-1].lag = math.Abs(notes[i-1].time - onsets[j-1])
			i--
			j--
		case 2:
			i--
		default:
			j--
		}
	}
	return nil
}

// markPitchMismatches compares each matched note against the pitch track
// around its onset.
func markPitchMismatches(notes []midiNote, pitch []PitchPoint) {
	if len(pitch) == 0 {
		return
	}
	for i := range notes {
		if !notes[i].matched {
			continue
		}
		f := pitchNear(pitch, notes[i].time)
		if f <= 0 {
			continue
		}
		cents := 1200 * math.Log2(f/notes[i].freq)
		if math.Abs(cents) > quarterToneCents {
			notes[i].pitchOff = true
		}
	}
}

// pitchNear returns the pitch estimate closest to t within 50 ms, or 0.
func pitchNear(pitch []PitchPoint, t float64) float64 {
	i := sort.Search(len(pitch), func(i int) bool { return pitch[i].Time >= t })
	best, bestD := 0.0, 0.05
	for _, j := range []int{i - 1, i} {
		if j >= 0 && j < len(pitch) {
			if d := math.Abs(pitch[j].Time - t); d <= bestD {
				best, bestD = pitch[j].Freq, d
			}
		}
	}
	return best
}

// annotate merges per-note audio evidence into the issues covering those
// notes. Confidence is support for applying the fix: an unmatched note
// means the audio disagrees with the MIDI, a tight match means the MIDI is
// corroborated.
func annotate(issues []detect.Issue, notes []midiNote, lag float64) []detect.Issue {
	byEvent := make(map[[2]int]*midiNote, len(notes))
	for i := range notes {
		byEvent[[2]int{notes[i].track, notes[i].event}] = &notes[i]
	}

	out := make([]detect.Issue, len(issues))
	copy(out, issues)
	for i := range out {
		for _, idx := range out[i].Events {
			note, ok := byEvent[[2]int{out[i].Track, idx}]
			if !ok {
				continue
			}
			out[i].AudioChecked = true
			if note.matched {
				out[i].AudioConfidence = 0.3 * (note.lag / lag)
				if out[i].AudioConfidence > 0.3 {
					out[i].AudioConfidence = 0.3
				}
			} else {
				out[i].AudioConfidence = 0.9
			}
			if note.pitchOff {
				out[i].PitchMismatch = true
			}
			break
		}
	}
	return out
}
