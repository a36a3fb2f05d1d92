package timeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTPQN = 480

func TestBuildComputesAbsoluteTimes(t *testing.T) {
	raw := []RawEvent{
		{Tick: 0, Track: 0, Type: NoteOn, Key: 60, Value: 100},
		{Tick: 480, Track: 0, Type: NoteOff, Key: 60},
		{Tick: 960, Track: 0, Type: NoteOn, Key: 62, Value: 90},
	}
	tl, err := Build(raw, nil, testTPQN)
	require.NoError(t, err)
	require.Len(t, tl.Tracks, 1)

	// Default 120 BPM: one quarter note is half a second.
	ev := tl.Tracks[0].Events
	require.Len(t, ev, 3)
	assert.InDelta(t, 0.0, ev[0].Time, 1e-9)
	assert.InDelta(t, 0.5, ev[1].Time, 1e-9)
	assert.InDelta(t, 1.0, ev[2].Time, 1e-9)
}

func TestBuildHonorsTempoChanges(t *testing.T) {
	tempo := TempoMap{
		{Tick: 0, MicrosPerQuarter: 500000},  // 120 BPM
		{Tick: 480, MicrosPerQuarter: 250000}, // 240 BPM from beat two
	}
	raw := []RawEvent{
		{Tick: 960, Track: 0, Type: NoteOn, Key: 60, Value: 100},
	}
	tl, err := Build(raw, tempo, testTPQN)
	require.NoError(t, err)

	// 0.5s for the first quarter, 0.25s for the second.
	assert.InDelta(t, 0.75, tl.Tracks[0].Events[0].Time, 1e-9)
}

func TestBuildRejectsNonMonotonicTempo(t *testing.T) {
	tempo := TempoMap{
		{Tick: 480, MicrosPerQuarter: 500000},
		{Tick: 480, MicrosPerQuarter: 250000},
	}
	_, err := Build(nil, tempo, testTPQN)

	var malformed *MalformedTimelineError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 1, malformed.Index)
}

func TestBuildRejectsUndefinedReferences(t *testing.T) {
	tests := []struct {
		name string
		raw  RawEvent
	}{
		{"negative track", RawEvent{Track: -1, Type: NoteOn, Key: 60, Value: 80}},
		{"channel out of range", RawEvent{Track: 0, Channel: 16, Type: NoteOn, Key: 60, Value: 80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build([]RawEvent{tt.raw}, nil, testTPQN)
			var malformed *MalformedTimelineError
			require.True(t, errors.As(err, &malformed))
		})
	}
}

func TestBuildRejectsZeroResolution(t *testing.T) {
	_, err := Build(nil, nil, 0)
	var malformed *MalformedTimelineError
	require.True(t, errors.As(err, &malformed))
}

func TestSortPutsNoteOffBeforeNoteOnAtSameTime(t *testing.T) {
	raw := []RawEvent{
		{Tick: 480, Track: 0, Type: NoteOn, Key: 60, Value: 100},
		{Tick: 480, Track: 0, Type: NoteOff, Key: 60},
		{Tick: 480, Track: 0, Type: ControlChange, Key: 64, Value: 127},
	}
	tl, err := Build(raw, nil, testTPQN)
	require.NoError(t, err)

	ev := tl.Tracks[0].Events
	assert.Equal(t, NoteOff, ev[0].Type)
	assert.Equal(t, NoteOn, ev[1].Type)
	assert.Equal(t, ControlChange, ev[2].Type)
}

func TestTickTimeRoundTrip(t *testing.T) {
	tempo := TempoMap{
		{Tick: 0, MicrosPerQuarter: 500000},
		{Tick: 960, MicrosPerQuarter: 400000},
	}
	tl, err := Build([]RawEvent{{Tick: 0, Track: 0, Type: NoteOn, Key: 60, Value: 1}}, tempo, testTPQN)
	require.NoError(t, err)

	for _, tick := range []uint32{0, 1, 479, 960, 1921, 10000} {
		assert.Equal(t, tick, tl.TickAt(tl.TimeAt(tick)), "tick %d", tick)
	}
}

func TestCloneSharesNoStorage(t *testing.T) {
	raw := []RawEvent{{Tick: 0, Track: 0, Type: NoteOn, Key: 60, Value: 100}}
	tl, err := Build(raw, nil, testTPQN)
	require.NoError(t, err)

	clone := tl.Clone()
	clone.Tracks[0].Events[0].Value = 1
	assert.Equal(t, uint8(100), tl.Tracks[0].Events[0].Value)
}

func TestFlattenIsDeterministic(t *testing.T) {
	raw := []RawEvent{
		{Tick: 480, Track: 1, Type: NoteOn, Key: 64, Value: 90},
		{Tick: 480, Track: 0, Type: NoteOn, Key: 60, Value: 100},
		{Tick: 0, Track: 1, Type: ProgramChange, Key: 5},
	}
	tl, err := Build(raw, nil, testTPQN)
	require.NoError(t, err)

	first := tl.Flatten()
	second := tl.Flatten()
	require.Equal(t, first, second)

	// Same time and rank: lower track index first.
	assert.Equal(t, 0, first[1].Track)
	assert.Equal(t, 1, first[2].Track)
}
