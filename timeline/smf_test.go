package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func testSMF(t *testing.T) *smf.SMF {
	t.Helper()
	var track smf.Track
	track = append(track, smf.Event{Delta: 0, Message: smf.MetaTempo(120)})
	track = append(track, smf.Event{Delta: 0, Message: smf.Message(midi.NoteOn(0, 60, 100))})
	track = append(track, smf.Event{Delta: 480, Message: smf.Message(midi.NoteOn(0, 60, 0))}) // running-status off
	track = append(track, smf.Event{Delta: 0, Message: smf.Message(midi.ControlChange(0, 64, 127))})
	track.Close(0)

	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(480)
	s.Add(track)
	return s
}

func TestFromSMF(t *testing.T) {
	raw, tempo, tpqn, err := FromSMF(testSMF(t))
	require.NoError(t, err)

	assert.Equal(t, uint16(480), tpqn)
	require.Len(t, tempo, 1)
	assert.Equal(t, uint32(500000), tempo[0].MicrosPerQuarter)

	require.Len(t, raw, 3)
	assert.Equal(t, NoteOn, raw[0].Type)
	assert.Equal(t, uint8(100), raw[0].Value)

	// Velocity-zero note-on reads as a note-off.
	assert.Equal(t, NoteOff, raw[1].Type)
	assert.Equal(t, uint32(480), raw[1].Tick)

	assert.Equal(t, ControlChange, raw[2].Type)
	assert.Equal(t, uint8(64), raw[2].Key)
}

func TestToSMFRoundTrip(t *testing.T) {
	raw, tempo, tpqn, err := FromSMF(testSMF(t))
	require.NoError(t, err)
	tl, err := Build(raw, tempo, tpqn)
	require.NoError(t, err)

	out := ToSMF(tl, tempo)
	raw2, tempo2, tpqn2, err := FromSMF(out)
	require.NoError(t, err)

	assert.Equal(t, tpqn, tpqn2)
	assert.Equal(t, tempo, tempo2)
	require.Len(t, raw2, len(raw))
	for i := range raw {
		assert.Equal(t, raw[i].Type, raw2[i].Type, "event %d", i)
		assert.Equal(t, raw[i].Tick, raw2[i].Tick, "event %d", i)
		assert.Equal(t, raw[i].Key, raw2[i].Key, "event %d", i)
	}
}
