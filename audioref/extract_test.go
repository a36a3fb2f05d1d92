package audioref

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 8000

// burstClip renders silence with 0.3 s sine bursts at the given times.
func burstClip(freq float64, starts ...float64) *Clip {
	samples := make([]float64, 4*testRate)
	for _, s := range starts {
		lo := int(s * testRate)
		hi := lo + int(0.3*testRate)
		for i := lo; i < hi && i < len(samples); i++ {
			samples[i] = 0.8 * math.Sin(2*math.Pi*freq*float64(i)/testRate)
		}
	}
	return &Clip{Samples: samples, SampleRate: testRate}
}

func nearestOnset(onsets []float64, t float64) float64 {
	best := math.Inf(1)
	for _, o := range onsets {
		if d := math.Abs(o - t); d < best {
			best = d
		}
	}
	return best
}

func TestExtractFindsBurstOnsets(t *testing.T) {
	clip := burstClip(440, 1.0, 2.0)

	feats, err := Extract(context.Background(), clip)
	require.NoError(t, err)
	require.NotEmpty(t, feats.Onsets)

	// One detected onset near each burst; the STFT hop quantizes times.
	assert.Less(t, nearestOnset(feats.Onsets, 1.0), 0.25)
	assert.Less(t, nearestOnset(feats.Onsets, 2.0), 0.25)
	for i := 1; i < len(feats.Onsets); i++ {
		assert.Greater(t, feats.Onsets[i], feats.Onsets[i-1])
	}
}

func TestExtractTracksPitch(t *testing.T) {
	clip := burstClip(440, 1.0)

	feats, err := Extract(context.Background(), clip)
	require.NoError(t, err)
	require.NotEmpty(t, feats.Pitch)

	// Every pitch estimate during the burst rounds to a bin within a
	// quarter tone of 440 Hz; silence yields no estimates at all.
	for _, p := range feats.Pitch {
		assert.InDelta(t, 1.0+0.15, p.Time, 0.3, "pitch outside the burst window")
		cents := 1200 * math.Log2(p.Freq/440)
		assert.Less(t, math.Abs(cents), 50.0)
	}
}

func TestExtractRejectsUnusableAudio(t *testing.T) {
	tests := []struct {
		name   string
		clip   *Clip
		reason string
	}{
		{"nil clip", nil, "empty audio buffer"},
		{"empty samples", &Clip{SampleRate: testRate}, "empty audio buffer"},
		{"bad rate", &Clip{Samples: make([]float64, 4096)}, "invalid sample rate"},
		{"too short", &Clip{Samples: make([]float64, 100), SampleRate: testRate}, "shorter than one analysis frame"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(context.Background(), tt.clip)
			var xerr *ExtractionError
			require.ErrorAs(t, err, &xerr)
			assert.Contains(t, xerr.Reason, tt.reason)
		})
	}
}

func TestExtractRejectsCorruptSamples(t *testing.T) {
	clip := burstClip(440, 1.0)
	clip.Samples[12000] = math.NaN()

	_, err := Extract(context.Background(), clip)
	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Contains(t, xerr.Reason, "corrupt")
}

func TestExtractHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Extract(ctx, burstClip(440, 1.0))
	assert.ErrorIs(t, err, context.Canceled)
}
