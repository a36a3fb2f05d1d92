// Package audioref cross-checks a MIDI timeline against a reference audio
// recording. It extracts onset and pitch estimates from the audio and
// annotates detected issues with corroborating confidence. Everything in
// here fails soft: a bad recording degrades analysis to MIDI-only.
package audioref

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Clip is a mono reference recording.
type Clip struct {
	Samples    []float64
	SampleRate int
}

// ExtractionError reports unusable reference audio. It is always recovered
// by the caller; analysis proceeds MIDI-only.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("audio extraction failed: %s", e.Reason)
}

// LoadWAV reads a WAV file into a mono clip, downmixing channels by
// averaging and normalizing to [-1,1].
func LoadWAV(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, &ExtractionError{Reason: "not a valid wav file"}
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, &ExtractionError{Reason: fmt.Sprintf("decoding pcm: %v", err)}
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, &ExtractionError{Reason: "empty audio buffer"}
	}

	return &Clip{Samples: downmix(buf), SampleRate: buf.Format.SampleRate}, nil
}

// downmix averages interleaved channels into one and normalizes to [-1,1]
// by the source bit depth.
func downmix(buf *audio.IntBuffer) []float64 {
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		samples[i] = sum / float64(channels) / scale
	}
	return samples
}
