package audioref

import (
	"context"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// STFT geometry. 2048/512 at common sample rates gives ~12 ms hops, fine
// enough for the default 150 ms alignment window.
const (
	frameSize = 2048
	hopSize   = 512

	// Pitch tracking band; outside it the dominant bin is usually noise.
	minPitchHz = 50.0
	maxPitchHz = 2000.0
)

// PitchPoint is the dominant frequency estimate at one analysis frame.
type PitchPoint struct {
	Time float64
	Freq float64
}

// Features are the onset and pitch estimates extracted from a clip.
type Features struct {
	Onsets []float64 // onset times in seconds, ascending
	Pitch  []PitchPoint
}

// Extract computes a spectral-flux onset envelope and a per-frame dominant
// frequency track over Hann-windowed FFT frames. It honors ctx between
// frames and returns ExtractionError for unusable audio.
func Extract(ctx context.Context, clip *Clip) (*Features, error) {
	if clip == nil || len(clip.Samples) == 0 {
		return nil, &ExtractionError{Reason: "empty audio buffer"}
	}
	if clip.SampleRate <= 0 {
		return nil, &ExtractionError{Reason: "invalid sample rate"}
	}
	if len(clip.Samples) < frameSize {
		return nil, &ExtractionError{Reason: "audio shorter than one analysis frame"}
	}

	rate := float64(clip.SampleRate)
	frames := 1 + (len(clip.Samples)-frameSize)/hopSize
	win := hann(frameSize)
	fft := fourier.NewFFT(frameSize)

	flux := make([]float64, frames)
	pitch := make([]PitchPoint, 0, frames)
	buf := make([]float64, frameSize)
	prevMag := make([]float64, frameSize/2+1)
	mag := make([]float64, frameSize/2+1)

	minBin := int(minPitchHz * frameSize / rate)
	maxBin := int(maxPitchHz * frameSize / rate)
	if minBin < 1 {
		minBin = 1
	}

	for i := 0; i < frames; i++ {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		start := i * hopSize
		for k := 0; k < frameSize; k++ {
			s := clip.Samples[start+k]
			if math.IsNaN(s) || math.IsInf(s, 0) {
				return nil, &ExtractionError{Reason: "corrupt sample data"}
			}
			buf[k] = s * win[k]
		}
		coeffs := fft.Coefficients(nil, buf)
		for j := range mag {
			mag[j] = cmplx.Abs(coeffs[j])
		}

		// Positive spectral flux: energy rising across bins marks an onset.
		f := 0.0
		for j := range mag {
			if d := mag[j] - prevMag[j]; d > 0 {
				f += d
			}
		}
		flux[i] = f
		copy(prevMag, mag)

		frameTime := (float64(start) + frameSize/2) / rate
		if bin, peak := dominantBin(mag, minBin, maxBin); peak > 0 {
			pitch = append(pitch, PitchPoint{Time: frameTime, Freq: float64(bin) * rate / frameSize})
		}
	}

	return &Features{Onsets: pickOnsets(flux, rate), Pitch: pitch}, nil
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// dominantBin finds the strongest bin in the pitch band, requiring it to
// carry a meaningful share of frame energy so silence yields no pitch.
func dominantBin(mag []float64, minBin, maxBin int) (int, float64) {
	if maxBin >= len(mag) {
		maxBin = len(mag) - 1
	}
	total, best, bestBin := 0.0, 0.0, 0
	for j := minBin; j <= maxBin; j++ {
		total += mag[j]
		if mag[j] > best {
			best = mag[j]
			bestBin = j
		}
	}
	if total < 1e-6 || best < total*0.1 {
		return 0, 0
	}
	return bestBin, best
}

// pickOnsets selects local flux maxima above an adaptive threshold.
func pickOnsets(flux []float64, rate float64) []float64 {
	if len(flux) < 3 {
		return nil
	}
	mean, std := 0.0, 0.0
	for _, f := range flux {
		mean += f
	}
	mean /= float64(len(flux))
	for _, f := range flux {
		d := f - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(flux)))
	threshold := mean + 1.5*std

	var onsets []float64
	for i := 1; i+1 < len(flux); i++ {
		if flux[i] > threshold && flux[i] >= flux[i-1] && flux[i] > flux[i+1] {
			onsets = append(onsets, (float64(i*hopSize)+frameSize/2)/rate)
		}
	}
	return onsets
}
