package engine

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/varghele/quickmidi/audioref"
	"github.com/varghele/quickmidi/detect"
	"github.com/varghele/quickmidi/timeline"
)

// Options configures one analysis run. The struct is immutable and passed
// explicitly through every call; nothing in the engine is process-wide.
type Options struct {
	// Detection thresholds.
	GridDivision     int     `json:"gridDivision"`
	DriftTolerance   float64 `json:"driftTolerance"`
	VelocitySigma    float64 `json:"velocitySigma"`
	VelocityWindow   int     `json:"velocityWindow"`
	DuplicateEpsilon float64 `json:"duplicateEpsilon"`

	// Audio cross-reference.
	LagWindow    float64       `json:"lagWindow"`
	AudioTimeout time.Duration `json:"audioTimeout"`

	// Logger receives pipeline progress; nil discards.
	Logger *log.Logger `json:"-"`
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	d := detect.DefaultOptions()
	return Options{
		GridDivision:     d.GridDivision,
		DriftTolerance:   d.DriftTolerance,
		VelocitySigma:    d.VelocitySigma,
		VelocityWindow:   d.VelocityWindow,
		DuplicateEpsilon: d.DuplicateEpsilon,
		LagWindow:        0.150,
		AudioTimeout:     30 * time.Second,
	}
}

// detectOptions derives the per-scan thresholds, anchoring the rhythmic
// grid to the recording's opening tempo so detectors stay pure.
func (o Options) detectOptions(tl *timeline.Timeline) detect.Options {
	d := detect.DefaultOptions()
	if o.GridDivision > 0 {
		d.GridDivision = o.GridDivision
	}
	if o.DriftTolerance > 0 {
		d.DriftTolerance = o.DriftTolerance
	}
	if o.VelocitySigma > 0 {
		d.VelocitySigma = o.VelocitySigma
	}
	if o.VelocityWindow > 0 {
		d.VelocityWindow = o.VelocityWindow
	}
	if o.DuplicateEpsilon > 0 {
		d.DuplicateEpsilon = o.DuplicateEpsilon
	}
	d.SecondsPerQuarter = tl.SecondsPerQuarter()
	d.TickSeconds = d.SecondsPerQuarter / float64(tl.TPQN)
	return d
}

// alignOptions derives the aligner configuration.
func (o Options) alignOptions() audioref.Options {
	a := audioref.DefaultOptions()
	if o.LagWindow > 0 {
		a.LagWindow = o.LagWindow
	}
	return a
}

// logger returns the configured logger or a discard logger.
func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.New(io.Discard)
}
