package detect

// Options holds the detection thresholds. The struct is immutable and
// threaded through every scan; there is no package-level state.
type Options struct {
	// GridDivision is the rhythmic grid for drift detection, as a division
	// of the whole note (16 = sixteenth notes).
	GridDivision int `json:"gridDivision"`

	// DriftTolerance is how far off the grid an onset may sit, in seconds.
	DriftTolerance float64 `json:"driftTolerance"`

	// VelocitySigma flags velocities beyond this many standard deviations
	// from the local window mean.
	VelocitySigma float64 `json:"velocitySigma"`

	// VelocityWindow is the sliding window size, in notes.
	VelocityWindow int `json:"velocityWindow"`

	// DuplicateEpsilon is the time window within which two identical notes
	// count as duplicates, in seconds.
	DuplicateEpsilon float64 `json:"duplicateEpsilon"`

	// SecondsPerQuarter anchors the grid; the engine fills it from the
	// tempo map so detectors stay pure time-domain functions.
	SecondsPerQuarter float64 `json:"-"`

	// TickSeconds is the duration of one tick, the minimum note length.
	TickSeconds float64 `json:"-"`
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		GridDivision:      16,
		DriftTolerance:    0.025,
		VelocitySigma:     3.0,
		VelocityWindow:    16,
		DuplicateEpsilon:  0.002,
		SecondsPerQuarter: 0.5,
		TickSeconds:       0.5 / 480,
	}
}

// GridStep returns the grid spacing in seconds.
func (o Options) GridStep() float64 {
	div := o.GridDivision
	if div <= 0 {
		div = 16
	}
	spq := o.SecondsPerQuarter
	if spq <= 0 {
		spq = 0.5
	}
	return spq * 4 / float64(div)
}
