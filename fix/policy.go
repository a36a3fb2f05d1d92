// Package fix turns detected issues into corrective edits and applies them
// transactionally: a candidate timeline is built, every detector re-runs
// against it, and the transaction is discarded if the correction made
// anything worse.
package fix

import "github.com/varghele/quickmidi/detect"

// Policy selects which issue kinds get auto-fixed and how aggressive the
// corrections are. The zero value fixes nothing; use DefaultPolicy.
type Policy struct {
	FixStuckNotes       bool `json:"fixStuckNotes"`
	FixOverlaps         bool `json:"fixOverlaps"`
	FixZeroLength       bool `json:"fixZeroLength"`
	FixVelocityOutliers bool `json:"fixVelocityOutliers"`
	FixTimingDrift      bool `json:"fixTimingDrift"`
	FixDuplicates       bool `json:"fixDuplicates"`

	// MaxNoteDuration caps synthetic note-offs for stuck notes, seconds.
	MaxNoteDuration float64 `json:"maxNoteDuration"`

	// SigmaClamp pulls in-range velocity outliers to the local window
	// mean +/- 2 sigma instead of leaving them; out-of-range velocities
	// are always clamped to [1,127].
	SigmaClamp bool `json:"sigmaClamp"`

	// DropSilentZeroLength drops zero-length notes outright when the audio
	// cross-reference indicates no corresponding sound, instead of
	// extending them.
	DropSilentZeroLength bool `json:"dropSilentZeroLength"`
}

// DefaultPolicy enables every fix with stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		FixStuckNotes:        true,
		FixOverlaps:          true,
		FixZeroLength:        true,
		FixVelocityOutliers:  true,
		FixTimingDrift:       true,
		FixDuplicates:        true,
		MaxNoteDuration:      5.0,
		SigmaClamp:           true,
		DropSilentZeroLength: true,
	}
}

// Enabled reports whether the policy auto-fixes the given issue kind.
func (p Policy) Enabled(k detect.Kind) bool {
	switch k {
	case detect.KindStuckNote:
		return p.FixStuckNotes
	case detect.KindOverlap:
		return p.FixOverlaps
	case detect.KindZeroLength:
		return p.FixZeroLength
	case detect.KindVelocityOutlier:
		return p.FixVelocityOutliers
	case detect.KindTimingDrift:
		return p.FixTimingDrift
	case detect.KindDuplicateNote:
		return p.FixDuplicates
	}
	return false
}

// Any reports whether the policy fixes anything at all.
func (p Policy) Any() bool {
	return p.FixStuckNotes || p.FixOverlaps || p.FixZeroLength ||
		p.FixVelocityOutliers || p.FixTimingDrift || p.FixDuplicates
}
