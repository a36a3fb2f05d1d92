package fix

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/varghele/quickmidi/detect"
	"github.com/varghele/quickmidi/timeline"
)

// errTargetVanished marks a fix whose target event an earlier fix in the
// batch already removed. Overlapping issues can propose the same edit
// twice; the superseded fix is dropped, never a transaction failure.
var errTargetVanished = errors.New("target event vanished")

const supersededNote = "target already removed by an earlier fix"

// RegressionError reports a transaction that introduced critical issues the
// original timeline did not have. The transaction is rolled back.
type RegressionError struct {
	Introduced []string // issue keys
}

func (e *RegressionError) Error() string {
	return fmt.Sprintf("fix transaction introduced critical issues: %s", strings.Join(e.Introduced, ", "))
}

// Result is the outcome of applying a fix batch.
type Result struct {
	Timeline *timeline.Timeline
	Applied  []Fix
	Rejected []Fix
	Warnings []string
}

// Apply builds a candidate timeline, applies the fixes in ascending target
// time, re-runs every detector against the candidate and accepts it only if
// no critical issue appears that the original set did not contain. On batch
// regression it retries per-fix, keeping each fix in its own transaction and
// discarding only the offenders. A fix whose target an earlier fix already
// removed is rejected with a note, never an error. The input timeline is
// never mutated.
func Apply(ctx context.Context, tl *timeline.Timeline, fixes []Fix, original []detect.Issue, opts detect.Options) (*Result, error) {
	if len(fixes) == 0 {
		return &Result{Timeline: tl}, nil
	}

	ordered := make([]Fix, len(fixes))
	copy(ordered, fixes)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].TargetTime < ordered[j].TargetTime })

	baseline := criticalKeys(tl, original)

	// Fast path: the whole batch as one transaction.
	candidate := tl.Clone()
	applied := make([]Fix, 0, len(ordered))
	var superseded []Fix
	for i := range ordered {
		f := ordered[i]
		if err := applyOne(candidate, &f); err != nil {
			if errors.Is(err, errTargetVanished) {
				f.Note = supersededNote
				superseded = append(superseded, f)
				continue
			}
			return nil, err
		}
		applied = append(applied, f)
	}
	introduced, err := revalidate(ctx, candidate, baseline, opts)
	if err != nil {
		return nil, err
	}
	if len(introduced) == 0 {
		return &Result{Timeline: candidate, Applied: applied, Rejected: superseded}, nil
	}

	// The batch regressed; isolate the offenders one transaction at a time.
	regression := &RegressionError{Introduced: introduced}
	res := &Result{Warnings: []string{regression.Error()}}
	current := tl.Clone()
	for i := range ordered {
		f := ordered[i]
		trial := current.Clone()
		if err := applyOne(trial, &f); err != nil {
			if errors.Is(err, errTargetVanished) {
				f.Note = supersededNote
				res.Rejected = append(res.Rejected, f)
				continue
			}
			return nil, err
		}
		introduced, err := revalidate(ctx, trial, baseline, opts)
		if err != nil {
			return nil, err
		}
		if len(introduced) > 0 {
			f.Note = (&RegressionError{Introduced: introduced}).Error()
			res.Rejected = append(res.Rejected, f)
			continue
		}
		current = trial
		res.Applied = append(res.Applied, f)
	}
	res.Timeline = current
	return res, nil
}

// revalidate re-runs all detectors and returns the keys of critical issues
// absent from the baseline, including violations of the duplicate-free
// postcondition.
func revalidate(ctx context.Context, cand *timeline.Timeline, baseline map[string]bool, opts detect.Options) ([]string, error) {
	issues, err := detect.Run(ctx, cand, opts)
	if err != nil {
		return nil, err
	}
	var introduced []string
	for i := range issues {
		if issues[i].Severity != detect.SeverityCritical {
			continue
		}
		if key := issues[i].Key(cand); !baseline[key] {
			introduced = append(introduced, key)
		}
	}
	introduced = append(introduced, duplicateViolations(cand)...)
	return introduced, nil
}

// criticalKeys collects the identity keys of the critical issues.
func criticalKeys(tl *timeline.Timeline, issues []detect.Issue) map[string]bool {
	keys := make(map[string]bool)
	for i := range issues {
		if issues[i].Severity == detect.SeverityCritical {
			keys[issues[i].Key(tl)] = true
		}
	}
	return keys
}

// duplicateViolations enforces the pipeline postcondition: no two events may
// share (track, channel, pitch, time) after correction.
func duplicateViolations(tl *timeline.Timeline) []string {
	var out []string
	for t := range tl.Tracks {
		type slot struct {
			typ     timeline.EventType
			ch, key uint8
			time    float64
		}
		seen := make(map[slot]bool)
		for i := range tl.Tracks[t].Events {
			e := &tl.Tracks[t].Events[i]
			if e.Type != timeline.NoteOn {
				continue
			}
			s := slot{e.Type, e.Channel, e.Key, e.Time}
			if seen[s] {
				out = append(out, fmt.Sprintf("identical-events|%d|%d|%d|%.6f", t, e.Channel, e.Key, e.Time))
			}
			seen[s] = true
		}
	}
	return out
}

// applyOne mutates the candidate in place. Events are located by source id
// so earlier fixes in the batch cannot invalidate the targets.
func applyOne(cand *timeline.Timeline, f *Fix) error {
	tr := &cand.Tracks[f.Track]

	find := func(source int) int {
		for i := range tr.Events {
			if tr.Events[i].Source == source {
				return i
			}
		}
		return -1
	}

	switch f.Op {
	case OpInsertNoteOff:
		onIdx := find(f.Sources[0])
		if onIdx < 0 {
			return fmt.Errorf("fix %s: %w", f.ID, errTargetVanished)
		}
		on := tr.Events[onIdx]
		off := timeline.Event{
			Type:    timeline.NoteOff,
			Track:   f.Track,
			Channel: on.Channel,
			Key:     on.Key,
			Tick:    cand.TickAt(f.Time),
			Time:    f.Time,
			Source:  cand.AllocSource(),
		}
		f.Before = nil
		f.After = &off
		tr.Events = append(tr.Events, off)

	case OpQuantizeTime:
		primary := find(f.Sources[0])
		if primary < 0 {
			return fmt.Errorf("fix %s: %w", f.ID, errTargetVanished)
		}
		before := tr.Events[primary]
		delta := f.Time - before.Time
		for _, src := range f.Sources {
			idx := find(src)
			if idx < 0 {
				continue
			}
			tr.Events[idx].Time += delta
			tr.Events[idx].Tick = cand.TickAt(tr.Events[idx].Time)
		}
		after := tr.Events[primary]
		f.Before = &before
		f.After = &after

	case OpClampVelocity:
		idx := find(f.Sources[0])
		if idx < 0 {
			return fmt.Errorf("fix %s: %w", f.ID, errTargetVanished)
		}
		before := tr.Events[idx]
		tr.Events[idx].Value = f.Velocity
		after := tr.Events[idx]
		f.Before = &before
		f.After = &after

	case OpDropEvent, OpMergeDuplicates:
		idx := find(f.Sources[0])
		if idx < 0 {
			return fmt.Errorf("fix %s: %w", f.ID, errTargetVanished)
		}
		before := tr.Events[idx]
		f.Before = &before
		f.After = nil
		drop := make(map[int]bool, len(f.Sources))
		for _, src := range f.Sources {
			drop[src] = true
		}
		kept := tr.Events[:0]
		for i := range tr.Events {
			if !drop[tr.Events[i].Source] {
				kept = append(kept, tr.Events[i])
			}
		}
		tr.Events = kept

	default:
		return fmt.Errorf("fix %s: unknown operation %q", f.ID, f.Op)
	}

	cand.Sort(f.Track)
	return nil
}
