// Package report aggregates the outcome of an analysis run: the ranked
// issue set, the applied fixes, a per-event diff and the corrected track
// set. Reports are immutable once returned.
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/varghele/quickmidi/detect"
	"github.com/varghele/quickmidi/fix"
	"github.com/varghele/quickmidi/timeline"
)

// DiffStatus classifies one event in the before/after comparison.
type DiffStatus int

const (
	DiffUnchanged DiffStatus = iota
	DiffAdded
	DiffRemoved
	DiffModified
)

// String returns the lowercase status name.
func (s DiffStatus) String() string {
	switch s {
	case DiffAdded:
		return "added"
	case DiffRemoved:
		return "removed"
	case DiffModified:
		return "modified"
	}
	return "unchanged"
}

// DiffEntry pairs the before and after state of one event.
type DiffEntry struct {
	Status DiffStatus
	Track  int
	Before *timeline.Event // nil for added events
	After  *timeline.Event // nil for removed events
}

// Stats summarizes an analysis run.
type Stats struct {
	EventsBefore   int
	EventsAfter    int
	IssuesFound    int
	IssuesResolved int
	FixesApplied   int
	FixesRejected  int
}

// AnalysisReport is the immutable result handed back to the caller.
type AnalysisReport struct {
	ID        string
	CreatedAt time.Time

	Issues     []detect.Issue // full set, ranked
	Applied    []fix.Fix
	Rejected   []fix.Fix
	Unresolved []detect.Issue // ranked; includes regression notes

	Corrected *timeline.Timeline
	Diff      []DiffEntry
	Warnings  []string
	Stats     Stats
}

// New assembles a report from the pipeline outputs. Issues resolved by an
// applied fix are dropped from the unresolved list; issues whose fix was
// rolled back reappear unresolved with the regression note attached.
func New(before, after *timeline.Timeline, issues []detect.Issue, applied, rejected []fix.Fix, warnings []string) *AnalysisReport {
	resolved := make(map[string]bool, len(applied))
	for i := range applied {
		resolved[applied[i].IssueID] = true
	}
	rolledBack := make(map[string]string, len(rejected))
	for i := range rejected {
		rolledBack[rejected[i].IssueID] = rejected[i].Note
	}

	var unresolved []detect.Issue
	for _, is := range issues {
		if resolved[is.ID] {
			continue
		}
		if note, ok := rolledBack[is.ID]; ok {
			// Superseded copy, never an edit of the original.
			is.Note = is.Note + "; fix rolled back: " + note
		}
		unresolved = append(unresolved, is)
	}

	diff := Diff(before, after)
	return &AnalysisReport{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Issues:     Rank(issues),
		Applied:    applied,
		Rejected:   rejected,
		Unresolved: Rank(unresolved),
		Corrected:  after,
		Diff:       diff,
		Warnings:   warnings,
		Stats: Stats{
			EventsBefore:   before.EventCount(),
			EventsAfter:    after.EventCount(),
			IssuesFound:    len(issues),
			IssuesResolved: len(issues) - len(unresolved),
			FixesApplied:   len(applied),
			FixesRejected:  len(rejected),
		},
	}
}

// Rank orders issues by severity descending, then chronological position,
// then track. The input is not modified.
func Rank(issues []detect.Issue) []detect.Issue {
	out := make([]detect.Issue, len(issues))
	copy(out, issues)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Track < out[j].Track
	})
	return out
}

// Diff computes the per-event comparison between two timelines, keyed by
// each event's stable source id.
func Diff(before, after *timeline.Timeline) []DiffEntry {
	type key struct{ track, source int }
	afterBy := make(map[key]*timeline.Event)
	for t := range after.Tracks {
		for i := range after.Tracks[t].Events {
			e := &after.Tracks[t].Events[i]
			afterBy[key{t, e.Source}] = e
		}
	}

	var entries []DiffEntry
	seen := make(map[key]bool)
	for t := range before.Tracks {
		for i := range before.Tracks[t].Events {
			b := &before.Tracks[t].Events[i]
			k := key{t, b.Source}
			seen[k] = true
			a, ok := afterBy[k]
			switch {
			case !ok:
				entries = append(entries, DiffEntry{Status: DiffRemoved, Track: t, Before: b})
			case a.Time != b.Time || a.Value != b.Value || a.Tick != b.Tick:
				entries = append(entries, DiffEntry{Status: DiffModified, Track: t, Before: b, After: a})
			default:
				entries = append(entries, DiffEntry{Status: DiffUnchanged, Track: t, Before: b, After: a})
			}
		}
	}

	var added []DiffEntry
	for t := range after.Tracks {
		for i := range after.Tracks[t].Events {
			a := &after.Tracks[t].Events[i]
			if !seen[key{t, a.Source}] {
				added = append(added, DiffEntry{Status: DiffAdded, Track: t, After: a})
			}
		}
	}
	sort.SliceStable(added, func(i, j int) bool { return added[i].After.Time < added[j].After.Time })
	return append(entries, added...)
}
