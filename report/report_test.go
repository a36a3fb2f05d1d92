package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varghele/quickmidi/detect"
	"github.com/varghele/quickmidi/fix"
	"github.com/varghele/quickmidi/timeline"
)

func buildTimeline(t *testing.T) *timeline.Timeline {
	t.Helper()
	tl, err := timeline.Build([]timeline.RawEvent{
		{Tick: 480, Type: timeline.NoteOn, Key: 60, Value: 100},
		{Tick: 960, Type: timeline.NoteOff, Key: 60},
		{Tick: 1440, Type: timeline.NoteOn, Key: 64, Value: 90},
		{Tick: 1920, Type: timeline.NoteOff, Key: 64},
	}, nil, 480)
	require.NoError(t, err)
	return tl
}

func TestRankSeverityThenTime(t *testing.T) {
	issues := []detect.Issue{
		{ID: "a", Kind: detect.KindTimingDrift, Severity: detect.SeverityInfo, Time: 0.1},
		{ID: "b", Kind: detect.KindStuckNote, Severity: detect.SeverityCritical, Time: 2.0},
		{ID: "c", Kind: detect.KindOverlap, Severity: detect.SeverityWarning, Time: 1.0},
		{ID: "d", Kind: detect.KindStuckNote, Severity: detect.SeverityCritical, Time: 0.5},
	}

	ranked := Rank(issues)
	got := []string{ranked[0].ID, ranked[1].ID, ranked[2].ID, ranked[3].ID}
	assert.Equal(t, []string{"d", "b", "c", "a"}, got)

	// The input order is untouched.
	assert.Equal(t, "a", issues[0].ID)
}

func TestDiffClassifiesEveryEvent(t *testing.T) {
	before := buildTimeline(t)
	after := before.Clone()

	// Modify the first note-on, remove the second note, add an event.
	after.Tracks[0].Events[0].Value = 110
	kept := after.Tracks[0].Events[:0]
	for _, e := range after.Tracks[0].Events {
		if e.Key != 64 {
			kept = append(kept, e)
		}
	}
	after.Tracks[0].Events = append(kept, timeline.Event{
		Type: timeline.NoteOff, Key: 60, Tick: 2400,
		Time: after.TimeAt(2400), Source: after.AllocSource(),
	})
	after.Sort(0)

	counts := map[DiffStatus]int{}
	for _, d := range Diff(before, after) {
		counts[d.Status]++
	}
	assert.Equal(t, 1, counts[DiffModified])
	assert.Equal(t, 2, counts[DiffRemoved])
	assert.Equal(t, 1, counts[DiffAdded])
	assert.Equal(t, 1, counts[DiffUnchanged])
}

func TestNewSplitsResolvedFromRolledBack(t *testing.T) {
	tl := buildTimeline(t)
	issues := []detect.Issue{
		{ID: "ok", Kind: detect.KindStuckNote, Severity: detect.SeverityCritical, Note: "stuck"},
		{ID: "rb", Kind: detect.KindTimingDrift, Severity: detect.SeverityInfo, Note: "drift"},
		{ID: "un", Kind: detect.KindOverlap, Severity: detect.SeverityWarning, Note: "overlap"},
	}
	applied := []fix.Fix{{ID: "f1", IssueID: "ok"}}
	rejected := []fix.Fix{{ID: "f2", IssueID: "rb", Note: "made things worse"}}

	r := New(tl, tl, issues, applied, rejected, []string{"w"})

	require.Len(t, r.Unresolved, 2)
	byID := map[string]detect.Issue{}
	for _, is := range r.Unresolved {
		byID[is.ID] = is
	}
	assert.NotContains(t, byID, "ok")
	assert.Contains(t, byID["rb"].Note, "fix rolled back: made things worse")
	assert.Equal(t, "overlap", byID["un"].Note)

	// The originals were copied, never edited.
	assert.Equal(t, "drift", issues[1].Note)

	assert.Equal(t, 1, r.Stats.IssuesResolved)
	assert.Equal(t, 1, r.Stats.FixesApplied)
	assert.Equal(t, 1, r.Stats.FixesRejected)
	assert.NotEmpty(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())
}

func TestRenderMentionsEverySection(t *testing.T) {
	tl := buildTimeline(t)
	issues := []detect.Issue{{
		ID: "i1", Kind: detect.KindStuckNote, Severity: detect.SeverityCritical,
		Note: "never receives a note-off", AudioChecked: true, AudioConfidence: 0.9,
	}}
	applied := []fix.Fix{{ID: "f1", IssueID: "i1", Op: fix.OpInsertNoteOff, Note: "insert note-off"}}

	out := Render(New(tl, tl, issues, applied, nil, []string{"degraded"}))
	assert.Contains(t, out, "Analysis report")
	assert.Contains(t, out, "never receives a note-off")
	assert.Contains(t, out, "[audio 0.90]")
	assert.Contains(t, out, "insert note-off")
	assert.Contains(t, out, "warning: degraded")
	assert.Contains(t, out, "Diff: 0 added, 0 removed, 0 modified")
}
