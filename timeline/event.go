package timeline

// EventType identifies the kind of MIDI event placed on the timeline.
type EventType uint8

const (
	NoteOn EventType = iota
	NoteOff
	ControlChange
	ProgramChange
	Meta
)

// String returns the short name used in reports and logs.
func (t EventType) String() string {
	switch t {
	case NoteOn:
		return "note-on"
	case NoteOff:
		return "note-off"
	case ControlChange:
		return "cc"
	case ProgramChange:
		return "pc"
	case Meta:
		return "meta"
	}
	return "unknown"
}

// Event represents a single MIDI event at an absolute time.
// Events are value types; only the fix applier creates modified copies.
type Event struct {
	Type    EventType
	Track   int
	Channel uint8
	Key     uint8 // note number, controller number, or program number
	Value   uint8 // velocity or controller value
	Tick    uint32
	Time    float64 // seconds, derived from the tempo map
	Source  int     // stable id for traceability; synthesized events get fresh ids
	Bytes   []byte  // raw message payload, meta events only
}

// Track holds the ordered event sequence for one source track.
type Track struct {
	Index  int
	Events []Event
}

// Clone returns a deep copy of the track.
func (tr *Track) Clone() *Track {
	out := &Track{Index: tr.Index, Events: make([]Event, len(tr.Events))}
	copy(out.Events, tr.Events)
	return out
}

// typeRank orders events at identical timestamps: NoteOff first so that
// back-to-back notes never read as overlapping, then NoteOn, then the rest.
func typeRank(t EventType) int {
	switch t {
	case NoteOff:
		return 0
	case NoteOn:
		return 1
	}
	return 2
}

// Less reports whether a sorts before b in canonical timeline order.
func Less(a, b *Event) bool {
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	if ra, rb := typeRank(a.Type), typeRank(b.Type); ra != rb {
		return ra < rb
	}
	return a.Source < b.Source
}
