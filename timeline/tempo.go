package timeline

import "fmt"

// DefaultMicrosPerQuarter is the MIDI default tempo (120 BPM) assumed when
// a file carries no tempo events.
const DefaultMicrosPerQuarter = 500000

// TempoChange is one breakpoint of the tempo map.
type TempoChange struct {
	Tick             uint32
	MicrosPerQuarter uint32
}

// TempoMap is the ordered list of tempo breakpoints for a recording.
// Ticks must be strictly increasing.
type TempoMap []TempoChange

// MalformedTimelineError reports structurally invalid input: a broken tempo
// map or an event referencing an undefined track or channel.
type MalformedTimelineError struct {
	Index  int
	Reason string
}

func (e *MalformedTimelineError) Error() string {
	return fmt.Sprintf("malformed timeline at index %d: %s", e.Index, e.Reason)
}

// Validate checks the breakpoint invariants.
func (m TempoMap) Validate() error {
	for i, tc := range m {
		if tc.MicrosPerQuarter == 0 {
			return &MalformedTimelineError{Index: i, Reason: "tempo breakpoint has zero microseconds per quarter"}
		}
		if i > 0 && tc.Tick <= m[i-1].Tick {
			return &MalformedTimelineError{Index: i, Reason: fmt.Sprintf("tempo breakpoint tick %d not after previous tick %d", tc.Tick, m[i-1].Tick)}
		}
	}
	return nil
}

// tempoTable precomputes absolute seconds at each breakpoint so that
// tick<->time conversion is a scan plus linear interpolation.
type tempoTable struct {
	ticks  []uint32
	times  []float64
	micros []uint32
	tpqn   uint16
}

func newTempoTable(m TempoMap, tpqn uint16) (*tempoTable, error) {
	if tpqn == 0 {
		return nil, &MalformedTimelineError{Index: -1, Reason: "ticks per quarter note is zero"}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	t := &tempoTable{tpqn: tpqn}
	if len(m) == 0 || m[0].Tick != 0 {
		t.ticks = append(t.ticks, 0)
		t.times = append(t.times, 0)
		t.micros = append(t.micros, DefaultMicrosPerQuarter)
	}
	for _, tc := range m {
		last := len(t.ticks) - 1
		dTicks := float64(tc.Tick - t.ticks[last])
		dTime := dTicks * t.secondsPerTickAt(last)
		t.ticks = append(t.ticks, tc.Tick)
		t.times = append(t.times, t.times[last]+dTime)
		t.micros = append(t.micros, tc.MicrosPerQuarter)
	}
	return t, nil
}

func (t *tempoTable) secondsPerTickAt(i int) float64 {
	return float64(t.micros[i]) / 1e6 / float64(t.tpqn)
}

// TimeAt converts an absolute tick to seconds.
func (t *tempoTable) TimeAt(tick uint32) float64 {
	i := len(t.ticks) - 1
	for i > 0 && t.ticks[i] > tick {
		i--
	}
	return t.times[i] + float64(tick-t.ticks[i])*t.secondsPerTickAt(i)
}

// TickAt converts seconds back to the nearest absolute tick.
func (t *tempoTable) TickAt(sec float64) uint32 {
	if sec <= 0 {
		return 0
	}
	i := len(t.times) - 1
	for i > 0 && t.times[i] > sec {
		i--
	}
	ticks := float64(t.ticks[i]) + (sec-t.times[i])/t.secondsPerTickAt(i)
	if ticks < 0 {
		return 0
	}
	return uint32(ticks + 0.5)
}

// SecondsPerQuarterAt returns the quarter-note duration in effect at a tick.
func (t *tempoTable) SecondsPerQuarterAt(tick uint32) float64 {
	i := len(t.ticks) - 1
	for i > 0 && t.ticks[i] > tick {
		i--
	}
	return float64(t.micros[i]) / 1e6
}
