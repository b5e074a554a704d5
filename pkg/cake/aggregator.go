package cake

// Aggregator holds the 256 per-pitch ordered note queues and the current
// tempo's seconds-per-tick conversion. Tracks push notes into it as they
// decode note-on/note-off events; the orchestrator periodically drains
// fully-ended notes out of it into each pitch's tree serializer.
type Aggregator struct {
	ppq            uint16
	secondsPerTick float64

	// EventsSinceFlush drives the orchestrator's flush cadence (§4.D).
	EventsSinceFlush uint64
	// NoteEventsCounted is a read-only diagnostic: every note-on and every
	// note-off event the track decoder processes (two per sounded note),
	// independent of flush cadence.
	NoteEventsCounted uint64

	queues [256][]*Note // per pitch, newest at the front (index 0)
}

const defaultMicrosPerBeat = 500000 // 120 BPM, the MIDI default absent a tempo meta event

func newAggregator(ppq uint16) *Aggregator {
	agg := &Aggregator{ppq: ppq}
	agg.updateTempo(defaultMicrosPerBeat)
	return agg
}

// updateTempo recomputes secondsPerTick from a new microseconds-per-beat
// value, as read from a 0x51 set-tempo meta event.
func (a *Aggregator) updateTempo(microsPerBeat uint32) {
	a.secondsPerTick = float64(microsPerBeat) / (float64(a.ppq) * 1e6)
}

// lastTempoTimeStep reports how many wall-clock seconds one MIDI tick
// currently represents, so the orchestrator can convert native tick deltas
// into the output clock's resampled ticks.
func (a *Aggregator) lastTempoTimeStep() float64 { return a.secondsPerTick }

func (a *Aggregator) addNote(key byte, n *Note) {
	a.queues[key] = append([]*Note{n}, a.queues[key]...)
	a.EventsSinceFlush++
}

func (a *Aggregator) countNoteEvent() { a.NoteEventsCounted++ }

// flushNotes drains every fully-ended note from the back (oldest) of pitch's
// queue, stopping at the first still-open note, and returns them oldest
// first — the chronological order feed_note requires.
func (a *Aggregator) flushNotes(pitch int) []*Note {
	q := a.queues[pitch]
	cut := len(q)
	for cut > 0 && !q[cut-1].unended() {
		cut--
	}
	if cut == len(q) {
		return nil
	}
	flushed := make([]*Note, len(q)-cut)
	for i, n := range q[cut:] {
		flushed[len(flushed)-1-i] = n
	}
	a.queues[pitch] = q[:cut]
	return flushed
}

// assertEmpty reports whether every pitch queue has been fully drained —
// the invariant that every created note was eventually flushed.
func (a *Aggregator) assertEmpty() bool {
	for _, q := range a.queues {
		if len(q) != 0 {
			return false
		}
	}
	return true
}
