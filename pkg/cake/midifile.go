package cake

import (
	"math"
	"os"
)

// initialTreeSpan is the domain every per-pitch tree serializer starts with.
// A width of 1 tick is the smallest legal span (newFrame requires end>start)
// and grows via domain-doubling the moment any note needs more room, so the
// choice only matters for pitches that never sound: they stay a single
// silence leaf over [0, 1), which Lookup treats as silence for any tick
// since a root Leaf (not a Node) is returned unconditionally.
const initialTreeSpan = 1

// flushBatchSize is how many note events accumulate before the orchestrator
// flushes fully-ended notes out of the aggregator into the tree serializers.
// A final flush always happens at end-of-file regardless of this cadence.
const flushBatchSize = 4096

// MidiFile is an opened, header-validated Standard MIDI File ready for
// ParseAllTracks. Open validates the MThd/MTrk chunk structure up front;
// ParseAllTracks does the actual per-tick decode and tree build.
type MidiFile struct {
	header *fileHeader

	ram     bool
	ramData []byte
	diskSrc *diskSource

	closed bool
}

// Open validates path's MThd/MTrk chunk structure and returns a MidiFile
// ready for ParseAllTracks. If loadToRAM is true the whole file is read into
// memory up front and every track is a zero-copy slice view; otherwise
// tracks are streamed from disk through bounded section readers.
//
// onTrackDiscovered, if non-nil, is invoked once per MTrk chunk found during
// header scanning with the running count; it must not block. It is never
// called again during ParseAllTracks.
func Open(path string, loadToRAM bool, onTrackDiscovered func(count int)) (*MidiFile, error) {
	if loadToRAM {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrNotFound
			}
			return nil, wrapError(ErrKindUnknownFilesystem, "reading MIDI file into memory", err)
		}
		r := newRamReader(data)
		h, err := parseHeader(r, onTrackDiscovered)
		if err != nil {
			return nil, err
		}
		return &MidiFile{header: h, ram: true, ramData: data}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, wrapError(ErrKindUnknownFilesystem, "opening MIDI file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, wrapError(ErrKindUnknownFilesystem, "statting MIDI file", err)
	}

	src := &diskSource{f: f, fileSize: info.Size()}
	r := newDiskReader(src, 0, info.Size())
	h, err := parseHeader(r, onTrackDiscovered)
	if err != nil {
		src.close()
		return nil, err
	}
	return &MidiFile{header: h, diskSrc: src}, nil
}

// PPQ returns the file's pulses-per-quarter-note time resolution.
func (m *MidiFile) PPQ() uint16 { return m.header.ppq }

// TrackCount returns the number of MTrk chunks discovered during Open.
func (m *MidiFile) TrackCount() uint32 { return uint32(len(m.header.tracks)) }

func (m *MidiFile) close() {
	if m.closed {
		return
	}
	m.closed = true
	if !m.ram && m.diskSrc != nil {
		m.diskSrc.close()
	}
}

func (m *MidiFile) openTrackReader(tp trackPos) (reader, error) {
	if m.ram {
		if tp.offset < 0 || tp.length < 0 || tp.offset+tp.length > int64(len(m.ramData)) {
			return nil, newError(ErrKindCorruptChunks, "track chunk exceeds file bounds")
		}
		return newRamReader(m.ramData[tp.offset : tp.offset+tp.length]), nil
	}
	if tp.offset < 0 || tp.length < 0 || tp.offset+tp.length > m.diskSrc.size() {
		return nil, newError(ErrKindCorruptChunks, "track chunk exceeds file bounds")
	}
	return newDiskReader(m.diskSrc, tp.offset, tp.length), nil
}

// ParseAllTracks runs the full pipeline: every track is decoded in
// lock-step along a shared native-MIDI tick clock, note events are
// aggregated per pitch, fully-ended notes are periodically flushed into
// each pitch's tree serializer, and on completion all 256 trees are
// finalized and packed into one flat buffer. tps is the caller-chosen
// output clock rate; Note.Start/Note.End in the result are expressed in
// that resampled clock, not in the file's native PPQ ticks.
func (m *MidiFile) ParseAllTracks(tps uint32) ([]IntVector4, error) {
	defer m.close()

	agg := newAggregator(m.header.ppq)

	tracks := make([]*track, len(m.header.tracks))
	for i, tp := range m.header.tracks {
		r, err := m.openTrackReader(tp)
		if err != nil {
			return nil, err
		}
		tracks[i] = newTrack(uint32(i), r)
	}

	serializers := make([]*treeSerializer, pitchCount)
	for k := range serializers {
		serializers[k] = newTreeSerializer(initialTreeSpan)
	}

	elapsedSeconds := 0.0
	remaining := len(tracks)

	for remaining > 0 {
		outputTick, err := outputTickFor(elapsedSeconds, tps)
		if err != nil {
			return nil, err
		}

		for _, t := range tracks {
			if t.ended {
				continue
			}
			wasEnded := t.ended
			if err := t.readTick(agg, outputTick); err != nil {
				return nil, err
			}
			if !wasEnded && t.ended {
				remaining--
			}
		}

		elapsedSeconds += agg.lastTempoTimeStep()

		if agg.EventsSinceFlush >= flushBatchSize {
			flushAllPitches(agg, serializers)
		}
	}

	flushAllPitches(agg, serializers)
	if !agg.assertEmpty() {
		panic("cake: note queues non-empty after final flush")
	}

	var roots [pitchCount]Leaf
	for k := range serializers {
		roots[k] = serializers[k].complete()
	}

	return packTrees(roots), nil
}

func outputTickFor(elapsedSeconds float64, tps uint32) (int32, error) {
	raw := math.Floor(elapsedSeconds * float64(tps))
	if raw > math.MaxInt32 {
		return 0, ErrMIDITooLong
	}
	return int32(raw), nil
}

func flushAllPitches(agg *Aggregator, serializers []*treeSerializer) {
	for pitch, s := range serializers {
		for _, n := range agg.flushNotes(pitch) {
			s.feedNote(n)
		}
	}
	agg.EventsSinceFlush = 0
}
