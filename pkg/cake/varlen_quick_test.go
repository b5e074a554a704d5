package cake

import (
	"bytes"
	"testing"
	"testing/quick"
)

// Property: encoding a value as a variable-length quantity and decoding it
// back always recovers the original value, for every value representable in
// 4 VLQ bytes (28 bits).
func TestQuick_VarLenRoundTrip(t *testing.T) {
	f := func(v uint32) bool {
		v &= 0x0FFFFFFF // clamp to what 4 VLQ bytes can encode

		var buf bytes.Buffer
		putVarLen(&buf, v)
		buf.WriteByte(0) // trailing byte so readVarLen never reads past EOF

		tr := newTrack(0, newRamReader(buf.Bytes()))
		got, err := tr.readVarLen()
		if err != nil {
			t.Logf("unexpected error decoding %d: %v", v, err)
			return false
		}
		return got == v
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 500}); err != nil {
		t.Error(err)
	}
}

// Property: seconds-per-tick scales linearly with microseconds-per-beat and
// inversely with PPQ, matching the tempo meta event's defined conversion.
func TestQuick_TempoToSecondsPerTick(t *testing.T) {
	f := func(microsPerBeat uint32, ppqSeed uint16) bool {
		if microsPerBeat == 0 {
			microsPerBeat = 1
		}
		ppq := ppqSeed%960 + 1 // keep PPQ in a plausible, always-positive range

		agg := newAggregator(ppq)
		agg.updateTempo(microsPerBeat)

		want := float64(microsPerBeat) / (float64(ppq) * 1e6)
		return agg.lastTempoTimeStep() == want
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 500}); err != nil {
		t.Error(err)
	}
}
