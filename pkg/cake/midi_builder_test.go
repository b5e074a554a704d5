package cake

import (
	"bytes"
	"encoding/binary"
)

// smfBuilder assembles a well-formed Standard MIDI File in memory for tests.
// It exists so every test below can describe a file in terms of tracks and
// events instead of raw byte literals.
type smfBuilder struct {
	format uint16
	ppq    uint16
	tracks [][]byte
}

func newSMF(format int, ppq uint16) *smfBuilder {
	return &smfBuilder{format: uint16(format), ppq: ppq}
}

// track starts a new MTrk chunk built from a sequence of (deltaTime, bytes...)
// writes via the returned trackBuilder.
func (b *smfBuilder) track() *trackBuilder {
	return &trackBuilder{smf: b}
}

type trackBuilder struct {
	smf *smfBuilder
	buf bytes.Buffer
}

func putVarLen(buf *bytes.Buffer, v uint32) {
	var stack [4]byte
	n := 0
	stack[n] = byte(v & 0x7F)
	n++
	v >>= 7
	for v > 0 {
		stack[n] = byte(v&0x7F) | 0x80
		n++
		v >>= 7
	}
	for i := n - 1; i >= 0; i-- {
		buf.WriteByte(stack[i])
	}
}

func (tb *trackBuilder) event(delta uint32, bytes ...byte) *trackBuilder {
	putVarLen(&tb.buf, delta)
	tb.buf.Write(bytes)
	return tb
}

func (tb *trackBuilder) noteOn(delta uint32, channel, key, vel byte) *trackBuilder {
	return tb.event(delta, 0x90|channel, key, vel)
}

func (tb *trackBuilder) noteOff(delta uint32, channel, key byte) *trackBuilder {
	return tb.event(delta, 0x80|channel, key, 0)
}

func (tb *trackBuilder) tempo(delta uint32, microsPerBeat uint32) *trackBuilder {
	putVarLen(&tb.buf, delta)
	tb.buf.Write([]byte{0xFF, 0x51, 0x03})
	tb.buf.WriteByte(byte(microsPerBeat >> 16))
	tb.buf.WriteByte(byte(microsPerBeat >> 8))
	tb.buf.WriteByte(byte(microsPerBeat))
	return tb
}

// end appends the mandatory end-of-track meta event and commits the chunk to
// the parent builder.
func (tb *trackBuilder) end(delta uint32) *smfBuilder {
	putVarLen(&tb.buf, delta)
	tb.buf.Write([]byte{0xFF, 0x2F, 0x00})
	tb.smf.tracks = append(tb.smf.tracks, tb.buf.Bytes())
	return tb.smf
}

// endTrackTruncated commits the chunk without an end-of-track event, to
// exercise the truncated-track / unexpected-EOF path.
func (tb *trackBuilder) endTrackTruncated() *smfBuilder {
	tb.smf.tracks = append(tb.smf.tracks, tb.buf.Bytes())
	return tb.smf
}

func (b *smfBuilder) bytes() []byte {
	var out bytes.Buffer
	out.WriteString("MThd")
	binary.Write(&out, binary.BigEndian, uint32(6))
	binary.Write(&out, binary.BigEndian, b.format)
	binary.Write(&out, binary.BigEndian, uint16(len(b.tracks)))
	binary.Write(&out, binary.BigEndian, b.ppq)

	for _, tr := range b.tracks {
		out.WriteString("MTrk")
		binary.Write(&out, binary.BigEndian, uint32(len(tr)))
		out.Write(tr)
	}
	return out.Bytes()
}
