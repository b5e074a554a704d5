package cake

// IntVector4 is the GPU-ready four-int32 record the packer emits. Two
// encodings share the shape: a Leaf cell (start, end, color, note_num) or
// (0, 0, -1, 0) for silence; a Node cell (cutoff, lowerOffset, upperOffset,
// 0) where the offsets are signed indices into the same buffer — positive
// for a Node, negative for a Leaf.
type IntVector4 struct {
	Val1, Val2, Val3, Val4 int32
}

// pitchCount is the number of per-key interval trees packed into one buffer.
const pitchCount = 256

// rootSlotBase is the number of buffer entries reserved before the first
// real Node/Leaf cell: one sentinel silence cell at index 0 (see the
// zero-index disambiguation below), followed by one root slot per pitch.
const rootSlotBase = 1 + pitchCount

// packTrees flattens 256 per-pitch root leaves into one linear IntVector4
// buffer. Index 0 is reserved as a sentinel silence cell, so that every real
// cell's buffer index is >= rootSlotBase and its negation (used to denote a
// Leaf) is never ambiguous with the Leaf/Node sign convention at zero —
// the disambiguation the flat format's zero-index open question requires.
//
// Root slots occupy indices [1, 256]; slot k reuses the Node cell shape with
// val2 holding pitch k's root offset, keeping every slot a valid, walkable
// cell under the same "offset lives in val2" convention as internal nodes.
func packTrees(roots [pitchCount]Leaf) []IntVector4 {
	buf := make([]IntVector4, rootSlotBase, rootSlotBase+pitchCount*2)
	buf[0] = IntVector4{Val1: 0, Val2: 0, Val3: -1, Val4: 0}
	for k := 0; k < pitchCount; k++ {
		buf[1+k] = IntVector4{}
	}

	for k := 0; k < pitchCount; k++ {
		buf[1+k].Val2 = serializeLeaf(roots[k], &buf)
	}

	return buf
}

// serializeLeaf post-order flattens one Leaf into buf and returns its
// offset: negative for a Leaf (silence or note), positive for a Node. Since
// buf always has at least rootSlotBase entries before this is first called,
// a freshly appended cell's index can never be 0, so negation is always
// unambiguous.
func serializeLeaf(l Leaf, buf *[]IntVector4) int32 {
	if l.Node != nil {
		lower := serializeLeaf(l.Node.Lower, buf)
		upper := serializeLeaf(l.Node.Upper, buf)

		idx := int32(len(*buf))
		*buf = append(*buf, IntVector4{Val1: l.Node.Cutoff, Val2: lower, Val3: upper, Val4: 0})
		return idx
	}

	idx := int32(len(*buf))
	if l.Note == nil {
		*buf = append(*buf, IntVector4{Val1: 0, Val2: 0, Val3: -1, Val4: 0})
	} else {
		*buf = append(*buf, IntVector4{
			Val1: l.Note.Start,
			Val2: l.Note.End,
			Val3: l.Note.Color,
			Val4: l.Note.NoteNum,
		})
	}
	return -idx
}

// Lookup walks the packed tree for pitch and returns the Leaf cell sounding
// at tick. It is a stateless read: any pitch/tick pair can be looked up
// independently, the way the GPU samples the buffer per pixel.
func Lookup(buf []IntVector4, pitch int, tick int32) IntVector4 {
	idx := buf[1+pitch].Val2
	for idx > 0 {
		cell := buf[idx]
		if tick < cell.Val1 {
			idx = cell.Val2
		} else {
			idx = cell.Val3
		}
	}
	return buf[-idx]
}
