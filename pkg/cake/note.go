package cake

// unendedTick marks a Note whose end has not yet been assigned.
const unendedTick int32 = -1

// Note is an immutable-after-finalization record of one sounding pitch.
// Start and End are tick counts in the shared output clock; End == -1 means
// the note has not yet ended. Color encodes provenance as
// track_index*16 + channel. NoteNum exists for wire-format parity with the
// packed IntVector4 leaf encoding but is always 0 — the pitch is already
// implied by which of the 256 trees a leaf belongs to.
type Note struct {
	Start   int32
	End     int32
	Color   int32
	NoteNum int32
}

func newNote(start int32, trackID uint32, channel byte) *Note {
	return &Note{
		Start: start,
		End:   unendedTick,
		Color: int32(trackID)*16 + int32(channel&0x0F),
	}
}

func (n *Note) unended() bool { return n.End == unendedTick }

// equals reports whether two notes have identical start, end and color —
// used by the tree serializer's collapse rule. A faster pointer-identity
// check is tried first since two leaves usually refer to the literal same
// Note value.
func (n *Note) equals(other *Note) bool {
	if n == other {
		return true
	}
	return n.Start == other.Start && n.End == other.End && n.Color == other.Color
}

// Leaf is a tagged union: a Node (Node != nil) or a Note/silence subtree
// (Node == nil). When Node == nil, Note == nil means silence and Note != nil
// names the sounding note.
type Leaf struct {
	Note *Note
	Node *treeNode
}

// treeNode is a temporal split: ticks below Cutoff are described by Lower,
// ticks at or above it by Upper.
type treeNode struct {
	Cutoff int32
	Lower  Leaf
	Upper  Leaf
}

func silenceLeaf() Leaf { return Leaf{} }

func noteLeaf(n *Note) Leaf { return Leaf{Note: n} }

// leavesCollapse reports whether two adjacent leaves are both uniform and
// identical, i.e. both silence, or both the same note.
func leavesCollapse(a, b Leaf) bool {
	if a.Node != nil || b.Node != nil {
		return false
	}
	if a.Note == nil && b.Note == nil {
		return true
	}
	if a.Note == nil || b.Note == nil {
		return false
	}
	return a.Note.equals(b.Note)
}
