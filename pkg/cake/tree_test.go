package cake

import "testing"

// queryLeaf walks a Leaf tree directly (recursion is fine here: test trees
// are tiny) and returns the Note sounding at tick, or nil for silence.
func queryLeaf(l Leaf, tick int32) *Note {
	for l.Node != nil {
		if tick < l.Node.Cutoff {
			l = l.Node.Lower
		} else {
			l = l.Node.Upper
		}
	}
	return l.Note
}

func TestTreeSerializer_EmptyIsAllSilence(t *testing.T) {
	s := newTreeSerializer(1)
	root := s.complete()

	if queryLeaf(root, 0) != nil {
		t.Error("expected an empty tree to be silent everywhere")
	}
}

func TestTreeSerializer_SingleNote(t *testing.T) {
	s := newTreeSerializer(1)
	n := &Note{Start: 10, End: 20, Color: 5}
	s.feedNote(n)
	root := s.complete()

	if got := queryLeaf(root, 5); got != nil {
		t.Errorf("expected silence before the note starts, got %+v", got)
	}
	if got := queryLeaf(root, 10); got == nil || !got.equals(n) {
		t.Errorf("expected the note at its start tick, got %+v", got)
	}
	if got := queryLeaf(root, 19); got == nil || !got.equals(n) {
		t.Errorf("expected the note to still sound just before its end, got %+v", got)
	}
	if got := queryLeaf(root, 20); got != nil {
		t.Errorf("expected silence at and after the note's end tick, got %+v", got)
	}
}

func TestTreeSerializer_TwoSequentialNotes(t *testing.T) {
	s := newTreeSerializer(1)
	a := &Note{Start: 0, End: 10, Color: 1}
	b := &Note{Start: 10, End: 20, Color: 2}
	s.feedNote(a)
	s.feedNote(b)
	root := s.complete()

	if got := queryLeaf(root, 5); got == nil || !got.equals(a) {
		t.Errorf("expected note a mid-way through its span, got %+v", got)
	}
	if got := queryLeaf(root, 15); got == nil || !got.equals(b) {
		t.Errorf("expected note b mid-way through its span, got %+v", got)
	}
}

func TestTreeSerializer_OverlappingNotesKeepLatestOnTop(t *testing.T) {
	s := newTreeSerializer(1)
	a := &Note{Start: 0, End: 20, Color: 1}
	b := &Note{Start: 5, End: 15, Color: 2}
	s.feedNote(a)
	s.feedNote(b)
	root := s.complete()

	if got := queryLeaf(root, 10); got == nil || !got.equals(b) {
		t.Errorf("expected the later-started note to take priority while both sound, got %+v", got)
	}
	if got := queryLeaf(root, 17); got == nil || !got.equals(a) {
		t.Errorf("expected the earlier note to resume once the later one ends, got %+v", got)
	}
}

func TestTreeSerializer_DistinctAdjacentNotesDoNotCollapse(t *testing.T) {
	// a and b are two genuinely distinct notes that merely share a Color
	// (e.g. two notes on the same track/channel played back to back); the
	// collapse rule needs the same note or equal start, end and color, and a
	// shared Color alone is not enough, so this must NOT collapse into a
	// single leaf.
	s := newTreeSerializer(1)
	a := &Note{Start: 0, End: 10, Color: 1}
	b := &Note{Start: 10, End: 20, Color: 1}
	s.feedNote(a)
	s.feedNote(b)
	root := s.complete()

	if root.Node == nil {
		t.Fatal("expected two distinct adjacent notes to remain a real split, not collapse")
	}
	if got := queryLeaf(root, 5); got == nil || !got.equals(a) {
		t.Errorf("expected note a just before the split, got %+v", got)
	}
	if got := queryLeaf(root, 15); got == nil || !got.equals(b) {
		t.Errorf("expected note b just after the split, got %+v", got)
	}
	assertNoUncollapsedDuplicates(t, root)
}

// TestTreeSerializer_SpanningNoteCollapsesAcrossInternalSplit exercises the
// actual collapse law (§8 invariant 4): a single note whose span straddles
// the serializer's internal domain boundaries (here the domain grows from
// [0, 1) to [0, 6) when the note is fed and to [0, 40) on completion, so the
// note crosses the old edge at tick 6 and the midpoint 4 of the pending
// [3, 6) frame) must still be described by one uniform Leaf over its whole
// duration — those boundaries are not real events, so neither side of them
// may survive as a separate, uncollapsed Node child.
func TestTreeSerializer_SpanningNoteCollapsesAcrossInternalSplit(t *testing.T) {
	s := newTreeSerializer(1)
	n := &Note{Start: 3, End: 20, Color: 7}
	s.feedNote(n)
	root := s.complete()

	for tick := int32(3); tick < 20; tick++ {
		if got := queryLeaf(root, tick); got == nil || !got.equals(n) {
			t.Fatalf("tick %d: expected the spanning note, got %+v", tick, got)
		}
	}
	assertNoUncollapsedDuplicates(t, root)
}

// assertNoUncollapsedDuplicates walks a completed tree and fails if any Node
// cell's two children are both uniform Leaves with the same payload (both
// silence, or the same note by the collapse rule's equality) — exactly the
// condition the serializer's collapse step is supposed to prevent.
func assertNoUncollapsedDuplicates(t *testing.T, l Leaf) {
	t.Helper()
	if l.Node == nil {
		return
	}
	if leavesCollapse(l.Node.Lower, l.Node.Upper) {
		t.Errorf("Node at cutoff %d has two uncollapsed identical children", l.Node.Cutoff)
	}
	assertNoUncollapsedDuplicates(t, l.Node.Lower)
	assertNoUncollapsedDuplicates(t, l.Node.Upper)
}

func TestTreeSerializer_GrowsDomainBeyondInitialSpan(t *testing.T) {
	s := newTreeSerializer(1)
	n := &Note{Start: 1000, End: 2000, Color: 3}
	s.feedNote(n)
	root := s.complete()

	if got := queryLeaf(root, 1500); got == nil || !got.equals(n) {
		t.Errorf("expected the tree to grow its domain to cover a late note, got %+v", got)
	}
	if got := queryLeaf(root, 0); got != nil {
		t.Errorf("expected silence before the grown note starts, got %+v", got)
	}
}
