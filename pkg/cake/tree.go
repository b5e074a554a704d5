package cake

import (
	"container/list"
	"math"
)

// treeSerializer incrementally builds the minimal interval tree over
// [0, T) for one pitch, fed a chronological stream of notes via feedNote.
// The recursion that a naive implementation would do by value is instead
// materialized as an explicit frame stack: real files produce trees whose
// domain-doubling, deep-left-spine worst case would exceed the call stack.
type treeSerializer struct {
	time int32 // current parse head, monotone

	noteStack *list.List // of *Note, front = most recently started
	nextNote  *Note
	ended     bool

	frames []frame // the recursion, as an explicit stack; frames[len-1] is top

	fedUpTo    int32
	parsedUpTo int32

	finalLeaf    Leaf
	finalLeafSet bool
}

type frameKind int

const (
	frameFetchingFirst frameKind = iota
	frameFetchingSecond
	frameFetchingNote
)

// frame is one pending subtree in the recursion.
type frame struct {
	kind frameKind

	// fetchingFirst / fetchingSecond
	start, half, end int32
	first            Leaf // set once fetchingSecond is entered

	// fetchingNote
	pos int32
}

func newFrame(start, end int32) frame {
	if end-start == 1 {
		return frame{kind: frameFetchingNote, pos: start}
	}
	return frame{kind: frameFetchingFirst, start: start, half: (start + end) / 2, end: end}
}

// newTreeSerializer seeds the serializer with an initial [0, initialEnd)
// domain and runs the Init transition.
func newTreeSerializer(initialEnd int32) *treeSerializer {
	s := &treeSerializer{noteStack: list.New()}
	s.frames = append(s.frames, newFrame(0, initialEnd))
	s.runStateMachine(inputInit, nil)
	return s
}

type inputKind int

const (
	inputInit inputKind = iota
	inputNote
	inputEnd
)

// feedNote hands the serializer the next note in chronological order.
func (s *treeSerializer) feedNote(n *Note) { s.runStateMachine(inputNote, n) }

// complete signals end-of-input and returns the finished root leaf. It must
// only be called once, after every note has been fed.
func (s *treeSerializer) complete() Leaf {
	s.runStateMachine(inputEnd, nil)
	if !s.finalLeafSet {
		panic("cake: tree serializer completed without settling a final leaf")
	}
	return s.finalLeaf
}

func (s *treeSerializer) cleanNoteStackFast(upto int32) {
	for {
		e := s.noteStack.Front()
		if e == nil {
			return
		}
		if e.Value.(*Note).End > upto {
			return
		}
		s.noteStack.Remove(e)
	}
}

func (s *treeSerializer) maxParseDist() int32 {
	if s.nextNote != nil {
		return s.nextNote.Start
	}
	if s.ended {
		return math.MaxInt32
	}
	return 0
}

// nextEvent is the nearest tick at which the leaf value could change: either
// the next queued note's start, or the current topmost note's end.
func (s *treeSerializer) nextEvent() int32 {
	next := int32(math.MaxInt32)
	if s.nextNote != nil {
		next = s.nextNote.Start
	}
	if e := s.noteStack.Front(); e != nil {
		if end := e.Value.(*Note).End; end < next {
			next = end
		}
	}
	return next
}

func (s *treeSerializer) runStateMachine(kind inputKind, note *Note) {
	if s.nextNote != nil {
		n := s.nextNote
		s.nextNote = nil
		s.fedUpTo = n.Start
		s.cleanNoteStackFast(n.End)
		s.noteStack.PushFront(n)
	}

	skipReturns := false
	switch kind {
	case inputEnd:
		s.ended = true
	case inputNote:
		s.nextNote = note
	case inputInit:
		skipReturns = true
	}

	maxParseDist := s.maxParseDist()

	for {
		if !skipReturns {
			if len(s.frames) == 0 {
				panic("cake: tree serializer has no live frame")
			}
			top := s.frames[len(s.frames)-1]
			if top.kind != frameFetchingNote {
				panic("cake: top frame is not fetching a note")
			}
			if top.pos >= maxParseDist {
				return
			}
			s.parsedUpTo = top.pos + 1
			s.time = s.parsedUpTo

			var topNote *Note
			if e := s.noteStack.Front(); e != nil {
				topNote = e.Value.(*Note)
			}

			s.frames = s.frames[:len(s.frames)-1]
			ret := noteLeaf(topNote)
			nextEvt := s.nextEvent()

			combining := true
			for combining {
				if len(s.frames) == 0 {
					if s.ended && s.noteStack.Len() == 0 {
						s.finalLeaf = ret
						s.finalLeafSet = true
						return
					}
					grownEnd := max(nextEvt, s.parsedUpTo)
					if grownEnd > math.MaxInt32/2 {
						grownEnd = math.MaxInt32
					} else {
						grownEnd *= 2
					}
					s.frames = append(s.frames, newFrame(0, grownEnd))
				}

				f := s.frames[len(s.frames)-1]
				s.frames = s.frames[:len(s.frames)-1]

				switch f.kind {
				case frameFetchingFirst:
					if nextEvt >= f.end {
						// The whole remaining subtree is uniform: keep
						// ret as-is and keep popping/combining upward.
						continue
					}
					half := max(f.half, nextEvt)
					s.frames = append(s.frames, frame{
						kind:  frameFetchingSecond,
						first: ret,
						half:  half,
						start: f.start,
						end:   f.end,
					})
					combining = false
				case frameFetchingSecond:
					if leavesCollapse(f.first, ret) {
						ret = f.first
						continue
					}
					ret = Leaf{Node: &treeNode{Cutoff: f.half, Lower: f.first, Upper: ret}}
					continue
				default:
					panic("cake: unexpected frame kind while combining")
				}
			}
		}

		// push-and-split: expand the new top frame until a FetchingNote
		// sits on top, recording the start of the innermost child we
		// descend into. This runs every iteration regardless of
		// skipReturns, since the very first pass (Init) seeds a frame
		// that may itself need splitting before it reaches a leaf.
		var finalStart int32
		for {
			top := s.frames[len(s.frames)-1]
			var start, end int32
			switch top.kind {
			case frameFetchingFirst:
				start, end = top.start, top.half
			case frameFetchingSecond:
				start, end = top.half, top.end
			default:
				finalStart = top.pos
				goto pushed
			}
			finalStart = start
			s.frames = append(s.frames, newFrame(start, end))
		}
	pushed:
		s.cleanNoteStackFast(finalStart)

		skipReturns = false
	}
}
