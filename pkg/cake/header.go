package cake

// trackPos is the {offset, length} pair recorded for one MTrk chunk, offsets
// relative to the start of the file.
type trackPos struct {
	offset int64
	length int64
}

// fileHeader is the result of scanning MThd and the following MTrk chunks.
type fileHeader struct {
	format uint16
	ppq    uint16
	tracks []trackPos
}

const smpteBit = 0x8000

// parseHeader reads the MThd chunk, validates format and PPQ, then scans
// every MTrk chunk without decoding its body, recording {offset, length}.
// onTrackDiscovered, if non-nil, is called once per discovered track with
// the running count.
func parseHeader(r reader, onTrackDiscovered func(count int)) (*fileHeader, error) {
	if err := assertHeader(r, "MThd"); err != nil {
		return nil, err
	}

	headerLen, err := readValue(r, 4)
	if err != nil {
		return nil, err
	}
	if headerLen < 6 {
		return nil, newError(ErrKindCorruptChunks, "MThd body shorter than 6 bytes")
	}

	format, err := readValue(r, 2)
	if err != nil {
		return nil, err
	}
	if _, err := readValue(r, 2); err != nil { // stored track count, ignored in favor of the scan below
		return nil, err
	}
	division, err := readValue(r, 2)
	if err != nil {
		return nil, err
	}
	if division&smpteBit != 0 {
		return nil, newError(ErrKindCorruptChunks, "SMPTE timing division is not supported")
	}

	if extra := int64(headerLen) - 6; extra > 0 {
		if err := r.skip(extra); err != nil {
			return nil, err
		}
	}

	if format == 2 {
		return nil, ErrFormat2MIDI
	}

	var tracks []trackPos
	for !r.isEnd() {
		if err := assertHeader(r, "MTrk"); err != nil {
			return nil, err
		}
		length, err := readValue(r, 4)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, trackPos{offset: r.position(), length: int64(length)})
		if onTrackDiscovered != nil {
			onTrackDiscovered(len(tracks))
		}
		if err := r.skip(int64(length)); err != nil {
			return nil, err
		}
	}

	return &fileHeader{format: uint16(format), ppq: uint16(division), tracks: tracks}, nil
}
