package stream

import (
	"bytes"
	"strings"
)

// MaxPendingBytes bounds a single event. An event that grows past it without a
// terminating blank line is discarded up to the next boundary.
const MaxPendingBytes = 1 << 20

// Decoder turns raw body chunks into complete frames. Events are separated by a
// blank line; everything after the last separator stays buffered as raw bytes, so
// a chunk that ends inside a multi-byte rune is reassembled before any text
// conversion happens.
type Decoder struct {
	buffer []byte
	// scanned is where the boundary search resumes; no boundary starts before it.
	scanned   int
	skipping  bool
	discarded int
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the pending buffer and returns every frame completed by it.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buffer = append(d.buffer, chunk...)
	var frames []Frame

	for {
		end, next := nextBoundary(d.buffer, d.scanned)
		if end == -1 {
			// A newline in the last two bytes may still become a boundary.
			d.scanned = max(0, len(d.buffer)-2)
			break
		}

		if d.skipping {
			d.skipping = false
		} else if f, ok := parseBlock(d.buffer[:end]); ok {
			frames = append(frames, f)
		}
		d.buffer = d.buffer[next:]
		d.scanned = 0
	}

	if len(d.buffer) > MaxPendingBytes {
		if !d.skipping {
			d.skipping = true
			d.discarded++
		}
		d.buffer = append([]byte(nil), d.buffer[len(d.buffer)-2:]...)
		d.scanned = 0
	}

	if len(d.buffer) == 0 {
		d.buffer = nil
	}
	return frames
}

// Flush parses whatever is left once the stream has ended. The remainder is
// discarded either way.
func (d *Decoder) Flush() (Frame, bool) {
	rest, skipping := d.buffer, d.skipping
	d.buffer, d.scanned, d.skipping = nil, 0, false
	if skipping || len(bytes.TrimSpace(rest)) == 0 {
		return Frame{}, false
	}
	return parseBlock(rest)
}

// Pending returns the number of buffered bytes not yet resolved into a frame.
func (d *Decoder) Pending() int {
	return len(d.buffer)
}

// Discarded returns how many events were dropped for exceeding MaxPendingBytes.
func (d *Decoder) Discarded() int {
	return d.discarded
}

// nextBoundary finds the first blank line at or after from. end is where the
// block stops, next is where the following block starts; both are -1 if no
// boundary is buffered yet.
func nextBoundary(buf []byte, from int) (end, next int) {
	offset := from
	for {
		idx := bytes.IndexByte(buf[offset:], '\n')
		if idx == -1 {
			return -1, -1
		}
		nl := offset + idx
		rest := buf[nl+1:]
		switch {
		case len(rest) > 0 && rest[0] == '\n':
			return nl, nl + 2
		case len(rest) > 1 && rest[0] == '\r' && rest[1] == '\n':
			return nl, nl + 3
		}
		offset = nl + 1
	}
}

func parseBlock(block []byte) (Frame, bool) {
	var f Frame
	var data []string

	for _, line := range strings.Split(string(block), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			data = append(data, value)
		case "event":
			f.Event = strings.TrimSpace(value)
		}
	}

	if len(data) == 0 {
		return Frame{}, false
	}
	f.Data = strings.Join(data, "\n")
	return f, true
}
