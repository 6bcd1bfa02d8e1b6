package framing

import (
	"bytes"
	"fmt"

	"github.com/waftester/desyncsim/internal/hexutil"
	"github.com/waftester/desyncsim/pkg/defaults"
)

type chunkState uint8

const (
	readingSize chunkState = iota + 1
	readingData
	readingDataTrailer
	readingFinalTrailers
	chunkDone
)

// Span is a half-open byte range [Start, End).
type Span struct {
	Start int
	End   int
}

// ChunkScan describes a complete chunked body.
type ChunkScan struct {
	// End is the offset just past the delimiter closing the trailer section.
	End int
	// Chunks are the data ranges, in order, excluding the zero chunk.
	Chunks   []Span
	Trailers [][]byte
}

// ScanChunked walks a chunked body starting at start. It returns the exact
// end of the body, ErrNeedMoreData when buf stops short, or a
// *MalformedChunkError. Nothing is consumed on ErrNeedMoreData, so the
// caller retries with the same start once more bytes arrive.
func ScanChunked(buf []byte, start int, delims [][]byte) (*ChunkScan, error) {
	scan := &ChunkScan{}
	pos := start
	state := readingSize
	var size int64

	for state != chunkDone {
		switch state {
		case readingSize:
			i, sep := indexAny(buf[pos:], delims)
			if i < 0 {
				if len(buf)-pos > defaults.MaxChunkLineLength {
					return nil, &MalformedChunkError{Offset: pos, Reason: "chunk size line too long"}
				}
				return nil, ErrNeedMoreData
			}
			line := buf[pos : pos+i]
			if semi := bytes.IndexByte(line, ';'); semi >= 0 {
				line = line[:semi]
			}
			line = bytes.Trim(line, " \t")
			n, ok := hexutil.ParseUint(line, defaults.MaxChunkSizeDigits)
			if !ok {
				return nil, &MalformedChunkError{Offset: pos, Reason: fmt.Sprintf("invalid chunk size %q", line)}
			}
			pos += i + len(sep)
			size = n
			if size == 0 {
				state = readingFinalTrailers
			} else {
				state = readingData
			}

		case readingData:
			if int64(len(buf)-pos) < size {
				return nil, ErrNeedMoreData
			}
			scan.Chunks = append(scan.Chunks, Span{Start: pos, End: pos + int(size)})
			pos += int(size)
			state = readingDataTrailer

		case readingDataTrailer:
			rest := buf[pos:]
			matched, partial := 0, false
			for _, d := range delims {
				if bytes.HasPrefix(rest, d) {
					matched = len(d)
					break
				}
				if len(rest) < len(d) && bytes.HasPrefix(d, rest) {
					partial = true
				}
			}
			if matched == 0 {
				if partial {
					return nil, ErrNeedMoreData
				}
				return nil, &MalformedChunkError{Offset: pos, Reason: "chunk data not followed by a line delimiter"}
			}
			pos += matched
			state = readingSize

		case readingFinalTrailers:
			i, sep := indexAny(buf[pos:], delims)
			if i < 0 {
				if len(buf)-pos > defaults.MaxChunkLineLength {
					return nil, &MalformedChunkError{Offset: pos, Reason: "trailer line too long"}
				}
				return nil, ErrNeedMoreData
			}
			line := buf[pos : pos+i]
			pos += i + len(sep)
			if len(line) == 0 {
				state = chunkDone
				break
			}
			scan.Trailers = append(scan.Trailers, line)
		}
	}
	scan.End = pos
	return scan, nil
}

// DecodeChunked concatenates the data of a scanned body.
func DecodeChunked(buf []byte, scan *ChunkScan) []byte {
	n := 0
	for _, c := range scan.Chunks {
		n += c.End - c.Start
	}
	out := make([]byte, 0, n)
	for _, c := range scan.Chunks {
		out = append(out, buf[c.Start:c.End]...)
	}
	return out
}

// EncodeChunked writes data as a single chunk plus the terminating zero
// chunk, using lineEnding for every chunk line.
func EncodeChunked(data, lineEnding []byte) []byte {
	out := make([]byte, 0, len(data)+32)
	if len(data) > 0 {
		out = hexutil.AppendUint(out, uint64(len(data)))
		out = append(out, lineEnding...)
		out = append(out, data...)
		out = append(out, lineEnding...)
	}
	out = append(out, '0')
	out = append(out, lineEnding...)
	out = append(out, lineEnding...)
	return out
}
