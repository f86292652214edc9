package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
)

// ClusteringTagMetadataID is the int metadata key holding a stream's
// clustering tag.
const ClusteringTagMetadataID = 0

var (
	// ErrInvalidWidth is returned when an element width does not fit the type.
	ErrInvalidWidth = errors.New("stream: invalid element width")
	// ErrInvalidLength is returned when content size is not a multiple of the
	// element width, or string lengths do not sum to the content size.
	ErrInvalidLength = errors.New("stream: invalid content length")
	// ErrNoTag is returned when a stream carries no clustering tag.
	ErrNoTag = errors.New("stream: stream has no clustering tag")
)

// Stream is an immutable typed buffer plus integer metadata.
//
// Serial streams have element width 1, string streams width 0 with explicit
// per-element lengths, struct and numeric streams a fixed width.
type Stream struct {
	typ      Type
	eltWidth int
	data     []byte
	lens     []uint32
	meta     map[int]int
}

// NewSerial wraps raw bytes.
func NewSerial(data []byte) *Stream {
	return &Stream{typ: Serial, eltWidth: 1, data: data}
}

// NewStruct wraps fixed-size records of width bytes.
func NewStruct(width int, data []byte) (*Stream, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: struct width %d", ErrInvalidWidth, width)
	}
	if len(data)%width != 0 {
		return nil, fmt.Errorf("%w: %d bytes for width %d", ErrInvalidLength, len(data), width)
	}
	return &Stream{typ: Struct, eltWidth: width, data: data}, nil
}

// NewNumeric wraps little-endian integers of 1, 2, 4 or 8 bytes.
func NewNumeric(width int, data []byte) (*Stream, error) {
	switch width {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("%w: numeric width %d", ErrInvalidWidth, width)
	}
	if len(data)%width != 0 {
		return nil, fmt.Errorf("%w: %d bytes for width %d", ErrInvalidLength, len(data), width)
	}
	return &Stream{typ: Numeric, eltWidth: width, data: data}, nil
}

// NumericFromUint64 encodes values as little-endian integers of the given
// width, truncating each value to that width.
func NumericFromUint64(width int, values []uint64) (*Stream, error) {
	buf := make([]byte, width*len(values))
	for i, v := range values {
		off := i * width
		switch width {
		case 1:
			buf[off] = byte(v)
		case 2:
			binary.LittleEndian.PutUint16(buf[off:], uint16(v))
		case 4:
			binary.LittleEndian.PutUint32(buf[off:], uint32(v))
		case 8:
			binary.LittleEndian.PutUint64(buf[off:], v)
		default:
			return nil, fmt.Errorf("%w: numeric width %d", ErrInvalidWidth, width)
		}
	}
	return &Stream{typ: Numeric, eltWidth: width, data: buf}, nil
}

// NewString wraps concatenated string content and the length of each string.
func NewString(content []byte, lens []uint32) (*Stream, error) {
	var total uint64
	for _, l := range lens {
		total += uint64(l)
	}
	if total != uint64(len(content)) {
		return nil, fmt.Errorf("%w: lengths sum to %d, content is %d bytes", ErrInvalidLength, total, len(content))
	}
	return &Stream{typ: String, data: content, lens: lens}, nil
}

// WithTag returns s with its clustering tag set. The receiver is modified and
// returned for chaining during construction.
func (s *Stream) WithTag(tag int32) *Stream {
	s.SetIntMetadata(ClusteringTagMetadataID, int(tag))
	return s
}

// SetIntMetadata sets an integer metadata entry.
func (s *Stream) SetIntMetadata(key, value int) {
	if s.meta == nil {
		s.meta = make(map[int]int, 1)
	}
	s.meta[key] = value
}

// IntMetadata returns an integer metadata entry.
func (s *Stream) IntMetadata(key int) (int, bool) {
	v, ok := s.meta[key]
	return v, ok
}

// Tag returns the clustering tag.
func (s *Stream) Tag() (int32, error) {
	v, ok := s.meta[ClusteringTagMetadataID]
	if !ok {
		return 0, ErrNoTag
	}
	return int32(v), nil
}

func (s *Stream) Type() Type       { return s.typ }
func (s *Stream) EltWidth() int    { return s.eltWidth }
func (s *Stream) Bytes() []byte    { return s.data }
func (s *Stream) Lens() []uint32   { return s.lens }
func (s *Stream) ContentSize() int { return len(s.data) }

// NumElts returns the number of elements.
func (s *Stream) NumElts() int {
	if s.typ == String {
		return len(s.lens)
	}
	if s.eltWidth == 0 {
		return 0
	}
	return len(s.data) / s.eltWidth
}

// Column returns the column identity of the stream.
func (s *Stream) Column() (ColumnInfo, error) {
	tag, err := s.Tag()
	if err != nil {
		return ColumnInfo{}, err
	}
	return ColumnInfo{Tag: tag, Type: s.typ, Width: s.eltWidth}, nil
}

// Clone returns a deep copy.
func (s *Stream) Clone() *Stream {
	c := &Stream{typ: s.typ, eltWidth: s.eltWidth}
	c.data = append([]byte(nil), s.data...)
	if s.lens != nil {
		c.lens = append([]uint32(nil), s.lens...)
	}
	if s.meta != nil {
		c.meta = maps.Clone(s.meta)
	}
	return c
}

// MultiInput is one training sample: an ordered list of streams.
type MultiInput []*Stream

// Size returns the total content size of all streams.
func (m MultiInput) Size() uint64 {
	var n uint64
	for _, s := range m {
		n += uint64(len(s.data))
	}
	return n
}

// Select returns the streams whose column passes keep. Streams without a
// tag are never selected.
func (m MultiInput) Select(keep func(ColumnInfo) bool) []*Stream {
	var out []*Stream
	for _, s := range m {
		col, err := s.Column()
		if err != nil {
			continue
		}
		if keep == nil || keep(col) {
			out = append(out, s)
		}
	}
	return out
}
