package stream

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/hupe1980/colcluster/codec"
)

// sampleMagic prefixes every encoded sample file.
var sampleMagic = []byte("CCS1")

// SampleExt is the file extension of encoded samples.
const SampleExt = ".ccs"

// ErrBadSample is returned when a sample file cannot be decoded.
var ErrBadSample = errors.New("stream: malformed sample file")

type wireStream struct {
	Type     Type        `msgpack:"type" json:"type"`
	EltWidth int         `msgpack:"w" json:"w"`
	Data     []byte      `msgpack:"d" json:"d"`
	Lens     []uint32    `msgpack:"l,omitempty" json:"l,omitempty"`
	Meta     map[int]int `msgpack:"m,omitempty" json:"m,omitempty"`
}

// EncodeSample serializes a sample. The codec name is written to the header
// so DecodeSample can pick the right codec.
func EncodeSample(c codec.Codec, sample MultiInput) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	wire := make([]wireStream, len(sample))
	for i, s := range sample {
		wire[i] = wireStream{Type: s.typ, EltWidth: s.eltWidth, Data: s.data, Lens: s.lens, Meta: s.meta}
	}
	body, err := c.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("stream: encode sample: %w", err)
	}
	name := c.Name()
	var buf bytes.Buffer
	buf.Grow(len(sampleMagic) + 1 + len(name) + len(body))
	buf.Write(sampleMagic)
	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)
	buf.Write(body)
	return buf.Bytes(), nil
}

// DecodeSample parses a sample written by EncodeSample and validates every
// stream.
func DecodeSample(data []byte) (MultiInput, error) {
	if !bytes.HasPrefix(data, sampleMagic) || len(data) < len(sampleMagic)+1 {
		return nil, fmt.Errorf("%w: bad header", ErrBadSample)
	}
	data = data[len(sampleMagic):]
	n := int(data[0])
	if len(data) < 1+n {
		return nil, fmt.Errorf("%w: truncated codec name", ErrBadSample)
	}
	name := string(data[1 : 1+n])
	c, ok := codec.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrBadSample, name)
	}

	var wire []wireStream
	if err := c.Unmarshal(data[1+n:], &wire); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSample, err)
	}

	out := make(MultiInput, 0, len(wire))
	for i, w := range wire {
		var (
			s   *Stream
			err error
		)
		switch w.Type {
		case Serial:
			s = NewSerial(w.Data)
		case Struct:
			s, err = NewStruct(w.EltWidth, w.Data)
		case Numeric:
			s, err = NewNumeric(w.EltWidth, w.Data)
		case String:
			s, err = NewString(w.Data, w.Lens)
		default:
			err = fmt.Errorf("unknown type %d", w.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: stream %d: %w", ErrBadSample, i, err)
		}
		for k, v := range w.Meta {
			s.SetIntMetadata(k, v)
		}
		out = append(out, s)
	}
	return out, nil
}
