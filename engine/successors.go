package engine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/fse"
	"github.com/klauspost/compress/huff0"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/colcluster/stream"
)

// successorFunc compresses one stream into an opaque payload.
type successorFunc func(s *stream.Stream) ([]byte, error)

// ZSTD encoder pool; encoders are safe to reuse with EncodeAll.
var zstdEncoderPool sync.Pool

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

// payload flattens a stream to bytes. String streams carry their element
// lengths as uvarints ahead of the content.
func payload(s *stream.Stream) []byte {
	if s.Type() != stream.String {
		return s.Bytes()
	}
	out := make([]byte, 0, len(s.Bytes())+len(s.Lens())+binary.MaxVarintLen32)
	out = binary.AppendUvarint(out, uint64(len(s.Lens())))
	for _, l := range s.Lens() {
		out = binary.AppendUvarint(out, uint64(l))
	}
	return append(out, s.Bytes()...)
}

func compressStore(s *stream.Stream) ([]byte, error) {
	return payload(s), nil
}

func compressZstd(s *stream.Stream) ([]byte, error) {
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)

	return enc.EncodeAll(payload(s), nil), nil
}

func compressLZ4(s *stream.Stream) ([]byte, error) {
	data := payload(s)
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))

	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// incompressible, stored raw behind a zero marker
		return append([]byte{0}, data...), nil
	}
	return compressed[:n], nil
}

func compressSnappy(s *stream.Stream) ([]byte, error) {
	return snappy.Encode(nil, payload(s)), nil
}

func compressS2(s *stream.Stream) ([]byte, error) {
	return s2.Encode(nil, payload(s)), nil
}

func compressFlate(s *stream.Stream) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(payload(s)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// entropyBlockSize keeps huff0 inputs below its block limit.
const entropyBlockSize = 64 << 10

// rleBlock encodes a block of one repeated byte.
func rleBlock(dst []byte, b byte, n int) []byte {
	dst = append(dst, 1, b)
	return binary.AppendUvarint(dst, uint64(n))
}

func compressHuffman(s *stream.Stream) ([]byte, error) {
	data := payload(s)
	var out []byte
	for start := 0; start < len(data); start += entropyBlockSize {
		block := data[start:min(start+entropyBlockSize, len(data))]
		comp, _, err := huff0.Compress1X(block, &huff0.Scratch{})
		switch {
		case errors.Is(err, huff0.ErrUseRLE):
			out = rleBlock(out, block[0], len(block))
		case errors.Is(err, huff0.ErrIncompressible):
			return nil, fmt.Errorf("%w: huffman block at %d", ErrIncompressible, start)
		case err != nil:
			return nil, err
		default:
			out = append(out, 0)
			out = binary.AppendUvarint(out, uint64(len(comp)))
			out = append(out, comp...)
		}
	}
	return out, nil
}

func compressFSE(s *stream.Stream) ([]byte, error) {
	data := payload(s)
	if len(data) == 0 {
		return nil, nil
	}
	comp, err := fse.Compress(data, &fse.Scratch{})
	switch {
	case errors.Is(err, fse.ErrUseRLE):
		return rleBlock(nil, data[0], len(data)), nil
	case errors.Is(err, fse.ErrIncompressible):
		return nil, fmt.Errorf("%w: fse", ErrIncompressible)
	case err != nil:
		return nil, err
	}
	return append([]byte(nil), comp...), nil
}

// compressFieldLZ delta-codes numeric streams, splits fixed-width elements
// into byte planes, then applies zstd.
func compressFieldLZ(s *stream.Stream) ([]byte, error) {
	data := s.Bytes()
	width := s.EltWidth()
	if s.Type() == stream.Numeric {
		data = deltaEncode(data, width)
	}
	planes := transpose(data, width)

	enc := getZstdEncoder()
	defer putZstdEncoder(enc)

	return enc.EncodeAll(planes, nil), nil
}

// compressGeneric picks the smaller of zstd and raw storage.
func compressGeneric(s *stream.Stream) ([]byte, error) {
	raw := payload(s)
	if s.Type() == stream.Numeric || s.Type() == stream.Struct {
		comp, err := compressFieldLZ(s)
		if err != nil {
			return nil, err
		}
		if len(comp) < len(raw) {
			return append([]byte{2}, comp...), nil
		}
	}
	comp, err := compressZstd(s)
	if err != nil {
		return nil, err
	}
	if len(comp) < len(raw) {
		return append([]byte{1}, comp...), nil
	}
	return append([]byte{0}, raw...), nil
}

// deltaEncode replaces each little-endian integer by its difference to the
// previous one, wrapping at the element width.
func deltaEncode(data []byte, width int) []byte {
	out := make([]byte, len(data))
	var prev uint64
	for off := 0; off+width <= len(data); off += width {
		v := readUint(data[off:], width)
		writeUint(out[off:], width, v-prev)
		prev = v
	}
	return out
}

func readUint(b []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

func writeUint(b []byte, width int, v uint64) {
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, v)
	}
}

// transpose groups byte i of every element together.
func transpose(data []byte, width int) []byte {
	if width <= 1 {
		return data
	}
	n := len(data) / width
	out := make([]byte, len(data))
	for i := range n {
		for j := range width {
			out[j*n+i] = data[i*width+j]
		}
	}
	return out
}
