package engine

import (
	"fmt"

	"github.com/hupe1980/colcluster/stream"
)

// nodeFunc combines input streams into one or two outputs. With two outputs
// the first is a numeric sizes stream.
type nodeFunc func(in []*stream.Stream) ([]*stream.Stream, error)

type nodeDesc struct {
	name  string
	sig   NodeSignature
	apply nodeFunc
}

func standardNodes() map[NodeID]*nodeDesc {
	return map[NodeID]*nodeDesc{
		NodeConcatSerial: {
			name:  "concat_serial",
			sig:   NodeSignature{InputTypes: stream.MaskOf(stream.Serial), VariableArity: true},
			apply: concatFixed,
		},
		NodeConcatStruct: {
			name:  "concat_struct",
			sig:   NodeSignature{InputTypes: stream.MaskOf(stream.Struct), VariableArity: true},
			apply: concatFixed,
		},
		NodeConcatNumeric: {
			name:  "concat_numeric",
			sig:   NodeSignature{InputTypes: stream.MaskOf(stream.Numeric), VariableArity: true},
			apply: concatFixed,
		},
		NodeConcatString: {
			name:  "concat_string",
			sig:   NodeSignature{InputTypes: stream.MaskOf(stream.String), VariableArity: true},
			apply: concatString,
		},
		NodeInterleaveString: {
			name:  "interleave_string",
			sig:   NodeSignature{InputTypes: stream.MaskOf(stream.String), VariableArity: true},
			apply: interleaveString,
		},
		NodeDeltaInt: {
			name:  "delta_int",
			sig:   NodeSignature{InputTypes: stream.MaskOf(stream.Numeric), NumInputs: 1},
			apply: deltaInt,
		},
	}
}

func sizesStream(in []*stream.Stream) *stream.Stream {
	sizes := make([]uint64, len(in))
	for i, s := range in {
		sizes[i] = uint64(s.NumElts())
	}
	out, _ := stream.NumericFromUint64(4, sizes)
	return out
}

func concatFixed(in []*stream.Stream) ([]*stream.Stream, error) {
	var total int
	for _, s := range in {
		total += s.ContentSize()
	}
	data := make([]byte, 0, total)
	for _, s := range in {
		data = append(data, s.Bytes()...)
	}

	first := in[0]
	var (
		out *stream.Stream
		err error
	)
	switch first.Type() {
	case stream.Serial:
		out = stream.NewSerial(data)
	case stream.Struct:
		out, err = stream.NewStruct(first.EltWidth(), data)
	case stream.Numeric:
		out, err = stream.NewNumeric(first.EltWidth(), data)
	default:
		err = fmt.Errorf("%w: concat of %s", ErrTypeMismatch, first.Type())
	}
	if err != nil {
		return nil, err
	}
	return []*stream.Stream{sizesStream(in), out}, nil
}

func concatString(in []*stream.Stream) ([]*stream.Stream, error) {
	var (
		content []byte
		lens    []uint32
	)
	for _, s := range in {
		content = append(content, s.Bytes()...)
		lens = append(lens, s.Lens()...)
	}
	out, err := stream.NewString(content, lens)
	if err != nil {
		return nil, err
	}
	return []*stream.Stream{sizesStream(in), out}, nil
}

// interleaveString emits element 0 of every input, then element 1, and so
// on. All inputs must have the same number of elements.
func interleaveString(in []*stream.Stream) ([]*stream.Stream, error) {
	n := in[0].NumElts()
	offsets := make([][]int, len(in))
	for i, s := range in {
		if s.NumElts() != n {
			return nil, fmt.Errorf("engine: interleave needs equal element counts, got %d and %d", n, s.NumElts())
		}
		offs := make([]int, n+1)
		for j, l := range s.Lens() {
			offs[j+1] = offs[j] + int(l)
		}
		offsets[i] = offs
	}

	var (
		content []byte
		lens    = make([]uint32, 0, n*len(in))
	)
	for j := range n {
		for i, s := range in {
			content = append(content, s.Bytes()[offsets[i][j]:offsets[i][j+1]]...)
			lens = append(lens, s.Lens()[j])
		}
	}
	out, err := stream.NewString(content, lens)
	if err != nil {
		return nil, err
	}
	return []*stream.Stream{out}, nil
}

func deltaInt(in []*stream.Stream) ([]*stream.Stream, error) {
	if len(in) != 1 {
		return nil, fmt.Errorf("%w: delta_int takes exactly one input, got %d", ErrNotClusteringCodec, len(in))
	}
	s := in[0]
	out, err := stream.NewNumeric(s.EltWidth(), deltaEncode(s.Bytes(), s.EltWidth()))
	if err != nil {
		return nil, err
	}
	return []*stream.Stream{out}, nil
}
