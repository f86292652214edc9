package engine

import "github.com/hupe1980/colcluster/stream"

// GraphID identifies a graph registered with a Compressor.
type GraphID uint32

// NodeID identifies a codec node registered with a Compressor.
type NodeID uint32

// Standard graphs.
const (
	GraphStore GraphID = iota + 1
	GraphFieldLZ
	GraphZstd
	GraphLZ4
	GraphSnappy
	GraphS2
	GraphFlate
	GraphHuffman
	GraphFSE
	GraphCompressGeneric
	GraphClustering

	firstCustomGraph GraphID = 1 << 16
)

// Standard nodes.
const (
	NodeConcatSerial NodeID = iota + 1
	NodeConcatStruct
	NodeConcatNumeric
	NodeConcatString
	NodeInterleaveString
	NodeDeltaInt
)

// StandardConcat returns the concat node for a stream type.
func StandardConcat(t stream.Type) NodeID {
	switch t {
	case stream.Serial:
		return NodeConcatSerial
	case stream.Struct:
		return NodeConcatStruct
	case stream.Numeric:
		return NodeConcatNumeric
	default:
		return NodeConcatString
	}
}

// NodeSignature describes the inputs a node takes.
type NodeSignature struct {
	// InputTypes is the set of accepted input types.
	InputTypes stream.TypeMask
	// VariableArity is true when the node takes any number of inputs.
	VariableArity bool
	// NumInputs is the number of inputs of a fixed-arity node.
	NumInputs int
}

// ClusteringType returns the single input type of a variable-arity node and
// whether the node can serve as a clustering codec.
func (s NodeSignature) ClusteringType() (stream.Type, bool) {
	if !s.VariableArity {
		return 0, false
	}
	for _, t := range stream.Types {
		if stream.TypeMask(t) == s.InputTypes {
			return t, true
		}
	}
	return 0, false
}
