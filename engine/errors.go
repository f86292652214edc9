package engine

import "errors"

var (
	// ErrUnknownGraph is returned for a graph ID that was never registered.
	ErrUnknownGraph = errors.New("engine: unknown graph")
	// ErrUnknownNode is returned for a node ID that was never registered.
	ErrUnknownNode = errors.New("engine: unknown node")
	// ErrTypeMismatch is returned when a graph or node receives a stream type
	// it does not accept.
	ErrTypeMismatch = errors.New("engine: input type not accepted")
	// ErrNotClusteringCodec is returned when a node used as clustering codec
	// does not take a variable number of inputs of a single type.
	ErrNotClusteringCodec = errors.New("engine: node is not a clustering codec")
	// ErrIncompressible is returned by entropy coders that cannot shrink
	// their input.
	ErrIncompressible = errors.New("engine: input is incompressible")
	// ErrNoStartingGraph is returned when compressing before a starting
	// graph was selected.
	ErrNoStartingGraph = errors.New("engine: no starting graph selected")
	// ErrInvalidParams is returned when a parameterized graph's local
	// parameters cannot be decoded.
	ErrInvalidParams = errors.New("engine: invalid graph parameters")
)
