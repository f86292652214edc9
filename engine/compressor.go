package engine

import (
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/colcluster/clustering"
	"github.com/hupe1980/colcluster/codec"
	"github.com/hupe1980/colcluster/stream"
)

type graphDesc struct {
	name     string
	mask     stream.TypeMask
	compress successorFunc

	// set on graphs derived from another graph
	base GraphID
	// local parameters of a parameterized clustering graph
	localParams []byte
	successors  []GraphID
	codecs      []NodeID
}

// Compressor holds the graph and node registry and the selected starting
// graph. It is safe for concurrent use.
type Compressor struct {
	mu        sync.RWMutex
	graphs    map[GraphID]*graphDesc
	nodes     map[NodeID]*nodeDesc
	nextGraph GraphID
	starting  GraphID
	codec     codec.Codec
}

// NewCompressor returns a compressor with every standard graph and node
// registered and no starting graph selected.
func NewCompressor() *Compressor {
	return &Compressor{
		graphs: map[GraphID]*graphDesc{
			GraphStore:           {name: "store", mask: stream.MaskAny, compress: compressStore},
			GraphFieldLZ:         {name: "field_lz", mask: stream.MaskOf(stream.Numeric, stream.Struct), compress: compressFieldLZ},
			GraphZstd:            {name: "zstd", mask: stream.MaskOf(stream.Serial), compress: compressZstd},
			GraphLZ4:             {name: "lz4", mask: stream.MaskOf(stream.Serial), compress: compressLZ4},
			GraphSnappy:          {name: "snappy", mask: stream.MaskOf(stream.Serial), compress: compressSnappy},
			GraphS2:              {name: "s2", mask: stream.MaskOf(stream.Serial), compress: compressS2},
			GraphFlate:           {name: "flate", mask: stream.MaskOf(stream.Serial), compress: compressFlate},
			GraphHuffman:         {name: "huffman", mask: stream.MaskOf(stream.Serial), compress: compressHuffman},
			GraphFSE:             {name: "fse", mask: stream.MaskOf(stream.Serial), compress: compressFSE},
			GraphCompressGeneric: {name: "compress_generic", mask: stream.MaskAny, compress: compressGeneric},
			GraphClustering:      {name: "clustering", mask: stream.MaskAny},
		},
		nodes:     standardNodes(),
		nextGraph: firstCustomGraph,
		codec:     codec.Msgpack{},
	}
}

func (c *Compressor) graph(id GraphID) (*graphDesc, error) {
	g, ok := c.graphs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGraph, id)
	}
	return g, nil
}

// SelectStartingGraph sets the graph Compress runs.
func (c *Compressor) SelectStartingGraph(id GraphID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.graph(id); err != nil {
		return err
	}
	c.starting = id
	return nil
}

// StartingGraph returns the selected starting graph.
func (c *Compressor) StartingGraph() (GraphID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.starting, c.starting != 0
}

// BaseGraph follows parameterization links back to a standard graph.
func (c *Compressor) BaseGraph(id GraphID) (GraphID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for {
		g, err := c.graph(id)
		if err != nil {
			return 0, err
		}
		if g.base == 0 {
			return id, nil
		}
		id = g.base
	}
}

// InputMask returns the input types a graph accepts.
func (c *Compressor) InputMask(id GraphID) (stream.TypeMask, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	g, err := c.graph(id)
	if err != nil {
		return stream.MaskNone, err
	}
	return g.mask, nil
}

// NodeSignature returns the input signature of a node.
func (c *Compressor) NodeSignature(id NodeID) (NodeSignature, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, ok := c.nodes[id]
	if !ok {
		return NodeSignature{}, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return n.sig, nil
}

// GraphName returns the registered name of a graph.
func (c *Compressor) GraphName(id GraphID) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if g, ok := c.graphs[id]; ok {
		return g.name
	}
	return fmt.Sprintf("graph#%d", id)
}

// NodeName returns the registered name of a node.
func (c *Compressor) NodeName(id NodeID) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n, ok := c.nodes[id]; ok {
		return n.name
	}
	return fmt.Sprintf("node#%d", id)
}

// LookupGraph finds a graph by name.
func (c *Compressor) LookupGraph(name string) (GraphID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for id, g := range c.graphs {
		if g.name == name {
			return id, true
		}
	}
	return 0, false
}

// LookupNode finds a node by name.
func (c *Compressor) LookupNode(name string) (NodeID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for id, n := range c.nodes {
		if n.name == name {
			return id, true
		}
	}
	return 0, false
}

// StandardSuccessors lists the terminal graphs in ID order.
func StandardSuccessors() []GraphID {
	return []GraphID{
		GraphStore, GraphFieldLZ, GraphZstd, GraphLZ4, GraphSnappy,
		GraphS2, GraphFlate, GraphHuffman, GraphFSE, GraphCompressGeneric,
	}
}

// StandardClusteringCodecs lists the nodes usable as clustering codecs.
func StandardClusteringCodecs() []NodeID {
	return []NodeID{
		NodeConcatSerial, NodeConcatStruct, NodeConcatNumeric,
		NodeConcatString, NodeInterleaveString,
	}
}

// RegisterClusteringGraph registers a clustering graph parameterized with
// cfg and returns its ID. The config is stored serialized as the graph's
// local parameter.
func (c *Compressor) RegisterClusteringGraph(cfg *clustering.Config, successors []GraphID, codecs []NodeID) (GraphID, error) {
	if _, err := c.Compile(cfg, successors, codecs); err != nil {
		return 0, err
	}
	params, err := c.EncodeParams(cfg)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextGraph
	c.nextGraph++
	c.graphs[id] = &graphDesc{
		name:        fmt.Sprintf("clustering#%d", id),
		mask:        stream.MaskAny,
		base:        GraphClustering,
		localParams: params,
		successors:  slices.Clone(successors),
		codecs:      slices.Clone(codecs),
	}
	return id, nil
}

// EncodeParams serializes cfg in the form clustering graphs store as their
// local parameters.
func (c *Compressor) EncodeParams(cfg *clustering.Config) ([]byte, error) {
	return cfg.Encode(c.codec)
}

// CompileParams decodes a config written by EncodeParams and compiles it.
func (c *Compressor) CompileParams(params []byte, successors []GraphID, codecs []NodeID) (*Runnable, error) {
	cfg, err := clustering.Decode(c.codec, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return c.Compile(cfg, successors, codecs)
}

// ClusteringParams decodes the config, successors and codecs of a
// clustering graph. The base clustering graph has an empty config and the
// standard successors and codecs.
func (c *Compressor) ClusteringParams(id GraphID) (*clustering.Config, []GraphID, []NodeID, error) {
	base, err := c.BaseGraph(id)
	if err != nil {
		return nil, nil, nil, err
	}
	if base != GraphClustering {
		return nil, nil, nil, fmt.Errorf("%w: %s is not a clustering graph", ErrInvalidParams, c.GraphName(id))
	}

	c.mu.RLock()
	g := c.graphs[id]
	c.mu.RUnlock()

	if g.localParams == nil {
		return &clustering.Config{}, StandardSuccessors(), StandardClusteringCodecs(), nil
	}
	cfg, err := clustering.Decode(c.codec, g.localParams)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return cfg, slices.Clone(g.successors), slices.Clone(g.codecs), nil
}

// Compress runs the starting graph over the streams and returns the frame.
func (c *Compressor) Compress(streams []*stream.Stream) ([]byte, error) {
	id, ok := c.StartingGraph()
	if !ok {
		return nil, ErrNoStartingGraph
	}
	return c.CompressWith(id, streams)
}

// CompressWith runs a specific graph over the streams.
func (c *Compressor) CompressWith(id GraphID, streams []*stream.Stream) ([]byte, error) {
	base, err := c.BaseGraph(id)
	if err != nil {
		return nil, err
	}
	if base == GraphClustering {
		cfg, successors, codecs, err := c.ClusteringParams(id)
		if err != nil {
			return nil, err
		}
		r, err := c.Compile(cfg, successors, codecs)
		if err != nil {
			return nil, err
		}
		return r.Compress(streams)
	}

	var f frame
	for _, s := range streams {
		if err := c.runSuccessor(&f, id, s); err != nil {
			return nil, err
		}
	}
	return f.bytes(), nil
}
