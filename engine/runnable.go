package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/colcluster/clustering"
	"github.com/hupe1980/colcluster/stream"
)

var frameMagic = []byte{'C', 'L', 'Z', 1}

type frame struct {
	buf []byte
}

func (f *frame) add(graph GraphID, data []byte) {
	if f.buf == nil {
		f.buf = append(f.buf, frameMagic...)
	}
	f.buf = binary.AppendUvarint(f.buf, uint64(graph))
	f.buf = binary.AppendUvarint(f.buf, uint64(len(data)))
	f.buf = append(f.buf, data...)
}

func (f *frame) bytes() []byte {
	if f.buf == nil {
		return append([]byte(nil), frameMagic...)
	}
	return f.buf
}

// Runnable is a compiled clustering graph.
type Runnable struct {
	c          *Compressor
	cfg        *clustering.Config
	successors []GraphID
	codecs     []NodeID
}

// Compile validates a clustering config against successor and codec lists
// and returns a Runnable for it.
func (c *Compressor) Compile(cfg *clustering.Config, successors []GraphID, codecs []NodeID) (*Runnable, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateIndices(len(successors), len(codecs)); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, id := range successors {
		g, err := c.graph(id)
		if err != nil {
			return nil, err
		}
		if g.compress == nil {
			return nil, fmt.Errorf("%w: %s cannot be used as successor", ErrUnknownGraph, g.name)
		}
	}
	for _, id := range codecs {
		if _, ok := c.nodes[id]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
		}
	}
	for i, cl := range cfg.Clusters {
		if err := c.checkCodec(cl.TypeSuccessor, codecs); err != nil {
			return nil, fmt.Errorf("cluster %d: %w", i, err)
		}
	}
	for _, d := range cfg.TypeDefaults {
		if err := c.checkCodec(d, codecs); err != nil {
			return nil, fmt.Errorf("type default %s/%d: %w", d.Type, d.EltWidth, err)
		}
	}
	return &Runnable{c: c, cfg: cfg, successors: successors, codecs: codecs}, nil
}

// checkCodec requires the codec of ts to take any number of streams of
// exactly ts.Type. Callers hold c.mu.
func (c *Compressor) checkCodec(ts clustering.TypeSuccessor, codecs []NodeID) error {
	n := c.nodes[codecs[ts.ClusteringCodecIdx]]
	typ, ok := n.sig.ClusteringType()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotClusteringCodec, n.name)
	}
	if typ != ts.Type {
		return fmt.Errorf("%w: %s takes %s, got %s", ErrTypeMismatch, n.name, typ, ts.Type)
	}
	return nil
}

type group struct {
	successor GraphID
	codec     NodeID
	streams   []*stream.Stream
}

// groups assigns every stream to a cluster. Configured clusters come first
// in config order, then one cluster per unconfigured column in order of
// first appearance.
func (r *Runnable) groups(streams []*stream.Stream) ([]*group, error) {
	configured := make([]*group, len(r.cfg.Clusters))
	var (
		extra   []*group
		byExtra = make(map[stream.ColumnInfo]*group)
	)

	for i, s := range streams {
		col, err := s.Column()
		if err != nil {
			return nil, fmt.Errorf("stream %d: %w", i, err)
		}

		if idx := r.cfg.Lookup(col); idx >= 0 {
			g := configured[idx]
			if g == nil {
				cl := r.cfg.Clusters[idx]
				g = &group{
					successor: r.successors[cl.SuccessorIdx],
					codec:     r.codecs[cl.ClusteringCodecIdx],
				}
				configured[idx] = g
			}
			g.streams = append(g.streams, s)
			continue
		}

		g, ok := byExtra[col]
		if !ok {
			g = &group{successor: GraphCompressGeneric, codec: StandardConcat(col.Type)}
			if d, ok := r.cfg.TypeDefault(col.Type, col.Width); ok {
				g.successor = r.successors[d.SuccessorIdx]
				g.codec = r.codecs[d.ClusteringCodecIdx]
			}
			byExtra[col] = g
			extra = append(extra, g)
		}
		g.streams = append(g.streams, s)
	}

	out := make([]*group, 0, len(configured)+len(extra))
	for _, g := range configured {
		if g != nil {
			out = append(out, g)
		}
	}
	return append(out, extra...), nil
}

// Compress runs the clustering graph over streams and returns the frame.
func (r *Runnable) Compress(streams []*stream.Stream) ([]byte, error) {
	groups, err := r.groups(streams)
	if err != nil {
		return nil, err
	}

	var f frame
	for _, g := range groups {
		if len(g.streams) == 1 {
			if err := r.c.runSuccessor(&f, g.successor, g.streams[0]); err != nil {
				return nil, err
			}
			continue
		}

		outs, err := r.c.runNode(g.codec, g.streams)
		if err != nil {
			return nil, err
		}
		if len(outs) == 2 {
			if err := r.c.runSuccessor(&f, GraphFieldLZ, outs[0]); err != nil {
				return nil, err
			}
			outs = outs[1:]
		}
		if err := r.c.runSuccessor(&f, g.successor, outs[0]); err != nil {
			return nil, err
		}
	}
	return f.bytes(), nil
}

func (c *Compressor) runNode(id NodeID, in []*stream.Stream) ([]*stream.Stream, error) {
	c.mu.RLock()
	n, ok := c.nodes[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}

	typ, ok := n.sig.ClusteringType()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotClusteringCodec, n.name)
	}
	for _, s := range in {
		if s.Type() != typ {
			return nil, fmt.Errorf("%w: %s takes %s, got %s", ErrTypeMismatch, n.name, typ, s.Type())
		}
	}
	return n.apply(in)
}

func (c *Compressor) runSuccessor(f *frame, id GraphID, s *stream.Stream) error {
	c.mu.RLock()
	g, err := c.graph(id)
	c.mu.RUnlock()
	if err != nil {
		return err
	}
	if g.compress == nil {
		return fmt.Errorf("%w: %s cannot be used as successor", ErrUnknownGraph, g.name)
	}
	// serial graphs take struct and numeric input as raw bytes
	if !g.mask.Widen().Accepts(s.Type()) {
		return fmt.Errorf("%w: %s takes %s, got %s", ErrTypeMismatch, g.name, g.mask, s.Type())
	}

	out, err := g.compress(s)
	if err != nil {
		return fmt.Errorf("%s: %w", g.name, err)
	}
	f.add(id, out)
	return nil
}
