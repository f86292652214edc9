package trainer

import (
	"github.com/hupe1980/colcluster/clustering"
	"github.com/hupe1980/colcluster/engine"
	"github.com/hupe1980/colcluster/stream"
)

// Compressor is the part of the graph engine the trainers need to cost a
// candidate. *engine.Compressor implements it.
type Compressor interface {
	InputMask(id engine.GraphID) (stream.TypeMask, error)
	NodeSignature(id engine.NodeID) (engine.NodeSignature, error)
	EncodeParams(cfg *clustering.Config) ([]byte, error)
	CompileParams(params []byte, successors []engine.GraphID, codecs []engine.NodeID) (*engine.Runnable, error)
}

var _ Compressor = (*engine.Compressor)(nil)
