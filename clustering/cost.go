package clustering

import (
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/colcluster/stream"
)

// SizeTimePair is the measured cost of a trial compression.
// Only the compressed size takes part in comparisons.
type SizeTimePair struct {
	CompressedSize uint64        `json:"compressed_size" yaml:"compressed_size"`
	Elapsed        time.Duration `json:"elapsed" yaml:"elapsed"`
}

const failedSize = math.MaxUint32

// Failed is the cost assigned to a candidate that could not be compressed.
// It loses against every real measurement.
func Failed() SizeTimePair {
	return SizeTimePair{CompressedSize: failedSize, Elapsed: failedSize * time.Microsecond}
}

// IsFailed reports whether the cost includes a failed compression.
func (p SizeTimePair) IsFailed() bool { return p.CompressedSize >= failedSize }

// Less compares by compressed size.
func (p SizeTimePair) Less(o SizeTimePair) bool { return p.CompressedSize < o.CompressedSize }

// Add sums two costs, saturating instead of wrapping.
func (p SizeTimePair) Add(o SizeTimePair) SizeTimePair {
	size := p.CompressedSize + o.CompressedSize
	if size < p.CompressedSize {
		size = math.MaxUint64
	}
	elapsed := p.Elapsed + o.Elapsed
	if elapsed < p.Elapsed {
		elapsed = math.MaxInt64
	}
	return SizeTimePair{CompressedSize: size, Elapsed: elapsed}
}

func (p SizeTimePair) String() string {
	if p.IsFailed() {
		return "failed"
	}
	return fmt.Sprintf("%d bytes in %s", p.CompressedSize, p.Elapsed)
}

// ClusterInfo is the successor and clustering codec chosen for a tag set
// together with the cost they achieved.
type ClusterInfo struct {
	SuccessorIdx       int
	ClusteringCodecIdx int
	Cost               SizeTimePair
}

// Advisor picks the best successor and codec for a group of tags that share
// a type and width.
type Advisor interface {
	BestClusterInfo(tags []int32, typ stream.Type, width int, md *stream.ColumnMetadata) (ClusterInfo, error)
}
