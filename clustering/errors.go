package clustering

import (
	"errors"
	"fmt"

	"github.com/hupe1980/colcluster/stream"
)

var (
	// ErrIncompatibleTypes is returned when tags of different type or width
	// would end up in one cluster.
	ErrIncompatibleTypes = errors.New("clustering: incompatible types")
	// ErrEmptyTags is returned when a cluster is requested for no tags.
	ErrEmptyTags = errors.New("clustering: no tags provided")
	// ErrClusterIndex is returned for an out-of-range cluster index.
	ErrClusterIndex = errors.New("clustering: cluster index out of range")
	// ErrMissingCodec is returned when a type has no clustering codec.
	ErrMissingCodec = errors.New("clustering: no clustering codec for type")
	// ErrInvalidConfig is wrapped by every Validate failure.
	ErrInvalidConfig = errors.New("clustering: invalid config")
)

// UnknownTagError is returned when a tag is not present in the column
// metadata for the requested type and width.
type UnknownTagError struct {
	Column stream.ColumnInfo
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("clustering: %s not found in column metadata", e.Column)
}
