package trainer

import "errors"

var (
	// ErrMissingClusteringCodec is returned when some stream type has no
	// usable clustering codec.
	ErrMissingClusteringCodec = errors.New("trainer: a clustering codec must be provided for each possible input type")
	// ErrUnknownKind is returned by ParseKind and New for an unknown trainer.
	ErrUnknownKind = errors.New("trainer: unknown trainer kind")
)
