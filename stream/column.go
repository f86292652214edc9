package stream

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// ColumnInfo identifies a column: the same tag may appear with different
// types or widths, and each combination is a distinct column.
type ColumnInfo struct {
	Tag   int32 `json:"tag" yaml:"tag" msgpack:"tag"`
	Type  Type  `json:"type" yaml:"type" msgpack:"type"`
	Width int   `json:"width" yaml:"width" msgpack:"width"`
}

// Hash returns a 64-bit hash over all three fields.
func (c ColumnInfo) Hash() uint64 {
	var buf [13]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(c.Tag))
	buf[4] = byte(c.Type)
	binary.LittleEndian.PutUint64(buf[5:], uint64(c.Width))
	return xxhash.Sum64(buf[:])
}

// Compare orders columns by type, width, then tag.
func (c ColumnInfo) Compare(o ColumnInfo) int {
	switch {
	case c.Type != o.Type:
		if c.Type < o.Type {
			return -1
		}
		return 1
	case c.Width != o.Width:
		if c.Width < o.Width {
			return -1
		}
		return 1
	case c.Tag != o.Tag:
		if c.Tag < o.Tag {
			return -1
		}
		return 1
	}
	return 0
}

// SameKind reports whether both columns share type and width, i.e. can be
// clustered together.
func (c ColumnInfo) SameKind(o ColumnInfo) bool {
	return c.Type == o.Type && c.Width == o.Width
}

func (c ColumnInfo) String() string {
	return fmt.Sprintf("tag=%d type=%s width=%d", c.Tag, c.Type, c.Width)
}

// ColumnMetadata is the set of distinct columns found in a sample set.
// Columns iterate in Compare order.
type ColumnMetadata struct {
	set  map[ColumnInfo]struct{}
	cols []ColumnInfo
}

// NewColumnMetadata builds a set from the given columns.
func NewColumnMetadata(cols ...ColumnInfo) *ColumnMetadata {
	md := &ColumnMetadata{set: make(map[ColumnInfo]struct{}, len(cols))}
	for _, c := range cols {
		md.Add(c)
	}
	return md
}

// Add inserts a column; duplicates are ignored.
func (md *ColumnMetadata) Add(c ColumnInfo) {
	if _, ok := md.set[c]; ok {
		return
	}
	md.set[c] = struct{}{}
	i, _ := slices.BinarySearchFunc(md.cols, c, ColumnInfo.Compare)
	md.cols = slices.Insert(md.cols, i, c)
}

// Contains reports whether the column is present.
func (md *ColumnMetadata) Contains(c ColumnInfo) bool {
	_, ok := md.set[c]
	return ok
}

// Len returns the number of distinct columns.
func (md *ColumnMetadata) Len() int { return len(md.cols) }

// Columns returns the columns in deterministic order. The slice must not be
// modified.
func (md *ColumnMetadata) Columns() []ColumnInfo { return md.cols }

// Aggregate scans every stream of every sample and collects its column.
func Aggregate(samples []MultiInput) (*ColumnMetadata, error) {
	md := NewColumnMetadata()
	for i, sample := range samples {
		for j, s := range sample {
			col, err := s.Column()
			if err != nil {
				return nil, fmt.Errorf("sample %d stream %d: %w", i, j, err)
			}
			md.Add(col)
		}
	}
	return md, nil
}
