package clustering

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// TagSet is a set of clustering tags. The zero value is an empty set.
type TagSet struct {
	bm *roaring.Bitmap
}

// NewTagSet returns a set holding tags.
func NewTagSet(tags ...int32) TagSet {
	s := TagSet{bm: roaring.New()}
	for _, t := range tags {
		s.bm.Add(uint32(t))
	}
	return s
}

// Add inserts a tag.
func (s *TagSet) Add(tag int32) {
	if s.bm == nil {
		s.bm = roaring.New()
	}
	s.bm.Add(uint32(tag))
}

// Remove deletes a tag and reports whether it was present.
func (s *TagSet) Remove(tag int32) bool {
	if s.bm == nil {
		return false
	}
	return s.bm.CheckedRemove(uint32(tag))
}

// Contains reports whether tag is in the set.
func (s TagSet) Contains(tag int32) bool {
	return s.bm != nil && s.bm.Contains(uint32(tag))
}

// Len returns the number of tags.
func (s TagSet) Len() int {
	if s.bm == nil {
		return 0
	}
	return int(s.bm.GetCardinality())
}

// Empty reports whether the set has no tags.
func (s TagSet) Empty() bool { return s.Len() == 0 }

// Tags returns the members in ascending order of their unsigned encoding.
func (s TagSet) Tags() []int32 {
	if s.bm == nil {
		return nil
	}
	raw := s.bm.ToArray()
	out := make([]int32, len(raw))
	for i, v := range raw {
		out[i] = int32(v)
	}
	return out
}

// Clone returns an independent copy.
func (s TagSet) Clone() TagSet {
	if s.bm == nil {
		return TagSet{}
	}
	return TagSet{bm: s.bm.Clone()}
}

// Equal reports whether both sets hold the same tags.
func (s TagSet) Equal(o TagSet) bool {
	if s.Empty() || o.Empty() {
		return s.Empty() && o.Empty()
	}
	return s.bm.Equals(o.bm)
}
