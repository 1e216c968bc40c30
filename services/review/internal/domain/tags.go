package domain

import (
	"encoding/json"
	"slices"
)

// Fixed tag vocabularies. The two sets are disjoint.
var (
	PositiveVocabulary = []string{
		"Great listener",
		"Very thorough",
		"Easy to understand",
		"Friendly staff",
		"Quick diagnosis",
		"Caring",
		"Professional",
		"Punctual",
	}
	ImprovementVocabulary = []string{
		"Long wait time",
		"Rushed appointment",
		"Billing issues",
		"Hard to reach",
		"Could explain more",
	}
)

var (
	positiveSet    = setOf(PositiveVocabulary)
	improvementSet = setOf(ImprovementVocabulary)
)

func setOf(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// IsPositiveTag reports whether tag is in the positive vocabulary.
func IsPositiveTag(tag string) bool {
	_, ok := positiveSet[tag]
	return ok
}

// IsImprovementTag reports whether tag is in the improvement vocabulary.
func IsImprovementTag(tag string) bool {
	_, ok := improvementSet[tag]
	return ok
}

// TagSet is an insertion-ordered set of tags.
type TagSet []string

// NewTagSet builds a set from tags, dropping repeats.
func NewTagSet(tags ...string) TagSet {
	var s TagSet
	for _, t := range tags {
		s.Add(t)
	}
	return s
}

// Contains reports whether tag is in s.
func (s TagSet) Contains(tag string) bool {
	return slices.Contains(s, tag)
}

// Add inserts tag if it is not already present.
func (s *TagSet) Add(tag string) {
	if !s.Contains(tag) {
		*s = append(*s, tag)
	}
}

// Toggle removes tag if present and inserts it otherwise. It reports whether
// tag is in the set afterwards.
func (s *TagSet) Toggle(tag string) bool {
	if i := slices.Index(*s, tag); i >= 0 {
		*s = slices.Delete(*s, i, i+1)
		return false
	}
	*s = append(*s, tag)
	return true
}

// Clone returns an independent copy of s.
func (s TagSet) Clone() TagSet {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

// MarshalJSON encodes s as an array; a nil set becomes [].
func (s TagSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// UnmarshalJSON decodes an array, dropping repeats.
func (s *TagSet) UnmarshalJSON(b []byte) error {
	var tags []string
	if err := json.Unmarshal(b, &tags); err != nil {
		return err
	}
	*s = NewTagSet(tags...)
	return nil
}
