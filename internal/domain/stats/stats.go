// Package stats defines the fixed-schema player record stored by the ranking server.
//
// A record is a set of named integer attributes. Every attribute doubles as the
// name of a sorted index once a namespace prefix is prepended, so attribute
// names are reserved and cannot be used as nicknames.
package stats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Attribute names in schema order.
const (
	Kills        = "Kills"
	Deaths       = "Deaths"
	Score        = "Score"
	Wins         = "Wins"
	Losses       = "Losses"
	FlagCaptures = "FlagCaptures"
	Suicides     = "Suicides"
)

// NumAttributes is the size of the schema.
const NumAttributes = 7

var attributes = [NumAttributes]string{Kills, Deaths, Score, Wins, Losses, FlagCaptures, Suicides}

var attributeIndex = func() map[string]int {
	m := make(map[string]int, NumAttributes)
	for i, a := range attributes {
		m[a] = i
	}
	return m
}()

// Stats is a player record. The zero value is an invalid record.
type Stats struct {
	values [NumAttributes]int64
	valid  bool
}

// Pair is a namespaced field name with its stringified value.
type Pair struct {
	Field string
	Value string
}

// New returns a valid record. Values are assigned in schema order and missing
// trailing values are zero; extra values are ignored.
func New(values ...int64) Stats {
	s := Stats{valid: true}
	copy(s.values[:], values)
	return s
}

// Invalid returns a record that means "no such record".
func Invalid() Stats { return Stats{} }

// Attributes returns the attribute names in schema order.
func Attributes() []string { return Keys("") }

// Keys returns the attribute names with prefix prepended.
func Keys(prefix string) []string {
	keys := make([]string, NumAttributes)
	for i, a := range attributes {
		keys[i] = prefix + a
	}
	return keys
}

// IsAttribute reports whether name is an attribute of the schema.
func IsAttribute(name string) bool {
	_, ok := attributeIndex[name]
	return ok
}

// IsReserved reports whether nickname collides with an index name, either a bare
// attribute or prefix+attribute.
func IsReserved(nickname, prefix string) bool {
	if IsAttribute(nickname) {
		return true
	}
	if prefix == "" || !strings.HasPrefix(nickname, prefix) {
		return false
	}
	return IsAttribute(nickname[len(prefix):])
}

// Valid reports whether the record holds real data.
func (s Stats) Valid() bool { return s.valid }

// Invalidate marks the record as unreadable.
func (s *Stats) Invalidate() { s.valid = false }

// Get returns the value of attr.
func (s Stats) Get(attr string) (int64, bool) {
	i, ok := attributeIndex[attr]
	if !ok {
		return 0, false
	}
	return s.values[i], true
}

// MustGet returns the value of attr and panics on an unknown attribute.
func (s Stats) MustGet(attr string) int64 {
	v, ok := s.Get(attr)
	if !ok {
		panic(fmt.Sprintf("stats: unknown attribute %q", attr))
	}
	return v
}

// Set assigns v to attr. It returns false for an unknown attribute.
func (s *Stats) Set(attr string, v int64) bool {
	i, ok := attributeIndex[attr]
	if !ok {
		return false
	}
	s.values[i] = v
	return true
}

// At returns the value at schema position i.
func (s Stats) At(i int) int64 { return s.values[i] }

// Merge returns the element-wise sum of s and delta. Validity follows s.
func (s Stats) Merge(delta Stats) Stats {
	for i := range s.values {
		s.values[i] += delta.values[i]
	}
	return s
}

// Pairs returns the record as namespaced field/value pairs in schema order.
func (s Stats) Pairs(prefix string) []Pair {
	pairs := make([]Pair, NumAttributes)
	for i, a := range attributes {
		pairs[i] = Pair{Field: prefix + a, Value: strconv.FormatInt(s.values[i], 10)}
	}
	return pairs
}

// Equal reports whether both records have the same validity and values.
func (s Stats) Equal(other Stats) bool {
	return s.valid == other.valid && s.values == other.values
}

func (s Stats) String() string {
	if !s.valid {
		return "{invalid}"
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, a := range attributes {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(a)
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(s.values[i], 10))
	}
	b.WriteByte('}')
	return b.String()
}

// MarshalJSON encodes the record as an object keyed by attribute name.
// An invalid record encodes as null.
func (s Stats) MarshalJSON() ([]byte, error) {
	if !s.valid {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range attributes {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(a))
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatInt(s.values[i], 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keyed by attribute name. Missing attributes
// are zero and unknown attributes are rejected.
func (s *Stats) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Invalid()
		return nil
	}
	var raw map[string]int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	out := New()
	for k, v := range raw {
		if !out.Set(k, v) {
			return fmt.Errorf("%w: %q", ErrUnknownAttribute, k)
		}
	}
	*s = out
	return nil
}
