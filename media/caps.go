package media

import (
	"fmt"
	"sort"
	"strings"
)

// Fraction is a rational value such as a frame rate.
type Fraction struct {
	Num int
	Den int
}

// UndefinedFraction marks an absent frame rate.
var UndefinedFraction = Fraction{Num: -1, Den: -1}

func (f Fraction) String() string { return fmt.Sprintf("%d/%d", f.Num, f.Den) }

// Structure is a named set of typed fields. It models both caps structures
// and the free-form structures carried by custom events and protection
// metadata.
type Structure struct {
	Name   string
	Fields map[string]any
}

// NewStructure returns an empty structure with the given name.
func NewStructure(name string) *Structure {
	return &Structure{Name: name, Fields: make(map[string]any)}
}

// Set stores a field and returns the structure for chaining.
func (s *Structure) Set(key string, value any) *Structure {
	if s.Fields == nil {
		s.Fields = make(map[string]any)
	}
	s.Fields[key] = value
	return s
}

// Has reports whether key is present.
func (s *Structure) Has(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Fields[key]
	return ok
}

// Value returns the raw field value.
func (s *Structure) Value(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.Fields[key]
	return v, ok
}

// Int returns an integer field. Any integer width is accepted.
func (s *Structure) Int(key string) (int, bool) {
	v, ok := s.Value(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}

// Uint64 returns an unsigned field. Negative integers are rejected.
func (s *Structure) Uint64(key string) (uint64, bool) {
	v, ok := s.Value(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case uint64:
		return n, true
	case uint:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case int, int32, int64:
		i, _ := s.Int(key)
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	}
	return 0, false
}

// Int64 returns a signed 64-bit field.
func (s *Structure) Int64(key string) (int64, bool) {
	v, ok := s.Value(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	}
	i, ok := s.Int(key)
	return int64(i), ok
}

// Bool returns a boolean field.
func (s *Structure) Bool(key string) (bool, bool) {
	v, ok := s.Value(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Float returns a floating point field; integers are widened.
func (s *Structure) Float(key string) (float64, bool) {
	v, ok := s.Value(key)
	if !ok {
		return 0, false
	}
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	i, ok := s.Int(key)
	return float64(i), ok
}

// String returns a string field.
func (s *Structure) String(key string) (string, bool) {
	v, ok := s.Value(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Buffer returns a buffer field.
func (s *Structure) Buffer(key string) ([]byte, bool) {
	v, ok := s.Value(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

// Fraction returns a fraction field.
func (s *Structure) Fraction(key string) (Fraction, bool) {
	v, ok := s.Value(key)
	if !ok {
		return Fraction{}, false
	}
	f, ok := v.(Fraction)
	return f, ok
}

// List returns a list field (array, set or range).
func (s *Structure) List(key string) ([]any, bool) {
	v, ok := s.Value(key)
	if !ok {
		return nil, false
	}
	l, ok := v.([]any)
	return l, ok
}

// Structure returns a nested structure field.
func (s *Structure) Structure(key string) (*Structure, bool) {
	v, ok := s.Value(key)
	if !ok {
		return nil, false
	}
	st, ok := v.(*Structure)
	return st, ok
}

// Caps returns a nested caps field.
func (s *Structure) Caps(key string) (*Caps, bool) {
	v, ok := s.Value(key)
	if !ok {
		return nil, false
	}
	c, ok := v.(*Caps)
	return c, ok
}

// Describe renders the structure for logs with fields in key order.
func (s *Structure) Describe() string {
	if s == nil {
		return "<nil>"
	}
	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(s.Name)
	for _, k := range keys {
		fmt.Fprintf(&b, ", %s=%v", k, s.Fields[k])
	}
	return b.String()
}

// Caps describes a stream as one or more structures. Sinks only ever look
// at the first structure.
type Caps struct {
	Structures []*Structure
}

// NewCaps builds caps holding a single structure.
func NewCaps(s *Structure) *Caps {
	return &Caps{Structures: []*Structure{s}}
}

// First returns the first structure or nil for empty caps.
func (c *Caps) First() *Structure {
	if c == nil || len(c.Structures) == 0 {
		return nil
	}
	return c.Structures[0]
}

// Name returns the first structure's name.
func (c *Caps) Name() string {
	if st := c.First(); st != nil {
		return st.Name
	}
	return ""
}

// Describe renders the caps for logs.
func (c *Caps) Describe() string {
	if c == nil {
		return "<nil>"
	}
	parts := make([]string, len(c.Structures))
	for i, s := range c.Structures {
		parts[i] = s.Describe()
	}
	return strings.Join(parts, "; ")
}
