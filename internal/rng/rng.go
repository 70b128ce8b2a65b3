// Package rng isolates random-number use behind a small interface so the
// probability gates in the pipeline can be forced in tests.
package rng

import "math/rand"

// Source yields uniform values in [0,1).
type Source interface {
	Float64() float64
}

// Default returns a Source backed by a private math/rand generator.
func Default(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// Fixed always returns the same value. Test helper: 0 forces every
// probability gate open, 0.99 forces them closed.
type Fixed float64

func (f Fixed) Float64() float64 { return float64(f) }

// Seq returns its values in order, then repeats the last one.
type Seq struct {
	Values []float64
	i      int
}

func (s *Seq) Float64() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	if s.i >= len(s.Values) {
		return s.Values[len(s.Values)-1]
	}
	v := s.Values[s.i]
	s.i++
	return v
}
