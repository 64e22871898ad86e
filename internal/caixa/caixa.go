// Package caixa maps point-of-sale terminal indices to their exclusive
// session-number ranges.
//
// Session numbers have six digits. The space is split into 1000 contiguous
// partitions of equal span, one per terminal, so two terminals can never
// issue the same number without any coordination between them:
//
//	caixa   faixa
//	    0   100000..100899
//	    1   100900..101798
//	  ...
//	  999   998102..999000
package caixa

import (
	"errors"
	"fmt"
)

const (
	SessaoMin = 100000
	SessaoMax = 999999

	CaixaMin = 0
	CaixaMax = 999

	// Caixas is the number of terminals the space is partitioned for.
	Caixas = CaixaMax - CaixaMin + 1

	// Span is the width of one partition; the first partition is closed on
	// both ends, every other one starts one past its predecessor's end.
	Span = (SessaoMax - SessaoMin) / Caixas
)

// ErrInvalidTerminal is returned for terminal indices outside [0, 999]. It is
// a configuration error and is never retried.
var ErrInvalidTerminal = errors.New("caixa: terminal index out of range (0..999)")

// Range is the closed interval [Min, Max] of session numbers owned by one
// terminal.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Contains reports whether n falls inside r.
func (r Range) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

// Size is the number of session numbers in r.
func (r Range) Size() int {
	return r.Max - r.Min + 1
}

func (r Range) String() string {
	return fmt.Sprintf("%d..%d", r.Min, r.Max)
}

// Validate returns ErrInvalidTerminal when t is not a valid terminal index.
func Validate(t int) error {
	if t < CaixaMin || t > CaixaMax {
		return fmt.Errorf("%w: %d", ErrInvalidTerminal, t)
	}
	return nil
}

// RangeFor returns the session-number range owned by terminal t.
func RangeFor(t int) (Range, error) {
	if err := Validate(t); err != nil {
		return Range{}, err
	}
	ordinal := t + 1
	hi := ordinal*Span + SessaoMin
	lo := hi - Span
	if ordinal > 1 {
		lo++
	}
	return Range{Min: lo, Max: hi}, nil
}

// Entry is one row of the partition table.
type Entry struct {
	Caixa int   `json:"caixa" yaml:"caixa"`
	Faixa Range `json:"faixa" yaml:"faixa"`
}

// Table lists the ranges for terminals from..to inclusive.
func Table(from, to int) ([]Entry, error) {
	if err := Validate(from); err != nil {
		return nil, err
	}
	if err := Validate(to); err != nil {
		return nil, err
	}
	if from > to {
		return nil, fmt.Errorf("caixa: table bounds reversed (%d > %d)", from, to)
	}
	out := make([]Entry, 0, to-from+1)
	for t := from; t <= to; t++ {
		r, _ := RangeFor(t)
		out = append(out, Entry{Caixa: t, Faixa: r})
	}
	return out, nil
}
