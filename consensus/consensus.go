// gdcs: a tool for finding conserved probe sequences in rMLST alleles.
// Copyright (c) 2020 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/gdcs/blob/master/LICENSE.txt>.

// Package consensus computes consensus sequences and column-wise base
// frequencies of multiple-sequence alignments.
package consensus

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultThreshold is the fraction of a column that the majority
	// base must reach to appear in the consensus.
	DefaultThreshold = 0.7

	// DefaultAmbiguous is the consensus symbol for columns without a
	// sufficient majority.
	DefaultAmbiguous = 'X'
)

// ErrEmptyAlignment is returned when building a profile without sequences.
var ErrEmptyAlignment = errors.New("empty alignment")

// BaseCounts tallies the canonical bases of an alignment column. Total
// also counts gaps, ambiguity codes and any other symbols.
type BaseCounts struct {
	A, C, G, T, Total int
}

// Canonical returns the number of canonical bases in the column.
func (counts BaseCounts) Canonical() int {
	return counts.A + counts.C + counts.G + counts.T
}

// Max returns the count of the most frequent canonical base.
func (counts BaseCounts) Max() int {
	return max(counts.A, counts.C, counts.G, counts.T)
}

// majority returns the most frequent canonical base, and false if
// there is no unique one.
func (counts BaseCounts) majority() (base byte, ok bool) {
	n := counts.Max()
	if n == 0 {
		return 0, false
	}
	for _, entry := range [...]struct {
		base  byte
		count int
	}{{'A', counts.A}, {'C', counts.C}, {'G', counts.G}, {'T', counts.T}} {
		if entry.count == n {
			if ok {
				return 0, false
			}
			base, ok = entry.base, true
		}
	}
	return base, ok
}

func (counts *BaseCounts) add(b byte) {
	switch b {
	case 'A', 'a':
		counts.A++
	case 'C', 'c':
		counts.C++
	case 'G', 'g':
		counts.G++
	case 'T', 't':
		counts.T++
	}
	counts.Total++
}

// A Profile is the consensus of an alignment together with its
// position-specific base counts.
type Profile struct {
	Consensus []byte
	Counts    []BaseCounts
}

// Build computes the profile of the given aligned sequences, which must
// all have the same length.
//
// A consensus position is the unique majority base of its column if
// that base accounts for at least threshold of the column, and the
// ambiguous symbol otherwise.
func Build(seqs [][]byte, threshold float64, ambiguous byte) (*Profile, error) {
	if len(seqs) == 0 {
		return nil, ErrEmptyAlignment
	}
	width := len(seqs[0])
	for i, seq := range seqs {
		if len(seq) != width {
			return nil, fmt.Errorf("sequence %v has length %v, expected aligned length %v", i, len(seq), width)
		}
	}
	profile := &Profile{
		Consensus: make([]byte, width),
		Counts:    make([]BaseCounts, width),
	}
	for _, seq := range seqs {
		for col, b := range seq {
			profile.Counts[col].add(b)
		}
	}
	for col, counts := range profile.Counts {
		profile.Consensus[col] = ambiguous
		if base, ok := counts.majority(); ok && float64(counts.Max())/float64(counts.Total) >= threshold {
			profile.Consensus[col] = base
		}
	}
	return profile, nil
}

// Round2 rounds x to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Identity returns the percentage of the most frequent canonical base
// among all canonical bases of each column, rounded to two decimal
// places. Columns without canonical bases have identity 0.
func (profile *Profile) Identity() []float64 {
	identity := make([]float64, len(profile.Counts))
	for col, counts := range profile.Counts {
		if n := counts.Canonical(); n > 0 {
			identity[col] = Round2(float64(counts.Max()) / float64(n) * 100)
		}
	}
	return identity
}

// Len returns the number of alignment columns.
func (profile *Profile) Len() int {
	return len(profile.Consensus)
}
