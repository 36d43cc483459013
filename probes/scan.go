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

// Package probes finds conserved probe candidates in the identity
// profile of an alignment.
//
// A Scanner slides windows of decreasing size over the per-column
// identity percentages of a consensus. The largest window size for
// which at least one window has a minimum identity above the cutoff
// determines the WindowGroup of a locus, and Select picks the
// candidates with the best mean identity from that group.
package probes

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/exascience/gdcs/consensus"
)

// Default scanner settings.
const (
	DefaultMinSize = 20
	DefaultMaxSize = 100
	DefaultCutoff  = 80
)

// A Candidate is a window of an identity profile whose minimum
// identity exceeds the cutoff.
type Candidate struct {
	Start, End int
	Min, Mean  float64
	Sequence   string
}

// Location formats the window as start:end.
func (c Candidate) Location() string {
	return fmt.Sprintf("%v:%v", c.Start, c.End)
}

// A WindowGroup holds all qualifying windows of a single window size.
type WindowGroup struct {
	Size             int
	Candidates       []Candidate
	MaxMean, MinMean float64
}

// A Scanner searches identity profiles for conserved windows.
type Scanner struct {
	MinSize, MaxSize int
	Cutoff           float64
}

// Validate checks the scanner settings.
func (s Scanner) Validate() error {
	if s.MinSize < 1 {
		return fmt.Errorf("invalid minimum probe size %v", s.MinSize)
	}
	if s.MaxSize < s.MinSize {
		return fmt.Errorf("maximum probe size %v is smaller than minimum probe size %v", s.MaxSize, s.MinSize)
	}
	if s.Cutoff < 0 || s.Cutoff > 100 {
		return fmt.Errorf("invalid cutoff %v, must be between 0 and 100", s.Cutoff)
	}
	return nil
}

// Scan tries window sizes from MaxSize down to MinSize, and returns the
// group of qualifying windows for the first size that has any. A window
// qualifies if its minimum identity is strictly greater than Cutoff.
//
// The seq argument is the consensus the identity profile was derived
// from, and provides the candidate sequences. It may be nil.
//
// If no window size yields a qualifying window, including when the
// profile is shorter than MinSize, Scan returns false.
func (s Scanner) Scan(identity []float64, seq []byte) (WindowGroup, bool) {
	if s.MinSize < 1 || len(identity) < s.MinSize {
		return WindowGroup{}, false
	}
	for size := s.MaxSize; size >= s.MinSize; size-- {
		if size > len(identity) {
			continue
		}
		if group, ok := s.scanSize(identity, seq, size); ok {
			return group, true
		}
	}
	return WindowGroup{}, false
}

// ScanProfile scans the identity profile of a consensus profile.
func (s Scanner) ScanProfile(profile *consensus.Profile) (WindowGroup, bool) {
	return s.Scan(profile.Identity(), profile.Consensus)
}

func (s Scanner) scanSize(identity []float64, seq []byte, size int) (group WindowGroup, ok bool) {
	group.Size = size
	for start, end := 0, size; end <= len(identity); start, end = start+1, end+1 {
		window := identity[start:end]
		low := floats.Min(window)
		if !(low > s.Cutoff) {
			continue
		}
		candidate := Candidate{
			Start: start,
			End:   end,
			Min:   low,
			Mean:  consensus.Round2(stat.Mean(window, nil)),
		}
		if end <= len(seq) {
			candidate.Sequence = string(seq[start:end])
		}
		if len(group.Candidates) == 0 {
			group.MaxMean, group.MinMean = candidate.Mean, candidate.Mean
		} else if candidate.Mean > group.MaxMean {
			group.MaxMean = candidate.Mean
		} else if candidate.Mean < group.MinMean {
			group.MinMean = candidate.Mean
		}
		group.Candidates = append(group.Candidates, candidate)
	}
	return group, len(group.Candidates) > 0
}
