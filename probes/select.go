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

package probes

// A SelectedProbe is a candidate chosen to represent the probe of a locus.
type SelectedProbe struct {
	Candidate
	Size int
}

// Select returns all candidates of the group whose mean identity equals
// the maximum mean identity of the group, in the order of their start
// positions. Ties are all kept, since their positions differ.
func Select(group WindowGroup) (selected []SelectedProbe) {
	for _, candidate := range group.Candidates {
		if candidate.Mean == group.MaxMean {
			selected = append(selected, SelectedProbe{Candidate: candidate, Size: group.Size})
		}
	}
	return selected
}
