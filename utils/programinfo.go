// gdcs: a tool for finding conserved probe sequences in rMLST alleles.
// Copyright (c) 2017-2020 imec vzw.

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

package utils

const (
	// ProgramName is "gdcs"
	ProgramName = "gdcs"

	// ProgramVersion is the version of the gdcs binary
	ProgramVersion = "1.0.0"

	// ProgramURL is the repository for the gdcs source code
	ProgramURL = "http://github.com/exascience/gdcs"
)
