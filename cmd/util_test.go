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

package cmd

import "testing"

func TestFindFlag(t *testing.T) {
	args := []string{"-f", "table.csv", "--config", "gdcs.yaml", "-m", "30"}
	if findFlag(args, "config") != "gdcs.yaml" {
		t.Error("findFlag failed")
	}
	if findFlag([]string{"-config=run.yaml"}, "config") != "run.yaml" {
		t.Error("findFlag with = failed")
	}
	if findFlag([]string{"---config", "x", "config", "y"}, "config") != "" {
		t.Error("findFlag accepted malformed flags")
	}
	if findFlag([]string{"--config"}, "config") != "" {
		t.Error("findFlag without value failed")
	}
}
