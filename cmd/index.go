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

import (
	"flag"
	"fmt"
	"os"

	"github.com/exascience/gdcs/archive"
)

// IndexArchiveHelp is the help string for this command.
const IndexArchiveHelp = "\nindex-archive parameters:\n" +
	"gdcs index-archive fasta-file index-file\n" +
	"[--log-path path]\n" +
	"The index file is an .elfasta file, or a SQLite database if it ends in .db or .sqlite.\n" +
	"gdcs probes rebuilds an index that is older than its archive.\n"

// IndexArchive implements the gdcs index-archive command.
func IndexArchive() error {
	var logPath string

	flags := new(flag.FlagSet)
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	parseFlags(flags, 4, IndexArchiveHelp)

	input := getFilename(os.Args[2], IndexArchiveHelp)
	output := getFilename(os.Args[3], IndexArchiveHelp)

	if err := setLogOutput(logPath); err != nil {
		return err
	}

	if !checkExist("", input) || !checkCreate("", output) {
		fmt.Fprint(os.Stderr, IndexArchiveHelp)
		os.Exit(1)
	}

	return archive.Build(input, output)
}
