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

// gdcs finds conserved probe sequences in the rMLST alleles of
// organisms of interest.
//
// It aggregates the allele identifiers of the rMLST table per organism,
// extracts the allele sequences from the allele archive, aligns them
// per gene with Clustal Omega, and scans the consensus of each
// alignment for windows of high identity.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/exascience/gdcs/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: probes, index-archive")
	fmt.Fprint(os.Stderr, cmd.ProbesHelp)
	fmt.Fprint(os.Stderr, cmd.IndexArchiveHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage, "\n")
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "probes":
		err = cmd.Probes()
	case "index-archive":
		err = cmd.IndexArchive()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Println("Unknown command", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
