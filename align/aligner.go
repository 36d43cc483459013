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

// Package align runs an external multiple-sequence aligner over many
// loci in a bounded pool of workers.
//
// Aligner failures never fail a job: the unaligned input is copied to
// the expected output location instead. This covers loci with a single
// sequence, which aligners such as Clustal Omega refuse to align.
package align

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// An Aligner writes a multiple-sequence alignment of the FASTA records
// in input to output.
type Aligner interface {
	Align(ctx context.Context, input, output string) error
}

// DefaultClustalOmegaThreads is the number of threads passed to each
// Clustal Omega invocation.
const DefaultClustalOmegaThreads = 4

// ClustalOmega invokes the clustalo executable.
type ClustalOmega struct {
	// Command is the executable, "clustalo" if empty.
	Command string
	// Threads is passed as --threads, DefaultClustalOmegaThreads if 0.
	Threads int
}

func (clustal ClustalOmega) command() string {
	if clustal.Command == "" {
		return "clustalo"
	}
	return clustal.Command
}

// Args returns the command line arguments for aligning input to output.
func (clustal ClustalOmega) Args(input, output string) []string {
	threads := clustal.Threads
	if threads <= 0 {
		threads = DefaultClustalOmegaThreads
	}
	return []string{"-i", input, "-o", output, "--threads=" + strconv.Itoa(threads), "--auto", "--force"}
}

// String returns the command line for aligning input to output.
func (clustal ClustalOmega) String(input, output string) string {
	var buf bytes.Buffer
	buf.WriteString(clustal.command())
	for _, arg := range clustal.Args(input, output) {
		buf.WriteByte(' ')
		buf.WriteString(arg)
	}
	return buf.String()
}

// Align implements the Aligner interface.
func (clustal ClustalOmega) Align(ctx context.Context, input, output string) error {
	cmd := exec.CommandContext(ctx, clustal.command(), clustal.Args(input, output)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%v: %w", clustal.String(input, output), ctxErr)
		}
		return fmt.Errorf("%v: %v: %s", clustal.String(input, output), err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}
