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

package fasta

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/exascience/gdcs/internal"
)

// LineWidth is the number of bases per line when writing FASTA records.
const LineWidth = 60

const maxLineLength = 1 << 28

// A Record is a single FASTA entry.
type Record struct {
	ID  string
	Seq []byte
}

func idFromHeader(b []byte) string {
	i := 1
	for ; i < len(b); i++ {
		if c := b[i]; c >= '!' && c <= '~' {
			break
		}
	}
	j := i + 1
	for ; j < len(b); j++ {
		if c := b[j]; c < '!' || c > '~' {
			break
		}
	}
	if j > len(b) {
		j = len(b)
	}
	return string(b[i:j])
}

func toUpper(b []byte) {
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
}

// Read sequentially parses FASTA records from r, in file order.
//
// Empty input yields no records. If upper is true, all sequences are
// converted to upper case.
func Read(r io.Reader, upper bool, visit func(Record) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineLength)

	var (
		record Record
		inside bool
	)
	for scanner.Scan() {
		b := scanner.Bytes()
		if len(b) > 0 && b[len(b)-1] == '\r' {
			b = b[:len(b)-1]
		}
		if len(b) == 0 {
			continue
		}
		if b[0] == '>' {
			if inside {
				if err := visit(record); err != nil {
					return err
				}
			}
			record = Record{ID: idFromHeader(b)}
			inside = true
			continue
		}
		if !inside {
			return fmt.Errorf("invalid fasta data - missing first header")
		}
		if upper {
			toUpper(b)
		}
		record.Seq = append(record.Seq, b...)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if inside {
		return visit(record)
	}
	return nil
}

// ReadFile parses all records of a FASTA file, in file order.
func ReadFile(filename string, upper bool) (records []Record, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer internal.Close(f)
	err = Read(bufio.NewReader(f), upper, func(record Record) error {
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%v, while reading fasta file %v", err, filename)
	}
	return records, nil
}

// ParseFasta parses a FASTA file into a map from record identifiers
// to sequences.
//
// Records with duplicate identifiers are reported as errors.
func ParseFasta(filename string, upper bool) (fasta map[string][]byte, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer internal.Close(f)
	fasta = make(map[string][]byte)
	err = Read(bufio.NewReader(f), upper, func(record Record) error {
		if _, ok := fasta[record.ID]; ok {
			return fmt.Errorf("duplicate record %v", record.ID)
		}
		fasta[record.ID] = record.Seq
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%v, while parsing fasta file %v", err, filename)
	}
	if len(fasta) == 0 {
		return nil, fmt.Errorf("empty fasta file %v", filename)
	}
	return fasta, nil
}

// Write formats a single record, wrapping the sequence at LineWidth.
func Write(w io.Writer, id string, seq []byte) error {
	var buf bytes.Buffer
	buf.Grow(len(id) + len(seq) + len(seq)/LineWidth + 3)
	buf.WriteByte('>')
	buf.WriteString(id)
	buf.WriteByte('\n')
	for len(seq) > LineWidth {
		buf.Write(seq[:LineWidth])
		buf.WriteByte('\n')
		seq = seq[LineWidth:]
	}
	if len(seq) > 0 {
		buf.Write(seq)
		buf.WriteByte('\n')
	}
	_, err := w.Write(buf.Bytes())
	return err
}
