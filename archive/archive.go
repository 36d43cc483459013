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

// Package archive provides random access by identifier to the records
// of a large FASTA archive of allele sequences.
//
// Three backends are available. Without an index file, the archive is
// parsed into memory. An index file with the .elfasta extension is a
// memory-mapped index, and an index file with a .db or .sqlite
// extension is a SQLite database. Index files are built on first use
// and reused afterwards, until the archive is modified.
package archive

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/exascience/gdcs/fasta"
)

// ErrNotFound is returned for identifiers that are not in the archive.
var ErrNotFound = errors.New("record not found in archive")

// An Index provides sequences by record identifier.
type Index interface {
	Seq(id string) ([]byte, error)
	Close() error
}

// Key returns the archive identifier for an allele of a gene.
func Key(gene string, allele uint) string {
	return fmt.Sprintf("%v_%v", gene, allele)
}

type memoryIndex map[string][]byte

func (index memoryIndex) Seq(id string) ([]byte, error) {
	if seq, ok := index[id]; ok {
		return seq, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrNotFound, id)
}

func (index memoryIndex) Close() error {
	return nil
}

type elfastaIndex struct {
	*fasta.MappedFasta
}

func (index elfastaIndex) Seq(id string) ([]byte, error) {
	if seq, ok := index.MappedFasta.Seq(id); ok {
		return seq, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrNotFound, id)
}

func isSQLite(ext string) bool {
	return ext == ".db" || ext == ".sqlite"
}

// Build creates the index file for the given FASTA archive, replacing
// an existing index file.
func Build(fastaPath, indexPath string) error {
	ext := strings.ToLower(filepath.Ext(indexPath))
	switch {
	case ext == fasta.ElfastaExt:
		records, err := fasta.ParseFasta(fastaPath, true)
		if err != nil {
			return err
		}
		return fasta.ToElfasta(records, indexPath)
	case isSQLite(ext):
		return CreateSQLiteIndex(fastaPath, indexPath)
	default:
		return fmt.Errorf("unknown archive index format %v", indexPath)
	}
}

func needsBuild(fastaPath, indexPath string) (bool, error) {
	index, err := os.Stat(indexPath)
	if os.IsNotExist(err) {
		return true, nil
	} else if err != nil {
		return false, err
	}
	archive, err := os.Stat(fastaPath)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if archive.ModTime().After(index.ModTime()) {
		log.Printf("Archive %v is newer than index %v, rebuilding the index.\n", fastaPath, indexPath)
		return true, nil
	}
	return false, nil
}

// Open returns an index over the given FASTA archive. If indexPath is
// empty, the archive is held in memory; otherwise the index file is
// used, and built first if it does not exist yet or if the archive
// was modified after the index was built. An index whose archive no
// longer exists is used as is.
func Open(fastaPath, indexPath string) (Index, error) {
	if indexPath == "" {
		records, err := fasta.ParseFasta(fastaPath, true)
		if err != nil {
			return nil, err
		}
		return memoryIndex(records), nil
	}
	build, err := needsBuild(fastaPath, indexPath)
	if err != nil {
		return nil, err
	}
	if build {
		if err := Build(fastaPath, indexPath); err != nil {
			_ = os.Remove(indexPath)
			return nil, err
		}
	}
	ext := strings.ToLower(filepath.Ext(indexPath))
	switch {
	case ext == fasta.ElfastaExt:
		mapped := fasta.OpenElfasta(indexPath)
		if err := mapped.Err(); err != nil {
			return nil, err
		}
		return elfastaIndex{mapped}, nil
	case isSQLite(ext):
		return OpenSQLiteIndex(indexPath)
	default:
		return nil, fmt.Errorf("unknown archive index format %v", indexPath)
	}
}
