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

package archive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testArchive = ">BACT000001_1\nacgtacgt\n>BACT000001_12\nACGTTCGT\n>BACT000002_3\nGGGG\n"

func writeArchive(t *testing.T) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "rMLST_combined.fasta")
	if err := os.WriteFile(name, []byte(testArchive), 0600); err != nil {
		t.Fatal(err)
	}
	return name
}

func checkIndex(t *testing.T, index Index) {
	t.Helper()
	seq, err := index.Seq(Key("BACT000001", 1))
	if err != nil || string(seq) != "ACGTACGT" {
		t.Error("lookup BACT000001_1 failed", string(seq), err)
	}
	seq, err = index.Seq(Key("BACT000002", 3))
	if err != nil || string(seq) != "GGGG" {
		t.Error("lookup BACT000002_3 failed", string(seq), err)
	}
	if _, err = index.Seq(Key("BACT000002", 4)); !errors.Is(err, ErrNotFound) {
		t.Error("missing lookup failed", err)
	}
}

func TestKey(t *testing.T) {
	if Key("BACT000001", 692) != "BACT000001_692" {
		t.Error("Key failed")
	}
}

func TestMemoryIndex(t *testing.T) {
	index, err := Open(writeArchive(t), "")
	if err != nil {
		t.Fatal(err)
	}
	checkIndex(t, index)
	if err := index.Close(); err != nil {
		t.Error(err)
	}
}

func TestElfastaIndex(t *testing.T) {
	archive := writeArchive(t)
	indexPath := filepath.Join(t.TempDir(), "alleles.elfasta")
	for i := 0; i < 2; i++ {
		index, err := Open(archive, indexPath)
		if err != nil {
			t.Fatal(err)
		}
		checkIndex(t, index)
		if err := index.Close(); err != nil {
			t.Error(err)
		}
	}
}

func TestSQLiteIndex(t *testing.T) {
	archive := writeArchive(t)
	indexPath := filepath.Join(t.TempDir(), "alleles.db")
	index, err := Open(archive, indexPath)
	if err != nil {
		t.Fatal(err)
	}
	checkIndex(t, index)
	if n, err := index.(*SQLiteIndex).Len(); err != nil || n != 3 {
		t.Error("SQLite index length failed", n, err)
	}
	if err := index.Close(); err != nil {
		t.Error(err)
	}

	// the archive is not read again once the index exists
	if err := os.Remove(archive); err != nil {
		t.Fatal(err)
	}
	index, err = Open(archive, indexPath)
	if err != nil {
		t.Fatal(err)
	}
	checkIndex(t, index)
	_ = index.Close()
}

func TestUnknownIndexFormat(t *testing.T) {
	if _, err := Open(writeArchive(t), filepath.Join(t.TempDir(), "alleles.idx")); err == nil {
		t.Error("unknown index format not reported")
	}
}

func TestStaleIndexRebuilt(t *testing.T) {
	for _, ext := range []string{".elfasta", ".db"} {
		archive := writeArchive(t)
		indexPath := filepath.Join(t.TempDir(), "alleles"+ext)
		index, err := Open(archive, indexPath)
		if err != nil {
			t.Fatal(err)
		}
		checkIndex(t, index)
		if err := index.Close(); err != nil {
			t.Error(err)
		}

		updated := testArchive + ">BACT000002_4\nCCCC\n"
		if err := os.WriteFile(archive, []byte(updated), 0600); err != nil {
			t.Fatal(err)
		}
		info, err := os.Stat(indexPath)
		if err != nil {
			t.Fatal(err)
		}
		later := info.ModTime().Add(time.Hour)
		if err := os.Chtimes(archive, later, later); err != nil {
			t.Fatal(err)
		}

		index, err = Open(archive, indexPath)
		if err != nil {
			t.Fatal(err)
		}
		if seq, err := index.Seq(Key("BACT000002", 4)); err != nil || string(seq) != "CCCC" {
			t.Error("stale index not rebuilt", ext, string(seq), err)
		}
		_ = index.Close()
	}
}
