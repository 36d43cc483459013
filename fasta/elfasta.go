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
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/exascience/gdcs/internal"
)

type offsetTableEntry struct {
	id     string
	offset int
}

// ElfastaMagic is the magic byte sequence that every .elfasta file starts with.
var ElfastaMagic = []byte{0x31, 0xFA, 0x57, 0xA1} // 31FA57A1 => ELFASTA1

// ElfastaExt is the file extension of mmappable FASTA indexes.
const ElfastaExt = ".elfasta"

// ToElfasta stores fasta data into a mmappable .elfasta file.
//
// The file starts with an offset table of all record identifiers,
// followed by the concatenated sequences, so that OpenElfasta only
// needs to read the table to provide random access by identifier.
func ToElfasta(fasta map[string][]byte, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := file.Close(); err == nil {
			err = nerr
		}
	}()
	ids := make([]string, 0, len(fasta))
	for id := range fasta {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	offset, err := file.Write(ElfastaMagic)
	if err != nil {
		return err
	}
	var offsetTable []offsetTableEntry
	for _, id := range ids {
		n, err := file.WriteString(id + "\t")
		if err != nil {
			return err
		}
		offset += n
		offsetTable = append(offsetTable, offsetTableEntry{id: id, offset: offset})
		offset += 2 * binary.MaxVarintLen64
		if _, err := file.Seek(int64(offset), 0); err != nil {
			return err
		}
	}
	n, err := file.WriteString("\n")
	if err != nil {
		return err
	}
	offset += n
	offsetMap := make(map[string]int, len(ids))
	for _, id := range ids {
		offsetMap[id] = offset
		n, err := file.Write(fasta[id])
		if err != nil {
			return err
		}
		offset += n
	}
	data, err := unix.Mmap(int(file.Fd()), 0, offset, unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := unix.Munmap(data); err == nil {
			err = nerr
		}
	}()
	for _, entry := range offsetTable {
		binary.PutVarint(data[entry.offset:entry.offset+binary.MaxVarintLen64], int64(offsetMap[entry.id]))
		binary.PutVarint(data[entry.offset+binary.MaxVarintLen64:entry.offset+2*binary.MaxVarintLen64], int64(len(fasta[entry.id])))
	}
	return nil
}

// MappedFasta represents the contents of an .elfasta file.
type MappedFasta struct {
	wait  sync.WaitGroup
	err   error
	fasta map[string][]byte
	data  []byte
	file  *os.File
}

// OpenElfasta opens a .elfasta file.
//
// The offset table is read in the background; Seq and Close wait
// for it to be available.
func OpenElfasta(filename string) (result *MappedFasta) {
	result = new(MappedFasta)
	result.wait.Add(1)
	go func() {
		defer result.wait.Done()
		file, err := os.Open(filename)
		if err != nil {
			result.err = err
			return
		}
		fail := func(data []byte, err error) {
			if data != nil {
				_ = unix.Munmap(data)
			}
			internal.Close(file)
			result.err = err
		}
		stat, err := file.Stat()
		if err != nil {
			fail(nil, err)
			return
		}
		if stat.Size() < int64(len(ElfastaMagic)+1) {
			fail(nil, fmt.Errorf("%v is not a .elfasta file - file too short", filename))
			return
		}
		data, err := unix.Mmap(int(file.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			fail(nil, err)
			return
		}
		for i, b := range ElfastaMagic {
			if data[i] != b {
				fail(data, fmt.Errorf("%v is not a .elfasta file - invalid magic byte sequence", filename))
				return
			}
		}
		fasta := make(map[string][]byte)
		truncated := fmt.Errorf("%v is not a .elfasta file - truncated offset table", filename)
		index := len(ElfastaMagic)
		for {
			if index >= len(data) {
				fail(data, truncated)
				return
			}
			if data[index] == '\n' {
				break
			}
			start := index
			for ; index < len(data) && data[index] != '\t'; index++ {
			}
			if index+1+2*binary.MaxVarintLen64 > len(data) {
				fail(data, truncated)
				return
			}
			id := string(data[start:index])
			index++
			offset, n := binary.Varint(data[index : index+binary.MaxVarintLen64])
			if n <= 0 {
				fail(data, fmt.Errorf("bad number of bytes while parsing offset in elfasta file %v", filename))
				return
			}
			size, n := binary.Varint(data[index+binary.MaxVarintLen64 : index+2*binary.MaxVarintLen64])
			if n <= 0 {
				fail(data, fmt.Errorf("bad number of bytes while parsing size in elfasta file %v", filename))
				return
			}
			if offset < 0 || size < 0 || offset+size > int64(len(data)) {
				fail(data, fmt.Errorf("sequence %v out of bounds in elfasta file %v", id, filename))
				return
			}
			fasta[id] = data[int(offset):int(offset+size)]
			index += 2 * binary.MaxVarintLen64
		}
		result.fasta = fasta
		result.data = data
		result.file = file
	}()
	return result
}

// Err returns the error that occurred while opening the .elfasta file, if any.
func (fasta *MappedFasta) Err() error {
	fasta.wait.Wait()
	return fasta.err
}

// Close closes the .elfasta file.
func (fasta *MappedFasta) Close() error {
	fasta.wait.Wait()
	if fasta.err != nil {
		return fasta.err
	}
	err := unix.Munmap(fasta.data)
	fasta.data = nil
	if nerr := fasta.file.Close(); err == nil {
		err = nerr
	}
	fasta.file = nil
	fasta.fasta = nil
	return err
}

// Seq fetches a sequence for the given identifier
// from the .elfasta file.
func (fasta *MappedFasta) Seq(id string) ([]byte, bool) {
	fasta.wait.Wait()
	seq, ok := fasta.fasta[id]
	return seq, ok
}

// Len returns the number of records in the .elfasta file.
func (fasta *MappedFasta) Len() int {
	fasta.wait.Wait()
	return len(fasta.fasta)
}
