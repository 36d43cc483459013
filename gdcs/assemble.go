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

package gdcs

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/exascience/gdcs/alleles"
	"github.com/exascience/gdcs/archive"
	"github.com/exascience/gdcs/fasta"
	"github.com/exascience/gdcs/internal"
)

const (
	// AllelesDir holds the unaligned allele files of each organism.
	AllelesDir = "outputalleles"

	// AlignedDir holds the aligned allele files of each organism.
	AlignedDir = "alignedalleles"

	// CombinedFile is the name of the file with all allele sequences of
	// an organism.
	CombinedFile = "gdcs_alleles.fasta"

	// AlleleExt is the extension of per-gene allele files.
	AlleleExt = ".tfa"
)

// A Locus is an (organism, gene) pair whose alleles are aligned and
// scanned together.
type Locus struct {
	Organism, Gene     string
	Alleles            []uint
	Unaligned, Aligned string
}

// Name returns organism/gene.
func (locus Locus) Name() string {
	return locus.Organism + "/" + locus.Gene
}

type fastaFile struct {
	file   *os.File
	writer *bufio.Writer
}

func createFasta(name string) (*fastaFile, error) {
	file, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	return &fastaFile{file: file, writer: bufio.NewWriter(file)}, nil
}

func (f *fastaFile) Close() error {
	err := f.writer.Flush()
	if nerr := f.file.Close(); err == nil {
		err = nerr
	}
	return err
}

// WriteAlleleFiles writes, for every organism, one FASTA file per gene
// with the sequences of all its alleles, plus one combined file with
// all sequences of the organism. The organism directories below
// path/outputalleles are removed and recreated first.
//
// Genes without alleles get no file and no Locus. The returned loci are
// sorted by organism and gene.
func WriteAlleleFiles(path string, sets alleles.Alleles, index archive.Index) (loci []Locus, err error) {
	for _, organism := range sets.Organisms() {
		dir := filepath.Join(path, AllelesDir, organism)
		if err := internal.RecreateDir(dir); err != nil {
			return nil, err
		}
		combined, err := createFasta(filepath.Join(dir, CombinedFile))
		if err != nil {
			return nil, err
		}
		organismLoci, err := writeOrganismFiles(path, organism, sets[organism], index, combined)
		if nerr := combined.Close(); err == nil {
			err = nerr
		}
		if err != nil {
			return nil, err
		}
		loci = append(loci, organismLoci...)
	}
	return loci, nil
}

func writeOrganismFiles(path, organism string, set alleles.GeneAlleleSet, index archive.Index, combined *fastaFile) (loci []Locus, err error) {
	for _, gene := range set.Genes() {
		ids := set.IDs(gene)
		if len(ids) == 0 {
			log.Printf("No alleles for %v/%v.\n", organism, gene)
			continue
		}
		locus := Locus{
			Organism:  organism,
			Gene:      gene,
			Alleles:   ids,
			Unaligned: filepath.Join(path, AllelesDir, organism, gene+AlleleExt),
			Aligned:   filepath.Join(path, AlignedDir, organism, gene+AlleleExt),
		}
		if err := writeLocusFile(locus, index, combined); err != nil {
			return nil, err
		}
		loci = append(loci, locus)
	}
	return loci, nil
}

func writeLocusFile(locus Locus, index archive.Index, combined *fastaFile) (err error) {
	out, err := createFasta(locus.Unaligned)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := out.Close(); err == nil {
			err = nerr
		}
	}()
	for _, id := range locus.Alleles {
		key := archive.Key(locus.Gene, id)
		seq, err := index.Seq(key)
		if err != nil {
			return fmt.Errorf("%v, while retrieving alleles of %v", err, locus.Name())
		}
		if err := fasta.Write(out.writer, key, seq); err != nil {
			return err
		}
		if err := fasta.Write(combined.writer, key, seq); err != nil {
			return err
		}
	}
	return nil
}
