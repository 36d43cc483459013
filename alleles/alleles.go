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

// Package alleles aggregates rMLST allele profiles into per-organism
// sets of allele identifiers for each gene.
package alleles

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/willf/bitset"
)

const (
	// GenePrefix identifies the gene columns in the header of an rMLST table.
	GenePrefix = "BACT"

	// GenusColumn is the name of the column that holds the genus of a row.
	GenusColumn = "Genus"

	// Absent is the cell value for a gene without an allele.
	Absent = "N"
)

// A Composite is a derived organism group that unions the alleles of
// its member genera.
type Composite struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

// Enterobacteriaceae is the default composite group.
var Enterobacteriaceae = Composite{
	Name:    "Enterobacteriaceae",
	Members: []string{"Escherichia", "Salmonella", "Enterobacter"},
}

// IsMember reports whether the given genus belongs to the composite group.
func (c Composite) IsMember(genus string) bool {
	for _, member := range c.Members {
		if member == genus {
			return true
		}
	}
	return false
}

// A GeneAlleleSet maps gene names to the set of allele identifiers
// observed for that gene.
type GeneAlleleSet map[string]*bitset.BitSet

func (set GeneAlleleSet) add(gene string, id uint) {
	bits := set[gene]
	if bits == nil {
		bits = bitset.New(id + 1)
		set[gene] = bits
	}
	bits.Set(id)
}

// Genes returns the gene names of the set in sorted order.
func (set GeneAlleleSet) Genes() []string {
	genes := make([]string, 0, len(set))
	for gene := range set {
		genes = append(genes, gene)
	}
	sort.Strings(genes)
	return genes
}

// IDs returns the allele identifiers for the given gene in ascending order.
func (set GeneAlleleSet) IDs(gene string) (ids []uint) {
	bits := set[gene]
	if bits == nil {
		return nil
	}
	for i, ok := bits.NextSet(0); ok; i, ok = bits.NextSet(i + 1) {
		ids = append(ids, i)
	}
	return ids
}

// Contains reports whether the allele identifier was observed for the gene.
func (set GeneAlleleSet) Contains(gene string, id uint) bool {
	bits := set[gene]
	return bits != nil && bits.Test(id)
}

// Alleles maps organism names to their gene allele sets.
type Alleles map[string]GeneAlleleSet

// Organisms returns the organism names in sorted order.
func (alleles Alleles) Organisms() []string {
	organisms := make([]string, 0, len(alleles))
	for organism := range alleles {
		organisms = append(organisms, organism)
	}
	sort.Strings(organisms)
	return organisms
}

func bitsEqual(bits1, bits2 *bitset.BitSet) bool {
	if bits1 == nil || bits2 == nil {
		return (bits1 == nil || bits1.None()) && (bits2 == nil || bits2.None())
	}
	return bits1.Count() == bits2.Count() && bits1.IntersectionCardinality(bits2) == bits1.Count()
}

// Equal reports whether both values contain the same organisms, genes,
// and allele identifiers.
func (alleles Alleles) Equal(other Alleles) bool {
	if len(alleles) != len(other) {
		return false
	}
	for organism, set := range alleles {
		otherSet, ok := other[organism]
		if !ok || len(set) != len(otherSet) {
			return false
		}
		for gene, bits := range set {
			otherBits, ok := otherSet[gene]
			if !ok || !bitsEqual(bits, otherBits) {
				return false
			}
		}
	}
	return true
}

// MaxAllele is the largest accepted allele identifier. Identifiers
// index into bit sets, so larger values are rejected as malformed.
const MaxAllele = 1<<24 - 1

// Errors reported through ParseError.
var (
	ErrNoGenes     = errors.New("no gene columns with prefix " + GenePrefix)
	ErrNoGenus     = errors.New("missing " + GenusColumn + " column")
	ErrAlleleRange = fmt.Errorf("allele identifier exceeds %v", MaxAllele)
)

// A ParseError is returned for rMLST tables that cannot be aggregated.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("invalid rMLST table header at line %v: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("invalid allele %q at line %v, column %v: %v", e.Value, e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// A Header describes the relevant columns of an rMLST table.
type Header struct {
	Genus   int
	Genes   []string
	Columns []int
}

// ParseHeader locates the genus column and the gene columns in the
// given header fields.
func ParseHeader(fields []string) (*Header, error) {
	header := &Header{Genus: -1}
	for index, field := range fields {
		field = strings.TrimSpace(strings.TrimPrefix(field, "\ufeff"))
		switch {
		case field == GenusColumn:
			header.Genus = index
		case strings.HasPrefix(field, GenePrefix):
			header.Genes = append(header.Genes, field)
			header.Columns = append(header.Columns, index)
		}
	}
	if len(header.Genes) == 0 {
		return nil, &ParseError{Line: 1, Err: ErrNoGenes}
	}
	if header.Genus < 0 {
		return nil, &ParseError{Line: 1, Err: ErrNoGenus}
	}
	return header, nil
}

// ParseCell returns the allele identifiers of a single gene cell.
//
// The absence marker yields no identifiers. A trailing parenthesized
// qualifier, as in "10 692 (N)", is removed before the remaining
// space-separated identifiers are parsed.
func ParseCell(value string) ([]uint, error) {
	value = strings.TrimSpace(value)
	if value == Absent {
		return nil, nil
	}
	if i := strings.Index(value, " ("); i >= 0 {
		value = value[:i]
	}
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil, errors.New("empty allele")
	}
	ids := make([]uint, 0, len(fields))
	for _, field := range fields {
		id, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return nil, ErrAlleleRange
			}
			return nil, err
		}
		if id > MaxAllele {
			return nil, ErrAlleleRange
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// Aggregate reads a comma-separated rMLST table and returns, for each
// of the given organisms, the allele identifiers observed per gene.
//
// Every organism gets an entry for every gene of the header. Rows for
// genera that are not in organisms are ignored. If any member of the
// composite group is among the organisms, the result also has an entry
// for the composite group, which unions the alleles of those members.
func Aggregate(r io.Reader, organisms []string, composite Composite) (Alleles, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	fields, err := reader.Read()
	if err == io.EOF {
		return nil, &ParseError{Line: 1, Err: ErrNoGenes}
	}
	if err != nil {
		return nil, err
	}
	header, err := ParseHeader(fields)
	if err != nil {
		return nil, err
	}

	alleles := make(Alleles)
	for _, organism := range organisms {
		set := make(GeneAlleleSet)
		for _, gene := range header.Genes {
			set[gene] = bitset.New(0)
		}
		alleles[organism] = set
		if composite.Name != "" && composite.IsMember(organism) && alleles[composite.Name] == nil {
			compositeSet := make(GeneAlleleSet)
			for _, gene := range header.Genes {
				compositeSet[gene] = bitset.New(0)
			}
			alleles[composite.Name] = compositeSet
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		genus := strings.TrimSpace(record[header.Genus])
		set, ok := alleles[genus]
		if !ok || genus == composite.Name {
			continue
		}
		var compositeSet GeneAlleleSet
		if composite.IsMember(genus) {
			compositeSet = alleles[composite.Name]
		}
		for index, column := range header.Columns {
			ids, err := ParseCell(record[column])
			if err != nil {
				line, _ := reader.FieldPos(column)
				return nil, &ParseError{
					Line:   line,
					Column: header.Genes[index],
					Value:  record[column],
					Err:    err,
				}
			}
			gene := header.Genes[index]
			for _, id := range ids {
				set.add(gene, id)
				if compositeSet != nil {
					compositeSet.add(gene, id)
				}
			}
		}
	}
	return alleles, nil
}
