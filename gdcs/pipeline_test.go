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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/exascience/gdcs/align"
	"github.com/exascience/gdcs/fasta"
	"github.com/exascience/gdcs/internal"
)

const (
	seq1 = "ACGTACGTACGTACGTACGTACGTA"
	seq2 = "ACGTACGTACGTACGTACGTACGTC"
	seq3 = "TTGCATTGCATTGCATTGCATTGCA"
	seq4 = "TTGCA"
)

const testTable = "id,Genus,BACT000001,BACT000002\n" +
	"1,Escherichia,1,N\n" +
	"2,Escherichia,2 (N),N\n" +
	"3,Listeria,3,N\n" +
	"4,Vibrio,9,N\n"

const testArchive = ">BACT000001_1\n" + seq1 + "\n" +
	">BACT000001_2\n" + seq2 + "\n" +
	">BACT000001_3\n" + seq3 + "\n" +
	">BACT000001_4\n" + seq4 + "\n" +
	">BACT000001_9\nGGGGG\n"

func writeInputs(t *testing.T, table string) *Config {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rmlst.csv"), []byte(table), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "alleles.fasta"), []byte(testArchive), 0600); err != nil {
		t.Fatal(err)
	}
	config := DefaultConfig()
	config.Path = dir
	config.TableFile = "rmlst.csv"
	config.AlleleFile = "alleles.fasta"
	config.Organisms = []string{"Escherichia", "Listeria"}
	config.MaxSize = 25
	return &config
}

// copyAligner treats the unaligned sequences as aligned.
type copyAligner struct{}

func (copyAligner) Align(_ context.Context, input, output string) error {
	return internal.CopyFile(input, output)
}

type failingAligner struct{}

func (failingAligner) Align(context.Context, string, string) error {
	return errors.New("aligner failed")
}

func TestWriteAlleleFiles(t *testing.T) {
	config := writeInputs(t, testTable)
	sets, err := AggregateAlleles(config)
	if err != nil {
		t.Fatal(err)
	}
	loci, err := AssembleLoci(config, sets)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, locus := range loci {
		names = append(names, locus.Name())
	}
	if strings.Join(names, " ") != "Enterobacteriaceae/BACT000001 Escherichia/BACT000001 Listeria/BACT000001" {
		t.Error("loci failed", names)
	}
	records, err := fasta.ReadFile(loci[1].Unaligned, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].ID != "BACT000001_1" || string(records[1].Seq) != seq2 {
		t.Error("Escherichia allele file failed", records)
	}
	if _, err := os.Stat(filepath.Join(config.Path, AllelesDir, "Listeria", "BACT000002"+AlleleExt)); !os.IsNotExist(err) {
		t.Error("file written for gene without alleles")
	}
	combined, err := fasta.ReadFile(filepath.Join(config.Path, AllelesDir, "Listeria", CombinedFile), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(combined) != 1 || string(combined[0].Seq) != seq3 {
		t.Error("combined file failed", combined)
	}
}

func TestWriteAlleleFilesRecreates(t *testing.T) {
	config := writeInputs(t, testTable)
	stale := filepath.Join(config.Path, AllelesDir, "Listeria", "stale.tfa")
	if err := os.MkdirAll(filepath.Dir(stale), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, nil, 0600); err != nil {
		t.Fatal(err)
	}
	sets, err := AggregateAlleles(config)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := AssembleLoci(config, sets); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale allele file survived")
	}
}

func TestWriteAlleleFilesMissingAllele(t *testing.T) {
	config := writeInputs(t, "Genus,BACT000001\nListeria,77\n")
	sets, err := AggregateAlleles(config)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := AssembleLoci(config, sets); err == nil {
		t.Error("missing allele not reported")
	}
}

func TestRun(t *testing.T) {
	config := writeInputs(t, testTable)
	metrics := NewMetrics()
	results, err := Run(context.Background(), config, copyAligner{}, metrics, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatal("unexpected number of results", len(results))
	}
	for _, result := range results[:2] {
		if result.Group == nil || result.Group.Size != 24 {
			t.Error("Escherichia window failed", result.Name(), result.Group)
			continue
		}
		if len(result.Probes) != 1 || result.Probes[0].Location() != "0:24" || result.Probes[0].Sequence != seq1[:24] {
			t.Error("Escherichia probe failed", result.Name(), result.Probes)
		}
	}
	if listeria := results[2]; listeria.Group == nil || listeria.Group.Size != 25 || listeria.Probes[0].Sequence != seq3 {
		t.Error("Listeria probe failed", listeria.Group)
	}
	if testutil.ToFloat64(metrics.Loci.WithLabelValues(ResultProbe)) != 3 {
		t.Error("probe loci counter failed")
	}
	if testutil.ToFloat64(metrics.Probes) != 3 {
		t.Error("probe counter failed")
	}
	if testutil.ToFloat64(metrics.Align.Alignments.WithLabelValues(align.OutcomeAligned)) != 3 {
		t.Error("alignment counter failed")
	}

	var buf bytes.Buffer
	if err := WriteReport(&buf, results); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 || lines[0] != ReportHeader {
		t.Fatal("report failed", lines)
	}
	if lines[3] != "Listeria\tBACT000001\t25\t100\t0:25\t100\t100\t"+seq3 {
		t.Error("report line failed", lines[3])
	}
}

func TestRunFallback(t *testing.T) {
	config := writeInputs(t, "Genus,BACT000001\nListeria,3 4\nEscherichia,1 2\n")
	metrics := NewMetrics()
	results, err := Run(context.Background(), config, failingAligner{}, metrics, nil)
	if err != nil {
		t.Fatal(err)
	}
	if testutil.ToFloat64(metrics.Align.Alignments.WithLabelValues(align.OutcomeFallback)) != 3 {
		t.Error("fallback counter failed")
	}
	for _, result := range results {
		if !result.Fallback {
			t.Error("fallback not reported", result.Name())
		}
		switch result.Organism {
		case "Listeria":
			if result.Err == nil || result.Group != nil {
				t.Error("unequal sequence lengths not reported", result.Err)
			}
		default:
			if result.Err != nil || len(result.Probes) != 1 {
				t.Error("equal length fallback failed", result.Name(), result.Err)
			}
		}
	}
	if testutil.ToFloat64(metrics.Loci.WithLabelValues(ResultNone)) != 1 {
		t.Error("empty loci counter failed")
	}
}

func TestRunClearsAlignedOrganisms(t *testing.T) {
	config := writeInputs(t, "Genus,BACT000001\nEscherichia,1\n")
	stale := filepath.Join(config.Path, AlignedDir, "Listeria", "BACT000001"+AlleleExt)
	if err := os.MkdirAll(filepath.Dir(stale), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte(">BACT000001_3\n"+seq3+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	results, err := Run(context.Background(), config, copyAligner{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, result := range results {
		if result.Organism == "Listeria" {
			t.Error("locus reported for organism without alleles", result.Name())
		}
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale aligned file survived")
	}
	if !internal.IsDir(filepath.Dir(stale)) {
		t.Error("aligned directory of organism without alleles not recreated")
	}
}

func TestRunPhases(t *testing.T) {
	config := writeInputs(t, testTable)
	var phases []int64
	_, err := Run(context.Background(), config, copyAligner{}, nil, func(_ string, phase int64, f func() error) error {
		phases = append(phases, phase)
		return f()
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(phases) != 4 || phases[3] != 4 {
		t.Error("phases failed", phases)
	}
}

func TestRunMissingTable(t *testing.T) {
	config := writeInputs(t, testTable)
	config.TableFile = "missing.csv"
	if _, err := Run(context.Background(), config, copyAligner{}, nil, nil); !os.IsNotExist(err) {
		t.Error("missing table not reported", err)
	}
}
