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
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/exascience/pargo/parallel"

	"github.com/exascience/gdcs/align"
	"github.com/exascience/gdcs/alleles"
	"github.com/exascience/gdcs/archive"
	"github.com/exascience/gdcs/consensus"
	"github.com/exascience/gdcs/fasta"
	"github.com/exascience/gdcs/internal"
	"github.com/exascience/gdcs/probes"
)

// A LocusResult is the outcome of probe discovery for one locus.
type LocusResult struct {
	Locus
	// Fallback is true if the aligner failed and the unaligned
	// sequences were analyzed instead.
	Fallback bool
	// Sequences and Columns describe the analyzed alignment.
	Sequences, Columns int
	// Group is nil if no window qualified.
	Group  *probes.WindowGroup
	Probes []probes.SelectedProbe
	// Err is set if the alignment could not be analyzed.
	Err error
}

// A PhaseFunc runs one phase of the pipeline. It can be used to time or
// profile individual phases.
type PhaseFunc func(msg string, phase int64, f func() error) error

func logPhase(msg string, _ int64, f func() error) error {
	log.Println(msg)
	return f()
}

// AggregateAlleles reads the rMLST table of the configuration.
func AggregateAlleles(config *Config) (alleles.Alleles, error) {
	f, err := os.Open(config.TablePath())
	if err != nil {
		return nil, err
	}
	defer internal.Close(f)
	return alleles.Aggregate(f, config.Organisms, config.Composite)
}

// AssembleLoci writes the allele files of all loci, using the
// configured archive and archive index.
func AssembleLoci(config *Config, sets alleles.Alleles) (loci []Locus, err error) {
	index, err := archive.Open(config.AllelePath(), config.IndexPath())
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := index.Close(); err == nil {
			err = nerr
		}
	}()
	return WriteAlleleFiles(config.Path, sets, index)
}

// AlignLoci aligns all loci. The aligned directory of every given
// organism is removed and recreated first, including organisms without
// loci.
func AlignLoci(ctx context.Context, config *Config, aligner align.Aligner, metrics *Metrics, organisms []string, loci []Locus) ([]align.Result, error) {
	for _, organism := range organisms {
		if err := internal.RecreateDir(filepath.Join(config.Path, AlignedDir, organism)); err != nil {
			return nil, err
		}
	}
	jobs := make([]align.Job, 0, len(loci))
	for _, locus := range loci {
		jobs = append(jobs, align.Job{Name: locus.Name(), Input: locus.Unaligned, Output: locus.Aligned})
	}
	o := &align.Orchestrator{
		Aligner: aligner,
		Workers: config.Workers,
		Timeout: config.AlignerTimeout,
	}
	if metrics != nil {
		o.Metrics = metrics.Align
	}
	return o.Run(ctx, jobs)
}

// AnalyzeLocus builds the consensus of the aligned sequences of a
// locus, scans its identity profile, and selects the probes.
func AnalyzeLocus(locus Locus, scanner probes.Scanner, threshold float64) (result LocusResult) {
	result.Locus = locus
	records, err := fasta.ReadFile(locus.Aligned, true)
	if err != nil {
		result.Err = err
		return result
	}
	if len(records) == 0 {
		return result
	}
	seqs := make([][]byte, len(records))
	for i, record := range records {
		seqs[i] = record.Seq
	}
	profile, err := consensus.Build(seqs, threshold, consensus.DefaultAmbiguous)
	if err != nil {
		result.Err = fmt.Errorf("%v, in alignment %v", err, locus.Aligned)
		return result
	}
	result.Sequences = len(seqs)
	result.Columns = profile.Len()
	if group, ok := scanner.ScanProfile(profile); ok {
		result.Group = &group
		result.Probes = probes.Select(group)
	}
	return result
}

// AnalyzeLoci runs AnalyzeLocus for all loci in parallel.
func AnalyzeLoci(config *Config, metrics *Metrics, loci []Locus) []LocusResult {
	results := make([]LocusResult, len(loci))
	if len(loci) == 0 {
		return results
	}
	scanner := config.Scanner()
	parallel.Range(0, len(loci), 0, func(low, high int) {
		for i := low; i < high; i++ {
			results[i] = AnalyzeLocus(loci[i], scanner, config.Threshold)
		}
	})
	for _, result := range results {
		if result.Err != nil {
			log.Printf("Skipping %v: %v\n", result.Name(), result.Err)
		}
		if metrics == nil {
			continue
		}
		if len(result.Probes) > 0 {
			metrics.Loci.WithLabelValues(ResultProbe).Inc()
			metrics.Probes.Add(float64(len(result.Probes)))
		} else {
			metrics.Loci.WithLabelValues(ResultNone).Inc()
		}
	}
	return results
}

// Run executes the complete probe discovery pipeline. If phase is nil,
// each phase is only logged. Metrics are optional.
func Run(ctx context.Context, config *Config, aligner align.Aligner, metrics *Metrics, phase PhaseFunc) (results []LocusResult, err error) {
	if phase == nil {
		phase = logPhase
	}
	var (
		sets alleles.Alleles
		loci []Locus
	)
	if err = phase("Parsing alleles", 1, func() (err error) {
		sets, err = AggregateAlleles(config)
		return err
	}); err != nil {
		return nil, err
	}
	if err = phase("Retrieving alleles", 2, func() (err error) {
		loci, err = AssembleLoci(config, sets)
		return err
	}); err != nil {
		return nil, err
	}
	var aligned []align.Result
	if err = phase("Aligning alleles", 3, func() (err error) {
		aligned, err = AlignLoci(ctx, config, aligner, metrics, sets.Organisms(), loci)
		return err
	}); err != nil {
		return nil, err
	}
	if err = phase("Finding and filtering probe sequences", 4, func() error {
		results = AnalyzeLoci(config, metrics, loci)
		for i := range results {
			results[i].Fallback = aligned[i].Fallback
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return results, nil
}
