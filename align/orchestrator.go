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

package align

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/exascience/pargo/pipeline"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/exascience/gdcs/internal"
)

// DefaultTimeout bounds a single aligner invocation.
const DefaultTimeout = 30 * time.Minute

// Metrics counts alignment outcomes.
type Metrics struct {
	Alignments *prometheus.CounterVec
}

// Outcome labels of Metrics.Alignments.
const (
	OutcomeAligned  = "aligned"
	OutcomeFallback = "fallback"
)

// NewMetrics creates the alignment counters and registers them with reg,
// unless reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Alignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gdcs",
			Name:      "alignments_total",
			Help:      "Number of loci aligned, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.Alignments)
	}
	return m
}

// A Job aligns the sequences of one locus.
type Job struct {
	Name          string
	Input, Output string
}

// A Result reports how a Job was completed. If Fallback is true, Cause
// holds the aligner error and the output is a copy of the input.
type Result struct {
	Job
	Fallback bool
	Cause    error
}

// An Orchestrator runs alignment jobs in a bounded pool of workers.
type Orchestrator struct {
	Aligner Aligner
	// Workers is the maximum number of concurrent aligner invocations,
	// runtime.GOMAXPROCS(0) if not positive.
	Workers int
	// Timeout bounds each aligner invocation, no bound if not positive.
	Timeout time.Duration
	// Metrics is optional.
	Metrics *Metrics
}

func (o *Orchestrator) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o *Orchestrator) count(outcome string) {
	if o.Metrics != nil {
		o.Metrics.Alignments.WithLabelValues(outcome).Inc()
	}
}

// Run aligns all jobs and returns when every job is done.
//
// Output directories are created before any job starts. A failed or
// expired aligner invocation is replaced by a copy of the input; Run
// only fails if such a copy cannot be made.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	dirs := make(map[string]bool)
	for _, job := range jobs {
		dir := filepath.Dir(job.Output)
		if dirs[dir] {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
		dirs[dir] = true
	}

	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results, nil
	}
	indexes := make([]int, len(jobs))
	for i := range indexes {
		indexes[i] = i
	}

	var p pipeline.Pipeline
	p.Source(indexes)
	p.SetVariableBatchSize(1, 1)
	p.Add(pipeline.LimitedPar(o.workers(), pipeline.Receive(func(_ int, data interface{}) interface{} {
		for _, i := range data.([]int) {
			result, err := o.align(ctx, jobs[i])
			if err != nil {
				p.SetErr(err)
				return data
			}
			results[i] = result
		}
		return data
	})))
	p.Run()
	if err := p.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) align(ctx context.Context, job Job) (Result, error) {
	if err := os.Remove(job.Output); err != nil && !os.IsNotExist(err) {
		return Result{}, err
	}
	alignCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.Timeout > 0 {
		alignCtx, cancel = context.WithTimeout(ctx, o.Timeout)
	}
	err := o.Aligner.Align(alignCtx, job.Input, job.Output)
	cancel()
	if err == nil {
		if _, serr := os.Stat(job.Output); serr != nil {
			err = fmt.Errorf("aligner produced no output %v", job.Output)
		}
	}
	if err == nil {
		o.count(OutcomeAligned)
		return Result{Job: job}, nil
	}
	log.Printf("Alignment of %v failed, using unaligned sequences: %v\n", job.Name, err)
	if cerr := internal.CopyFile(job.Input, job.Output); cerr != nil {
		return Result{}, fmt.Errorf("%v, while copying unaligned sequences of %v", cerr, job.Name)
	}
	o.count(OutcomeFallback)
	return Result{Job: job, Fallback: true, Cause: err}, nil
}
