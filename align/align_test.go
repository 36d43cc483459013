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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const alignedMarker = ">aligned\nACGT\n"

// markerAligner writes a fixed alignment, and fails for inputs whose
// name contains "single".
type markerAligner struct {
	mutex             sync.Mutex
	active, maxActive int32
}

func (a *markerAligner) Align(_ context.Context, input, output string) error {
	active := atomic.AddInt32(&a.active, 1)
	defer atomic.AddInt32(&a.active, -1)
	a.mutex.Lock()
	if active > a.maxActive {
		a.maxActive = active
	}
	a.mutex.Unlock()
	time.Sleep(5 * time.Millisecond)
	if strings.Contains(input, "single") {
		return errors.New("cannot align a single sequence")
	}
	return os.WriteFile(output, []byte(alignedMarker), 0600)
}

type stalledAligner struct{}

func (stalledAligner) Align(ctx context.Context, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

type silentAligner struct{}

func (silentAligner) Align(context.Context, string, string) error {
	return nil
}

func makeJobs(t *testing.T, names ...string) []Job {
	t.Helper()
	dir := t.TempDir()
	var jobs []Job
	for _, name := range names {
		input := filepath.Join(dir, "outputalleles", "Salmonella", name+".tfa")
		if err := os.MkdirAll(filepath.Dir(input), 0700); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(input, []byte(">"+name+"\nAC\n"), 0600); err != nil {
			t.Fatal(err)
		}
		jobs = append(jobs, Job{
			Name:   "Salmonella/" + name,
			Input:  input,
			Output: filepath.Join(dir, "alignedalleles", "Salmonella", name+".tfa"),
		})
	}
	return jobs
}

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestOrchestrator(t *testing.T) {
	jobs := makeJobs(t, "BACT000001", "BACT000002_single", "BACT000003", "BACT000004", "BACT000005")
	aligner := &markerAligner{}
	metrics := NewMetrics(prometheus.NewRegistry())
	o := &Orchestrator{Aligner: aligner, Workers: 2, Metrics: metrics}
	results, err := o.Run(context.Background(), jobs)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(jobs) {
		t.Fatal("result count failed", len(results))
	}
	for i, result := range results {
		if result.Output != jobs[i].Output {
			t.Error("result order failed", result.Name)
		}
		single := strings.Contains(result.Name, "single")
		if result.Fallback != single {
			t.Error("fallback failed for", result.Name)
		}
		if single {
			if result.Cause == nil || readFile(t, result.Output) != readFile(t, result.Input) {
				t.Error("copy-through failed for", result.Name)
			}
		} else if readFile(t, result.Output) != alignedMarker {
			t.Error("alignment output failed for", result.Name)
		}
	}
	if aligner.maxActive > 2 {
		t.Error("worker bound exceeded", aligner.maxActive)
	}
	if testutil.ToFloat64(metrics.Alignments.WithLabelValues(OutcomeAligned)) != 4 {
		t.Error("aligned counter failed")
	}
	if testutil.ToFloat64(metrics.Alignments.WithLabelValues(OutcomeFallback)) != 1 {
		t.Error("fallback counter failed")
	}
}

func TestOrchestratorTimeout(t *testing.T) {
	jobs := makeJobs(t, "BACT000001", "BACT000002")
	o := &Orchestrator{Aligner: stalledAligner{}, Workers: 1, Timeout: 10 * time.Millisecond}
	results, err := o.Run(context.Background(), jobs)
	if err != nil {
		t.Fatal(err)
	}
	for _, result := range results {
		if !result.Fallback || !errors.Is(result.Cause, context.DeadlineExceeded) {
			t.Error("timeout fallback failed for", result.Name, result.Cause)
		}
	}
}

func TestOrchestratorMissingOutput(t *testing.T) {
	jobs := makeJobs(t, "BACT000001")
	results, err := (&Orchestrator{Aligner: silentAligner{}}).Run(context.Background(), jobs)
	if err != nil {
		t.Fatal(err)
	}
	if !results[0].Fallback || readFile(t, results[0].Output) != readFile(t, results[0].Input) {
		t.Error("missing output fallback failed")
	}
}

func TestOrchestratorCopyFailure(t *testing.T) {
	jobs := makeJobs(t, "BACT000001_single")
	if err := os.Remove(jobs[0].Input); err != nil {
		t.Fatal(err)
	}
	if _, err := (&Orchestrator{Aligner: &markerAligner{}}).Run(context.Background(), jobs); err == nil {
		t.Error("copy failure not reported")
	}
}

func TestOrchestratorNoJobs(t *testing.T) {
	results, err := (&Orchestrator{Aligner: &markerAligner{}}).Run(context.Background(), nil)
	if err != nil || len(results) != 0 {
		t.Error("empty run failed", err)
	}
}

func TestClustalOmegaArgs(t *testing.T) {
	clustal := ClustalOmega{}
	if clustal.String("in.tfa", "out.tfa") != "clustalo -i in.tfa -o out.tfa --threads=4 --auto --force" {
		t.Error("default command line failed", clustal.String("in.tfa", "out.tfa"))
	}
	clustal = ClustalOmega{Command: "/opt/clustalo", Threads: 8}
	if clustal.String("in.tfa", "out.tfa") != "/opt/clustalo -i in.tfa -o out.tfa --threads=8 --auto --force" {
		t.Error("custom command line failed", clustal.String("in.tfa", "out.tfa"))
	}
}

func TestClustalOmegaMissingExecutable(t *testing.T) {
	clustal := ClustalOmega{Command: filepath.Join(t.TempDir(), "no-such-clustalo")}
	if err := clustal.Align(context.Background(), "in.tfa", "out.tfa"); err == nil {
		t.Error("missing executable not reported")
	}
}
