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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/exascience/gdcs/align"
)

// Result labels of Metrics.Loci.
const (
	ResultProbe = "probe"
	ResultNone  = "none"
)

// Metrics holds the diagnostic counters of a pipeline run.
type Metrics struct {
	Registry *prometheus.Registry
	Align    *align.Metrics
	Loci     *prometheus.CounterVec
	Probes   prometheus.Counter
}

// NewMetrics creates the counters of a pipeline run in a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Align:    align.NewMetrics(reg),
		Loci: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gdcs",
			Name:      "loci_total",
			Help:      "Number of loci analyzed, by whether a probe was found.",
		}, []string{"result"}),
		Probes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gdcs",
			Name:      "probes_selected_total",
			Help:      "Number of selected probe candidates.",
		}),
	}
	reg.MustRegister(m.Loci, m.Probes)
	return m
}

// WriteFile writes all counters in the Prometheus text format.
func (m *Metrics) WriteFile(filename string) error {
	return prometheus.WriteToTextfile(filename, m.Registry)
}
