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
	"io"
	"log"
	"strconv"
)

// ReportHeader is the first line written by WriteReport.
const ReportHeader = "organism\tgene\tsize\tmax_mean\tlocation\tmin\tmean\tsequence"

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// WriteReport writes one tab-separated line per selected probe, after a
// header line. Loci without probes are not listed.
func WriteReport(w io.Writer, results []LocusResult) error {
	out := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(out, ReportHeader); err != nil {
		return err
	}
	for _, result := range results {
		if result.Group == nil {
			continue
		}
		for _, probe := range result.Probes {
			if _, err := fmt.Fprintf(out, "%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\n",
				result.Organism, result.Gene, probe.Size,
				formatFloat(result.Group.MaxMean), probe.Location(),
				formatFloat(probe.Min), formatFloat(probe.Mean), probe.Sequence); err != nil {
				return err
			}
		}
	}
	return out.Flush()
}

// LogSummary logs, for every organism, how many loci were analyzed,
// how many yielded probes, and how many fell back to unaligned
// sequences.
func LogSummary(results []LocusResult) {
	type summary struct{ loci, found, fallback, skipped int }
	var organisms []string
	summaries := make(map[string]*summary)
	for _, result := range results {
		s := summaries[result.Organism]
		if s == nil {
			s = &summary{}
			summaries[result.Organism] = s
			organisms = append(organisms, result.Organism)
		}
		s.loci++
		if len(result.Probes) > 0 {
			s.found++
		}
		if result.Fallback {
			s.fallback++
		}
		if result.Err != nil {
			s.skipped++
		}
	}
	for _, organism := range organisms {
		s := summaries[organism]
		log.Printf("%v: %v loci, %v with probes, %v unaligned, %v skipped.\n", organism, s.loci, s.found, s.fallback, s.skipped)
	}
}
