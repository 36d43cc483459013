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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/exascience/gdcs/align"
	"github.com/exascience/gdcs/gdcs"
	"github.com/exascience/gdcs/internal"
)

// ProbesHelp is the help string for this command.
const ProbesHelp = "\nprobes parameters:\n" +
	"gdcs probes path\n" +
	"-f, --file rmlst-table-file\n" +
	"-a, --allelefile allele-fasta-file\n" +
	"[-o, --organisms list]\n" +
	"[-m, --min size]\n" +
	"[-M, --max size]\n" +
	"[-c, --cutoff percentage]\n" +
	"[--consensus-threshold fraction]\n" +
	"[--archive-index file.elfasta | file.db]\n" +
	"[--config yaml-file]\n" +
	"[--aligner command]\n" +
	"[--aligner-threads nr]\n" +
	"[--aligner-timeout duration]\n" +
	"[--nr-of-threads nr]\n" +
	"[--metrics-file file]\n" +
	"[--timed]\n" +
	"[--profile file]\n" +
	"[--log-path path]\n"

// Probes implements the gdcs probes command.
func Probes() error {
	config := gdcs.DefaultConfig()
	if configFile := findFlag(os.Args[2:], "config"); configFile != "" {
		if err := gdcs.LoadConfigFile(configFile, &config); err != nil {
			return err
		}
	}

	var (
		configFile, organisms                 string
		metricsFile, profile, logPath, report string
		timed                                 bool
	)

	flags := new(flag.FlagSet)
	for _, name := range []string{"f", "file"} {
		flags.StringVar(&config.TableFile, name, config.TableFile, "rMLST table with the allele identifiers per isolate")
	}
	for _, name := range []string{"a", "allelefile"} {
		flags.StringVar(&config.AlleleFile, name, config.AlleleFile, "FASTA archive with all allele sequences")
	}
	for _, name := range []string{"o", "organisms"} {
		flags.StringVar(&organisms, name, strings.Join(config.Organisms, ","), "comma-separated list of organisms of interest")
	}
	for _, name := range []string{"m", "min"} {
		flags.IntVar(&config.MinSize, name, config.MinSize, "minimum probe size")
	}
	for _, name := range []string{"M", "max"} {
		flags.IntVar(&config.MaxSize, name, config.MaxSize, "maximum probe size")
	}
	for _, name := range []string{"c", "cutoff"} {
		flags.Float64Var(&config.Cutoff, name, config.Cutoff, "identity percentage every probe position must exceed")
	}
	flags.Float64Var(&config.Threshold, "consensus-threshold", config.Threshold, "fraction of a column the consensus base must reach")
	flags.StringVar(&config.ArchiveIndex, "archive-index", config.ArchiveIndex, "index the allele archive in an .elfasta or SQLite file")
	flags.StringVar(&configFile, "config", "", "load settings from a YAML file")
	flags.StringVar(&config.Aligner, "aligner", config.Aligner, "Clustal Omega executable")
	flags.IntVar(&config.AlignerThreads, "aligner-threads", config.AlignerThreads, "number of threads per aligner invocation")
	flags.DurationVar(&config.AlignerTimeout, "aligner-timeout", config.AlignerTimeout, "maximum duration of a single aligner invocation")
	flags.IntVar(&config.Workers, "nr-of-threads", config.Workers, "number of concurrent aligner invocations")
	flags.StringVar(&report, "report", "", "write the probe report to a file instead of stdout")
	flags.StringVar(&metricsFile, "metrics-file", "", "write run counters in Prometheus text format")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 3, ProbesHelp)

	path, err := internal.FullPathname(getFilename(os.Args[2], ProbesHelp))
	if err != nil {
		return err
	}
	config.Path = path
	config.Organisms = gdcs.ParseOrganisms(organisms)

	if err := setLogOutput(logPath); err != nil {
		return err
	}

	// sanity checks

	var sanityChecksFailed bool

	if err := config.Validate(); err != nil {
		log.Println("Error:", err)
		sanityChecksFailed = true
	}
	if config.TableFile != "" && !checkExist("--file", config.TablePath()) {
		sanityChecksFailed = true
	}
	if config.AlleleFile != "" && !checkExist("--allelefile", config.AllelePath()) {
		sanityChecksFailed = true
	}
	if metricsFile != "" && !checkCreate("--metrics-file", metricsFile) {
		sanityChecksFailed = true
	}
	if report != "" && !checkCreate("--report", report) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, ProbesHelp)
		os.Exit(1)
	}

	if config.Workers > 0 {
		runtime.GOMAXPROCS(config.Workers)
	}

	log.Printf("Organisms: %v, probe sizes %v-%v, cutoff %v.\n", strings.Join(config.Organisms, ", "), config.MinSize, config.MaxSize, config.Cutoff)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := gdcs.NewMetrics()
	aligner := &align.ClustalOmega{Command: config.Aligner, Threads: config.AlignerThreads}
	results, err := gdcs.Run(ctx, &config, aligner, metrics, func(msg string, phase int64, f func() error) error {
		return timedRun(timed, profile, msg, phase, f)
	})
	if err != nil {
		return err
	}
	gdcs.LogSummary(results)

	out := os.Stdout
	if report != "" {
		if out, err = os.Create(report); err != nil {
			return err
		}
	}
	err = gdcs.WriteReport(out, results)
	if report != "" {
		if nerr := out.Close(); err == nil {
			err = nerr
		}
	}
	if err != nil {
		return err
	}

	if metricsFile != "" {
		return metrics.WriteFile(metricsFile)
	}
	return nil
}
