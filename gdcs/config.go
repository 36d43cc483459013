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

// Package gdcs ties the allele aggregation, sequence assembly,
// alignment, consensus, and probe scanning steps together into the
// probe discovery pipeline.
package gdcs

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/exascience/gdcs/alleles"
	"github.com/exascience/gdcs/align"
	"github.com/exascience/gdcs/consensus"
	"github.com/exascience/gdcs/internal"
	"github.com/exascience/gdcs/probes"
)

// DefaultOrganisms are the organisms of interest if none are specified.
var DefaultOrganisms = []string{"Escherichia", "Listeria", "Salmonella", "Enterobacter"}

// Config holds the settings of a pipeline run. It can be loaded from a
// YAML file; command line flags take precedence.
type Config struct {
	// Path is the input directory. TableFile, AlleleFile, and
	// ArchiveIndex are relative to Path unless they are absolute.
	Path         string `yaml:"path"`
	TableFile    string `yaml:"file"`
	AlleleFile   string `yaml:"allelefile"`
	ArchiveIndex string `yaml:"archive-index"`

	Organisms []string          `yaml:"organisms"`
	Composite alleles.Composite `yaml:"composite"`

	MinSize   int     `yaml:"min"`
	MaxSize   int     `yaml:"max"`
	Cutoff    float64 `yaml:"cutoff"`
	Threshold float64 `yaml:"consensus-threshold"`

	Aligner        string        `yaml:"aligner"`
	AlignerThreads int           `yaml:"aligner-threads"`
	AlignerTimeout time.Duration `yaml:"aligner-timeout"`
	Workers        int           `yaml:"workers"`
}

// DefaultConfig returns a Config with all defaults filled in.
func DefaultConfig() Config {
	return Config{
		Organisms:      append([]string(nil), DefaultOrganisms...),
		Composite:      alleles.Enterobacteriaceae,
		MinSize:        probes.DefaultMinSize,
		MaxSize:        probes.DefaultMaxSize,
		Cutoff:         probes.DefaultCutoff,
		Threshold:      consensus.DefaultThreshold,
		Aligner:        "clustalo",
		AlignerThreads: align.DefaultClustalOmegaThreads,
		AlignerTimeout: align.DefaultTimeout,
	}
}

// LoadConfigFile reads a YAML configuration file into config. Settings
// that are missing from the file keep their current values.
func LoadConfigFile(filename string, config *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("%v, while loading configuration file %v", err, filename)
	}
	return nil
}

// ParseOrganisms splits a comma-separated list of organisms.
func ParseOrganisms(list string) (organisms []string) {
	for _, organism := range strings.Split(list, ",") {
		if organism = strings.TrimSpace(organism); organism != "" {
			organisms = append(organisms, organism)
		}
	}
	return organisms
}

// Scanner returns the probe scanner for the configured window sizes
// and cutoff.
func (config *Config) Scanner() probes.Scanner {
	return probes.Scanner{MinSize: config.MinSize, MaxSize: config.MaxSize, Cutoff: config.Cutoff}
}

// TablePath returns the location of the rMLST table.
func (config *Config) TablePath() string {
	return internal.ResolveIn(config.Path, config.TableFile)
}

// AllelePath returns the location of the allele archive.
func (config *Config) AllelePath() string {
	return internal.ResolveIn(config.Path, config.AlleleFile)
}

// IndexPath returns the location of the archive index, or "" if the
// archive is to be held in memory.
func (config *Config) IndexPath() string {
	if config.ArchiveIndex == "" {
		return ""
	}
	return internal.ResolveIn(config.Path, config.ArchiveIndex)
}

// Validate checks the settings for consistency.
func (config *Config) Validate() error {
	if !internal.IsDir(config.Path) {
		return fmt.Errorf("supplied path is not a valid directory: %v", config.Path)
	}
	if config.TableFile == "" {
		return fmt.Errorf("missing rMLST table file")
	}
	if config.AlleleFile == "" {
		return fmt.Errorf("missing allele file")
	}
	if len(config.Organisms) == 0 {
		return fmt.Errorf("no organisms of interest")
	}
	if config.Composite.Name != "" && len(config.Composite.Members) == 0 {
		return fmt.Errorf("composite group %v without members", config.Composite.Name)
	}
	if err := config.Scanner().Validate(); err != nil {
		return err
	}
	if config.Threshold <= 0 || config.Threshold > 1 {
		return fmt.Errorf("invalid consensus threshold %v, must be in (0, 1]", config.Threshold)
	}
	if config.AlignerThreads < 0 {
		return fmt.Errorf("invalid number of aligner threads %v", config.AlignerThreads)
	}
	if config.Workers < 0 {
		return fmt.Errorf("invalid number of workers %v", config.Workers)
	}
	return nil
}
