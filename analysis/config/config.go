// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config contains the options of the lineage analysis, the identifiers of the iterator methods to analyze and the
// model of the query runtime. To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it keeps its default value (see NewDefault).
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:"options"`

	sourceFile string

	// if the PkgFilter is specified
	pkgFilterRegex *regexp.Regexp

	// Iterators identifies the methods to analyze. When empty, every method whose receiver has a field of a row or
	// row set type is analyzed.
	Iterators []CodeIdentifier `yaml:"iterators"`

	// Runtime identifies the types and methods of the query runtime
	Runtime RuntimeSpec `yaml:"runtime"`
}

// Options are the scalar settings of the analysis
type Options struct {
	// ReportsDir is the directory where the lineage reports are written. If empty, reports are only printed.
	ReportsDir string `yaml:"reports-dir"`

	// PkgFilter restricts the analysis to the functions whose package path matches the filter (a regex, or a prefix
	// if the filter is not a valid regex)
	PkgFilter string `yaml:"pkg-filter"`

	// SkipInterprocedural can be set to true to skip the analysis of callees. Calls that may reach the input or
	// output rows are then treated as unanalyzable.
	SkipInterprocedural bool `yaml:"skip-interprocedural"`

	// MaxDepth sets a limit for the depth of nested callee analyses. If MaxDepth <= 0, then it is ignored.
	MaxDepth int `yaml:"max-depth"`

	// MaxIterations bounds the number of node visits of the fixpoint computation of a single method. If
	// MaxIterations <= 0, then it is ignored.
	MaxIterations int `yaml:"max-iterations"`

	// Parallelism is the number of methods analyzed concurrently. Defaults to the number of CPUs.
	Parallelism int `yaml:"parallelism"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// SilenceWarn suppresses warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns a default config: default SCOPE runtime model, interprocedural analysis enabled.
func NewDefault() *Config {
	c := &Config{
		Runtime: DefaultRuntimeSpec(),
		Options: Options{
			MaxDepth:      DefaultMaxCallDepth,
			MaxIterations: DefaultMaxIterations,
			Parallelism:   runtime.NumCPU(),
			LogLevel:      int(InfoLevel),
		},
	}
	c.compile()
	return c
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return Parse(filename, b)
}

// Parse reads a configuration from the yaml contents b. filename is used to resolve relative paths.
func Parse(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file %s: %w", filename, err)
	}
	cfg.sourceFile = filename

	if cfg.ReportsDir != "" {
		if err := os.MkdirAll(cfg.RelPath(cfg.ReportsDir), 0750); err != nil {
			return nil, fmt.Errorf("could not create directory %s: %w", cfg.ReportsDir, err)
		}
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = runtime.NumCPU()
	}

	cfg.compile()
	return cfg, nil
}

// compile computes the private fields of the config after it has been loaded
func (c *Config) compile() {
	if c.PkgFilter != "" {
		if r, err := regexp.Compile(c.PkgFilter); err == nil {
			c.pkgFilterRegex = r
		}
	}
	compileAll(c.Iterators)
	c.Runtime = c.Runtime.Compiled()
}

// SetPkgFilter replaces the package filter of the configuration
func (c *Config) SetPkgFilter(filter string) {
	c.PkgFilter = filter
	c.pkgFilterRegex = nil
	c.compile()
}

// RelPath returns filename path relative to the config source file
func (c *Config) RelPath(filename string) string {
	if path.IsAbs(filename) || c.sourceFile == "" {
		return filename
	}
	return path.Join(path.Dir(c.sourceFile), filename)
}

// MatchPkgFilter returns true if the package name pkgname matches the package filter set in the config file. If no
// package filter has been set in the config file, the regex will match anything and return true. This function safely
// considers the case where a filter has been specified by the user, but it could not be compiled to a regex. The safe
// case is to check whether the package filter string is a prefix of the pkgname
func (c *Config) MatchPkgFilter(pkgname string) bool {
	if c.pkgFilterRegex != nil {
		return c.pkgFilterRegex.MatchString(pkgname)
	} else if c.PkgFilter != "" {
		return strings.HasPrefix(pkgname, c.PkgFilter)
	}
	return true
}

// IsIterator returns true if the code identifier matches some iterator identifier of the config. If the config has
// no iterator identifiers, it returns ok = false and the caller decides.
func (c *Config) IsIterator(cid CodeIdentifier) (isIterator bool, ok bool) {
	if len(c.Iterators) == 0 {
		return false, false
	}
	return cid.MatchesSome(c.Iterators), true
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c *Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// ExceedsMaxDepth returns true if the input exceeds the maximum depth parameter of the configuration.
// (this implements the logic for using maximum depth; if the configuration setting is <= 0, then this returns false)
func (c *Config) ExceedsMaxDepth(d int) bool {
	return c.MaxDepth > 0 && d > c.MaxDepth
}

// ExceedsMaxIterations returns true if the number of node visits n exceeds the iteration bound of the configuration
func (c *Config) ExceedsMaxIterations(n int) bool {
	return c.MaxIterations > 0 && n > c.MaxIterations
}
