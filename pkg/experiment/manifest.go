/*
Copyright 2020 Google LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package experiment runs stage classification over a batch of labelled traces.
package experiment

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/google/stageprof/pkg/stackparse"
	"github.com/google/stageprof/pkg/stages"
	"github.com/google/stageprof/pkg/timeline"
)

// DefaultParallelism is the number of traces analyzed at once when unset.
const DefaultParallelism = 2

// Window bounds the search phase, in seconds from the first sample.
type Window struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// Experiment is one labelled trace.
type Experiment struct {
	Label  string  `yaml:"label"`
	Trace  string  `yaml:"trace"`
	Window *Window `yaml:"window,omitempty"`
	// DriverLog supplies the window when Window is unset.
	DriverLog string `yaml:"driver_log,omitempty"`
	Section   string `yaml:"section,omitempty"`
}

// Manifest describes a batch of experiments sharing one classification setup.
type Manifest struct {
	Marker              string       `yaml:"marker,omitempty"`
	Granularity         string       `yaml:"granularity,omitempty"`
	TrackNonDomain      bool         `yaml:"track_non_domain,omitempty"`
	DiscardUnclassified bool         `yaml:"discard_unclassified,omitempty"`
	Parallelism         int          `yaml:"parallelism,omitempty"`
	Experiments         []Experiment `yaml:"experiments"`

	granularity stages.Granularity
}

// Decode reads a YAML manifest. Relative paths are resolved against dir.
func Decode(r io.Reader, dir string) (*Manifest, error) {
	m := &Manifest{}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("manifest is empty")
		}
		return nil, fmt.Errorf("decode: %w", err)
	}

	if err := m.setDefaults(dir); err != nil {
		return nil, err
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// Load reads the manifest at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Decode(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return m, nil
}

func (m *Manifest) setDefaults(dir string) error {
	if m.Marker == "" {
		m.Marker = stackparse.DefaultMarker
	}

	if m.Parallelism <= 0 {
		m.Parallelism = DefaultParallelism
	}

	g, err := stages.ParseGranularity(m.Granularity)
	if err != nil {
		return err
	}

	m.granularity = g
	m.Granularity = g.String()

	for i := range m.Experiments {
		e := &m.Experiments[i]
		e.Trace = resolve(dir, e.Trace)
		e.DriverLog = resolve(dir, e.DriverLog)
	}

	return nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) || dir == "" {
		return p
	}

	return filepath.Join(dir, p)
}

// Validate checks that every experiment names a trace and a source for its window.
func (m *Manifest) Validate() error {
	if len(m.Experiments) == 0 {
		return errors.New("manifest lists no experiments")
	}

	seen := map[string]bool{}

	for i, e := range m.Experiments {
		if e.Label == "" {
			return fmt.Errorf("experiment %d: label is required", i)
		}

		if seen[e.Label] {
			return fmt.Errorf("experiment %d: duplicate label %q", i, e.Label)
		}
		seen[e.Label] = true

		if e.Trace == "" {
			return fmt.Errorf("experiment %q: trace is required", e.Label)
		}

		if e.Window != nil && e.DriverLog != "" {
			return fmt.Errorf("experiment %q: window and driver_log are mutually exclusive", e.Label)
		}

		if e.Window != nil && e.Window.Start > e.Window.End {
			return fmt.Errorf("experiment %q: window start %.3f is after end %.3f", e.Label, e.Window.Start, e.Window.End)
		}

		if e.Section != "" && e.DriverLog == "" {
			return fmt.Errorf("experiment %q: section requires driver_log", e.Label)
		}
	}

	return nil
}

// Options returns the classification options shared by all experiments.
func (m *Manifest) Options() timeline.Options {
	return timeline.Options{
		Marker:              m.Marker,
		Granularity:         m.granularity,
		TrackNonDomain:      m.TrackNonDomain,
		DiscardUnclassified: m.DiscardUnclassified,
	}
}
