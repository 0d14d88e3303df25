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

// Package pprof is for rendering sampled self time into a pprof profile.
package pprof

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/pprof/profile"
	"k8s.io/klog/v2"

	"github.com/google/stageprof/pkg/stackparse"
	"github.com/google/stageprof/pkg/stages"
	"github.com/google/stageprof/pkg/timeline"
)

// StageLabel is the sample label holding the stage of the credited function.
const StageLabel = "stage"

// ThreadLabel is the numeric sample label holding the thread id.
const ThreadLabel = "thread"

type builder struct {
	p     *profile.Profile
	funcs map[string]*profile.Function
	locs  map[string]*profile.Location
}

// Build converts credited intervals into a profile: one sample per interval, whose
// stack is the earlier sample and whose value is the interval length.
func Build(seq stackparse.Sequence, opts timeline.Options) (*profile.Profile, error) {
	b := &builder{
		p: &profile.Profile{
			SampleType: []*profile.ValueType{
				{Type: "samples", Unit: "count"},
				{Type: "cpu", Unit: "nanoseconds"},
			},
			PeriodType: &profile.ValueType{Type: "cpu", Unit: "nanoseconds"},
			TimeNanos:  time.Now().UnixNano(),
		},
		funcs: map[string]*profile.Function{},
		locs:  map[string]*profile.Location{},
	}

	marker := opts.Marker
	if marker == "" {
		marker = stackparse.DefaultMarker
	}
	c := stages.New(opts.Granularity, marker)

	_, err := timeline.Walk(seq, opts, func(iv timeline.Interval) {
		if len(iv.From.Frames) == 0 {
			klog.V(1).Infof("thread %d: sample at %.6f has no frames, skipping", iv.ThreadID, iv.From.Time)
			return
		}

		locs := make([]*profile.Location, 0, len(iv.From.Frames))
		for _, f := range iv.From.Frames {
			locs = append(locs, b.location(f))
		}

		b.p.Sample = append(b.p.Sample, &profile.Sample{
			Location: locs,
			Value:    []int64{1, int64(iv.Seconds * float64(time.Second))},
			Label:    map[string][]string{StageLabel: {string(c.Classify(iv.Function))}},
			NumLabel: map[string][]int64{ThreadLabel: {int64(iv.ThreadID)}},
		})
	})
	if err != nil {
		return nil, err
	}

	if len(b.p.Sample) == 0 {
		return nil, fmt.Errorf("no intervals were credited")
	}

	return b.p, nil
}

// Render outputs a gzipped pprof protobuf.
func Render(seq stackparse.Sequence, opts timeline.Options) ([]byte, error) {
	p, err := Build(seq, opts)
	if err != nil {
		return nil, err
	}

	if err := p.CheckValid(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}

	var buf bytes.Buffer
	if err := p.Write(&buf); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	return buf.Bytes(), nil
}

func (b *builder) function(name string) *profile.Function {
	if f, ok := b.funcs[name]; ok {
		return f
	}

	sym, module := splitModule(name)
	f := &profile.Function{
		ID:         uint64(len(b.funcs) + 1),
		Name:       sym,
		SystemName: sym,
		Filename:   module,
	}
	b.funcs[name] = f
	b.p.Function = append(b.p.Function, f)

	return f
}

func (b *builder) location(fr stackparse.Frame) *profile.Location {
	name := fr.Name
	if name == "" {
		name = "[unknown]"
	}

	key := fr.Address + " " + name
	if l, ok := b.locs[key]; ok {
		return l
	}

	l := &profile.Location{
		ID:      uint64(len(b.locs) + 1),
		Address: fr.PC(),
		Line:    []profile.Line{{Function: b.function(name)}},
	}
	b.locs[key] = l
	b.p.Location = append(b.p.Location, l)

	return l
}

// splitModule separates "symbol (module)" into its parts.
func splitModule(name string) (string, string) {
	if !strings.HasSuffix(name, ")") {
		return name, ""
	}

	i := strings.LastIndex(name, " (")
	if i < 0 {
		return name, ""
	}

	return name[:i], name[i+2 : len(name)-1]
}
