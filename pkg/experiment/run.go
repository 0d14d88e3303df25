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

package experiment

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/google/stageprof/pkg/driverlog"
	"github.com/google/stageprof/pkg/stackparse"
	"github.com/google/stageprof/pkg/timeline"
)

// Outcome is the analysis of one experiment.
type Outcome struct {
	Experiment
	// Windowed is false when the whole trace was analyzed.
	Windowed bool
	Start    float64
	End      float64
	Result   *timeline.Result
	Shares   timeline.Percentages
}

// Analyze loads, filters and classifies the trace of a single experiment.
func Analyze(e Experiment, opts timeline.Options) (*Outcome, error) {
	o := &Outcome{Experiment: e}

	switch {
	case e.Window != nil:
		o.Windowed, o.Start, o.End = true, e.Window.Start, e.Window.End
	case e.DriverLog != "":
		start, end, err := driverlog.Window(e.DriverLog, e.Section)
		if err != nil {
			return nil, fmt.Errorf("window: %w", err)
		}
		o.Windowed, o.Start, o.End = true, start, end
	}

	events, err := stackparse.Load(e.Trace)
	if err != nil {
		return nil, err
	}

	if o.Windowed {
		events, err = timeline.FilterWindow(events, o.Start, o.End)
		if err != nil {
			return nil, err
		}
	}

	res, err := timeline.Classify(events, opts)
	if err != nil {
		return nil, err
	}

	shares, err := timeline.ToPercentages(res.Totals)
	if err != nil {
		return nil, err
	}

	o.Result, o.Shares = res, shares

	return o, nil
}

// Run analyzes every experiment of the manifest, at most m.Parallelism at a time.
// Outcomes are returned in manifest order; the first failure cancels the rest.
func Run(ctx context.Context, m *Manifest) ([]*Outcome, error) {
	outcomes := make([]*Outcome, len(m.Experiments))
	opts := m.Options()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.Parallelism)

	for i, e := range m.Experiments {
		i, e := i, e

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			klog.V(1).Infof("analyzing %q (%s)", e.Label, e.Trace)

			o, err := Analyze(e, opts)
			if err != nil {
				return fmt.Errorf("experiment %q: %w", e.Label, err)
			}

			outcomes[i] = o

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return outcomes, nil
}
