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

// stageprof breaks down where search time goes in a perf script trace.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"github.com/pkg/profile"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/google/stageprof/pkg/driverlog"
	"github.com/google/stageprof/pkg/experiment"
	"github.com/google/stageprof/pkg/pprof"
	"github.com/google/stageprof/pkg/stackparse"
	"github.com/google/stageprof/pkg/stages"
	"github.com/google/stageprof/pkg/text"
	"github.com/google/stageprof/pkg/timeline"
	"github.com/google/stageprof/pkg/web"
)

var (
	start        = pflag.Float64("start", 0, "seconds after the first sample at which the search starts")
	end          = pflag.Float64("end", math.MaxFloat64, "seconds after the first sample at which the search ends")
	driverLog    = pflag.String("driver-log", "", "benchmark driver log to read the search window from (overrides --start/--end)")
	section      = pflag.String("section", "", "run of the driver log to use, e.g. topK=10")
	marker       = pflag.String("marker", stackparse.DefaultMarker, "namespace marker of the library under study")
	granularity  = pflag.String("granularity", "merged", "stage granularity: merged (stages 1~4 together) or fine")
	trackOther   = pflag.Bool("track-other", false, "credit intervals that start outside the library to the other bucket")
	discard      = pflag.Bool("discard-unclassified", false, "drop unclassified and other time from the totals")
	label        = pflag.String("label", "", "experiment label used in reports (default: trace file name)")
	functions    = pflag.Bool("functions", false, "also list every function with its stage and self time")
	htmlPath     = pflag.String("html", "", "Path to output HTML content to")
	httpEndpoint = pflag.String("http", "", "HTTP endpoint to listen at")
	openBrowser  = pflag.Bool("open", false, "open the HTML output in a browser")
	pprofPath    = pflag.String("pprof", "", "Path to output pprof content to")
	cpuProfile   = pflag.String("cpuprofile", "", "directory to write a CPU profile of stageprof itself to")
)

func main() {
	klog.InitFlags(nil)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	defer klog.Flush()

	if len(pflag.Args()) != 1 {
		fmt.Fprintln(os.Stderr, "usage: stageprof [flags] <perf script output>")
		os.Exit(64) // EX_USAGE
	}

	if *cpuProfile != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*cpuProfile), profile.Quiet).Stop()
	}

	g, err := stages.ParseGranularity(*granularity)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(64)
	}

	opts := timeline.Options{
		Marker:              *marker,
		Granularity:         g,
		TrackNonDomain:      *trackOther,
		DiscardUnclassified: *discard,
	}

	path := pflag.Args()[0]
	o := &experiment.Outcome{
		Experiment: experiment.Experiment{Label: *label, Trace: path},
	}

	if o.Label == "" {
		o.Label = filepath.Base(path)
	}

	explicit := pflag.CommandLine.Changed("start") || pflag.CommandLine.Changed("end")
	o.Windowed, o.Start, o.End, err = searchWindow(*driverLog, *section, explicit, *start, *end)
	if err != nil {
		klog.Exitf("driver log: %v", err)
	}

	events, err := stackparse.Load(path)
	if err != nil {
		klog.Exitf("load: %v", err)
	}

	if o.Windowed {
		events, err = timeline.FilterWindow(events, o.Start, o.End)
		if err != nil {
			klog.Exitf("filter: %v", err)
		}
	}

	o.Result, err = timeline.Classify(events, opts)
	if err != nil {
		klog.Exitf("classify: %v", err)
	}

	o.Shares, err = timeline.ToPercentages(o.Result.Totals)
	if err != nil {
		klog.Exitf("percentages: %v", err)
	}

	if *pprofPath != "" {
		bs, err := pprof.Render(events, opts)
		if err != nil {
			klog.Fatalf("render: %v", err)
		}

		if err := os.WriteFile(*pprofPath, bs, 0o644); err != nil {
			klog.Fatalf("write: %v", err)
		}

		return
	}

	if *httpEndpoint != "" {
		if *openBrowser {
			go func() {
				if err := browser.OpenURL(web.URL(*httpEndpoint)); err != nil {
					klog.Errorf("open browser: %v", err)
				}
			}()
		}

		if err := web.Serve(*httpEndpoint, []*experiment.Outcome{o}); err != nil {
			klog.Fatalf("serve: %v", err)
		}

		return
	}

	if *htmlPath != "" {
		writeHTML(*htmlPath, []*experiment.Outcome{o})
		return
	}

	fmt.Print(text.Stages(o.Result, o.Shares))

	if *functions {
		fmt.Println()
		fmt.Print(text.Functions(o.Result))
	}
}

// searchWindow picks the analysis window: the driver log wins over explicit bounds,
// and without either the whole trace is analyzed.
func searchWindow(logPath, section string, explicit bool, start, end float64) (bool, float64, float64, error) {
	switch {
	case logPath != "":
		s, e, err := driverlog.Window(logPath, section)
		if err != nil {
			return false, 0, 0, err
		}

		klog.Infof("search window from %s: [%.3f s, %.3f s)", logPath, s, e)

		return true, s, e, nil
	case explicit:
		return true, start, end, nil
	default:
		return false, 0, 0, nil
	}
}

func writeHTML(path string, outcomes []*experiment.Outcome) {
	w, err := os.Create(path)
	if err != nil {
		klog.Exitf("open failed: %v", err)
	}

	if err := web.Render(w, outcomes); err != nil {
		w.Close()
		klog.Fatalf("render: %v", err)
	}

	if err := w.Close(); err != nil {
		klog.Fatalf("close: %v", err)
	}

	if *openBrowser {
		if err := browser.OpenFile(path); err != nil {
			klog.Errorf("open browser: %v", err)
		}
	}
}
