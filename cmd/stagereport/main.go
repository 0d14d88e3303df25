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

// stagereport compares the stage breakdown of the experiments listed in a manifest.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/browser"
	"github.com/pkg/profile"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/google/stageprof/pkg/experiment"
	"github.com/google/stageprof/pkg/text"
	"github.com/google/stageprof/pkg/web"
)

var (
	htmlPath     = pflag.String("html", "stages.html", "Path to output HTML content to")
	httpEndpoint = pflag.String("http", "", "HTTP endpoint to listen at instead of writing HTML")
	openBrowser  = pflag.Bool("open", false, "open the report in a browser")
	dumpText     = pflag.Bool("text", false, "Outputs a text table of stage percentages")
	parallel     = pflag.Int("parallel", 0, "traces to analyze at once (default: manifest parallelism)")
	cpuProfile   = pflag.String("cpuprofile", "", "directory to write a CPU profile of stagereport itself to")
)

func main() {
	klog.InitFlags(nil)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	defer klog.Flush()

	if len(pflag.Args()) != 1 {
		fmt.Fprintln(os.Stderr, "usage: stagereport [flags] <manifest.yaml>")
		os.Exit(64) // EX_USAGE
	}

	if *cpuProfile != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*cpuProfile), profile.Quiet).Stop()
	}

	m, err := loadManifest(pflag.Args()[0], *parallel)
	if err != nil {
		klog.Exitf("manifest: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	outcomes, err := experiment.Run(ctx, m)
	if err != nil {
		klog.Exitf("run: %v", err)
	}

	for _, o := range outcomes {
		if len(o.Result.Unclassified) > 0 {
			klog.Warningf("%q: %d unclassified domain functions", o.Label, len(o.Result.Unclassified))
		}
	}

	if *dumpText {
		fmt.Print(text.Experiments(outcomes))
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

		if err := web.Serve(*httpEndpoint, outcomes); err != nil {
			klog.Fatalf("serve: %v", err)
		}

		return
	}

	w, err := os.Create(*htmlPath)
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

	klog.Infof("wrote %d experiments to %s", len(outcomes), *htmlPath)

	if *openBrowser {
		if err := browser.OpenFile(*htmlPath); err != nil {
			klog.Errorf("open browser: %v", err)
		}
	}
}

// loadManifest reads the manifest at path. A positive parallel overrides its parallelism.
func loadManifest(path string, parallel int) (*experiment.Manifest, error) {
	m, err := experiment.Load(path)
	if err != nil {
		return nil, err
	}

	if parallel > 0 {
		m.Parallelism = parallel
	}

	return m, nil
}
