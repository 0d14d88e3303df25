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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/google/stageprof/pkg/stages"
	"github.com/google/stageprof/pkg/timeline"
)

// writeTrace writes a single-thread perf script trace that alternates between
// IndexIVF::search and scan_codes every 10ms, starting at t0.
func writeTrace(t *testing.T, dir, name string, t0 float64, samples int) string {
	t.Helper()

	var sb strings.Builder
	for i := 0; i < samples; i++ {
		fn := "faiss::IndexIVF::search(long, float const*) const"
		if i%2 == 1 {
			fn = "faiss::IVFPQScanner::scan_codes"
		}

		fmt.Fprintf(&sb, "demo_sift1M  4242  %.6f:          1 cycles:\n", t0+float64(i)*0.01)
		fmt.Fprintf(&sb, "\t          263e0 %s (/data/demo)\n", fn)
		fmt.Fprintf(&sb, "\t          1074e1 __clone (/lib/libc.so)\n\n")
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))

	return path
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	trace := writeTrace(t, dir, "perf.out", 1000, 11)

	o, err := Analyze(Experiment{Label: "whole", Trace: trace}, timeline.Options{})
	require.NoError(t, err)
	require.False(t, o.Windowed)
	require.Equal(t, 11, o.Result.Events)
	require.InDelta(t, 0.05, o.Result.Totals.Get(stages.Stage1To4), 1e-6)
	require.InDelta(t, 0.05, o.Result.Totals.Get(stages.Stage5), 1e-6)
	require.InDelta(t, 50, o.Shares.Get(stages.Stage5), 1e-3)

	o, err = Analyze(Experiment{Label: "window", Trace: trace, Window: &Window{Start: 0.005, End: 0.035}}, timeline.Options{})
	require.NoError(t, err)
	require.True(t, o.Windowed)
	// Samples at 0.01, 0.02 and 0.03 survive: scan, search, scan.
	require.Equal(t, 3, o.Result.Events)
	require.InDelta(t, 0.01, o.Result.Totals.Get(stages.Stage1To4), 1e-6)
	require.InDelta(t, 0.01, o.Result.Totals.Get(stages.Stage5), 1e-6)
}

func TestAnalyzeDriverLog(t *testing.T) {
	dir := t.TempDir()
	trace := writeTrace(t, dir, "perf.out", 1000, 11)
	log := filepath.Join(dir, "driver.log")
	require.NoError(t, os.WriteFile(log, []byte(
		"==== topK=10 ====\n"+
			"[0.015 s] Perform a search on 10000 queries\n"+
			"[0.055 s] Compute recalls\n"), 0o644))

	o, err := Analyze(Experiment{Label: "log", Trace: trace, DriverLog: log, Section: "topK=10"}, timeline.Options{})
	require.NoError(t, err)
	require.True(t, o.Windowed)
	require.InDelta(t, 0.015, o.Start, 1e-9)
	require.InDelta(t, 0.055, o.End, 1e-9)
	require.Equal(t, 4, o.Result.Events)

	_, err = Analyze(Experiment{Label: "log", Trace: trace, DriverLog: log, Section: "topK=1"}, timeline.Options{})
	require.Error(t, err)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	writeTrace(t, dir, "a.out", 10, 5)
	writeTrace(t, dir, "b.out", 20, 9)
	writeTrace(t, dir, "c.out", 30, 3)

	m, err := Decode(strings.NewReader(`
parallelism: 2
experiments:
  - {label: a, trace: a.out}
  - {label: b, trace: b.out}
  - {label: c, trace: c.out}
`), dir)
	require.NoError(t, err)

	outcomes, err := Run(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	for i, want := range []struct {
		label  string
		events int
	}{{"a", 5}, {"b", 9}, {"c", 3}} {
		require.Equal(t, want.label, outcomes[i].Label)
		require.Equal(t, want.events, outcomes[i].Result.Events)
	}
}

func TestRunFails(t *testing.T) {
	dir := t.TempDir()
	writeTrace(t, dir, "a.out", 10, 5)

	m, err := Decode(strings.NewReader(`
experiments:
  - {label: a, trace: a.out}
  - {label: missing, trace: missing.out}
`), dir)
	require.NoError(t, err)

	_, err = Run(context.Background(), m)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Contains(t, err.Error(), `experiment "missing"`)
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	writeTrace(t, dir, "a.out", 10, 5)

	m, err := Decode(strings.NewReader("experiments: [{label: a, trace: a.out}]\n"), dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Run(ctx, m)
	require.ErrorIs(t, err, context.Canceled)
}
