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

package web

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/google/stageprof/pkg/experiment"
	"github.com/google/stageprof/pkg/stages"
	"github.com/google/stageprof/pkg/timeline"
)

func outcome(label string, scan float64) *experiment.Outcome {
	res := &timeline.Result{
		Totals: timeline.StageTotals{
			{Stage: stages.Stage1To4, Seconds: 1 - scan},
			{Stage: stages.Stage5, Seconds: scan},
		},
		Functions: []timeline.FunctionTime{
			{Name: "faiss::IVFPQScanner<faiss::PQDecoder8>::scan_codes", Stage: stages.Stage5, Seconds: scan},
		},
		Threads: 1,
		Events:  10,
	}

	p, err := timeline.ToPercentages(res.Totals)
	if err != nil {
		panic(err)
	}

	return &experiment.Outcome{
		Experiment: experiment.Experiment{Label: label},
		Windowed:   true,
		Start:      1,
		End:        2,
		Result:     res,
		Shares:     p,
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, []*experiment.Outcome{outcome("ivf4096", 0.25), outcome("o'brien", 0.5)}))

	got := buf.String()
	require.Contains(t, got, "Time consumption per stage (2 experiments)")
	require.Contains(t, got, "'ivf4096', 75.0000, 25.0000, ")
	require.Contains(t, got, `'o\'brien', 50.0000, 50.0000, `)
	require.Contains(t, got, "'OPQ + vector quantizer + select centroids + construct distance LUT'")
	require.Contains(t, got, "'#4682b4', '#ff8c00', ")
	require.Contains(t, got, "scan_codes")
	require.Contains(t, got, "IVFPQScanner&lt;faiss::PQDecoder8&gt;")
	require.Contains(t, got, "window [1 s, 2 s)")
	require.Contains(t, got, "width: 640px")
}

func TestRenderNothing(t *testing.T) {
	require.Error(t, Render(io.Discard, nil))
}

func TestStageColor(t *testing.T) {
	require.Equal(t, "#4682b4", stageColor(stages.Stage1To4))
	require.Equal(t, "#a9a9a9", stageColor(stages.Other))

	// Unknown labels get a stable color from the same first letter.
	c := stageColor("zebra")
	require.Equal(t, c, stageColor("zebra"))
	require.True(t, strings.HasPrefix(c, "#"))
	require.Equal(t, "#808080", stageColor(""))
}

func TestTop(t *testing.T) {
	fs := make([]timeline.FunctionTime, topFunctions+5)
	require.Len(t, top(fs), topFunctions)
	require.Len(t, top(fs[:3]), 3)
}

func TestHandler(t *testing.T) {
	srv := httptest.NewServer(Handler([]*experiment.Outcome{outcome("nprobe=16", 0.25)}))
	defer srv.Close()

	for path, want := range map[string]string{
		"/":     "google.visualization.ColumnChart",
		"/text": "nprobe=16",
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, string(body), want)
	}
}

func TestURL(t *testing.T) {
	require.Equal(t, "http://localhost:8000/", URL(":8000"))
	require.Equal(t, "http://127.0.0.1:8000/", URL("127.0.0.1:8000"))
}
