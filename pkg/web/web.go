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

// Package web is for generating HTML visualizations of stage breakdowns
package web

import (
	"fmt"
	"image/color"
	"io"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/image/colornames"

	"github.com/google/stageprof/pkg/experiment"
	"github.com/google/stageprof/pkg/stages"
	"github.com/google/stageprof/pkg/timeline"
)

// topFunctions is how many functions are listed per experiment.
const topFunctions = 15

var chartTemplate = `
<html>
  <head>
    <script type="text/javascript" src="https://www.gstatic.com/charts/loader.js"></script>
    <script type="text/javascript">
      google.charts.load('current', {'packages': ['corechart']});
      google.charts.setOnLoadCallback(drawChart);

      function dataTable() {
        var dataTable = new google.visualization.DataTable();
        dataTable.addColumn('string', 'Experiment');
        {{ range .Stages }}
        dataTable.addColumn('number', '{{ js .Describe }}');
        {{ end }}
        dataTable.addRows([
          {{ range .Outcomes }}
          [ '{{ js .Label }}', {{ range .Shares }}{{ .Percent | Percent }}, {{ end }} ],
          {{ end }}
        ]);
        return dataTable;
      }

      function drawChart() {
        var chart = new google.visualization.ColumnChart(document.getElementById('chart'));
        chart.draw(dataTable(), {
          isStacked: true,
          vAxis: { title: 'Time Consumption (%)', viewWindow: { min: 0, max: 100 } },
          colors: [ {{ range .Stages }}'{{ Color . }}', {{ end }} ],
          legend: { position: 'top', maxLines: 3 },
        });
      }
    </script>
  </head>
  <body>
    <h1>Time consumption per stage ({{ len .Outcomes }} experiments)</h1>
    <div id="chart" style="width: {{ Width .Outcomes }}px; height: 600px;"></div>
    {{ range .Outcomes }}
    <h2>{{ .Label | html }}</h2>
    <p>{{ .Result.Events }} events on {{ .Result.Threads }} threads{{ if .Windowed }}, window [{{ .Start }} s, {{ .End }} s){{ end }}</p>
    <table>
      <tr><th>stage</th><th>seconds</th><th>%</th></tr>
      {{ $shares := .Shares }}
      {{ range .Result.Totals }}
      <tr><td>{{ .Stage }}</td><td>{{ .Seconds | Seconds }}</td><td>{{ Share $shares .Stage }}</td></tr>
      {{ end }}
    </table>
    <table>
      <tr><th>stage</th><th>seconds</th><th>function</th></tr>
      {{ range Top .Result.Functions }}
      <tr><td>{{ .Stage }}</td><td>{{ .Seconds | Seconds }}</td><td><code>{{ .Name | html }}</code></td></tr>
      {{ end }}
    </table>
    {{ if .Result.Unclassified }}
    <p>Unclassified domain functions: {{ len .Result.Unclassified }}</p>
    {{ end }}
    {{ end }}
  </body>
</html>
`

// stageColors gives every label a stable color.
var stageColors = map[stages.Label]color.RGBA{
	stages.Stage1To4:    colornames.Steelblue,
	stages.Stage1To2:    colornames.Steelblue,
	stages.Stage3:       colornames.Lightskyblue,
	stages.Stage4:       colornames.Cadetblue,
	stages.Stage5:       colornames.Darkorange,
	stages.Stage6:       colornames.Seagreen,
	stages.Unclassified: colornames.Orchid,
	stages.Other:        colornames.Darkgray,
}

// Render renders an HTML page comparing the stage breakdown of experiments.
func Render(w io.Writer, outcomes []*experiment.Outcome) error {
	if len(outcomes) == 0 {
		return fmt.Errorf("nothing to render")
	}

	fmap := template.FuncMap{
		"Percent": percent,
		"Seconds": seconds,
		"Color":   stageColor,
		"Share":   share,
		"Top":     top,
		"Width":   width,
	}

	t, err := template.New("chart").Funcs(fmap).Parse(chartTemplate)
	if err != nil {
		return fmt.Errorf("template: %w", err)
	}

	rc := struct {
		Stages   []stages.Label
		Outcomes []*experiment.Outcome
	}{
		Stages:   stagesOf(outcomes[0]),
		Outcomes: outcomes,
	}

	err = t.ExecuteTemplate(w, "chart", rc)
	if err != nil {
		return fmt.Errorf("execute template: %w", err)
	}

	return nil
}

func stagesOf(o *experiment.Outcome) []stages.Label {
	ls := []stages.Label{}
	for _, s := range o.Shares {
		ls = append(ls, s.Stage)
	}

	return ls
}

func percent(p float64) string {
	return fmt.Sprintf("%.4f", p)
}

func seconds(s float64) string {
	return fmt.Sprintf("%.4f", s)
}

func share(p timeline.Percentages, l stages.Label) string {
	return fmt.Sprintf("%.2f", p.Get(l))
}

func top(fs []timeline.FunctionTime) []timeline.FunctionTime {
	if len(fs) > topFunctions {
		return fs[:topFunctions]
	}

	return fs
}

func width(outcomes []*experiment.Outcome) string {
	return fmt.Sprintf("%d", 400+(120*len(outcomes)))
}

func stageColor(l stages.Label) string {
	c, ok := stageColors[l]
	if !ok {
		c = fallbackColor(string(l))
	}

	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// fallbackColor picks a named color starting with the same letter as the label, if one exists.
func fallbackColor(name string) color.RGBA {
	names := make([]string, 0, len(colornames.Map))
	for n := range colornames.Map {
		if !strings.Contains(n, "white") {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	for _, n := range names {
		if name != "" && n[0] == strings.ToLower(name)[0] {
			return colornames.Map[n]
		}
	}

	return colornames.Gray
}
