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

// Package text is for rendering stage breakdowns into text form
package text

import (
	"fmt"
	"strings"

	"github.com/google/stageprof/pkg/experiment"
	"github.com/google/stageprof/pkg/timeline"
)

// Stages outputs a human-readable table of time consumption per stage.
func Stages(res *timeline.Result, shares timeline.Percentages) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%d events on %d threads, %.4f sec attributed\n", res.Events, res.Threads, res.Totals.Sum()))
	sb.WriteString("\nTime consumption per stage:\n")

	for _, st := range res.Totals {
		sb.WriteString(fmt.Sprintf("  %-13s %10.4f sec %7.2f%%  %s\n", st.Stage, st.Seconds, shares.Get(st.Stage), st.Stage.Describe()))
	}

	if len(res.Unclassified) > 0 {
		sb.WriteString(fmt.Sprintf("\nWarning: %d domain functions matched no stage:\n", len(res.Unclassified)))
		for _, name := range res.Unclassified {
			sb.WriteString(fmt.Sprintf("  %s\n", name))
		}
	}

	if len(res.Violations) > 0 {
		sb.WriteString(fmt.Sprintf("\nWarning: %d intervals discarded due to out-of-order samples\n", len(res.Violations)))
	}

	return sb.String()
}

// Functions outputs every function with its stage and self time, largest first.
func Functions(res *timeline.Result) string {
	var sb strings.Builder

	sb.WriteString("All threads time consumption:\n")

	for _, f := range res.Functions {
		sb.WriteString(fmt.Sprintf("  %-13s %10.6f sec  %s\n", f.Stage, f.Seconds, f.Name))
	}

	return sb.String()
}

// Experiments outputs one row of stage percentages per experiment.
func Experiments(outcomes []*experiment.Outcome) string {
	var sb strings.Builder

	if len(outcomes) == 0 {
		return "no experiments\n"
	}

	labelWidth := len("experiment")
	for _, o := range outcomes {
		if n := len(oneLine(o.Label)); n > labelWidth {
			labelWidth = n
		}
	}

	sb.WriteString(fmt.Sprintf("%-*s", labelWidth, "experiment"))
	for _, s := range outcomes[0].Shares {
		sb.WriteString(fmt.Sprintf(" %13s", s.Stage))
	}
	sb.WriteString("\n")

	for _, o := range outcomes {
		sb.WriteString(fmt.Sprintf("%-*s", labelWidth, oneLine(o.Label)))
		for _, s := range o.Shares {
			sb.WriteString(fmt.Sprintf(" %12.2f%%", s.Percent))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
