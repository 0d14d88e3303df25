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

// Package stages maps function names to stages of the IVF-PQ search pipeline.
//
// The pipeline stages are:
//
//	Stage 1: OPQ
//	Stage 2: vector quantizer
//	Stage 3: select centroids
//	Stage 4: construct distance LUT
//	Stage 5: PQ code scan
//	Stage 6: collect topK results
package stages

import (
	"fmt"
	"strings"
)

// Label names a bucket of self time.
type Label string

const (
	Stage1To4 Label = "stage 1~4"
	Stage1To2 Label = "stage 1~2"
	Stage3    Label = "stage 3"
	Stage4    Label = "stage 4"
	Stage5    Label = "stage 5"
	Stage6    Label = "stage 6"
	// Unclassified holds domain functions no rule recognizes.
	Unclassified Label = "unclassified"
	Other        Label = "other"
)

// OtherFunction is the reserved function key for time spent outside the domain namespace.
const OtherFunction = "other"

// Qualified names given to shared kernels once their calling stage is known.
const (
	Stage12Kernel = "stage_1_2_sgemm"
	Stage4Kernel  = "stage_4_sgemm"
)

var descriptions = map[Label]string{
	Stage1To4:    "OPQ + vector quantizer + select centroids + construct distance LUT",
	Stage1To2:    "OPQ + vector quantizer",
	Stage3:       "select centroids",
	Stage4:       "construct distance LUT",
	Stage5:       "scan PQ codes",
	Stage6:       "collect topK results",
	Unclassified: "unrecognized domain functions",
	Other:        "other",
}

// Describe returns a human readable description of a label.
func (l Label) Describe() string {
	if d, ok := descriptions[l]; ok {
		return d
	}

	return string(l)
}

// Granularity selects how finely stages 1 to 4 are split.
type Granularity int

const (
	// Merged reports stages 1~4 as one bucket.
	Merged Granularity = iota
	// Fine reports stages 1~2, 3 and 4 separately.
	Fine
)

func (g Granularity) String() string {
	switch g {
	case Merged:
		return "merged"
	case Fine:
		return "fine"
	default:
		return fmt.Sprintf("Granularity(%d)", int(g))
	}
}

// ParseGranularity parses "merged" or "fine".
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "merged":
		return Merged, nil
	case "fine":
		return Fine, nil
	default:
		return Merged, fmt.Errorf("unknown granularity %q (want merged or fine)", s)
	}
}

// Labels returns the buckets of a granularity, in report order.
func (g Granularity) Labels() []Label {
	if g == Fine {
		return []Label{Stage1To2, Stage3, Stage4, Stage5, Stage6, Unclassified, Other}
	}

	return []Label{Stage1To4, Stage5, Stage6, Unclassified, Other}
}
