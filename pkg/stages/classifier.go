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

package stages

import (
	"strings"
)

// Rule assigns a stage to every function name it matches.
type Rule struct {
	Name  string
	Match func(name string) bool
	Stage Label
}

// Classifier evaluates an ordered rule table, first match wins.
type Classifier struct {
	granularity Granularity
	marker      string
	rules       []Rule
}

// New returns a classifier for the given granularity and domain namespace marker.
func New(g Granularity, marker string) *Classifier {
	early := func(fine Label) Label {
		if g == Fine {
			return fine
		}
		return Stage1To4
	}

	return &Classifier{
		granularity: g,
		marker:      marker,
		rules: []Rule{
			{
				Name:  "non-domain time",
				Match: func(n string) bool { return n == OtherFunction },
				Stage: Other,
			},
			{
				Name: "quantizer and top level search",
				Match: anyOf(
					contains("::knn_L2sqr"),
					contains("::"+Stage12Kernel),
					allOf(contains("::search"), not(contains("::search_preassigned"))),
				),
				Stage: early(Stage1To2),
			},
			{
				Name: "preassigned list search",
				Match: anyOf(
					contains("::search_preassigned"),
					contains("::add_results"),
					contains("::operator()"),
				),
				Stage: early(Stage3),
			},
			{
				Name: "distance table construction",
				Match: anyOf(
					contains("::fvec_madd"),
					contains("::fvec_inner_product_ref"),
					contains("::ArrayInvertedLists::list_size"),
					contains("::fvec_inner_products_ny_ref"),
					contains("::fvec_norm_L2sqr"),
					contains("::fvec_norms_L2sqr"),
					contains("::precompute_list_tables"),
					contains("::"+Stage4Kernel),
					contains("compute_distance_table"),
				),
				Stage: early(Stage4),
			},
			{
				// Part of stages 1~4, but which one is not recoverable from the name.
				Name: "generic distance kernels",
				Match: anyOf(
					contains("sgemm"),
					contains("inner_prod"),
					contains("L2sqr"),
					contains("compute_residual"),
				),
				Stage: early(Stage4),
			},
			{
				Name: "code scan",
				Match: anyOf(
					contains("::scan_codes"),
					contains("::get_codes"),
					contains("::set_list"),
				),
				Stage: Stage5,
			},
			{
				Name: "result collection",
				Match: anyOf(
					allOf(contains("::add"), not(contains("::add_results"))),
					contains("Heap"),
				),
				Stage: Stage6,
			},
			{
				Name:  "unrecognized domain function",
				Match: func(n string) bool { return marker != "" && strings.Contains(n, marker) },
				Stage: Unclassified,
			},
		},
	}
}

// Classify returns the stage of a resolved function name.
func (c *Classifier) Classify(name string) Label {
	for _, r := range c.rules {
		if r.Match(name) {
			return r.Stage
		}
	}

	return Other
}

// Rules returns the rule table in evaluation order.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Stages returns the labels this classifier can produce, in report order.
func (c *Classifier) Stages() []Label {
	return c.granularity.Labels()
}

// Granularity returns the configured granularity.
func (c *Classifier) Granularity() Granularity {
	return c.granularity
}

func contains(sub string) func(string) bool {
	return func(n string) bool { return strings.Contains(n, sub) }
}

func not(f func(string) bool) func(string) bool {
	return func(n string) bool { return !f(n) }
}

func anyOf(fs ...func(string) bool) func(string) bool {
	return func(n string) bool {
		for _, f := range fs {
			if f(n) {
				return true
			}
		}
		return false
	}
}

func allOf(fs ...func(string) bool) func(string) bool {
	return func(n string) bool {
		for _, f := range fs {
			if !f(n) {
				return false
			}
		}
		return true
	}
}
