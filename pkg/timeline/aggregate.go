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

// Package timeline attributes sampled time to functions and pipeline stages.
package timeline

import (
	"errors"
	"math"
	"sort"

	"k8s.io/klog/v2"

	"github.com/google/stageprof/pkg/stackparse"
	"github.com/google/stageprof/pkg/stages"
)

// Options configures a classification run.
type Options struct {
	// Marker is the domain namespace marker, stackparse.DefaultMarker if empty.
	Marker      string
	Granularity stages.Granularity
	// TrackNonDomain credits intervals starting in non-domain samples to the "other" function.
	TrackNonDomain bool
	// DiscardUnclassified zeroes the unclassified and other buckets after bucketing.
	DiscardUnclassified bool
}

func (o Options) marker() string {
	if o.Marker == "" {
		return stackparse.DefaultMarker
	}

	return o.Marker
}

// StageTime is the accumulated time of one stage.
type StageTime struct {
	Stage   stages.Label
	Seconds float64
}

// StageTotals holds seconds per stage, in report order.
type StageTotals []StageTime

// Get returns the seconds of a stage, 0 if absent.
func (st StageTotals) Get(l stages.Label) float64 {
	for _, s := range st {
		if s.Stage == l {
			return s.Seconds
		}
	}

	return 0
}

// Sum returns the total seconds over all stages.
func (st StageTotals) Sum() float64 {
	sum := 0.0
	for _, s := range st {
		sum += s.Seconds
	}

	return sum
}

// StageShare is the share of one stage in percent.
type StageShare struct {
	Stage   stages.Label
	Percent float64
}

// Percentages holds percent per stage, in report order.
type Percentages []StageShare

// Get returns the percentage of a stage, 0 if absent.
func (p Percentages) Get(l stages.Label) float64 {
	for _, s := range p {
		if s.Stage == l {
			return s.Percent
		}
	}

	return 0
}

// FunctionTime is the self time of one function across all threads.
type FunctionTime struct {
	Name    string
	Stage   stages.Label
	Seconds float64
}

// Result is the outcome of Classify.
type Result struct {
	Totals    StageTotals
	Functions []FunctionTime
	// Unclassified lists domain functions that no stage rule recognized.
	Unclassified []string
	Violations   []*OrderingViolation
	Threads      int
	Events       int
}

// FilterWindow keeps the events with t0+start <= timestamp < t0+end, where t0
// is the timestamp of the first event in the sequence.
func FilterWindow(seq stackparse.Sequence, start, end float64) (stackparse.Sequence, error) {
	if len(seq) == 0 {
		return nil, &EmptyWindowError{Start: start, End: end, Reason: "trace has no events"}
	}

	t0 := seq[0].Time
	lo, hi := t0+start, t0+end

	reached := false
	out := stackparse.Sequence{}

	for _, e := range seq {
		if e.Time >= lo {
			reached = true
		}

		if e.Time >= lo && e.Time < hi {
			out = append(out, e)
		}
	}

	if !reached {
		return nil, &EmptyWindowError{Start: start, End: end, Reason: "no event reaches the start of the window"}
	}

	if len(out) == 0 {
		return nil, &EmptyWindowError{Start: start, End: end, Reason: "no events inside the window"}
	}

	klog.V(1).Infof("window [%.3f, %.3f) kept %d of %d events", start, end, len(out), len(seq))

	return out, nil
}

// Walk reclassifies seq, replays it through one Thread per thread id and calls fn
// for every credited interval. Ordering violations are logged and returned.
func Walk(seq stackparse.Sequence, opts Options, fn func(Interval)) ([]*OrderingViolation, error) {
	_, violations, err := walk(Reclassify(seq, opts.marker()), opts, fn)
	return violations, err
}

func walk(seq stackparse.Sequence, opts Options, fn func(Interval)) (map[int]*Thread, []*OrderingViolation, error) {
	if len(seq) == 0 {
		return nil, nil, &EmptyWindowError{Reason: "no events to classify"}
	}

	threads := map[int]*Thread{}
	violations := []*OrderingViolation{}

	for _, e := range seq {
		t := threads[e.ThreadID]
		if t == nil {
			t = NewThread(e.ThreadID, opts.marker(), opts.TrackNonDomain)
			threads[e.ThreadID] = t
		}

		iv, err := t.Push(e)
		if err != nil {
			var v *OrderingViolation
			if !errors.As(err, &v) {
				return nil, nil, err
			}

			klog.Warningf("discarding interval: %v", v)
			violations = append(violations, v)

			continue
		}

		if fn != nil && iv.From != nil {
			fn(iv)
		}
	}

	return threads, violations, nil
}

// Classify sums self time per function over all threads and buckets it into stages.
func Classify(seq stackparse.Sequence, opts Options) (*Result, error) {
	marker := opts.marker()
	rs := Reclassify(seq, marker)

	threads, violations, err := walk(rs, opts, nil)
	if err != nil {
		return nil, err
	}

	// Every domain function seen anywhere on a stack gets a key, even without self time.
	perFunc := map[string]float64{}
	for _, e := range rs {
		for _, f := range e.Frames {
			if _, ok := perFunc[f.Name]; !ok && f.IsDomain(marker) {
				perFunc[f.Name] = 0
			}
		}
	}

	if opts.TrackNonDomain {
		perFunc[stages.OtherFunction] = 0
	}

	for _, t := range threads {
		for name, secs := range t.Times() {
			perFunc[name] += secs
		}
	}

	c := stages.New(opts.Granularity, marker)
	byStage := map[stages.Label]float64{}
	res := &Result{
		Violations: violations,
		Threads:    len(threads),
		Events:     len(seq),
	}

	for name, secs := range perFunc {
		l := c.Classify(name)
		byStage[l] += secs
		res.Functions = append(res.Functions, FunctionTime{Name: name, Stage: l, Seconds: secs})

		if l == stages.Unclassified {
			res.Unclassified = append(res.Unclassified, name)
		}
	}

	sort.Slice(res.Functions, func(i, j int) bool {
		if res.Functions[i].Seconds != res.Functions[j].Seconds {
			return res.Functions[i].Seconds > res.Functions[j].Seconds
		}
		return res.Functions[i].Name < res.Functions[j].Name
	})
	sort.Strings(res.Unclassified)

	if len(res.Unclassified) > 0 {
		klog.Warningf("%d domain functions matched no stage rule (%.6f sec)", len(res.Unclassified), byStage[stages.Unclassified])
	}

	if opts.DiscardUnclassified {
		klog.Warningf("discarding %.6f sec of unclassified and %.6f sec of other time", byStage[stages.Unclassified], byStage[stages.Other])
		byStage[stages.Unclassified] = 0
		byStage[stages.Other] = 0
	}

	for _, l := range c.Stages() {
		res.Totals = append(res.Totals, StageTime{Stage: l, Seconds: byStage[l]})
	}

	return res, nil
}

// ToPercentages converts stage totals into shares of their sum.
func ToPercentages(totals StageTotals) (Percentages, error) {
	sum := totals.Sum()
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, &NonFiniteTotalError{Sum: sum}
	}

	if sum == 0 {
		return nil, &DivideByZeroError{}
	}

	p := make(Percentages, 0, len(totals))
	for _, s := range totals {
		p = append(p, StageShare{Stage: s.Stage, Percent: s.Seconds / sum * 100})
	}

	return p, nil
}
