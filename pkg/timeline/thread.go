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

package timeline

import (
	"github.com/google/stageprof/pkg/stackparse"
	"github.com/google/stageprof/pkg/stages"
)

// Interval is the time between two consecutive samples on a thread, credited to the earlier one.
type Interval struct {
	ThreadID int
	// From is the earlier sample, Function its active function.
	From     *stackparse.Event
	Function string
	Seconds  float64
}

// Thread estimates per-function self time from the samples of one thread.
type Thread struct {
	ID int

	marker         string
	trackNonDomain bool

	started  bool
	last     *stackparse.Event
	lastFunc string
	lastTime float64

	times map[string]float64
}

// NewThread returns an empty timeline for thread id. Without trackNonDomain, intervals
// that start in a non-domain sample are discarded.
func NewThread(id int, marker string, trackNonDomain bool) *Thread {
	return &Thread{
		ID:             id,
		marker:         marker,
		trackNonDomain: trackNonDomain,
		times:          map[string]float64{},
	}
}

// ActiveFunction returns the innermost domain frame of an event, or stages.OtherFunction.
func ActiveFunction(e *stackparse.Event, marker string) string {
	for _, f := range e.Frames {
		if f.IsDomain(marker) {
			return f.Name
		}
	}

	return stages.OtherFunction
}

// Push advances the timeline by one sample and returns the interval it closed.
// The first sample only sets state. A sample earlier than its predecessor yields
// an *OrderingViolation and its interval is dropped.
func (t *Thread) Push(e *stackparse.Event) (Interval, error) {
	iv := Interval{ThreadID: t.ID}
	fn := ActiveFunction(e, t.marker)

	if !t.started {
		t.advance(e, fn, e.Time)
		return iv, nil
	}

	dt := e.Time - t.lastTime
	if dt < 0 {
		err := &OrderingViolation{ThreadID: t.ID, Previous: t.lastTime, Current: e.Time}
		t.advance(e, fn, t.lastTime)

		return iv, err
	}

	if t.trackNonDomain || t.lastFunc != stages.OtherFunction {
		t.times[t.lastFunc] += dt
		iv.From = t.last
		iv.Function = t.lastFunc
		iv.Seconds = dt
	}

	t.advance(e, fn, e.Time)

	return iv, nil
}

func (t *Thread) advance(e *stackparse.Event, fn string, ts float64) {
	t.started = true
	t.last = e
	t.lastFunc = fn
	t.lastTime = ts
}

// Times returns the accumulated seconds per function.
func (t *Thread) Times() map[string]float64 {
	return t.times
}
