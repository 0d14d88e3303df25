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

import "fmt"

// EmptyWindowError is returned when a time window selects no events.
type EmptyWindowError struct {
	Start  float64
	End    float64
	Reason string
}

func (e *EmptyWindowError) Error() string {
	return fmt.Sprintf("empty window [%.6f, %.6f): %s", e.Start, e.End, e.Reason)
}

// DivideByZeroError is returned when percentages are requested for all-zero stage totals.
type DivideByZeroError struct{}

func (e *DivideByZeroError) Error() string {
	return "stage totals sum to zero, cannot compute percentages"
}

// NonFiniteTotalError is returned when percentages are requested for stage totals summing to NaN or an infinity.
type NonFiniteTotalError struct {
	Sum float64
}

func (e *NonFiniteTotalError) Error() string {
	return fmt.Sprintf("stage totals sum to %v, cannot compute percentages", e.Sum)
}

// OrderingViolation reports a sample whose timestamp precedes the previous sample on the same thread.
type OrderingViolation struct {
	ThreadID int
	Previous float64
	Current  float64
}

func (e *OrderingViolation) Error() string {
	return fmt.Sprintf("thread %d: timestamp %.6f precedes previous sample at %.6f", e.ThreadID, e.Current, e.Previous)
}
