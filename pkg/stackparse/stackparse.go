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

// Package stackparse turns perf script dumps into sampled events for analysis
package stackparse

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// maxLineSize bounds a single trace line. Demangled C++ template frames get long.
const maxLineSize = 16 * 1024 * 1024

// Event represents a single sampled call stack on one thread.
type Event struct {
	Command  string
	ThreadID int
	Time     float64
	// Frames are ordered innermost first.
	Frames []Frame
}

// Sequence is an ordered list of events, in trace order.
type Sequence []*Event

// MalformedHeaderError is returned when an event header line cannot be parsed.
type MalformedHeaderError struct {
	Line   int
	Header string
	Err    error
}

func (e *MalformedHeaderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: malformed event header %q: %v", e.Line, e.Header, e.Err)
	}

	return fmt.Sprintf("line %d: malformed event header %q", e.Line, e.Header)
}

func (e *MalformedHeaderError) Unwrap() error { return e.Err }

// ParseHeader extracts the command, thread id and timestamp from an event header line:
//
//	demo_sift1M_rea  3100   945.398942:          1 cycles:
func ParseHeader(line string) (command string, tid int, ts float64, err error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return "", 0, 0, fmt.Errorf("want at least 3 fields, got %d", len(fields))
	}

	tid, err = strconv.Atoi(fields[1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("thread id: %w", err)
	}

	ts, err = strconv.ParseFloat(strings.TrimSuffix(fields[2], ":"), 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("timestamp: %w", err)
	}

	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		return "", 0, 0, fmt.Errorf("timestamp %q is not finite", fields[2])
	}

	return fields[0], tid, ts, nil
}

// Scan parses a perf script dump, calling fn for every event as soon as it is complete.
// Scanning stops at the first error returned by fn or by the parser.
func Scan(r io.Reader, fn func(*Event) error) error {
	var cur *Event
	lineNo := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == "" {
			if cur != nil {
				if err := fn(cur); err != nil {
					return err
				}
				cur = nil
			}

			continue
		}

		if cur == nil {
			if strings.HasPrefix(line, "#") {
				continue
			}

			cmd, tid, ts, err := ParseHeader(line)
			if err != nil {
				return &MalformedHeaderError{Line: lineNo, Header: line, Err: err}
			}

			cur = &Event{Command: cmd, ThreadID: tid, Time: ts}

			continue
		}

		cur.Frames = append(cur.Frames, ParseFrame(line))
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("line %d: %w", lineNo, err)
	}

	// Tolerate a missing trailing blank line
	if cur != nil {
		return fn(cur)
	}

	return nil
}

// Read parses a whole perf script dump into memory.
func Read(r io.Reader) (Sequence, error) {
	events := Sequence{}

	err := Scan(r, func(e *Event) error {
		events = append(events, e)
		return nil
	})
	if err != nil {
		return events, err
	}

	return events, nil
}

// ThreadIDs returns the distinct thread ids of a sequence, in order of first appearance.
func (s Sequence) ThreadIDs() []int {
	seen := map[int]bool{}
	ids := []int{}

	for _, e := range s {
		if !seen[e.ThreadID] {
			seen[e.ThreadID] = true
			ids = append(ids, e.ThreadID)
		}
	}

	return ids
}

// Clone returns a copy of the event that shares nothing with the original.
func (e *Event) Clone() *Event {
	c := *e
	c.Frames = append([]Frame(nil), e.Frames...)

	return &c
}
