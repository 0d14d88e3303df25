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

// Package driverlog reads the progress log printed by the search benchmark driver:
//
//	==== topK=10 ====
//	[5.530 s] Setting parameter configuration "nprobe=64" on index
//	[5.530 s] Perform a search on 10000 queries
//	Search complete, takes [1.210 s],  QPS=8264.251
//	[6.742 s] Compute recalls
//	R@10 = 0.6021
package driverlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

const (
	searchStart = "Perform a search"
	searchEnd   = "Compute recalls"
)

var (
	// ErrNoWindow is returned when a run lacks the search start or end marks.
	ErrNoWindow = errors.New("driver log has no complete search window")
	// ErrNoSection is returned when a named run is not present in the log.
	ErrNoSection = errors.New("driver log section not found")

	bannerRe = regexp.MustCompile(`^====\s*(.*?)\s*====$`)
	markRe   = regexp.MustCompile(`^\[(\d+(?:\.\d+)?) s\]\s*(.*)$`)
	qpsRe    = regexp.MustCompile(`takes \[(\d+(?:\.\d+)?) s\],\s*QPS=(\d+(?:\.\d+)?)`)
	recallRe = regexp.MustCompile(`^R@(\d+)\s*=\s*(\d+(?:\.\d+)?)`)
)

// Mark is a timestamped progress line, offset in seconds from driver start.
type Mark struct {
	Offset  float64
	Message string
}

// Run is one invocation of the driver.
type Run struct {
	// Name is the banner text preceding the run, empty for the leading run.
	Name          string
	Marks         []Mark
	SearchSeconds float64
	QPS           float64
	Recall        map[int]float64
}

// Window returns the offsets at which the search phase starts and ends.
func (r *Run) Window() (start float64, end float64, err error) {
	si := -1

	for i, m := range r.Marks {
		if strings.HasPrefix(m.Message, searchStart) {
			si = i
			break
		}
	}

	if si < 0 {
		return 0, 0, fmt.Errorf("%q: no %q mark: %w", r.Name, searchStart, ErrNoWindow)
	}

	for _, m := range r.Marks[si+1:] {
		if strings.HasPrefix(m.Message, searchEnd) {
			return r.Marks[si].Offset, m.Offset, nil
		}
	}

	return 0, 0, fmt.Errorf("%q: no %q mark after search start: %w", r.Name, searchEnd, ErrNoWindow)
}

// Parse reads a driver log, possibly holding several runs separated by banners.
func Parse(rd io.Reader) ([]*Run, error) {
	runs := []*Run{}
	cur := &Run{Recall: map[int]float64{}}
	lineNo := 0

	flush := func() {
		if cur.Name != "" || len(cur.Marks) > 0 || cur.QPS != 0 || len(cur.Recall) > 0 {
			runs = append(runs, cur)
		}
	}

	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if m := bannerRe.FindStringSubmatch(line); m != nil {
			flush()
			cur = &Run{Name: m[1], Recall: map[int]float64{}}

			continue
		}

		if m := markRe.FindStringSubmatch(line); m != nil {
			off, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return runs, fmt.Errorf("line %d: offset: %w", lineNo, err)
			}

			cur.Marks = append(cur.Marks, Mark{Offset: off, Message: m[2]})

			continue
		}

		if m := qpsRe.FindStringSubmatch(line); m != nil {
			secs, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return runs, fmt.Errorf("line %d: search time: %w", lineNo, err)
			}

			qps, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				return runs, fmt.Errorf("line %d: qps: %w", lineNo, err)
			}

			cur.SearchSeconds, cur.QPS = secs, qps

			continue
		}

		if m := recallRe.FindStringSubmatch(line); m != nil {
			k, err := strconv.Atoi(m[1])
			if err != nil {
				return runs, fmt.Errorf("line %d: recall k: %w", lineNo, err)
			}

			v, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				return runs, fmt.Errorf("line %d: recall: %w", lineNo, err)
			}

			cur.Recall[k] = v
		}
	}

	if err := scanner.Err(); err != nil {
		return runs, err
	}

	flush()

	return runs, nil
}

// Load parses the driver log at path.
func Load(path string) ([]*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	runs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return runs, nil
}

// Find returns the run with the given banner name. An empty name selects the
// only run of a log that has exactly one.
func Find(runs []*Run, name string) (*Run, error) {
	if name == "" && len(runs) == 1 {
		return runs[0], nil
	}

	for _, r := range runs {
		if r.Name == name {
			return r, nil
		}
	}

	return nil, fmt.Errorf("%q (%d runs in log): %w", name, len(runs), ErrNoSection)
}

// Window loads path and returns the search window of the named run.
func Window(path string, section string) (start float64, end float64, err error) {
	runs, err := Load(path)
	if err != nil {
		return 0, 0, err
	}

	r, err := Find(runs, section)
	if err != nil {
		return 0, 0, err
	}

	return r.Window()
}
