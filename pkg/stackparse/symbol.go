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

package stackparse

import (
	"strconv"
	"strings"
)

// DefaultMarker is the namespace marker of the library under study.
const DefaultMarker = "faiss::"

// Frame is one resolved entry of a sampled call stack.
type Frame struct {
	Address string
	// Name is the symbol followed by its module annotation, e.g. "faiss::IndexIVF::search (/usr/lib/libfaiss.so)".
	Name string
}

// ParseFrame resolves a raw stack line such as
//
//	\t    7fff81068a3a native_write_msr_safe ([kernel.kallsyms])
//
// A line holding only an address resolves to an empty name.
func ParseFrame(line string) Frame {
	line = strings.TrimLeft(line, " \t")

	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return Frame{Address: line}
	}

	return Frame{
		Address: line[:i],
		Name:    strings.TrimSpace(line[i+1:]),
	}
}

// IsDomain reports whether the frame belongs to the library under study.
func (f Frame) IsDomain(marker string) bool {
	return IsDomain(f.Name, marker)
}

// PC returns the numeric address, or 0 if the address is not hexadecimal.
func (f Frame) PC() uint64 {
	pc, err := strconv.ParseUint(strings.TrimPrefix(f.Address, "0x"), 16, 64)
	if err != nil {
		return 0
	}

	return pc
}

// IsDomain reports whether a resolved name carries the namespace marker.
func IsDomain(name string, marker string) bool {
	return name != "" && marker != "" && strings.Contains(name, marker)
}
