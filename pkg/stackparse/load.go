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
	"bytes"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"k8s.io/klog/v2"
)

// Load parses the perf script dump at path. The file is mapped read-only for
// the duration of the parse; the returned events do not reference the mapping.
func Load(path string) (Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	defer func() {
		if err := f.Close(); err != nil {
			klog.Errorf("close %s failed: %v", path, err)
		}
	}()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	// Zero-length files cannot be mapped
	if fi.Size() == 0 {
		klog.V(1).Infof("%s is empty", path)
		return Sequence{}, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}

	defer func() {
		if err := m.Unmap(); err != nil {
			klog.Errorf("unmap %s failed: %v", path, err)
		}
	}()

	events, err := Read(bytes.NewReader(m))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	klog.V(1).Infof("loaded %d events (%d threads) from %s", len(events), len(events.ThreadIDs()), path)

	return events, nil
}
