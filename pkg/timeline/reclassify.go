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
	"sort"
	"strings"

	"k8s.io/klog/v2"

	"github.com/google/stageprof/pkg/stackparse"
	"github.com/google/stageprof/pkg/stages"
)

// ambiguousKernel is the BLAS symbol shared by the quantizer and the distance table code.
const ambiguousKernel = "sgemm"

// Reclassify returns a copy of seq in which un-namespaced sgemm frames are renamed
// after the stage that last called into them on the same thread:
//
//	...knn_L2sqr...    then sgemm -> <marker>stage_1_2_sgemm
//	...fvec_norm_L2sqr then sgemm -> <marker>stage_4_sgemm
//
// sgemm frames seen before any hint keep their name. The input is not modified.
func Reclassify(seq stackparse.Sequence, marker string) stackparse.Sequence {
	out := make(stackparse.Sequence, len(seq))
	copy(out, seq)

	// Hints must advance in per-thread time order.
	order := make([]int, len(seq))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := seq[order[a]], seq[order[b]]
		if ea.ThreadID != eb.ThreadID {
			return ea.ThreadID < eb.ThreadID
		}
		return ea.Time < eb.Time
	})

	hints := map[int]string{}
	rewritten := 0

	for _, i := range order {
		e := seq[i]
		var c *stackparse.Event

		for fi, f := range e.Frames {
			if strings.Contains(f.Name, "::knn_L2sqr") {
				hints[e.ThreadID] = stages.Stage12Kernel
				break
			}

			if strings.Contains(f.Name, "::fvec_norm_L2sqr") || strings.Contains(f.Name, "fvec_norms_L2sqr") {
				hints[e.ThreadID] = stages.Stage4Kernel
				break
			}

			if !strings.Contains(f.Name, ambiguousKernel) || qualified(f.Name) {
				continue
			}

			hint, ok := hints[e.ThreadID]
			if !ok {
				continue
			}

			if c == nil {
				c = e.Clone()
				out[i] = c
			}

			c.Frames[fi].Name = strings.Replace(f.Name, ambiguousKernel, marker+hint, 1)
			rewritten++
		}
	}

	klog.V(1).Infof("reclassified %d %s frames", rewritten, ambiguousKernel)

	return out
}

func qualified(name string) bool {
	return strings.Contains(name, stages.Stage12Kernel) || strings.Contains(name, stages.Stage4Kernel)
}
