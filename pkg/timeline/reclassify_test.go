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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/google/stageprof/pkg/stackparse"
)

const (
	sgemm   = "sgemm_kernel_direct (libopenblas.so)"
	knn     = "faiss::knn_L2sqr(float const*) (libfaiss.so)"
	norms   = "faiss::fvec_norms_L2sqr(float*) (libfaiss.so)"
	search  = "faiss::IndexIVF::search (libfaiss.so)"
	qsgemm  = "faiss::stage_1_2_sgemm_kernel_direct (libopenblas.so)"
	q4sgemm = "faiss::stage_4_sgemm_kernel_direct (libopenblas.so)"
)

func names(seq stackparse.Sequence) [][]string {
	var out [][]string
	for _, e := range seq {
		var ns []string
		for _, f := range e.Frames {
			ns = append(ns, f.Name)
		}
		out = append(out, ns)
	}

	return out
}

func TestReclassify(t *testing.T) {
	seq := stackparse.Sequence{
		ev(1, 0.0, sgemm, search),
		ev(1, 0.1, knn, search),
		ev(1, 0.2, sgemm, search),
		ev(1, 0.3, norms, search),
		ev(1, 0.4, sgemm, search),
	}

	got := Reclassify(seq, marker)

	require.Equal(t, [][]string{
		{sgemm, search},
		{knn, search},
		{qsgemm, search},
		{norms, search},
		{q4sgemm, search},
	}, names(got))
}

func TestReclassifyHintsArePerThread(t *testing.T) {
	seq := stackparse.Sequence{
		ev(1, 0.0, knn),
		ev(2, 0.1, norms),
		ev(3, 0.2, sgemm),
		ev(2, 0.3, sgemm),
		ev(1, 0.4, sgemm),
	}

	got := names(Reclassify(seq, marker))
	require.Equal(t, []string{sgemm}, got[2])
	require.Equal(t, []string{q4sgemm}, got[3])
	require.Equal(t, []string{qsgemm}, got[4])
}

func TestReclassifyFollowsThreadTime(t *testing.T) {
	// The hint at 0.1 precedes the sgemm at 0.2 even though it is listed later.
	seq := stackparse.Sequence{
		ev(1, 0.2, sgemm),
		ev(1, 0.1, knn),
	}

	require.Equal(t, []string{qsgemm}, names(Reclassify(seq, marker))[0])
}

func TestReclassifyHintFrameStopsScan(t *testing.T) {
	// Frames outside the hint frame are not rewritten.
	seq := stackparse.Sequence{
		ev(1, 0.0, knn),
		ev(1, 0.1, knn, sgemm),
	}

	require.Equal(t, []string{knn, sgemm}, names(Reclassify(seq, marker))[1])
}

func TestReclassifyLeavesInputUntouched(t *testing.T) {
	seq := stackparse.Sequence{
		ev(1, 0.0, knn),
		ev(1, 0.1, sgemm),
	}

	got := Reclassify(seq, marker)
	require.Equal(t, qsgemm, got[1].Frames[0].Name)
	require.Equal(t, sgemm, seq[1].Frames[0].Name)
	require.Same(t, seq[0], got[0])
}

func TestReclassifyIsIdempotent(t *testing.T) {
	seq := stackparse.Sequence{
		ev(1, 0.0, knn),
		ev(1, 0.1, sgemm),
		ev(1, 0.2, norms),
		ev(1, 0.3, sgemm),
	}

	once := Reclassify(seq, marker)
	twice := Reclassify(once, marker)
	require.Equal(t, names(once), names(twice))
}
