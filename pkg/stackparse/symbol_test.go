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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		line   string
		want   Frame
		domain bool
		pc     uint64
	}{
		{
			line: "\t    7fff81068a3a native_write_msr_safe ([kernel.kallsyms])",
			want: Frame{Address: "7fff81068a3a", Name: "native_write_msr_safe ([kernel.kallsyms])"},
			pc:   0x7fff81068a3a,
		},
		{
			line:   "\t          263e0 faiss::(anonymous namespace)::IVFPQScanner<(faiss::MetricType)1, faiss::CMax<float, long>, faiss::PQDecoder8>::set_list (/data/build/demos/demo_sift1M_read_index)",
			want:   Frame{Address: "263e0", Name: "faiss::(anonymous namespace)::IVFPQScanner<(faiss::MetricType)1, faiss::CMax<float, long>, faiss::PQDecoder8>::set_list (/data/build/demos/demo_sift1M_read_index)"},
			domain: true,
			pc:     0x263e0,
		},
		{
			line: "\t               0 [unknown] ([unknown])",
			want: Frame{Address: "0", Name: "[unknown] ([unknown])"},
		},
		{
			line: "\t    7f2a78c1c7f7",
			want: Frame{Address: "7f2a78c1c7f7"},
			pc:   0x7f2a78c1c7f7,
		},
		{
			line: "   ",
			want: Frame{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.want.Address, func(t *testing.T) {
			f := ParseFrame(tc.line)
			require.Equal(t, tc.want, f)
			require.Equal(t, tc.domain, f.IsDomain(DefaultMarker))
			require.Equal(t, tc.pc, f.PC())
		})
	}
}

func TestIsDomain(t *testing.T) {
	require.True(t, IsDomain("faiss::fvec_madd (libfaiss.so)", "faiss::"))
	require.False(t, IsDomain("sgemm_kernel (libopenblas.so)", "faiss::"))
	require.False(t, IsDomain("", "faiss::"))
	require.False(t, IsDomain("faiss::search", ""))
}
