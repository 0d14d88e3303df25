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

package web

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"k8s.io/klog/v2"

	"github.com/google/stageprof/pkg/experiment"
	"github.com/google/stageprof/pkg/text"
)

// Handler serves the chart at / and a plain text table at /text.
func Handler(outcomes []*experiment.Outcome) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/text", displayText(outcomes))
	mux.HandleFunc("/", displayChart(outcomes))

	return mux
}

// Serve starts up an HTTP server at a given endpoint.
func Serve(endpoint string, outcomes []*experiment.Outcome) error {
	klog.Infof("Listening at %s ...", endpoint)

	return http.ListenAndServe(endpoint, Handler(outcomes))
}

// URL turns a listen address such as ":8000" into a browsable URL.
func URL(endpoint string) string {
	if strings.HasPrefix(endpoint, ":") {
		return "http://localhost" + endpoint + "/"
	}

	return "http://" + endpoint + "/"
}

func displayChart(outcomes []*experiment.Outcome) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := Render(w, outcomes); err != nil {
			http.Error(w, fmt.Sprintf("render failed: %v", err), http.StatusInternalServerError)
		}
	}
}

func displayText(outcomes []*experiment.Outcome) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		if _, err := io.WriteString(w, text.Experiments(outcomes)); err != nil {
			klog.Errorf("write: %v", err)
		}
	}
}
