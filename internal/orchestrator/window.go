/*
Copyright The AutoCrane Authors

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

package orchestrator

import (
	"github.com/timmydo/AutoCrane/pkg/autocrane/types"
	"github.com/timmydo/AutoCrane/pkg/stringset"
)

// failureWindow is the orchestrator-local, unpersisted FIFO of the last W
// iterations' failing-pod sets. Eviction fires only once the window is
// full and the intersection across every entry is non-empty.
//
// Entries are kept as stringset.Data, keyed on PodIdentifier.String(), with
// lookup recovering the PodIdentifier behind a surviving key.
type failureWindow struct {
	width   int
	entries []*stringset.Data
	lookup  map[string]types.PodIdentifier
}

// newFailureWindow builds an empty window bounded at width entries.
func newFailureWindow(width int) *failureWindow {
	return &failureWindow{width: width, lookup: make(map[string]types.PodIdentifier)}
}

// push appends this iteration's failing-pod set, dropping the oldest entry
// once the window exceeds its configured width. It never clears: a pod
// that stops failing simply falls out of the window as it slides.
func (w *failureWindow) push(failing []types.PodIdentifier) {
	keys := make([]string, 0, len(failing))
	for _, pod := range failing {
		key := pod.String()
		keys = append(keys, key)
		w.lookup[key] = pod
	}
	w.entries = append(w.entries, stringset.From(keys))
	if len(w.entries) > w.width {
		w.entries = w.entries[len(w.entries)-w.width:]
	}
}

// full reports whether the window has accumulated W entries.
func (w *failureWindow) full() bool {
	return len(w.entries) == w.width
}

// intersection returns the pods present in every entry of the window. Only
// meaningful once full() is true.
func (w *failureWindow) intersection() []types.PodIdentifier {
	if len(w.entries) == 0 {
		return nil
	}

	result := w.entries[0]
	for _, entry := range w.entries[1:] {
		result = result.Intersect(entry)
	}

	var pods []types.PodIdentifier
	for _, key := range result.ToList() {
		pods = append(pods, w.lookup[key])
	}
	return pods
}
