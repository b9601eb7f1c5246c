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

// Package manifest implements the orchestrator's ManifestFetcher against a
// ConfigMap living in the operator namespace.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	k8stypes "k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	autocranetypes "github.com/timmydo/AutoCrane/pkg/autocrane/types"
)

// ConfigMapName is the name of the ConfigMap holding the global version
// manifest, in the operator namespace.
const ConfigMapName = "autocrane-manifest"

// DataKey is the key, inside the ConfigMap's Data, carrying the
// JSON-encoded manifest.
const DataKey = "manifest.json"

// wireEntry is the JSON shape of one manifest entry.
type wireEntry struct {
	Version   string `json:"version"`
	Timestamp int64  `json:"timestamp"`
}

// Fetcher fetches the manifest from a ConfigMap.
type Fetcher struct {
	Client    client.Client
	Namespace string
}

// NewFetcher builds a Fetcher reading the manifest ConfigMap out of
// namespace.
func NewFetcher(c client.Client, namespace string) *Fetcher {
	return &Fetcher{Client: c, Namespace: namespace}
}

// Fetch loads and decodes the manifest ConfigMap.
func (f *Fetcher) Fetch(ctx context.Context) (autocranetypes.DataRepositoryManifest, error) {
	var cm corev1.ConfigMap
	key := k8stypes.NamespacedName{Namespace: f.Namespace, Name: ConfigMapName}
	if err := f.Client.Get(ctx, key, &cm); err != nil {
		return nil, fmt.Errorf("fetching manifest configmap %s/%s: %w", f.Namespace, ConfigMapName, err)
	}

	raw, ok := cm.Data[DataKey]
	if !ok {
		return autocranetypes.DataRepositoryManifest{}, nil
	}

	var wire map[string][]wireEntry
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("decoding manifest configmap %s/%s: %w", f.Namespace, ConfigMapName, err)
	}

	manifest := make(autocranetypes.DataRepositoryManifest, len(wire))
	for repo, entries := range wire {
		converted := make([]autocranetypes.ManifestEntry, 0, len(entries))
		for _, e := range entries {
			converted = append(converted, autocranetypes.ManifestEntry{Version: e.Version, Timestamp: e.Timestamp})
		}
		manifest[repo] = converted
	}
	return manifest, nil
}
