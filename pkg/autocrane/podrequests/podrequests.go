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

// Package podrequests implements the orchestrator's PodDataRequestGetter:
// for a namespace, it lists every pod and reads back its data-source
// enumeration, drop folder and current per-repository requests from
// annotations.
package podrequests

import (
	"context"
	"fmt"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	autocranetypes "github.com/timmydo/AutoCrane/pkg/autocrane/types"
)

// DataSourcesAnnotation lists, comma-separated, the repositories a pod
// wants to consume. It is set by the workload, not by AutoCrane.
const DataSourcesAnnotation = "data.autocrane/data-sources"

// DropFolderAnnotation names the filesystem path the download agent writes
// blobs into for this pod. It is set by the workload, not by AutoCrane.
const DropFolderAnnotation = "data.autocrane/drop-folder"

// Getter lists pods in a namespace via a controller-runtime client.
type Getter struct {
	Client client.Client
}

// NewGetter builds a Getter backed by c.
func NewGetter(c client.Client) *Getter {
	return &Getter{Client: c}
}

// Get lists every pod in namespace and extracts its PodDataRequestInfo.
// Pods without a data-sources annotation are still returned (with an empty
// DataSources list) so the caller can always account for every pod in the
// namespace.
func (g *Getter) Get(ctx context.Context, namespace string) ([]autocranetypes.PodDataRequestInfo, error) {
	var pods corev1.PodList
	if err := g.Client.List(ctx, &pods, client.InNamespace(namespace)); err != nil {
		return nil, fmt.Errorf("listing pods in namespace %s: %w", namespace, err)
	}

	result := make([]autocranetypes.PodDataRequestInfo, 0, len(pods.Items))
	for _, pod := range pods.Items {
		result = append(result, infoFromPod(&pod))
	}

	// Stable order matters: the oracle's rollout gate counts upgrades in
	// iteration order, so AutoCrane always walks pods by name within a
	// namespace rather than relying on API-server list order.
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.Name < result[j].ID.Name
	})

	return result, nil
}

func infoFromPod(pod *corev1.Pod) autocranetypes.PodDataRequestInfo {
	info := autocranetypes.PodDataRequestInfo{
		ID: autocranetypes.PodIdentifier{
			Namespace: pod.Namespace,
			Name:      pod.Name,
		},
		DropFolder: pod.Annotations[DropFolderAnnotation],
		Requests:   make(map[string]string),
	}

	if raw := pod.Annotations[DataSourcesAnnotation]; raw != "" {
		for _, repo := range strings.Split(raw, ",") {
			repo = strings.TrimSpace(repo)
			if repo != "" {
				info.DataSources = append(info.DataSources, repo)
			}
		}
	}

	for key, value := range pod.Annotations {
		if repo, ok := autocranetypes.RepoFromRequestAnnotationKey(key); ok {
			info.Requests[repo] = value
		}
	}

	return info
}
