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

// Package downloadrequest implements the download-request factory: the
// contract the (external) download agent implements against. It is
// specified here for interface symmetry and exercised only by its own
// tests; neither the orchestrator loop nor the show-manifest command calls
// it.
package downloadrequest

import (
	"path"

	autocranetypes "github.com/timmydo/AutoCrane/pkg/autocrane/types"
)

// Build emits one DataDownloadRequest per entry in pod.DataSources. If
// pod.DropFolder is empty the pod is not a data consumer this cycle and an
// empty slice is returned.
func Build(pod autocranetypes.PodDataRequestInfo) []autocranetypes.DataDownloadRequest {
	if pod.DropFolder == "" {
		return nil
	}

	requests := make([]autocranetypes.DataDownloadRequest, 0, len(pod.DataSources))
	for _, repo := range pod.DataSources {
		requests = append(requests, buildOne(pod, repo))
	}
	return requests
}

func buildOne(pod autocranetypes.PodDataRequestInfo, repo string) autocranetypes.DataDownloadRequest {
	req := autocranetypes.DataDownloadRequest{
		Pod:        pod.ID,
		Repo:       repo,
		DropFolder: pod.DropFolder,
	}

	details, ok := pod.RequestFor(repo)
	if !ok {
		return req
	}

	req.Details = &details
	req.ExtractionLocation = path.Join(pod.DropFolder, autocranetypes.Sanitize(details.Path))
	return req
}
