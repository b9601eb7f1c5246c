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

package oracle

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/timmydo/AutoCrane/pkg/autocrane/types"
)

func podWithRequest(name, repo, version string, hasRequest bool) types.PodDataRequestInfo {
	requests := map[string]string{}
	if hasRequest {
		encoded, err := types.EncodeRequestDetails(types.DataDownloadRequestDetails{
			Hash: version,
			Path: types.RepoPath(repo),
		})
		Expect(err).ToNot(HaveOccurred())
		requests[repo] = encoded
	}
	return types.PodDataRequestInfo{
		ID:          types.PodIdentifier{Namespace: "ns", Name: name},
		DropFolder:  "/data",
		DataSources: []string{repo},
		Requests:    requests,
	}
}

var _ = Describe("Upgrade oracle", func() {
	It("S1: proposes the latest version when a pod sits at known-good", func() {
		kg := types.VersionSet{"A": "v1"}
		lt := types.VersionSet{"A": "v2"}
		pod := podWithRequest("p", "A", "v1", true)

		o := New(kg, lt, []types.PodDataRequestInfo{pod})
		req := o.GetDataRequest(pod.ID, "A")

		Expect(req).ToNot(BeNil())
		Expect(req.Hash).To(Equal("v2"))
		Expect(req.Path).To(Equal(types.RepoPath("A")))
	})

	It("S2: proposes nothing once the pod is already at latest", func() {
		kg := types.VersionSet{"A": "v1"}
		lt := types.VersionSet{"A": "v2"}
		pod := podWithRequest("p", "A", "v2", true)

		o := New(kg, lt, []types.PodDataRequestInfo{pod})
		Expect(o.GetDataRequest(pod.ID, "A")).To(BeNil())
	})

	It("S3: rolls a phantom version back to known-good", func() {
		kg := types.VersionSet{"A": "v1"}
		lt := types.VersionSet{"A": "v2"}
		pod := podWithRequest("p", "A", "v3", true)

		o := New(kg, lt, []types.PodDataRequestInfo{pod})
		req := o.GetDataRequest(pod.ID, "A")

		Expect(req).ToNot(BeNil())
		Expect(req.Hash).To(Equal("v1"))
	})

	It("S4: treats a malformed request as absent and proposes known-good", func() {
		kg := types.VersionSet{"A": "v1"}
		lt := types.VersionSet{"A": "v2"}
		pod := types.PodDataRequestInfo{
			ID:          types.PodIdentifier{Namespace: "ns", Name: "p"},
			DropFolder:  "/data",
			DataSources: []string{"A"},
			Requests:    map[string]string{"A": "not-base64"},
		}

		o := New(kg, lt, []types.PodDataRequestInfo{pod})
		req := o.GetDataRequest(pod.ID, "A")

		Expect(req).ToNot(BeNil())
		Expect(req.Hash).To(Equal("v1"))
	})

	It("proposes nothing when neither known-good nor latest is known", func() {
		pod := podWithRequest("p", "A", "v1", true)
		o := New(types.VersionSet{}, types.VersionSet{}, []types.PodDataRequestInfo{pod})
		Expect(o.GetDataRequest(pod.ID, "A")).To(BeNil())
	})

	It("proposes latest when no known-good exists and the request is absent", func() {
		lt := types.VersionSet{"A": "v2"}
		pod := podWithRequest("p", "A", "", false)
		o := New(types.VersionSet{}, lt, []types.PodDataRequestInfo{pod})
		req := o.GetDataRequest(pod.ID, "A")
		Expect(req).ToNot(BeNil())
		Expect(req.Hash).To(Equal("v2"))
	})

	It("proposes nothing when known-good already equals latest", func() {
		kg := types.VersionSet{"A": "v1"}
		lt := types.VersionSet{"A": "v1"}
		pod := podWithRequest("p", "A", "v1", true)
		o := New(kg, lt, []types.PodDataRequestInfo{pod})
		Expect(o.GetDataRequest(pod.ID, "A")).To(BeNil())
	})

	It("is pure: identical inputs yield identical decisions across instances and repeated calls", func() {
		kg := types.VersionSet{"A": "v1"}
		lt := types.VersionSet{"A": "v2"}
		pod := podWithRequest("p", "A", "v1", true)
		requests := []types.PodDataRequestInfo{pod}

		o1 := New(kg, lt, requests)
		o2 := New(kg, lt, requests)

		first := o1.GetDataRequest(pod.ID, "A")
		second := o1.GetDataRequest(pod.ID, "A")
		other := o2.GetDataRequest(pod.ID, "A")

		Expect(first).To(Equal(second))
		Expect(first).To(Equal(other))
	})

	It("caps upgrades at ceil(N/3) pods per (namespace, repo)", func() {
		kg := types.VersionSet{"A": "v1"}
		lt := types.VersionSet{"A": "v2"}

		const n = 10
		var requests []types.PodDataRequestInfo
		for i := 0; i < n; i++ {
			requests = append(requests, podWithRequest(fmt.Sprintf("p%d", i), "A", "v1", true))
		}

		o := New(kg, lt, requests)

		upgraded := 0
		for _, pod := range requests {
			if req := o.GetDataRequest(pod.ID, "A"); req != nil {
				Expect(req.Hash).To(Equal("v2"))
				upgraded++
			}
		}

		cap := rolloutCap(n)
		Expect(cap).To(Equal(4))
		Expect(upgraded).To(Equal(cap))
	})

	It("counts pods already at latest against the rollout cap", func() {
		kg := types.VersionSet{"A": "v1"}
		lt := types.VersionSet{"A": "v2"}

		requests := []types.PodDataRequestInfo{
			podWithRequest("already-1", "A", "v2", true),
			podWithRequest("already-2", "A", "v2", true),
			podWithRequest("candidate-1", "A", "v1", true),
			podWithRequest("candidate-2", "A", "v1", true),
			podWithRequest("candidate-3", "A", "v1", true),
		}
		// cap = ceil(5/3) = 2, two pods already there, so no more upgrades fit.
		o := New(kg, lt, requests)

		for _, pod := range requests[2:] {
			Expect(o.GetDataRequest(pod.ID, "A")).To(BeNil())
		}
	})
})
