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

package downloadrequest

import (
	autocranetypes "github.com/timmydo/AutoCrane/pkg/autocrane/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("download request factory", func() {
	It("returns nothing for a pod that is not a data consumer", func() {
		pod := autocranetypes.PodDataRequestInfo{
			ID:          autocranetypes.PodIdentifier{Namespace: "ns1", Name: "pod-a"},
			DataSources: []string{"repoA"},
		}
		Expect(Build(pod)).To(BeEmpty())
	})

	It("computes the extraction location by sanitizing and joining the request path", func() {
		encoded, err := autocranetypes.EncodeRequestDetails(autocranetypes.DataDownloadRequestDetails{
			Hash: "v1", Path: "some/nested/path", UnixTimestampSeconds: 5,
		})
		Expect(err).NotTo(HaveOccurred())

		pod := autocranetypes.PodDataRequestInfo{
			ID:          autocranetypes.PodIdentifier{Namespace: "ns1", Name: "pod-a"},
			DropFolder:  "/data/pod-a",
			DataSources: []string{"repoA"},
			Requests:    map[string]string{"repoA": encoded},
		}

		requests := Build(pod)
		Expect(requests).To(HaveLen(1))
		Expect(requests[0].ExtractionLocation).To(Equal("/data/pod-a/some_nested_path"))
		Expect(requests[0].Details.Hash).To(Equal("v1"))
	})

	It("emits an empty-details request when the repo has no valid target yet", func() {
		pod := autocranetypes.PodDataRequestInfo{
			ID:          autocranetypes.PodIdentifier{Namespace: "ns1", Name: "pod-a"},
			DropFolder:  "/data/pod-a",
			DataSources: []string{"repoA"},
		}

		requests := Build(pod)
		Expect(requests).To(HaveLen(1))
		Expect(requests[0].Details).To(BeNil())
		Expect(requests[0].ExtractionLocation).To(BeEmpty())
	})
})
