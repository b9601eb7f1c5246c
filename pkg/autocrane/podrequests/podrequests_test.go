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

package podrequests

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	autocranetypes "github.com/timmydo/AutoCrane/pkg/autocrane/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("pod data request getter", func() {
	scheme := runtime.NewScheme()
	Expect(corev1.AddToScheme(scheme)).To(Succeed())

	It("extracts data sources, drop folder and requests from annotations", func() {
		encoded, err := autocranetypes.EncodeRequestDetails(autocranetypes.DataDownloadRequestDetails{
			Hash: "v1", Path: "/repoA", UnixTimestampSeconds: 100,
		})
		Expect(err).NotTo(HaveOccurred())

		pod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Namespace: "ns1",
				Name:      "pod-a",
				Annotations: map[string]string{
					DataSourcesAnnotation:                    "repoA, repoB",
					DropFolderAnnotation:                     "/data/pod-a",
					autocranetypes.RequestAnnotationKey("repoA"): encoded,
				},
			},
		}
		cl := fake.NewClientBuilder().WithScheme(scheme).WithObjects(pod).Build()
		g := NewGetter(cl)

		infos, err := g.Get(context.Background(), "ns1")
		Expect(err).NotTo(HaveOccurred())
		Expect(infos).To(HaveLen(1))

		info := infos[0]
		Expect(info.ID).To(Equal(autocranetypes.PodIdentifier{Namespace: "ns1", Name: "pod-a"}))
		Expect(info.DropFolder).To(Equal("/data/pod-a"))
		Expect(info.DataSources).To(Equal([]string{"repoA", "repoB"}))
		details, ok := info.RequestFor("repoA")
		Expect(ok).To(BeTrue())
		Expect(details.Hash).To(Equal("v1"))
	})

	It("returns pods with no data-sources annotation as non-consumers", func() {
		pod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Namespace: "ns1", Name: "pod-b"},
		}
		cl := fake.NewClientBuilder().WithScheme(scheme).WithObjects(pod).Build()
		g := NewGetter(cl)

		infos, err := g.Get(context.Background(), "ns1")
		Expect(err).NotTo(HaveOccurred())
		Expect(infos).To(HaveLen(1))
		Expect(infos[0].IsDataConsumer()).To(BeFalse())
		Expect(infos[0].DataSources).To(BeEmpty())
	})

	It("returns pods ordered by name", func() {
		podB := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: "ns1", Name: "b"}}
		podA := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: "ns1", Name: "a"}}
		cl := fake.NewClientBuilder().WithScheme(scheme).WithObjects(podB, podA).Build()
		g := NewGetter(cl)

		infos, err := g.Get(context.Background(), "ns1")
		Expect(err).NotTo(HaveOccurred())
		Expect(infos).To(HaveLen(2))
		Expect(infos[0].ID.Name).To(Equal("a"))
		Expect(infos[1].ID.Name).To(Equal("b"))
	})
})
