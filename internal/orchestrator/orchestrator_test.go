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
	"context"
	"time"

	"github.com/timmydo/AutoCrane/pkg/clock"

	"github.com/timmydo/AutoCrane/pkg/autocrane/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func baseConfig() Config {
	return Config{
		Namespaces:            []string{"ns1"},
		LeaderLease:           "acleaderorchestrate",
		LeaseRenewPeriod:      30 * time.Second,
		IterationPeriod:       10 * time.Millisecond,
		ConsecutiveErrorLimit: 5,
		WindowWidth:           3,
	}
}

func manifestFixture() types.DataRepositoryManifest {
	return types.DataRepositoryManifest{
		"repoA": {
			{Version: "v1", Timestamp: 100},
			{Version: "v2", Timestamp: 200},
		},
	}
}

func requestFixture(name, version string) types.PodDataRequestInfo {
	encoded, err := types.EncodeRequestDetails(types.DataDownloadRequestDetails{Hash: version, Path: "/repoA"})
	Expect(err).NotTo(HaveOccurred())
	return types.PodDataRequestInfo{
		ID:          types.PodIdentifier{Namespace: "ns1", Name: name},
		DropFolder:  "/data/" + name,
		DataSources: []string{"repoA"},
		Requests:    map[string]string{"repoA": encoded},
	}
}

var _ = Describe("Orchestrator.Run", func() {
	It("exits 3 immediately when no namespaces are configured", func() {
		o := New(Config{})
		o.LeaderElection = &fakeLeaderElection{task: &fakeBackgroundTask{leader: true}}
		Expect(o.Run(context.Background())).To(Equal(ExitConfigurationOrLease))
	})

	It("exits 3 when the leader-election background task has terminated", func() {
		o := New(baseConfig())
		o.LeaderElection = &fakeLeaderElection{task: &fakeBackgroundTask{completed: true}}
		Expect(o.Run(context.Background())).To(Equal(ExitConfigurationOrLease))
	})

	It("exits 0 promptly on cancellation", func() {
		o := New(baseConfig())
		o.Config.IterationPeriod = time.Hour
		o.LeaderElection = &fakeLeaderElection{task: &fakeBackgroundTask{leader: false}}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(o.Run(ctx)).To(Equal(ExitOK))
	})

	It("exits 2 once consecutive iteration errors exceed the configured limit", func() {
		cfg := baseConfig()
		cfg.ConsecutiveErrorLimit = 2
		cfg.IterationPeriod = time.Millisecond
		o := New(cfg)
		o.LeaderElection = &fakeLeaderElection{task: &fakeBackgroundTask{leader: true}}
		o.Manifest = &fakeManifest{err: errFakeTransient}
		o.Clock = &clock.Fake{}

		Expect(o.Run(context.Background())).To(Equal(ExitConsecutiveErrorLimit))
	})

	It("does not invoke any mutating collaborator while not leader", func() {
		cfg := baseConfig()
		cfg.IterationPeriod = time.Millisecond
		o := New(cfg)

		task := &fakeBackgroundTask{leader: false}
		annotate := &fakeAnnotate{}
		evicter := &fakeEvicter{}
		gc := &fakeGC{}

		o.LeaderElection = &fakeLeaderElection{task: task}
		o.Manifest = &fakeManifest{manifest: manifestFixture()}
		o.Requests = &fakeRequests{byNamespace: map[string][]types.PodDataRequestInfo{"ns1": {requestFixture("pod-a", "v1")}}}
		o.KnownGood = &fakeKnownGood{set: types.VersionSet{"repoA": "v1"}}
		o.Latest = &fakeLatest{set: types.VersionSet{"repoA": "v2"}}
		o.Failing = &fakeFailing{}
		o.Annotate = annotate
		o.Evict = evicter
		o.GC = gc
		o.Clock = &clock.Fake{}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		o.Run(ctx)

		Expect(annotate.calls).To(BeEmpty())
		Expect(evicter.evictedPods()).To(BeEmpty())
		Expect(gc.callCount()).To(Equal(0))
	})
})

var _ = Describe("Orchestrator.ProcessIteration", func() {
	var (
		o        *Orchestrator
		annotate *fakeAnnotate
		fc       *clock.Fake
	)

	BeforeEach(func() {
		o = New(baseConfig())
		annotate = &fakeAnnotate{}
		fc = &clock.Fake{Current: 42}

		o.Manifest = &fakeManifest{manifest: manifestFixture()}
		o.Requests = &fakeRequests{byNamespace: map[string][]types.PodDataRequestInfo{
			"ns1": {requestFixture("pod-a", "v1")},
		}}
		o.KnownGood = &fakeKnownGood{set: types.VersionSet{"repoA": "v1"}}
		o.Latest = &fakeLatest{set: types.VersionSet{"repoA": "v2"}}
		o.Failing = &fakeFailing{}
		o.Annotate = annotate
		o.Evict = &fakeEvicter{}
		o.GC = &fakeGC{}
		o.Clock = fc
	})

	It("S1: proposes and patches an upgrade, stamped with the clock's time", func() {
		Expect(o.ProcessIteration(context.Background())).To(Succeed())

		calls := annotate.callsFor(types.PodIdentifier{Namespace: "ns1", Name: "pod-a"})
		Expect(calls).To(HaveLen(1))

		encoded := calls[0].annotations[types.RequestAnnotationKey("repoA")]
		details, ok := types.DecodeRequestDetails(encoded)
		Expect(ok).To(BeTrue())
		Expect(details.Hash).To(Equal("v2"))
		Expect(details.UnixTimestampSeconds).To(Equal(int64(42)))
	})

	It("S2: issues no patch once the pod is already at the latest version", func() {
		o.Requests = &fakeRequests{byNamespace: map[string][]types.PodDataRequestInfo{
			"ns1": {requestFixture("pod-a", "v2")},
		}}

		Expect(o.ProcessIteration(context.Background())).To(Succeed())
		Expect(annotate.calls).To(BeEmpty())
	})

	It("issues at most one patch per pod even with multiple data sources", func() {
		manifest := types.DataRepositoryManifest{
			"repoA": {{Version: "v1", Timestamp: 100}, {Version: "v2", Timestamp: 200}},
			"repoB": {{Version: "w1", Timestamp: 100}, {Version: "w2", Timestamp: 200}},
		}
		encodedA, _ := types.EncodeRequestDetails(types.DataDownloadRequestDetails{Hash: "v1", Path: "/repoA"})
		encodedB, _ := types.EncodeRequestDetails(types.DataDownloadRequestDetails{Hash: "w1", Path: "/repoB"})
		pod := types.PodDataRequestInfo{
			ID:          types.PodIdentifier{Namespace: "ns1", Name: "pod-a"},
			DropFolder:  "/data/pod-a",
			DataSources: []string{"repoA", "repoB"},
			Requests:    map[string]string{"repoA": encodedA, "repoB": encodedB},
		}

		o.Manifest = &fakeManifest{manifest: manifest}
		o.Requests = &fakeRequests{byNamespace: map[string][]types.PodDataRequestInfo{"ns1": {pod}}}
		o.KnownGood = &fakeKnownGood{set: types.VersionSet{"repoA": "v1", "repoB": "w1"}}
		o.Latest = &fakeLatest{set: types.VersionSet{"repoA": "v2", "repoB": "w2"}}

		Expect(o.ProcessIteration(context.Background())).To(Succeed())

		calls := annotate.callsFor(pod.ID)
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].annotations).To(HaveKey(types.RequestAnnotationKey("repoA")))
		Expect(calls[0].annotations).To(HaveKey(types.RequestAnnotationKey("repoB")))
	})

	It("evicts the intersection once the failure window fills", func() {
		failing := &fakeFailing{byNamespace: map[string][]types.PodIdentifier{
			"ns1": {{Namespace: "ns1", Name: "pod-a"}},
		}}
		o.Failing = failing
		evicter := &fakeEvicter{}
		o.Evict = evicter

		Expect(o.ProcessIteration(context.Background())).To(Succeed())
		Expect(o.ProcessIteration(context.Background())).To(Succeed())
		Expect(evicter.evictedPods()).To(BeEmpty())

		Expect(o.ProcessIteration(context.Background())).To(Succeed())
		Expect(evicter.evictedPods()).To(ConsistOf(types.PodIdentifier{Namespace: "ns1", Name: "pod-a"}))
	})
})
