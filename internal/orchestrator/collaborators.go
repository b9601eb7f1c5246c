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

	"github.com/timmydo/AutoCrane/pkg/autocrane/types"
)

// ManifestFetcher loads the global version manifest.
type ManifestFetcher interface {
	Fetch(ctx context.Context) (types.DataRepositoryManifest, error)
}

// PodDataRequestGetter reads every pod's data-request state for a
// namespace.
type PodDataRequestGetter interface {
	Get(ctx context.Context, namespace string) ([]types.PodDataRequestInfo, error)
}

// KnownGoodAccessor computes and persists a namespace's known-good set.
type KnownGoodAccessor interface {
	GetOrUpdate(
		ctx context.Context,
		namespace string,
		manifest types.DataRepositoryManifest,
		requests []types.PodDataRequestInfo,
		failing map[types.PodIdentifier]bool,
	) (types.VersionSet, error)
}

// LatestVersionAccessor computes and persists a namespace's rollout-target
// set.
type LatestVersionAccessor interface {
	GetOrUpdate(
		ctx context.Context,
		namespace string,
		manifest types.DataRepositoryManifest,
	) (types.VersionSet, error)
}

// FailingPodGetter returns the pods currently failing at least one
// watchdog in a namespace.
type FailingPodGetter interface {
	Get(ctx context.Context, namespace string) ([]types.PodIdentifier, error)
}

// PodAnnotationPutter patches a batch of annotations onto a pod.
type PodAnnotationPutter interface {
	Put(ctx context.Context, pod types.PodIdentifier, annotations map[string]string) error
}

// PodEvicter requests the eviction of a pod.
type PodEvicter interface {
	Evict(ctx context.Context, pod types.PodIdentifier) error
}

// ExpiredObjectDeleter garbage-collects workload-scoped objects in a
// namespace that have passed their TTL.
type ExpiredObjectDeleter interface {
	Delete(ctx context.Context, namespace string, now int64) error
}

// LeaderElection runs the leader-election lease as a background task and
// exposes its state via two memory-safe, non-blocking reads.
type LeaderElection interface {
	Start(ctx context.Context, leaseName string, leaseDuration time.Duration) BackgroundTask
}

// BackgroundTask is the handle returned by LeaderElection.Start.
type BackgroundTask interface {
	// IsLeader reports whether this process currently holds the lease.
	IsLeader() bool
	// Completed reports whether the task has terminated.
	Completed() bool
}

// Clock is a source of the current time, as unix seconds.
type Clock interface {
	Now() int64
}
