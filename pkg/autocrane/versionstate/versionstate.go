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

// Package versionstate implements the two persisted, namespace-scoped
// version mappings the upgrade oracle is built from: the known-good set
// (promoted conservatively from healthy, observed pod state) and the
// latest set (always the manifest's newest entry per repository). Both
// persist as annotations on a per-namespace sentinel ConfigMap.
package versionstate

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8stypes "k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	autocranetypes "github.com/timmydo/AutoCrane/pkg/autocrane/types"
)

// SentinelConfigMapName is the per-namespace object the known-good and
// latest mappings are persisted on.
const SentinelConfigMapName = "autocrane-versions"

// KnownGoodAnnotation carries the JSON-encoded known-good VersionSet.
const KnownGoodAnnotation = "autocrane.io/known-good"

// LatestAnnotation carries the JSON-encoded latest VersionSet.
const LatestAnnotation = "autocrane.io/latest"

// KnownGoodAccessor computes and persists a namespace's known-good set.
type KnownGoodAccessor struct {
	Client client.Client
}

// NewKnownGoodAccessor builds a KnownGoodAccessor backed by c.
func NewKnownGoodAccessor(c client.Client) *KnownGoodAccessor {
	return &KnownGoodAccessor{Client: c}
}

// GetOrUpdate computes the namespace's known-good set and persists it.
//
// A pod counts as evidence for a version only if its current request is at
// that version and the pod is not in failing for this iteration. Known-good
// for a repo is promoted to the newest (by manifest timestamp) version with
// such evidence that postdates the current known-good; it never regresses.
// On first sight (no persisted value) it seeds to the oldest version any
// pod is currently requesting, or the manifest's oldest entry if no pod has
// a parseable request yet.
func (a *KnownGoodAccessor) GetOrUpdate(
	ctx context.Context,
	namespace string,
	manifest autocranetypes.DataRepositoryManifest,
	requests []autocranetypes.PodDataRequestInfo,
	failing map[autocranetypes.PodIdentifier]bool,
) (autocranetypes.VersionSet, error) {
	persisted, err := readVersionSet(ctx, a.Client, namespace, KnownGoodAnnotation)
	if err != nil {
		return nil, err
	}

	result := make(autocranetypes.VersionSet, len(manifest))
	for repo := range manifest {
		current, hasCurrent := persisted[repo]
		if !hasCurrent {
			if seeded, ok := seedKnownGood(manifest, requests, repo); ok {
				result[repo] = seeded
			}
			continue
		}

		if !manifest.HasVersion(repo, current) {
			// The persisted value fell out of the manifest; reseed rather
			// than propose an unpublished version.
			if seeded, ok := seedKnownGood(manifest, requests, repo); ok {
				result[repo] = seeded
			}
			continue
		}

		result[repo] = promoteKnownGood(manifest, requests, failing, repo, current)
	}

	if err := writeVersionSet(ctx, a.Client, namespace, KnownGoodAnnotation, result); err != nil {
		return nil, err
	}
	return result, nil
}

// LatestAccessor computes and persists a namespace's rollout-target set.
type LatestAccessor struct {
	Client client.Client
}

// NewLatestAccessor builds a LatestAccessor backed by c.
func NewLatestAccessor(c client.Client) *LatestAccessor {
	return &LatestAccessor{Client: c}
}

// GetOrUpdate computes the namespace's latest set: for every repo in the
// manifest, the newest published entry.
func (a *LatestAccessor) GetOrUpdate(
	ctx context.Context,
	namespace string,
	manifest autocranetypes.DataRepositoryManifest,
) (autocranetypes.VersionSet, error) {
	result := make(autocranetypes.VersionSet, len(manifest))
	for repo := range manifest {
		if newest, ok := manifest.Newest(repo); ok {
			result[repo] = newest.Version
		}
	}

	if err := writeVersionSet(ctx, a.Client, namespace, LatestAnnotation, result); err != nil {
		return nil, err
	}
	return result, nil
}

// seedKnownGood picks the oldest manifest-published version any pod is
// currently requesting for repo, falling back to the manifest's oldest
// published entry when no pod has a parseable request for it yet.
func seedKnownGood(
	manifest autocranetypes.DataRepositoryManifest,
	requests []autocranetypes.PodDataRequestInfo,
	repo string,
) (string, bool) {
	var (
		best   string
		bestTs int64
		found  bool
	)
	for _, pod := range requests {
		cur, ok := pod.RequestFor(repo)
		if !ok {
			continue
		}
		ts, tsOK := timestampFor(manifest, repo, cur.Hash)
		if !tsOK {
			continue
		}
		if !found || ts < bestTs {
			best, bestTs, found = cur.Hash, ts, true
		}
	}
	if found {
		return best, true
	}

	if oldest, ok := manifest.Oldest(repo); ok {
		return oldest.Version, true
	}
	return "", false
}

// promoteKnownGood returns the newest version, among those a non-failing
// pod is currently requesting, that postdates current - or current
// unchanged if no such evidence exists.
func promoteKnownGood(
	manifest autocranetypes.DataRepositoryManifest,
	requests []autocranetypes.PodDataRequestInfo,
	failing map[autocranetypes.PodIdentifier]bool,
	repo, current string,
) string {
	best := current
	bestTs, _ := timestampFor(manifest, repo, current)

	for _, pod := range requests {
		if failing[pod.ID] {
			continue
		}
		cur, ok := pod.RequestFor(repo)
		if !ok {
			continue
		}
		ts, tsOK := timestampFor(manifest, repo, cur.Hash)
		if !tsOK {
			continue
		}
		if ts > bestTs {
			best, bestTs = cur.Hash, ts
		}
	}
	return best
}

func timestampFor(manifest autocranetypes.DataRepositoryManifest, repo, version string) (int64, bool) {
	for _, entry := range manifest[repo] {
		if entry.Version == version {
			return entry.Timestamp, true
		}
	}
	return 0, false
}

// readVersionSet loads the JSON-encoded VersionSet stored under key on the
// namespace's sentinel ConfigMap. A missing ConfigMap or missing key yields
// an empty set, not an error.
func readVersionSet(
	ctx context.Context,
	c client.Client,
	namespace, key string,
) (autocranetypes.VersionSet, error) {
	var cm corev1.ConfigMap
	name := k8stypes.NamespacedName{Namespace: namespace, Name: SentinelConfigMapName}
	if err := c.Get(ctx, name, &cm); err != nil {
		if apierrors.IsNotFound(err) {
			return autocranetypes.VersionSet{}, nil
		}
		return nil, fmt.Errorf("reading sentinel configmap %s/%s: %w", namespace, SentinelConfigMapName, err)
	}

	raw, ok := cm.Annotations[key]
	if !ok || raw == "" {
		return autocranetypes.VersionSet{}, nil
	}

	var set autocranetypes.VersionSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return autocranetypes.VersionSet{}, nil
	}
	return set, nil
}

// writeVersionSet persists set under key on the namespace's sentinel
// ConfigMap, creating the ConfigMap if it does not already exist and
// patching only the given annotation key otherwise.
func writeVersionSet(
	ctx context.Context,
	c client.Client,
	namespace, key string,
	set autocranetypes.VersionSet,
) error {
	encoded, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encoding %s for namespace %s: %w", key, namespace, err)
	}

	var cm corev1.ConfigMap
	name := k8stypes.NamespacedName{Namespace: namespace, Name: SentinelConfigMapName}
	err = c.Get(ctx, name, &cm)
	switch {
	case apierrors.IsNotFound(err):
		created := &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Namespace:   namespace,
				Name:        SentinelConfigMapName,
				Annotations: map[string]string{key: string(encoded)},
			},
		}
		if createErr := c.Create(ctx, created); createErr != nil && !apierrors.IsAlreadyExists(createErr) {
			return fmt.Errorf("creating sentinel configmap %s/%s: %w", namespace, SentinelConfigMapName, createErr)
		}
		return nil
	case err != nil:
		return fmt.Errorf("reading sentinel configmap %s/%s: %w", namespace, SentinelConfigMapName, err)
	}

	target := &corev1.ConfigMap{}
	target.Namespace = namespace
	target.Name = SentinelConfigMapName
	body, err := json.Marshal(map[string]any{
		"metadata": map[string]any{
			"annotations": map[string]string{key: string(encoded)},
		},
	})
	if err != nil {
		return fmt.Errorf("encoding patch for sentinel configmap %s/%s: %w", namespace, SentinelConfigMapName, err)
	}
	patch := client.RawPatch(k8stypes.MergePatchType, body)
	if err := c.Patch(ctx, target, patch); err != nil {
		return fmt.Errorf("patching sentinel configmap %s/%s: %w", namespace, SentinelConfigMapName, err)
	}
	return nil
}
