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

// Package orchestrator implements AutoCrane's control loop: the periodic
// iteration that, while leader, drives per-pod data-version upgrades via
// the upgrade oracle and evicts pods failing their watchdogs on a sliding
// window.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	autocraneerrors "github.com/timmydo/AutoCrane/pkg/autocrane/errors"
	"github.com/timmydo/AutoCrane/pkg/autocrane/oracle"
	"github.com/timmydo/AutoCrane/pkg/autocrane/types"
	"github.com/timmydo/AutoCrane/pkg/management/log"
)

// Exit codes, per spec.md section 6.
const (
	ExitOK                    = 0
	ExitConsecutiveErrorLimit = 2
	ExitConfigurationOrLease  = 3
)

// Config holds the loop's fixed parameters.
type Config struct {
	// Namespaces is the set of namespaces reconciled every iteration.
	Namespaces []string

	// LeaderLease is the fixed lease name used for leader election.
	LeaderLease string

	// LeaseRenewPeriod is passed to the leader-election background task,
	// which uses it as the lease renew deadline.
	LeaseRenewPeriod time.Duration

	// IterationPeriod is the loop's fixed sleep period between
	// iterations, P in the design.
	IterationPeriod time.Duration

	// ConsecutiveErrorLimit is the number of consecutive failed
	// iterations tolerated before the loop exits, E in the design.
	ConsecutiveErrorLimit int

	// WindowWidth is the width of the sliding failure window, W in the
	// design.
	WindowWidth int
}

// Orchestrator composes every collaborator into the control loop.
type Orchestrator struct {
	Config Config

	Manifest       ManifestFetcher
	Requests       PodDataRequestGetter
	KnownGood      KnownGoodAccessor
	Latest         LatestVersionAccessor
	Failing        FailingPodGetter
	Annotate       PodAnnotationPutter
	Evict          PodEvicter
	GC             ExpiredObjectDeleter
	LeaderElection LeaderElection
	Clock          Clock

	window *failureWindow
}

// New builds an Orchestrator from its configuration and collaborators.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{Config: cfg, window: newFailureWindow(cfg.WindowWidth)}
}

// Run drives the control loop until cancellation or a terminal condition,
// returning the process exit code documented in spec.md section 6.
func (o *Orchestrator) Run(ctx context.Context) int {
	if len(o.Config.Namespaces) == 0 {
		log.Error(autocraneerrors.ErrNoNamespaces, "cannot start orchestrator")
		return ExitConfigurationOrLease
	}

	task := o.LeaderElection.Start(ctx, o.Config.LeaderLease, o.Config.LeaseRenewPeriod)
	consecutiveErrors := 0

	for {
		if task.Completed() {
			log.Error(autocraneerrors.ErrLeaderTaskTerminated, "leader election task terminated, exiting")
			return ExitConfigurationOrLease
		}

		if consecutiveErrors > o.Config.ConsecutiveErrorLimit {
			log.Error(autocraneerrors.ErrConsecutiveErrorLimitExceeded, "exiting",
				"consecutiveErrors", consecutiveErrors, "limit", o.Config.ConsecutiveErrorLimit)
			return ExitConsecutiveErrorLimit
		}

		select {
		case <-ctx.Done():
			return ExitOK
		default:
		}

		if err := o.runOneIteration(ctx, task); err != nil {
			log.Error(err, "iteration failed")
			consecutiveErrors++
		} else {
			consecutiveErrors = 0
		}

		select {
		case <-ctx.Done():
			return ExitOK
		case <-time.After(o.Config.IterationPeriod):
		}
	}
}

// runOneIteration performs the leader-gated work of a single iteration:
// ProcessIteration followed by CleanupExpired. Non-leaders do neither.
func (o *Orchestrator) runOneIteration(ctx context.Context, task BackgroundTask) error {
	if !task.IsLeader() {
		log.Info("not leader")
		return nil
	}

	if err := o.ProcessIteration(ctx); err != nil {
		return err
	}
	return o.CleanupExpired(ctx)
}

// ProcessIteration fetches the manifest once, then processes every
// configured namespace in order: refreshing known-good and latest,
// building a fresh oracle, applying its decisions, and collecting failing
// pods. It slides the failure window and evicts the cross-iteration
// intersection once the window is full.
func (o *Orchestrator) ProcessIteration(ctx context.Context) error {
	manifest, err := o.Manifest.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetching manifest: %w", err)
	}

	var allFailing []types.PodIdentifier
	for _, namespace := range o.Config.Namespaces {
		failing, err := o.processNamespace(ctx, namespace, manifest)
		if err != nil {
			return fmt.Errorf("processing namespace %s: %w", namespace, err)
		}
		allFailing = append(allFailing, failing...)
	}

	o.window.push(allFailing)
	if o.window.full() {
		toEvict := o.window.intersection()
		if len(toEvict) > 0 {
			o.evictAll(ctx, toEvict)
		}
	}

	return nil
}

// processNamespace reads a namespace's pod requests, refreshes its
// known-good and latest sets, builds a fresh oracle, applies its decisions
// with at most one annotation patch per pod, and returns the pods
// currently failing a watchdog.
func (o *Orchestrator) processNamespace(
	ctx context.Context,
	namespace string,
	manifest types.DataRepositoryManifest,
) ([]types.PodIdentifier, error) {
	requests, err := o.Requests.Get(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("reading pod requests: %w", err)
	}

	failingList, err := o.Failing.Get(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("reading failing pods: %w", err)
	}
	failingSet := make(map[types.PodIdentifier]bool, len(failingList))
	for _, pod := range failingList {
		failingSet[pod] = true
	}

	knownGood, err := o.KnownGood.GetOrUpdate(ctx, namespace, manifest, requests, failingSet)
	if err != nil {
		return nil, fmt.Errorf("refreshing known-good set: %w", err)
	}

	latest, err := o.Latest.GetOrUpdate(ctx, namespace, manifest)
	if err != nil {
		return nil, fmt.Errorf("refreshing latest set: %w", err)
	}

	orc := oracle.New(knownGood, latest, requests)

	for _, pod := range requests {
		batch := o.buildAnnotationBatch(orc, pod)
		if len(batch) == 0 {
			continue
		}
		if err := o.Annotate.Put(ctx, pod.ID, batch); err != nil {
			return nil, fmt.Errorf("patching annotations on pod %s: %w", pod.ID, err)
		}
	}

	return failingList, nil
}

// buildAnnotationBatch asks the oracle for a decision on every one of the
// pod's data sources and stamps the ones it returns with the current time,
// building the single patch batch applied to the pod this iteration.
func (o *Orchestrator) buildAnnotationBatch(orc *oracle.Oracle, pod types.PodDataRequestInfo) map[string]string {
	batch := make(map[string]string, len(pod.DataSources))
	for _, repo := range pod.DataSources {
		decision := orc.GetDataRequest(pod.ID, repo)
		if decision == nil {
			continue
		}

		stamped := *decision
		stamped.UnixTimestampSeconds = o.Clock.Now()

		encoded, err := types.EncodeRequestDetails(stamped)
		if err != nil {
			log.Error(err, "encoding download request", "pod", pod.ID, "repo", repo)
			continue
		}
		batch[types.RequestAnnotationKey(repo)] = encoded
	}
	return batch
}

// evictAll requests eviction of every pod concurrently and waits for all
// requests to complete. Eviction errors are logged but never propagate:
// they must not poison the loop's consecutive-error counter.
func (o *Orchestrator) evictAll(ctx context.Context, pods []types.PodIdentifier) {
	var g errgroup.Group
	for _, pod := range pods {
		pod := pod
		g.Go(func() error {
			if err := o.Evict.Evict(ctx, pod); err != nil {
				log.Error(err, "evicting pod", "pod", pod)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// CleanupExpired garbage-collects expired workload-scoped objects in every
// configured namespace.
func (o *Orchestrator) CleanupExpired(ctx context.Context) error {
	now := o.Clock.Now()
	for _, namespace := range o.Config.Namespaces {
		if err := o.GC.Delete(ctx, namespace, now); err != nil {
			return fmt.Errorf("deleting expired objects in namespace %s: %w", namespace, err)
		}
	}
	return nil
}
