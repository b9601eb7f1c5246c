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

// Package leaderelection implements the orchestrator's LeaderElection
// collaborator on top of client-go's lease-based leaderelection primitive.
// It runs as a background goroutine and exposes its state via the two
// memory-safe, non-blocking reads (IsLeader, Completed) the control loop
// polls every iteration.
package leaderelection

import (
	"context"
	"sync/atomic"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/timmydo/AutoCrane/pkg/concurrency"
	"github.com/timmydo/AutoCrane/pkg/management/log"
)

// Elector starts leader-election lease tasks against a Lease object in the
// operator namespace.
type Elector struct {
	Clientset kubernetes.Interface
	Namespace string
	Identity  string
}

// NewElector builds an Elector using identity as the lock holder identity.
func NewElector(clientset kubernetes.Interface, namespace, identity string) *Elector {
	return &Elector{Clientset: clientset, Namespace: namespace, Identity: identity}
}

// Task is the handle returned by Start.
type Task struct {
	leading   atomic.Bool
	completed *concurrency.Executed
}

// IsLeader reports whether this process currently holds the lease.
func (t *Task) IsLeader() bool {
	return t.leading.Load()
}

// Completed reports whether the background task has terminated.
func (t *Task) Completed() bool {
	return t.completed.IsDone()
}

// Start begins running the leader-election loop in a background goroutine,
// stepping down when ctx is cancelled. renew is the renew deadline: the
// lease lasts twice renew and renewal is retried every quarter of renew.
// The returned Task terminates (Completed() becomes true) when ctx is
// cancelled or the leader-election loop errors out.
func (e *Elector) Start(ctx context.Context, leaseName string, renew time.Duration) *Task {
	task := &Task{completed: concurrency.NewExecuted()}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      leaseName,
			Namespace: e.Namespace,
		},
		Client: e.Clientset.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: e.Identity,
		},
	}

	go func() {
		defer task.completed.Broadcast()

		leaderelection.RunOrDie(ctx, leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   renew * 2,
			RenewDeadline:   renew,
			RetryPeriod:     renew / 4,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(context.Context) {
					log.Info("acquired leader lease", "lease", leaseName, "identity", e.Identity)
					task.leading.Store(true)
				},
				OnStoppedLeading: func() {
					log.Info("lost leader lease", "lease", leaseName, "identity", e.Identity)
					task.leading.Store(false)
				},
			},
		})
	}()

	return task
}
