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

// Package eviction implements the orchestrator's PodEvicter against the
// policy/v1 Eviction subresource, the API server's graceful-termination
// path - preferred over a bare pod delete because it honours any
// PodDisruptionBudget guarding the workload.
package eviction

import (
	"context"
	"fmt"

	policyv1 "k8s.io/api/policy/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	autocranetypes "github.com/timmydo/AutoCrane/pkg/autocrane/types"
)

// Evicter requests pod eviction through the Eviction subresource.
type Evicter struct {
	Clientset kubernetes.Interface
}

// NewEvicter builds an Evicter backed by clientset.
func NewEvicter(clientset kubernetes.Interface) *Evicter {
	return &Evicter{Clientset: clientset}
}

// Evict requests eviction of pod.
func (e *Evicter) Evict(ctx context.Context, pod autocranetypes.PodIdentifier) error {
	eviction := &policyv1.Eviction{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: pod.Namespace,
			Name:      pod.Name,
		},
	}
	if err := e.Clientset.PolicyV1().Evictions(pod.Namespace).Evict(ctx, eviction); err != nil {
		return fmt.Errorf("evicting pod %s: %w", pod, err)
	}
	return nil
}
