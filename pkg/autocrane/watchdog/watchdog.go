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

// Package watchdog implements the orchestrator's FailingPodGetter. A pod is
// considered failing a watchdog when it carries the
// autocrane.io/watchdog-failing annotation set to "true", or when it has a
// pod condition of type autocrane.io/Watchdog with status False - either
// surface a watchdog sidecar may choose to use.
package watchdog

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	autocranetypes "github.com/timmydo/AutoCrane/pkg/autocrane/types"
)

// FailingAnnotation, when set to "true" on a pod, marks it as failing at
// least one watchdog.
const FailingAnnotation = "autocrane.io/watchdog-failing"

// ConditionType is the pod condition a watchdog sidecar may report
// instead of (or in addition to) the annotation.
const ConditionType corev1.PodConditionType = "autocrane.io/Watchdog"

// Getter reads failing pods via a controller-runtime client.
type Getter struct {
	Client client.Client
}

// NewGetter builds a Getter backed by c.
func NewGetter(c client.Client) *Getter {
	return &Getter{Client: c}
}

// Get returns the identifiers of every pod in namespace currently failing
// a watchdog.
func (g *Getter) Get(ctx context.Context, namespace string) ([]autocranetypes.PodIdentifier, error) {
	var pods corev1.PodList
	if err := g.Client.List(ctx, &pods, client.InNamespace(namespace)); err != nil {
		return nil, fmt.Errorf("listing pods in namespace %s: %w", namespace, err)
	}

	var failing []autocranetypes.PodIdentifier
	for _, pod := range pods.Items {
		if isFailing(&pod) {
			failing = append(failing, autocranetypes.PodIdentifier{
				Namespace: pod.Namespace,
				Name:      pod.Name,
			})
		}
	}
	return failing, nil
}

func isFailing(pod *corev1.Pod) bool {
	if pod.Annotations[FailingAnnotation] == "true" {
		return true
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == ConditionType && cond.Status == corev1.ConditionFalse {
			return true
		}
	}
	return false
}
