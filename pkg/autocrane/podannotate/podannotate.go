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

// Package podannotate implements the orchestrator's PodAnnotationPutter as
// a JSON merge patch against the pod's metadata. It deliberately never
// reads the pod first: two controllers patching disjoint annotation keys
// must not conflict, so the patch body names only the keys this call is
// setting.
package podannotate

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	k8stypes "k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	autocranetypes "github.com/timmydo/AutoCrane/pkg/autocrane/types"
)

// Putter patches pod annotations via a controller-runtime client.
type Putter struct {
	Client client.Client
}

// NewPutter builds a Putter backed by c.
func NewPutter(c client.Client) *Putter {
	return &Putter{Client: c}
}

// mergePatch is the JSON merge patch body shape for setting annotations.
type mergePatch struct {
	Metadata mergePatchMetadata `json:"metadata"`
}

type mergePatchMetadata struct {
	Annotations map[string]string `json:"annotations"`
}

// Put issues a single JSON merge patch carrying every given annotation.
func (p *Putter) Put(ctx context.Context, pod autocranetypes.PodIdentifier, annotations map[string]string) error {
	if len(annotations) == 0 {
		return nil
	}

	body, err := json.Marshal(mergePatch{Metadata: mergePatchMetadata{Annotations: annotations}})
	if err != nil {
		return fmt.Errorf("encoding annotation patch for pod %s: %w", pod, err)
	}

	target := &corev1.Pod{}
	target.Namespace = pod.Namespace
	target.Name = pod.Name

	patch := client.RawPatch(k8stypes.MergePatchType, body)
	if err := p.Client.Patch(ctx, target, patch); err != nil {
		return fmt.Errorf("patching annotations on pod %s: %w", pod, err)
	}
	return nil
}
