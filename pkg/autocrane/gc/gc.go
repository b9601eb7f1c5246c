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

// Package gc implements the orchestrator's ExpiredObjectDeleter: it removes
// ConfigMaps and Leases in a namespace once they carry an
// autocrane.io/expires-at annotation naming a unix-seconds deadline that
// has passed.
package gc

import (
	"context"
	"fmt"
	"strconv"

	coordinationv1 "k8s.io/api/coordination/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ExpiresAtAnnotation names the unix-seconds deadline past which an object
// is eligible for garbage collection.
const ExpiresAtAnnotation = "autocrane.io/expires-at"

// Deleter removes expired objects via a controller-runtime client.
type Deleter struct {
	Client client.Client
}

// NewDeleter builds a Deleter backed by c.
func NewDeleter(c client.Client) *Deleter {
	return &Deleter{Client: c}
}

// Delete removes every ConfigMap and Lease in namespace whose
// ExpiresAtAnnotation names a deadline at or before now.
func (d *Deleter) Delete(ctx context.Context, namespace string, now int64) error {
	var configMaps corev1.ConfigMapList
	if err := d.Client.List(ctx, &configMaps, client.InNamespace(namespace)); err != nil {
		return fmt.Errorf("listing configmaps in namespace %s: %w", namespace, err)
	}
	for i := range configMaps.Items {
		cm := &configMaps.Items[i]
		if expired(cm.Annotations, now) {
			if err := deleteIgnoringNotFound(ctx, d.Client, cm); err != nil {
				return fmt.Errorf("deleting expired configmap %s/%s: %w", cm.Namespace, cm.Name, err)
			}
		}
	}

	var leases coordinationv1.LeaseList
	if err := d.Client.List(ctx, &leases, client.InNamespace(namespace)); err != nil {
		return fmt.Errorf("listing leases in namespace %s: %w", namespace, err)
	}
	for i := range leases.Items {
		lease := &leases.Items[i]
		if expired(lease.Annotations, now) {
			if err := deleteIgnoringNotFound(ctx, d.Client, lease); err != nil {
				return fmt.Errorf("deleting expired lease %s/%s: %w", lease.Namespace, lease.Name, err)
			}
		}
	}

	return nil
}

func expired(annotations map[string]string, now int64) bool {
	raw, ok := annotations[ExpiresAtAnnotation]
	if !ok {
		return false
	}
	deadline, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	return deadline <= now
}

func deleteIgnoringNotFound(ctx context.Context, c client.Client, obj client.Object) error {
	if err := c.Delete(ctx, obj); err != nil && !apierrors.IsNotFound(err) {
		return err
	}
	return nil
}
