package coordination

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ConfigMapDataKey is the default ConfigMap key holding the policy document.
const ConfigMapDataKey = "autoscaling.json"

// ConfigMapClient stores the policy document under one key of a Kubernetes
// ConfigMap. The ConfigMap's resourceVersion serves as the document
// revision: the API server rejects updates carrying a stale
// resourceVersion, which gives the compare-and-swap semantics Write needs.
type ConfigMapClient struct {
	client    client.Client
	name      string
	namespace string
	key       string
}

// NewConfigMapClient creates a ConfigMap-backed coordination client. An
// empty key defaults to ConfigMapDataKey.
func NewConfigMapClient(k8sClient client.Client, name, namespace, key string) *ConfigMapClient {
	if key == "" {
		key = ConfigMapDataKey
	}
	return &ConfigMapClient{
		client:    k8sClient,
		name:      name,
		namespace: namespace,
		key:       key,
	}
}

// Read implements Client.
func (c *ConfigMapClient) Read(ctx context.Context) ([]byte, Revision, error) {
	cm := &corev1.ConfigMap{}
	err := c.client.Get(ctx, types.NamespacedName{Name: c.name, Namespace: c.namespace}, cm)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, NoRevision, ErrNotFound
		}
		return nil, NoRevision, fmt.Errorf("failed to get ConfigMap %s/%s: %w", c.namespace, c.name, err)
	}

	data, ok := cm.Data[c.key]
	if !ok {
		// The ConfigMap exists but was never written through this client;
		// treat it as an empty document at its current revision.
		return nil, Revision(cm.ResourceVersion), nil
	}
	return []byte(data), Revision(cm.ResourceVersion), nil
}

// Write implements Client.
func (c *ConfigMapClient) Write(ctx context.Context, data []byte, expected Revision) error {
	if expected == NoRevision {
		cm := &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      c.name,
				Namespace: c.namespace,
			},
			Data: map[string]string{c.key: string(data)},
		}
		if err := c.client.Create(ctx, cm); err != nil {
			if apierrors.IsAlreadyExists(err) {
				return ErrRevisionConflict
			}
			return fmt.Errorf("failed to create ConfigMap %s/%s: %w", c.namespace, c.name, err)
		}
		return nil
	}

	cm := &corev1.ConfigMap{}
	err := c.client.Get(ctx, types.NamespacedName{Name: c.name, Namespace: c.namespace}, cm)
	if err != nil {
		if apierrors.IsNotFound(err) {
			// Deleted out from under us since the read; the caller's
			// re-read will observe the absence.
			return ErrRevisionConflict
		}
		return fmt.Errorf("failed to get ConfigMap %s/%s: %w", c.namespace, c.name, err)
	}

	if cm.Data == nil {
		cm.Data = map[string]string{}
	}
	cm.Data[c.key] = string(data)
	// Pin the update to the revision the caller read; the API server
	// rejects it if anything changed in between.
	cm.ResourceVersion = string(expected)

	if err := c.client.Update(ctx, cm); err != nil {
		if apierrors.IsConflict(err) {
			return ErrRevisionConflict
		}
		return fmt.Errorf("failed to update ConfigMap %s/%s: %w", c.namespace, c.name, err)
	}
	return nil
}
