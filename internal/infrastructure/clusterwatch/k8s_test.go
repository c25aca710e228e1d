package clusterwatch

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replicas(n int32) *int32 { return &n }

func createFakeWatcher(cfg *Config, objects ...runtime.Object) *K8sWatcher {
	clientset := fake.NewSimpleClientset(objects...)
	cfg = cfg.withDefaults()
	return &K8sWatcher{clientset: clientset, config: cfg, logger: cfg.Logger}
}

func testStatefulSet(namespace, name string, desired, ready, available int32) *appsv1.StatefulSet {
	return &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec:       appsv1.StatefulSetSpec{Replicas: replicas(desired)},
		Status: appsv1.StatefulSetStatus{
			ReadyReplicas:     ready,
			AvailableReplicas: available,
		},
	}
}

func TestK8sWatcher_Snapshot_AllReady(t *testing.T) {
	sts := testStatefulSet("default", "users-store", 3, 3, 3)
	watcher := createFakeWatcher(&Config{Namespace: "default", StatefulSetName: "users-store", Logger: slog.Default()}, sts)

	snap, err := watcher.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Recovered)
	assert.True(t, snap.PrimaryActive)
	assert.True(t, snap.TemplatePresent)
	assert.True(t, snap.Ready())
}

func TestK8sWatcher_Snapshot_NotAllReplicasReady(t *testing.T) {
	sts := testStatefulSet("default", "users-store", 3, 1, 1)
	watcher := createFakeWatcher(&Config{Namespace: "default", StatefulSetName: "users-store", Logger: slog.Default()}, sts)

	snap, err := watcher.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Recovered)
	assert.False(t, snap.PrimaryActive)
	assert.False(t, snap.Ready())
}

func TestK8sWatcher_Snapshot_NotRecovered(t *testing.T) {
	sts := testStatefulSet("default", "users-store", 3, 0, 0)
	watcher := createFakeWatcher(&Config{Namespace: "default", StatefulSetName: "users-store", Logger: slog.Default()}, sts)

	snap, err := watcher.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Recovered)
	assert.False(t, snap.Ready())
}

func TestK8sWatcher_Snapshot_MigrationMarkerPresent(t *testing.T) {
	sts := testStatefulSet("default", "users-store", 1, 1, 1)
	marker := &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: "users-migrated", Namespace: "default"}}
	watcher := createFakeWatcher(&Config{
		Namespace:          "default",
		StatefulSetName:    "users-store",
		MigrationConfigMap: "users-migrated",
		Logger:             slog.Default(),
	}, sts, marker)

	snap, err := watcher.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.TemplatePresent)
	assert.True(t, snap.Ready())
}

func TestK8sWatcher_Snapshot_MigrationMarkerMissing(t *testing.T) {
	sts := testStatefulSet("default", "users-store", 1, 1, 1)
	watcher := createFakeWatcher(&Config{
		Namespace:          "default",
		StatefulSetName:    "users-store",
		MigrationConfigMap: "users-migrated",
		Logger:             slog.Default(),
	}, sts)

	snap, err := watcher.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.TemplatePresent)
	assert.False(t, snap.Ready())
}

func TestK8sWatcher_Snapshot_StatefulSetNotFound(t *testing.T) {
	watcher := createFakeWatcher(&Config{Namespace: "default", StatefulSetName: "missing", MaxRetries: 0, Logger: slog.Default()})

	_, err := watcher.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestK8sWatcher_RetryWithBackoff_EventualSuccess(t *testing.T) {
	watcher := createFakeWatcher(&Config{Namespace: "default", StatefulSetName: "users-store", Logger: slog.Default()})

	attempts := 0
	err := watcher.retryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return fmt.Errorf("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestK8sWatcher_Close(t *testing.T) {
	watcher := createFakeWatcher(&Config{Namespace: "default", StatefulSetName: "users-store", Logger: slog.Default()})
	assert.NoError(t, watcher.Close())
	assert.NoError(t, watcher.Close())
}
