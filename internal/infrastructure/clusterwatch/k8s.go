package clusterwatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// Config configures a K8sWatcher.
type Config struct {
	// Namespace the StatefulSet lives in.
	Namespace string
	// StatefulSetName is the backing document store's StatefulSet.
	StatefulSetName string
	// MigrationConfigMap, if set, is read to decide TemplatePresent: its
	// existence means the sentinel schema migration has run. Left empty,
	// TemplatePresent always reports true (for deployments that have no
	// separate migration marker).
	MigrationConfigMap string

	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	Logger          *slog.Logger
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.Timeout == 0 {
		out.Timeout = 10 * time.Second
	}
	if out.MaxRetries == 0 {
		out.MaxRetries = 3
	}
	if out.RetryBackoff == 0 {
		out.RetryBackoff = 100 * time.Millisecond
	}
	if out.MaxRetryBackoff == 0 {
		out.MaxRetryBackoff = 5 * time.Second
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}

// K8sWatcher implements Watcher against a real Kubernetes API server,
// inspecting the StatefulSet backing the document store.
type K8sWatcher struct {
	clientset kubernetes.Interface
	config    *Config
	logger    *slog.Logger
}

// NewK8sWatcher loads in-cluster config and verifies API connectivity
// before returning.
func NewK8sWatcher(cfg *Config) (*K8sWatcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("clusterwatch: nil config")
	}
	cfg = cfg.withDefaults()
	if cfg.StatefulSetName == "" {
		return nil, fmt.Errorf("clusterwatch: StatefulSetName is required")
	}

	k8sConfig, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("clusterwatch: load in-cluster config: %w", err)
	}
	k8sConfig.Timeout = cfg.Timeout

	clientset, err := kubernetes.NewForConfig(k8sConfig)
	if err != nil {
		return nil, fmt.Errorf("clusterwatch: create clientset: %w", err)
	}

	w := &K8sWatcher{clientset: clientset, config: cfg, logger: cfg.Logger}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if _, err := w.Snapshot(ctx); err != nil {
		return nil, fmt.Errorf("clusterwatch: initial snapshot failed: %w", err)
	}

	w.logger.Info("clusterwatch initialized", "namespace", cfg.Namespace, "statefulset", cfg.StatefulSetName)
	return w, nil
}

// Snapshot inspects the StatefulSet and, if configured, the migration
// marker ConfigMap, and reports the current readiness trio.
func (w *K8sWatcher) Snapshot(ctx context.Context) (Snapshot, error) {
	var sts *appsv1.StatefulSet
	err := w.retryWithBackoff(ctx, func() error {
		var getErr error
		sts, getErr = w.clientset.AppsV1().StatefulSets(w.config.Namespace).Get(ctx, w.config.StatefulSetName, metav1.GetOptions{})
		return getErr
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("clusterwatch: get statefulset %s/%s: %w", w.config.Namespace, w.config.StatefulSetName, err)
	}

	snap := Snapshot{
		Recovered:       sts.Status.AvailableReplicas > 0,
		PrimaryActive:   sts.Status.ReadyReplicas == desiredReplicas(sts),
		TemplatePresent: true,
	}

	if w.config.MigrationConfigMap != "" {
		snap.TemplatePresent = w.migrationMarkerExists(ctx)
	}

	return snap, nil
}

func desiredReplicas(sts *appsv1.StatefulSet) int32 {
	if sts.Spec.Replicas == nil {
		return 1
	}
	return *sts.Spec.Replicas
}

func (w *K8sWatcher) migrationMarkerExists(ctx context.Context) bool {
	var exists bool
	err := w.retryWithBackoff(ctx, func() error {
		_, getErr := w.clientset.CoreV1().ConfigMaps(w.config.Namespace).Get(ctx, w.config.MigrationConfigMap, metav1.GetOptions{})
		if k8serrors.IsNotFound(getErr) {
			exists = false
			return nil
		}
		if getErr != nil {
			return getErr
		}
		exists = true
		return nil
	})
	if err != nil {
		w.logger.Warn("failed to check migration marker", "error", err)
		return false
	}
	return exists
}

// Close releases the clientset reference.
func (w *K8sWatcher) Close() error {
	w.clientset = nil
	return nil
}

func (w *K8sWatcher) retryWithBackoff(ctx context.Context, operation func() error) error {
	backoff := w.config.RetryBackoff

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return err
		}
		if attempt == w.config.MaxRetries {
			return err
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff *= 2
		if backoff > w.config.MaxRetryBackoff {
			backoff = w.config.MaxRetryBackoff
		}
	}

	return fmt.Errorf("operation failed after %d retries", w.config.MaxRetries)
}

func isRetryableError(err error) bool {
	if k8serrors.IsTimeout(err) || k8serrors.IsServerTimeout(err) {
		return true
	}
	if k8serrors.IsInternalError(err) || k8serrors.IsServiceUnavailable(err) {
		return true
	}
	if k8serrors.IsTooManyRequests(err) {
		return true
	}
	if k8serrors.IsUnauthorized(err) || k8serrors.IsForbidden(err) {
		return false
	}
	if k8serrors.IsNotFound(err) || k8serrors.IsInvalid(err) {
		return false
	}
	return true
}
