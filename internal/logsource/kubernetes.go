package logsource

import (
	"context"
	"fmt"
	"time"

	"github.com/tinytelemetry/podtrail/internal/model"
	authorizationv1 "k8s.io/api/authorization/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// KubeConfig holds parameters for the Kubernetes API backend.
type KubeConfig struct {
	Namespace  string
	Kubeconfig string               // empty = in-cluster, then the default kubeconfig
	Client     kubernetes.Interface // optional, used as-is when set
}

// KubeBackend polls pod logs through the Kubernetes API.
type KubeBackend struct {
	client    kubernetes.Interface
	namespace string
	inCluster bool
}

// NewKubeBackend builds a clientset from the in-cluster service account,
// falling back to a kubeconfig file.
func NewKubeBackend(cfg KubeConfig) (*KubeBackend, error) {
	if cfg.Client != nil {
		return &KubeBackend{client: cfg.Client, namespace: cfg.Namespace}, nil
	}

	inCluster := false
	restCfg, err := rest.InClusterConfig()
	if err == nil && cfg.Kubeconfig == "" {
		inCluster = true
	} else {
		kubeconfig := cfg.Kubeconfig
		if kubeconfig == "" {
			kubeconfig = clientcmd.NewDefaultClientConfigLoadingRules().GetDefaultFilename()
		}
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("logsource: k8s config: %w", err)
		}
	}

	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("logsource: k8s clientset: %w", err)
	}
	return &KubeBackend{client: client, namespace: cfg.Namespace, inCluster: inCluster}, nil
}

func (k *KubeBackend) Name() string { return "kubernetes" }

// InCluster reports whether the backend authenticated with the pod's service account.
func (k *KubeBackend) InCluster() bool { return k.inCluster }

// Connect asks the API server whether the current identity may get pods/log.
func (k *KubeBackend) Connect(ctx context.Context) error {
	review := &authorizationv1.SelfSubjectAccessReview{
		Spec: authorizationv1.SelfSubjectAccessReviewSpec{
			ResourceAttributes: &authorizationv1.ResourceAttributes{
				Namespace:   k.namespace,
				Verb:        "get",
				Resource:    "pods",
				Subresource: "log",
			},
		},
	}
	res, err := k.client.AuthorizationV1().SelfSubjectAccessReviews().Create(ctx, review, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("logsource: access review: %w", err)
	}
	if !res.Status.Allowed {
		return fmt.Errorf("%w in namespace %s: %s", ErrNotAuthorized, k.namespace, res.Status.Reason)
	}
	return nil
}

// ListSources lists pods matching selector and derives one source per pod.
func (k *KubeBackend) ListSources(ctx context.Context, namespace, selector string) ([]model.SourceID, error) {
	pods, err := k.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("logsource: list pods: %w", err)
	}
	return sourcesFromPods(namespace, pods.Items), nil
}

// FetchWindow reads the pod log subresource with timestamps for the window.
func (k *KubeBackend) FetchWindow(ctx context.Context, id model.SourceID, w model.Window) (string, error) {
	opts, err := podLogOptions(id, w)
	if err != nil {
		return "", err
	}
	raw, err := k.client.CoreV1().Pods(id.Namespace).GetLogs(id.Pod, opts).DoRaw(ctx)
	if err != nil {
		return "", fmt.Errorf("logsource: logs %s: %w", id.Pod, err)
	}
	return string(raw), nil
}

func podLogOptions(id model.SourceID, w model.Window) (*corev1.PodLogOptions, error) {
	opts := &corev1.PodLogOptions{
		Container:  id.Container,
		Timestamps: true,
	}
	if w.LimitBytes > 0 {
		limit := int64(w.LimitBytes)
		opts.LimitBytes = &limit
	}
	if w.SinceTime != "" {
		since, err := time.Parse(time.RFC3339Nano, w.SinceTime)
		if err != nil {
			return nil, fmt.Errorf("logsource: parse since-time %q: %w", w.SinceTime, err)
		}
		t := metav1.NewTime(since)
		opts.SinceTime = &t
	}
	return opts, nil
}
