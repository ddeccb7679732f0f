package cluster

import (
	"context"
	"fmt"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"cforge/internal/buildjob"
	cforgev1 "cforge/pkg/apis/cforge/v1"
)

// Client manages build workloads in a single namespace.
type Client interface {
	// Namespace returns the namespace definitions and runs live in.
	Namespace() string

	GetDefinition(ctx context.Context, name string) (*batchv1.CronJob, error)

	// ListDefinitions lists CronJobs labelled as owned by owner. An empty
	// owner lists every CronJob managed by cforge.
	ListDefinitions(ctx context.Context, owner string) ([]batchv1.CronJob, error)

	CreateDefinition(ctx context.Context, cj *batchv1.CronJob) error

	// DeleteDefinition deletes a CronJob. A non-empty precondition is the
	// resourceVersion the object must still have; otherwise the API answers
	// with a Conflict.
	DeleteDefinition(ctx context.Context, name, precondition string, propagation metav1.DeletionPropagation) error

	CreateRun(ctx context.Context, job *batchv1.Job) error

	GetCForge(ctx context.Context, namespace, name string) (*cforgev1.CForge, error)

	// UpdateCForgeStatus writes the status subresource of a CForge.
	UpdateCForgeStatus(ctx context.Context, cf *cforgev1.CForge) error

	// RecordEvent attaches a Kubernetes Event to obj.
	RecordEvent(ctx context.Context, obj client.Object, eventType, reason, message string) error
}

// NewScheme returns a scheme with the built-in Kubernetes types and the
// CForge API registered.
func NewScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(cforgev1.AddToScheme(scheme))
	return scheme
}

type kubernetesClient struct {
	client.Client
	namespace string
}

// NewKubernetesClient creates a Client talking to the cluster described by
// config.
func NewKubernetesClient(config *rest.Config, namespace string) (Client, error) {
	k8sClient, err := client.New(config, client.Options{
		Scheme: NewScheme(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	return New(k8sClient, namespace), nil
}

// New wraps an existing controller-runtime client. The client's scheme must
// include the types registered by NewScheme.
func New(c client.Client, namespace string) Client {
	return &kubernetesClient{Client: c, namespace: namespace}
}

func (k *kubernetesClient) Namespace() string {
	return k.namespace
}

func (k *kubernetesClient) GetDefinition(ctx context.Context, name string) (*batchv1.CronJob, error) {
	cj := &batchv1.CronJob{}
	key := client.ObjectKey{Name: name, Namespace: k.namespace}

	if err := k.Get(ctx, key, cj); err != nil {
		return nil, err
	}

	return cj, nil
}

func (k *kubernetesClient) ListDefinitions(ctx context.Context, owner string) ([]batchv1.CronJob, error) {
	selector := client.MatchingLabels{buildjob.ManagedByLabel: buildjob.ManagedByValue}
	if owner != "" {
		selector[buildjob.OwnerLabel] = owner
	}

	list := &batchv1.CronJobList{}
	if err := k.List(ctx, list, client.InNamespace(k.namespace), selector); err != nil {
		return nil, err
	}

	return list.Items, nil
}

func (k *kubernetesClient) CreateDefinition(ctx context.Context, cj *batchv1.CronJob) error {
	cj.Namespace = k.namespace
	return k.Create(ctx, cj)
}

func (k *kubernetesClient) DeleteDefinition(ctx context.Context, name, precondition string, propagation metav1.DeletionPropagation) error {
	cj := &batchv1.CronJob{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: k.namespace,
		},
	}

	opts := []client.DeleteOption{client.PropagationPolicy(propagation)}
	if precondition != "" {
		opts = append(opts, client.Preconditions{ResourceVersion: &precondition})
	}

	return k.Delete(ctx, cj, opts...)
}

func (k *kubernetesClient) CreateRun(ctx context.Context, job *batchv1.Job) error {
	job.Namespace = k.namespace
	return k.Create(ctx, job)
}

func (k *kubernetesClient) GetCForge(ctx context.Context, namespace, name string) (*cforgev1.CForge, error) {
	cf := &cforgev1.CForge{}
	if err := k.Get(ctx, client.ObjectKey{Name: name, Namespace: namespace}, cf); err != nil {
		return nil, err
	}
	return cf, nil
}

func (k *kubernetesClient) UpdateCForgeStatus(ctx context.Context, cf *cforgev1.CForge) error {
	return k.Status().Update(ctx, cf)
}

func (k *kubernetesClient) RecordEvent(ctx context.Context, obj client.Object, eventType, reason, message string) error {
	gvk, err := k.GroupVersionKindFor(obj)
	if err != nil {
		return fmt.Errorf("failed to get GroupVersionKind for object: %w", err)
	}

	namespace := obj.GetNamespace()
	if namespace == "" {
		namespace = k.namespace
	}

	now := metav1.NewTime(time.Now())
	event := &corev1.Event{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: obj.GetName() + "-",
			Namespace:    namespace,
		},
		InvolvedObject: corev1.ObjectReference{
			APIVersion:      gvk.GroupVersion().String(),
			Kind:            gvk.Kind,
			Name:            obj.GetName(),
			Namespace:       obj.GetNamespace(),
			UID:             obj.GetUID(),
			ResourceVersion: obj.GetResourceVersion(),
		},
		Reason:         reason,
		Message:        message,
		Type:           eventType,
		Source:         corev1.EventSource{Component: "cforge"},
		FirstTimestamp: now,
		LastTimestamp:  now,
		Count:          1,
	}

	if err := k.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create Kubernetes Event: %w", err)
	}

	return nil
}
