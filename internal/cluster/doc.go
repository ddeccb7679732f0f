// Package cluster is the controller's only path to the Kubernetes API.
//
// Client is a narrow, namespace-scoped view over the objects the reconciler
// touches: build CronJobs ("definitions"), build Jobs ("runs"), the status
// subresource of CForge resources, and Events. The production implementation
// wraps a controller-runtime client; tests build one over the
// controller-runtime fake client.
//
// Errors are returned unwrapped from the API machinery so callers can
// classify them with the k8s.io/apimachinery/pkg/api/errors helpers.
package cluster
