package cluster

import (
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// IgnoreNotFound returns nil for NotFound errors, so deletes are idempotent.
func IgnoreNotFound(err error) error {
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}

// IgnoreAlreadyExists returns nil for AlreadyExists errors, so creates are
// idempotent.
func IgnoreAlreadyExists(err error) error {
	if apierrors.IsAlreadyExists(err) {
		return nil
	}
	return err
}

// IsRetryable reports whether err is worth retrying later. Everything that
// is not a definitive answer from the API about the object is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case apierrors.IsNotFound(err),
		apierrors.IsAlreadyExists(err),
		apierrors.IsInvalid(err),
		apierrors.IsBadRequest(err),
		apierrors.IsForbidden(err),
		apierrors.IsMethodNotSupported(err):
		return false
	}
	return true
}
