// Package naming generates names for one-off build Jobs.
package naming

import (
	"fmt"
	"strings"

	utilrand "k8s.io/apimachinery/pkg/util/rand"
	"k8s.io/apimachinery/pkg/util/validation"
)

const (
	// SuffixLength is the number of random characters appended to a run name.
	SuffixLength = 8

	// MaxBaseLength is the longest base name that still fits a DNS-1123 label
	// once the separator and suffix are appended.
	MaxBaseLength = validation.DNS1123LabelMaxLength - SuffixLength - 1
)

// Generate returns base followed by a dash and a random lowercase
// alphanumeric suffix. Long bases are truncated so the result is a valid
// object name. Uniqueness is not checked; callers retry on AlreadyExists.
func Generate(base string) string {
	return Truncate(base) + "-" + utilrand.String(SuffixLength)
}

// Truncate shortens base to MaxBaseLength, dropping trailing dashes that
// would otherwise double up with the separator.
func Truncate(base string) string {
	if len(base) > MaxBaseLength {
		base = base[:MaxBaseLength]
	}
	return strings.TrimRight(base, "-")
}

// Validate reports whether name can be used as a project (and CronJob) name.
func Validate(name string) error {
	if errs := validation.IsDNS1123Label(name); len(errs) > 0 {
		return fmt.Errorf("invalid name %q: %s", name, strings.Join(errs, "; "))
	}
	return nil
}
