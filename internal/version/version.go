// Package version selects the operative schema version of a multi-version
// resource, and optionally combines compatible versions into one shape.
package version

import (
	"fmt"
	"sort"

	utilversion "k8s.io/apimachinery/pkg/version"
)

// SortDescending orders version labels from most to least preferred, using
// the same kube-aware ordering the apiserver applies to CRD versions: GA
// releases first (v2 before v1), then beta, then alpha, with non-conforming
// labels last in lexical order.
func SortDescending(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		return utilversion.CompareKubeAwareVersionStrings(labels[i], labels[j]) > 0
	})
}

// ReconcileError reports ambiguous or impossible version selection.
type ReconcileError struct {
	Pin       string
	Available []string
	Reason    string
}

func (e *ReconcileError) Error() string {
	if e.Pin != "" {
		return fmt.Sprintf("version %q not found, available versions are %v", e.Pin, e.Available)
	}
	return e.Reason
}
