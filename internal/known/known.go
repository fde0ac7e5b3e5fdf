// Package known recognizes schema subtrees that match well-known Kubernetes
// shapes. Matches are substituted with canonical external types instead of
// synthesizing a bespoke definition for every CRD that inlines them.
package known

import (
	"github.com/kube-rs/kopium/internal/schema"
	"github.com/kube-rs/kopium/pkg/typegraph"
)

// conditionFields is the canonical metav1.Condition member set.
var conditionFields = []string{"type", "status", "reason", "message", "lastTransitionTime"}

// objectReferenceFields is the full corev1.ObjectReference member set.
// A match may use any subset, but must at least name a kind or a name.
var objectReferenceFields = map[string]struct{}{
	"apiVersion":      {},
	"fieldPath":       {},
	"kind":            {},
	"name":            {},
	"namespace":       {},
	"resourceVersion": {},
	"uid":             {},
}

// Detector matches schema nodes against known shapes, honoring per-shape
// suppression from configuration.
type Detector struct {
	SuppressCondition       bool
	SuppressObjectReference bool
}

// ConditionItems reports whether an array item schema matches the canonical
// Condition pattern: the five standard members present, with type and status
// required.
func (d Detector) ConditionItems(items *schema.Node) bool {
	if d.SuppressCondition || items == nil || items.Kind != schema.KindObject {
		return false
	}
	for _, name := range conditionFields {
		if _, ok := items.Lookup(name); !ok {
			return false
		}
	}
	return items.IsRequired("type") && items.IsRequired("status")
}

// ObjectReference reports whether an object schema is a subset of the
// canonical ObjectReference members, all plain strings.
func (d Detector) ObjectReference(n *schema.Node) bool {
	if d.SuppressObjectReference || n == nil || n.Kind != schema.KindObject || len(n.Properties) == 0 {
		return false
	}
	var hasKind, hasName bool
	for _, p := range n.Properties {
		if _, ok := objectReferenceFields[p.Name]; !ok {
			return false
		}
		if p.Schema.Kind != schema.KindScalar || p.Schema.Scalar != schema.ScalarString || p.Schema.IntOrString {
			return false
		}
		switch p.Name {
		case "kind":
			hasKind = true
		case "name":
			hasName = true
		}
	}
	return hasKind || hasName
}

// Substitute returns the external type replacing an object node, if any.
func (d Detector) Substitute(n *schema.Node) (typegraph.External, bool) {
	if d.ObjectReference(n) {
		return typegraph.ExtObjectReference, true
	}
	return typegraph.ExtNone, false
}
