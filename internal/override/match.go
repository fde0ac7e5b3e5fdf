package override

import (
	"bytes"

	apiextv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
)

// Structural matching considers only the schema fields that shape generated
// types. Validation-only fields (bounds, patterns, descriptions, defaults)
// are ignored on both sides.

// subsetMatch reports whether every field the pattern sets is present in the
// target with a matching value. Unset pattern fields always pass, so an empty
// pattern matches everything.
func subsetMatch(pat, target *apiextv1.JSONSchemaProps) bool {
	if pat == nil {
		return true
	}
	if target == nil {
		return false
	}
	if pat.Type != "" && pat.Type != target.Type {
		return false
	}
	if pat.Format != "" && pat.Format != target.Format {
		return false
	}
	if !literalsSubset(pat.Enum, target.Enum) {
		return false
	}
	if !itemsSubset(pat.Items, target.Items) {
		return false
	}
	if !propsSubset(pat.Properties, target.Properties) {
		return false
	}
	if !additionalSubset(pat.AdditionalProperties, target.AdditionalProperties) {
		return false
	}
	if !stringsSubset(pat.Required, target.Required) {
		return false
	}
	if !branchesSubset(pat.OneOf, target.OneOf) ||
		!branchesSubset(pat.AnyOf, target.AnyOf) ||
		!branchesSubset(pat.AllOf, target.AllOf) {
		return false
	}
	if pat.Not != nil && (target.Not == nil || !subsetMatch(pat.Not, target.Not)) {
		return false
	}
	if pat.XIntOrString && !target.XIntOrString {
		return false
	}
	if !boolPtrSubset(pat.XPreserveUnknownFields, target.XPreserveUnknownFields) {
		return false
	}
	if !stringPtrSubset(pat.XListType, target.XListType) ||
		!stringPtrSubset(pat.XMapType, target.XMapType) {
		return false
	}
	return true
}

// exhaustiveMatch reports field-for-field equality over the shaping fields.
// Absent must pair with absent.
func exhaustiveMatch(pat, target *apiextv1.JSONSchemaProps) bool {
	if pat == nil || target == nil {
		return pat == nil && target == nil
	}
	if pat.Type != target.Type || pat.Format != target.Format {
		return false
	}
	if len(pat.Enum) != len(target.Enum) {
		return false
	}
	for i := range pat.Enum {
		if !bytes.Equal(pat.Enum[i].Raw, target.Enum[i].Raw) {
			return false
		}
	}
	if !itemsExhaustive(pat.Items, target.Items) {
		return false
	}
	if len(pat.Properties) != len(target.Properties) {
		return false
	}
	for name, pp := range pat.Properties {
		tp, ok := target.Properties[name]
		if !ok || !exhaustiveMatch(&pp, &tp) {
			return false
		}
	}
	if !additionalExhaustive(pat.AdditionalProperties, target.AdditionalProperties) {
		return false
	}
	if len(pat.Required) != len(target.Required) || !stringsSubset(pat.Required, target.Required) {
		return false
	}
	if !branchesExhaustive(pat.OneOf, target.OneOf) ||
		!branchesExhaustive(pat.AnyOf, target.AnyOf) ||
		!branchesExhaustive(pat.AllOf, target.AllOf) {
		return false
	}
	if (pat.Not == nil) != (target.Not == nil) {
		return false
	}
	if pat.Not != nil && !exhaustiveMatch(pat.Not, target.Not) {
		return false
	}
	if pat.XIntOrString != target.XIntOrString {
		return false
	}
	if !boolPtrEqual(pat.XPreserveUnknownFields, target.XPreserveUnknownFields) {
		return false
	}
	return stringPtrEqual(pat.XListType, target.XListType) &&
		stringPtrEqual(pat.XMapType, target.XMapType)
}

func propsSubset(pat, target map[string]apiextv1.JSONSchemaProps) bool {
	if len(pat) > len(target) {
		return false
	}
	for name, pp := range pat {
		tp, ok := target[name]
		if !ok || !subsetMatch(&pp, &tp) {
			return false
		}
	}
	return true
}

func stringsSubset(pat, target []string) bool {
	for _, p := range pat {
		found := false
		for _, t := range target {
			if p == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func literalsSubset(pat, target []apiextv1.JSON) bool {
	for i := range pat {
		found := false
		for j := range target {
			if bytes.Equal(pat[i].Raw, target[j].Raw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// branchesSubset: every pattern branch must subset-match some target branch.
func branchesSubset(pat, target []apiextv1.JSONSchemaProps) bool {
	if len(pat) > len(target) {
		return false
	}
	for i := range pat {
		found := false
		for j := range target {
			if subsetMatch(&pat[i], &target[j]) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func branchesExhaustive(pat, target []apiextv1.JSONSchemaProps) bool {
	if len(pat) != len(target) {
		return false
	}
	for i := range pat {
		if !exhaustiveMatch(&pat[i], &target[i]) {
			return false
		}
	}
	return true
}

func itemsSubset(pat, target *apiextv1.JSONSchemaPropsOrArray) bool {
	if pat == nil {
		return true
	}
	if target == nil {
		return false
	}
	switch {
	case pat.Schema != nil && target.Schema != nil:
		return subsetMatch(pat.Schema, target.Schema)
	case pat.Schema != nil:
		for i := range target.JSONSchemas {
			if subsetMatch(pat.Schema, &target.JSONSchemas[i]) {
				return true
			}
		}
		return false
	case target.Schema != nil:
		for i := range pat.JSONSchemas {
			if !subsetMatch(&pat.JSONSchemas[i], target.Schema) {
				return false
			}
		}
		return true
	default:
		return branchesSubset(pat.JSONSchemas, target.JSONSchemas)
	}
}

func itemsExhaustive(pat, target *apiextv1.JSONSchemaPropsOrArray) bool {
	if pat == nil || target == nil {
		return pat == nil && target == nil
	}
	if (pat.Schema == nil) != (target.Schema == nil) {
		return false
	}
	if pat.Schema != nil {
		return exhaustiveMatch(pat.Schema, target.Schema)
	}
	return branchesExhaustive(pat.JSONSchemas, target.JSONSchemas)
}

func additionalSubset(pat, target *apiextv1.JSONSchemaPropsOrBool) bool {
	if pat == nil {
		return true
	}
	if target == nil {
		return false
	}
	if pat.Schema != nil {
		return target.Schema != nil && subsetMatch(pat.Schema, target.Schema)
	}
	if target.Schema != nil {
		return false
	}
	return pat.Allows == target.Allows
}

func additionalExhaustive(pat, target *apiextv1.JSONSchemaPropsOrBool) bool {
	if pat == nil || target == nil {
		return pat == nil && target == nil
	}
	if (pat.Schema == nil) != (target.Schema == nil) {
		return false
	}
	if pat.Schema != nil {
		return exhaustiveMatch(pat.Schema, target.Schema)
	}
	return pat.Allows == target.Allows
}

func boolPtrSubset(pat, target *bool) bool {
	if pat == nil {
		return true
	}
	return target != nil && *pat == *target
}

func stringPtrSubset(pat, target *string) bool {
	if pat == nil {
		return true
	}
	return target != nil && *pat == *target
}

func boolPtrEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
