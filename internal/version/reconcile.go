package version

import (
	"fmt"
	"sort"
	"strings"

	utilversion "k8s.io/apimachinery/pkg/version"

	"github.com/kube-rs/kopium/internal/schema"
)

// Candidate pairs one version label with its converted schema root.
type Candidate struct {
	Label   string
	Served  bool
	Storage bool
	Schema  *schema.Node
}

// Select picks the operative version. An explicit pin wins; otherwise the
// storage version, then the highest-priority served version, then the
// highest-priority version overall. Nothing is ever merged implicitly.
func Select(cands []Candidate, pin string) (Candidate, error) {
	if len(cands) == 0 {
		return Candidate{}, &ReconcileError{Reason: "resource declares no versions"}
	}
	if pin != "" {
		for _, c := range cands {
			if c.Label == pin {
				return c, nil
			}
		}
		available := make([]string, 0, len(cands))
		for _, c := range cands {
			available = append(available, c.Label)
		}
		SortDescending(available)
		return Candidate{}, &ReconcileError{Pin: pin, Available: available}
	}
	for _, c := range cands {
		if c.Storage {
			return c, nil
		}
	}
	best := -1
	for i, c := range cands {
		if best >= 0 && !preferred(c, cands[best]) {
			continue
		}
		best = i
	}
	return cands[best], nil
}

func preferred(a, b Candidate) bool {
	if a.Served != b.Served {
		return a.Served
	}
	return utilversion.CompareKubeAwareVersionStrings(a.Label, b.Label) > 0
}

// DivergenceError reports a field whose declared shape differs across
// versions in a way that cannot be unioned.
type DivergenceError struct {
	Path   string
	Reason string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("versions diverge at %s: %s", e.Path, e.Reason)
}

// Combine unions structurally compatible versions field by field. A property
// present in only some versions becomes optional in the merged shape; a
// property whose scalar kind differs across versions is an error, never a
// guess.
func Combine(cands []Candidate) (*schema.Node, error) {
	if len(cands) == 0 {
		return nil, &ReconcileError{Reason: "resource declares no versions"}
	}
	merged := cands[0].Schema
	for _, c := range cands[1:] {
		var err error
		merged, err = merge(merged, c.Schema, nil)
		if err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func merge(a, b *schema.Node, p []string) (*schema.Node, error) {
	at := p
	if len(at) == 0 {
		at = []string{"(root)"}
	}
	path := strings.Join(at, ".")

	if a.Kind != b.Kind {
		return nil, &DivergenceError{Path: path, Reason: fmt.Sprintf("node kinds differ (%d vs %d)", a.Kind, b.Kind)}
	}
	out := &schema.Node{
		Kind:             a.Kind,
		Scalar:           a.Scalar,
		Format:           a.Format,
		Reason:           a.Reason,
		ForeignType:      a.ForeignType,
		Nullable:         a.Nullable || b.Nullable,
		IntOrString:      a.IntOrString,
		PreserveUnknown:  a.PreserveUnknown || b.PreserveUnknown,
		EmbeddedResource: a.EmbeddedResource || b.EmbeddedResource,
		Description:      a.Description,
	}
	if out.Description == "" {
		out.Description = b.Description
	}

	switch a.Kind {
	case schema.KindScalar:
		if a.IntOrString != b.IntOrString {
			return nil, &DivergenceError{Path: path, Reason: "int-or-string in one version only"}
		}
		if a.Scalar != b.Scalar {
			return nil, &DivergenceError{Path: path, Reason: fmt.Sprintf("scalar kinds differ (%d vs %d)", a.Scalar, b.Scalar)}
		}
		if a.Format != b.Format {
			// widest representation wins downstream when no format is pinned
			out.Format = ""
		}

	case schema.KindObject:
		names := map[string]struct{}{}
		for _, prop := range a.Properties {
			names[prop.Name] = struct{}{}
		}
		for _, prop := range b.Properties {
			names[prop.Name] = struct{}{}
		}
		ordered := make([]string, 0, len(names))
		for name := range names {
			ordered = append(ordered, name)
		}
		sort.Strings(ordered)

		out.Required = map[string]struct{}{}
		for _, name := range ordered {
			an, aok := a.Lookup(name)
			bn, bok := b.Lookup(name)
			switch {
			case aok && bok:
				m, err := merge(an, bn, append(p, name))
				if err != nil {
					return nil, err
				}
				out.Properties = append(out.Properties, schema.Property{Name: name, Schema: m})
				if a.IsRequired(name) && b.IsRequired(name) {
					out.Required[name] = struct{}{}
				}
			case aok:
				out.Properties = append(out.Properties, schema.Property{Name: name, Schema: an})
			default:
				out.Properties = append(out.Properties, schema.Property{Name: name, Schema: bn})
			}
		}

	case schema.KindArray:
		m, err := merge(a.Items, b.Items, append(p, "[]"))
		if err != nil {
			return nil, err
		}
		out.Items = m

	case schema.KindMap:
		m, err := merge(a.Value, b.Value, append(p, "{}"))
		if err != nil {
			return nil, err
		}
		out.Value = m

	case schema.KindEnumeration:
		seen := map[string]struct{}{}
		for _, lit := range a.Literals {
			seen[lit.Value] = struct{}{}
			out.Literals = append(out.Literals, lit)
		}
		for _, lit := range b.Literals {
			if _, dup := seen[lit.Value]; !dup {
				out.Literals = append(out.Literals, lit)
			}
		}

	case schema.KindForeign:
		if a.ForeignType != b.ForeignType {
			return nil, &DivergenceError{Path: path, Reason: "override replacement types differ"}
		}

	case schema.KindUnion:
		if len(a.Variants) != len(b.Variants) {
			return nil, &DivergenceError{Path: path, Reason: "union arity differs"}
		}
		for i := range a.Variants {
			m, err := merge(a.Variants[i], b.Variants[i], append(p, fmt.Sprintf("oneOf[%d]", i)))
			if err != nil {
				return nil, err
			}
			out.Variants = append(out.Variants, m)
		}
	}
	return out, nil
}
