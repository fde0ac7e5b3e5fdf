// Package derive resolves which automatically implementable capabilities each
// generated type carries. Requests come from configuration as directives; the
// resolver applies them per type and elides capabilities a type cannot
// soundly support.
package derive

import (
	"fmt"
	"strings"

	"github.com/kube-rs/kopium/pkg/typegraph"
)

// TargetKind scopes a directive to a class of generated types.
type TargetKind uint8

const (
	// TargetAll applies to every generated type.
	TargetAll TargetKind = iota
	// TargetType applies to one named type only.
	TargetType
	// TargetComposites applies to record types.
	TargetComposites
	// TargetEnums applies to enumerated types, optionally unit-variant only.
	TargetEnums
)

// Directive is one requested capability and the types it applies to.
type Directive struct {
	Target TargetKind
	// TypeName constrains TargetType directives.
	TypeName string
	// UnitOnly constrains TargetEnums to unit-variant enumerations.
	UnitOnly   bool
	Capability typegraph.Capability
}

// Parse interprets a directive string. Accepted forms:
//
//	equality                        every type
//	MyTypeGroups=equality           a single named type
//	@composite=equality             all record types
//	@enum=equality                  all enumerated types
//	@enum:unit=equality             unit-variant enumerations only
func Parse(s string) (Directive, error) {
	target, capability, scoped := strings.Cut(s, "=")
	if !scoped {
		c, err := parseCapability(s)
		return Directive{Target: TargetAll, Capability: c}, err
	}
	c, err := parseCapability(capability)
	if err != nil {
		return Directive{}, err
	}
	if !strings.HasPrefix(target, "@") {
		if target == "" {
			return Directive{}, fmt.Errorf("directive %q has an empty type name", s)
		}
		return Directive{Target: TargetType, TypeName: target, Capability: c}, nil
	}
	switch target {
	case "@composite", "@struct":
		return Directive{Target: TargetComposites, Capability: c}, nil
	case "@enum":
		return Directive{Target: TargetEnums, Capability: c}, nil
	case "@enum:unit", "@enum:simple":
		return Directive{Target: TargetEnums, UnitOnly: true, Capability: c}, nil
	}
	return Directive{}, fmt.Errorf("unknown directive target %q", target)
}

func parseCapability(s string) (typegraph.Capability, error) {
	c := typegraph.Capability(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case typegraph.CapEquality, typegraph.CapOrdering, typegraph.CapDefault,
		typegraph.CapReflection, typegraph.CapBuilder:
		return c, nil
	case "":
		return "", fmt.Errorf("empty capability name")
	}
	// user-defined capabilities pass through for downstream emitters
	return c, nil
}

// AppliesTo reports whether the directive covers the given type.
func (d Directive) AppliesTo(t *typegraph.Type) bool {
	switch d.Target {
	case TargetAll:
		return true
	case TargetType:
		return t.Name == d.TypeName
	case TargetComposites:
		return t.Kind == typegraph.KindComposite
	case TargetEnums:
		if d.UnitOnly {
			return t.Kind == typegraph.KindEnum
		}
		return t.Kind == typegraph.KindEnum || t.Kind == typegraph.KindUnion
	}
	return false
}

// Options tunes resolution.
type Options struct {
	// SmartElision drops default-construction from composites whose required
	// fields have no derivable default, instead of failing downstream.
	SmartElision bool
}

// Resolve decorates every type in a frozen-pending graph with the subset of
// the requested capabilities it can legally support. Resolution depends only
// on the graph's shapes, never on iteration order.
func Resolve(g *typegraph.Graph, directives []Directive, opts Options) {
	defaults := newDefaultMemo(g)
	for _, t := range g.Types() {
		caps := typegraph.CapabilitySet{}
		for _, d := range directives {
			if d.AppliesTo(t) {
				caps.Add(d.Capability)
			}
		}

		isEnumLike := t.Kind == typegraph.KindEnum || t.Kind == typegraph.KindUnion
		if caps.Has(typegraph.CapBuilder) && isEnumLike {
			// builder-style construction has no meaning for variant types
			caps.Remove(typegraph.CapBuilder)
		}
		if caps.Has(typegraph.CapDefault) {
			if isEnumLike || (opts.SmartElision && !defaults.defaultable(t.Name)) {
				caps.Remove(typegraph.CapDefault)
			}
		}
		if caps.Has(typegraph.CapOrdering) && containsOpaque(t) {
			caps.Remove(typegraph.CapOrdering)
		}

		t.Capabilities = caps
	}
}

func containsOpaque(t *typegraph.Type) bool {
	for i := range t.Fields {
		if refContains(&t.Fields[i].Type, typegraph.ExtJSON) {
			return true
		}
	}
	for i := range t.Variants {
		if t.Variants[i].Type != nil && refContains(t.Variants[i].Type, typegraph.ExtJSON) {
			return true
		}
	}
	return false
}

func refContains(r *typegraph.Ref, e typegraph.External) bool {
	if r.Kind == typegraph.RefExternal && r.External == e {
		return true
	}
	if r.Elem != nil {
		return refContains(r.Elem, e)
	}
	return false
}

// defaultMemo computes default-constructibility per type. The result is a
// property of the frozen graph, so memoization cannot observe ordering.
type defaultMemo struct {
	g       *typegraph.Graph
	results map[string]bool
	visited map[string]struct{}
}

func newDefaultMemo(g *typegraph.Graph) *defaultMemo {
	return &defaultMemo{g: g, results: map[string]bool{}, visited: map[string]struct{}{}}
}

func (m *defaultMemo) defaultable(name string) bool {
	if r, ok := m.results[name]; ok {
		return r
	}
	if _, cyclic := m.visited[name]; cyclic {
		// a required self-referential field has no finite default
		return false
	}
	m.visited[name] = struct{}{}
	defer delete(m.visited, name)

	t, ok := m.g.Lookup(name)
	if !ok {
		return false
	}
	result := true
	if t.Kind != typegraph.KindComposite {
		// no designated default variant exists for enumerations
		result = false
	} else {
		for i := range t.Fields {
			f := &t.Fields[i]
			if f.Optional || f.DefaultWhenAbsent {
				continue
			}
			if !m.refDefaultable(&f.Type) {
				result = false
				break
			}
		}
	}
	m.results[name] = result
	return result
}

func (m *defaultMemo) refDefaultable(r *typegraph.Ref) bool {
	switch r.Kind {
	case typegraph.RefPrimitive:
		return true
	case typegraph.RefSequence, typegraph.RefMap:
		return true
	case typegraph.RefExternal:
		// canonical external types all have usable zero values
		return true
	case typegraph.RefForeign:
		// replacement types are opaque here; assume a usable zero value
		return true
	case typegraph.RefNamed:
		if r.Indirect {
			return true
		}
		return m.defaultable(r.Name)
	}
	return false
}
