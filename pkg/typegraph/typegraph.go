// Package typegraph defines the output artifact of schema analysis: a named,
// deduplicated graph of generated types that an emitter lowers to source text.
//
// The graph is populated by a single analysis pass, decorated with capabilities,
// then frozen. Consumers must not observe a graph before it is frozen.
package typegraph

import (
	"fmt"
	"sort"
)

// TypeKind discriminates the closed set of generated type shapes.
type TypeKind uint8

const (
	// KindComposite is a record type with a fixed set of named fields.
	KindComposite TypeKind = iota
	// KindEnum is a closed set of unit variants backed by literal values.
	KindEnum
	// KindUnion is a tagged union over heterogeneous variant shapes.
	KindUnion
)

func (k TypeKind) String() string {
	switch k {
	case KindComposite:
		return "composite"
	case KindEnum:
		return "enum"
	case KindUnion:
		return "union"
	}
	return fmt.Sprintf("typekind(%d)", k)
}

// Primitive is a scalar leaf type.
type Primitive uint8

const (
	PrimString Primitive = iota
	PrimBool
	PrimInt32
	PrimInt64
	PrimFloat32
	PrimFloat64
	PrimDate
	PrimDateTime
)

func (p Primitive) String() string {
	switch p {
	case PrimString:
		return "string"
	case PrimBool:
		return "bool"
	case PrimInt32:
		return "int32"
	case PrimInt64:
		return "int64"
	case PrimFloat32:
		return "float32"
	case PrimFloat64:
		return "float64"
	case PrimDate:
		return "date"
	case PrimDateTime:
		return "date-time"
	}
	return fmt.Sprintf("primitive(%d)", p)
}

// External identifies a canonical, externally defined type substituted for a
// recognized schema shape instead of synthesizing a new one.
type External uint8

const (
	// ExtNone is the zero value; not a valid substitution.
	ExtNone External = iota
	// ExtIntOrString is the apimachinery intstr.IntOrString scalar.
	ExtIntOrString
	// ExtCondition is the canonical metav1.Condition status entry.
	ExtCondition
	// ExtObjectReference is the canonical corev1.ObjectReference.
	ExtObjectReference
	// ExtJSON is an arbitrary, schema-less JSON value.
	ExtJSON
)

func (e External) String() string {
	switch e {
	case ExtIntOrString:
		return "IntOrString"
	case ExtCondition:
		return "Condition"
	case ExtObjectReference:
		return "ObjectReference"
	case ExtJSON:
		return "JSON"
	}
	return fmt.Sprintf("external(%d)", e)
}

// RefKind discriminates type references.
type RefKind uint8

const (
	// RefPrimitive references a scalar leaf.
	RefPrimitive RefKind = iota
	// RefNamed is a non-owning handle to a generated type in the same graph.
	RefNamed
	// RefExternal references a canonical external type.
	RefExternal
	// RefSequence wraps an element reference in an ordered collection.
	RefSequence
	// RefMap wraps a value reference in a string-keyed map.
	RefMap
	// RefForeign references an externally provided type by verbatim name,
	// introduced by an override rule. Never resolved against the graph.
	RefForeign
)

// Ref is a non-owning reference to a type. Named references resolve by name
// against the owning graph; the graph is not a tree, so references never embed
// generated types directly.
type Ref struct {
	Kind     RefKind
	Prim     Primitive // valid when Kind == RefPrimitive
	Name     string    // valid when Kind is RefNamed or RefForeign
	External External  // valid when Kind == RefExternal
	Elem     *Ref      // valid when Kind is RefSequence or RefMap

	// Indirect marks a self-referential named reference that must be emitted
	// through a pointer or equivalent indirection to keep the type finite.
	Indirect bool
}

// Field is a single member of a composite type. Field order is the schema's
// declared property order, lexical when the source does not guarantee one.
type Field struct {
	// Name is the raw schema property name, unsanitized for any target language.
	Name     string
	Type     Ref
	Optional bool
	// DefaultWhenAbsent is set on required sequence/map fields whose empty form
	// is indistinguishable from absence; absent values decode as empty.
	DefaultWhenAbsent bool
	Doc               string
}

// Variant is a single member of an enum or union type.
type Variant struct {
	// Name is a case-normalized variant identifier.
	Name string
	// Literal preserves the original literal spelling for enum variants.
	Literal string
	// IsString distinguishes string literals from integer literals.
	IsString bool
	// Type wraps the variant's payload shape for unions; nil for unit variants.
	Type *Ref
}

// Type is one generated type owned by a Graph.
type Type struct {
	// Name is unique within the owning graph.
	Name string
	// Path is the schema path the type was synthesized from, for diagnostics.
	Path string
	// Level is the nesting depth the type was found at (root is 0).
	Level    int
	Kind     TypeKind
	Doc      string
	Fields   []Field   // composite only
	Variants []Variant // enum and union only
	// SelfReferential is set when the type is reachable from itself.
	SelfReferential bool
	// Capabilities is populated by the derivation resolver before freezing.
	Capabilities CapabilitySet
}

// IsRoot reports whether this is the top-level resource type.
func (t *Type) IsRoot() bool { return t.Level == 0 }

// Diagnostic is a non-fatal analysis note, produced only in relaxed mode.
type Diagnostic struct {
	Path    string
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Path, d.Message)
}

// Graph owns all generated types produced by one analysis invocation.
// It is mutable while being populated and read-only once frozen.
type Graph struct {
	types  []*Type
	byName map[string]*Type
	frozen bool

	// Diagnostics collects relaxed-mode downgrade notes in analysis order.
	Diagnostics []Diagnostic
}

// New returns an empty, unfrozen graph.
func New() *Graph {
	return &Graph{byName: map[string]*Type{}}
}

// Add inserts a type into the graph. Names must be unique and the graph must
// not be frozen.
func (g *Graph) Add(t *Type) error {
	if g.frozen {
		return fmt.Errorf("adding %q: graph is frozen", t.Name)
	}
	if t.Name == "" {
		return fmt.Errorf("adding type at %q: empty name", t.Path)
	}
	if _, ok := g.byName[t.Name]; ok {
		return fmt.Errorf("adding %q: name already present", t.Name)
	}
	g.byName[t.Name] = t
	g.types = append(g.types, t)
	return nil
}

// Lookup resolves a generated type by name.
func (g *Graph) Lookup(name string) (*Type, bool) {
	t, ok := g.byName[name]
	return t, ok
}

// Types returns all generated types in insertion order. Callers must not
// mutate the returned slice.
func (g *Graph) Types() []*Type { return g.types }

// Len returns the number of generated types.
func (g *Graph) Len() int { return len(g.types) }

// Freeze makes the graph read-only. Idempotent.
func (g *Graph) Freeze() { g.frozen = true }

// Frozen reports whether the graph has been frozen.
func (g *Graph) Frozen() bool { return g.frozen }

// Validate checks the graph invariants: every named reference resolves and
// self-references are indirect.
func (g *Graph) Validate() error {
	for _, t := range g.types {
		for i := range t.Fields {
			if err := g.validateRef(t, &t.Fields[i].Type); err != nil {
				return err
			}
		}
		for i := range t.Variants {
			if t.Variants[i].Type == nil {
				continue
			}
			if err := g.validateRef(t, t.Variants[i].Type); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Graph) validateRef(owner *Type, r *Ref) error {
	switch r.Kind {
	case RefNamed:
		if _, ok := g.byName[r.Name]; !ok {
			return fmt.Errorf("type %s references unknown type %q", owner.Name, r.Name)
		}
		if r.Name == owner.Name && !r.Indirect {
			return fmt.Errorf("type %s embeds itself without indirection", owner.Name)
		}
	case RefSequence, RefMap:
		if r.Elem == nil {
			return fmt.Errorf("type %s has a container reference with no element", owner.Name)
		}
		return g.validateRef(owner, r.Elem)
	}
	return nil
}

// UsesExternal reports whether any reference in the graph points at the given
// external type. Emitters use this to compute their import preludes.
func (g *Graph) UsesExternal(e External) bool {
	for _, t := range g.types {
		for i := range t.Fields {
			if refUsesExternal(&t.Fields[i].Type, e) {
				return true
			}
		}
		for i := range t.Variants {
			if t.Variants[i].Type != nil && refUsesExternal(t.Variants[i].Type, e) {
				return true
			}
		}
	}
	return false
}

// UsesPrimitive reports whether any reference in the graph uses the given
// primitive kind.
func (g *Graph) UsesPrimitive(p Primitive) bool {
	for _, t := range g.types {
		for i := range t.Fields {
			if refUsesPrimitive(&t.Fields[i].Type, p) {
				return true
			}
		}
	}
	return false
}

func refUsesExternal(r *Ref, e External) bool {
	if r.Kind == RefExternal && r.External == e {
		return true
	}
	if r.Elem != nil {
		return refUsesExternal(r.Elem, e)
	}
	return false
}

func refUsesPrimitive(r *Ref, p Primitive) bool {
	if r.Kind == RefPrimitive && r.Prim == p {
		return true
	}
	if r.Elem != nil {
		return refUsesPrimitive(r.Elem, p)
	}
	return false
}

// Capability names an automatically derivable behavior attachable to a
// generated type.
type Capability string

const (
	CapEquality   Capability = "equality"
	CapOrdering   Capability = "ordering"
	CapDefault    Capability = "default"
	CapReflection Capability = "reflection"
	CapBuilder    Capability = "builder"
)

// CapabilitySet is the resolved set of capabilities for one type.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := CapabilitySet{}
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Add inserts a capability.
func (s CapabilitySet) Add(c Capability) { s[c] = struct{}{} }

// Remove deletes a capability.
func (s CapabilitySet) Remove(c Capability) { delete(s, c) }

// List returns the capabilities in sorted order for deterministic output.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
