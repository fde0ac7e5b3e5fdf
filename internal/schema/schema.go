// Package schema holds the analyzer's input model: an explicit tagged union
// over the structural schema shapes a CRD version can declare, converted once
// from apiextensions JSONSchemaProps and immutable afterwards.
//
// The analyzer never pattern-matches on loosely typed openapi documents
// directly; everything it consumes goes through this model first.
package schema

// Kind discriminates schema nodes.
type Kind uint8

const (
	// KindScalar is a leaf value: string, boolean, integer, number.
	KindScalar Kind = iota
	// KindObject has a fixed set of named properties.
	KindObject
	// KindArray wraps a single item schema.
	KindArray
	// KindMap is an open object: string keys, uniform value schema.
	KindMap
	// KindUnion is a oneOf/anyOf over variant schemas.
	KindUnion
	// KindEnumeration is a closed set of literal values.
	KindEnumeration
	// KindUnknown is schema-less: preserve-unknown-fields or an empty type.
	KindUnknown
	// KindUnsupported marks a construct with no defined mapping. The analyzer
	// reports it with the offending path, or downgrades it in relaxed mode.
	KindUnsupported
	// KindForeign is a property replaced by an override rule. The named type
	// is provided externally and nothing is synthesized for it.
	KindForeign
)

// Scalar is the leaf value kind for KindScalar nodes.
type Scalar uint8

const (
	ScalarString Scalar = iota
	ScalarBoolean
	ScalarInteger
	ScalarNumber
	// ScalarDate covers the non-standard "date" type some CRDs declare.
	ScalarDate
)

// Property is one named member of an object node. Properties are ordered
// lexically by name since the source mapping carries no declared order.
type Property struct {
	Name   string
	Schema *Node
}

// Literal is one enumeration member with its original spelling preserved.
type Literal struct {
	// Value is the literal's spelling: the unquoted string for string
	// literals, the decimal text for integer literals.
	Value string
	// IsString distinguishes string literals from integer literals.
	IsString bool
}

// Node is a single schema node. Immutable once built; owned by the analysis
// pass that consumes it.
type Node struct {
	Kind   Kind
	Scalar Scalar // KindScalar
	// Format is the openapi format qualifier (int32, int64, float, double,
	// date, date-time) when declared.
	Format     string
	Properties []Property          // KindObject, lexical order
	Required   map[string]struct{} // KindObject, always a subset of Properties
	Items      *Node               // KindArray
	Value      *Node               // KindMap
	Variants   []*Node             // KindUnion
	Literals   []Literal           // KindEnumeration
	// Reason describes why a KindUnsupported node could not be mapped.
	Reason string
	// ForeignType names the externally provided replacement type for
	// KindForeign nodes, emitted verbatim.
	ForeignType string

	Nullable    bool
	IntOrString bool
	// PreserveUnknown marks x-kubernetes-preserve-unknown-fields, which makes
	// a KindUnknown node deliberate rather than an authoring mistake.
	PreserveUnknown bool
	// EmbeddedResource marks x-kubernetes-embedded-resource subtrees.
	EmbeddedResource bool
	Description      string
}

// IsRequired reports whether the named property is in the object's required set.
func (n *Node) IsRequired(name string) bool {
	_, ok := n.Required[name]
	return ok
}

// Lookup finds a property schema by name on an object node.
func (n *Node) Lookup(name string) (*Node, bool) {
	for _, p := range n.Properties {
		if p.Name == name {
			return p.Schema, true
		}
	}
	return nil, false
}
