package schema

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/emirpasic/gods/v2/maps/treemap"
	apiextv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"

	"github.com/kube-rs/kopium/internal/override"
)

// FromProps converts an apiextensions/v1 schema into the analyzer's node
// model. Constructs without a defined mapping become KindUnsupported nodes so
// the analyzer can report them with their path, or downgrade them in relaxed
// mode. The conversion itself never fails.
func FromProps(p *apiextv1.JSONSchemaProps) *Node {
	return Convert(p, nil)
}

// Convert is FromProps with property override rules applied: a property
// matched by a rule is dropped, or replaced with a KindForeign node naming an
// externally provided type.
func Convert(p *apiextv1.JSONSchemaProps, overrides *override.Set) *Node {
	c := converter{overrides: overrides}
	return c.node(p)
}

type converter struct {
	overrides *override.Set
}

func (c converter) node(p *apiextv1.JSONSchemaProps) *Node {
	n := &Node{
		Nullable:    p.Nullable,
		Description: p.Description,
		Format:      p.Format,
	}
	if p.XPreserveUnknownFields != nil && *p.XPreserveUnknownFields {
		n.PreserveUnknown = true
	}
	if p.XEmbeddedResource {
		n.EmbeddedResource = true
	}

	if p.XIntOrString {
		n.Kind = KindScalar
		n.IntOrString = true
		return n
	}

	if len(p.AllOf) > 0 {
		return c.convertAllOf(p, n)
	}

	if len(p.Enum) > 0 {
		return convertEnum(p, n)
	}

	if variants := unionVariants(p); variants != nil {
		return c.convertUnion(p, n, variants)
	}

	switch p.Type {
	case "object":
		return c.convertObject(p, n)
	case "string":
		n.Kind = KindScalar
		n.Scalar = ScalarString
	case "boolean":
		n.Kind = KindScalar
		n.Scalar = ScalarBoolean
	case "integer":
		n.Kind = KindScalar
		n.Scalar = ScalarInteger
	case "number":
		n.Kind = KindScalar
		n.Scalar = ScalarNumber
	case "date":
		n.Kind = KindScalar
		n.Scalar = ScalarDate
	case "array":
		return c.convertArray(p, n)
	case "":
		// Schema-less. Deliberate when preserve-unknown-fields is set,
		// otherwise left to the analyzer's relaxed-mode policy.
		n.Kind = KindUnknown
	default:
		n.Kind = KindUnsupported
		n.Reason = fmt.Sprintf("unknown type %q", p.Type)
	}
	return n
}

func (c converter) convertObject(p *apiextv1.JSONSchemaProps, n *Node) *Node {
	// additionalProperties and properties are mutually exclusive in CRD
	// validation; additionalProperties wins when a schema is present.
	if p.AdditionalProperties != nil && p.AdditionalProperties.Schema != nil {
		n.Kind = KindMap
		n.Value = c.node(p.AdditionalProperties.Schema)
		return n
	}
	if p.AdditionalProperties != nil && p.AdditionalProperties.Allows && len(p.Properties) == 0 {
		n.Kind = KindUnknown
		n.PreserveUnknown = true
		return n
	}

	n.Kind = KindObject
	if len(p.Properties) == 0 {
		if n.PreserveUnknown {
			n.Kind = KindUnknown
		}
		return n
	}

	// The source property mapping is unordered; a treemap pins lexical order
	// so analysis output is byte-stable across runs.
	props := treemap.New[string, apiextv1.JSONSchemaProps]()
	for name, prop := range p.Properties {
		props.Put(name, prop)
	}
	for _, name := range props.Keys() {
		prop, _ := props.Get(name)
		if act, matched := c.overrides.Property(name, &prop); matched {
			if act.Omit {
				continue
			}
			n.Properties = append(n.Properties, Property{Name: name, Schema: &Node{
				Kind:        KindForeign,
				ForeignType: act.Replace,
				Nullable:    prop.Nullable,
				Description: prop.Description,
			}})
			continue
		}
		n.Properties = append(n.Properties, Property{Name: name, Schema: c.node(&prop)})
	}

	n.Required = map[string]struct{}{}
	for _, name := range p.Required {
		// Invariant: required is a subset of the property names. An omitted
		// property drops out of the required set with its schema.
		if _, ok := n.Lookup(name); ok {
			n.Required[name] = struct{}{}
		}
	}
	return n
}

func (c converter) convertArray(p *apiextv1.JSONSchemaProps, n *Node) *Node {
	if p.Items == nil {
		n.Kind = KindUnsupported
		n.Reason = "array without items"
		return n
	}
	if p.Items.Schema == nil {
		n.Kind = KindUnsupported
		n.Reason = "array with multiple item schemas"
		return n
	}
	n.Kind = KindArray
	n.Items = c.node(p.Items.Schema)
	return n
}

func convertEnum(p *apiextv1.JSONSchemaProps, n *Node) *Node {
	n.Kind = KindEnumeration
	for _, raw := range p.Enum {
		var v any
		if err := json.Unmarshal(raw.Raw, &v); err != nil {
			n.Kind = KindUnsupported
			n.Reason = fmt.Sprintf("unparseable enum literal %q", string(raw.Raw))
			return n
		}
		switch lit := v.(type) {
		case string:
			n.Literals = append(n.Literals, Literal{Value: lit, IsString: true})
		case float64:
			if lit != float64(int64(lit)) || lit < 0 {
				n.Kind = KindUnsupported
				n.Reason = "enum literal with signed or floating discriminant"
				return n
			}
			n.Literals = append(n.Literals, Literal{Value: strconv.FormatInt(int64(lit), 10)})
		default:
			n.Kind = KindUnsupported
			n.Reason = fmt.Sprintf("enum literal of unsupported kind %T", v)
			return n
		}
	}
	return n
}

// unionVariants returns the oneOf (preferred) or anyOf branches that carry an
// actual shape. Branches holding only validation constraints, e.g.
// oneOf: [{required: [a]}, {required: [b]}], do not describe alternative
// shapes and are dropped; an empty result means no union is in play.
func unionVariants(p *apiextv1.JSONSchemaProps) []apiextv1.JSONSchemaProps {
	branches := p.OneOf
	if len(branches) == 0 {
		branches = p.AnyOf
	}
	var shaped []apiextv1.JSONSchemaProps
	for _, b := range branches {
		if branchHasShape(&b) {
			shaped = append(shaped, b)
		}
	}
	return shaped
}

func branchHasShape(b *apiextv1.JSONSchemaProps) bool {
	return b.Type != "" || len(b.Properties) > 0 || len(b.Enum) > 0 ||
		b.Items != nil || b.AdditionalProperties != nil || b.XIntOrString
}

func (c converter) convertUnion(p *apiextv1.JSONSchemaProps, n *Node, variants []apiextv1.JSONSchemaProps) *Node {
	if len(variants) == 1 {
		inner := c.node(&variants[0])
		if inner.Description == "" {
			inner.Description = n.Description
		}
		inner.Nullable = inner.Nullable || n.Nullable
		inner.PreserveUnknown = inner.PreserveUnknown || n.PreserveUnknown
		inner.EmbeddedResource = inner.EmbeddedResource || n.EmbeddedResource
		return inner
	}

	// anyOf over bare integer and string branches is the legacy spelling of
	// the int-or-string extension.
	if len(variants) == 2 && isIntOrStringPair(&variants[0], &variants[1]) {
		n.Kind = KindScalar
		n.IntOrString = true
		return n
	}

	n.Kind = KindUnion
	for i := range variants {
		n.Variants = append(n.Variants, c.node(&variants[i]))
	}
	return n
}

func isIntOrStringPair(a, b *apiextv1.JSONSchemaProps) bool {
	bare := func(v *apiextv1.JSONSchemaProps) bool {
		return len(v.Properties) == 0 && len(v.Enum) == 0 && v.Items == nil
	}
	if !bare(a) || !bare(b) {
		return false
	}
	return (a.Type == "integer" && b.Type == "string") || (a.Type == "string" && b.Type == "integer")
}

func (c converter) convertAllOf(p *apiextv1.JSONSchemaProps, n *Node) *Node {
	// Single-branch allOf is a common CRD spelling for attaching descriptions
	// to a referenced shape; flatten it. Anything wider has no defined mapping.
	if len(p.AllOf) == 1 && p.Type == "" && len(p.Properties) == 0 {
		inner := c.node(&p.AllOf[0])
		if inner.Description == "" {
			inner.Description = n.Description
		}
		inner.Nullable = inner.Nullable || n.Nullable
		inner.PreserveUnknown = inner.PreserveUnknown || n.PreserveUnknown
		inner.EmbeddedResource = inner.EmbeddedResource || n.EmbeddedResource
		return inner
	}
	n.Kind = KindUnsupported
	n.Reason = fmt.Sprintf("allOf with %d branches cannot be flattened", len(p.AllOf))
	return n
}
