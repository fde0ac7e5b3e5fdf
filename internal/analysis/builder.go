// Package analysis walks a schema node tree and synthesizes the type graph:
// named composite and enumerated types with optionality, documentation, and
// known-shape substitutions resolved. One invocation produces one graph;
// analysis is all-or-nothing and shares no state between invocations.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/kube-rs/kopium/internal/known"
	"github.com/kube-rs/kopium/internal/schema"
	"github.com/kube-rs/kopium/pkg/typegraph"
)

// defaultMaxDepth guards against pathological nesting; genuine cycles are
// handled by the recursion stack and never reach it.
const defaultMaxDepth = 64

// ignoredRootKeys are handled by the resource envelope, not generated types.
var ignoredRootKeys = map[string]struct{}{"metadata": {}, "apiVersion": {}, "kind": {}}

// Config controls a single analysis invocation.
type Config struct {
	// Kind seeds the root of every generated type name.
	Kind string
	// Relaxed downgrades unsupported constructs and irreconcilable unions to
	// diagnostics plus a permissive fallback shape.
	Relaxed bool
	// SuppressCondition disables canonical Condition substitution.
	SuppressCondition bool
	// SuppressObjectReference disables canonical ObjectReference substitution.
	SuppressObjectReference bool
	// MaxDepth overrides the defensive recursion cap when positive.
	MaxDepth int
}

// Build analyzes a root object schema and returns the populated, not yet
// frozen type graph. On error no graph is returned; a partially synthesized
// graph is never exposed.
func Build(ctx context.Context, root *schema.Node, cfg Config) (*typegraph.Graph, error) {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = defaultMaxDepth
	}
	b := &builder{
		cfg: cfg,
		det: known.Detector{
			SuppressCondition:       cfg.SuppressCondition,
			SuppressObjectReference: cfg.SuppressObjectReference,
		},
		log:           logr.FromContextOrDiscard(ctx),
		graph:         typegraph.New(),
		memo:          map[*schema.Node]typegraph.Ref{},
		visiting:      map[*schema.Node]*visit{},
		visitingNames: map[string]string{},
		byHash:        map[string]string{},
		pathOf:        map[string]string{},
	}
	if root == nil || root.Kind != schema.KindObject {
		return nil, &UnsupportedError{Path: cfg.Kind, Reason: "root schema must be an object with properties"}
	}
	if _, err := b.node(root, path{cfg.Kind}, 0); err != nil {
		return nil, err
	}
	return b.graph, nil
}

// path is the property trail from the schema root to a node. It seeds type
// names and appears verbatim in every diagnostic.
type path []string

func (p path) String() string { return strings.Join(p, ".") }

func (p path) child(segment string) path {
	out := make(path, 0, len(p)+1)
	out = append(out, p...)
	return append(out, segment)
}

// typeName is the candidate name: every path segment case-normalized and
// concatenated. Since the candidate already contains all enclosing segments,
// a collision between structurally different nodes cannot be widened further
// and fails instead of silently merging shapes.
func (p path) typeName() string {
	var b strings.Builder
	for _, seg := range p {
		b.WriteString(pascal(seg))
	}
	return b.String()
}

type visit struct {
	name       string
	referenced bool
}

type builder struct {
	cfg   Config
	det   known.Detector
	log   logr.Logger
	graph *typegraph.Graph

	// memo unifies schema nodes reachable through multiple paths: structural
	// aliases of one definition resolve to one generated type.
	memo map[*schema.Node]typegraph.Ref
	// visiting is the recursion stack keyed by node identity. Re-entering a
	// node yields an indirect self-reference instead of descending again.
	visiting      map[*schema.Node]*visit
	visitingNames map[string]string
	// byHash deduplicates structurally identical shapes found at different paths.
	byHash map[string]string
	// pathOf records each generated name's origin path for collision reports.
	pathOf map[string]string
}

func (b *builder) node(n *schema.Node, p path, level int) (typegraph.Ref, error) {
	if level > b.cfg.MaxDepth {
		return typegraph.Ref{}, &DepthError{Path: p.String(), Limit: b.cfg.MaxDepth}
	}
	switch n.Kind {
	case schema.KindScalar:
		return b.scalar(n, p)
	case schema.KindEnumeration:
		return b.enum(n.Literals, n.Description, p, level)
	case schema.KindObject:
		return b.object(n, p, level)
	case schema.KindArray:
		return b.array(n, p, level)
	case schema.KindMap:
		elem, err := b.node(n.Value, p, level+1)
		if err != nil {
			return typegraph.Ref{}, err
		}
		return typegraph.Ref{Kind: typegraph.RefMap, Elem: &elem}, nil
	case schema.KindUnion:
		return b.union(n, p, level)
	case schema.KindUnknown:
		if n.PreserveUnknown {
			return openMapRef(), nil
		}
		return b.fallback(p, "schema-less value without x-kubernetes-preserve-unknown-fields", openMapRef())
	case schema.KindUnsupported:
		return b.fallback(p, n.Reason, typegraph.Ref{Kind: typegraph.RefExternal, External: typegraph.ExtJSON})
	case schema.KindForeign:
		// Override replacement: the named type exists outside the graph and
		// nothing is synthesized for it.
		return typegraph.Ref{Kind: typegraph.RefForeign, Name: n.ForeignType}, nil
	}
	return typegraph.Ref{}, &UnsupportedError{Path: p.String(), Reason: fmt.Sprintf("unmapped node kind %d", n.Kind)}
}

// fallback downgrades an unsupported construct to a permissive shape in
// relaxed mode and fails otherwise.
func (b *builder) fallback(p path, reason string, ref typegraph.Ref) (typegraph.Ref, error) {
	if !b.cfg.Relaxed {
		return typegraph.Ref{}, &UnsupportedError{Path: p.String(), Reason: reason}
	}
	b.log.V(1).Info("relaxed fallback", "path", p.String(), "reason", reason)
	b.graph.Diagnostics = append(b.graph.Diagnostics, typegraph.Diagnostic{Path: p.String(), Message: reason})
	return ref, nil
}

func openMapRef() typegraph.Ref {
	return typegraph.Ref{
		Kind: typegraph.RefMap,
		Elem: &typegraph.Ref{Kind: typegraph.RefExternal, External: typegraph.ExtJSON},
	}
}

func (b *builder) scalar(n *schema.Node, p path) (typegraph.Ref, error) {
	if n.IntOrString {
		return typegraph.Ref{Kind: typegraph.RefExternal, External: typegraph.ExtIntOrString}, nil
	}
	prim := typegraph.PrimString
	switch n.Scalar {
	case schema.ScalarString:
		switch n.Format {
		case "date":
			prim = typegraph.PrimDate
		case "date-time":
			prim = typegraph.PrimDateTime
		default:
			prim = typegraph.PrimString
		}
	case schema.ScalarBoolean:
		prim = typegraph.PrimBool
	case schema.ScalarInteger:
		if n.Format == "int32" {
			prim = typegraph.PrimInt32
		} else {
			prim = typegraph.PrimInt64
		}
	case schema.ScalarNumber:
		if n.Format == "float" {
			prim = typegraph.PrimFloat32
		} else {
			prim = typegraph.PrimFloat64
		}
	case schema.ScalarDate:
		switch n.Format {
		case "date":
			prim = typegraph.PrimDate
		case "date-time":
			prim = typegraph.PrimDateTime
		case "":
			prim = typegraph.PrimString
		default:
			return b.fallback(p, fmt.Sprintf("unknown date format %q", n.Format),
				typegraph.Ref{Kind: typegraph.RefPrimitive, Prim: typegraph.PrimString})
		}
	}
	return typegraph.Ref{Kind: typegraph.RefPrimitive, Prim: prim}, nil
}

func (b *builder) array(n *schema.Node, p path, level int) (typegraph.Ref, error) {
	if b.det.ConditionItems(n.Items) {
		// canonical Condition: reference the external type, synthesize nothing
		return typegraph.Ref{
			Kind: typegraph.RefSequence,
			Elem: &typegraph.Ref{Kind: typegraph.RefExternal, External: typegraph.ExtCondition},
		}, nil
	}
	elem, err := b.node(n.Items, p, level+1)
	if err != nil {
		return typegraph.Ref{}, err
	}
	return typegraph.Ref{Kind: typegraph.RefSequence, Elem: &elem}, nil
}

func (b *builder) object(n *schema.Node, p path, level int) (typegraph.Ref, error) {
	if len(n.Properties) == 0 {
		// zero properties and no additional-properties schema: an open map
		// placeholder, not an empty composite
		return openMapRef(), nil
	}
	if ext, ok := b.det.Substitute(n); ok {
		return typegraph.Ref{Kind: typegraph.RefExternal, External: ext}, nil
	}
	if ref, ok := b.memo[n]; ok {
		return ref, nil
	}
	if v, ok := b.visiting[n]; ok {
		v.referenced = true
		return typegraph.Ref{Kind: typegraph.RefNamed, Name: v.name, Indirect: true}, nil
	}

	name := p.typeName()
	if other, ok := b.visitingNames[name]; ok {
		return typegraph.Ref{}, &CollisionError{Path: p.String(), OtherPath: other, Name: name}
	}
	v := &visit{name: name}
	b.visiting[n] = v
	b.visitingNames[name] = p.String()
	defer func() {
		delete(b.visiting, n)
		delete(b.visitingNames, name)
	}()

	t := &typegraph.Type{
		Name:  name,
		Path:  p.String(),
		Level: level,
		Kind:  typegraph.KindComposite,
		Doc:   n.Description,
	}
	for _, prop := range n.Properties {
		if level == 0 {
			if _, ignored := ignoredRootKeys[prop.Name]; ignored {
				continue
			}
		}
		ref, err := b.node(prop.Schema, p.child(prop.Name), level+1)
		if err != nil {
			return typegraph.Ref{}, err
		}
		optional, defaultWhenAbsent := optionality(n, prop.Name, prop.Schema, ref)
		t.Fields = append(t.Fields, typegraph.Field{
			Name:              prop.Name,
			Type:              ref,
			Optional:          optional,
			DefaultWhenAbsent: defaultWhenAbsent,
			Doc:               prop.Schema.Description,
		})
	}
	t.SelfReferential = v.referenced

	ref, err := b.add(t, compositeHash(t), v.referenced, p)
	if err != nil {
		return typegraph.Ref{}, err
	}
	b.memo[n] = ref
	return ref, nil
}

// optionality resolves field presence: absent from required or nullable
// means optional; a required sequence/map whose empty form is
// indistinguishable from absence stays non-optional but decodes absent as
// empty.
func optionality(parent *schema.Node, name string, prop *schema.Node, ref typegraph.Ref) (optional, defaultWhenAbsent bool) {
	if !parent.IsRequired(name) || prop.Nullable {
		return true, false
	}
	if ref.Kind == typegraph.RefSequence || ref.Kind == typegraph.RefMap {
		return false, true
	}
	return false, false
}

func (b *builder) enum(literals []schema.Literal, doc string, p path, level int) (typegraph.Ref, error) {
	name := p.typeName()
	if other, ok := b.visitingNames[name]; ok {
		return typegraph.Ref{}, &CollisionError{Path: p.String(), OtherPath: other, Name: name}
	}
	t := &typegraph.Type{
		Name:  name,
		Path:  p.String(),
		Level: level,
		Kind:  typegraph.KindEnum,
		Doc:   doc,
	}
	seen := map[string]struct{}{}
	for i, lit := range literals {
		vn := variantName(lit.Value, i)
		for {
			if _, dup := seen[vn]; !dup {
				break
			}
			vn += "X"
		}
		seen[vn] = struct{}{}
		t.Variants = append(t.Variants, typegraph.Variant{Name: vn, Literal: lit.Value, IsString: lit.IsString})
	}
	return b.add(t, enumHash(t), false, p)
}

func (b *builder) union(n *schema.Node, p path, level int) (typegraph.Ref, error) {
	allLiterals, allObjects := true, true
	for _, v := range n.Variants {
		if v.Kind != schema.KindEnumeration {
			allLiterals = false
		}
		if v.Kind != schema.KindObject || len(v.Properties) == 0 {
			allObjects = false
		}
	}

	switch {
	case allLiterals:
		// distinct literal scalars collapse into one unit-variant enumeration
		var merged []schema.Literal
		seen := map[string]struct{}{}
		for _, v := range n.Variants {
			for _, lit := range v.Literals {
				if _, dup := seen[lit.Value]; dup {
					continue
				}
				seen[lit.Value] = struct{}{}
				merged = append(merged, lit)
			}
		}
		return b.enum(merged, n.Description, p, level)

	case allObjects:
		return b.taggedUnion(n, p, level)

	default:
		if !b.cfg.Relaxed {
			return typegraph.Ref{}, &UnionError{Path: p.String(), Reason: "variants mix literal scalars and object shapes"}
		}
		b.graph.Diagnostics = append(b.graph.Diagnostics, typegraph.Diagnostic{
			Path:    p.String(),
			Message: "variants mix literal scalars and object shapes; emitting arbitrary json",
		})
		return typegraph.Ref{Kind: typegraph.RefExternal, External: typegraph.ExtJSON}, nil
	}
}

func (b *builder) taggedUnion(n *schema.Node, p path, level int) (typegraph.Ref, error) {
	name := p.typeName()
	if other, ok := b.visitingNames[name]; ok {
		return typegraph.Ref{}, &CollisionError{Path: p.String(), OtherPath: other, Name: name}
	}
	t := &typegraph.Type{
		Name:  name,
		Path:  p.String(),
		Level: level,
		Kind:  typegraph.KindUnion,
		Doc:   n.Description,
	}
	seen := map[string]struct{}{}
	for i, v := range n.Variants {
		vn := unionVariantName(v, i)
		for {
			if _, dup := seen[vn]; !dup {
				break
			}
			vn += "X"
		}
		seen[vn] = struct{}{}
		ref, err := b.node(v, p.child(vn), level+1)
		if err != nil {
			return typegraph.Ref{}, err
		}
		variantRef := ref
		t.Variants = append(t.Variants, typegraph.Variant{Name: vn, Type: &variantRef})
	}
	return b.add(t, unionHash(t), false, p)
}

// unionVariantName derives a deterministic discriminant: the sole required
// property, then the sole property, then the variant's ordinal.
func unionVariantName(v *schema.Node, ordinal int) string {
	if len(v.Required) == 1 {
		for name := range v.Required {
			return pascal(name)
		}
	}
	if len(v.Properties) == 1 {
		return pascal(v.Properties[0].Name)
	}
	return fmt.Sprintf("Variant%d", ordinal)
}

// add inserts a synthesized type, deduplicating structurally identical shapes
// and rejecting same-name different-shape collisions. Self-referential types
// are never deduplicated since their identity was already handed out.
func (b *builder) add(t *typegraph.Type, hash string, selfRef bool, p path) (typegraph.Ref, error) {
	if !selfRef {
		if existing, ok := b.byHash[hash]; ok {
			b.log.V(1).Info("deduplicated", "path", p.String(), "into", existing)
			return typegraph.Ref{Kind: typegraph.RefNamed, Name: existing}, nil
		}
	}
	if other, ok := b.pathOf[t.Name]; ok {
		return typegraph.Ref{}, &CollisionError{Path: p.String(), OtherPath: other, Name: t.Name}
	}
	if err := b.graph.Add(t); err != nil {
		return typegraph.Ref{}, fmt.Errorf("at %s: %w", p.String(), err)
	}
	b.byHash[hash] = t.Name
	b.pathOf[t.Name] = t.Path
	return typegraph.Ref{Kind: typegraph.RefNamed, Name: t.Name}, nil
}

// compositeHash is the canonical structural key: the kind plus the
// order-insensitive set of (name, type, optionality) triples.
func compositeHash(t *typegraph.Type) string {
	parts := make([]string, 0, len(t.Fields))
	for i := range t.Fields {
		f := &t.Fields[i]
		parts = append(parts, fmt.Sprintf("%s=%s,opt=%t,dwa=%t", f.Name, refKey(&f.Type), f.Optional, f.DefaultWhenAbsent))
	}
	sort.Strings(parts)
	return digest("composite|" + strings.Join(parts, ";"))
}

func enumHash(t *typegraph.Type) string {
	parts := make([]string, 0, len(t.Variants))
	for _, v := range t.Variants {
		parts = append(parts, v.Literal)
	}
	return digest("enum|" + strings.Join(parts, ";"))
}

func unionHash(t *typegraph.Type) string {
	parts := make([]string, 0, len(t.Variants))
	for _, v := range t.Variants {
		parts = append(parts, v.Name+"="+refKey(v.Type))
	}
	sort.Strings(parts)
	return digest("union|" + strings.Join(parts, ";"))
}

func refKey(r *typegraph.Ref) string {
	switch r.Kind {
	case typegraph.RefPrimitive:
		return "prim:" + r.Prim.String()
	case typegraph.RefNamed:
		if r.Indirect {
			return "named:" + r.Name + ":indirect"
		}
		return "named:" + r.Name
	case typegraph.RefExternal:
		return "ext:" + r.External.String()
	case typegraph.RefSequence:
		return "seq(" + refKey(r.Elem) + ")"
	case typegraph.RefMap:
		return "map(" + refKey(r.Elem) + ")"
	case typegraph.RefForeign:
		return "foreign:" + r.Name
	}
	return "invalid"
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
