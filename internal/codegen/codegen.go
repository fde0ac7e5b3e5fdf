// Package codegen lowers a frozen type graph to Go source. The graph defines
// names, shapes, optionality and capabilities; this package decides nothing
// about them, it only renders Go syntax.
package codegen

import (
	"fmt"
	"go/format"
	"strings"
	"unicode"

	"github.com/kube-rs/kopium/pkg/typegraph"
)

// Resource carries the CRD identity rendered into the emitted bindings.
type Resource struct {
	Group      string
	Version    string
	Kind       string
	Plural     string
	Namespaced bool
}

// Options controls emission. None of these affect graph semantics.
type Options struct {
	// Package is the emitted package name.
	Package string
	// Docs renders schema descriptions as doc comments.
	Docs bool
	// Elide suppresses named types from the output without removing them from
	// the graph, so hand-written replacements can take their place.
	Elide []string
	// Header lines are rendered as comments above the package clause.
	Header []string
	// OrderedMaps is accepted for configuration parity; Go has a single map
	// representation so it does not change the output.
	OrderedMaps bool

	Resource Resource
}

var goKeywords = map[string]struct{}{
	"break": {}, "case": {}, "chan": {}, "const": {}, "continue": {},
	"default": {}, "defer": {}, "else": {}, "fallthrough": {}, "for": {},
	"func": {}, "go": {}, "goto": {}, "if": {}, "import": {}, "interface": {},
	"map": {}, "package": {}, "range": {}, "return": {}, "select": {},
	"struct": {}, "switch": {}, "type": {}, "var": {},
}

// Emit renders the whole graph as one gofmt-formatted source file.
func Emit(g *typegraph.Graph, opts Options) (string, error) {
	if !g.Frozen() {
		return "", fmt.Errorf("refusing to emit an unfrozen graph")
	}
	if opts.Package == "" {
		opts.Package = "types"
	}
	e := &emitter{g: g, opts: opts, elided: map[string]struct{}{}}
	for _, name := range opts.Elide {
		e.elided[name] = struct{}{}
	}

	var b strings.Builder
	for _, line := range opts.Header {
		fmt.Fprintf(&b, "// %s\n", line)
	}
	fmt.Fprintf(&b, "package %s\n\n", opts.Package)
	e.writeImports(&b)

	for _, t := range g.Types() {
		if _, skip := e.elided[t.Name]; skip {
			continue
		}
		switch {
		case t.IsRoot():
			e.writeRoot(&b, t)
		case t.Kind == typegraph.KindComposite:
			e.writeComposite(&b, t)
		case t.Kind == typegraph.KindEnum:
			e.writeEnum(&b, t)
		case t.Kind == typegraph.KindUnion:
			e.writeUnion(&b, t)
		}
	}

	src, err := format.Source([]byte(b.String()))
	if err != nil {
		return "", fmt.Errorf("formatting generated source: %w", err)
	}
	return string(src), nil
}

type emitter struct {
	g      *typegraph.Graph
	opts   Options
	elided map[string]struct{}
}

// writeImports computes the prelude from the types actually emitted; elided
// types never contribute an import.
func (e *emitter) writeImports(b *strings.Builder) {
	var imports []string
	if e.needsMetav1() {
		imports = append(imports, `metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"`)
	}
	if e.emittedUsesExternal(typegraph.ExtIntOrString) {
		imports = append(imports, `"k8s.io/apimachinery/pkg/util/intstr"`)
	}
	if e.emittedUsesExternal(typegraph.ExtObjectReference) {
		imports = append(imports, `corev1 "k8s.io/api/core/v1"`)
	}
	if e.emittedUsesExternal(typegraph.ExtJSON) {
		imports = append(imports, `apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"`)
	}
	if len(imports) == 0 {
		return
	}
	fmt.Fprintf(b, "import (\n")
	for _, imp := range imports {
		fmt.Fprintf(b, "\t%s\n", imp)
	}
	fmt.Fprintf(b, ")\n\n")
}

// anyEmitted reports whether pred holds for any type that will appear in the
// output.
func (e *emitter) anyEmitted(pred func(*typegraph.Type) bool) bool {
	for _, t := range e.g.Types() {
		if _, skip := e.elided[t.Name]; skip {
			continue
		}
		if pred(t) {
			return true
		}
	}
	return false
}

// needsMetav1 is true when the resource envelope is emitted (TypeMeta,
// ObjectMeta, ListMeta) or any emitted field renders as metav1.Time or
// metav1.Condition.
func (e *emitter) needsMetav1() bool {
	metaRef := func(r *typegraph.Ref) bool {
		if r.Kind == typegraph.RefPrimitive {
			return r.Prim == typegraph.PrimDate || r.Prim == typegraph.PrimDateTime
		}
		return r.Kind == typegraph.RefExternal && r.External == typegraph.ExtCondition
	}
	return e.anyEmitted(func(t *typegraph.Type) bool {
		return t.IsRoot() || typeUsesRef(t, metaRef)
	})
}

func (e *emitter) emittedUsesExternal(x typegraph.External) bool {
	return e.anyEmitted(func(t *typegraph.Type) bool {
		return typeUsesRef(t, func(r *typegraph.Ref) bool {
			return r.Kind == typegraph.RefExternal && r.External == x
		})
	})
}

func typeUsesRef(t *typegraph.Type, pred func(*typegraph.Ref) bool) bool {
	for i := range t.Fields {
		if refMatches(&t.Fields[i].Type, pred) {
			return true
		}
	}
	for i := range t.Variants {
		if t.Variants[i].Type != nil && refMatches(t.Variants[i].Type, pred) {
			return true
		}
	}
	return false
}

func refMatches(r *typegraph.Ref, pred func(*typegraph.Ref) bool) bool {
	if pred(r) {
		return true
	}
	if r.Elem != nil {
		return refMatches(r.Elem, pred)
	}
	return false
}

// writeRoot renders the resource envelope: the kind struct with its metadata
// plus the companion list type.
func (e *emitter) writeRoot(b *strings.Builder, t *typegraph.Type) {
	kind := pascalIdent(e.opts.Resource.Kind)
	if kind == "" {
		kind = t.Name
	}
	if e.opts.Docs && t.Doc != "" {
		e.writeDoc(b, "", t.Doc)
	} else {
		fmt.Fprintf(b, "// %s is the Schema for the %s API (%s/%s).\n",
			kind, e.opts.Resource.Plural, e.opts.Resource.Group, e.opts.Resource.Version)
	}
	fmt.Fprintf(b, "type %s struct {\n", kind)
	fmt.Fprintf(b, "\tmetav1.TypeMeta `json:\",inline\"`\n")
	fmt.Fprintf(b, "\tmetav1.ObjectMeta `json:\"metadata,omitempty\"`\n\n")
	for i := range t.Fields {
		e.writeField(b, &t.Fields[i])
	}
	fmt.Fprintf(b, "}\n\n")

	fmt.Fprintf(b, "// %sList contains a list of %s.\n", kind, kind)
	fmt.Fprintf(b, "type %sList struct {\n", kind)
	fmt.Fprintf(b, "\tmetav1.TypeMeta `json:\",inline\"`\n")
	fmt.Fprintf(b, "\tmetav1.ListMeta `json:\"metadata,omitempty\"`\n")
	fmt.Fprintf(b, "\tItems []%s `json:\"items\"`\n", kind)
	fmt.Fprintf(b, "}\n\n")
}

func (e *emitter) writeComposite(b *strings.Builder, t *typegraph.Type) {
	name := t.Name
	if e.opts.Docs && t.Doc != "" {
		e.writeDoc(b, "", t.Doc)
	}
	fmt.Fprintf(b, "type %s struct {\n", name)
	for i := range t.Fields {
		e.writeField(b, &t.Fields[i])
	}
	fmt.Fprintf(b, "}\n\n")

	if t.Capabilities.Has(typegraph.CapBuilder) {
		e.writeBuilders(b, t, name)
	}
	if t.Capabilities.Has(typegraph.CapDefault) {
		fmt.Fprintf(b, "// New%s returns a %s with empty collections initialized.\n", name, name)
		fmt.Fprintf(b, "func New%s() *%s {\n\tout := &%s{}\n", name, name, name)
		for i := range t.Fields {
			f := &t.Fields[i]
			if f.Optional {
				continue
			}
			fn := fieldIdent(f.Name)
			switch f.Type.Kind {
			case typegraph.RefSequence:
				fmt.Fprintf(b, "\tout.%s = %s{}\n", fn, e.typeExpr(&f.Type, false))
			case typegraph.RefMap:
				fmt.Fprintf(b, "\tout.%s = %s{}\n", fn, e.typeExpr(&f.Type, false))
			}
		}
		fmt.Fprintf(b, "\treturn out\n}\n\n")
	}
}

func (e *emitter) writeBuilders(b *strings.Builder, t *typegraph.Type, name string) {
	for i := range t.Fields {
		f := &t.Fields[i]
		fn := fieldIdent(f.Name)
		expr := e.typeExpr(&f.Type, false)
		fmt.Fprintf(b, "// With%s sets %s and returns the receiver for chaining.\n", fn, fn)
		fmt.Fprintf(b, "func (in *%s) With%s(value %s) *%s {\n", name, fn, expr, name)
		if f.Optional && !isReferenceShaped(&f.Type) && !f.Type.Indirect {
			fmt.Fprintf(b, "\tin.%s = &value\n", fn)
		} else {
			fmt.Fprintf(b, "\tin.%s = value\n", fn)
		}
		fmt.Fprintf(b, "\treturn in\n}\n\n")
	}
}

func (e *emitter) writeEnum(b *strings.Builder, t *typegraph.Type) {
	name := t.Name
	if e.opts.Docs && t.Doc != "" {
		e.writeDoc(b, "", t.Doc)
	}
	numeric := len(t.Variants) > 0
	for _, v := range t.Variants {
		if v.IsString {
			numeric = false
			break
		}
	}
	if numeric {
		fmt.Fprintf(b, "type %s int64\n\n", name)
		fmt.Fprintf(b, "const (\n")
		for _, v := range t.Variants {
			fmt.Fprintf(b, "\t%s%s %s = %s\n", name, v.Name, name, v.Literal)
		}
		fmt.Fprintf(b, ")\n\n")
		return
	}
	fmt.Fprintf(b, "type %s string\n\n", name)
	fmt.Fprintf(b, "const (\n")
	for _, v := range t.Variants {
		fmt.Fprintf(b, "\t%s%s %s = %q\n", name, v.Name, name, v.Literal)
	}
	fmt.Fprintf(b, ")\n\n")
}

// writeUnion renders a tagged union the way Kubernetes APIs spell them: one
// optional member per variant, at most one set.
func (e *emitter) writeUnion(b *strings.Builder, t *typegraph.Type) {
	name := t.Name
	if e.opts.Docs && t.Doc != "" {
		e.writeDoc(b, "", t.Doc)
	} else {
		fmt.Fprintf(b, "// %s accepts exactly one of its members.\n", name)
	}
	fmt.Fprintf(b, "type %s struct {\n", name)
	for i := range t.Variants {
		v := &t.Variants[i]
		expr := e.typeExpr(v.Type, true)
		fmt.Fprintf(b, "\t%s %s `json:\"%s,omitempty\"`\n", v.Name, expr, jsonName(v.Name))
	}
	fmt.Fprintf(b, "}\n\n")
}

func (e *emitter) writeField(b *strings.Builder, f *typegraph.Field) {
	if e.opts.Docs && f.Doc != "" {
		e.writeDoc(b, "\t", f.Doc)
	}
	tag := f.Name
	if f.Optional {
		tag += ",omitempty"
	}
	fmt.Fprintf(b, "\t%s %s `json:%q`\n", fieldIdent(f.Name), e.typeExpr(&f.Type, f.Optional), tag)
}

func (e *emitter) writeDoc(b *strings.Builder, indent, doc string) {
	for _, line := range strings.Split(strings.TrimSpace(doc), "\n") {
		fmt.Fprintf(b, "%s// %s\n", indent, strings.TrimRight(line, " \t"))
	}
}

// typeExpr renders a reference as Go syntax. Optional scalars and named types
// become pointers so absence is distinguishable; collections already encode
// absence as emptiness.
func (e *emitter) typeExpr(r *typegraph.Ref, optional bool) string {
	expr := e.bareTypeExpr(r)
	if r.Kind == typegraph.RefNamed && r.Indirect {
		return "*" + expr
	}
	if optional && !isReferenceShaped(r) {
		return "*" + expr
	}
	return expr
}

func (e *emitter) bareTypeExpr(r *typegraph.Ref) string {
	switch r.Kind {
	case typegraph.RefPrimitive:
		switch r.Prim {
		case typegraph.PrimString:
			return "string"
		case typegraph.PrimBool:
			return "bool"
		case typegraph.PrimInt32:
			return "int32"
		case typegraph.PrimInt64:
			return "int64"
		case typegraph.PrimFloat32:
			return "float32"
		case typegraph.PrimFloat64:
			return "float64"
		case typegraph.PrimDate, typegraph.PrimDateTime:
			return "metav1.Time"
		}
	case typegraph.RefNamed, typegraph.RefForeign:
		return r.Name
	case typegraph.RefExternal:
		switch r.External {
		case typegraph.ExtIntOrString:
			return "intstr.IntOrString"
		case typegraph.ExtCondition:
			return "metav1.Condition"
		case typegraph.ExtObjectReference:
			return "corev1.ObjectReference"
		case typegraph.ExtJSON:
			return "apiextensionsv1.JSON"
		}
	case typegraph.RefSequence:
		return "[]" + e.bareTypeExpr(r.Elem)
	case typegraph.RefMap:
		return "map[string]" + e.bareTypeExpr(r.Elem)
	}
	return "any"
}

// isReferenceShaped reports whether a ref already distinguishes absence
// without a pointer wrapper.
func isReferenceShaped(r *typegraph.Ref) bool {
	return r.Kind == typegraph.RefSequence || r.Kind == typegraph.RefMap
}

func fieldIdent(name string) string {
	ident := pascalIdent(name)
	if ident == "" {
		return "Field"
	}
	if unicode.IsDigit([]rune(ident)[0]) {
		return "N" + ident
	}
	return ident
}

func jsonName(variant string) string {
	if variant == "" {
		return variant
	}
	r := []rune(variant)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func pascalIdent(s string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if _, kw := goKeywords[strings.ToLower(out)]; kw {
		out += "Value"
	}
	return out
}
