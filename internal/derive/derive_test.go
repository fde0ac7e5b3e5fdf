package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kube-rs/kopium/pkg/typegraph"
)

func TestParse(t *testing.T) {
	d, err := Parse("equality")
	require.NoError(t, err)
	assert.Equal(t, Directive{Target: TargetAll, Capability: typegraph.CapEquality}, d)

	d, err = Parse("MyTypeGroups=ordering")
	require.NoError(t, err)
	assert.Equal(t, Directive{Target: TargetType, TypeName: "MyTypeGroups", Capability: typegraph.CapOrdering}, d)

	d, err = Parse("@composite=builder")
	require.NoError(t, err)
	assert.Equal(t, Directive{Target: TargetComposites, Capability: typegraph.CapBuilder}, d)

	d, err = Parse("@struct=builder")
	require.NoError(t, err)
	assert.Equal(t, TargetComposites, d.Target)

	d, err = Parse("@enum=default")
	require.NoError(t, err)
	assert.Equal(t, Directive{Target: TargetEnums, Capability: typegraph.CapDefault}, d)

	d, err = Parse("@enum:unit=default")
	require.NoError(t, err)
	assert.True(t, d.UnitOnly)

	d, err = Parse("@enum:simple=default")
	require.NoError(t, err)
	assert.True(t, d.UnitOnly)

	// unknown capabilities pass through for downstream emitters
	d, err = Parse("hashable")
	require.NoError(t, err)
	assert.Equal(t, typegraph.Capability("hashable"), d.Capability)

	_, err = Parse("@widget=equality")
	assert.Error(t, err)
	_, err = Parse("=equality")
	assert.Error(t, err)
	_, err = Parse("MyType=")
	assert.Error(t, err)
}

func composite(name string, fields ...typegraph.Field) *typegraph.Type {
	return &typegraph.Type{Name: name, Kind: typegraph.KindComposite, Fields: fields}
}

func TestResolve(t *testing.T) {
	g := typegraph.New()
	require.NoError(t, g.Add(composite("Root",
		typegraph.Field{Name: "mode", Type: typegraph.Ref{Kind: typegraph.RefNamed, Name: "RootMode"}},
		typegraph.Field{Name: "blob", Type: typegraph.Ref{Kind: typegraph.RefExternal, External: typegraph.ExtJSON}, Optional: true},
	)))
	require.NoError(t, g.Add(&typegraph.Type{
		Name: "RootMode", Kind: typegraph.KindEnum,
		Variants: []typegraph.Variant{{Name: "On", Literal: "on", IsString: true}},
	}))

	Resolve(g, []Directive{
		{Target: TargetAll, Capability: typegraph.CapEquality},
		{Target: TargetAll, Capability: typegraph.CapOrdering},
		{Target: TargetAll, Capability: typegraph.CapBuilder},
		{Target: TargetAll, Capability: typegraph.CapDefault},
	}, Options{})

	root, _ := g.Lookup("Root")
	mode, _ := g.Lookup("RootMode")

	assert.True(t, root.Capabilities.Has(typegraph.CapEquality))
	assert.True(t, root.Capabilities.Has(typegraph.CapBuilder))
	// opaque json members admit no total order
	assert.False(t, root.Capabilities.Has(typegraph.CapOrdering))

	assert.True(t, mode.Capabilities.Has(typegraph.CapEquality))
	assert.False(t, mode.Capabilities.Has(typegraph.CapBuilder))
	assert.False(t, mode.Capabilities.Has(typegraph.CapDefault))
}

func TestResolveSmartElision(t *testing.T) {
	g := typegraph.New()
	require.NoError(t, g.Add(composite("Spec",
		typegraph.Field{Name: "mode", Type: typegraph.Ref{Kind: typegraph.RefNamed, Name: "SpecMode"}},
	)))
	require.NoError(t, g.Add(composite("Loose",
		typegraph.Field{Name: "mode", Type: typegraph.Ref{Kind: typegraph.RefNamed, Name: "SpecMode"}, Optional: true},
	)))
	require.NoError(t, g.Add(&typegraph.Type{
		Name: "SpecMode", Kind: typegraph.KindEnum,
		Variants: []typegraph.Variant{{Name: "On", Literal: "on", IsString: true}},
	}))

	directives := []Directive{{Target: TargetAll, Capability: typegraph.CapDefault}}

	t.Run("without elision the request sticks", func(t *testing.T) {
		Resolve(g, directives, Options{})
		spec, _ := g.Lookup("Spec")
		assert.True(t, spec.Capabilities.Has(typegraph.CapDefault))
	})

	t.Run("with elision required enum fields block defaulting", func(t *testing.T) {
		Resolve(g, directives, Options{SmartElision: true})
		spec, _ := g.Lookup("Spec")
		loose, _ := g.Lookup("Loose")
		assert.False(t, spec.Capabilities.Has(typegraph.CapDefault))
		// the optional reference does not poison the containing type
		assert.True(t, loose.Capabilities.Has(typegraph.CapDefault))
	})
}

func TestResolveSelfReference(t *testing.T) {
	g := typegraph.New()
	require.NoError(t, g.Add(composite("Node",
		typegraph.Field{Name: "next", Type: typegraph.Ref{Kind: typegraph.RefNamed, Name: "Node", Indirect: true}, Optional: true},
	)))

	Resolve(g, []Directive{{Target: TargetAll, Capability: typegraph.CapDefault}}, Options{SmartElision: true})
	node, _ := g.Lookup("Node")
	assert.True(t, node.Capabilities.Has(typegraph.CapDefault))
}

func TestAppliesTo(t *testing.T) {
	enum := &typegraph.Type{Name: "E", Kind: typegraph.KindEnum}
	union := &typegraph.Type{Name: "U", Kind: typegraph.KindUnion}
	comp := &typegraph.Type{Name: "C", Kind: typegraph.KindComposite}

	assert.True(t, Directive{Target: TargetEnums}.AppliesTo(enum))
	assert.True(t, Directive{Target: TargetEnums}.AppliesTo(union))
	assert.False(t, Directive{Target: TargetEnums, UnitOnly: true}.AppliesTo(union))
	assert.True(t, Directive{Target: TargetComposites}.AppliesTo(comp))
	assert.False(t, Directive{Target: TargetComposites}.AppliesTo(enum))
	assert.True(t, Directive{Target: TargetType, TypeName: "C"}.AppliesTo(comp))
	assert.False(t, Directive{Target: TargetType, TypeName: "C"}.AppliesTo(enum))
}
