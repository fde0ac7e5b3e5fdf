package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apiextv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"sigs.k8s.io/yaml"

	"github.com/kube-rs/kopium/internal/override"
	"github.com/kube-rs/kopium/internal/schema"
	"github.com/kube-rs/kopium/pkg/typegraph"
)

func mustSchema(t *testing.T, doc string) *schema.Node {
	t.Helper()
	props := apiextv1.JSONSchemaProps{}
	require.NoError(t, yaml.Unmarshal([]byte(doc), &props))
	return schema.FromProps(&props)
}

func mustBuild(t *testing.T, kind, doc string) *typegraph.Graph {
	t.Helper()
	g, err := Build(context.Background(), mustSchema(t, doc), Config{Kind: kind})
	require.NoError(t, err)
	return g
}

func prim(p typegraph.Primitive) typegraph.Ref {
	return typegraph.Ref{Kind: typegraph.RefPrimitive, Prim: p}
}

func named(name string) typegraph.Ref {
	return typegraph.Ref{Kind: typegraph.RefNamed, Name: name}
}

func ext(e typegraph.External) typegraph.Ref {
	return typegraph.Ref{Kind: typegraph.RefExternal, External: e}
}

func seq(elem typegraph.Ref) typegraph.Ref {
	return typegraph.Ref{Kind: typegraph.RefSequence, Elem: &elem}
}

func mapOf(elem typegraph.Ref) typegraph.Ref {
	return typegraph.Ref{Kind: typegraph.RefMap, Elem: &elem}
}

func field(t *testing.T, g *typegraph.Graph, typeName, fieldName string) *typegraph.Field {
	t.Helper()
	typ, ok := g.Lookup(typeName)
	require.True(t, ok, "type %s not in graph", typeName)
	for i := range typ.Fields {
		if typ.Fields[i].Name == fieldName {
			return &typ.Fields[i]
		}
	}
	t.Fatalf("field %s not found on %s", fieldName, typeName)
	return nil
}

func TestMapOfStruct(t *testing.T) {
	// validationsInfo from the agent CRD: a map from category to a list of
	// validation results
	g := mustBuild(t, "Agent", `
description: AgentStatus defines the observed state of Agent
properties:
  validationsInfo:
    additionalProperties:
      items:
        properties:
          id:
            type: string
          message:
            type: string
          status:
            type: string
        required:
        - id
        - message
        - status
        type: object
      type: array
    description: ValidationsInfo is a JSON-formatted string containing validation results
    type: object
type: object
`)
	require.Equal(t, 2, g.Len())

	root, ok := g.Lookup("Agent")
	require.True(t, ok)
	assert.Equal(t, 0, root.Level)

	f := field(t, g, "Agent", "validationsInfo")
	assert.Equal(t, mapOf(seq(named("AgentValidationsInfo"))), f.Type)
	assert.True(t, f.Optional)

	inner, ok := g.Lookup("AgentValidationsInfo")
	require.True(t, ok)
	require.Len(t, inner.Fields, 3)
	assert.Equal(t, "id", inner.Fields[0].Name)
	assert.Equal(t, prim(typegraph.PrimString), inner.Fields[0].Type)
	assert.False(t, inner.Fields[0].Optional)
	assert.Equal(t, "message", inner.Fields[1].Name)
	assert.Equal(t, "status", inner.Fields[2].Name)
}

func TestEmptyPreserveUnknownFields(t *testing.T) {
	g := mustBuild(t, "Server", `
description: Identifies servers in the same namespace for which this authorization applies.
required:
- selector
properties:
  selector:
    description: A label query over servers on which this authorization applies.
    required:
    - matchLabels
    properties:
      matchLabels:
        type: object
        x-kubernetes-preserve-unknown-fields: true
    type: object
type: object
`)
	f := field(t, g, "Server", "selector")
	assert.Equal(t, named("ServerSelector"), f.Type)
	assert.False(t, f.Optional)

	ml := field(t, g, "ServerSelector", "matchLabels")
	assert.Equal(t, mapOf(ext(typegraph.ExtJSON)), ml.Type)
	// required map: absence decodes as empty rather than becoming optional
	assert.False(t, ml.Optional)
	assert.True(t, ml.DefaultWhenAbsent)
}

func TestIntOrString(t *testing.T) {
	g := mustBuild(t, "Server", `
properties:
  port:
    description: A port name or number. Must exist in a pod spec.
    x-kubernetes-int-or-string: true
required:
- port
type: object
`)
	require.Equal(t, 1, g.Len())
	f := field(t, g, "Server", "port")
	assert.Equal(t, ext(typegraph.ExtIntOrString), f.Type)
	assert.False(t, f.Optional)
	assert.True(t, g.UsesExternal(typegraph.ExtIntOrString))
}

func TestIntOrStringFromAnyOf(t *testing.T) {
	g := mustBuild(t, "Server", `
properties:
  port:
    anyOf:
    - type: integer
    - type: string
type: object
`)
	f := field(t, g, "Server", "port")
	assert.Equal(t, ext(typegraph.ExtIntOrString), f.Type)
}

func TestBooleanInAdditionals(t *testing.T) {
	// as found in argo-app
	g := mustBuild(t, "Options", `
properties:
  options:
    additionalProperties:
      type: boolean
    type: object
  patch:
    type: string
type: object
`)
	require.Equal(t, 1, g.Len())
	f := field(t, g, "Options", "options")
	assert.Equal(t, mapOf(prim(typegraph.PrimBool)), f.Type)
	assert.True(t, f.Optional)
}

func TestEnumString(t *testing.T) {
	g := mustBuild(t, "MatchExpressions", `
properties:
  operator:
    enum:
    - In
    - NotIn
    - Exists
    - DoesNotExist
    type: string
required:
- operator
type: object
`)
	f := field(t, g, "MatchExpressions", "operator")
	assert.Equal(t, named("MatchExpressionsOperator"), f.Type)
	assert.False(t, f.Optional)

	op, ok := g.Lookup("MatchExpressionsOperator")
	require.True(t, ok)
	assert.Equal(t, typegraph.KindEnum, op.Kind)
	require.Len(t, op.Variants, 4)
	assert.Equal(t, "In", op.Variants[0].Literal)
	assert.Equal(t, "In", op.Variants[0].Name)
	assert.Equal(t, "NotIn", op.Variants[1].Literal)
	assert.Equal(t, "Exists", op.Variants[2].Literal)
	assert.Equal(t, "DoesNotExist", op.Variants[3].Literal)
	assert.Equal(t, "DoesNotExist", op.Variants[3].Name)
}

func TestEnumStringWithinContainer(t *testing.T) {
	g := mustBuild(t, "Endpoint", `
description: Endpoint
properties:
  relabelings:
    items:
      properties:
        action:
          default: replace
          enum:
          - replace
          - keep
          - drop
          - hashmod
          - labelmap
          - labeldrop
          - labelkeep
          type: string
        modulus:
          format: int64
          type: integer
      type: object
    type: array
type: object
`)
	f := field(t, g, "Endpoint", "relabelings")
	assert.Equal(t, seq(named("EndpointRelabelings")), f.Type)
	assert.True(t, f.Optional)

	action := field(t, g, "EndpointRelabelings", "action")
	assert.Equal(t, named("EndpointRelabelingsAction"), action.Type)
	assert.True(t, action.Optional)

	act, ok := g.Lookup("EndpointRelabelingsAction")
	require.True(t, ok)
	assert.Equal(t, typegraph.KindEnum, act.Kind)
	require.Len(t, act.Variants, 7)
	assert.Equal(t, "replace", act.Variants[0].Literal)
	assert.Equal(t, "Replace", act.Variants[0].Name)
	assert.Equal(t, "hashmod", act.Variants[3].Literal)
	assert.Equal(t, "Hashmod", act.Variants[3].Name)
}

func TestServiceMonitorParams(t *testing.T) {
	g := mustBuild(t, "ServiceMonitor", `
properties:
  endpoints:
    items:
      description: Endpoint defines a scrapeable endpoint serving Prometheus metrics.
      properties:
        params:
          additionalProperties:
            items:
              type: string
            type: array
          description: Optional HTTP URL parameters
          type: object
      type: object
    type: array
required:
- endpoints
type: object
`)
	eps := field(t, g, "ServiceMonitor", "endpoints")
	assert.Equal(t, seq(named("ServiceMonitorEndpoints")), eps.Type)
	assert.False(t, eps.Optional)
	assert.True(t, eps.DefaultWhenAbsent)

	params := field(t, g, "ServiceMonitorEndpoints", "params")
	assert.Equal(t, mapOf(seq(prim(typegraph.PrimString))), params.Type)
	assert.True(t, params.Optional)
}

func TestIntegerHandlingInMaps(t *testing.T) {
	// distribute is an array of {from: string, to: map<string, int32>}
	g := mustBuild(t, "DestinationRule", `
properties:
  distribute:
    description: 'Optional: only one of distribute, failover or failoverPriority can be set.'
    items:
      properties:
        from:
          description: Originating locality, '/' separated
          type: string
        to:
          additionalProperties:
            type: integer
            format: int32
          description: Map of upstream localities to traffic distribution weights.
          type: object
      type: object
    type: array
type: object
`)
	dist := field(t, g, "DestinationRule", "distribute")
	assert.Equal(t, seq(named("DestinationRuleDistribute")), dist.Type)

	from := field(t, g, "DestinationRuleDistribute", "from")
	assert.Equal(t, prim(typegraph.PrimString), from.Type)
	assert.True(t, from.Optional)

	to := field(t, g, "DestinationRuleDistribute", "to")
	assert.Equal(t, mapOf(prim(typegraph.PrimInt32)), to.Type)
}

func TestArrayOfPreserveUnknownObjects(t *testing.T) {
	// from the flux kustomization crd
	g := mustBuild(t, "KustomizationSpec", `
properties:
  patchesStrategicMerge:
    description: Strategic merge patches, defined as inline YAML objects.
    items:
      x-kubernetes-preserve-unknown-fields: true
    type: array
type: object
`)
	require.Equal(t, 1, g.Len())
	f := field(t, g, "KustomizationSpec", "patchesStrategicMerge")
	assert.Equal(t, seq(mapOf(ext(typegraph.ExtJSON))), f.Type)
}

func TestNestedPropertiesInAdditionalProperties(t *testing.T) {
	g := mustBuild(t, "AppProjectStatus", `
properties:
  jwtTokensByRole:
    additionalProperties:
      description: JWTTokens represents a list of JWT tokens
      properties:
        items:
          items:
            properties:
              exp:
                format: int64
                type: integer
              iat:
                format: int64
                type: integer
              id:
                type: string
            required:
            - iat
            type: object
          type: array
      type: object
    type: object
type: object
`)
	f := field(t, g, "AppProjectStatus", "jwtTokensByRole")
	assert.Equal(t, mapOf(named("AppProjectStatusJwtTokensByRole")), f.Type)

	_, ok := g.Lookup("AppProjectStatusJwtTokensByRole")
	require.True(t, ok)

	items := field(t, g, "AppProjectStatusJwtTokensByRole", "items")
	assert.Equal(t, seq(named("AppProjectStatusJwtTokensByRoleItems")), items.Type)

	inner, ok := g.Lookup("AppProjectStatusJwtTokensByRoleItems")
	require.True(t, ok)
	require.Len(t, inner.Fields, 3)
	assert.Equal(t, "exp", inner.Fields[0].Name)
	assert.True(t, inner.Fields[0].Optional)
	assert.Equal(t, "iat", inner.Fields[1].Name)
	assert.False(t, inner.Fields[1].Optional)
	assert.Equal(t, "id", inner.Fields[2].Name)
}

func TestSkippedTypeAsMapNestedInArray(t *testing.T) {
	g := mustBuild(t, "Geoip", `
properties:
  records:
    items:
      additionalProperties:
        type: string
      type: object
    type: array
type: object
`)
	require.Equal(t, 1, g.Len())
	f := field(t, g, "Geoip", "records")
	assert.Equal(t, seq(mapOf(prim(typegraph.PrimString))), f.Type)
}

func TestConditionSubstitution(t *testing.T) {
	doc := `
properties:
  conditions:
    items:
      properties:
        lastTransitionTime:
          type: string
        message:
          type: string
        observedGeneration:
          type: integer
        reason:
          type: string
        status:
          type: string
        type:
          type: string
      required:
      - type
      - status
      type: object
    type: array
type: object
`
	g := mustBuild(t, "Gateway", doc)
	// zero generated types for the subtree, a reference to the external type
	require.Equal(t, 1, g.Len())
	f := field(t, g, "Gateway", "conditions")
	assert.Equal(t, seq(ext(typegraph.ExtCondition)), f.Type)
	assert.True(t, g.UsesExternal(typegraph.ExtCondition))

	t.Run("suppressed", func(t *testing.T) {
		g, err := Build(context.Background(), mustSchema(t, doc), Config{Kind: "Gateway", SuppressCondition: true})
		require.NoError(t, err)
		assert.Equal(t, 2, g.Len())
		f := field(t, g, "Gateway", "conditions")
		assert.Equal(t, seq(named("GatewayConditions")), f.Type)
	})

	t.Run("not matched without required status", func(t *testing.T) {
		g := mustBuild(t, "Gateway", `
properties:
  conditions:
    items:
      properties:
        lastTransitionTime:
          type: string
        message:
          type: string
        reason:
          type: string
        status:
          type: string
        type:
          type: string
      type: object
    type: array
type: object
`)
		assert.Equal(t, 2, g.Len())
	})
}

func TestObjectReferenceSubstitution(t *testing.T) {
	g := mustBuild(t, "Widget", `
properties:
  targetRef:
    properties:
      apiVersion:
        type: string
      kind:
        type: string
      name:
        type: string
      namespace:
        type: string
    type: object
type: object
`)
	require.Equal(t, 1, g.Len())
	f := field(t, g, "Widget", "targetRef")
	assert.Equal(t, ext(typegraph.ExtObjectReference), f.Type)
}

func TestUnderscoreToCamelCase(t *testing.T) {
	g := mustBuild(t, "Agent", `
properties:
  validations_info:
    type: object
    properties:
      id:
        type: string
type: object
`)
	f := field(t, g, "Agent", "validations_info")
	assert.Equal(t, named("AgentValidationsInfo"), f.Type)
}

func TestEmptyObjectBecomesOpenMap(t *testing.T) {
	// zero properties and no additional-properties schema: a placeholder, not
	// an empty composite
	g := mustBuild(t, "Agent", `
properties:
  blob:
    type: object
type: object
`)
	require.Equal(t, 1, g.Len())
	f := field(t, g, "Agent", "blob")
	assert.Equal(t, mapOf(ext(typegraph.ExtJSON)), f.Type)
}

func TestIgnoredRootKeys(t *testing.T) {
	g := mustBuild(t, "Thing", `
properties:
  apiVersion:
    type: string
  kind:
    type: string
  metadata:
    type: object
  spec:
    type: object
    properties:
      replicas:
        type: integer
type: object
`)
	root, ok := g.Lookup("Thing")
	require.True(t, ok)
	require.Len(t, root.Fields, 1)
	assert.Equal(t, "spec", root.Fields[0].Name)
}

func TestScenarioGroups(t *testing.T) {
	g := mustBuild(t, "Probe", `
properties:
  groups:
    items:
      properties:
        interval:
          type: string
        name:
          type: string
      required:
      - name
      type: object
    type: array
required:
- groups
type: object
`)
	require.Equal(t, 2, g.Len())

	groups := field(t, g, "Probe", "groups")
	assert.Equal(t, seq(named("ProbeGroups")), groups.Type)
	assert.False(t, groups.Optional)

	name := field(t, g, "ProbeGroups", "name")
	assert.Equal(t, prim(typegraph.PrimString), name.Type)
	assert.False(t, name.Optional)

	interval := field(t, g, "ProbeGroups", "interval")
	assert.True(t, interval.Optional)
}

func TestScenarioLiteralOneOf(t *testing.T) {
	g := mustBuild(t, "Policy", `
properties:
  mode:
    oneOf:
    - type: string
      enum:
      - A
    - type: string
      enum:
      - B
    - type: string
      enum:
      - C
type: object
`)
	mode, ok := g.Lookup("PolicyMode")
	require.True(t, ok)
	assert.Equal(t, typegraph.KindEnum, mode.Kind)
	require.Len(t, mode.Variants, 3)
	assert.Equal(t, "A", mode.Variants[0].Literal)
	assert.Equal(t, "B", mode.Variants[1].Literal)
	assert.Equal(t, "C", mode.Variants[2].Literal)
}

func TestTaggedUnion(t *testing.T) {
	g := mustBuild(t, "Auth", `
properties:
  credentials:
    oneOf:
    - type: object
      properties:
        token:
          type: string
      required:
      - token
    - type: object
      properties:
        username:
          type: string
        password:
          type: string
      required:
      - username
type: object
`)
	creds, ok := g.Lookup("AuthCredentials")
	require.True(t, ok)
	assert.Equal(t, typegraph.KindUnion, creds.Kind)
	require.Len(t, creds.Variants, 2)
	assert.Equal(t, "Token", creds.Variants[0].Name)
	assert.Equal(t, "Username", creds.Variants[1].Name)
	require.NotNil(t, creds.Variants[0].Type)
	assert.Equal(t, named("AuthCredentialsToken"), *creds.Variants[0].Type)
}

func TestMixedUnion(t *testing.T) {
	doc := `
properties:
  value:
    oneOf:
    - type: string
      enum:
      - auto
    - type: object
      properties:
        fixed:
          type: integer
type: object
`
	_, err := Build(context.Background(), mustSchema(t, doc), Config{Kind: "Scaler"})
	var ue *UnionError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "Scaler.value", ue.Path)

	t.Run("relaxed", func(t *testing.T) {
		g, err := Build(context.Background(), mustSchema(t, doc), Config{Kind: "Scaler", Relaxed: true})
		require.NoError(t, err)
		f := field(t, g, "Scaler", "value")
		assert.Equal(t, ext(typegraph.ExtJSON), f.Type)
		require.Len(t, g.Diagnostics, 1)
		assert.Equal(t, "Scaler.value", g.Diagnostics[0].Path)
	})
}

func TestSchemalessValue(t *testing.T) {
	doc := `
properties:
  anything: {}
type: object
`
	_, err := Build(context.Background(), mustSchema(t, doc), Config{Kind: "Loose"})
	var ue *UnsupportedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "Loose.anything", ue.Path)

	t.Run("relaxed", func(t *testing.T) {
		g, err := Build(context.Background(), mustSchema(t, doc), Config{Kind: "Loose", Relaxed: true})
		require.NoError(t, err)
		f := field(t, g, "Loose", "anything")
		assert.Equal(t, mapOf(ext(typegraph.ExtJSON)), f.Type)
		require.Len(t, g.Diagnostics, 1)
	})
}

func TestDeduplication(t *testing.T) {
	g := mustBuild(t, "Pair", `
properties:
  first:
    type: object
    properties:
      host:
        type: string
      port:
        type: integer
    required:
    - host
  second:
    type: object
    properties:
      host:
        type: string
      port:
        type: integer
    required:
    - host
type: object
`)
	// structurally identical shapes at different paths collapse to one type
	require.Equal(t, 2, g.Len())
	first := field(t, g, "Pair", "first")
	second := field(t, g, "Pair", "second")
	assert.Equal(t, named("PairFirst"), first.Type)
	assert.Equal(t, named("PairFirst"), second.Type)
}

func TestNamingCollision(t *testing.T) {
	// foo_bar and fooBar normalize to the same candidate name but have
	// different shapes, which must fail rather than silently merge
	doc := `
properties:
  foo_bar:
    type: object
    properties:
      a:
        type: string
  fooBar:
    type: object
    properties:
      b:
        type: integer
type: object
`
	_, err := Build(context.Background(), mustSchema(t, doc), Config{Kind: "Clash"})
	var ce *CollisionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "ClashFooBar", ce.Name)
}

func TestCycleTermination(t *testing.T) {
	// a self-referential definition, as produced by aliased schema nodes
	root := &schema.Node{Kind: schema.KindObject}
	root.Properties = []schema.Property{
		{Name: "name", Schema: &schema.Node{Kind: schema.KindScalar, Scalar: schema.ScalarString}},
	}
	root.Required = map[string]struct{}{"name": {}}
	root.Properties = append(root.Properties, schema.Property{Name: "next", Schema: root})

	g, err := Build(context.Background(), root, Config{Kind: "LinkedList"})
	require.NoError(t, err)
	require.Equal(t, 1, g.Len())

	typ, ok := g.Lookup("LinkedList")
	require.True(t, ok)
	assert.True(t, typ.SelfReferential)

	next := field(t, g, "LinkedList", "next")
	assert.Equal(t, typegraph.RefNamed, next.Type.Kind)
	assert.Equal(t, "LinkedList", next.Type.Name)
	assert.True(t, next.Type.Indirect)

	g.Freeze()
	require.NoError(t, g.Validate())
}

func TestAliasedNodesShareOneType(t *testing.T) {
	shared := &schema.Node{
		Kind: schema.KindObject,
		Properties: []schema.Property{
			{Name: "value", Schema: &schema.Node{Kind: schema.KindScalar, Scalar: schema.ScalarString}},
		},
	}
	root := &schema.Node{
		Kind: schema.KindObject,
		Properties: []schema.Property{
			{Name: "left", Schema: shared},
			{Name: "right", Schema: shared},
		},
	}
	g, err := Build(context.Background(), root, Config{Kind: "Tree"})
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())
	assert.Equal(t, field(t, g, "Tree", "left").Type, field(t, g, "Tree", "right").Type)
}

func TestDepthCap(t *testing.T) {
	doc := `
properties:
  a:
    type: object
    properties:
      b:
        type: object
        properties:
          c:
            type: object
            properties:
              d:
                type: string
type: object
`
	_, err := Build(context.Background(), mustSchema(t, doc), Config{Kind: "Deep", MaxDepth: 2})
	var de *DepthError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2, de.Limit)
}

func TestDeterminism(t *testing.T) {
	doc := `
properties:
  groups:
    items:
      properties:
        interval:
          type: string
        mode:
          enum:
          - "on"
          - "off"
          type: string
        name:
          type: string
      required:
      - name
      type: object
    type: array
  labels:
    additionalProperties:
      type: string
    type: object
required:
- groups
type: object
`
	first := mustBuild(t, "Probe", doc)
	second := mustBuild(t, "Probe", doc)
	require.Equal(t, first.Types(), second.Types())

	// names are pairwise distinct
	seen := map[string]struct{}{}
	for _, typ := range first.Types() {
		_, dup := seen[typ.Name]
		assert.False(t, dup, "duplicate name %s", typ.Name)
		seen[typ.Name] = struct{}{}
	}
}

func TestDocsCarried(t *testing.T) {
	g := mustBuild(t, "Agent", `
description: Agent is the Schema for the agents API
properties:
  spec:
    description: AgentSpec defines the desired state of Agent
    properties:
      hostname:
        description: Requested hostname for this host.
        type: string
    type: object
type: object
`)
	root, ok := g.Lookup("Agent")
	require.True(t, ok)
	assert.Equal(t, "Agent is the Schema for the agents API", root.Doc)

	host := field(t, g, "AgentSpec", "hostname")
	assert.Equal(t, "Requested hostname for this host.", host.Doc)
}

func TestTimestampFormats(t *testing.T) {
	g := mustBuild(t, "Job", `
properties:
  startedAt:
    type: string
    format: date-time
  day:
    type: string
    format: date
  note:
    type: string
type: object
`)
	assert.Equal(t, prim(typegraph.PrimDateTime), field(t, g, "Job", "startedAt").Type)
	assert.Equal(t, prim(typegraph.PrimDate), field(t, g, "Job", "day").Type)
	assert.Equal(t, prim(typegraph.PrimString), field(t, g, "Job", "note").Type)
}

func TestRootMustBeObject(t *testing.T) {
	_, err := Build(context.Background(), mustSchema(t, `type: string`), Config{Kind: "Oops"})
	var ue *UnsupportedError
	require.ErrorAs(t, err, &ue)
}

func TestForeignReplacement(t *testing.T) {
	// a property replaced during conversion resolves to a verbatim reference
	// and never synthesizes a type
	rules, err := override.Parse([]byte(`
propertyRules:
  - matchName:
      - exact: secretRef
    matchSuccess:
      replace: corev1.LocalObjectReference
`))
	require.NoError(t, err)
	props := apiextv1.JSONSchemaProps{}
	require.NoError(t, yaml.Unmarshal([]byte(`
type: object
properties:
  secretRef:
    type: object
    properties:
      name:
        type: string
  name:
    type: string
`), &props))

	g, err := Build(context.Background(), schema.Convert(&props, rules), Config{Kind: "Agent"})
	require.NoError(t, err)

	f := field(t, g, "Agent", "secretRef")
	assert.Equal(t, typegraph.Ref{Kind: typegraph.RefForeign, Name: "corev1.LocalObjectReference"}, f.Type)
	assert.True(t, f.Optional)

	_, ok := g.Lookup("AgentSecretRef")
	assert.False(t, ok, "replaced property must not synthesize a type")

	g.Freeze()
	assert.NoError(t, g.Validate())
}
