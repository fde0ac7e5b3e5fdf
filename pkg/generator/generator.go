// Package generator ties the pipeline together: version selection, schema
// conversion, type graph analysis, capability resolution, and Go emission.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	apiextv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"

	"github.com/kube-rs/kopium/internal/analysis"
	"github.com/kube-rs/kopium/internal/codegen"
	"github.com/kube-rs/kopium/internal/derive"
	"github.com/kube-rs/kopium/internal/override"
	"github.com/kube-rs/kopium/internal/schema"
	"github.com/kube-rs/kopium/internal/version"
	"github.com/kube-rs/kopium/pkg/typegraph"
)

// SchemaMode controls whether generated types carry schema reflection.
type SchemaMode string

const (
	// SchemaDisabled emits no schema support.
	SchemaDisabled SchemaMode = "disabled"
	// SchemaManual expects the caller to supply schema support elsewhere.
	SchemaManual SchemaMode = "manual"
	// SchemaDerived requests the reflection capability on every type.
	SchemaDerived SchemaMode = "derived"
)

// MapRepresentation selects the emitter's map flavor. Cosmetic; it never
// changes the type graph.
type MapRepresentation string

const (
	MapOrdered   MapRepresentation = "ordered"
	MapUnordered MapRepresentation = "unordered"
)

// Config is the full set of recognized generation options. CLI flags map
// onto it one to one.
type Config struct {
	// VersionPin selects a specific schema version instead of the default
	// storage-or-latest policy.
	VersionPin string
	// CombineVersions unions compatible versions field by field instead of
	// picking one.
	CombineVersions bool
	// Docs renders schema descriptions as doc comments.
	Docs bool
	// Builders requests builder-style construction on composite types.
	Builders bool
	// SchemaMode requests schema reflection support.
	SchemaMode SchemaMode
	// Derives holds extra capability directives, see derive.Parse.
	Derives []string
	// Elide suppresses named types from emitted output.
	Elide []string
	// Overrides replaces or omits matched properties during schema
	// conversion, see the override package for the rule format.
	Overrides *override.Set
	// Relaxed downgrades unsupported constructs to diagnostics.
	Relaxed bool
	// NoCondition disables canonical Condition substitution.
	NoCondition bool
	// NoObjectReference disables canonical ObjectReference substitution.
	NoObjectReference bool
	// MapRepresentation picks the emitted map flavor.
	MapRepresentation MapRepresentation
	// SmartElision drops underivable default-construction instead of
	// emitting it unconditionally.
	SmartElision bool
	// Auto is shorthand for derived schema mode, reflection, and docs.
	Auto bool
	// MaxDepth overrides the analyzer's recursion cap when positive.
	MaxDepth int
	// Package names the emitted Go package; defaults to the lowercased kind.
	Package string
	// HeaderArgs reproduces the invoking command line in the header comment.
	HeaderArgs string
}

func (c Config) normalized() Config {
	if c.Auto {
		c.Docs = true
		c.SchemaMode = SchemaDerived
	}
	if c.SchemaMode == "" {
		c.SchemaMode = SchemaDisabled
	}
	if c.MapRepresentation == "" {
		c.MapRepresentation = MapUnordered
	}
	return c
}

// Result is a completed analysis: the frozen graph plus everything an
// emitter needs about the resource it came from.
type Result struct {
	Graph    *typegraph.Graph
	Resource codegen.Resource
}

// Analyze runs the pipeline up to a frozen, capability-decorated type graph.
func Analyze(ctx context.Context, crd *apiextv1.CustomResourceDefinition, cfg Config) (*Result, error) {
	cfg = cfg.normalized()

	var candidates []version.Candidate
	for _, v := range crd.Spec.Versions {
		if v.Schema == nil || v.Schema.OpenAPIV3Schema == nil {
			continue
		}
		candidates = append(candidates, version.Candidate{
			Label:   v.Name,
			Served:  v.Served,
			Storage: v.Storage,
			Schema:  schema.Convert(v.Schema.OpenAPIV3Schema, cfg.Overrides),
		})
	}
	selected, err := version.Select(candidates, cfg.VersionPin)
	if err != nil {
		return nil, err
	}
	root := selected.Schema
	if cfg.CombineVersions {
		root, err = version.Combine(candidates)
		if err != nil {
			return nil, err
		}
	}

	graph, err := analysis.Build(ctx, root, analysis.Config{
		Kind:                    crd.Spec.Names.Kind,
		Relaxed:                 cfg.Relaxed,
		SuppressCondition:       cfg.NoCondition,
		SuppressObjectReference: cfg.NoObjectReference,
		MaxDepth:                cfg.MaxDepth,
	})
	if err != nil {
		return nil, err
	}

	directives, err := parseDirectives(cfg)
	if err != nil {
		return nil, err
	}
	derive.Resolve(graph, directives, derive.Options{SmartElision: cfg.SmartElision})

	graph.Freeze()
	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("validating type graph: %w", err)
	}

	return &Result{
		Graph: graph,
		Resource: codegen.Resource{
			Group:      crd.Spec.Group,
			Version:    selected.Label,
			Kind:       crd.Spec.Names.Kind,
			Plural:     crd.Spec.Names.Plural,
			Namespaced: crd.Spec.Scope == apiextv1.NamespaceScoped,
		},
	}, nil
}

func parseDirectives(cfg Config) ([]derive.Directive, error) {
	var out []derive.Directive
	for _, raw := range cfg.Derives {
		d, err := derive.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing derive directive: %w", err)
		}
		out = append(out, d)
	}
	if cfg.Builders {
		out = append(out, derive.Directive{Target: derive.TargetComposites, Capability: typegraph.CapBuilder})
	}
	if cfg.SchemaMode == SchemaDerived {
		out = append(out, derive.Directive{Target: derive.TargetAll, Capability: typegraph.CapReflection})
	}
	return out, nil
}

// Generate runs Analyze and lowers the graph to formatted Go source.
func Generate(ctx context.Context, crd *apiextv1.CustomResourceDefinition, cfg Config) (string, error) {
	cfg = cfg.normalized()
	res, err := Analyze(ctx, crd, cfg)
	if err != nil {
		return "", err
	}
	log := logr.FromContextOrDiscard(ctx)
	for _, d := range res.Graph.Diagnostics {
		log.Info("schema construct downgraded", "path", d.Path, "reason", d.Message)
	}

	pkg := cfg.Package
	if pkg == "" {
		pkg = strings.ToLower(crd.Spec.Names.Kind)
	}
	header := []string{"Code generated by kopium. DO NOT EDIT."}
	if cfg.HeaderArgs != "" {
		header = append(header, "kopium command: kopium "+cfg.HeaderArgs)
	}

	return codegen.Emit(res.Graph, codegen.Options{
		Package:     pkg,
		Docs:        cfg.Docs,
		Elide:       cfg.Elide,
		Header:      header,
		OrderedMaps: cfg.MapRepresentation == MapOrdered,
		Resource:    res.Resource,
	})
}
