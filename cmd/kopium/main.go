package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	apiextv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/kube-rs/kopium/internal/loader"
	"github.com/kube-rs/kopium/internal/override"
	"github.com/kube-rs/kopium/pkg/generator"
)

func main() {
	if err := newCommand().ExecuteContext(ctrl.SetupSignalHandler()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		cfg           generator.Config
		file          string
		out           string
		schemaMode    string
		mapRepr       string
		overrideFiles []string
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:   "kopium [crd-name]",
		Short: "Generate Go bindings from a CustomResourceDefinition schema",
		Long: "kopium analyzes the structural schema of a CustomResourceDefinition, fetched\n" +
			"from a live cluster by name or read from a manifest file, and emits\n" +
			"statically typed Go bindings for it.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.SchemaMode = generator.SchemaMode(schemaMode)
			cfg.MapRepresentation = generator.MapRepresentation(mapRepr)
			cfg.HeaderArgs = strings.Join(os.Args[1:], " ")
			if len(overrideFiles) > 0 {
				ovr, err := override.Load(overrideFiles...)
				if err != nil {
					return err
				}
				cfg.Overrides = ovr
			}
			return run(cmd.Context(), cfg, file, out, args, verbose)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&file, "file", "f", "", "Read the CRD from a manifest file instead of the cluster")
	flags.StringVarP(&out, "out", "o", "", "Write generated code to this file instead of stdout")
	flags.StringVar(&cfg.VersionPin, "api-version", "", "Use this CRD version if multiple versions are present")
	flags.BoolVar(&cfg.CombineVersions, "combine-versions", false, "Union compatible versions field by field")
	flags.BoolVarP(&cfg.Docs, "docs", "d", false, "Emit doc comments from CRD field descriptions")
	flags.BoolVarP(&cfg.Builders, "builders", "b", false, "Emit builder-style setters on generated structs")
	flags.StringVar(&schemaMode, "schema", string(generator.SchemaDisabled), "Schema mode: disabled, manual or derived")
	flags.StringArrayVarP(&cfg.Derives, "derive", "D", nil, "Request extra capabilities, e.g. equality, MyType=ordering, @enum:unit=default")
	flags.StringArrayVarP(&cfg.Elide, "elide", "e", nil, "Elide the named types from the output")
	flags.StringArrayVar(&overrideFiles, "overrides", nil, "YAML file of property override rules, repeatable; later files append")
	flags.BoolVar(&cfg.Relaxed, "relaxed", false, "Interpret certain invalid schemas as arbitrary objects instead of failing")
	flags.BoolVar(&cfg.NoCondition, "no-condition", false, "Disable canonical Condition detection")
	flags.BoolVar(&cfg.NoObjectReference, "no-object-reference", false, "Disable canonical ObjectReference detection")
	flags.StringVar(&mapRepr, "map-type", string(generator.MapUnordered), "Map representation: ordered or unordered")
	flags.BoolVar(&cfg.SmartElision, "smart-derive-elision", false, "Drop default-construction from types that cannot support it")
	flags.BoolVarP(&cfg.Auto, "auto", "A", false, "Shorthand for --docs --schema=derived")
	flags.StringVar(&cfg.Package, "package", "", "Emitted Go package name (defaults to the lowercased kind)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func run(ctx context.Context, cfg generator.Config, file, out string, args []string, verbose bool) error {
	zc := zap.NewProductionConfig()
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zl, err := zc.Build()
	if err != nil {
		return err
	}
	logger := zapr.NewLogger(zl)
	ctx = logr.NewContext(ctx, logger)

	crd, err := loadCRD(ctx, file, args)
	if err != nil {
		return err
	}

	src, err := generator.Generate(ctx, crd, cfg)
	if err != nil {
		return err
	}

	if out == "" {
		fmt.Print(src)
		return nil
	}
	if err := os.WriteFile(out, []byte(src), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	return nil
}

func loadCRD(ctx context.Context, file string, args []string) (*apiextv1.CustomResourceDefinition, error) {
	if file != "" {
		crds, err := loader.FromFile(file)
		if err != nil {
			return nil, err
		}
		if len(crds) > 1 {
			return nil, fmt.Errorf("%s contains %d CRDs, split the manifest to pick one", file, len(crds))
		}
		return crds[0], nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("provide a CRD name, e.g. prometheusrules.monitoring.coreos.com, or --file")
	}
	return loader.FromCluster(ctx, ctrl.GetConfigOrDie(), args[0])
}
