// Package loader acquires CustomResourceDefinitions for analysis, either from
// YAML/JSON manifests on disk or from a live cluster.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	apiextv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	clientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/rest"
)

const decoderBufferSize = 4096

// FromFile reads every CustomResourceDefinition document from a manifest
// file. Non-CRD documents are skipped so mixed manifests load cleanly.
func FromFile(path string) ([]*apiextv1.CustomResourceDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	crds, err := FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return crds, nil
}

// FromBytes decodes CRDs from a multi-document YAML or JSON stream.
func FromBytes(data []byte) ([]*apiextv1.CustomResourceDefinition, error) {
	var crds []*apiextv1.CustomResourceDefinition
	decoder := utilyaml.NewYAMLOrJSONDecoder(bytes.NewReader(data), decoderBufferSize)
	for {
		crd := &apiextv1.CustomResourceDefinition{}
		err := decoder.Decode(crd)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding document %d: %w", len(crds), err)
		}
		if crd.Kind != "CustomResourceDefinition" {
			continue
		}
		crds = append(crds, crd)
	}
	if len(crds) == 0 {
		return nil, fmt.Errorf("no CustomResourceDefinition documents found")
	}
	return crds, nil
}

// FromCluster fetches a named CRD, e.g. prometheusrules.monitoring.coreos.com,
// from the cluster the rest config points at.
func FromCluster(ctx context.Context, cfg *rest.Config, name string) (*apiextv1.CustomResourceDefinition, error) {
	cs, err := clientset.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("constructing apiextensions client: %w", err)
	}
	crd, err := cs.ApiextensionsV1().CustomResourceDefinitions().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching crd %q: %w", name, err)
	}
	return crd, nil
}
