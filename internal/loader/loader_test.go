package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const crdDoc = `
apiVersion: apiextensions.k8s.io/v1
kind: CustomResourceDefinition
metadata:
  name: agents.example.com
spec:
  group: example.com
  names:
    kind: Agent
    plural: agents
  scope: Namespaced
  versions:
  - name: v1
    served: true
    storage: true
    schema:
      openAPIV3Schema:
        type: object
        properties:
          spec:
            type: object
            properties:
              hostname:
                type: string
`

func TestFromBytes(t *testing.T) {
	crds, err := FromBytes([]byte(crdDoc))
	require.NoError(t, err)
	require.Len(t, crds, 1)
	assert.Equal(t, "agents.example.com", crds[0].Name)
	assert.Equal(t, "Agent", crds[0].Spec.Names.Kind)
	require.Len(t, crds[0].Spec.Versions, 1)
	require.NotNil(t, crds[0].Spec.Versions[0].Schema.OpenAPIV3Schema)
}

func TestFromBytesSkipsForeignDocuments(t *testing.T) {
	mixed := "apiVersion: v1\nkind: Namespace\nmetadata:\n  name: system\n---" + crdDoc
	crds, err := FromBytes([]byte(mixed))
	require.NoError(t, err)
	assert.Len(t, crds, 1)
}

func TestFromBytesNoCRDs(t *testing.T) {
	_, err := FromBytes([]byte("apiVersion: v1\nkind: Namespace\nmetadata:\n  name: system\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CustomResourceDefinition")
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(crdDoc), 0o644))

	crds, err := FromFile(path)
	require.NoError(t, err)
	assert.Len(t, crds, 1)

	_, err = FromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
