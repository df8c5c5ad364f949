package kubectl

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deploymentJson = `{
  "apiVersion": "apps/v1",
  "kind": "Deployment",
  "metadata": {"name": "vllm-agg-frontend", "generation": 2},
  "spec": {"replicas": 2},
  "status": {"observedGeneration": 2, "readyReplicas": 2}
}`

const podListJson = `{
  "apiVersion": "v1",
  "kind": "List",
  "items": [
    {"metadata": {"name": "vllm-agg-frontend-abc"}, "status": {"phase": "Running"}}
  ]
}`

func stubbed(t *testing.T, out string) (*Kubectl, *[][]string) {
	t.Helper()
	k := New("dynamo")
	calls := &[][]string{}
	k.run = func(ctx context.Context, args ...string) ([]byte, error) {
		*calls = append(*calls, args)
		return []byte(out), nil
	}
	return k, calls
}

func TestArgsIncludeNamespaceAndContext(t *testing.T) {
	k, calls := stubbed(t, "")
	k.Context = "kind-bench"

	_, err := k.Apply(context.Background(), "/configs/agg.yaml")
	require.NoError(t, err)
	require.Len(t, *calls, 1)
	assert.Equal(t, []string{"--context", "kind-bench", "-n", "dynamo", "apply", "-f", "/configs/agg.yaml"}, (*calls)[0])
}

func TestDeleteManifestIgnoresAbsent(t *testing.T) {
	k, calls := stubbed(t, "")

	_, err := k.DeleteManifest(context.Background(), "/configs/agg.yaml")
	require.NoError(t, err)
	assert.Contains(t, (*calls)[0], "--ignore-not-found=true")
}

func TestGetDeploymentDecodes(t *testing.T) {
	k, _ := stubbed(t, deploymentJson)

	deployment, err := k.GetDeployment(context.Background(), "vllm-agg-frontend")
	require.NoError(t, err)
	assert.Equal(t, "vllm-agg-frontend", deployment.Name)
	assert.Equal(t, int32(2), deployment.Status.ReadyReplicas)
	require.NotNil(t, deployment.Spec.Replicas)
	assert.Equal(t, int32(2), *deployment.Spec.Replicas)
}

func TestListPodsAppliesSelector(t *testing.T) {
	k, calls := stubbed(t, podListJson)

	pods, err := k.ListPods(context.Background(), "app=vllm-agg")
	require.NoError(t, err)
	require.Len(t, pods.Items, 1)
	assert.Equal(t, "vllm-agg-frontend-abc", pods.Items[0].Name)

	joined := strings.Join((*calls)[0], " ")
	assert.Contains(t, joined, "-l app=vllm-agg")
}

func TestListDeploymentsNoSelectorOmitsFlag(t *testing.T) {
	k, calls := stubbed(t, `{"items": []}`)

	_, err := k.ListDeployments(context.Background(), "")
	require.NoError(t, err)
	assert.NotContains(t, (*calls)[0], "-l")
}

func TestPortForwardCommand(t *testing.T) {
	k := New("dynamo")
	cmd := k.PortForwardCommand(context.Background(), "svc/vllm-agg-frontend", 8000, 8000)
	joined := strings.Join(cmd.Args, " ")
	assert.Contains(t, joined, "port-forward svc/vllm-agg-frontend 8000:8000")
	assert.Contains(t, joined, "-n dynamo")
}
