// Package kubectl shells out to the cluster orchestration CLI. servebench
// never dials the API server itself; it consumes only the CLI's exit codes
// and the structured JSON it prints.
package kubectl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	appsv1 "k8s.io/api/apps/v1"
	v1 "k8s.io/api/core/v1"
)

// DefaultBinary is the executable looked up on PATH when no explicit path
// is configured.
const DefaultBinary = "kubectl"

// Kubectl invokes the orchestration CLI against a fixed namespace and
// optional kube context.
type Kubectl struct {
	Binary    string
	Namespace string
	Context   string

	// Stubbable for testing
	run func(ctx context.Context, args ...string) ([]byte, error)
}

func New(namespace string) *Kubectl {
	k := &Kubectl{
		Binary:    DefaultBinary,
		Namespace: namespace,
	}
	k.run = k.execRun
	return k
}

// args prepends the context and namespace flags shared by every invocation.
func (k *Kubectl) args(verb ...string) []string {
	var base []string
	if k.Context != "" {
		base = append(base, "--context", k.Context)
	}
	if k.Namespace != "" {
		base = append(base, "-n", k.Namespace)
	}
	return append(base, verb...)
}

func (k *Kubectl) execRun(ctx context.Context, args ...string) ([]byte, error) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := exec.CommandContext(ctx, k.Binary, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log.Debugf("running %s %s", k.Binary, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return stdout.Bytes(), errors.Wrapf(err, "%s %s: %s", k.Binary, strings.Join(args, " "), detail)
		}
		return stdout.Bytes(), errors.Wrapf(err, "%s %s", k.Binary, strings.Join(args, " "))
	}
	return stdout.Bytes(), nil
}

// Apply applies the manifest at path and returns the CLI's stdout.
func (k *Kubectl) Apply(ctx context.Context, path string) ([]byte, error) {
	return k.run(ctx, k.args("apply", "-f", path)...)
}

// DeleteManifest deletes the resources declared in the manifest at path.
// Already-absent resources are not an error.
func (k *Kubectl) DeleteManifest(ctx context.Context, path string) ([]byte, error) {
	return k.run(ctx, k.args("delete", "-f", path, "--ignore-not-found=true")...)
}

// GetDeployment fetches a single deployment as a typed object.
func (k *Kubectl) GetDeployment(ctx context.Context, name string) (*appsv1.Deployment, error) {
	out, err := k.run(ctx, k.args("get", "deployment", name, "-o", "json")...)
	if err != nil {
		return nil, err
	}
	deployment := &appsv1.Deployment{}
	if err := json.Unmarshal(out, deployment); err != nil {
		return nil, errors.WithMessagef(err, "decoding deployment %s", name)
	}
	return deployment, nil
}

// ListDeployments lists deployments in the namespace, optionally filtered by
// a label selector.
func (k *Kubectl) ListDeployments(ctx context.Context, selector string) (*appsv1.DeploymentList, error) {
	verb := []string{"get", "deployments", "-o", "json"}
	if selector != "" {
		verb = append(verb, "-l", selector)
	}
	out, err := k.run(ctx, k.args(verb...)...)
	if err != nil {
		return nil, err
	}
	list := &appsv1.DeploymentList{}
	if err := json.Unmarshal(out, list); err != nil {
		return nil, errors.WithMessage(err, "decoding deployment list")
	}
	return list, nil
}

// ListDeploymentsRaw returns the undecoded JSON listing, for callers that
// evaluate their own field paths over it.
func (k *Kubectl) ListDeploymentsRaw(ctx context.Context) ([]byte, error) {
	return k.run(ctx, k.args("get", "deployments", "-o", "json")...)
}

// ListPods lists pods in the namespace, optionally filtered by a label
// selector.
func (k *Kubectl) ListPods(ctx context.Context, selector string) (*v1.PodList, error) {
	verb := []string{"get", "pods", "-o", "json"}
	if selector != "" {
		verb = append(verb, "-l", selector)
	}
	out, err := k.run(ctx, k.args(verb...)...)
	if err != nil {
		return nil, err
	}
	list := &v1.PodList{}
	if err := json.Unmarshal(out, list); err != nil {
		return nil, errors.WithMessage(err, "decoding pod list")
	}
	return list, nil
}

// PortForwardCommand returns an unstarted command forwarding localPort to
// remotePort on target (e.g. "svc/vllm-agg-frontend"). The caller owns the
// process lifecycle.
func (k *Kubectl) PortForwardCommand(ctx context.Context, target string, localPort, remotePort int) *exec.Cmd {
	args := k.args("port-forward", target, fmt.Sprintf("%d:%d", localPort, remotePort))
	return exec.CommandContext(ctx, k.Binary, args...)
}
