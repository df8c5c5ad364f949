package deployment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	appsv1 "k8s.io/api/apps/v1"
	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/selection"
	"k8s.io/client-go/util/jsonpath"

	"github.com/servebench/servebench/internal/common/bencherrors"
)

// StatusClient is the slice of the orchestration CLI used for discovery and
// readiness checks.
type StatusClient interface {
	GetDeployment(ctx context.Context, name string) (*appsv1.Deployment, error)
	ListDeployments(ctx context.Context, selector string) (*appsv1.DeploymentList, error)
	ListDeploymentsRaw(ctx context.Context) ([]byte, error)
	ListPods(ctx context.Context, selector string) (*v1.PodList, error)
}

const (
	// DefaultOwnerLabel is set by the serving operator on every deployment it
	// creates from an applied graph configuration.
	DefaultOwnerLabel = "nvidia.com/dynamo-graph-deployment-name"
	// DefaultFieldPath selects, from the raw deployment listing, the names of
	// deployments owned by the configuration; the %s verb receives the
	// configuration name.
	DefaultFieldPath = `{.items[?(@.metadata.ownerReferences[0].name=='%s')].metadata.name}`
)

// DefaultFallbackSuffixes name the child deployments every graph is expected
// to have, appended to "<config>-" as the last-resort discovery result.
var DefaultFallbackSuffixes = []string{"frontend"}

// DiscoveryConfig tunes the fallback strategies used to resolve the
// deployments spawned by an applied configuration. A nil FallbackSuffixes
// means DefaultFallbackSuffixes; an explicitly empty list disables the
// last-resort strategy, making discovery failable.
type DiscoveryConfig struct {
	OwnerLabel       string   `yaml:"ownerLabel"`
	FieldPath        string   `yaml:"fieldPath"`
	FallbackSuffixes []string `yaml:"fallbackSuffixes"`
}

// Strategy is one way of resolving the dependent deployments spawned by a
// configuration. Strategies are consulted in priority order and the first
// non-empty result set wins exclusively.
type Strategy struct {
	Name     string
	Discover func(ctx context.Context, name string) ([]string, error)
}

// Strategies returns the fallback discovery chain in priority order:
// name-prefix match, label-selector match, field-path match, hardcoded list.
func Strategies(client StatusClient, config DiscoveryConfig) []Strategy {
	ownerLabel := config.OwnerLabel
	if ownerLabel == "" {
		ownerLabel = DefaultOwnerLabel
	}
	fieldPath := config.FieldPath
	if fieldPath == "" {
		fieldPath = DefaultFieldPath
	}
	fallbackSuffixes := config.FallbackSuffixes
	if fallbackSuffixes == nil {
		fallbackSuffixes = DefaultFallbackSuffixes
	}

	return []Strategy{
		{Name: "name-prefix", Discover: func(ctx context.Context, name string) ([]string, error) {
			return discoverByNamePrefix(ctx, client, name)
		}},
		{Name: "label-selector", Discover: func(ctx context.Context, name string) ([]string, error) {
			return discoverByLabel(ctx, client, ownerLabel, name)
		}},
		{Name: "field-path", Discover: func(ctx context.Context, name string) ([]string, error) {
			return discoverByFieldPath(ctx, client, fieldPath, name)
		}},
		{Name: "fallback-list", Discover: func(ctx context.Context, name string) ([]string, error) {
			names := make([]string, 0, len(fallbackSuffixes))
			for _, suffix := range fallbackSuffixes {
				names = append(names, name+"-"+suffix)
			}
			return names, nil
		}},
	}
}

// Discover resolves the dependent deployments of the named configuration. A
// strategy error is logged and treated as an empty result so a broken
// strategy cannot mask a later one. An empty result from every strategy is an
// error: it never means "nothing to wait for".
func Discover(ctx context.Context, strategies []Strategy, name string) ([]string, error) {
	tried := make([]string, 0, len(strategies))
	for _, strategy := range strategies {
		tried = append(tried, strategy.Name)
		names, err := strategy.Discover(ctx, name)
		if err != nil {
			log.WithError(err).Warnf("discovery strategy %s failed for %s", strategy.Name, name)
			continue
		}
		if len(names) > 0 {
			log.Infof("discovered %d deployments for %s via %s: %s",
				len(names), name, strategy.Name, strings.Join(names, ", "))
			return names, nil
		}
	}
	return nil, &bencherrors.ErrDiscoveryFailed{Deployment: name, Strategies: tried}
}

func discoverByNamePrefix(ctx context.Context, client StatusClient, name string) ([]string, error) {
	list, err := client.ListDeployments(ctx, "")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, item := range list.Items {
		if item.Name == name || strings.HasPrefix(item.Name, name+"-") {
			names = append(names, item.Name)
		}
	}
	return names, nil
}

func discoverByLabel(ctx context.Context, client StatusClient, ownerLabel string, name string) ([]string, error) {
	requirement, err := labels.NewRequirement(ownerLabel, selection.Equals, []string{name})
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid owner label %q", ownerLabel)
	}
	selector := labels.NewSelector().Add(*requirement)

	list, err := client.ListDeployments(ctx, selector.String())
	if err != nil {
		return nil, err
	}
	var names []string
	for _, item := range list.Items {
		names = append(names, item.Name)
	}
	return names, nil
}

func discoverByFieldPath(ctx context.Context, client StatusClient, fieldPath string, name string) ([]string, error) {
	raw, err := client.ListDeploymentsRaw(ctx)
	if err != nil {
		return nil, err
	}
	var listing interface{}
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, errors.WithMessage(err, "decoding deployment listing")
	}

	parser := jsonpath.New("discovery")
	parser.AllowMissingKeys(true)
	if err := parser.Parse(fmt.Sprintf(fieldPath, name)); err != nil {
		return nil, errors.WithMessagef(err, "invalid field path %q", fieldPath)
	}
	results, err := parser.FindResults(listing)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var names []string
	for _, result := range results {
		for _, value := range result {
			if s, ok := value.Interface().(string); ok && s != "" {
				names = append(names, s)
			}
		}
	}
	return names, nil
}
