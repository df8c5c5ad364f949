package deployment

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	v1 "k8s.io/api/core/v1"

	"github.com/servebench/servebench/internal/common/bencherrors"
)

// WaitConfig bounds a readiness poll.
type WaitConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Delay       time.Duration `yaml:"delay"`
}

// Waiter polls the orchestration CLI until dependent deployments report
// ready.
type Waiter struct {
	client StatusClient

	// Stubbable for testing
	check func(ctx context.Context, target string) error
}

func NewWaiter(client StatusClient) *Waiter {
	w := &Waiter{client: client}
	w.check = w.deploymentReady
	return w
}

// WaitReady polls target until the status check succeeds, making at most
// config.MaxAttempts checks with a fixed delay between them. The check count
// is exact: success on the Kth check means exactly K checks were made, and an
// exhausted wait made exactly MaxAttempts.
func (w *Waiter) WaitReady(ctx context.Context, target string, config WaitConfig) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			err := w.check(ctx, target)
			if err != nil {
				log.Debugf("readiness check %d/%d for %s: %s", attempts, config.MaxAttempts, target, err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(config.MaxAttempts)),
		retry.Delay(config.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		log.Infof("%s ready after %d checks", target, attempts)
		return nil
	}
	if ctx.Err() != nil {
		return errors.WithStack(ctx.Err())
	}
	return &bencherrors.ErrRetryExhausted{
		Target:    target,
		Attempts:  attempts,
		LastError: err,
	}
}

// WaitAllReady waits for every target and returns the first failure. A
// sibling's failure does not undo waits that already completed; waits still
// in flight are cancelled.
func (w *Waiter) WaitAllReady(ctx context.Context, targets []string, config WaitConfig) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			return w.WaitReady(ctx, target, config)
		})
	}
	return g.Wait()
}

// deploymentReady reports nil when the controller has observed the current
// generation and every requested replica is ready.
func (w *Waiter) deploymentReady(ctx context.Context, target string) error {
	deployment, err := w.client.GetDeployment(ctx, target)
	if err != nil {
		return err
	}
	if deployment.Generation > deployment.Status.ObservedGeneration {
		return errors.Errorf("deployment %s generation %d not yet observed", target, deployment.Generation)
	}
	want := int32(1)
	if deployment.Spec.Replicas != nil {
		want = *deployment.Spec.Replicas
	}
	if deployment.Status.ReadyReplicas < want {
		return errors.Errorf("deployment %s has %d/%d ready replicas", target, deployment.Status.ReadyReplicas, want)
	}
	return nil
}

// PodsReady partitions the pods matching selector into ready and not-ready
// names, judged by the PodReady condition.
func (w *Waiter) PodsReady(ctx context.Context, selector string) (ready []string, notReady []string, err error) {
	pods, err := w.client.ListPods(ctx, selector)
	if err != nil {
		return nil, nil, err
	}
	for _, pod := range pods.Items {
		if isPodReady(&pod) {
			ready = append(ready, pod.Name)
		} else {
			notReady = append(notReady, pod.Name)
		}
	}
	return ready, notReady, nil
}

func isPodReady(pod *v1.Pod) bool {
	for _, condition := range pod.Status.Conditions {
		if condition.Type == v1.PodReady {
			return condition.Status == v1.ConditionTrue
		}
	}
	return false
}
