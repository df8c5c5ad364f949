package deployment

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/servebench/servebench/internal/common/bencherrors"
)

func fastWait(maxAttempts int) WaitConfig {
	return WaitConfig{MaxAttempts: maxAttempts, Delay: time.Millisecond}
}

func TestWaitReadySucceedsOnKthCheck(t *testing.T) {
	for _, k := range []int{1, 2, 5} {
		w := NewWaiter(nil)
		calls := 0
		w.check = func(ctx context.Context, target string) error {
			calls++
			if calls == k {
				return nil
			}
			return errors.New("not ready")
		}

		err := w.WaitReady(context.Background(), "vllm-agg-frontend", fastWait(10))
		require.NoError(t, err)
		assert.Equal(t, k, calls, "expected exactly %d checks", k)
	}
}

func TestWaitReadyExhaustsAttempts(t *testing.T) {
	w := NewWaiter(nil)
	calls := 0
	w.check = func(ctx context.Context, target string) error {
		calls++
		return errors.New("still not ready")
	}

	err := w.WaitReady(context.Background(), "vllm-agg-frontend", fastWait(4))
	var retryExhausted *bencherrors.ErrRetryExhausted
	require.ErrorAs(t, err, &retryExhausted)
	assert.Equal(t, 4, calls, "expected exactly maxAttempts checks")
	assert.Equal(t, 4, retryExhausted.Attempts)
	assert.Equal(t, "vllm-agg-frontend", retryExhausted.Target)
	assert.Contains(t, retryExhausted.LastError.Error(), "still not ready")
}

func TestWaitReadyCancelled(t *testing.T) {
	w := NewWaiter(nil)
	ctx, cancel := context.WithCancel(context.Background())
	w.check = func(ctx context.Context, target string) error {
		cancel()
		return errors.New("not ready")
	}

	err := w.WaitReady(ctx, "vllm-agg-frontend", WaitConfig{MaxAttempts: 100, Delay: time.Second})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func conditionedDeployment(name string, generation, observed int64, want, ready int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Generation: generation},
		Spec:       appsv1.DeploymentSpec{Replicas: &want},
		Status: appsv1.DeploymentStatus{
			ObservedGeneration: observed,
			ReadyReplicas:      ready,
		},
	}
}

func TestDeploymentReadinessCheck(t *testing.T) {
	tests := map[string]struct {
		deployment *appsv1.Deployment
		wantReady  bool
	}{
		"all replicas ready": {
			deployment: conditionedDeployment("d", 2, 2, 3, 3),
			wantReady:  true,
		},
		"generation not observed": {
			deployment: conditionedDeployment("d", 3, 2, 3, 3),
			wantReady:  false,
		},
		"replicas missing": {
			deployment: conditionedDeployment("d", 1, 1, 3, 2),
			wantReady:  false,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			client := &fakeStatusClient{deployments: map[string]*appsv1.Deployment{"d": tc.deployment}}
			w := NewWaiter(client)

			err := w.WaitReady(context.Background(), "d", fastWait(1))
			if tc.wantReady {
				assert.NoError(t, err)
			} else {
				var retryExhausted *bencherrors.ErrRetryExhausted
				assert.ErrorAs(t, err, &retryExhausted)
			}
		})
	}
}

func TestDeploymentReadinessDefaultsToOneReplica(t *testing.T) {
	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "d", Generation: 1},
		Status:     appsv1.DeploymentStatus{ObservedGeneration: 1, ReadyReplicas: 1},
	}
	client := &fakeStatusClient{deployments: map[string]*appsv1.Deployment{"d": deployment}}
	w := NewWaiter(client)

	assert.NoError(t, w.WaitReady(context.Background(), "d", fastWait(1)))
}

func TestWaitAllReady(t *testing.T) {
	client := &fakeStatusClient{deployments: map[string]*appsv1.Deployment{
		"a": conditionedDeployment("a", 1, 1, 1, 1),
		"b": conditionedDeployment("b", 1, 1, 2, 2),
	}}
	w := NewWaiter(client)

	assert.NoError(t, w.WaitAllReady(context.Background(), []string{"a", "b"}, fastWait(3)))

	err := w.WaitAllReady(context.Background(), []string{"a", "missing"}, fastWait(2))
	var retryExhausted *bencherrors.ErrRetryExhausted
	require.ErrorAs(t, err, &retryExhausted)
	assert.Equal(t, "missing", retryExhausted.Target)
}

func TestPodsReady(t *testing.T) {
	pods := &v1.PodList{Items: []v1.Pod{
		{
			ObjectMeta: metav1.ObjectMeta{Name: "ready-pod"},
			Status: v1.PodStatus{Conditions: []v1.PodCondition{
				{Type: v1.PodReady, Status: v1.ConditionTrue},
			}},
		},
		{
			ObjectMeta: metav1.ObjectMeta{Name: "starting-pod"},
			Status: v1.PodStatus{Conditions: []v1.PodCondition{
				{Type: v1.PodReady, Status: v1.ConditionFalse},
			}},
		},
		{
			ObjectMeta: metav1.ObjectMeta{Name: "no-conditions-pod"},
		},
	}}
	w := NewWaiter(&fakeStatusClient{pods: pods})

	ready, notReady, err := w.PodsReady(context.Background(), "app=vllm-agg")
	require.NoError(t, err)
	assert.Equal(t, []string{"ready-pod"}, ready)
	assert.Equal(t, []string{"starting-pod", "no-conditions-pod"}, notReady)
}
