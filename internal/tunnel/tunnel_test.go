package tunnel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servebench/servebench/internal/common/bencherrors"
	"github.com/servebench/servebench/internal/common/util"
)

type fakePortForwarder struct {
	lastCmd *exec.Cmd
	targets []string
}

func (f *fakePortForwarder) PortForwardCommand(ctx context.Context, target string, localPort, remotePort int) *exec.Cmd {
	f.targets = append(f.targets, target)
	f.lastCmd = exec.CommandContext(ctx, "sleep", "60")
	return f.lastCmd
}

func testManager(t *testing.T, forwarder *fakePortForwarder) *Manager {
	t.Helper()
	dir := t.TempDir()
	m := NewManager(forwarder, Config{
		LocalPort:     18000,
		RemotePort:    8000,
		ProbeAttempts: 3,
		ProbeInterval: time.Millisecond,
		KillGrace:     2 * time.Second,
		LockDir:       dir,
		LogPath:       filepath.Join(dir, "tunnel.log"),
	})
	m.clock = &util.DummyClock{}
	m.findListener = func(port int) (int32, error) { return 0, nil }
	m.terminate = func(pid int32) error { return nil }
	m.probe = func(ctx context.Context, url string) error { return nil }
	return m
}

func TestOpenAndCloseIdempotent(t *testing.T) {
	forwarder := &fakePortForwarder{}
	m := testManager(t, forwarder)

	handle, err := m.Open(context.Background(), "svc/vllm-agg-frontend")
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.Equal(t, "svc/vllm-agg-frontend", handle.Service)
	assert.Equal(t, 18000, handle.LocalPort)
	assert.Greater(t, handle.Pid, 0)

	_, err = os.Stat(m.config.LogPath)
	assert.NoError(t, err, "tunnel log should exist")

	require.NoError(t, handle.Close())
	require.NotNil(t, forwarder.lastCmd.ProcessState, "subprocess should be reaped")

	// Second close is a no-op, not an error.
	require.NoError(t, handle.Close())
}

func TestCloseNilHandle(t *testing.T) {
	var handle *Handle
	assert.NoError(t, handle.Close())
}

func TestOpenFailsWhenNeverLive(t *testing.T) {
	forwarder := &fakePortForwarder{}
	m := testManager(t, forwarder)
	probes := 0
	m.probe = func(ctx context.Context, url string) error {
		probes++
		return errors.New("connection refused")
	}

	handle, err := m.Open(context.Background(), "svc/vllm-agg-frontend")
	assert.Nil(t, handle)
	var notReady *bencherrors.ErrTunnelNotReady
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, 3, notReady.Attempts)
	assert.Equal(t, 18000, notReady.LocalPort)
	assert.Equal(t, 3, probes)

	// No leaked subprocess: the failed open already reaped it.
	require.NotNil(t, forwarder.lastCmd.ProcessState)
}

func TestOpenEvictsConflictingListener(t *testing.T) {
	forwarder := &fakePortForwarder{}
	m := testManager(t, forwarder)
	m.findListener = func(port int) (int32, error) { return 4242, nil }
	var terminated []int32
	m.terminate = func(pid int32) error {
		terminated = append(terminated, pid)
		return nil
	}

	handle, err := m.Open(context.Background(), "svc/vllm-agg-frontend")
	require.NoError(t, err)
	defer handle.Close()

	assert.Equal(t, []int32{4242}, terminated)
	clock := m.clock.(*util.DummyClock)
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.Slept)
}

func TestOpenSurvivesFailedEviction(t *testing.T) {
	forwarder := &fakePortForwarder{}
	m := testManager(t, forwarder)
	m.findListener = func(port int) (int32, error) { return 4242, nil }
	m.terminate = func(pid int32) error { return errors.New("operation not permitted") }

	handle, err := m.Open(context.Background(), "svc/vllm-agg-frontend")
	require.NoError(t, err)
	defer handle.Close()

	clock := m.clock.(*util.DummyClock)
	assert.Empty(t, clock.Slept, "no settle delay after failed termination")
}

func TestOpenProceedsWhenLockHeld(t *testing.T) {
	forwarder := &fakePortForwarder{}
	m := testManager(t, forwarder)

	other := flock.New(filepath.Join(m.config.LockDir, "servebench-port-18000.lock"))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = other.Unlock() }()

	handle, err := m.Open(context.Background(), "svc/vllm-agg-frontend")
	require.NoError(t, err, "the port lock is advisory, not blocking")
	require.NoError(t, handle.Close())
}

func TestProbeLiveness(t *testing.T) {
	ready := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ready.Close()
	assert.NoError(t, probeLiveness(context.Background(), ready.URL+"/v1/models"))

	starting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer starting.Close()
	err := probeLiveness(context.Background(), starting.URL+"/v1/models")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
