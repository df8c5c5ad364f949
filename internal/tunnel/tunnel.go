// Package tunnel manages the port-forward subprocess that makes the serving
// frontend reachable on a local port for the duration of a benchmark session.
//
// At most one tunnel may bind a given local port. Any pre-existing listener
// on the port is terminated before the tunnel starts (last-writer-wins). That
// policy is inherently racy; an advisory file lock on the port documents the
// claim but cannot guarantee exclusivity against processes that do not take
// the lock.
package tunnel

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	gnet "github.com/shirou/gopsutil/net"
	"github.com/shirou/gopsutil/process"
	log "github.com/sirupsen/logrus"

	"github.com/servebench/servebench/internal/common/bencherrors"
	"github.com/servebench/servebench/internal/common/util"
)

// DefaultLogFileName is the forwarding subprocess log written into a session
// directory.
const DefaultLogFileName = "tunnel.log"

// DefaultLocalPort is where the frontend is exposed locally, matching the
// port the load generator targets by default.
const DefaultLocalPort = 8000

// Config tunes one tunnel manager.
type Config struct {
	LocalPort     int           `yaml:"localPort"`
	RemotePort    int           `yaml:"remotePort"`
	LivenessPath  string        `yaml:"livenessPath"`
	ProbeAttempts int           `yaml:"probeAttempts"`
	ProbeInterval time.Duration `yaml:"probeInterval"`
	KillGrace     time.Duration `yaml:"killGrace"`
	LockDir       string        `yaml:"lockDir"`
	LogPath       string        `yaml:"logPath"`
}

// PortForwardClient is the slice of the orchestration CLI the tunnel manager
// needs.
type PortForwardClient interface {
	PortForwardCommand(ctx context.Context, target string, localPort, remotePort int) *exec.Cmd
}

// Manager opens and closes tunnels to remote services.
type Manager struct {
	client PortForwardClient
	config Config
	clock  util.Clock

	// Stubbable for testing
	probe        func(ctx context.Context, url string) error
	findListener func(port int) (int32, error)
	terminate    func(pid int32) error
}

func NewManager(client PortForwardClient, config Config) *Manager {
	if config.LocalPort == 0 {
		config.LocalPort = DefaultLocalPort
	}
	if config.RemotePort == 0 {
		config.RemotePort = config.LocalPort
	}
	if config.LivenessPath == "" {
		config.LivenessPath = "/v1/models"
	}
	if config.ProbeAttempts < 1 {
		config.ProbeAttempts = 1
	}
	if config.ProbeInterval <= 0 {
		config.ProbeInterval = time.Second
	}
	if config.LockDir == "" {
		config.LockDir = os.TempDir()
	}
	return &Manager{
		client:       client,
		config:       config,
		clock:        &util.DefaultClock{},
		probe:        probeLiveness,
		findListener: findListenerPid,
		terminate:    terminatePid,
	}
}

// Open establishes a tunnel to service and verifies liveness before returning.
// On any failure the partially opened handle is closed first, so no subprocess
// outlives a failed open. The caller must Close the returned handle on every
// exit path.
func (m *Manager) Open(ctx context.Context, service string) (*Handle, error) {
	handle := &Handle{
		Service:   service,
		LocalPort: m.config.LocalPort,
	}

	// The lock is advisory: failure to take it is logged and the open
	// proceeds, keeping the last-writer-wins behaviour.
	lock := flock.New(filepath.Join(m.config.LockDir, fmt.Sprintf("servebench-port-%d.lock", m.config.LocalPort)))
	if locked, err := lock.TryLock(); err != nil {
		log.WithError(err).Warnf("could not take port lock %s", lock.Path())
	} else if !locked {
		log.Warnf("port lock %s is held by another process; proceeding anyway", lock.Path())
	} else {
		handle.lock = lock
	}

	m.evictListener(ctx)

	cmd := m.client.PortForwardCommand(ctx, service, m.config.LocalPort, m.config.RemotePort)
	if m.config.LogPath != "" {
		logFile, err := os.OpenFile(m.config.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			closeQuietly(handle)
			return nil, errors.WithMessagef(err, "opening tunnel log %s", m.config.LogPath)
		}
		handle.logFile = logFile
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	if err := cmd.Start(); err != nil {
		closeQuietly(handle)
		return nil, errors.WithMessagef(err, "starting port-forward to %s", service)
	}
	handle.cmd = cmd
	handle.Pid = cmd.Process.Pid
	log.Infof("port-forward to %s started (pid %d, local port %d)", service, handle.Pid, m.config.LocalPort)

	if err := m.waitLive(ctx); err != nil {
		closeQuietly(handle)
		if ctx.Err() != nil {
			return nil, errors.WithStack(ctx.Err())
		}
		return nil, &bencherrors.ErrTunnelNotReady{
			Service:   service,
			LocalPort: m.config.LocalPort,
			Attempts:  m.config.ProbeAttempts,
		}
	}
	return handle, nil
}

// URL returns the local base URL the tunnel serves.
func (m *Manager) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", m.config.LocalPort)
}

// evictListener terminates whatever is already listening on the local port.
// Best-effort: lookup and termination failures are logged, never fatal.
func (m *Manager) evictListener(ctx context.Context) {
	pid, err := m.findListener(m.config.LocalPort)
	if err != nil {
		log.WithError(err).Warnf("could not inspect listeners on port %d", m.config.LocalPort)
		return
	}
	if pid <= 0 {
		return
	}
	log.Warnf("port %d is held by pid %d, terminating it", m.config.LocalPort, pid)
	if err := m.terminate(pid); err != nil {
		log.WithError(err).Warnf("could not terminate pid %d", pid)
		return
	}
	if m.config.KillGrace > 0 {
		m.clock.Sleep(ctx, m.config.KillGrace)
	}
}

func (m *Manager) waitLive(ctx context.Context) error {
	url := m.URL() + m.config.LivenessPath
	attempt := 0
	operation := func() error {
		attempt++
		err := m.probe(ctx, url)
		if err != nil {
			log.Debugf("liveness probe %d/%d against %s: %s", attempt, m.config.ProbeAttempts, url, err)
		}
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.config.ProbeInterval), uint64(m.config.ProbeAttempts-1)),
		ctx,
	)
	return backoff.Retry(operation, policy)
}

func probeLiveness(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return nil
}

func findListenerPid(port int) (int32, error) {
	connections, err := gnet.Connections("tcp")
	if err != nil {
		return 0, errors.WithStack(err)
	}
	for _, conn := range connections {
		if conn.Status == "LISTEN" && conn.Laddr.Port == uint32(port) {
			return conn.Pid, nil
		}
	}
	return 0, nil
}

func terminatePid(pid int32) error {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(proc.Kill())
}

func closeQuietly(handle *Handle) {
	if err := handle.Close(); err != nil {
		log.WithError(err).Warn("error closing tunnel handle")
	}
}
