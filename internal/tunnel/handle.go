package tunnel

import (
	"os"
	"os/exec"
	"sync"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Handle owns one forwarding subprocess for the duration of a deployment
// session. It is released on every exit path by calling Close.
type Handle struct {
	Service   string
	LocalPort int
	Pid       int

	cmd     *exec.Cmd
	logFile *os.File
	lock    *flock.Flock

	closeOnce sync.Once
	closeErr  error
}

// Close terminates the forwarding subprocess and releases the port lock.
// It is idempotent: closing an already-closed handle, a nil handle, or a
// handle from a failed open is a no-op with no duplicate side effects.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	h.closeOnce.Do(func() {
		var result *multierror.Error
		if h.cmd != nil && h.cmd.Process != nil {
			log.Infof("closing tunnel to %s (pid %d)", h.Service, h.Pid)
			if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				result = multierror.Append(result, err)
			}
			// Reap the child; the error is the kill we just delivered.
			_ = h.cmd.Wait()
		}
		if h.logFile != nil {
			if err := h.logFile.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if h.lock != nil {
			if err := h.lock.Unlock(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		h.closeErr = result.ErrorOrNil()
	})
	return h.closeErr
}
