package deployment

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/servebench/servebench/internal/common/bencherrors"
	"github.com/servebench/servebench/internal/common/util"
)

// ApplyClient is the slice of the orchestration CLI the applier needs.
type ApplyClient interface {
	Apply(ctx context.Context, path string) ([]byte, error)
	DeleteManifest(ctx context.Context, path string) ([]byte, error)
}

// Applier submits deployment configurations through the orchestration CLI.
type Applier struct {
	client ApplyClient
}

func NewApplier(client ApplyClient) *Applier {
	return &Applier{client: client}
}

// Apply applies the configuration's manifest. A non-zero exit from the CLI is
// a structural failure: presumed a configuration or environment defect, never
// retried.
func (a *Applier) Apply(ctx context.Context, config Config) error {
	out, err := a.client.Apply(ctx, config.Path)
	if err != nil {
		return &bencherrors.ErrApplyFailed{
			Config:   config.Name,
			ExitCode: util.ExitCode(err),
			Message:  err.Error(),
		}
	}
	for _, line := range splitLines(out) {
		log.Infof("apply: %s", line)
	}
	return nil
}

// Delete tears the configuration down again. Best-effort: failures are
// returned for the caller to log, but an already-absent deployment is not an
// error.
func (a *Applier) Delete(ctx context.Context, config Config) error {
	out, err := a.client.DeleteManifest(ctx, config.Path)
	if err != nil {
		return err
	}
	for _, line := range splitLines(out) {
		log.Infof("delete: %s", line)
	}
	return nil
}

func splitLines(out []byte) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
