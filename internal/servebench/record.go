package servebench

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/servebench/servebench/internal/bench"
)

// RecordFileName is the session record written into every session directory.
const RecordFileName = "session.yaml"

// SessionRecord preserves the inputs of one session inside its directory, so
// results stay interpretable after the catalog or the defaults change.
type SessionRecord struct {
	SessionId  string       `yaml:"sessionId"`
	Deployment string       `yaml:"deployment,omitempty"`
	Manifest   string       `yaml:"manifest,omitempty"`
	StartedAt  time.Time    `yaml:"startedAt"`
	Levels     []int        `yaml:"levels"`
	Workload   bench.Params `yaml:"workload"`
}

// LoadSessionRecord reads the record back from a session directory.
func LoadSessionRecord(dir string) (*SessionRecord, error) {
	data, err := os.ReadFile(filepath.Join(dir, RecordFileName))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	record := &SessionRecord{}
	if err := yaml.Unmarshal(data, record); err != nil {
		return nil, errors.WithStack(err)
	}
	return record, nil
}

// recordInputs writes the session record. The record is informational, so a
// write failure is logged rather than failing the session.
func (s *Session) recordInputs() {
	record := SessionRecord{
		SessionId:  s.ID,
		Deployment: s.Deployment.Name,
		Manifest:   s.Deployment.Path,
		StartedAt:  time.Now().UTC(),
		Levels:     s.levels,
		Workload:   s.params,
	}
	data, err := yaml.Marshal(record)
	if err == nil {
		err = os.WriteFile(filepath.Join(s.OutputDir, RecordFileName), data, 0o644)
	}
	if err != nil {
		log.WithError(err).Warn("could not record session inputs")
	}
}
