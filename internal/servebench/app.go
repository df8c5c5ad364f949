// Package servebench hosts the CLI application. Each command is a method on
// App; the long-running deploy command is orchestrated by a Session.
package servebench

import (
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/servebench/servebench/internal/deployment"
	"github.com/servebench/servebench/internal/servebench/configuration"
)

// Environment variables read at session time. Absence never fails a session;
// defaults apply instead.
const (
	EnvConcurrencies = "CONCURRENCIES"
	EnvModelID       = "DEPLOYMENT_MODEL_ID"
	EnvTokenizerPath = "TOKENIZER_PATH"
	EnvServiceURL    = "SERVICE_URL"
	EnvCleanup       = "SERVEBENCH_CLEANUP"
	EnvTestMode      = "DISTSERVE_TEST_MODE"
)

type App struct {
	// Parameters passed to the CLI by the user.
	Params *Params
	// Out is used to write the output. Defaults to standard out, but can be
	// overridden in tests to make assertions on the application's output.
	Out io.Writer

	// Stubbable for testing
	getenv     func(string) string
	newSession func(config deployment.Config) *Session
}

// Params holds all user-customizable parameters.
type Params struct {
	Config *configuration.ServebenchConfig
}

// New instantiates an App with default parameters.
func New() *App {
	a := &App{
		Params: &Params{Config: &configuration.ServebenchConfig{}},
		Out:    os.Stdout,
		getenv: os.Getenv,
	}
	a.newSession = a.buildSession
	return a
}

func (a *App) envOr(key, fallback string) string {
	if value := strings.TrimSpace(a.getenv(key)); value != "" {
		return value
	}
	return fallback
}

func (a *App) envBool(key string) bool {
	value := strings.TrimSpace(a.getenv(key))
	if value == "" {
		return false
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		log.Warnf("invalid boolean %s=%q, treating it as false", key, value)
		return false
	}
	return enabled
}
