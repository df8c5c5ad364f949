// Package deployment implements the deployment half of a benchmark session:
// resolving a named configuration from the catalog, applying it through the
// orchestration CLI, discovering the dependent deployments it spawns, and
// waiting for them to become ready.
package deployment

import (
	"strconv"
	"strings"

	"github.com/servebench/servebench/internal/common/bencherrors"
)

// Config names a deployable serving configuration and the manifest that
// realizes it. The catalog is static for the process lifetime.
type Config struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// Select resolves user input to a catalog entry. Input is either a 1-based
// index into the catalog (the interactive prompt numbers entries from 1) or
// an exact configuration name. Anything else is an invalid selection and has
// no side effects.
func Select(configs []Config, input string) (Config, error) {
	input = strings.TrimSpace(input)
	if len(configs) == 0 {
		return Config{}, &bencherrors.ErrInvalidSelection{
			Input:      input,
			NumConfigs: 0,
			Message:    "the configuration catalog is empty",
		}
	}

	if index, err := strconv.Atoi(input); err == nil {
		if index < 1 || index > len(configs) {
			return Config{}, &bencherrors.ErrInvalidSelection{
				Input:      input,
				NumConfigs: len(configs),
				Message:    "index out of range",
			}
		}
		return configs[index-1], nil
	}

	for _, config := range configs {
		if config.Name == input {
			return config, nil
		}
	}
	return Config{}, &bencherrors.ErrInvalidSelection{
		Input:      input,
		NumConfigs: len(configs),
	}
}
