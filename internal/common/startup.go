package common

import (
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// ConfigureLogging sets up the global logger used for operational output.
// User-facing command output is written to App.Out instead and is not affected.
func ConfigureLogging() {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	log.SetOutput(os.Stdout)
}

// LoadConfig populates config from, in increasing priority order: the defaults file
// shipped alongside the binary ("./config/servebench"), $HOME/.servebench.yaml, the
// file given by cfgFile (if any), and environment variables. Missing optional files
// are fine; an unreadable explicit cfgFile is not.
func LoadConfig(config interface{}, cfgFile string) error {
	viper.SetConfigName("config")
	viper.AddConfigPath("./config/servebench")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.WithMessage(err, "error reading default config")
		}
	}

	home, err := homedir.Dir()
	if err == nil {
		viper.SetConfigFile(home + "/.servebench.yaml")
		if err := viper.MergeInConfig(); err != nil {
			switch err.(type) {
			case viper.ConfigFileNotFoundError:
			case *os.PathError:
				// No user config is fine.
			default:
				return errors.WithMessagef(err, "error reading config file %s", viper.ConfigFileUsed())
			}
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.MergeInConfig(); err != nil {
			return errors.WithMessagef(err, "error reading config file %s", cfgFile)
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(config); err != nil {
		return errors.WithMessage(err, "error unmarshalling config")
	}
	return nil
}
