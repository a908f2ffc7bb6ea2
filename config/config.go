package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "DAGLEDGER"

type Config struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`

	Log struct {
		AppLogFile string `mapstructure:"app_log_file"`
		Level      string `mapstructure:"level"`
		Format     string `mapstructure:"format"`
	} `mapstructure:"log"`

	Storage struct {
		Backend string `mapstructure:"backend"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"storage"`

	DAG struct {
		LoadOnStart         bool          `mapstructure:"load_on_start"`
		EpochValidityPeriod uint64        `mapstructure:"epoch_validity_period"`
		MaxTipsInEpoch      int           `mapstructure:"max_tips_in_epoch"`
		ReferencesToBeTip   int           `mapstructure:"references_to_be_tip"`
		EpochInterval       time.Duration `mapstructure:"epoch_interval"`
	} `mapstructure:"dag"`

	Signer struct {
		Seed string `mapstructure:"seed"`
	} `mapstructure:"signer"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.app_log_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("storage.backend", "leveldb")
	v.SetDefault("storage.path", "data")
	v.SetDefault("dag.load_on_start", true)
	v.SetDefault("dag.epoch_validity_period", 2)
	v.SetDefault("dag.max_tips_in_epoch", 30)
	v.SetDefault("dag.references_to_be_tip", 2)
	v.SetDefault("dag.epoch_interval", time.Duration(0))
	v.SetDefault("signer.seed", "")
	v.SetDefault("metrics.enabled", true)
}

// Load reads the config file, if any, over the defaults. Environment
// variables such as DAGLEDGER_SERVER_PORT take precedence
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if cfg.DAG.EpochValidityPeriod == 0 {
		return nil, errors.New("dag.epoch_validity_period must be positive")
	}
	return &cfg, nil
}
