package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// this file contains the config struct for the cli and the functions for loading it
// a value is taken from the first place that defines it:
// flag, environment, config file, default

const (
	// DefaultHost is the public IslandCompare galaxy instance
	DefaultHost = "https://galaxy.islandcompare.ca/"

	// DefaultPollInterval matches the galaxy workflow polling interval
	DefaultPollInterval = 10 * time.Second

	// environment variables
	EnvHost         = "GALAXY_HOST"
	EnvKey          = "GALAXY_API_KEY"
	EnvPollInterval = "ISLANDCOMPARE_POLL_INTERVAL"

	defaultFileName = ".islandcompare.yml"
)

// ErrMissingKey is returned by Resolve when no API key was given anywhere
var ErrMissingKey = fmt.Errorf("an API key is required: pass --key or set %v", EnvKey)

// Config holds everything needed to talk to the galaxy instance
type Config struct {
	Host         string        `yaml:"host"`
	Key          string        `yaml:"key"`
	PollInterval time.Duration `yaml:"poll_interval"`
	S3Region     string        `yaml:"s3_region"`
}

// Overrides are the values given on the command line, empty means not given
type Overrides struct {
	ConfigFile   string
	Host         string
	Key          string
	PollInterval time.Duration
	S3Region     string
}

// DefaultFile returns ~/.islandcompare.yml, or "" if there is no home dir
func DefaultFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, defaultFileName)
}

// LoadFile reads a yaml config file
// a missing file is only an error when mustExist is set
func LoadFile(path string, mustExist bool) (*Config, error) {
	conf := &Config{}
	if path == "" {
		return conf, nil
	}
	b, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return conf, nil
		}
		return nil, fmt.Errorf("failed to read config file %v: %w", path, err)
	}
	if err = yaml.UnmarshalStrict(b, conf); err != nil {
		return nil, fmt.Errorf("failed to parse config file %v: %w", path, err)
	}
	return conf, nil
}

// Resolve merges flags, environment, the config file and defaults
func Resolve(o Overrides) (*Config, error) {
	path, mustExist := o.ConfigFile, true
	if path == "" {
		path, mustExist = DefaultFile(), false
	}
	file, err := LoadFile(path, mustExist)
	if err != nil {
		return nil, err
	}

	envInterval, err := durationFromEnv(EnvPollInterval)
	if err != nil {
		return nil, err
	}

	conf := &Config{
		Host:         first(o.Host, os.Getenv(EnvHost), file.Host, DefaultHost),
		Key:          first(o.Key, os.Getenv(EnvKey), file.Key),
		PollInterval: firstDuration(o.PollInterval, envInterval, file.PollInterval, DefaultPollInterval),
		S3Region:     first(o.S3Region, file.S3Region),
	}
	if conf.Key == "" {
		return nil, ErrMissingKey
	}
	if conf.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", conf.PollInterval)
	}
	return conf, nil
}

func durationFromEnv(name string) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %v: %w", name, err)
	}
	return d, nil
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstDuration(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
