// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/omero-ms/go-imageregion/dispatch"
	"github.com/omero-ms/go-imageregion/region"
	"gopkg.in/yaml.v2"
)

// Config is the gateway configuration file.  Every setting also has a
// command-line flag, which wins if given.
type Config struct {
	// Port is the HTTP port to listen on.
	Port int `mapstructure:"port"`

	// Listen is the resolved [ip]:port for HTTP.
	Listen string `mapstructure:"-"`

	// Debug turns on debug logging.
	Debug bool `mapstructure:"debug"`

	// Backend is the worker bus, "memory" or "nats[:url]".
	Backend string `mapstructure:"backend"`

	// Timeout bounds the wait for a worker reply, e.g. "30s".
	Timeout time.Duration `mapstructure:"timeout"`

	// CacheSize is the number of rendered replies to keep.  Zero
	// disables the cache.
	CacheSize int `mapstructure:"cache-size"`

	// Sessions selects the session store.
	Sessions SessionConfig `mapstructure:"session-store"`

	// Defaults fill in optional render context fields.
	Defaults DefaultsConfig `mapstructure:"defaults"`
}

// SessionConfig selects where OMERO.web sessions are looked up.
type SessionConfig struct {
	// Type is "memory", "redis" or "postgres".  An empty type
	// makes every request anonymous.
	Type string `mapstructure:"type"`

	// URI is the Redis URL or PostgreSQL connection string.
	URI string `mapstructure:"uri"`

	// Prefix is the Redis key prefix.
	Prefix string `mapstructure:"prefix"`

	// CookieName is the OMERO.web session cookie name.
	CookieName string `mapstructure:"cookie-name"`
}

// DefaultsConfig holds render context defaults.
type DefaultsConfig struct {
	Format  string   `mapstructure:"format"`
	Quality *float64 `mapstructure:"quality"`
	Mode    string   `mapstructure:"mode"`
}

// Region converts the configured defaults, checking the format and
// mode names.
func (d DefaultsConfig) Region() (region.Defaults, error) {
	defaults := region.Defaults{CompressionQuality: d.Quality}
	var err error
	if d.Format != "" {
		defaults.Format, err = region.ParseFormat(d.Format)
	}
	if err == nil && d.Mode != "" {
		defaults.Mode, err = region.ParseMode(d.Mode)
	}
	return defaults, err
}

// defaultConfig returns the configuration used without a file.
func defaultConfig() Config {
	return Config{
		Backend: "memory",
		Timeout: dispatch.DefaultTimeout,
	}
}

func loadConfigYaml(filename string) (map[string]interface{}, error) {
	var result map[string]interface{}
	var err error
	var bytes []byte
	bytes, err = ioutil.ReadFile(filename)
	if err == nil {
		err = yaml.Unmarshal(bytes, &result)
	}
	return result, err
}

// stringKeys converts the nested maps yaml.v2 produces into maps
// with string keys, which mapstructure needs for struct decoding.
func stringKeys(in interface{}) interface{} {
	switch v := in.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			out[fmt.Sprintf("%v", key)] = stringKeys(value)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			out[key] = stringKeys(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, value := range v {
			out[i] = stringKeys(value)
		}
		return out
	default:
		return in
	}
}

// decodeConfig fills in config from a parsed YAML document.  Unknown
// keys are an error.
func decodeConfig(raw map[string]interface{}, config *Config) error {
	var md mapstructure.Metadata
	dc := mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           config,
	}
	decoder, err := mapstructure.NewDecoder(&dc)
	if err == nil {
		err = decoder.Decode(stringKeys(raw))
	}
	if err == nil && len(md.Unused) > 0 {
		err = fmt.Errorf("unknown configuration keys: %v", strings.Join(md.Unused, ", "))
	}
	return err
}

// readConfig loads a configuration file on top of the defaults.  An
// empty filename returns the defaults.
func readConfig(filename string) (Config, error) {
	config := defaultConfig()
	if filename == "" {
		return config, nil
	}
	raw, err := loadConfigYaml(filename)
	if err == nil {
		err = decodeConfig(raw, &config)
	}
	return config, err
}
