// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds a Config from a YAML file at path. If path is empty it searches
// default locations ("config.yaml"); if no file is found, built-in defaults
// are used. Environment overrides are applied after the file, and the result
// is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{"config.yaml", "specmon.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading config file: %v", ErrConfiguration, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file: %v", ErrConfiguration, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies SPECMON_* environment variables on top of file
// and default values. Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("SPECMON_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("SPECMON_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			c.Audio.DeviceID = iVal
		}
	}
	if val, ok := os.LookupEnv("SPECMON_SAMPLE_RATE"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			c.Audio.SampleRate = fVal
		}
	}
	if val, ok := os.LookupEnv("SPECMON_TICK_INTERVAL"); ok {
		if dVal, err := time.ParseDuration(val); err == nil {
			c.Analysis.TickInterval = Duration(dVal)
		}
	}
	if val, ok := os.LookupEnv("SPECMON_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WSEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("SPECMON_WS_ADDR"); ok {
		c.Transport.WSAddr = val
	}
}
