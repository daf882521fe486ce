/*
 * MIT License
 *
 * Copyright (c) 2026 Nguyen Thanh Phuong
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents application configuration.
type Config struct {
	Host string // HTTP listen address
	Port int    // HTTP listen port

	CacheTTL        time.Duration // Snapshot cache expiry
	ExecTimeout     time.Duration // Bound on any single external call (subprocess or library)
	CPUSampleWindow time.Duration // Fixed CPU utilization sampling window
	ProbeTTL        time.Duration // Capability probe cache window (0 = process lifetime)

	// Logging
	LogLevel string // Log level: debug, info, warn, error
	LogFile  string // Log file path (empty = stdout)
}

// Default configuration values.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8088
	DefaultCacheTTL        = 2 * time.Second
	DefaultExecTimeout     = 3 * time.Second
	DefaultCPUSampleWindow = 500 * time.Millisecond
	DefaultProbeTTL        = 0 * time.Second
	DefaultLogLevel        = "info"
)

// Load builds the configuration from defaults, an optional YAML config file
// and GPUSTATD_* environment variables, in ascending precedence.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GPUSTATD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Host:            v.GetString("server.host"),
		Port:            v.GetInt("server.port"),
		CacheTTL:        v.GetDuration("cache.ttl"),
		ExecTimeout:     v.GetDuration("collect.exec_timeout"),
		CPUSampleWindow: v.GetDuration("collect.cpu_sample"),
		ProbeTTL:        v.GetDuration("probe.ttl"),
		LogLevel:        v.GetString("log.level"),
		LogFile:         v.GetString("log.file"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("collect.exec_timeout", DefaultExecTimeout)
	v.SetDefault("collect.cpu_sample", DefaultCPUSampleWindow)
	v.SetDefault("probe.ttl", DefaultProbeTTL)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.file", "")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be in [1, 65535], got %d", c.Port)
	}

	if c.CacheTTL <= 0 {
		return errors.New("cache TTL must be positive")
	}
	if c.CacheTTL > 1*time.Minute {
		return errors.New("cache TTL must not exceed 1 minute")
	}

	if c.ExecTimeout < 1*time.Second {
		return errors.New("exec timeout must be at least 1 second")
	}
	if c.ExecTimeout > 30*time.Second {
		return errors.New("exec timeout must not exceed 30 seconds")
	}

	if c.CPUSampleWindow < 100*time.Millisecond {
		return errors.New("cpu sample window must be at least 100ms")
	}
	if c.CPUSampleWindow >= c.ExecTimeout {
		return errors.New("cpu sample window must be shorter than the exec timeout")
	}

	if c.ProbeTTL < 0 {
		return errors.New("probe TTL must not be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// String returns a human-readable representation of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Addr=%s, CacheTTL=%v, ExecTimeout=%v, CPUSample=%v, ProbeTTL=%v}",
		c.Addr(), c.CacheTTL, c.ExecTimeout, c.CPUSampleWindow, c.ProbeTTL)
}
