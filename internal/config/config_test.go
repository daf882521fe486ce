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
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Host != DefaultHost {
		t.Errorf("Host = %q, want %q", cfg.Host, DefaultHost)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.CacheTTL != DefaultCacheTTL {
		t.Errorf("CacheTTL = %v, want %v", cfg.CacheTTL, DefaultCacheTTL)
	}
	if cfg.ExecTimeout != DefaultExecTimeout {
		t.Errorf("ExecTimeout = %v, want %v", cfg.ExecTimeout, DefaultExecTimeout)
	}
	if cfg.CPUSampleWindow != DefaultCPUSampleWindow {
		t.Errorf("CPUSampleWindow = %v, want %v", cfg.CPUSampleWindow, DefaultCPUSampleWindow)
	}
	if cfg.ProbeTTL != DefaultProbeTTL {
		t.Errorf("ProbeTTL = %v, want %v", cfg.ProbeTTL, DefaultProbeTTL)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpustatd.yaml")
	content := `server:
  host: 127.0.0.1
  port: 9090
cache:
  ttl: 5s
collect:
  exec_timeout: 10s
  cpu_sample: 250ms
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.CacheTTL != 5*time.Second {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL)
	}
	if cfg.ExecTimeout != 10*time.Second {
		t.Errorf("ExecTimeout = %v", cfg.ExecTimeout)
	}
	if cfg.CPUSampleWindow != 250*time.Millisecond {
		t.Errorf("CPUSampleWindow = %v", cfg.CPUSampleWindow)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GPUSTATD_SERVER_PORT", "9999")
	t.Setenv("GPUSTATD_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999 from environment", cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn from environment", cfg.LogLevel)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Host:            DefaultHost,
			Port:            DefaultPort,
			CacheTTL:        DefaultCacheTTL,
			ExecTimeout:     DefaultExecTimeout,
			CPUSampleWindow: DefaultCPUSampleWindow,
			LogLevel:        DefaultLogLevel,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "Defaults valid", mutate: func(_ *Config) {}, wantErr: false},
		{name: "Port too low", mutate: func(c *Config) { c.Port = 0 }, wantErr: true},
		{name: "Port too high", mutate: func(c *Config) { c.Port = 70000 }, wantErr: true},
		{name: "Zero cache TTL", mutate: func(c *Config) { c.CacheTTL = 0 }, wantErr: true},
		{name: "Cache TTL too long", mutate: func(c *Config) { c.CacheTTL = 2 * time.Minute }, wantErr: true},
		{name: "Exec timeout too short", mutate: func(c *Config) { c.ExecTimeout = 500 * time.Millisecond }, wantErr: true},
		{name: "Exec timeout too long", mutate: func(c *Config) { c.ExecTimeout = time.Minute }, wantErr: true},
		{name: "Sample window too short", mutate: func(c *Config) { c.CPUSampleWindow = 50 * time.Millisecond }, wantErr: true},
		{name: "Sample window exceeds exec timeout", mutate: func(c *Config) { c.CPUSampleWindow = 5 * time.Second }, wantErr: true},
		{name: "Negative probe TTL", mutate: func(c *Config) { c.ProbeTTL = -time.Second }, wantErr: true},
		{name: "Bad log level", mutate: func(c *Config) { c.LogLevel = "verbose" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 8088}
	if got := cfg.Addr(); got != "127.0.0.1:8088" {
		t.Errorf("Addr() = %q, want 127.0.0.1:8088", got)
	}
}
