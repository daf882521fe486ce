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

// Package probe determines which detection backends are usable in the
// current environment. Results are cached so repeated subprocess spawns and
// library checks are avoided; a probe failure is recorded as "unavailable"
// and never propagated as an error.
package probe

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sync/singleflight"
)

// Backend names one detection backend.
type Backend string

const (
	// BackendGopsutil is the primary metrics library.
	BackendGopsutil Backend = "gopsutil"
	// BackendProcFS is the /proc filesystem interface.
	BackendProcFS Backend = "procfs"
	// BackendNVSMI is the nvidia-smi command-line tool.
	BackendNVSMI Backend = "nvidia-smi"
	// BackendDRM is the /sys/class/drm device scan.
	BackendDRM Backend = "drm"
)

// smiSearchDirs lists well-known install locations checked when nvidia-smi
// is not on PATH (container images and WSL mount the driver tools outside
// the default PATH).
var smiSearchDirs = []string{
	"/usr/bin",
	"/usr/local/bin",
	"/usr/local/nvidia/bin",
	"/opt/nvidia/bin",
	"/usr/lib/wsl/lib",
}

type probeFunc func(ctx context.Context) (bool, string)

type result struct {
	ok        bool
	reason    string
	checkedAt time.Time
}

// Prober probes backend availability lazily and caches the outcome.
type Prober struct {
	mu      sync.Mutex
	ttl     time.Duration // 0 = cache for process lifetime
	timeout time.Duration // bound on external calls made while probing
	results map[Backend]result
	probes  map[Backend]probeFunc
	group   singleflight.Group
	smiPath string
	logger  *slog.Logger
}

// New creates a Prober. ttl of zero caches probe results for the lifetime of
// the process; timeout bounds any subprocess spawned while probing.
func New(ttl, timeout time.Duration, logger *slog.Logger) *Prober {
	p := &Prober{
		ttl:     ttl,
		timeout: timeout,
		results: make(map[Backend]result),
		logger:  logger,
	}
	p.probes = map[Backend]probeFunc{
		BackendGopsutil: p.probeGopsutil,
		BackendProcFS:   p.probeProcFS,
		BackendNVSMI:    p.probeNVSMI,
		BackendDRM:      p.probeDRM,
	}
	return p
}

// Available reports whether a backend is usable, probing it on first use and
// revalidating once the configured cache window has elapsed.
func (p *Prober) Available(ctx context.Context, b Backend) bool {
	p.mu.Lock()
	if r, ok := p.results[b]; ok {
		if p.ttl == 0 || time.Since(r.checkedAt) < p.ttl {
			p.mu.Unlock()
			return r.ok
		}
	}
	fn, ok := p.probes[b]
	if !ok {
		p.results[b] = result{ok: false, reason: "unknown backend", checkedAt: time.Now()}
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	// Probes can spawn subprocesses, so they run outside the lock: a slow
	// backend must not stall checks of the others. Concurrent first-use
	// checks of the same backend still share a single probe run.
	v, _, _ := p.group.Do(string(b), func() (interface{}, error) {
		p.mu.Lock()
		if r, ok := p.results[b]; ok && (p.ttl == 0 || time.Since(r.checkedAt) < p.ttl) {
			p.mu.Unlock()
			return r.ok, nil
		}
		p.mu.Unlock()

		avail, reason := p.run(ctx, fn)

		p.mu.Lock()
		p.results[b] = result{ok: avail, reason: reason, checkedAt: time.Now()}
		p.mu.Unlock()

		p.logger.Debug("Probed backend", "backend", b, "available", avail, "reason", reason)
		return avail, nil
	})
	return v.(bool)
}

// Reason returns the recorded explanation for a backend's last probe.
// Empty when the backend has not been probed yet.
func (p *Prober) Reason(b Backend) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results[b].reason
}

// NVSMIPath returns the resolved nvidia-smi path. Empty until BackendNVSMI
// has probed successfully.
func (p *Prober) NVSMIPath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.smiPath
}

// run executes one probe, converting panics from misbehaving backends into
// an unavailable result.
func (p *Prober) run(ctx context.Context, fn probeFunc) (avail bool, reason string) {
	defer func() {
		if r := recover(); r != nil {
			avail = false
			reason = "probe panicked"
			p.logger.Warn("Backend probe panicked", "panic", r)
		}
	}()
	return fn(ctx)
}

func (p *Prober) probeGopsutil(ctx context.Context) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return false, err.Error()
	}
	if n <= 0 {
		return false, "library reported no CPUs"
	}
	return true, ""
}

func (p *Prober) probeProcFS(_ context.Context) (bool, string) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	return true, ""
}

// probeNVSMI resolves the nvidia-smi binary (PATH first, then well-known
// install directories) and confirms it answers a device listing within the
// timeout. A driver that is installed but wedged fails this probe.
func (p *Prober) probeNVSMI(ctx context.Context) (bool, string) {
	path, err := exec.LookPath("nvidia-smi")
	if err != nil {
		for _, dir := range smiSearchDirs {
			candidate := filepath.Join(dir, "nvidia-smi")
			if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		return false, "nvidia-smi not found"
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := exec.CommandContext(ctx, path, "-L").Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return false, "nvidia-smi timed out"
		}
		return false, "nvidia-smi failed: " + err.Error()
	}

	p.mu.Lock()
	p.smiPath = path
	p.mu.Unlock()
	return true, ""
}

func (p *Prober) probeDRM(_ context.Context) (bool, string) {
	if _, err := os.ReadDir("/sys/class/drm"); err != nil {
		return false, err.Error()
	}
	return true, ""
}
