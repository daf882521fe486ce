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

package collector

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/zhamm/gpustatd/internal/probe"
	"github.com/zhamm/gpustatd/pkg/metrics"
)

// PlatformCollector collects OS identity, kernel version and uptime.
type PlatformCollector struct {
	prober     *probe.Prober
	fs         procFS
	timeout    time.Duration
	logger     *slog.Logger
	strategies []strategy[*metrics.PlatformInfo]
}

// NewPlatformCollector creates a platform collector with the gopsutil
// primary and the os-release/procfs fallback strategies.
func NewPlatformCollector(prober *probe.Prober, fs procFS, timeout time.Duration, logger *slog.Logger) *PlatformCollector {
	p := &PlatformCollector{
		prober:  prober,
		fs:      fs,
		timeout: timeout,
		logger:  logger,
	}
	p.strategies = []strategy[*metrics.PlatformInfo]{
		{name: "gopsutil host info", source: metrics.SourceGopsutil, backend: probe.BackendGopsutil, run: p.collectGopsutil},
		{name: "os-release/procfs", source: metrics.SourceProcFS, backend: probe.BackendProcFS, run: p.collectProcFS},
	}
	return p
}

// Collect runs the platform strategy chain.
func (p *PlatformCollector) Collect(ctx context.Context) chainResult[*metrics.PlatformInfo] {
	return runChain(ctx, metrics.CategoryPlatform, p.strategies, p.prober, p.timeout, p.logger)
}

func (p *PlatformCollector) collectGopsutil(ctx context.Context) (*metrics.PlatformInfo, []metrics.Warning, error) {
	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, nil, err
	}

	distribution := hi.Platform
	if hi.PlatformVersion != "" {
		distribution = fmt.Sprintf("%s %s", hi.Platform, hi.PlatformVersion)
	}

	info := &metrics.PlatformInfo{
		OS:            hi.OS,
		Distribution:  distribution,
		KernelVersion: hi.KernelVersion,
		Architecture:  hi.KernelArch,
		UptimeSeconds: metrics.Float(float64(hi.Uptime)),
		Source:        metrics.SourceGopsutil,
	}
	if info.Architecture == "" {
		info.Architecture = runtime.GOARCH
	}
	return info, nil, nil
}

func (p *PlatformCollector) collectProcFS(_ context.Context) (*metrics.PlatformInfo, []metrics.Warning, error) {
	kernel, err := p.fs.kernelVersion()
	if err != nil {
		return nil, nil, err
	}

	info := &metrics.PlatformInfo{
		OS:            runtime.GOOS,
		Distribution:  p.fs.distribution(),
		KernelVersion: kernel,
		Architecture:  runtime.GOARCH,
		Source:        metrics.SourceProcFS,
	}

	var warns []metrics.Warning
	if uptime, err := p.fs.uptimeSeconds(); err == nil {
		info.UptimeSeconds = metrics.Float(uptime)
	} else {
		warns = append(warns, metrics.Warning{
			Category: metrics.CategoryPlatform,
			Message:  fmt.Sprintf("uptime unavailable: %v", err),
			Severity: metrics.SeverityWarn,
		})
	}
	if info.Distribution == "" {
		info.Distribution = "unknown"
		warns = append(warns, metrics.Warning{
			Category: metrics.CategoryPlatform,
			Message:  "distribution could not be determined",
			Severity: metrics.SeverityInfo,
		})
	}
	return info, warns, nil
}
