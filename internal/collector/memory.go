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
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/zhamm/gpustatd/internal/probe"
	"github.com/zhamm/gpustatd/pkg/metrics"
)

// MemoryCollector collects physical and swap memory, normalized to bytes
// regardless of backend-reported units.
type MemoryCollector struct {
	prober     *probe.Prober
	fs         procFS
	timeout    time.Duration
	logger     *slog.Logger
	strategies []strategy[*metrics.MemoryInfo]
}

// NewMemoryCollector creates a memory collector with the gopsutil primary
// and the /proc/meminfo fallback strategies.
func NewMemoryCollector(prober *probe.Prober, fs procFS, timeout time.Duration, logger *slog.Logger) *MemoryCollector {
	m := &MemoryCollector{
		prober:  prober,
		fs:      fs,
		timeout: timeout,
		logger:  logger,
	}
	m.strategies = []strategy[*metrics.MemoryInfo]{
		{name: "gopsutil virtual memory", source: metrics.SourceGopsutil, backend: probe.BackendGopsutil, run: m.collectGopsutil},
		{name: "/proc/meminfo", source: metrics.SourceProcFS, backend: probe.BackendProcFS, run: m.collectProcFS},
	}
	return m
}

// Collect runs the memory strategy chain.
func (m *MemoryCollector) Collect(ctx context.Context) chainResult[*metrics.MemoryInfo] {
	return runChain(ctx, metrics.CategoryMemory, m.strategies, m.prober, m.timeout, m.logger)
}

func (m *MemoryCollector) collectGopsutil(ctx context.Context) (*metrics.MemoryInfo, []metrics.Warning, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	if vm.Total == 0 {
		return nil, nil, fmt.Errorf("library reported zero total memory")
	}

	info := &metrics.MemoryInfo{
		TotalBytes:     metrics.Uint(vm.Total),
		UsedBytes:      metrics.Uint(vm.Used),
		AvailableBytes: metrics.Uint(vm.Available),
		UsedPercent:    metrics.Float(metrics.ClampPercent(vm.UsedPercent)),
		Source:         metrics.SourceGopsutil,
	}

	var warns []metrics.Warning
	swap, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		warns = append(warns, metrics.Warning{
			Category: metrics.CategoryMemory,
			Message:  fmt.Sprintf("swap metrics unavailable: %v", err),
			Severity: metrics.SeverityWarn,
		})
	} else {
		info.SwapTotalBytes = metrics.Uint(swap.Total)
		info.SwapUsedBytes = metrics.Uint(swap.Used)
		info.SwapUsedPercent = metrics.Float(metrics.Percent(swap.Used, swap.Total))
	}
	return info, warns, nil
}

func (m *MemoryCollector) collectProcFS(_ context.Context) (*metrics.MemoryInfo, []metrics.Warning, error) {
	values, err := m.fs.meminfo()
	if err != nil {
		return nil, nil, err
	}

	total := values["MemTotal"]
	if total == 0 {
		return nil, nil, fmt.Errorf("zero MemTotal in /proc/meminfo")
	}
	available, ok := values["MemAvailable"]
	if !ok {
		// Pre-3.14 kernels lack MemAvailable.
		available = values["MemFree"]
	}
	used := total - available

	swapTotal := values["SwapTotal"]
	swapUsed := swapTotal - values["SwapFree"]

	info := &metrics.MemoryInfo{
		TotalBytes:      metrics.Uint(total),
		UsedBytes:       metrics.Uint(used),
		AvailableBytes:  metrics.Uint(available),
		UsedPercent:     metrics.Float(metrics.Percent(used, total)),
		SwapTotalBytes:  metrics.Uint(swapTotal),
		SwapUsedBytes:   metrics.Uint(swapUsed),
		SwapUsedPercent: metrics.Float(metrics.Percent(swapUsed, swapTotal)),
		Source:          metrics.SourceProcFS,
	}
	return info, nil, nil
}
