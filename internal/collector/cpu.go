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

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/zhamm/gpustatd/internal/probe"
	"github.com/zhamm/gpustatd/pkg/metrics"
)

// CPUCollector collects processor identity and utilization. Per-core usage
// is sampled over one bounded, fixed-duration window so call latency does
// not grow with core count.
type CPUCollector struct {
	prober       *probe.Prober
	fs           procFS
	sampleWindow time.Duration
	timeout      time.Duration
	logger       *slog.Logger
	strategies   []strategy[*metrics.CPUInfo]
}

// NewCPUCollector creates a CPU collector with the gopsutil primary and the
// /proc/stat fallback strategies.
func NewCPUCollector(prober *probe.Prober, fs procFS, sampleWindow, timeout time.Duration, logger *slog.Logger) *CPUCollector {
	c := &CPUCollector{
		prober:       prober,
		fs:           fs,
		sampleWindow: sampleWindow,
		timeout:      timeout,
		logger:       logger,
	}
	c.strategies = []strategy[*metrics.CPUInfo]{
		{name: "gopsutil cpu sampling", source: metrics.SourceGopsutil, backend: probe.BackendGopsutil, run: c.collectGopsutil},
		{name: "/proc/stat sampling", source: metrics.SourceProcFS, backend: probe.BackendProcFS, run: c.collectProcFS},
	}
	return c
}

// Collect runs the CPU strategy chain.
func (c *CPUCollector) Collect(ctx context.Context) chainResult[*metrics.CPUInfo] {
	return runChain(ctx, metrics.CategoryCPU, c.strategies, c.prober, c.timeout, c.logger)
}

func (c *CPUCollector) collectGopsutil(ctx context.Context) (*metrics.CPUInfo, []metrics.Warning, error) {
	perCore, err := cpu.PercentWithContext(ctx, c.sampleWindow, true)
	if err != nil {
		return nil, nil, err
	}
	if len(perCore) == 0 {
		return nil, nil, fmt.Errorf("library returned no per-core samples")
	}

	var sum float64
	for i, v := range perCore {
		perCore[i] = metrics.ClampPercent(v)
		sum += perCore[i]
	}

	info := &metrics.CPUInfo{
		Cores:        len(perCore),
		UsagePercent: metrics.Float(sum / float64(len(perCore))),
		UsagePerCore: perCore,
		Source:       metrics.SourceGopsutil,
	}

	var warns []metrics.Warning
	infos, err := cpu.InfoWithContext(ctx)
	if err == nil && len(infos) > 0 {
		info.ModelName = infos[0].ModelName
		if infos[0].Mhz > 0 {
			info.FrequencyMHz = metrics.Float(infos[0].Mhz)
		}
	}
	info.TemperatureC = c.fs.thermalZoneTemp()
	warns = append(warns, optionalCPUFieldWarnings(info)...)
	return info, warns, nil
}

// collectProcFS derives utilization from two /proc/stat reads separated by
// the sampling window.
func (c *CPUCollector) collectProcFS(ctx context.Context) (*metrics.CPUInfo, []metrics.Warning, error) {
	first, firstPerCore, err := c.fs.cpuTimes()
	if err != nil {
		return nil, nil, err
	}

	select {
	case <-time.After(c.sampleWindow):
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	second, secondPerCore, err := c.fs.cpuTimes()
	if err != nil {
		return nil, nil, err
	}
	if len(firstPerCore) != len(secondPerCore) || len(secondPerCore) == 0 {
		return nil, nil, fmt.Errorf("inconsistent per-core samples: %d vs %d", len(firstPerCore), len(secondPerCore))
	}

	perCore := make([]float64, len(secondPerCore))
	for i := range secondPerCore {
		perCore[i] = metrics.CalculateCPUUtilization(&firstPerCore[i], &secondPerCore[i])
	}

	info := &metrics.CPUInfo{
		Cores:        len(perCore),
		UsagePercent: metrics.Float(metrics.CalculateCPUUtilization(&first, &second)),
		UsagePerCore: perCore,
		Source:       metrics.SourceProcFS,
	}

	if model, cores, freq, idErr := c.fs.cpuIdentity(); idErr == nil {
		info.ModelName = model
		info.FrequencyMHz = freq
		if cores > 0 && cores != info.Cores {
			c.logger.Debug("Core count mismatch between /proc/cpuinfo and /proc/stat",
				"cpuinfo", cores, "stat", info.Cores)
		}
	}
	info.TemperatureC = c.fs.thermalZoneTemp()
	return info, optionalCPUFieldWarnings(info), nil
}

// optionalCPUFieldWarnings explains absent optional sensors so a null field
// is never silent.
func optionalCPUFieldWarnings(info *metrics.CPUInfo) []metrics.Warning {
	var warns []metrics.Warning
	if info.TemperatureC == nil {
		warns = append(warns, metrics.Warning{
			Category: metrics.CategoryCPU,
			Message:  "cpu temperature sensor not found",
			Severity: metrics.SeverityInfo,
		})
	}
	if info.FrequencyMHz == nil {
		warns = append(warns, metrics.Warning{
			Category: metrics.CategoryCPU,
			Message:  "cpu frequency not reported",
			Severity: metrics.SeverityInfo,
		})
	}
	return warns
}
