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
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zhamm/gpustatd/internal/probe"
	"github.com/zhamm/gpustatd/pkg/metrics"
)

// PCI vendor ids seen in /sys/class/drm/card*/device/vendor.
var drmVendors = map[string]string{
	"0x10de": "NVIDIA",
	"0x8086": "Intel",
	"0x1002": "AMD",
}

// gpuResult is the GPU category outcome. Unlike the other categories it
// distinguishes "no hardware" (source none, Health unaffected) from
// "hardware present, no metrics" (source unavailable, presence-only
// records, Health degraded).
type gpuResult struct {
	gpus     []metrics.GPUInfo
	source   metrics.Source
	state    categoryState
	fellBack bool
	hardware bool
	warnings []metrics.Warning
}

type drmDevice struct {
	card   string
	vendor string
}

// GPUCollector collects per-device GPU metrics through the nvidia-smi chain
// and detects hardware presence through the DRM sysfs scan.
type GPUCollector struct {
	prober     *probe.Prober
	fs         procFS
	timeout    time.Duration
	logger     *slog.Logger
	strategies []strategy[[]metrics.GPUInfo]

	// runSMI executes the vendor tool; replaced in tests.
	runSMI func(ctx context.Context, args ...string) ([]byte, error)
}

// NewGPUCollector creates a GPU collector with the rich XML query primary
// and the tabular CSV query fallback.
func NewGPUCollector(prober *probe.Prober, fs procFS, timeout time.Duration, logger *slog.Logger) *GPUCollector {
	g := &GPUCollector{
		prober:  prober,
		fs:      fs,
		timeout: timeout,
		logger:  logger,
	}
	g.runSMI = g.execSMI
	g.strategies = []strategy[[]metrics.GPUInfo]{
		{name: "nvidia-smi xml query", source: metrics.SourceSMIXML, backend: probe.BackendNVSMI, run: g.collectSMIXML},
		{name: "nvidia-smi csv query", source: metrics.SourceSMICSV, backend: probe.BackendNVSMI, run: g.collectSMICSV},
	}
	return g
}

// Collect runs the GPU strategy chain and merges in DRM presence data.
func (g *GPUCollector) Collect(ctx context.Context) gpuResult {
	devices, scanWarns := g.scanDRM(ctx)

	res := runChain(ctx, metrics.CategoryGPU, g.strategies, g.prober, g.timeout, g.logger)

	out := gpuResult{
		state:    res.state,
		fellBack: res.fellBack,
		hardware: len(devices) > 0,
		warnings: scanWarns,
	}

	if res.state == stateAvailable && len(res.value) > 0 {
		out.gpus = res.value
		out.source = res.source
		out.hardware = true
		out.warnings = append(out.warnings, res.warnings...)
		out.gpus = append(out.gpus, presenceOnly(devices, len(out.gpus), &out.warnings)...)
		return out
	}

	if res.state == stateAvailable && !out.hardware {
		// Tool answered authoritatively that no devices exist.
		out.gpus = []metrics.GPUInfo{}
		out.source = metrics.SourceNone
		out.warnings = append(out.warnings, res.warnings...)
		return out
	}

	if res.state == stateAvailable {
		// The tool answered with an empty list yet the DRM scan sees
		// hardware: those devices cannot be queried, same outcome as an
		// exhausted chain.
		out.state = stateUnavailable
		out.warnings = append(out.warnings, res.warnings...)
		out.source = metrics.SourceUnavailable
		out.gpus = presenceOnly(devices, 0, &out.warnings)
		out.warnings = append(out.warnings, metrics.Warning{
			Category: metrics.CategoryGPU,
			Message:  fmt.Sprintf("gpu hardware detected (%d device(s)) but no metrics backend is usable", len(devices)),
			Severity: metrics.SeverityError,
		})
		return out
	}

	if !out.hardware {
		// No GPU hardware: an empty list is the correct answer, not a
		// degradation. Keep the informational trail but drop the chain's
		// error-severity verdict.
		out.gpus = []metrics.GPUInfo{}
		out.source = metrics.SourceNone
		out.warnings = append(out.warnings, demoteToInfo(res.warnings)...)
		out.warnings = append(out.warnings, metrics.Warning{
			Category: metrics.CategoryGPU,
			Message:  "no gpu hardware detected",
			Severity: metrics.SeverityInfo,
		})
		return out
	}

	// Hardware exists but no backend could query it.
	out.source = metrics.SourceUnavailable
	out.warnings = append(out.warnings, res.warnings...)
	out.gpus = presenceOnly(devices, 0, &out.warnings)
	out.warnings = append(out.warnings, metrics.Warning{
		Category: metrics.CategoryGPU,
		Message:  fmt.Sprintf("gpu hardware detected (%d device(s)) but no metrics backend is usable", len(devices)),
		Severity: metrics.SeverityError,
	})
	return out
}

func (g *GPUCollector) collectSMIXML(ctx context.Context) ([]metrics.GPUInfo, []metrics.Warning, error) {
	data, err := g.runSMI(ctx, "-q", "-x")
	if err != nil {
		return nil, nil, err
	}
	return parseSMIXML(data)
}

func (g *GPUCollector) collectSMICSV(ctx context.Context) ([]metrics.GPUInfo, []metrics.Warning, error) {
	data, err := g.runSMI(ctx, "--query-gpu="+smiCSVQuery, "--format=csv,noheader,nounits")
	if err != nil {
		return nil, nil, err
	}
	return parseSMICSV(data)
}

func (g *GPUCollector) execSMI(ctx context.Context, args ...string) ([]byte, error) {
	path := "nvidia-smi"
	if g.prober != nil {
		if p := g.prober.NVSMIPath(); p != "" {
			path = p
		}
	}
	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", filepath.Base(path), strings.Join(args, " "), err)
	}
	return out, nil
}

// scanDRM inspects /sys/class/drm for GPU-class devices. It answers the
// hardware-presence question independently of whether any metrics backend
// works.
func (g *GPUCollector) scanDRM(ctx context.Context) ([]drmDevice, []metrics.Warning) {
	if g.prober != nil && !g.prober.Available(ctx, probe.BackendDRM) {
		return nil, []metrics.Warning{{
			Category: metrics.CategoryGPU,
			Message:  "drm scan unavailable: " + reasonOr(g.prober, probe.BackendDRM),
			Severity: metrics.SeverityInfo,
		}}
	}

	entries, err := os.ReadDir(g.fs.path("sys/class/drm"))
	if err != nil {
		return nil, []metrics.Warning{{
			Category: metrics.CategoryGPU,
			Message:  fmt.Sprintf("drm scan failed: %v", err),
			Severity: metrics.SeverityInfo,
		}}
	}

	var devices []drmDevice
	for _, entry := range entries {
		name := entry.Name()
		// card0, card1... ; connector entries like card0-HDMI-A-1 are skipped.
		if !strings.HasPrefix(name, "card") || strings.Contains(name, "-") {
			continue
		}
		data, err := os.ReadFile(g.fs.path(filepath.Join("sys/class/drm", name, "device/vendor")))
		if err != nil {
			continue
		}
		vendorID := strings.ToLower(strings.TrimSpace(string(data)))
		vendor, ok := drmVendors[vendorID]
		if !ok {
			vendor = "Unknown (" + vendorID + ")"
		}
		devices = append(devices, drmDevice{card: name, vendor: vendor})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].card < devices[j].card })
	return devices, nil
}

// presenceOnly converts DRM devices that have no queryable metrics into
// presence-only records. NVIDIA devices are excluded when the chain already
// produced real records for them (startIndex > 0 implies chain success).
func presenceOnly(devices []drmDevice, startIndex int, warnings *[]metrics.Warning) []metrics.GPUInfo {
	var gpus []metrics.GPUInfo
	for _, d := range devices {
		if d.vendor == vendorNVIDIA && startIndex > 0 {
			continue
		}
		model := d.vendor + " GPU"
		if d.vendor == "Intel" {
			model = "Intel Integrated Graphics"
		}
		gpus = append(gpus, metrics.GPUInfo{
			Index:  startIndex + len(gpus),
			Vendor: d.vendor,
			Model:  model,
			Source: metrics.SourceDRM,
		})
		if d.vendor != vendorNVIDIA {
			*warnings = append(*warnings, metrics.Warning{
				Category: metrics.CategoryGPU,
				Message:  fmt.Sprintf("%s gpu detected on %s; metrics not supported, reporting presence only", strings.ToLower(d.vendor), d.card),
				Severity: metrics.SeverityInfo,
			})
		}
	}
	return gpus
}

func demoteToInfo(warns []metrics.Warning) []metrics.Warning {
	out := make([]metrics.Warning, len(warns))
	for i, w := range warns {
		w.Severity = metrics.SeverityInfo
		out[i] = w
	}
	return out
}
