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

package metrics

import "time"

// Health summarizes how much of the snapshot came from primary data sources.
type Health string

const (
	// HealthFull means every category resolved via its primary strategy.
	HealthFull Health = "full"
	// HealthDegraded means at least one category used a fallback strategy.
	HealthDegraded Health = "degraded"
	// HealthMinimal means at least one category produced no data at all.
	HealthMinimal Health = "minimal"
)

// Source identifies the backend that produced a category's data.
type Source string

const (
	// SourceGopsutil is the primary library backend.
	SourceGopsutil Source = "gopsutil"
	// SourceProcFS is the /proc and /sys filesystem fallback backend.
	SourceProcFS Source = "procfs"
	// SourceSMIXML is the nvidia-smi rich XML query backend.
	SourceSMIXML Source = "nvidia-smi-xml"
	// SourceSMICSV is the nvidia-smi tabular CSV query backend.
	SourceSMICSV Source = "nvidia-smi-csv"
	// SourceDRM is the sysfs DRM scan; it reports hardware presence only.
	SourceDRM Source = "drm"
	// SourceUnavailable means hardware is present but no backend could
	// query it.
	SourceUnavailable Source = "unavailable"
	// SourceNone means no hardware was detected, so there is nothing to
	// query. Distinct from SourceUnavailable.
	SourceNone Source = "none"
)

// Category names one metric collection domain.
type Category string

const (
	CategoryCPU      Category = "cpu"
	CategoryMemory   Category = "memory"
	CategoryGPU      Category = "gpu"
	CategoryPlatform Category = "platform"
)

// Severity grades a collection warning.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Warning records a non-fatal collection problem attached to a snapshot.
type Warning struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Snapshot is one complete, immutable point-in-time measurement of host
// metrics. Fields that could not be measured are nil and serialize as JSON
// null; the accompanying Warnings explain why. The JSON keys are a stable
// contract: additions are allowed, renames are not.
type Snapshot struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Hostname  string        `json:"hostname"`
	Platform  *PlatformInfo `json:"platform"`
	CPU       *CPUInfo      `json:"cpu"`
	Memory    *MemoryInfo   `json:"memory"`
	GPUs      []GPUInfo     `json:"gpus"`
	GPUSource Source        `json:"gpu_source"`
	Warnings  []Warning     `json:"warnings"`
	Health    Health        `json:"health"`
}

// PlatformInfo describes the host operating system.
type PlatformInfo struct {
	OS            string   `json:"os"`
	Distribution  string   `json:"distribution"`
	KernelVersion string   `json:"kernel_version"`
	Architecture  string   `json:"architecture"`
	UptimeSeconds *float64 `json:"uptime_seconds"`
	Source        Source   `json:"source"`
}

// CPUInfo holds processor identity and utilization. UsagePerCore is ordered
// by core index and, when present, has length Cores.
type CPUInfo struct {
	ModelName    string    `json:"model_name"`
	Cores        int       `json:"cores"`
	UsagePercent *float64  `json:"usage_percent"`
	UsagePerCore []float64 `json:"usage_per_core"`
	TemperatureC *float64  `json:"temperature_c"`
	FrequencyMHz *float64  `json:"frequency_mhz"`
	Source       Source    `json:"source"`
}

// MemoryInfo holds physical and swap memory, normalized to bytes.
type MemoryInfo struct {
	TotalBytes      *uint64  `json:"total_bytes"`
	UsedBytes       *uint64  `json:"used_bytes"`
	AvailableBytes  *uint64  `json:"available_bytes"`
	UsedPercent     *float64 `json:"used_percent"`
	SwapTotalBytes  *uint64  `json:"swap_total_bytes"`
	SwapUsedBytes   *uint64  `json:"swap_used_bytes"`
	SwapUsedPercent *float64 `json:"swap_used_percent"`
	Source          Source   `json:"source"`
}

// GPUInfo holds per-device GPU metrics. Devices discovered only through the
// DRM scan carry presence data (vendor, model) with all metric fields nil.
type GPUInfo struct {
	Index              int      `json:"index"`
	Vendor             string   `json:"vendor"`
	Model              string   `json:"model"`
	UtilizationPercent *float64 `json:"utilization_percent"`
	MemoryUsedBytes    *uint64  `json:"memory_used_bytes"`
	MemoryTotalBytes   *uint64  `json:"memory_total_bytes"`
	MemoryUsedPercent  *float64 `json:"memory_used_percent"`
	TemperatureC       *float64 `json:"temperature_c"`
	PowerWatts         *float64 `json:"power_watts"`
	FanSpeedPercent    *float64 `json:"fan_speed_percent"`
	DriverVersion      string   `json:"driver_version,omitempty"`
	Source             Source   `json:"source"`
}

// CPUTimeStats represents cumulative CPU times for delta calculations,
// as read from /proc/stat or the primary library.
type CPUTimeStats struct {
	User      float64
	Nice      float64
	System    float64
	Idle      float64
	IOWait    float64
	Irq       float64
	SoftIrq   float64
	Steal     float64
	Timestamp time.Time
}

// Float returns a pointer to v. Convenience for optional numeric fields.
func Float(v float64) *float64 { return &v }

// Uint returns a pointer to v. Convenience for optional numeric fields.
func Uint(v uint64) *uint64 { return &v }
