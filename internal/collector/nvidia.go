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
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/zhamm/gpustatd/pkg/metrics"
)

const vendorNVIDIA = "NVIDIA"

// smiCSVQuery lists the fields requested from the tabular fallback query.
// Order matters: parseSMICSV indexes into the result positionally.
const smiCSVQuery = "index,name,driver_version,utilization.gpu,memory.used,memory.total,temperature.gpu,power.draw,fan.speed"

// nvsmiLog mirrors the structure of `nvidia-smi -q -x` output.
type nvsmiLog struct {
	XMLName       xml.Name   `xml:"nvidia_smi_log"`
	DriverVersion string     `xml:"driver_version"`
	CudaVersion   string     `xml:"cuda_version"`
	AttachedGPUs  string     `xml:"attached_gpus"`
	GPUs          []nvsmiGPU `xml:"gpu"`
}

type nvsmiGPU struct {
	ID            string `xml:"id,attr"`
	ProductName   string `xml:"product_name"`
	FanSpeed      string `xml:"fan_speed"`
	FbMemoryUsage struct {
		Total string `xml:"total"`
		Used  string `xml:"used"`
	} `xml:"fb_memory_usage"`
	Utilization struct {
		GPUUtil    string `xml:"gpu_util"`
		MemoryUtil string `xml:"memory_util"`
	} `xml:"utilization"`
	Temperature struct {
		GPUTemp string `xml:"gpu_temp"`
	} `xml:"temperature"`
	// The element name changed across driver generations.
	GPUPowerReadings struct {
		PowerDraw string `xml:"power_draw"`
	} `xml:"gpu_power_readings"`
	PowerReadings struct {
		PowerDraw string `xml:"power_draw"`
	} `xml:"power_readings"`
}

// parseSMIXML converts `nvidia-smi -q -x` output into GPUInfo records.
// A malformed device record is skipped with a Warning; remaining records
// survive. Structurally invalid XML is an error for the whole strategy.
func parseSMIXML(data []byte) ([]metrics.GPUInfo, []metrics.Warning, error) {
	var log nvsmiLog
	if err := xml.Unmarshal(data, &log); err != nil {
		return nil, nil, fmt.Errorf("invalid nvidia-smi XML: %w", err)
	}

	var (
		gpus  []metrics.GPUInfo
		warns []metrics.Warning
	)
	for i, g := range log.GPUs {
		if strings.TrimSpace(g.ProductName) == "" {
			warns = append(warns, metrics.Warning{
				Category: metrics.CategoryGPU,
				Message:  fmt.Sprintf("skipping malformed nvidia-smi record %d: missing product name", i),
				Severity: metrics.SeverityWarn,
			})
			continue
		}

		info := metrics.GPUInfo{
			Index:              len(gpus),
			Vendor:             vendorNVIDIA,
			Model:              strings.TrimSpace(g.ProductName),
			UtilizationPercent: smiNumber(g.Utilization.GPUUtil),
			MemoryUsedBytes:    smiMiB(g.FbMemoryUsage.Used),
			MemoryTotalBytes:   smiMiB(g.FbMemoryUsage.Total),
			TemperatureC:       smiNumber(g.Temperature.GPUTemp),
			FanSpeedPercent:    smiNumber(g.FanSpeed),
			DriverVersion:      strings.TrimSpace(log.DriverVersion),
			Source:             metrics.SourceSMIXML,
		}
		if info.PowerWatts = smiNumber(g.GPUPowerReadings.PowerDraw); info.PowerWatts == nil {
			info.PowerWatts = smiNumber(g.PowerReadings.PowerDraw)
		}
		fillGPUMemoryPercent(&info)
		gpus = append(gpus, info)
	}
	return gpus, warns, nil
}

// parseSMICSV converts the tabular `--query-gpu --format=csv,noheader,nounits`
// output into GPUInfo records. Malformed lines are skipped with a Warning.
func parseSMICSV(data []byte) ([]metrics.GPUInfo, []metrics.Warning, error) {
	var (
		gpus  []metrics.GPUInfo
		warns []metrics.Warning
	)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	wantFields := len(strings.Split(smiCSVQuery, ","))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) != wantFields {
			warns = append(warns, metrics.Warning{
				Category: metrics.CategoryGPU,
				Message:  fmt.Sprintf("skipping malformed nvidia-smi line: want %d fields, got %d", wantFields, len(fields)),
				Severity: metrics.SeverityWarn,
			})
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if fields[1] == "" {
			warns = append(warns, metrics.Warning{
				Category: metrics.CategoryGPU,
				Message:  "skipping malformed nvidia-smi line: missing device name",
				Severity: metrics.SeverityWarn,
			})
			continue
		}

		info := metrics.GPUInfo{
			Index:              len(gpus),
			Vendor:             vendorNVIDIA,
			Model:              fields[1],
			DriverVersion:      csvString(fields[2]),
			UtilizationPercent: smiNumber(fields[3]),
			TemperatureC:       smiNumber(fields[6]),
			PowerWatts:         smiNumber(fields[7]),
			FanSpeedPercent:    smiNumber(fields[8]),
			Source:             metrics.SourceSMICSV,
		}
		// nounits memory values are MiB.
		if v := smiNumber(fields[4]); v != nil {
			info.MemoryUsedBytes = metrics.Uint(uint64(*v) * 1024 * 1024)
		}
		if v := smiNumber(fields[5]); v != nil {
			info.MemoryTotalBytes = metrics.Uint(uint64(*v) * 1024 * 1024)
		}
		fillGPUMemoryPercent(&info)
		gpus = append(gpus, info)
	}

	if len(gpus) == 0 && len(warns) > 0 {
		return nil, warns, fmt.Errorf("no parseable devices in nvidia-smi output")
	}
	return gpus, warns, nil
}

func fillGPUMemoryPercent(info *metrics.GPUInfo) {
	if info.MemoryUsedBytes != nil && info.MemoryTotalBytes != nil && *info.MemoryTotalBytes > 0 {
		info.MemoryUsedPercent = metrics.Float(metrics.Percent(*info.MemoryUsedBytes, *info.MemoryTotalBytes))
	}
}

// smiNumber parses a numeric nvidia-smi value, tolerating a unit suffix
// ("34 C", "12 %", "71.68 W") and the N/A placeholders.
func smiNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" || s == "[N/A]" || s == "[Not Supported]" {
		return nil
	}
	fields := strings.Fields(s)
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil
	}
	return metrics.Float(v)
}

// smiMiB parses an XML memory value such as "81920 MiB" into bytes.
func smiMiB(s string) *uint64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return nil
	}
	fields := strings.Fields(s)
	v, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return nil
	}
	mult := uint64(1024 * 1024)
	if len(fields) > 1 {
		switch strings.ToLower(fields[1]) {
		case "kib", "kb":
			mult = 1024
		case "mib", "mb":
			mult = 1024 * 1024
		case "gib", "gb":
			mult = 1024 * 1024 * 1024
		}
	}
	return metrics.Uint(v * mult)
}

func csvString(s string) string {
	if s == "N/A" || s == "[N/A]" {
		return ""
	}
	return s
}
