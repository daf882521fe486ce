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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhamm/gpustatd/pkg/metrics"
)

func TestParseSMIXML(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "nvsmi.xml"))
	require.NoError(t, err)

	gpus, warns, err := parseSMIXML(data)
	require.NoError(t, err)
	require.Len(t, gpus, 2)
	assert.Empty(t, warns)

	a100 := gpus[0]
	assert.Equal(t, 0, a100.Index)
	assert.Equal(t, "NVIDIA", a100.Vendor)
	assert.Equal(t, "NVIDIA A100-SXM4-80GB", a100.Model)
	assert.Equal(t, "550.54.15", a100.DriverVersion)
	assert.Equal(t, metrics.SourceSMIXML, a100.Source)

	require.NotNil(t, a100.UtilizationPercent)
	assert.Equal(t, 37.0, *a100.UtilizationPercent)
	require.NotNil(t, a100.MemoryTotalBytes)
	assert.Equal(t, uint64(81920)*1024*1024, *a100.MemoryTotalBytes)
	require.NotNil(t, a100.MemoryUsedBytes)
	assert.Equal(t, uint64(4523)*1024*1024, *a100.MemoryUsedBytes)
	require.NotNil(t, a100.TemperatureC)
	assert.Equal(t, 41.0, *a100.TemperatureC)
	// The A100 reports power through the newer gpu_power_readings element.
	require.NotNil(t, a100.PowerWatts)
	assert.Equal(t, 71.68, *a100.PowerWatts)
	// Passively cooled: fan speed is N/A, must stay null.
	assert.Nil(t, a100.FanSpeedPercent)
	require.NotNil(t, a100.MemoryUsedPercent)
	assert.InDelta(t, 5.52, *a100.MemoryUsedPercent, 0.01)

	rtx := gpus[1]
	assert.Equal(t, 1, rtx.Index)
	assert.Equal(t, "NVIDIA GeForce RTX 3080", rtx.Model)
	// Older drivers report power through power_readings.
	require.NotNil(t, rtx.PowerWatts)
	assert.Equal(t, 289.50, *rtx.PowerWatts)
	require.NotNil(t, rtx.FanSpeedPercent)
	assert.Equal(t, 52.0, *rtx.FanSpeedPercent)
}

func TestParseSMIXMLSkipsMalformedRecord(t *testing.T) {
	data := []byte(`<?xml version="1.0" ?>
<nvidia_smi_log>
	<driver_version>550.54.15</driver_version>
	<gpu id="00000000:17:00.0">
		<product_name></product_name>
	</gpu>
	<gpu id="00000000:65:00.0">
		<product_name>NVIDIA T4</product_name>
		<utilization><gpu_util>5 %</gpu_util></utilization>
	</gpu>
</nvidia_smi_log>`)

	gpus, warns, err := parseSMIXML(data)
	require.NoError(t, err)
	require.Len(t, gpus, 1)
	assert.Equal(t, "NVIDIA T4", gpus[0].Model)
	assert.Equal(t, 0, gpus[0].Index)

	require.Len(t, warns, 1)
	assert.Equal(t, metrics.CategoryGPU, warns[0].Category)
	assert.Equal(t, metrics.SeverityWarn, warns[0].Severity)
	assert.Contains(t, warns[0].Message, "malformed")
}

func TestParseSMIXMLInvalid(t *testing.T) {
	_, _, err := parseSMIXML([]byte("not xml at all"))
	assert.Error(t, err)
}

func TestParseSMICSV(t *testing.T) {
	data := []byte("0, NVIDIA A100-SXM4-80GB, 550.54.15, 37, 4523, 81920, 41, 71.68, [N/A]\n" +
		"1, NVIDIA GeForce RTX 3080, 550.54.15, 88, 1024, 10240, 67, 289.50, 52\n")

	gpus, warns, err := parseSMICSV(data)
	require.NoError(t, err)
	require.Len(t, gpus, 2)
	assert.Empty(t, warns)

	a100 := gpus[0]
	assert.Equal(t, "NVIDIA A100-SXM4-80GB", a100.Model)
	assert.Equal(t, "550.54.15", a100.DriverVersion)
	assert.Equal(t, metrics.SourceSMICSV, a100.Source)
	require.NotNil(t, a100.UtilizationPercent)
	assert.Equal(t, 37.0, *a100.UtilizationPercent)
	require.NotNil(t, a100.MemoryUsedBytes)
	assert.Equal(t, uint64(4523)*1024*1024, *a100.MemoryUsedBytes)
	assert.Nil(t, a100.FanSpeedPercent)

	rtx := gpus[1]
	require.NotNil(t, rtx.FanSpeedPercent)
	assert.Equal(t, 52.0, *rtx.FanSpeedPercent)
}

func TestParseSMICSVSkipsMalformedLine(t *testing.T) {
	data := []byte("garbage line without enough fields\n" +
		"0, NVIDIA T4, 535.104.05, 5, 100, 16384, 35, 28.1, N/A\n")

	gpus, warns, err := parseSMICSV(data)
	require.NoError(t, err)
	require.Len(t, gpus, 1)
	assert.Equal(t, "NVIDIA T4", gpus[0].Model)
	require.Len(t, warns, 1)
	assert.Equal(t, metrics.SeverityWarn, warns[0].Severity)
}

func TestParseSMICSVAllMalformed(t *testing.T) {
	_, warns, err := parseSMICSV([]byte("bad\nworse\n"))
	assert.Error(t, err)
	assert.NotEmpty(t, warns)
}

func TestSMINumber(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{in: "34 C", want: metrics.Float(34)},
		{in: "12 %", want: metrics.Float(12)},
		{in: "71.68 W", want: metrics.Float(71.68)},
		{in: "42", want: metrics.Float(42)},
		{in: "N/A", want: nil},
		{in: "[N/A]", want: nil},
		{in: "[Not Supported]", want: nil},
		{in: "", want: nil},
		{in: "abc", want: nil},
	}

	for _, tt := range tests {
		got := smiNumber(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, "smiNumber(%q)", tt.in)
		} else {
			require.NotNil(t, got, "smiNumber(%q)", tt.in)
			assert.Equal(t, *tt.want, *got, "smiNumber(%q)", tt.in)
		}
	}
}

func TestSMIMiB(t *testing.T) {
	tests := []struct {
		in   string
		want *uint64
	}{
		{in: "81920 MiB", want: metrics.Uint(81920 * 1024 * 1024)},
		{in: "2 GiB", want: metrics.Uint(2 * 1024 * 1024 * 1024)},
		{in: "512 KiB", want: metrics.Uint(512 * 1024)},
		{in: "1024", want: metrics.Uint(1024 * 1024 * 1024)}, // bare values are MiB
		{in: "N/A", want: nil},
		{in: "", want: nil},
	}

	for _, tt := range tests {
		got := smiMiB(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, "smiMiB(%q)", tt.in)
		} else {
			require.NotNil(t, got, "smiMiB(%q)", tt.in)
			assert.Equal(t, *tt.want, *got, "smiMiB(%q)", tt.in)
		}
	}
}
