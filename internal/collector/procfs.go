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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zhamm/gpustatd/pkg/metrics"
)

// procFS reads OS-facility fallback data from /proc, /sys and /etc.
// The root is configurable so parsers can be exercised against fixture
// trees in tests.
type procFS struct {
	root string
}

func newProcFS(root string) procFS {
	if root == "" {
		root = "/"
	}
	return procFS{root: root}
}

func (fs procFS) path(rel string) string {
	return filepath.Join(fs.root, rel)
}

func (fs procFS) open(rel string) (*os.File, error) {
	return os.Open(fs.path(rel))
}

// cpuTimes reads one sample of cumulative CPU times from /proc/stat.
// The first return value is the aggregate line; perCore is ordered by core
// index.
func (fs procFS) cpuTimes() (metrics.CPUTimeStats, []metrics.CPUTimeStats, error) {
	f, err := fs.open("proc/stat")
	if err != nil {
		return metrics.CPUTimeStats{}, nil, err
	}
	defer f.Close()
	return parseProcStat(f)
}

func parseProcStat(r io.Reader) (metrics.CPUTimeStats, []metrics.CPUTimeStats, error) {
	var (
		aggregate metrics.CPUTimeStats
		perCore   []metrics.CPUTimeStats
		seen      bool
	)
	now := time.Now()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || !strings.HasPrefix(fields[0], "cpu") {
			continue
		}

		stats, err := parseCPUTimeFields(fields[1:])
		if err != nil {
			return aggregate, nil, fmt.Errorf("malformed /proc/stat line %q: %w", fields[0], err)
		}
		stats.Timestamp = now

		if fields[0] == "cpu" {
			aggregate = stats
			seen = true
		} else {
			perCore = append(perCore, stats)
		}
	}
	if err := scanner.Err(); err != nil {
		return aggregate, nil, err
	}
	if !seen {
		return aggregate, nil, fmt.Errorf("no aggregate cpu line in /proc/stat")
	}
	return aggregate, perCore, nil
}

func parseCPUTimeFields(fields []string) (metrics.CPUTimeStats, error) {
	vals := make([]float64, 8)
	for i := 0; i < len(vals) && i < len(fields); i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return metrics.CPUTimeStats{}, err
		}
		vals[i] = v
	}
	return metrics.CPUTimeStats{
		User: vals[0], Nice: vals[1], System: vals[2], Idle: vals[3],
		IOWait: vals[4], Irq: vals[5], SoftIrq: vals[6], Steal: vals[7],
	}, nil
}

// cpuIdentity extracts the model name, logical core count and current
// frequency from /proc/cpuinfo.
func (fs procFS) cpuIdentity() (model string, cores int, freqMHz *float64, err error) {
	f, err := fs.open("proc/cpuinfo")
	if err != nil {
		return "", 0, nil, err
	}
	defer f.Close()
	model, cores, freqMHz = parseCPUInfo(f)
	return model, cores, freqMHz, nil
}

func parseCPUInfo(r io.Reader) (model string, cores int, freqMHz *float64) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "processor":
			cores++
		case "model name":
			if model == "" {
				model = value
			}
		case "cpu MHz":
			if freqMHz == nil {
				if v, err := strconv.ParseFloat(value, 64); err == nil {
					freqMHz = metrics.Float(v)
				}
			}
		}
	}
	return model, cores, freqMHz
}

// meminfo parses /proc/meminfo into byte quantities. Values are reported by
// the kernel in kB regardless of the field.
func (fs procFS) meminfo() (map[string]uint64, error) {
	f, err := fs.open("proc/meminfo")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseMeminfo(f)
}

func parseMeminfo(r io.Reader) (map[string]uint64, error) {
	values := make(map[string]uint64)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, rest, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		kb, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		values[strings.TrimSpace(key)] = kb * 1024
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if _, ok := values["MemTotal"]; !ok {
		return nil, fmt.Errorf("missing MemTotal in /proc/meminfo")
	}
	return values, nil
}

// distribution resolves the OS distribution description, preferring
// /etc/os-release and falling back to /etc/lsb-release.
func (fs procFS) distribution() string {
	if f, err := fs.open("etc/os-release"); err == nil {
		defer f.Close()
		if name := parseOSRelease(f); name != "" {
			return name
		}
	}
	if f, err := fs.open("etc/lsb-release"); err == nil {
		defer f.Close()
		if name := parseLSBRelease(f); name != "" {
			return name
		}
	}
	return ""
}

func parseOSRelease(r io.Reader) string {
	var name, version string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), "=")
		if !found {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		switch key {
		case "PRETTY_NAME":
			return value
		case "NAME":
			name = value
		case "VERSION":
			version = value
		}
	}
	if name != "" && version != "" {
		return name + " " + version
	}
	return name
}

func parseLSBRelease(r io.Reader) string {
	var id, release string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), "=")
		if !found {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		switch key {
		case "DISTRIB_DESCRIPTION":
			return value
		case "DISTRIB_ID":
			id = value
		case "DISTRIB_RELEASE":
			release = value
		}
	}
	if id != "" && release != "" {
		return id + " " + release
	}
	return id
}

// kernelVersion reads /proc/sys/kernel/osrelease.
func (fs procFS) kernelVersion() (string, error) {
	data, err := os.ReadFile(fs.path("proc/sys/kernel/osrelease"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// uptimeSeconds reads the first field of /proc/uptime.
func (fs procFS) uptimeSeconds() (float64, error) {
	data, err := os.ReadFile(fs.path("proc/uptime"))
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty /proc/uptime")
	}
	return strconv.ParseFloat(fields[0], 64)
}

// thermalZoneTemp scans sysfs thermal zones for a plausible CPU temperature.
// Values outside 20-150°C are rejected; dead sensors report 0 or extremes.
func (fs procFS) thermalZoneTemp() *float64 {
	zones, err := filepath.Glob(fs.path("sys/class/thermal/thermal_zone*/temp"))
	if err != nil {
		return nil
	}
	sort.Strings(zones)
	for _, zone := range zones {
		data, err := os.ReadFile(zone)
		if err != nil {
			continue
		}
		milli, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
		if err != nil {
			continue
		}
		celsius := milli / 1000.0
		if celsius >= 20.0 && celsius <= 150.0 {
			return metrics.Float(celsius)
		}
	}
	return nil
}
