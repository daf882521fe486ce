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
	"time"

	"github.com/google/uuid"

	"github.com/zhamm/gpustatd/pkg/metrics"
)

// assembleInput carries the per-category chain outcomes into the assembler.
type assembleInput struct {
	cpu      chainResult[*metrics.CPUInfo]
	memory   chainResult[*metrics.MemoryInfo]
	platform chainResult[*metrics.PlatformInfo]
	gpu      gpuResult
}

// assemble merges category results into one immutable snapshot: it stamps
// identity, hostname and timestamp, concatenates warnings in category
// priority order (cpu, memory, gpu, platform) and derives overall health.
func assemble(in assembleInput) *metrics.Snapshot {
	snap := &metrics.Snapshot{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Hostname:  hostname(),
		GPUs:      in.gpu.gpus,
		GPUSource: in.gpu.source,
		Warnings:  make([]metrics.Warning, 0),
	}
	if snap.GPUs == nil {
		snap.GPUs = []metrics.GPUInfo{}
	}

	if in.cpu.state == stateAvailable {
		snap.CPU = in.cpu.value
	}
	if in.memory.state == stateAvailable {
		snap.Memory = in.memory.value
	}
	if in.platform.state == stateAvailable {
		snap.Platform = in.platform.value
	}

	snap.Warnings = append(snap.Warnings, in.cpu.warnings...)
	snap.Warnings = append(snap.Warnings, in.memory.warnings...)
	snap.Warnings = append(snap.Warnings, in.gpu.warnings...)
	snap.Warnings = append(snap.Warnings, in.platform.warnings...)

	snap.Health = worstHealth(
		coreHealth(in.cpu.state, in.cpu.fellBack),
		coreHealth(in.memory.state, in.memory.fellBack),
		coreHealth(in.platform.state, in.platform.fellBack),
		gpuHealth(in.gpu),
	)
	return snap
}

// coreHealth grades a cpu/memory/platform outcome: primary strategy means
// full, any fallback means degraded, no data at all means minimal.
func coreHealth(state categoryState, fellBack bool) metrics.Health {
	switch {
	case state != stateAvailable:
		return metrics.HealthMinimal
	case fellBack:
		return metrics.HealthDegraded
	default:
		return metrics.HealthFull
	}
}

// gpuHealth grades the GPU outcome. Absent hardware never degrades health;
// hardware without metrics degrades it (presence data still exists, so the
// snapshot is not minimal on that account alone).
func gpuHealth(g gpuResult) metrics.Health {
	switch {
	case !g.hardware:
		return metrics.HealthFull
	case g.state != stateAvailable:
		return metrics.HealthDegraded
	case g.fellBack:
		return metrics.HealthDegraded
	default:
		return metrics.HealthFull
	}
}

var healthRank = map[metrics.Health]int{
	metrics.HealthFull:     0,
	metrics.HealthDegraded: 1,
	metrics.HealthMinimal:  2,
}

func worstHealth(healths ...metrics.Health) metrics.Health {
	worst := metrics.HealthFull
	for _, h := range healths {
		if healthRank[h] > healthRank[worst] {
			worst = h
		}
	}
	return worst
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
