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

// Package collector implements the multi-strategy metrics collection
// pipeline. For each category (CPU, memory, GPU, platform) an ordered
// strategy chain is tried until one succeeds or all fail; a category
// failure yields null fields plus a Warning and is never fatal to the
// snapshot.
package collector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zhamm/gpustatd/internal/config"
	"github.com/zhamm/gpustatd/internal/probe"
	"github.com/zhamm/gpustatd/pkg/metrics"
)

// Manager orchestrates all category collectors and assembles their results
// into snapshots.
type Manager struct {
	cfg      *config.Config
	prober   *probe.Prober
	cpu      *CPUCollector
	memory   *MemoryCollector
	platform *PlatformCollector
	gpu      *GPUCollector
	logger   *slog.Logger
}

// NewManager creates a collector manager with all category chains wired to
// a shared capability prober.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	prober := probe.New(cfg.ProbeTTL, cfg.ExecTimeout, logger)
	fs := newProcFS("")

	return &Manager{
		cfg:      cfg,
		prober:   prober,
		cpu:      NewCPUCollector(prober, fs, cfg.CPUSampleWindow, cfg.ExecTimeout, logger),
		memory:   NewMemoryCollector(prober, fs, cfg.ExecTimeout, logger),
		platform: NewPlatformCollector(prober, fs, cfg.ExecTimeout, logger),
		gpu:      NewGPUCollector(prober, fs, cfg.ExecTimeout, logger),
		logger:   logger,
	}
}

// Collect performs one full collection cycle. Categories run concurrently
// to keep cycle latency close to the slowest single chain; every chain
// restarts from its initial state regardless of previous cycles.
func (m *Manager) Collect(ctx context.Context) *metrics.Snapshot {
	var (
		in assembleInput
		wg sync.WaitGroup
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		in.cpu = m.cpu.Collect(ctx)
	}()
	go func() {
		defer wg.Done()
		in.memory = m.memory.Collect(ctx)
	}()
	go func() {
		defer wg.Done()
		in.platform = m.platform.Collect(ctx)
	}()
	go func() {
		defer wg.Done()
		in.gpu = m.gpu.Collect(ctx)
	}()
	wg.Wait()

	snap := assemble(in)
	m.logger.Debug("Collection cycle completed",
		"id", snap.ID,
		"health", snap.Health,
		"warnings", len(snap.Warnings),
		"gpus", len(snap.GPUs),
	)
	return snap
}
