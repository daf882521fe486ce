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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhamm/gpustatd/internal/config"
)

// Full cycle against the real host. Environment-dependent values are only
// range-checked; the structural invariants are what matter here.
func TestManagerCollect(t *testing.T) {
	cfg := &config.Config{
		Host:            config.DefaultHost,
		Port:            config.DefaultPort,
		CacheTTL:        config.DefaultCacheTTL,
		ExecTimeout:     config.DefaultExecTimeout,
		CPUSampleWindow: 150 * time.Millisecond,
		LogLevel:        "error",
	}

	m := NewManager(cfg, testLogger())
	snap := m.Collect(context.Background())

	require.NotNil(t, snap)
	assert.NotEmpty(t, snap.ID)
	assert.NotEmpty(t, snap.Hostname)
	assert.False(t, snap.Timestamp.IsZero())
	require.NotNil(t, snap.GPUs)
	require.NotNil(t, snap.Warnings)
	assert.Contains(t, []string{"full", "degraded", "minimal"}, string(snap.Health))

	if snap.CPU != nil {
		assert.Greater(t, snap.CPU.Cores, 0)
		if snap.CPU.UsagePercent != nil {
			assert.GreaterOrEqual(t, *snap.CPU.UsagePercent, 0.0)
			assert.LessOrEqual(t, *snap.CPU.UsagePercent, 100.0)
		}
	}
	if snap.Memory != nil && snap.Memory.TotalBytes != nil {
		assert.Greater(t, *snap.Memory.TotalBytes, uint64(0))
	}
}

// Collection must be bounded even when the caller's context is already
// cancelled; chains fail fast instead of hanging.
func TestManagerCollectCancelledContext(t *testing.T) {
	cfg := &config.Config{
		Host:            config.DefaultHost,
		Port:            config.DefaultPort,
		CacheTTL:        config.DefaultCacheTTL,
		ExecTimeout:     config.DefaultExecTimeout,
		CPUSampleWindow: 150 * time.Millisecond,
		LogLevel:        "error",
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewManager(cfg, testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		snap := m.Collect(ctx)
		assert.NotNil(t, snap, "a snapshot is produced even when everything fails")
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Collect did not return after context cancellation")
	}
}
