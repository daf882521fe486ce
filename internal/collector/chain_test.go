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
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhamm/gpustatd/pkg/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okStrategy(name string, source metrics.Source, value int) strategy[int] {
	return strategy[int]{
		name:   name,
		source: source,
		run: func(_ context.Context) (int, []metrics.Warning, error) {
			return value, nil, nil
		},
	}
}

func failStrategy(name string) strategy[int] {
	return strategy[int]{
		name:   name,
		source: metrics.SourceGopsutil,
		run: func(_ context.Context) (int, []metrics.Warning, error) {
			return 0, nil, fmt.Errorf("boom")
		},
	}
}

func TestRunChainPrimarySucceeds(t *testing.T) {
	res := runChain(context.Background(), metrics.CategoryCPU,
		[]strategy[int]{
			okStrategy("primary", metrics.SourceGopsutil, 1),
			okStrategy("fallback", metrics.SourceProcFS, 2),
		},
		nil, time.Second, testLogger())

	assert.Equal(t, stateAvailable, res.state)
	assert.Equal(t, 1, res.value)
	assert.Equal(t, metrics.SourceGopsutil, res.source)
	assert.False(t, res.fellBack)
	assert.Empty(t, res.warnings)
}

func TestRunChainFallsBackInOrder(t *testing.T) {
	var order []string
	mk := func(name string, fail bool) strategy[int] {
		return strategy[int]{
			name:   name,
			source: metrics.SourceProcFS,
			run: func(_ context.Context) (int, []metrics.Warning, error) {
				order = append(order, name)
				if fail {
					return 0, nil, fmt.Errorf("boom")
				}
				return 42, nil, nil
			},
		}
	}

	res := runChain(context.Background(), metrics.CategoryMemory,
		[]strategy[int]{mk("first", true), mk("second", true), mk("third", false)},
		nil, time.Second, testLogger())

	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.Equal(t, stateAvailable, res.state)
	assert.Equal(t, 42, res.value)
	assert.True(t, res.fellBack)

	// Each failed attempt left a warn-severity trail entry.
	require.Len(t, res.warnings, 2)
	for _, w := range res.warnings {
		assert.Equal(t, metrics.SeverityWarn, w.Severity)
		assert.Equal(t, metrics.CategoryMemory, w.Category)
	}
}

func TestRunChainExhausted(t *testing.T) {
	res := runChain(context.Background(), metrics.CategoryCPU,
		[]strategy[int]{failStrategy("a"), failStrategy("b")},
		nil, time.Second, testLogger())

	assert.Equal(t, stateUnavailable, res.state)
	assert.Equal(t, metrics.SourceUnavailable, res.source)

	require.Len(t, res.warnings, 3)
	last := res.warnings[len(res.warnings)-1]
	assert.Equal(t, metrics.SeverityError, last.Severity)
	assert.Contains(t, last.Message, "no usable backend for cpu metrics")
}

func TestRunChainStrategyTimeout(t *testing.T) {
	timeout := 50 * time.Millisecond
	hung := strategy[int]{
		name:   "hung strategy",
		source: metrics.SourceGopsutil,
		run: func(ctx context.Context) (int, []metrics.Warning, error) {
			<-ctx.Done()
			return 0, nil, ctx.Err()
		},
	}

	start := time.Now()
	res := runChain(context.Background(), metrics.CategoryCPU,
		[]strategy[int]{hung, okStrategy("fallback", metrics.SourceProcFS, 7)},
		nil, timeout, testLogger())
	elapsed := time.Since(start)

	assert.Equal(t, stateAvailable, res.state)
	assert.Equal(t, 7, res.value)
	assert.True(t, res.fellBack)
	assert.Less(t, elapsed, time.Second, "hung strategy must be abandoned at the timeout")

	require.NotEmpty(t, res.warnings)
	assert.Contains(t, res.warnings[0].Message, "timed out")
}

func TestRunChainKeepsSuccessWarnings(t *testing.T) {
	noisy := strategy[int]{
		name:   "noisy",
		source: metrics.SourceGopsutil,
		run: func(_ context.Context) (int, []metrics.Warning, error) {
			return 9, []metrics.Warning{{
				Category: metrics.CategoryCPU,
				Message:  "sensor missing",
				Severity: metrics.SeverityInfo,
			}}, nil
		},
	}

	res := runChain(context.Background(), metrics.CategoryCPU,
		[]strategy[int]{noisy}, nil, time.Second, testLogger())

	assert.Equal(t, stateAvailable, res.state)
	require.Len(t, res.warnings, 1)
	assert.Equal(t, "sensor missing", res.warnings[0].Message)
}
