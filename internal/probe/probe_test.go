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

package probe

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const backendFake Backend = "fake"

func TestAvailableCachesForProcessLifetime(t *testing.T) {
	calls := 0
	p := New(0, time.Second, testLogger())
	p.probes[backendFake] = func(_ context.Context) (bool, string) {
		calls++
		return true, ""
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if !p.Available(ctx, backendFake) {
			t.Fatal("Available() = false, want true")
		}
	}
	if calls != 1 {
		t.Errorf("probe ran %d times, want 1 (ttl=0 caches forever)", calls)
	}
}

func TestAvailableRevalidatesAfterTTL(t *testing.T) {
	calls := 0
	p := New(10*time.Millisecond, time.Second, testLogger())
	p.probes[backendFake] = func(_ context.Context) (bool, string) {
		calls++
		return calls == 1, "flaky"
	}

	ctx := context.Background()
	if !p.Available(ctx, backendFake) {
		t.Fatal("first probe should report available")
	}

	time.Sleep(20 * time.Millisecond)
	if p.Available(ctx, backendFake) {
		t.Fatal("revalidated probe should report unavailable")
	}
	if calls != 2 {
		t.Errorf("probe ran %d times, want 2", calls)
	}
}

func TestUnavailableRecordsReason(t *testing.T) {
	p := New(0, time.Second, testLogger())
	p.probes[backendFake] = func(_ context.Context) (bool, string) {
		return false, "tool not found"
	}

	if p.Available(context.Background(), backendFake) {
		t.Fatal("Available() = true, want false")
	}
	if got := p.Reason(backendFake); got != "tool not found" {
		t.Errorf("Reason() = %q, want %q", got, "tool not found")
	}
}

func TestUnknownBackend(t *testing.T) {
	p := New(0, time.Second, testLogger())
	if p.Available(context.Background(), Backend("mystery")) {
		t.Fatal("unknown backend must be unavailable")
	}
	if got := p.Reason(Backend("mystery")); got != "unknown backend" {
		t.Errorf("Reason() = %q", got)
	}
}

// A backend that panics while probing is unavailable, not fatal.
func TestProbePanicIsContained(t *testing.T) {
	p := New(0, time.Second, testLogger())
	p.probes[backendFake] = func(_ context.Context) (bool, string) {
		panic("driver exploded")
	}

	if p.Available(context.Background(), backendFake) {
		t.Fatal("panicking probe must report unavailable")
	}
	if got := p.Reason(backendFake); got != "probe panicked" {
		t.Errorf("Reason() = %q", got)
	}
}

// One backend stuck in a slow subprocess must not serialize checks of the
// other backends.
func TestSlowBackendDoesNotBlockOthers(t *testing.T) {
	const backendSlow Backend = "slow"

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	p := New(0, time.Second, testLogger())
	p.probes[backendSlow] = func(_ context.Context) (bool, string) {
		close(started)
		<-release
		return false, "still waiting"
	}
	p.probes[backendFake] = func(_ context.Context) (bool, string) {
		return true, ""
	}

	go p.Available(context.Background(), backendSlow)
	<-started

	done := make(chan bool, 1)
	go func() {
		done <- p.Available(context.Background(), backendFake)
	}()
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("Available() = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("check of an independent backend blocked behind the slow one")
	}
}

// Concurrent first-use checks of the same backend share one probe run.
func TestConcurrentChecksShareOneRun(t *testing.T) {
	var calls atomic.Int32
	gate := make(chan struct{})

	p := New(0, time.Second, testLogger())
	p.probes[backendFake] = func(_ context.Context) (bool, string) {
		calls.Add(1)
		<-gate
		return true, ""
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]bool, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = p.Available(context.Background(), backendFake)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Fatalf("caller %d got Available() = false, want true", i)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("probe ran %d times, want 1", got)
	}
}

func TestProcFSProbe(t *testing.T) {
	p := New(0, time.Second, testLogger())
	// Linux-only assertion; /proc/stat existence is what the backend needs.
	if !p.Available(context.Background(), BackendProcFS) {
		t.Skipf("procfs not available: %s", p.Reason(BackendProcFS))
	}
}
