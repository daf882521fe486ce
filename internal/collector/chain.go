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
	"time"

	"github.com/zhamm/gpustatd/internal/probe"
	"github.com/zhamm/gpustatd/pkg/metrics"
)

// categoryState tracks one category's progress through a collection cycle.
// The state machine restarts from stateNotProbed on every fresh collection,
// independent of the capability probe's own cache.
type categoryState int

const (
	stateNotProbed categoryState = iota
	stateProbing
	stateAvailable
	stateUnavailable
)

// strategy is one method of obtaining a category's metrics. Strategies are
// tried in declaration order; backend gates the attempt via the capability
// probe (empty backend means always attempt).
type strategy[T any] struct {
	name    string
	source  metrics.Source
	backend probe.Backend
	run     func(ctx context.Context) (T, []metrics.Warning, error)
}

// chainResult is the outcome of running a category's strategy chain.
type chainResult[T any] struct {
	value    T
	source   metrics.Source
	state    categoryState
	fellBack bool
	warnings []metrics.Warning
}

// runChain tries each strategy in order until one succeeds. A strategy fails
// when its backend probes unavailable, it returns an error, or it exceeds
// timeout. An exhausted chain yields stateUnavailable with an error-severity
// Warning; the failure never propagates out of the chain.
func runChain[T any](
	ctx context.Context,
	category metrics.Category,
	strategies []strategy[T],
	prober *probe.Prober,
	timeout time.Duration,
	logger *slog.Logger,
) chainResult[T] {
	res := chainResult[T]{state: stateNotProbed, source: metrics.SourceUnavailable}

	for i, s := range strategies {
		res.state = stateProbing

		if s.backend != "" && prober != nil && !prober.Available(ctx, s.backend) {
			res.warnings = append(res.warnings, metrics.Warning{
				Category: category,
				Message:  fmt.Sprintf("%s backend unavailable: %s", s.name, reasonOr(prober, s.backend)),
				Severity: metrics.SeverityInfo,
			})
			continue
		}

		runCtx, cancel := context.WithTimeout(ctx, timeout)
		value, warns, err := s.run(runCtx)
		cancel()
		res.warnings = append(res.warnings, warns...)

		if err != nil {
			sev := metrics.SeverityWarn
			msg := fmt.Sprintf("%s failed: %v", s.name, err)
			if runCtx.Err() == context.DeadlineExceeded {
				msg = fmt.Sprintf("%s timed out after %v", s.name, timeout)
			}
			res.warnings = append(res.warnings, metrics.Warning{
				Category: category,
				Message:  msg,
				Severity: sev,
			})
			logger.Debug("Strategy failed", "category", category, "strategy", s.name, "error", err)
			continue
		}

		res.value = value
		res.source = s.source
		res.state = stateAvailable
		res.fellBack = i > 0
		return res
	}

	res.state = stateUnavailable
	res.warnings = append(res.warnings, metrics.Warning{
		Category: category,
		Message:  fmt.Sprintf("no usable backend for %s metrics", category),
		Severity: metrics.SeverityError,
	})
	return res
}

func reasonOr(p *probe.Prober, b probe.Backend) string {
	if r := p.Reason(b); r != "" {
		return r
	}
	return "not detected"
}
