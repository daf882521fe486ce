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

// CalculateCPUUtilization calculates CPU utilization percentage from two
// cumulative CPU time readings.
// Formula: 100 * (1 - ΔIdle / ΔTotal)
func CalculateCPUUtilization(prev, current *CPUTimeStats) float64 {
	if prev.Timestamp.IsZero() {
		return 0.0
	}

	deltaTotal := current.total() - prev.total()
	deltaIdle := (current.Idle + current.IOWait) - (prev.Idle + prev.IOWait)

	if deltaTotal <= 0 {
		return 0.0
	}

	return ClampPercent(100.0 * (1.0 - deltaIdle/deltaTotal))
}

func (s *CPUTimeStats) total() float64 {
	return s.User + s.Nice + s.System + s.Idle + s.IOWait + s.Irq + s.SoftIrq + s.Steal
}

// Percent computes used/total as a percentage. Returns 0 when total is zero
// so a missing denominator never produces NaN or Inf.
func Percent(used, total uint64) float64 {
	if total == 0 {
		return 0.0
	}
	return ClampPercent(float64(used) / float64(total) * 100.0)
}

// ClampPercent bounds a percentage to [0, 100]. Deltas computed from
// cumulative counters can slightly overshoot due to rounding.
func ClampPercent(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 100.0 {
		return 100.0
	}
	return v
}
