// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"math"
	"slices"
	"time"

	"github.com/cloudwego/abdoc/internal/errkind"
)

// RetryStrategy selects how the delay between attempts grows.
type RetryStrategy string

const (
	RetryNone               RetryStrategy = "none"
	RetryFixedInterval      RetryStrategy = "fixed"
	RetryExponentialBackoff RetryStrategy = "exponential"
	RetrySmart              RetryStrategy = "smart"
)

// smartFastDelay is used for the first two attempts of RetrySmart.
const smartFastDelay = time.Second

// ComputeDelay returns how long to wait after the given failed attempt
// (1-based) before the next one.
func ComputeDelay(strategy RetryStrategy, attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch strategy {
	case RetryFixedInterval:
		return base
	case RetryExponentialBackoff:
		return scale(base, math.Pow(2, float64(attempt-1)))
	case RetrySmart:
		if attempt <= 2 {
			return smartFastDelay
		}
		return scale(base, math.Pow(1.5, float64(attempt-2)))
	default:
		return 0
	}
}

func scale(d time.Duration, factor float64) time.Duration {
	v := float64(d) * factor
	if v >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(v)
}

// ListMode says how a step's kind lists combine with the policy defaults.
type ListMode string

const (
	// ListExtend adds the step's kinds to the defaults.
	ListExtend ListMode = "extend"
	// ListReplace uses only the step's kinds.
	ListReplace ListMode = "replace"
)

// RetryPolicy holds the process-wide retry defaults.
type RetryPolicy struct {
	RetryOn      []errkind.Kind
	NeverRetryOn []errkind.Kind
}

// DefaultRetryPolicy retries transient failures and timeouts, never permanent ones.
var DefaultRetryPolicy = RetryPolicy{
	RetryOn:      []errkind.Kind{errkind.Transient},
	NeverRetryOn: []errkind.Kind{errkind.Permanent},
}

func (p RetryPolicy) effective(cfg StepConfig) (allow, deny []errkind.Kind) {
	if cfg.ListMode == ListReplace {
		return cfg.RetryOn, cfg.NeverRetryOn
	}
	allow = append(slices.Clone(p.RetryOn), cfg.RetryOn...)
	deny = append(slices.Clone(p.NeverRetryOn), cfg.NeverRetryOn...)
	return allow, deny
}

// ShouldRetry decides whether err may be retried under cfg. The deny list is
// consulted first, then the allow list, then the fallback which treats
// transient and cancellation failures as retryable.
func (p RetryPolicy) ShouldRetry(err error, cfg StepConfig) bool {
	if err == nil {
		return false
	}
	kind := errkind.Of(err)
	allow, deny := p.effective(cfg)
	if slices.Contains(deny, kind) {
		return false
	}
	if slices.Contains(allow, kind) {
		return true
	}
	return kind == errkind.Transient || kind == errkind.Cancelled
}

// ShouldRetry applies DefaultRetryPolicy.
func ShouldRetry(err error, cfg StepConfig) bool {
	return DefaultRetryPolicy.ShouldRetry(err, cfg)
}
