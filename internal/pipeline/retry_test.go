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
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/stretchr/testify/assert"
)

func TestComputeDelay(t *testing.T) {
	base := 100 * time.Millisecond

	for attempt := 1; attempt <= 4; attempt++ {
		want := base * time.Duration(1<<(attempt-1))
		assert.Equal(t, want, ComputeDelay(RetryExponentialBackoff, attempt, base), "attempt %d", attempt)
	}

	assert.Zero(t, ComputeDelay(RetryNone, 3, base))
	assert.Equal(t, base, ComputeDelay(RetryFixedInterval, 1, base))
	assert.Equal(t, base, ComputeDelay(RetryFixedInterval, 7, base))

	assert.Equal(t, time.Second, ComputeDelay(RetrySmart, 1, base))
	assert.Equal(t, time.Second, ComputeDelay(RetrySmart, 2, base))
	assert.Equal(t, 150*time.Millisecond, ComputeDelay(RetrySmart, 3, base))
	assert.Equal(t, 225*time.Millisecond, ComputeDelay(RetrySmart, 4, base))
}

func TestShouldRetry_DenyBeatsAllow(t *testing.T) {
	err := errkind.AsTransient(errors.New("rate limited"))
	cfg := StepConfig{
		RetryOn:      []errkind.Kind{errkind.Transient},
		NeverRetryOn: []errkind.Kind{errkind.Transient},
	}
	assert.False(t, ShouldRetry(err, cfg))

	cfg.ListMode = ListReplace
	assert.False(t, ShouldRetry(err, cfg))
}

func TestShouldRetry_AllowList(t *testing.T) {
	err := errors.New("unclassified")
	assert.False(t, ShouldRetry(err, StepConfig{}))
	assert.True(t, ShouldRetry(err, StepConfig{RetryOn: []errkind.Kind{errkind.Unknown}}))
}

func TestShouldRetry_DefaultsAndReplace(t *testing.T) {
	notFound := fmt.Errorf("read README: %w", fs.ErrNotExist)
	assert.False(t, ShouldRetry(notFound, StepConfig{}))
	// Extending cannot lift a default denial.
	assert.False(t, ShouldRetry(notFound, StepConfig{RetryOn: []errkind.Kind{errkind.Permanent}}))
	// Replacing can.
	assert.True(t, ShouldRetry(notFound, StepConfig{
		RetryOn:  []errkind.Kind{errkind.Permanent},
		ListMode: ListReplace,
	}))

	assert.True(t, ShouldRetry(context.DeadlineExceeded, StepConfig{}))
	assert.True(t, ShouldRetry(context.Canceled, StepConfig{}))
	assert.False(t, ShouldRetry(nil, StepConfig{}))

	// With replaced, empty lists the fallback still applies.
	assert.True(t, ShouldRetry(errkind.AsTransient(errors.New("x")), StepConfig{ListMode: ListReplace}))
}

func TestStepConfigPolicy(t *testing.T) {
	tests := []struct {
		cfg  StepConfig
		want FailurePolicy
	}{
		{StepConfig{Strategy: Required, RetryStrategy: RetrySmart, MaxRetryAttempts: 3}, PolicyRetryThenAbort},
		{StepConfig{Strategy: Required}, PolicyAbort},
		{StepConfig{Strategy: Required, RetryStrategy: RetryFixedInterval, MaxRetryAttempts: 0}, PolicyAbort},
		{StepConfig{Strategy: Required, ContinueOnFailure: true}, PolicyContinue},
		{StepConfig{Strategy: Optional, RetryStrategy: RetryExponentialBackoff, MaxRetryAttempts: 2}, PolicyRetryThenContinue},
		{StepConfig{Strategy: BestEffort, RetryStrategy: RetryNone, MaxRetryAttempts: 2}, PolicyContinue},
		{StepConfig{Strategy: Optional, OnFailure: PolicyAbort}, PolicyAbort},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cfg.Policy(), "%+v", tt.cfg)
	}
}

func TestDefaultAgent(t *testing.T) {
	ctx := context.Background()
	transient := errkind.AsTransient(errors.New("503"))
	step := newMockStep("s", StepConfig{Strategy: Required, RetryStrategy: RetryFixedInterval, MaxRetryAttempts: 2})

	t.Run("retry while attempts remain", func(t *testing.T) {
		a := &DefaultAgent{Retry: DefaultRetryPolicy}
		assert.Equal(t, DecisionRetry, a.OnStepFailure(ctx, step, nil, transient, 2))
	})

	t.Run("abort when exhausted", func(t *testing.T) {
		a := &DefaultAgent{Retry: DefaultRetryPolicy}
		assert.Equal(t, DecisionAbort, a.OnStepFailure(ctx, step, nil, transient, 3))
	})

	t.Run("continue for optional", func(t *testing.T) {
		a := &DefaultAgent{Retry: DefaultRetryPolicy}
		opt := newMockStep("o", StepConfig{Strategy: Optional})
		assert.Equal(t, DecisionContinue, a.OnStepFailure(ctx, opt, nil, transient, 1))
	})

	t.Run("strict always aborts", func(t *testing.T) {
		a := &DefaultAgent{Retry: DefaultRetryPolicy, Strict: true}
		assert.Equal(t, DecisionAbort, a.OnStepFailure(ctx, step, nil, transient, 1))
	})
}
