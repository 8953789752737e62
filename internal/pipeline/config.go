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
	"time"

	"github.com/cloudwego/abdoc/internal/errkind"
)

// ExecutionStrategy governs whether a step's failure halts the run.
type ExecutionStrategy string

const (
	Required    ExecutionStrategy = "required"
	BestEffort  ExecutionStrategy = "best_effort"
	Optional    ExecutionStrategy = "optional"
	Conditional ExecutionStrategy = "conditional"
)

// FailurePolicy is what the engine does once a step attempt fails.
type FailurePolicy string

const (
	PolicyAbort             FailurePolicy = "abort"
	PolicyContinue          FailurePolicy = "continue"
	PolicyRetryThenAbort    FailurePolicy = "retry_then_abort"
	PolicyRetryThenContinue FailurePolicy = "retry_then_continue"
)

func (p FailurePolicy) retries() bool {
	return p == PolicyRetryThenAbort || p == PolicyRetryThenContinue
}

func (p FailurePolicy) aborts() bool {
	return p == PolicyAbort || p == PolicyRetryThenAbort
}

const (
	DefaultMaxRetryAttempts = 3
	DefaultRetryDelay       = 2 * time.Second
	DefaultStepTimeout      = 10 * time.Minute
)

// StepConfig is declared by each step.
type StepConfig struct {
	Strategy         ExecutionStrategy
	RetryStrategy    RetryStrategy
	MaxRetryAttempts int
	RetryDelay       time.Duration
	Timeout          time.Duration
	// ContinueOnFailure lets a Required step's failure continue the run. The
	// failure still clears Summary.OverallSuccess.
	ContinueOnFailure bool

	RetryOn      []errkind.Kind
	NeverRetryOn []errkind.Kind
	ListMode     ListMode

	// Condition is a govaluate expression over Context.Params, evaluated for
	// Conditional steps. False skips the step.
	Condition string

	// OnFailure overrides the policy derived from the fields above.
	OnFailure FailurePolicy
}

// DefaultStepConfig is a Required step with smart retries.
func DefaultStepConfig() StepConfig {
	return StepConfig{
		Strategy:         Required,
		RetryStrategy:    RetrySmart,
		MaxRetryAttempts: DefaultMaxRetryAttempts,
		RetryDelay:       DefaultRetryDelay,
		Timeout:          DefaultStepTimeout,
	}
}

// Policy resolves the failure policy of the step.
func (c StepConfig) Policy() FailurePolicy {
	if c.OnFailure != "" {
		return c.OnFailure
	}
	retry := c.RetryStrategy != RetryNone && c.RetryStrategy != "" && c.MaxRetryAttempts > 0
	abort := c.Strategy == Required && !c.ContinueOnFailure
	switch {
	case retry && abort:
		return PolicyRetryThenAbort
	case retry:
		return PolicyRetryThenContinue
	case abort:
		return PolicyAbort
	default:
		return PolicyContinue
	}
}

func (c StepConfig) withDefaults() StepConfig {
	if c.Strategy == "" {
		c.Strategy = Required
	}
	if c.RetryStrategy == "" {
		c.RetryStrategy = RetryNone
	}
	if c.MaxRetryAttempts < 0 {
		c.MaxRetryAttempts = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultStepTimeout
	}
	return c
}
