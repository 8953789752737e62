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
)

// Agent decides what to do on step failure: retry, continue, or abort.
// The Agent only schedules; it never touches the context.
type Agent interface {
	OnStepFailure(
		ctx context.Context,
		step Step,
		pctx *Context,
		err error,
		attempt int,
	) AgentDecision
}

// AgentDecision is the action to take after a failed attempt.
type AgentDecision string

const (
	DecisionRetry    AgentDecision = "retry"
	DecisionContinue AgentDecision = "continue"
	DecisionAbort    AgentDecision = "abort"
)

// DefaultAgent applies the step's failure policy. In strict mode every failure
// aborts the run without a retry.
type DefaultAgent struct {
	Retry  RetryPolicy
	Strict bool
}

// OnStepFailure implements Agent.
func (a *DefaultAgent) OnStepFailure(
	ctx context.Context,
	step Step,
	pctx *Context,
	err error,
	attempt int,
) AgentDecision {
	if a.Strict {
		return DecisionAbort
	}
	cfg := step.Config().withDefaults()
	policy := cfg.Policy()
	if policy.retries() && attempt <= cfg.MaxRetryAttempts && a.Retry.ShouldRetry(err, cfg) {
		return DecisionRetry
	}
	if policy.aborts() {
		return DecisionAbort
	}
	return DecisionContinue
}
