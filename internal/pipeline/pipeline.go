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
	"time"

	"github.com/Knetic/govaluate"
	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/abdoc/internal/log"
)

// Pipeline runs an ordered list of steps against one context.
type Pipeline interface {
	Run(ctx context.Context, pctx *Context) (*RunResult, error)
}

// Engine runs steps strictly in registration order; what happens after a
// failed attempt is decided by the Agent.
type Engine struct {
	Name  string
	Steps []Step
	Agent Agent
}

var _ Pipeline = (*Engine)(nil)

// NewStrict returns an engine that runs every step once and aborts on the
// first failure.
func NewStrict(steps ...Step) *Engine {
	return &Engine{
		Name:  "strict",
		Steps: steps,
		Agent: &DefaultAgent{Retry: DefaultRetryPolicy, Strict: true},
	}
}

// NewResilient returns an engine that retries per step configuration and
// continues past failures of steps that are not Required.
func NewResilient(steps ...Step) *Engine {
	return &Engine{
		Name:  "resilient",
		Steps: steps,
		Agent: &DefaultAgent{Retry: DefaultRetryPolicy},
	}
}

// Run executes all steps. Failures are reported through the RunResult; the
// returned error is non-nil only when ctx was cancelled by the caller, in
// which case the partial result is returned alongside it.
func (e *Engine) Run(ctx context.Context, pctx *Context) (*RunResult, error) {
	if pctx == nil {
		return nil, fmt.Errorf("pipeline %s: context is nil", e.Name)
	}
	if e.Agent == nil {
		e.Agent = &DefaultAgent{Retry: DefaultRetryPolicy}
	}
	tracker := NewTracker()
	ret := &RunResult{Context: pctx}
	current := pctx
	for i, step := range e.Steps {
		if step == nil {
			return nil, fmt.Errorf("pipeline %s: step %d is nil", e.Name, i)
		}
		if err := ctx.Err(); err != nil {
			ret.Summary = tracker.Summary()
			return ret, err
		}
		next, res, abort, cancelErr := e.runStep(ctx, step, current, tracker)
		current = next
		ret.Context = current
		if cancelErr != nil {
			ret.Summary = tracker.Summary()
			return ret, cancelErr
		}
		if abort {
			ret.FailedStep = step.Name()
			ret.Err = res.Err
			log.Error("[pipeline] %s aborted at step %s: %v", e.Name, step.Name(), res.Err)
			break
		}
	}
	ret.Summary = tracker.Summary()
	return ret, nil
}

func (e *Engine) runStep(ctx context.Context, step Step, pctx *Context, tracker *Tracker) (*Context, *StepResult, bool, error) {
	cfg := step.Config().withDefaults()
	name := step.Name()

	if cfg.Strategy == Conditional && cfg.Condition != "" {
		ok, err := evalCondition(cfg.Condition, pctx.Params())
		if err != nil {
			log.Warn("[pipeline] step %s: condition %q: %v, running anyway", name, cfg.Condition, err)
		} else if !ok {
			log.Info("[pipeline] step %s skipped: condition %q not met", name, cfg.Condition)
			return pctx, tracker.Skip(name, cfg.Strategy, "condition not met"), false, nil
		}
	}
	if !canExecute(step, pctx) {
		log.Info("[pipeline] step %s skipped: pre-condition not met", name)
		return pctx, tracker.Skip(name, cfg.Strategy, "pre-condition not met"), false, nil
	}

	res := tracker.Begin(name, cfg.Strategy)
	current := pctx
	for attempt := 1; ; attempt++ {
		next, err := attemptStep(ctx, step, current, cfg.Timeout)
		tracker.Attempt(res, attempt, err)
		if err == nil {
			if next != nil {
				current = next
			}
			if attempt > 1 {
				res.warn(fmt.Sprintf("recovered from attempt %d", attempt-1))
			}
			if hc, ok := step.(HealthChecker); ok {
				if herr := healthCheck(ctx, hc, current); herr != nil {
					res.warn("health check failed: " + herr.Error())
				}
			}
			res.settle(StepOK, nil)
			log.Debug("[pipeline] step %s done in %s (%d attempts)", name, res.Elapsed, attempt)
			return current, res, false, nil
		}

		if cerr := ctx.Err(); cerr != nil {
			res.settle(StepCancelled, cerr)
			return current, res, true, cerr
		}

		decision := e.Agent.OnStepFailure(ctx, step, current, err, attempt)
		if decision != DecisionRetry {
			res.settle(StepFailed, err)
			log.Warn("[pipeline] step %s failed after %d attempts (%s, %s): %v", name, attempt, cfg.Strategy, decision, err)
			return current, res, decision == DecisionAbort, nil
		}

		log.Info("[pipeline] step %s attempt %d/%d failed (%s): %v", name, attempt, cfg.MaxRetryAttempts+1, errkind.Of(err), err)
		recovered, herr := handleError(ctx, step, current, err, attempt)
		if herr != nil {
			res.warn(fmt.Sprintf("error handler failed after attempt %d: %v", attempt, herr))
		} else if recovered != nil {
			current = recovered
		}

		if werr := sleepCtx(ctx, ComputeDelay(cfg.RetryStrategy, attempt, cfg.RetryDelay)); werr != nil {
			res.settle(StepCancelled, werr)
			return current, res, true, werr
		}
	}
}

// attemptStep runs one attempt under its own deadline. A deadline hit while
// the caller's context is still live is reported as a transient timeout.
func attemptStep(ctx context.Context, step Step, pctx *Context, timeout time.Duration) (next *Context, err error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			next, err = nil, fmt.Errorf("step %s panicked: %v", step.Name(), r)
		}
	}()
	next, err = step.Execute(actx, pctx)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		err = errkind.AsTransient(fmt.Errorf("step %s timed out after %s: %w", step.Name(), timeout, err))
	}
	return next, err
}

func canExecute(step Step, pctx *Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("[pipeline] step %s: pre-condition panicked: %v, running anyway", step.Name(), r)
			ok = true
		}
	}()
	ok, err := step.CanExecute(pctx)
	if err != nil {
		log.Warn("[pipeline] step %s: pre-condition: %v, running anyway", step.Name(), err)
		return true
	}
	return ok
}

func handleError(ctx context.Context, step Step, pctx *Context, cause error, attempt int) (next *Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return step.HandleError(ctx, pctx, cause, attempt)
}

func healthCheck(ctx context.Context, hc HealthChecker, pctx *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return hc.HealthCheck(ctx, pctx)
}

func evalCondition(condition string, params map[string]interface{}) (bool, error) {
	expr, err := govaluate.NewEvaluableExpression(condition)
	if err != nil {
		return false, err
	}
	v, err := expr.Evaluate(params)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("condition yields %T, want bool", v)
	}
	return b, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
