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
)

// StepRecord is an immutable log entry for one step attempt or skip.
type StepRecord struct {
	StepName string
	Attempt  int
	Status   StepStatus
	Error    string
	Time     time.Time
}

// Tracker accumulates step results of one run in execution order. It is
// mutated only from the run's own goroutine.
type Tracker struct {
	start   time.Time
	steps   []string // every recorded step, including skipped ones
	order   []string // attempted steps
	results map[string]*StepResult
	History []StepRecord
}

func NewTracker() *Tracker {
	return &Tracker{
		start:   time.Now(),
		results: make(map[string]*StepResult),
	}
}

// Begin opens the result of a step that is about to be attempted.
func (t *Tracker) Begin(name string, strategy ExecutionStrategy) *StepResult {
	r := &StepResult{StepName: name, Strategy: strategy, Start: time.Now()}
	t.add(r)
	t.order = append(t.order, name)
	return r
}

// Skip records a step that did not run.
func (t *Tracker) Skip(name string, strategy ExecutionStrategy, reason string) *StepResult {
	r := &StepResult{StepName: name, Strategy: strategy, Start: time.Now()}
	r.settle(StepSkipped, nil)
	r.Message = reason
	t.add(r)
	t.History = append(t.History, StepRecord{StepName: name, Status: StepSkipped, Error: reason, Time: r.End})
	return r
}

// Attempt records the outcome of a single attempt.
func (t *Tracker) Attempt(r *StepResult, attempt int, err error) {
	r.Attempts = attempt
	rec := StepRecord{StepName: r.StepName, Attempt: attempt, Status: StepOK, Time: time.Now()}
	if err != nil {
		rec.Status = StepFailed
		rec.Error = err.Error()
	}
	t.History = append(t.History, rec)
}

func (t *Tracker) add(r *StepResult) {
	if _, ok := t.results[r.StepName]; !ok {
		t.steps = append(t.steps, r.StepName)
	}
	t.results[r.StepName] = r
}

// Result returns the recorded result of a step.
func (t *Tracker) Result(name string) (*StepResult, bool) {
	r, ok := t.results[name]
	return r, ok
}

// Summary derives the run summary from what has been recorded so far.
func (t *Tracker) Summary() *Summary {
	s := &Summary{
		TotalSteps:     len(t.steps),
		ExecutionOrder: append([]string(nil), t.order...),
		Results:        make(map[string]*StepResult, len(t.results)),
		TotalElapsedMS: time.Since(t.start).Milliseconds(),
		OverallSuccess: true,
	}
	for _, name := range t.steps {
		r := t.results[name]
		s.Results[name] = r
		switch r.Status {
		case StepOK:
			s.SuccessSteps++
		case StepSkipped:
			s.SkippedSteps++
		default:
			s.FailedSteps++
			if r.Strategy == Required {
				s.OverallSuccess = false
			}
		}
	}
	return s
}
