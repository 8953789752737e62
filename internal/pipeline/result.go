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

	"github.com/cloudwego/abdoc/internal/domain"
)

// Command is the immutable input of one orchestrated run.
type Command struct {
	Document      *domain.Document
	Warehouse     *domain.Warehouse
	RepositoryURL string
	Store         domain.Store
}

// StepStatus is the settled outcome of a step.
type StepStatus string

const (
	StepOK        StepStatus = "ok"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
	StepCancelled StepStatus = "cancelled"
)

// StepResult accumulates the attempts of one step. It is finalized when the
// step settles.
type StepResult struct {
	StepName string
	Strategy ExecutionStrategy
	Status   StepStatus
	Attempts int
	Err      error
	Message  string
	Start    time.Time
	End      time.Time
	Elapsed  time.Duration
	Warnings []string
}

func (r *StepResult) Success() bool { return r.Status == StepOK }
func (r *StepResult) Skipped() bool { return r.Status == StepSkipped }

func (r *StepResult) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r *StepResult) settle(status StepStatus, err error) {
	r.Status = status
	r.Err = err
	if err != nil {
		r.Message = err.Error()
	}
	r.End = time.Now()
	r.Elapsed = r.End.Sub(r.Start)
}

// Summary is derived from a Tracker once a run ends.
type Summary struct {
	TotalSteps     int
	SuccessSteps   int
	FailedSteps    int
	SkippedSteps   int
	TotalElapsedMS int64
	// ExecutionOrder lists the steps that were attempted, in order.
	ExecutionOrder []string
	Results        map[string]*StepResult
	// OverallSuccess is true iff no Required step failed.
	OverallSuccess bool
}

// RunResult is what an Engine returns for a run that was not cancelled by the
// caller.
type RunResult struct {
	Context *Context
	Summary *Summary
	// FailedStep names the step that aborted the run, if any.
	FailedStep string
	Err        error
}

// Success reports whether the run completed without being aborted and
// without a Required failure.
func (r *RunResult) Success() bool {
	return r.FailedStep == "" && r.Summary != nil && r.Summary.OverallSuccess
}

// Status of an orchestrated run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Origin tells where a failure came from.
type Origin string

const (
	OriginNone     Origin = ""
	OriginStep     Origin = "step"
	OriginPipeline Origin = "pipeline"
)

// ProcessingResult is the envelope returned by the orchestrator.
type ProcessingResult struct {
	Status     Status
	Origin     Origin
	Message    string
	Err        error
	FailedStep string
	Context    *Context
	Summary    *Summary
	Duration   time.Duration
}

func (r *ProcessingResult) Success() bool   { return r.Status == StatusSucceeded }
func (r *ProcessingResult) Cancelled() bool { return r.Status == StatusCancelled }

// Succeeded wraps the final context of a successful run.
func Succeeded(pctx *Context) *ProcessingResult {
	return &ProcessingResult{Status: StatusSucceeded, Context: pctx}
}

// Failed builds a failure envelope; err may be nil.
func Failed(origin Origin, msg string, err error) *ProcessingResult {
	return &ProcessingResult{Status: StatusFailed, Origin: origin, Message: msg, Err: err}
}

// CancelledResult builds the envelope of a run stopped by its caller.
func CancelledResult(err error) *ProcessingResult {
	msg := "cancelled"
	if err != nil {
		msg = err.Error()
	}
	return &ProcessingResult{Status: StatusCancelled, Message: msg, Err: err}
}
