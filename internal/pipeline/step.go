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

// Step is one unit of work in the pipeline.
//
// CanExecute is advisory: an error from it means "run anyway". Execute is the
// only operation allowed to mutate the context and must tolerate being called
// again for the same run when retried. HandleError runs between a failed
// attempt and the next one; its failure never escalates.
type Step interface {
	Name() string
	CanExecute(pctx *Context) (bool, error)
	Execute(ctx context.Context, pctx *Context) (*Context, error)
	Config() StepConfig
	HandleError(ctx context.Context, pctx *Context, err error, attempt int) (*Context, error)
}

// HealthChecker is optionally implemented by steps that can verify their own
// output after a successful attempt. A failing check is only a warning.
type HealthChecker interface {
	HealthCheck(ctx context.Context, pctx *Context) error
}

// BaseStep supplies the default behaviour of a Step. Embed it and implement
// Execute.
type BaseStep struct {
	StepName string
	Cfg      StepConfig
}

func (b BaseStep) Name() string { return b.StepName }

func (b BaseStep) CanExecute(*Context) (bool, error) { return true, nil }

func (b BaseStep) Config() StepConfig { return b.Cfg }

func (b BaseStep) HandleError(_ context.Context, pctx *Context, _ error, _ int) (*Context, error) {
	return pctx, nil
}
