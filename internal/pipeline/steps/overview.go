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

package steps

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/abdoc/internal/content"
	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/llm"
	"github.com/cloudwego/abdoc/llm/prompt"
)

// OverviewStep writes the project overview page.
type OverviewStep struct {
	pipeline.BaseStep
}

var _ pipeline.HealthChecker = (*OverviewStep)(nil)

func NewOverviewStep() *OverviewStep {
	return &OverviewStep{BaseStep: pipeline.BaseStep{
		StepName: "overview",
		Cfg: pipeline.StepConfig{
			Strategy:         pipeline.BestEffort,
			RetryStrategy:    pipeline.RetrySmart,
			MaxRetryAttempts: 3,
			RetryDelay:       5 * time.Second,
			Timeout:          15 * time.Minute,
		},
	}}
}

func (s *OverviewStep) Execute(ctx context.Context, pctx *pipeline.Context) (*pipeline.Context, error) {
	sess, err := session(pctx.ToolSession, s.Name())
	if err != nil {
		return nil, err
	}
	input, err := prompt.Render(prompt.Overview, promptData(pctx))
	if err != nil {
		return nil, errkind.AsPermanent(err)
	}
	raw, err := llm.Ask(ctx, sess, input)
	if err != nil {
		return nil, err
	}
	overview := content.RepairDiagrams(strings.TrimSpace(content.Extract(raw)))
	if overview == "" {
		return nil, errkind.AsTransient(errors.New("model returned an empty overview"))
	}
	pctx.Overview = overview
	if pctx.Store != nil && pctx.Document != nil {
		if err := pctx.Store.SaveOverview(ctx, pctx.Document.ID, overview); err != nil {
			return nil, err
		}
	}
	return pctx, nil
}

// HealthCheck flags an overview too short to be useful.
func (s *OverviewStep) HealthCheck(_ context.Context, pctx *pipeline.Context) error {
	if len(pctx.Overview) < 200 {
		return errors.New("overview is shorter than 200 bytes")
	}
	return nil
}
