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
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/abdoc/internal/content"
	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/llm"
	"github.com/cloudwego/abdoc/llm/prompt"
)

// Classifications are the project categories the model may choose from.
var Classifications = []string{
	"Applications",
	"Frameworks",
	"Libraries",
	"DevelopmentTools",
	"CLITools",
	"DevOpsConfiguration",
	"Documentation",
}

// ClassifyStep tags the project with one of Classifications. It only runs
// while the warehouse is unclassified.
type ClassifyStep struct {
	pipeline.BaseStep
}

func NewClassifyStep() *ClassifyStep {
	return &ClassifyStep{BaseStep: pipeline.BaseStep{
		StepName: "classify",
		Cfg: pipeline.StepConfig{
			Strategy:         pipeline.Conditional,
			Condition:        "classification == ''",
			RetryStrategy:    pipeline.RetryFixedInterval,
			MaxRetryAttempts: 2,
			RetryDelay:       3 * time.Second,
			Timeout:          3 * time.Minute,
		},
	}}
}

func (s *ClassifyStep) Execute(ctx context.Context, pctx *pipeline.Context) (*pipeline.Context, error) {
	sess, err := session(pctx.PlainSession, s.Name())
	if err != nil {
		return nil, err
	}
	input, err := prompt.Render(prompt.Classify, promptData(pctx))
	if err != nil {
		return nil, errkind.AsPermanent(err)
	}
	raw, err := llm.Ask(ctx, sess, input)
	if err != nil {
		return nil, err
	}
	class, ok := normalizeClassification(content.ExtractTagged(content.Extract(raw), "classify"))
	if !ok {
		return nil, errkind.AsTransient(fmt.Errorf("unrecognized classification %q", strings.TrimSpace(raw)))
	}
	pctx.Classification = class
	if pctx.Store != nil && pctx.Warehouse != nil {
		if err := pctx.Store.SaveClassification(ctx, pctx.Warehouse.ID, class); err != nil {
			return nil, err
		}
	}
	return pctx, nil
}

func normalizeClassification(s string) (string, bool) {
	s = strings.Trim(strings.TrimSpace(s), "`*\"'.")
	for _, c := range Classifications {
		if strings.EqualFold(s, c) {
			return c, true
		}
	}
	return "", false
}
