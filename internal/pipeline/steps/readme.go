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
	"github.com/cloudwego/abdoc/internal/log"
	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/repo"
	"github.com/cloudwego/abdoc/llm"
	"github.com/cloudwego/abdoc/llm/prompt"
)

// ReadmeStep takes the repository README, or asks the model to write one
// when the repository has none.
type ReadmeStep struct {
	pipeline.BaseStep
}

func NewReadmeStep() *ReadmeStep {
	return &ReadmeStep{BaseStep: pipeline.BaseStep{
		StepName: "readme",
		Cfg: pipeline.StepConfig{
			Strategy:         pipeline.BestEffort,
			RetryStrategy:    pipeline.RetrySmart,
			MaxRetryAttempts: 3,
			RetryDelay:       2 * time.Second,
			Timeout:          5 * time.Minute,
		},
	}}
}

// CanExecute skips the step when the warehouse already has a README.
func (s *ReadmeStep) CanExecute(pctx *pipeline.Context) (bool, error) {
	return strings.TrimSpace(pctx.Readme) == "", nil
}

func (s *ReadmeStep) Execute(ctx context.Context, pctx *pipeline.Context) (*pipeline.Context, error) {
	readme, err := repo.ReadReadme(pctx.Git.LocalPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(readme) == "" {
		if readme, err = s.generate(ctx, pctx); err != nil {
			return nil, err
		}
	}
	pctx.Readme = readme
	if pctx.Store != nil && pctx.Warehouse != nil {
		if err := pctx.Store.SaveReadme(ctx, pctx.Warehouse.ID, readme); err != nil {
			return nil, err
		}
	}
	return pctx, nil
}

func (s *ReadmeStep) generate(ctx context.Context, pctx *pipeline.Context) (string, error) {
	sess, err := session(pctx.ToolSession, s.Name())
	if err != nil {
		return "", err
	}
	data := promptData(pctx)
	if data.Catalogue == "" {
		// The catalogue step has not run yet.
		if data.Catalogue, err = repo.Catalogue(pctx.Git.LocalPath, repo.CatalogueOptions{}); err != nil {
			return "", err
		}
	}
	input, err := prompt.Render(prompt.Readme, data)
	if err != nil {
		return "", errkind.AsPermanent(err)
	}
	log.Info("[readme] %s has no README, generating one", pctx.Git.URL)
	raw, err := llm.Ask(ctx, sess, input)
	if err != nil {
		return "", err
	}
	readme := content.ExtractTagged(content.Extract(raw), "readme")
	if readme == "" {
		return "", errkind.AsTransient(fmt.Errorf("model returned an empty README"))
	}
	return readme, nil
}
