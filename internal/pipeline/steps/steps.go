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

// Package steps holds the document processing steps, in the order they run.
package steps

import (
	"errors"
	"fmt"

	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/scheduler"
	"github.com/cloudwego/abdoc/llm"
	"github.com/cloudwego/abdoc/llm/prompt"
)

type Options struct {
	// Excludes are extra glob patterns left out of the catalogue.
	Excludes []string
	// Scheduler runs the content step; nil builds one with default options.
	Scheduler *scheduler.Scheduler
}

// Default returns the document processing steps in run order.
func Default(opts Options) []pipeline.Step {
	sched := opts.Scheduler
	if sched == nil {
		sched = scheduler.New(scheduler.DefaultOptions())
	}
	return []pipeline.Step{
		NewReadmeStep(),
		NewCatalogueStep(opts.Excludes),
		NewClassifyStep(),
		NewOverviewStep(),
		NewStructureStep(),
		NewContentStep(sched),
	}
}

var errNoSession = errors.New("no model session")

func session(s llm.Session, step string) (llm.Session, error) {
	if s == nil {
		return nil, errkind.AsPermanent(fmt.Errorf("%s: %w", step, errNoSession))
	}
	return s, nil
}

func promptData(pctx *pipeline.Context) prompt.Data {
	return prompt.Data{
		GitURL:         pctx.Git.URL,
		Branch:         pctx.Git.Branch,
		Catalogue:      pctx.Catalogue,
		Readme:         pctx.Readme,
		Classification: pctx.Classification,
	}
}

func warehouseID(pctx *pipeline.Context) string {
	if pctx.Warehouse == nil {
		return ""
	}
	return pctx.Warehouse.ID
}

func documentID(pctx *pipeline.Context) string {
	if pctx.Document == nil {
		return ""
	}
	return pctx.Document.ID
}
