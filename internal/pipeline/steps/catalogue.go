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
	"strings"
	"time"

	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/repo"
)

// SnapshotCatalogue is the snapshot kind published by the catalogue step.
const SnapshotCatalogue = "catalogue-listing"

// CatalogueStep renders the repository file listing every later prompt
// includes.
type CatalogueStep struct {
	pipeline.BaseStep
	excludes []string
}

func NewCatalogueStep(excludes []string) *CatalogueStep {
	return &CatalogueStep{
		BaseStep: pipeline.BaseStep{
			StepName: "catalogue",
			Cfg: pipeline.StepConfig{
				Strategy:         pipeline.Required,
				RetryStrategy:    pipeline.RetryExponentialBackoff,
				MaxRetryAttempts: 3,
				RetryDelay:       time.Second,
				Timeout:          2 * time.Minute,
			},
		},
		excludes: excludes,
	}
}

func (s *CatalogueStep) Execute(ctx context.Context, pctx *pipeline.Context) (*pipeline.Context, error) {
	listing, err := repo.Catalogue(pctx.Git.LocalPath, repo.CatalogueOptions{Excludes: s.excludes})
	if err != nil {
		return nil, err
	}
	pctx.Catalogue = listing
	var paths []string
	if listing != "" {
		paths = strings.Split(strings.TrimSuffix(listing, "\n"), "\n")
	}
	pctx.Publish(s.Name(), pipeline.NewSnapshot(SnapshotCatalogue, paths, []byte(listing)))
	pctx.Values.SetNumber("catalogue_entries", float64(len(paths)))
	return pctx, nil
}
