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
	"fmt"
	"time"

	"github.com/cloudwego/abdoc/internal/docgen"
	"github.com/cloudwego/abdoc/internal/domain"
	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/abdoc/internal/log"
	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/scheduler"
)

// SnapshotContent is the snapshot kind published by the content step.
const SnapshotContent = "content-report"

// ContentStep generates the page of every pending catalog entry. Entries
// are retried by the scheduler, so the step itself is not.
type ContentStep struct {
	pipeline.BaseStep
	scheduler *scheduler.Scheduler
}

var _ pipeline.HealthChecker = (*ContentStep)(nil)

func NewContentStep(s *scheduler.Scheduler) *ContentStep {
	return &ContentStep{
		BaseStep: pipeline.BaseStep{
			StepName: "content",
			Cfg: pipeline.StepConfig{
				Strategy:      pipeline.Required,
				RetryStrategy: pipeline.RetryNone,
				Timeout:       6 * time.Hour,
			},
		},
		scheduler: s,
	}
}

func (s *ContentStep) Execute(ctx context.Context, pctx *pipeline.Context) (*pipeline.Context, error) {
	if pctx.Store == nil {
		return nil, errkind.AsPermanent(errors.New("content: no store"))
	}
	sess, err := session(pctx.ToolSession, s.Name())
	if err != nil {
		return nil, err
	}
	pending, err := s.pending(ctx, pctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		log.Info("[content] document %s has no pending pages", documentID(pctx))
		return pctx, nil
	}

	report, err := s.scheduler.HandlePending(ctx, scheduler.Batch{
		Generator: docgen.New(sess),
		Store:     pctx.Store,
		Catalogs:  pending,
		Request: scheduler.Request{
			GitURL:    pctx.Git.URL,
			Branch:    pctx.Git.Branch,
			Catalogue: pctx.Catalogue,
		},
	})
	if report != nil {
		pctx.Values.SetNumber("content_persisted", float64(len(report.Persisted)))
		pctx.Values.SetNumber("content_failed", float64(len(report.Failed)))
		pctx.Values.SetDuration("content_elapsed", report.Elapsed)
		pctx.Publish(s.Name(), pipeline.NewSnapshot(SnapshotContent, report, []byte(fmt.Sprintf("%d/%d", len(report.Persisted), len(pending)))))
	}
	if err != nil {
		return nil, err
	}
	log.Info("[content] document %s: %d pages persisted, %d failed in %s",
		documentID(pctx), len(report.Persisted), len(report.Failed), report.Elapsed)
	return pctx, nil
}

func (s *ContentStep) pending(ctx context.Context, pctx *pipeline.Context) ([]*domain.DocumentCatalog, error) {
	var out []*domain.DocumentCatalog
	for _, c := range pctx.Catalogs {
		if !c.IsCompleted {
			out = append(out, c)
		}
	}
	if len(out) > 0 || pctx.Document == nil {
		return out, nil
	}
	return pctx.Store.PendingCatalogs(ctx, pctx.Document.ID)
}

// HealthCheck reports pages that exhausted their attempts.
func (s *ContentStep) HealthCheck(_ context.Context, pctx *pipeline.Context) error {
	report, ok := pipeline.Output[*scheduler.Report](pctx, s.Name(), SnapshotContent)
	if !ok || len(report.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d page(s) failed to generate", len(report.Failed))
}
