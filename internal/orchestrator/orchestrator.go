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

// Package orchestrator runs the document pipeline for one document and turns
// whatever happens into a ProcessingResult.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cloudwego/abdoc/internal/domain"
	"github.com/cloudwego/abdoc/internal/log"
	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/cloudwego/abdoc/internal/orchestrator"
	spanName   = "document.process"
)

// PendingLoader lists the catalog entries of a document that still lack a
// page. *store.Store implements it.
type PendingLoader interface {
	PendingCatalogs(ctx context.Context, documentID string) ([]*domain.DocumentCatalog, error)
}

type Orchestrator struct {
	Pipeline pipeline.Pipeline
	Sessions SessionFactory
	// Tracer defaults to the global otel tracer.
	Tracer trace.Tracer
	// Resume preloads pending catalog entries so an interrupted document
	// continues where it stopped instead of proposing a new structure.
	Resume bool
}

func New(p pipeline.Pipeline, sessions SessionFactory) *Orchestrator {
	return &Orchestrator{Pipeline: p, Sessions: sessions}
}

func (o *Orchestrator) tracer() trace.Tracer {
	if o.Tracer != nil {
		return o.Tracer
	}
	return otel.Tracer(tracerName)
}

// Process runs the pipeline for doc. The returned error is non-nil only when
// ctx was cancelled by the caller; the result is then Cancelled. Every other
// outcome, panics included, is reported through the result.
func (o *Orchestrator) Process(ctx context.Context, doc *domain.Document, w *domain.Warehouse, st domain.Store) (ret *pipeline.ProcessingResult, err error) {
	start := time.Now()
	ctx, span := o.tracer().Start(ctx, spanName, trace.WithAttributes(
		attribute.String("warehouse.id", idOf(w)),
		attribute.String("document.id", docID(doc)),
	))
	defer func() {
		ret.Duration = time.Since(start)
		finishSpan(span, ret)
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Error("[orchestrator] panic processing document %s: %v\n%s", docID(doc), r, debug.Stack())
			ret = pipeline.Failed(pipeline.OriginPipeline, fmt.Sprintf("panic: %v", r), fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()

	if doc == nil || w == nil {
		return pipeline.Failed(pipeline.OriginPipeline, "document and warehouse are required", errors.New("missing document or warehouse")), nil
	}
	if o.Pipeline == nil {
		return pipeline.Failed(pipeline.OriginPipeline, "no pipeline configured", errors.New("nil pipeline")), nil
	}

	var toolSess, plainSess llm.Session
	if o.Sessions != nil {
		s, serr := o.Sessions.Sessions(ctx, w)
		if serr != nil {
			return pipeline.Failed(pipeline.OriginPipeline, "build model sessions", serr), nil
		}
		defer s.Close()
		toolSess, plainSess = s.Tool, s.Plain
	}

	pctx := pipeline.NewContext(pipeline.Command{Document: doc, Warehouse: w, RepositoryURL: w.Address, Store: st}, toolSess, plainSess)
	if o.Resume {
		if err := o.preload(ctx, pctx, st); err != nil {
			return pipeline.Failed(pipeline.OriginPipeline, "load pending catalogs", err), nil
		}
	}

	log.Info("[orchestrator] processing document %s of %s (run %s)", doc.ID, w.Address, pctx.RunID)
	run, rerr := o.Pipeline.Run(ctx, pctx)
	if rerr != nil {
		if ctx.Err() != nil {
			ret = pipeline.CancelledResult(rerr)
			if run != nil {
				ret.Context, ret.Summary = run.Context, run.Summary
			}
			log.Info("[orchestrator] document %s cancelled", doc.ID)
			return ret, rerr
		}
		return pipeline.Failed(pipeline.OriginPipeline, rerr.Error(), rerr), nil
	}
	return resultOf(run), nil
}

func (o *Orchestrator) preload(ctx context.Context, pctx *pipeline.Context, st domain.Store) error {
	pl, ok := st.(PendingLoader)
	if !ok {
		return nil
	}
	pending, err := pl.PendingCatalogs(ctx, pctx.Document.ID)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		log.Info("[orchestrator] resuming document %s with %d pending pages", pctx.Document.ID, len(pending))
		pctx.Catalogs = pending
	}
	return nil
}

func resultOf(run *pipeline.RunResult) *pipeline.ProcessingResult {
	if run == nil {
		return pipeline.Failed(pipeline.OriginPipeline, "pipeline returned no result", errors.New("nil run result"))
	}
	var ret *pipeline.ProcessingResult
	switch {
	case run.FailedStep != "":
		msg := fmt.Sprintf("step %s failed", run.FailedStep)
		if run.Err != nil {
			msg = fmt.Sprintf("step %s failed: %v", run.FailedStep, run.Err)
		}
		ret = pipeline.Failed(pipeline.OriginStep, msg, run.Err)
		ret.FailedStep = run.FailedStep
	case !run.Success():
		ret = pipeline.Failed(pipeline.OriginStep, "a required step failed", run.Err)
	default:
		ret = pipeline.Succeeded(run.Context)
	}
	ret.Context = run.Context
	ret.Summary = run.Summary
	return ret
}

func finishSpan(span trace.Span, ret *pipeline.ProcessingResult) {
	span.SetAttributes(
		attribute.Int64("duration.ms", ret.Duration.Milliseconds()),
		attribute.Bool("success", ret.Success()),
	)
	if ret.FailedStep != "" {
		span.SetAttributes(attribute.String("failed.step", ret.FailedStep))
	}
	switch {
	case ret.Success():
		span.SetStatus(codes.Ok, "")
	case ret.Cancelled():
		span.SetAttributes(attribute.Bool("cancelled", true))
	default:
		if ret.Err != nil {
			span.RecordError(ret.Err)
		}
		span.SetStatus(codes.Error, ret.Message)
	}
	span.End()
}

func idOf(w *domain.Warehouse) string {
	if w == nil {
		return ""
	}
	return w.ID
}

func docID(d *domain.Document) string {
	if d == nil {
		return ""
	}
	return d.ID
}
