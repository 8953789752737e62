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

package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/abdoc/internal/domain"
	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/store"
	"github.com/cloudwego/abdoc/llm"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type funcStep struct {
	pipeline.BaseStep
	fn func(ctx context.Context, pctx *pipeline.Context) (*pipeline.Context, error)
}

func newStep(name string, strategy pipeline.ExecutionStrategy, fn func(ctx context.Context, pctx *pipeline.Context) (*pipeline.Context, error)) *funcStep {
	return &funcStep{
		BaseStep: pipeline.BaseStep{StepName: name, Cfg: pipeline.StepConfig{Strategy: strategy}},
		fn:       fn,
	}
}

func (s *funcStep) Execute(ctx context.Context, pctx *pipeline.Context) (*pipeline.Context, error) {
	return s.fn(ctx, pctx)
}

func ok(_ context.Context, pctx *pipeline.Context) (*pipeline.Context, error) { return pctx, nil }

// panicPipeline panics outside of any step.
type panicPipeline struct{}

func (panicPipeline) Run(context.Context, *pipeline.Context) (*pipeline.RunResult, error) {
	panic("dispatch broke")
}

func newTraced(p pipeline.Pipeline) (*Orchestrator, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	o := New(p, nil)
	o.Tracer = tp.Tracer("test")
	return o, rec
}

func fixtures() (*domain.Document, *domain.Warehouse) {
	return &domain.Document{ID: "doc-1", WarehouseID: "wh-1"},
		&domain.Warehouse{ID: "wh-1", Address: "https://example.com/r.git", Branch: "main"}
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestProcess_Success(t *testing.T) {
	o, rec := newTraced(pipeline.NewResilient(newStep("a", pipeline.Required, ok)))
	doc, w := fixtures()

	ret, err := o.Process(context.Background(), doc, w, nil)
	require.NoError(t, err)
	assert.True(t, ret.Success())
	assert.Equal(t, []string{"a"}, ret.Summary.ExecutionOrder)
	assert.Equal(t, "https://example.com/r.git", ret.Context.Git.URL)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "document.process", spans[0].Name())
	a := attrs(spans[0])
	assert.Equal(t, "wh-1", a["warehouse.id"].AsString())
	assert.Equal(t, "doc-1", a["document.id"].AsString())
	assert.True(t, a["success"].AsBool())
	_, hasDuration := a["duration.ms"]
	assert.True(t, hasDuration)
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}

func TestProcess_StepFailure(t *testing.T) {
	fail := func(context.Context, *pipeline.Context) (*pipeline.Context, error) {
		return nil, errkind.AsPermanent(errors.New("boom"))
	}
	o, rec := newTraced(pipeline.NewResilient(
		newStep("a", pipeline.Required, ok),
		newStep("b", pipeline.Required, fail),
		newStep("c", pipeline.Required, ok),
	))
	doc, w := fixtures()

	ret, err := o.Process(context.Background(), doc, w, nil)
	require.NoError(t, err)
	assert.False(t, ret.Success())
	assert.Equal(t, pipeline.OriginStep, ret.Origin)
	assert.Equal(t, "b", ret.FailedStep)
	assert.Contains(t, ret.Message, "boom")

	a := attrs(rec.Ended()[0])
	assert.Equal(t, "b", a["failed.step"].AsString())
	assert.False(t, a["success"].AsBool())
	assert.Equal(t, codes.Error, rec.Ended()[0].Status().Code)
}

func TestProcess_PanicIsPipelineFailure(t *testing.T) {
	o, rec := newTraced(panicPipeline{})
	doc, w := fixtures()

	ret, err := o.Process(context.Background(), doc, w, nil)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailed, ret.Status)
	assert.Equal(t, pipeline.OriginPipeline, ret.Origin)
	assert.Contains(t, ret.Message, "dispatch broke")
	require.Len(t, rec.Ended(), 1)
}

func TestProcess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := func(ctx context.Context, pctx *pipeline.Context) (*pipeline.Context, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	o, rec := newTraced(pipeline.NewResilient(newStep("a", pipeline.Required, stop), newStep("b", pipeline.Required, ok)))
	doc, w := fixtures()

	ret, err := o.Process(ctx, doc, w, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, ret.Cancelled())
	assert.NotContains(t, ret.Summary.ExecutionOrder, "b")
	a := attrs(rec.Ended()[0])
	assert.True(t, a["cancelled"].AsBool())
}

func TestProcess_MissingInput(t *testing.T) {
	o, _ := newTraced(pipeline.NewStrict())
	ret, err := o.Process(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OriginPipeline, ret.Origin)
}

func TestProcess_SessionsReachSteps(t *testing.T) {
	answer := llm.SessionFunc(func(context.Context, []*schema.Message) (string, error) { return "hi", nil })
	var got string
	ask := func(ctx context.Context, pctx *pipeline.Context) (*pipeline.Context, error) {
		s, err := llm.Ask(ctx, pctx.ToolSession, "hello")
		got = s
		return pctx, err
	}
	o, _ := newTraced(pipeline.NewStrict(newStep("ask", pipeline.Required, ask)))
	o.Sessions = StaticSessions(answer, answer)
	doc, w := fixtures()

	ret, err := o.Process(context.Background(), doc, w, nil)
	require.NoError(t, err)
	assert.True(t, ret.Success())
	assert.Equal(t, "hi", got)

	o.Sessions = SessionFactoryFunc(func(context.Context, *domain.Warehouse) (*Sessions, error) {
		return nil, errors.New("no model")
	})
	ret, err = o.Process(context.Background(), doc, w, nil)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OriginPipeline, ret.Origin)
}

func TestProcess_Resume(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, store.Memory)
	require.NoError(t, err)
	defer st.Close()
	w := &domain.Warehouse{Name: "r", Address: "https://example.com/r.git"}
	require.NoError(t, st.AddWarehouse(ctx, w))
	doc := &domain.Document{WarehouseID: w.ID}
	require.NoError(t, st.AddDocument(ctx, doc))
	require.NoError(t, st.ReplaceCatalogs(ctx, doc.ID, []*domain.DocumentCatalog{
		{WarehouseID: w.ID, Title: "A"}, {WarehouseID: w.ID, Title: "B", Order: 1},
	}))

	var seen int
	count := func(_ context.Context, pctx *pipeline.Context) (*pipeline.Context, error) {
		seen = len(pctx.Catalogs)
		return pctx, nil
	}
	o, _ := newTraced(pipeline.NewStrict(newStep("count", pipeline.Required, count)))
	o.Resume = true
	ret, err := o.Process(ctx, doc, w, st)
	require.NoError(t, err)
	assert.True(t, ret.Success())
	assert.Equal(t, 2, seen)

	o.Resume = false
	_, err = o.Process(ctx, doc, w, st)
	require.NoError(t, err)
	assert.Zero(t, seen)
}

func TestModelSessions_RequiresModel(t *testing.T) {
	_, err := (&ModelSessions{}).Sessions(context.Background(), &domain.Warehouse{LocalPath: t.TempDir()})
	assert.True(t, errkind.Is(err, errkind.Permanent))
}
