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

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/abdoc/internal/domain"
	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	delay    time.Duration
	fail     map[string]error
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    sync.Map // catalog id -> *atomic.Int32
	sources  []string
	body     string
}

func (g *fakeGenerator) Generate(ctx context.Context, c *domain.DocumentCatalog, _ Request) (*Generated, error) {
	n, _ := g.calls.LoadOrStore(c.ID, new(atomic.Int32))
	n.(*atomic.Int32).Add(1)

	cur := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		seen := g.maxSeen.Load()
		if cur <= seen || g.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}
	if g.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.delay):
		}
	}
	if err, ok := g.fail[c.ID]; ok {
		return nil, err
	}
	body := g.body
	if body == "" {
		body = "# " + c.Title
	}
	return &Generated{Content: body, Sources: g.sources}, nil
}

func (g *fakeGenerator) callsFor(id string) int {
	n, ok := g.calls.Load(id)
	if !ok {
		return 0
	}
	return int(n.(*atomic.Int32).Load())
}

type memStore struct {
	mu      sync.Mutex
	items   map[string]*domain.DocumentFileItem
	sources map[string][]domain.DocumentFileItemSource
}

func newMemStore() *memStore {
	return &memStore{items: map[string]*domain.DocumentFileItem{}, sources: map[string][]domain.DocumentFileItemSource{}}
}

func (s *memStore) CompleteCatalog(_ context.Context, id string, item *domain.DocumentFileItem, sources []domain.DocumentFileItemSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = item
	s.sources[id] = sources
	return nil
}

func catalogs(n int) []*domain.DocumentCatalog {
	ret := make([]*domain.DocumentCatalog, 0, n)
	for i := 0; i < n; i++ {
		ret = append(ret, &domain.DocumentCatalog{ID: fmt.Sprint(i), Title: fmt.Sprintf("Page %d", i)})
	}
	return ret
}

func fastOptions(concurrency int) Options {
	return Options{Concurrency: concurrency, MaxAttempts: 3, RetryDelay: time.Millisecond}
}

func TestHandlePending_ConcurrencyCap(t *testing.T) {
	gen := &fakeGenerator{delay: 20 * time.Millisecond}
	store := newMemStore()
	s := New(fastOptions(3))

	report, err := s.HandlePending(context.Background(), Batch{Generator: gen, Store: store, Catalogs: catalogs(10)})
	require.NoError(t, err)
	assert.Len(t, report.Persisted, 10)
	assert.Empty(t, report.Failed)
	assert.LessOrEqual(t, gen.maxSeen.Load(), int32(3))
	assert.Len(t, store.items, 10)
}

func TestHandlePending_NoStaggerWhenPoolIsFull(t *testing.T) {
	gen := &fakeGenerator{}
	s := New(Options{Concurrency: 1, Stagger: 500 * time.Millisecond, MaxAttempts: 1})

	report, err := s.HandlePending(context.Background(), Batch{Generator: gen, Store: newMemStore(), Catalogs: catalogs(2)})
	require.NoError(t, err)
	assert.Len(t, report.Persisted, 2)
	assert.Less(t, report.Elapsed, 250*time.Millisecond, "a full pool goes straight to waiting for completions")
}

func TestHandlePending_StaggersWhileSlotsAreFree(t *testing.T) {
	gen := &fakeGenerator{}
	s := New(Options{Concurrency: 3, Stagger: 50 * time.Millisecond, MaxAttempts: 1})

	report, err := s.HandlePending(context.Background(), Batch{Generator: gen, Store: newMemStore(), Catalogs: catalogs(3)})
	require.NoError(t, err)
	assert.Len(t, report.Persisted, 3)
	assert.GreaterOrEqual(t, report.Elapsed, 100*time.Millisecond)
}

func TestHandlePending_SomeEntriesAlwaysFail(t *testing.T) {
	gen := &fakeGenerator{fail: map[string]error{
		"2": errkind.AsTransient(errors.New("upstream 503")),
		"5": errors.New("malformed reply"),
	}}
	store := newMemStore()
	s := New(fastOptions(3))
	in := catalogs(10)

	report, err := s.HandlePending(context.Background(), Batch{Generator: gen, Store: store, Catalogs: in})
	require.NoError(t, err)
	assert.Len(t, report.Persisted, 8)
	require.Len(t, report.Failed, 2)
	assert.Len(t, store.items, 8)

	failed := map[string]int{}
	for _, f := range report.Failed {
		failed[f.Catalog.ID] = f.Attempts
		assert.False(t, f.Catalog.IsCompleted)
	}
	assert.Equal(t, map[string]int{"2": 3, "5": 3}, failed)
	assert.Equal(t, 3, gen.callsFor("2"))
	assert.True(t, in[0].IsCompleted)
}

func TestHandlePending_PermanentNotRetried(t *testing.T) {
	gen := &fakeGenerator{fail: map[string]error{"0": errkind.AsPermanent(errors.New("catalog has no title"))}}
	report, err := New(fastOptions(1)).HandlePending(context.Background(), Batch{Generator: gen, Store: newMemStore(), Catalogs: catalogs(1)})
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 1, report.Failed[0].Attempts)
	assert.Equal(t, 1, gen.callsFor("0"))
}

func TestHandlePending_SharedSemaphore(t *testing.T) {
	gen := &fakeGenerator{delay: 10 * time.Millisecond}
	s := New(fastOptions(2))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := s.HandlePending(context.Background(), Batch{Generator: gen, Store: newMemStore(), Catalogs: catalogs(4)})
			assert.NoError(t, err)
			assert.Len(t, report.Persisted, 4)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, gen.maxSeen.Load(), int32(2))
}

func TestHandlePending_Cancel(t *testing.T) {
	gen := &fakeGenerator{delay: time.Minute}
	opts := fastOptions(2)
	opts.Stagger = time.Minute
	s := New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	report, err := s.HandlePending(ctx, Batch{Generator: gen, Store: newMemStore(), Catalogs: catalogs(5)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
	require.NotNil(t, report)
	assert.Empty(t, report.Persisted)
	assert.Equal(t, 1, gen.callsFor("0"))
	assert.Zero(t, gen.callsFor("1"), "stagger must be interrupted before the next launch")
}

func TestHandlePending_PersistsRepairedContentAndSources(t *testing.T) {
	gen := &fakeGenerator{
		body:    "```mermaid\nA[Store (sqlite)] --> B\n```",
		sources: []string{"internal/store/store.go", "main.go"},
	}
	store := newMemStore()
	_, err := New(fastOptions(1)).HandlePending(context.Background(), Batch{Generator: gen, Store: store, Catalogs: catalogs(1)})
	require.NoError(t, err)

	item := store.items["0"]
	require.NotNil(t, item)
	assert.Equal(t, "```mermaid\nA[Store sqlite] --> B\n```", item.Content)
	assert.Equal(t, len(item.Content), item.Size)
	assert.Equal(t, "Page 0", item.Title)

	srcs := store.sources["0"]
	require.Len(t, srcs, 2)
	assert.Equal(t, "store.go", srcs[0].Name)
	assert.Equal(t, "internal/store/store.go", srcs[0].Address)
	assert.Equal(t, item.ID, srcs[1].DocumentFileItemID)
}

func TestOptionsDefaults(t *testing.T) {
	s := New(Options{})
	assert.Equal(t, DefaultConcurrency, s.Options().Concurrency)
	assert.Equal(t, DefaultMaxAttempts, s.Options().MaxAttempts)
	assert.Equal(t, DefaultOptions().RetryDelay, DefaultRetryDelay)
}
