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

// Package scheduler generates the pages of pending catalog entries
// concurrently, retrying each entry on its own.
package scheduler

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/cloudwego/abdoc/internal/content"
	"github.com/cloudwego/abdoc/internal/domain"
	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/abdoc/internal/log"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultConcurrency = 5
	DefaultStagger     = time.Second
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 10 * time.Second
)

type Options struct {
	// Concurrency caps the generations in flight across all batches of one
	// scheduler.
	Concurrency int
	// Stagger separates two task launches.
	Stagger time.Duration
	// MaxAttempts bounds the tries of a single entry.
	MaxAttempts int
	// RetryDelay is multiplied by the attempt number between tries.
	RetryDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Stagger < 0 {
		o.Stagger = 0
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	return o
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		Concurrency: DefaultConcurrency,
		Stagger:     DefaultStagger,
		MaxAttempts: DefaultMaxAttempts,
		RetryDelay:  DefaultRetryDelay,
	}
}

// Request carries what every page prompt needs about the repository.
type Request struct {
	GitURL    string
	Branch    string
	Catalogue string
}

// Generated is the model's page for one entry and the files it consulted.
type Generated struct {
	Content string
	Sources []string
}

type Generator interface {
	Generate(ctx context.Context, catalog *domain.DocumentCatalog, req Request) (*Generated, error)
}

type Store interface {
	CompleteCatalog(ctx context.Context, catalogID string, item *domain.DocumentFileItem, sources []domain.DocumentFileItemSource) error
}

// Batch is one call's worth of work.
type Batch struct {
	Generator Generator
	Store     Store
	Catalogs  []*domain.DocumentCatalog
	Request   Request
}

// Failure is an entry that exhausted its attempts.
type Failure struct {
	Catalog  *domain.DocumentCatalog
	Attempts int
	Err      error
}

type Report struct {
	// Persisted lists the completed entries in completion order.
	Persisted []*domain.DocumentCatalog
	Failed    []Failure
	Elapsed   time.Duration
}

type Scheduler struct {
	opts Options
	sem  *semaphore.Weighted
}

func New(opts Options) *Scheduler {
	opts = opts.withDefaults()
	return &Scheduler{opts: opts, sem: semaphore.NewWeighted(int64(opts.Concurrency))}
}

func (s *Scheduler) Options() Options {
	return s.opts
}

type outcome struct {
	catalog  *domain.DocumentCatalog
	attempts int
	err      error
}

// HandlePending generates and persists every entry of the batch. A failing
// entry never stops the others; it is reported in Report.Failed. The error
// is non-nil only when ctx ends, after the running tasks have drained.
func (s *Scheduler) HandlePending(ctx context.Context, b Batch) (*Report, error) {
	start := time.Now()
	report := &Report{}
	done := make(chan outcome, len(b.Catalogs))
	running, next := 0, 0

	for next < len(b.Catalogs) || running > 0 {
		for next < len(b.Catalogs) && running < s.opts.Concurrency && ctx.Err() == nil {
			c := b.Catalogs[next]
			next++
			running++
			go func() {
				done <- s.process(ctx, b, c)
			}()
			// Stagger only when another launch follows right away.
			if next < len(b.Catalogs) && running < s.opts.Concurrency {
				if err := sleepCtx(ctx, s.opts.Stagger); err != nil {
					break
				}
			}
		}
		if running == 0 {
			break
		}

		o := <-done
		running--
		if o.err != nil {
			if ctx.Err() == nil {
				log.Error("[scheduler] catalog %s (%s) failed after %d attempts: %v", o.catalog.ID, o.catalog.Title, o.attempts, o.err)
			}
			report.Failed = append(report.Failed, Failure{Catalog: o.catalog, Attempts: o.attempts, Err: o.err})
			continue
		}
		o.catalog.IsCompleted = true
		report.Persisted = append(report.Persisted, o.catalog)
		log.Info("[scheduler] catalog %s (%s) done, %d/%d", o.catalog.ID, o.catalog.Title, len(report.Persisted), len(b.Catalogs))
	}

	report.Elapsed = time.Since(start)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// process holds one concurrency slot for the whole retry loop of an entry.
func (s *Scheduler) process(ctx context.Context, b Batch, c *domain.DocumentCatalog) outcome {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return outcome{catalog: c, err: err}
	}
	defer s.sem.Release(1)

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		err := s.generate(ctx, b, c)
		if err == nil {
			return outcome{catalog: c, attempts: attempt}
		}
		lastErr = err
		if cerr := ctx.Err(); cerr != nil {
			return outcome{catalog: c, attempts: attempt, err: cerr}
		}
		if errkind.Is(err, errkind.Permanent) {
			return outcome{catalog: c, attempts: attempt, err: err}
		}
		if attempt == s.opts.MaxAttempts {
			break
		}
		log.Warn("[scheduler] catalog %s attempt %d/%d: %v", c.ID, attempt, s.opts.MaxAttempts, err)
		if err := sleepCtx(ctx, s.opts.RetryDelay*time.Duration(attempt)); err != nil {
			return outcome{catalog: c, attempts: attempt, err: err}
		}
	}
	return outcome{catalog: c, attempts: s.opts.MaxAttempts, err: lastErr}
}

func (s *Scheduler) generate(ctx context.Context, b Batch, c *domain.DocumentCatalog) error {
	gen, err := b.Generator.Generate(ctx, c, b.Request)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	body := content.RepairDiagrams(gen.Content)
	item := &domain.DocumentFileItem{
		ID:                uuid.NewString(),
		DocumentCatalogID: c.ID,
		Title:             c.Title,
		Content:           body,
		Size:              len(body),
		CreatedAt:         time.Now(),
	}
	sources := make([]domain.DocumentFileItemSource, 0, len(gen.Sources))
	for _, src := range gen.Sources {
		sources = append(sources, domain.DocumentFileItemSource{
			ID:                 uuid.NewString(),
			DocumentFileItemID: item.ID,
			Address:            src,
			Name:               path.Base(src),
		})
	}
	if err := b.Store.CompleteCatalog(ctx, c.ID, item, sources); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
