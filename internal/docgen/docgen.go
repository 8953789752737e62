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

// Package docgen asks a model for the page of one catalog entry.
package docgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/abdoc/internal/content"
	"github.com/cloudwego/abdoc/internal/domain"
	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/abdoc/internal/log"
	"github.com/cloudwego/abdoc/internal/scheduler"
	"github.com/cloudwego/abdoc/llm"
	"github.com/cloudwego/abdoc/llm/prompt"
	"github.com/cloudwego/abdoc/llm/tool"
)

var _ scheduler.Generator = (*Generator)(nil)

type Generator struct {
	session llm.Session
}

func New(session llm.Session) *Generator {
	return &Generator{session: session}
}

func (g *Generator) Generate(ctx context.Context, c *domain.DocumentCatalog, req scheduler.Request) (*scheduler.Generated, error) {
	if g.session == nil {
		return nil, errkind.AsPermanent(fmt.Errorf("catalog %s: no model session", c.ID))
	}
	input, err := prompt.Render(prompt.Document, prompt.Data{
		GitURL:    req.GitURL,
		Branch:    req.Branch,
		Catalogue: req.Catalogue,
		Title:     c.Title,
		Prompt:    c.Prompt,
	})
	if err != nil {
		return nil, errkind.AsPermanent(err)
	}

	rec := tool.NewRecorder()
	raw, err := llm.Ask(tool.WithRecorder(ctx, rec), g.session, input)
	if err != nil {
		return nil, err
	}
	page := content.Extract(raw)
	if strings.TrimSpace(page) == "" {
		return nil, errkind.AsTransient(fmt.Errorf("catalog %s: model returned no content", c.ID))
	}
	sources := rec.Files()
	log.Debug("[docgen] catalog %s: %d bytes, %d sources", c.ID, len(page), len(sources))
	return &scheduler.Generated{Content: page, Sources: sources}, nil
}
