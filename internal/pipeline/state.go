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

package pipeline

import (
	"time"

	"github.com/cloudwego/abdoc/internal/domain"
	"github.com/cloudwego/abdoc/llm"
	"github.com/google/uuid"
)

// GitInfo describes the target repository.
type GitInfo struct {
	URL       string
	Branch    string
	LocalPath string
}

// Context is the state of one pipeline run. It is owned by a single run and
// is visited by the steps strictly in order; nothing in it is shared with
// other runs except the collaborators it points to.
type Context struct {
	RunID     string
	StartedAt time.Time

	Document  *domain.Document
	Warehouse *domain.Warehouse
	Git       GitInfo
	Store     domain.Store

	// ToolSession may call repository tools; PlainSession never does.
	ToolSession  llm.Session
	PlainSession llm.Session

	Readme         string
	Catalogue      string
	Classification string
	Overview       string
	Catalogs       []*domain.DocumentCatalog

	Values  Values
	outputs map[string]*Snapshot
}

// NewContext converts a command into a fresh run context.
func NewContext(cmd Command, tool, plain llm.Session) *Context {
	c := &Context{
		RunID:        uuid.NewString(),
		StartedAt:    time.Now(),
		Document:     cmd.Document,
		Warehouse:    cmd.Warehouse,
		Store:        cmd.Store,
		ToolSession:  tool,
		PlainSession: plain,
		Values:       NewValues(),
	}
	c.Git.URL = cmd.RepositoryURL
	if w := cmd.Warehouse; w != nil {
		if c.Git.URL == "" {
			c.Git.URL = w.Address
		}
		c.Git.Branch = w.Branch
		c.Git.LocalPath = w.LocalPath
		c.Readme = w.Readme
		c.Classification = w.Classification
	}
	return c
}

// Params exposes the context to condition expressions.
func (c *Context) Params() map[string]interface{} {
	params := c.Values.Raw()
	params["readme"] = c.Readme
	params["has_readme"] = c.Readme != ""
	params["catalogue"] = c.Catalogue
	params["classification"] = c.Classification
	params["overview"] = c.Overview
	params["catalog_count"] = float64(len(c.Catalogs))
	params["branch"] = c.Git.Branch
	return params
}
