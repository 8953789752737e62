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

	"github.com/cloudwego/abdoc/internal/domain"
	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/abdoc/llm"
	"github.com/cloudwego/abdoc/llm/prompt"
	"github.com/cloudwego/abdoc/llm/tool"
)

// Sessions are the model sessions of one run. Close releases what the
// factory opened for it.
type Sessions struct {
	Tool  llm.Session
	Plain llm.Session
	close func() error
}

func (s *Sessions) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// SessionFactory builds the sessions of a run against one warehouse.
type SessionFactory interface {
	Sessions(ctx context.Context, w *domain.Warehouse) (*Sessions, error)
}

type SessionFactoryFunc func(ctx context.Context, w *domain.Warehouse) (*Sessions, error)

func (f SessionFactoryFunc) Sessions(ctx context.Context, w *domain.Warehouse) (*Sessions, error) {
	return f(ctx, w)
}

// StaticSessions hands the same sessions to every run.
func StaticSessions(toolSess, plain llm.Session) SessionFactory {
	return SessionFactoryFunc(func(context.Context, *domain.Warehouse) (*Sessions, error) {
		return &Sessions{Tool: toolSess, Plain: plain}, nil
	})
}

// ModelSessions builds a ReAct session with file tools rooted at the
// warehouse checkout, and a plain session on PlainModel (ToolModel when
// unset). Extra tools, typically from MCP servers, are shared by all runs.
type ModelSessions struct {
	ToolModel    llm.ChatModel
	ToolConfig   llm.ModelConfig
	PlainModel   llm.ChatModel
	PlainConfig  llm.ModelConfig
	Extra        []tool.Tool
	MaxSteps     int
	MaxFileBytes int
	Options      llm.SessionOptions
}

var _ SessionFactory = (*ModelSessions)(nil)

func (m *ModelSessions) Sessions(ctx context.Context, w *domain.Warehouse) (*Sessions, error) {
	if m.ToolModel == nil {
		return nil, errkind.AsPermanent(errors.New("no tool-calling model configured"))
	}
	files, err := tool.NewFileTools(tool.FileToolsOptions{Root: w.LocalPath, MaxFileBytes: m.MaxFileBytes})
	if err != nil {
		return nil, err
	}
	tools := append(files.GetTools(), m.Extra...)
	toolSess, err := llm.NewToolSession(ctx, m.ToolModel, m.ToolConfig, llm.ToolSessionOptions{
		SysPrompt:      prompt.System,
		Tools:          tools,
		MaxSteps:       m.MaxSteps,
		SessionOptions: m.Options,
	})
	if err != nil {
		return nil, err
	}

	plainModel, plainCfg := m.PlainModel, m.PlainConfig
	if plainModel == nil {
		plainModel, plainCfg = m.ToolModel, m.ToolConfig
	}
	// Classification answers with one word; refining it only adds noise.
	plainOpts := m.Options
	plainOpts.Refine = false
	return &Sessions{
		Tool:  toolSess,
		Plain: llm.NewPlainSession(plainModel, plainCfg, plainOpts),
	}, nil
}
