/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package llm

import (
	"context"

	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/abdoc/internal/log"
	"github.com/cloudwego/abdoc/internal/utils"
	"github.com/cloudwego/eino/callbacks"
	etool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
)

const defaultMaxSteps = 30

type ToolSessionOptions struct {
	SysPrompt string
	Tools     []etool.BaseTool
	MaxSteps  int
	SessionOptions
}

// NewToolSession builds a session on a ReAct agent that calls tools on its
// own until it produces a final answer.
func NewToolSession(ctx context.Context, cm ChatModel, m ModelConfig, opts ToolSessionOptions) (*StreamSession, error) {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = defaultMaxSteps
	}
	ra, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: cm,
		ToolsConfig:      compose.ToolsNodeConfig{Tools: opts.Tools},
		MaxStep:          opts.MaxSteps,
		MessageModifier:  newMessageModifier(opts.SysPrompt, m.Name, opts.MaxSteps),
	})
	if err != nil {
		return nil, errkind.AsPermanent(utils.WrapError(err, "build agent for model %s", m.Name))
	}
	fn := func(ctx context.Context, input []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
		return ra.Stream(ctx, input, agent.WithComposeOptions(compose.WithCallbacks(CallbackHandler{})))
	}
	return NewStreamSession(m.Name, fn, opts.SessionOptions), nil
}

const stepLimitNotice = "The iteration limit is about to be reached. Give your final answer now and do not call any more tools."

func newMessageModifier(sysPrompt string, name string, limit int) func(ctx context.Context, input []*schema.Message) []*schema.Message {
	return func(ctx context.Context, input []*schema.Message) []*schema.Message {
		log.Debug("[%s] message modifier, limit: %d, input: %d", name, limit, len(input))
		if limit > 0 && len(input) >= limit-1 {
			input = append(input, schema.UserMessage(stepLimitNotice))
		}
		return appendSysPrompt(sysPrompt, input)
	}
}

func appendSysPrompt(sysPrompt string, input []*schema.Message) []*schema.Message {
	if sysPrompt == "" {
		return input
	}
	res := make([]*schema.Message, 0, len(input)+1)
	res = append(res, schema.SystemMessage(sysPrompt))
	res = append(res, input...)
	return res
}

type CallbackHandler struct{}

var _ callbacks.Handler = (*CallbackHandler)(nil)

func (h CallbackHandler) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if info != nil {
		log.Debug("[agent] start %s/%s", info.Component, info.Name)
	}
	return ctx
}

func (h CallbackHandler) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if info != nil {
		log.Debug("[agent] end %s/%s", info.Component, info.Name)
	}
	return ctx
}

func (h CallbackHandler) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	log.Error("[agent] %+v: %v", info, err)
	return ctx
}

func (h CallbackHandler) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

func (h CallbackHandler) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}
