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
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type ModelConfig struct {
	Name        string    `json:"name" yaml:"name"` // alias of the config, not endpoint!
	APIType     ModelType `json:"type" yaml:"type"`
	BaseURL     string    `json:"base_url" yaml:"base_url"`
	APIKey      string    `json:"api_key" yaml:"api_key"`
	ModelName   string    `json:"model_name" yaml:"model_name"` // the endpoint of the model, like `gpt-4.1`
	Temperature *float32  `json:"temperature" yaml:"temperature"`
	MaxTokens   int       `json:"max_tokens" yaml:"max_tokens"`
	// Timeout bounds a single HTTP request, default: 600s
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type ModelType string

func NewModelType(t string) ModelType {
	switch strings.ToLower(t) {
	case "ollama":
		return ModelTypeOllama
	case "ark", "doubao":
		return ModelTypeARK
	case "openai", "gpt":
		return ModelTypeOpenAI
	case "claude", "anthropic":
		return ModelTypeClaude
	case "dashscope", "qwen", "tongyi":
		return ModelTypeDashScope
	case "deepseek":
		return ModelTypeDeepSeek
	}
	return ModelTypeUnknown
}

// UnmarshalText lets config files use any alias accepted by NewModelType.
func (t *ModelType) UnmarshalText(b []byte) error {
	*t = NewModelType(string(b))
	return nil
}

const (
	ModelTypeUnknown   ModelType = ""
	ModelTypeOllama    ModelType = "ollama"
	ModelTypeARK       ModelType = "ark"
	ModelTypeOpenAI    ModelType = "openai"
	ModelTypeClaude    ModelType = "claude"
	ModelTypeDashScope ModelType = "dashscope" // Alibaba DashScope (Qwen)
	ModelTypeDeepSeek  ModelType = "deepseek"
)

// ChatModel is the interface for making LLM backend.
type ChatModel interface {
	model.ToolCallingChatModel
}

// Session is one conversation with a model. Chat sends the history and
// returns the assistant's final text.
type Session interface {
	Chat(ctx context.Context, input []*schema.Message) (string, error)
}

// SessionFunc adapts a function to Session.
type SessionFunc func(ctx context.Context, input []*schema.Message) (string, error)

func (f SessionFunc) Chat(ctx context.Context, input []*schema.Message) (string, error) {
	return f(ctx, input)
}

// Ask sends a single user message.
func Ask(ctx context.Context, s Session, content string) (string, error) {
	return s.Chat(ctx, []*schema.Message{schema.UserMessage(content)})
}
