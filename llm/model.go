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
	"fmt"
	"time"

	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino-ext/components/model/qwen"
)

const (
	defaultMaxTokens = 16 * 1024
	defaultTimeout   = 600 * time.Second

	dashScopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	deepSeekBaseURL  = "https://api.deepseek.com"
)

// WithDefaults fills the zero fields of m.
func (m ModelConfig) WithDefaults() ModelConfig {
	if m.MaxTokens == 0 {
		m.MaxTokens = defaultMaxTokens
	}
	if m.Timeout == 0 {
		m.Timeout = defaultTimeout
	}
	switch m.APIType {
	case ModelTypeDashScope:
		if m.BaseURL == "" {
			m.BaseURL = dashScopeBaseURL
		}
	case ModelTypeDeepSeek:
		if m.BaseURL == "" {
			m.BaseURL = deepSeekBaseURL
		}
	}
	return m
}

// NewChatModel builds the provider client described by m. Configuration
// mistakes are permanent errors.
func NewChatModel(ctx context.Context, m ModelConfig) (ChatModel, error) {
	m = m.WithDefaults()
	if m.ModelName == "" {
		return nil, errkind.AsPermanent(fmt.Errorf("model %q: model_name is empty", m.Name))
	}
	var (
		cm  ChatModel
		err error
	)
	switch m.APIType {
	case ModelTypeARK:
		cm, err = ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     m.BaseURL,
			APIKey:      m.APIKey,
			Model:       m.ModelName,
			Temperature: m.Temperature,
			MaxTokens:   &m.MaxTokens,
		})
	case ModelTypeOpenAI, ModelTypeDeepSeek:
		// DeepSeek uses OpenAI-compatible API
		cm, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     m.BaseURL,
			APIKey:      m.APIKey,
			Model:       m.ModelName,
			Temperature: m.Temperature,
			MaxTokens:   &m.MaxTokens,
			Timeout:     m.Timeout,
		})
	case ModelTypeDashScope:
		cm, err = qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
			BaseURL:     m.BaseURL,
			APIKey:      m.APIKey,
			Model:       m.ModelName,
			Temperature: m.Temperature,
			MaxTokens:   &m.MaxTokens,
			Timeout:     m.Timeout,
		})
	case ModelTypeOllama:
		cm, err = ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: m.BaseURL,
			Model:   m.ModelName,
		})
	case ModelTypeClaude:
		var baseURL *string
		if m.BaseURL != "" {
			baseURL = &m.BaseURL
		}
		cm, err = claude.NewChatModel(ctx, &claude.Config{
			BaseURL:     baseURL,
			APIKey:      m.APIKey,
			Model:       m.ModelName,
			Temperature: m.Temperature,
			MaxTokens:   m.MaxTokens,
		})
	default:
		return nil, errkind.AsPermanent(fmt.Errorf("model %q: unsupported model type %q", m.Name, m.APIType))
	}
	if err != nil {
		return nil, errkind.AsPermanent(fmt.Errorf("model %q: %w", m.Name, err))
	}
	return cm, nil
}
