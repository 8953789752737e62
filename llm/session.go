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
	"errors"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/abdoc/internal/log"
	"github.com/cloudwego/abdoc/internal/utils"
	"github.com/cloudwego/abdoc/llm/prompt"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// StreamFunc opens one streamed model turn.
type StreamFunc func(ctx context.Context, input []*schema.Message) (*schema.StreamReader[*schema.Message], error)

type SessionOptions struct {
	// Refine issues one extra turn asking the model to elaborate on its
	// own answer, and returns that answer instead.
	Refine bool
	// RefinePrompt overrides the embedded refine prompt.
	RefinePrompt string
	// Timeout bounds each streamed turn, zero means no limit.
	Timeout time.Duration
}

var _ Session = (*StreamSession)(nil)

// StreamSession concatenates the streamed deltas of each turn.
type StreamSession struct {
	name   string
	stream StreamFunc
	opts   SessionOptions
}

func NewStreamSession(name string, fn StreamFunc, opts SessionOptions) *StreamSession {
	return &StreamSession{name: name, stream: fn, opts: opts}
}

// NewPlainSession talks to the model directly without tools.
func NewPlainSession(cm ChatModel, m ModelConfig, opts SessionOptions) *StreamSession {
	var mopts []model.Option
	if m.Temperature != nil {
		mopts = append(mopts, model.WithTemperature(*m.Temperature))
	}
	if m.MaxTokens > 0 {
		mopts = append(mopts, model.WithMaxTokens(m.MaxTokens))
	}
	fn := func(ctx context.Context, input []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
		return cm.Stream(ctx, input, mopts...)
	}
	return NewStreamSession(m.Name, fn, opts)
}

func (s *StreamSession) Chat(ctx context.Context, input []*schema.Message) (string, error) {
	out, err := s.turn(ctx, input)
	if err != nil {
		return "", err
	}
	if !s.opts.Refine || strings.TrimSpace(out) == "" {
		return out, nil
	}

	ask := s.opts.RefinePrompt
	if ask == "" {
		ask = prompt.Refine
	}
	history := make([]*schema.Message, 0, len(input)+2)
	history = append(history, input...)
	history = append(history, schema.AssistantMessage(out, nil), schema.UserMessage(ask))
	log.Debug("[%s] refine turn, first answer %d bytes", s.name, len(out))
	refined, err := s.turn(ctx, history)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(refined) == "" {
		return out, nil
	}
	return refined, nil
}

func (s *StreamSession) turn(ctx context.Context, input []*schema.Message) (string, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	sr, err := s.stream(ctx, input)
	if err != nil {
		return "", classify(utils.WrapError(err, "%s: open stream", s.name))
	}
	defer sr.Close()

	var sb strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", classify(utils.WrapError(err, "%s: receive stream", s.name))
		}
		if msg != nil {
			sb.WriteString(msg.Content)
		}
	}
	return sb.String(), nil
}

var retryableMarks = []string{
	"timeout",
	"connection reset",
	"connection refused",
	"operation timed out",
	"context deadline exceeded",
	"read tcp",
	"write tcp",
	"unexpected eof",
	"rate limit",
	"too many requests",
	"429",
	"502",
	"503",
	"504",
}

// IsRetryable reports whether err looks like a transport failure worth
// another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, mark := range retryableMarks {
		if strings.Contains(msg, mark) {
			return true
		}
	}
	return false
}

// classify tags transport failures as transient. Errors that already carry
// a kind, including context errors, are left as they are.
func classify(err error) error {
	if err == nil || errkind.Of(err) != errkind.Unknown {
		return err
	}
	if IsRetryable(err) {
		return errkind.AsTransient(err)
	}
	return err
}
