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
	"testing"

	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deltas(parts ...string) *schema.StreamReader[*schema.Message] {
	msgs := make([]*schema.Message, 0, len(parts))
	for _, p := range parts {
		msgs = append(msgs, schema.AssistantMessage(p, nil))
	}
	return schema.StreamReaderFromArray(msgs)
}

type scripted struct {
	replies [][]string
	inputs  [][]*schema.Message
	err     error
}

func (s *scripted) stream(_ context.Context, input []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	return deltas(next...), nil
}

func TestStreamSession_Concatenates(t *testing.T) {
	sc := &scripted{replies: [][]string{{"# Title", "\n", "body"}}}
	s := NewStreamSession("test", sc.stream, SessionOptions{})

	out, err := Ask(context.Background(), s, "write docs")
	require.NoError(t, err)
	assert.Equal(t, "# Title\nbody", out)
	assert.Len(t, sc.inputs, 1)
}

func TestStreamSession_Refine(t *testing.T) {
	sc := &scripted{replies: [][]string{{"draft"}, {"final ", "answer"}}}
	s := NewStreamSession("test", sc.stream, SessionOptions{Refine: true, RefinePrompt: "elaborate"})

	out, err := Ask(context.Background(), s, "write docs")
	require.NoError(t, err)
	assert.Equal(t, "final answer", out)

	require.Len(t, sc.inputs, 2)
	second := sc.inputs[1]
	require.Len(t, second, 3)
	assert.Equal(t, schema.Assistant, second[1].Role)
	assert.Equal(t, "draft", second[1].Content)
	assert.Equal(t, "elaborate", second[2].Content)
}

func TestStreamSession_RefineKeepsDraftOnEmptyAnswer(t *testing.T) {
	sc := &scripted{replies: [][]string{{"draft"}, {}}}
	s := NewStreamSession("test", sc.stream, SessionOptions{Refine: true})

	out, err := Ask(context.Background(), s, "write docs")
	require.NoError(t, err)
	assert.Equal(t, "draft", out)
}

func TestStreamSession_ErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		want errkind.Kind
	}{
		{errors.New("dial: read tcp 10.0.0.1:443: connection reset by peer"), errkind.Transient},
		{errors.New("status code: 429, too many requests"), errkind.Transient},
		{errors.New("invalid api key"), errkind.Unknown},
		{context.Canceled, errkind.Cancelled},
		{errkind.AsPermanent(errors.New("model not found: 503")), errkind.Permanent},
	}
	for _, tt := range tests {
		s := NewStreamSession("test", (&scripted{err: tt.err}).stream, SessionOptions{})
		_, err := Ask(context.Background(), s, "hi")
		require.Error(t, err)
		assert.Equal(t, tt.want, errkind.Of(err), tt.err.Error())
	}
}

func TestSessionFunc(t *testing.T) {
	var got []*schema.Message
	s := SessionFunc(func(_ context.Context, in []*schema.Message) (string, error) {
		got = in
		return "ok", nil
	})
	out, err := Ask(context.Background(), s, "ping")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, schema.User, got[0].Role)
}

func TestAppendSysPrompt(t *testing.T) {
	in := []*schema.Message{schema.UserMessage("q")}
	assert.Len(t, appendSysPrompt("", in), 1)

	out := appendSysPrompt("you are a writer", in)
	require.Len(t, out, 2)
	assert.Equal(t, schema.System, out[0].Role)

	mod := newMessageModifier("sys", "m", 3)
	withNotice := mod(context.Background(), []*schema.Message{schema.UserMessage("a"), schema.UserMessage("b")})
	assert.Equal(t, stepLimitNotice, withNotice[len(withNotice)-1].Content)
}

func TestNewModelType(t *testing.T) {
	assert.Equal(t, ModelTypeClaude, NewModelType("Anthropic"))
	assert.Equal(t, ModelTypeDashScope, NewModelType("qwen"))
	assert.Equal(t, ModelTypeUnknown, NewModelType("mystery"))

	var mt ModelType
	require.NoError(t, mt.UnmarshalText([]byte("doubao")))
	assert.Equal(t, ModelTypeARK, mt)
}

func TestNewChatModel_ConfigErrors(t *testing.T) {
	_, err := NewChatModel(context.Background(), ModelConfig{Name: "x", APIType: ModelTypeOpenAI})
	assert.True(t, errkind.Is(err, errkind.Permanent))

	_, err = NewChatModel(context.Background(), ModelConfig{Name: "x", ModelName: "m"})
	assert.True(t, errkind.Is(err, errkind.Permanent))

	m := ModelConfig{APIType: ModelTypeDeepSeek}.WithDefaults()
	assert.Equal(t, deepSeekBaseURL, m.BaseURL)
	assert.Equal(t, defaultMaxTokens, m.MaxTokens)
}
