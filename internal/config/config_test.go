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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudwego/abdoc/llm"
	"github.com/cloudwego/abdoc/llm/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
log_level: debug
store:
  path: /var/lib/abdoc/docs.db
models:
  - name: main
    type: doubao
    model_name: ep-123
    api_key: k
    temperature: 0.3
    timeout: 2m
  - name: cheap
    type: qwen
    model_name: qwen-turbo
tool_model: main
plain_model: cheap
document:
  concurrency: 3
  max_attempts: 2
  retry_delay: 500ms
  stagger: 0s
  refine: true
repository:
  excludes: ["*.lock", "testdata"]
mcp:
  - name: fetch
    type: stdio
    command: uvx
    args: [mcp-server-fetch]
`

func write(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "abdoc.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad(t *testing.T) {
	cfg, err := Load(write(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/lib/abdoc/docs.db", cfg.Store.Path)
	require.Len(t, cfg.Models, 2)
	assert.Equal(t, llm.ModelTypeARK, cfg.Models[0].APIType)
	assert.Equal(t, llm.ModelTypeDashScope, cfg.Models[1].APIType)
	require.NotNil(t, cfg.Models[0].Temperature)
	assert.InDelta(t, 0.3, *cfg.Models[0].Temperature, 1e-6)
	assert.Equal(t, 2*time.Minute, cfg.Models[0].Timeout)

	assert.Equal(t, 3, cfg.Document.Concurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.Document.RetryDelay)
	assert.Zero(t, cfg.Document.Stagger)
	assert.True(t, cfg.Document.Refine)
	assert.Equal(t, 30, cfg.Document.ToolMaxSteps, "unset fields keep their defaults")
	assert.Equal(t, []string{"*.lock", "testdata"}, cfg.Repository.Excludes)
	require.Len(t, cfg.MCP, 1)
	assert.Equal(t, tool.MCPType("stdio"), cfg.MCP[0].Type)

	so := cfg.SchedulerOptions()
	assert.Equal(t, 3, so.Concurrency)
	assert.Equal(t, 2, so.MaxAttempts)
	assert.True(t, cfg.SessionOptions().Refine)

	m, err := cfg.Model(cfg.PlainModel)
	require.NoError(t, err)
	assert.Equal(t, "qwen-turbo", m.ModelName)
	m, err = cfg.Model("")
	require.NoError(t, err)
	assert.Equal(t, "main", m.Name)
	_, err = cfg.Model("nope")
	assert.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultStorePath, cfg.Store.Path)
	assert.Equal(t, 5, cfg.Document.Concurrency)
	assert.Equal(t, 5, cfg.Document.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Document.RetryDelay)
	assert.Equal(t, time.Second, cfg.Document.Stagger)
	_, err = cfg.Model("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"syntax":        "models: [",
		"no name":       "models:\n  - type: openai\n",
		"unknown type":  "models:\n  - name: a\n    type: nonsense\n",
		"duplicate":     "models:\n  - {name: a, type: openai}\n  - {name: a, type: claude}\n",
		"undefined ref": "models:\n  - {name: a, type: openai}\ntool_model: b\n",
		"negative":      "document:\n  concurrency: -1\n",
		"mcp no name":   "mcp:\n  - type: sse\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, body))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := func(m map[string]string) func(string) (string, bool) {
		return func(k string) (string, bool) {
			v, ok := m[k]
			return v, ok
		}
	}

	cfg := Defaults()
	require.NoError(t, cfg.ApplyEnv(env(map[string]string{EnvConcurrency: "8", EnvRefine: "true"})))
	assert.Equal(t, 8, cfg.Document.Concurrency)
	assert.True(t, cfg.Document.Refine)

	cfg = Defaults()
	require.NoError(t, cfg.ApplyEnv(env(map[string]string{EnvConcurrency: " "})))
	assert.Equal(t, 5, cfg.Document.Concurrency)

	assert.Error(t, Defaults().ApplyEnv(env(map[string]string{EnvConcurrency: "0"})))
	assert.Error(t, Defaults().ApplyEnv(env(map[string]string{EnvConcurrency: "many"})))
	assert.Error(t, Defaults().ApplyEnv(env(map[string]string{EnvRefine: "maybe"})))
}
