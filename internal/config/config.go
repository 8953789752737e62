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

// Package config loads the YAML configuration of the generator.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/abdoc/internal/scheduler"
	"github.com/cloudwego/abdoc/llm"
	"github.com/cloudwego/abdoc/llm/tool"
	"gopkg.in/yaml.v3"
)

// Environment overrides applied by ApplyEnv.
const (
	EnvConcurrency = "TASK_MAX_SIZE_PER_USER"
	EnvRefine      = "REFINE_AND_ENHANCE_QUALITY"
)

const DefaultStorePath = "abdoc.db"

type Config struct {
	LogLevel string `yaml:"log_level"`
	Store    Store  `yaml:"store"`

	Models []llm.ModelConfig `yaml:"models"`
	// ToolModel names the model driving the tool-calling sessions, the
	// first model when empty.
	ToolModel string `yaml:"tool_model"`
	// PlainModel names the model used without tools, ToolModel when empty.
	PlainModel string `yaml:"plain_model"`

	Document   Document         `yaml:"document"`
	Repository Repository       `yaml:"repository"`
	MCP        []tool.MCPConfig `yaml:"mcp"`
}

type Store struct {
	Path string `yaml:"path"`
}

type Document struct {
	// Concurrency caps the pages generated at the same time.
	Concurrency int           `yaml:"concurrency"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Stagger     time.Duration `yaml:"stagger"`
	// Refine asks the model to elaborate its answer once more.
	Refine       bool          `yaml:"refine"`
	ToolMaxSteps int           `yaml:"tool_max_steps"`
	TurnTimeout  time.Duration `yaml:"turn_timeout"`
	// Strict runs every step once and stops at the first failure.
	Strict bool `yaml:"strict"`
}

type Repository struct {
	Excludes     []string `yaml:"excludes"`
	MaxFileBytes int      `yaml:"max_file_bytes"`
}

func Defaults() *Config {
	so := scheduler.DefaultOptions()
	return &Config{
		LogLevel: "info",
		Store:    Store{Path: DefaultStorePath},
		Document: Document{
			Concurrency:  so.Concurrency,
			MaxAttempts:  so.MaxAttempts,
			RetryDelay:   so.RetryDelay,
			Stagger:      so.Stagger,
			ToolMaxSteps: 30,
		},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	seen := map[string]bool{}
	for i, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("models[%d]: name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("models[%d]: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = true
		if m.APIType == llm.ModelTypeUnknown {
			return fmt.Errorf("model %s: unknown type", m.Name)
		}
	}
	for _, ref := range []string{c.ToolModel, c.PlainModel} {
		if ref != "" && !seen[ref] {
			return fmt.Errorf("model %q is not defined", ref)
		}
	}
	for i, m := range c.MCP {
		if m.Name == "" {
			return fmt.Errorf("mcp[%d]: name is required", i)
		}
	}
	if c.Document.Concurrency < 0 || c.Document.MaxAttempts < 0 {
		return errors.New("document: concurrency and max_attempts must not be negative")
	}
	return nil
}

// ApplyEnv overrides settings from the environment; lookup is os.LookupEnv
// in production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvConcurrency); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			return fmt.Errorf("%s: want a positive integer, got %q", EnvConcurrency, v)
		}
		c.Document.Concurrency = n
	}
	if v, ok := lookup(EnvRefine); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRefine, err)
		}
		c.Document.Refine = b
	}
	return nil
}

// Model returns the named model, or the first one for an empty name.
func (c *Config) Model(name string) (llm.ModelConfig, error) {
	if len(c.Models) == 0 {
		return llm.ModelConfig{}, errors.New("no model configured")
	}
	if name == "" {
		return c.Models[0], nil
	}
	for _, m := range c.Models {
		if m.Name == name {
			return m, nil
		}
	}
	return llm.ModelConfig{}, fmt.Errorf("model %q is not defined", name)
}

func (c *Config) SchedulerOptions() scheduler.Options {
	return scheduler.Options{
		Concurrency: c.Document.Concurrency,
		Stagger:     c.Document.Stagger,
		MaxAttempts: c.Document.MaxAttempts,
		RetryDelay:  c.Document.RetryDelay,
	}
}

func (c *Config) SessionOptions() llm.SessionOptions {
	return llm.SessionOptions{Refine: c.Document.Refine, Timeout: c.Document.TurnTimeout}
}
