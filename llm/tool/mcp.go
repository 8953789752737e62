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

package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/abdoc/internal/log"
	emcp "github.com/cloudwego/eino-ext/components/tool/mcp"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

type MCPConfig struct {
	Name    string   `yaml:"name"`
	Type    MCPType  `yaml:"type"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Envs    []string `yaml:"envs"`
	SSEURL  string   `yaml:"sse_url"`
	// Tools keeps only the named tools, empty keeps all.
	Tools []string `yaml:"tools"`
}

type MCPType string

const (
	MCPTypeStdio MCPType = "stdio"
	MCPTypeSSE   MCPType = "sse"
)

const (
	clientName    = "abdoc"
	clientVersion = "1.0.0"
)

type MCPClient struct {
	name  string
	cli   *client.Client
	tools []string
}

func NewMCPClient(opts MCPConfig) (*MCPClient, error) {
	var cli *client.Client
	var err error
	switch opts.Type {
	case MCPTypeStdio:
		if opts.Command == "" {
			return nil, errkind.AsPermanent(errors.New("command is empty"))
		}
		cli, err = client.NewStdioMCPClient(opts.Command, opts.Envs, opts.Args...)
	case MCPTypeSSE:
		if opts.SSEURL == "" {
			return nil, errkind.AsPermanent(errors.New("sse url is empty"))
		}
		cli, err = client.NewSSEMCPClient(opts.SSEURL)
	default:
		return nil, errkind.AsPermanent(fmt.Errorf("unsupported mcp type %q", opts.Type))
	}
	if err != nil {
		return nil, err
	}
	return &MCPClient{name: opts.Name, cli: cli, tools: opts.Tools}, nil
}

func (c *MCPClient) Start(ctx context.Context) error {
	if err := c.cli.Start(ctx); err != nil {
		return err
	}
	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}
	_, err := c.cli.Initialize(ctx, initRequest)
	return err
}

func (c *MCPClient) GetTools(ctx context.Context) ([]Tool, error) {
	mcpTools, err := emcp.GetTools(ctx, &emcp.Config{Cli: c.cli, ToolNameList: c.tools})
	if err != nil {
		return nil, err
	}
	tools := make([]Tool, 0, len(mcpTools))
	for _, t := range mcpTools {
		tools = append(tools, t)
	}
	return tools, nil
}

func (c *MCPClient) Close() error {
	return c.cli.Close()
}

// MCPTools owns the clients started for a set of configured servers.
type MCPTools struct {
	clients []*MCPClient
	tools   []Tool
}

// StartMCPTools starts every configured server and collects its tools. A
// server that fails to start is logged and skipped.
func StartMCPTools(ctx context.Context, cfgs []MCPConfig) *MCPTools {
	ret := &MCPTools{}
	for _, cfg := range cfgs {
		cli, err := NewMCPClient(cfg)
		if err != nil {
			log.Error("[mcp] %s: %v", cfg.Name, err)
			continue
		}
		if err := cli.Start(ctx); err != nil {
			log.Error("[mcp] %s: start: %v", cfg.Name, err)
			_ = cli.Close()
			continue
		}
		tools, err := cli.GetTools(ctx)
		if err != nil {
			log.Error("[mcp] %s: list tools: %v", cfg.Name, err)
			_ = cli.Close()
			continue
		}
		log.Info("[mcp] %s: %d tools", cfg.Name, len(tools))
		ret.clients = append(ret.clients, cli)
		ret.tools = append(ret.tools, tools...)
	}
	return ret
}

func (m *MCPTools) GetTools() []Tool {
	if m == nil {
		return nil
	}
	return m.tools
}

func (m *MCPTools) Close() error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, c := range m.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mcp %s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
