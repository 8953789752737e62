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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cloudwego/abdoc/internal/config"
	"github.com/cloudwego/abdoc/internal/domain"
	"github.com/cloudwego/abdoc/internal/log"
	"github.com/cloudwego/abdoc/internal/orchestrator"
	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/pipeline/steps"
	"github.com/cloudwego/abdoc/internal/scheduler"
	"github.com/cloudwego/abdoc/internal/store"
	"github.com/cloudwego/abdoc/internal/utils"
	"github.com/cloudwego/abdoc/llm"
	"github.com/cloudwego/abdoc/llm/tool"
	"github.com/cloudwego/abdoc/version"
	cli "github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "abdoc",
		Usage: "generate repository documentation with LLM agents",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: "store", Usage: "SQLite database, overrides store.path"},
			&cli.BoolFlag{Name: "verbose", Usage: "debug logging"},
		},
		Commands: []*cli.Command{
			addCmd(),
			runCmd(),
			pendingCmd(),
			versionCmd(),
		},
	}
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and the environment. It is the only
// place the process environment is consulted.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if p := cmd.String("store"); p != "" {
		cfg.Store.Path = p
	}
	log.SetLogLevel(log.ParseLevel(cfg.LogLevel))
	if cmd.Bool("verbose") {
		log.SetLogLevel(log.DebugLevel)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	return st, nil
}

func addCmd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "register a local repository checkout and create its document",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "git URL of the repository", Required: true},
			&cli.StringFlag{Name: "branch", Value: "main"},
			&cli.StringFlag{Name: "name", Usage: "display name, defaults to the directory name"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			root := cmd.Args().First()
			if root == "" {
				return errors.New("repository path is required")
			}
			abs, err := filepath.Abs(root)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			name := cmd.String("name")
			if name == "" {
				name = filepath.Base(abs)
			}
			w := &domain.Warehouse{Name: name, Address: cmd.String("url"), Branch: cmd.String("branch"), LocalPath: abs}
			if err := st.AddWarehouse(ctx, w); err != nil {
				return err
			}
			doc := &domain.Document{WarehouseID: w.ID}
			if err := st.AddDocument(ctx, doc); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "warehouse %s\ndocument %s\n", w.ID, doc.ID)
			return nil
		},
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "generate the documentation of a document",
		ArgsUsage: "<document-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "strict", Usage: "run every step once and stop at the first failure"},
			&cli.BoolFlag{Name: "resume", Usage: "keep the existing catalog and generate only its pending pages"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return errors.New("document id is required")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Bool("strict") {
				cfg.Document.Strict = true
			}
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			doc, err := st.GetDocument(ctx, id)
			if err != nil {
				return err
			}
			w, err := st.GetWarehouse(ctx, doc.WarehouseID)
			if err != nil {
				return err
			}

			mcp := tool.StartMCPTools(ctx, cfg.MCP)
			defer mcp.Close()
			sessions, err := newSessions(ctx, cfg, mcp.GetTools())
			if err != nil {
				return err
			}

			list := steps.Default(steps.Options{
				Excludes:  cfg.Repository.Excludes,
				Scheduler: scheduler.New(cfg.SchedulerOptions()),
			})
			var p pipeline.Pipeline = pipeline.NewResilient(list...)
			if cfg.Document.Strict {
				p = pipeline.NewStrict(list...)
			}
			orch := orchestrator.New(p, sessions)
			orch.Resume = cmd.Bool("resume")

			ret, err := orch.Process(ctx, doc, w, st)
			printResult(ret)
			if err != nil {
				return err
			}
			if !ret.Success() {
				return fmt.Errorf("document %s: %s", doc.ID, ret.Message)
			}
			return nil
		},
	}
}

func newSessions(ctx context.Context, cfg *config.Config, extra []tool.Tool) (*orchestrator.ModelSessions, error) {
	toolCfg, err := cfg.Model(cfg.ToolModel)
	if err != nil {
		return nil, err
	}
	toolCfg = toolCfg.WithDefaults()
	toolModel, err := llm.NewChatModel(ctx, toolCfg)
	if err != nil {
		return nil, err
	}
	ms := &orchestrator.ModelSessions{
		ToolModel:    toolModel,
		ToolConfig:   toolCfg,
		Extra:        extra,
		MaxSteps:     cfg.Document.ToolMaxSteps,
		MaxFileBytes: cfg.Repository.MaxFileBytes,
		Options:      cfg.SessionOptions(),
	}
	if cfg.PlainModel != "" && cfg.PlainModel != toolCfg.Name {
		plainCfg, err := cfg.Model(cfg.PlainModel)
		if err != nil {
			return nil, err
		}
		plainCfg = plainCfg.WithDefaults()
		if ms.PlainModel, err = llm.NewChatModel(ctx, plainCfg); err != nil {
			return nil, err
		}
		ms.PlainConfig = plainCfg
	}
	return ms, nil
}

func printResult(ret *pipeline.ProcessingResult) {
	if ret == nil {
		return
	}
	fmt.Fprintf(os.Stdout, "status: %s (%s)\n", ret.Status, ret.Duration.Round(time.Millisecond))
	if ret.Message != "" && !ret.Success() {
		fmt.Fprintf(os.Stdout, "reason: %s\n", ret.Message)
	}
	if ret.Summary == nil {
		return
	}
	for _, name := range ret.Summary.ExecutionOrder {
		r := ret.Summary.Results[name]
		fmt.Fprintf(os.Stdout, "  %-10s %-9s attempts=%d %s\n", name, r.Status, r.Attempts, r.Elapsed.Round(time.Millisecond))
		for _, w := range r.Warnings {
			fmt.Fprintf(os.Stdout, "    warning: %s\n", w)
		}
	}
}

func pendingCmd() *cli.Command {
	return &cli.Command{
		Name:      "pending",
		Usage:     "list the catalog entries of a document that have no page yet",
		ArgsUsage: "<document-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return errors.New("document id is required")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			pending, err := st.PendingCatalogs(ctx, id)
			if err != nil {
				return err
			}
			out, err := utils.MarshalJSONIndent(pending)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, out)
			return nil
		},
	}
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print the version of abdoc",
		Action: func(context.Context, *cli.Command) error {
			fmt.Fprintf(os.Stdout, "%s\n", version.Version)
			return nil
		},
	}
}
