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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloudwego/abdoc/internal/errkind"
	abutil "github.com/cloudwego/abdoc/internal/utils"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

// Tool is any tool the agent can be given.
type Tool = tool.BaseTool

const (
	ToolReadFile      = "read_file"
	DescReadFile      = "read a source file of the repository, optionally a line range"
	ToolListDirectory = "list_directory"
	DescListDirectory = "list the entries of a repository directory"
)

const defaultMaxFileBytes = 256 * 1024

type FileToolsOptions struct {
	// Root is the repository checkout. Paths outside it are rejected.
	Root string
	// MaxFileBytes truncates large files, default 256KiB.
	MaxFileBytes int
}

type FileTools struct {
	opts  FileToolsOptions
	root  string
	tools map[string]tool.InvokableTool
	order []string
}

func NewFileTools(opts FileToolsOptions) (*FileTools, error) {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = defaultMaxFileBytes
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, errkind.AsPermanent(err)
	}
	ret := &FileTools{opts: opts, root: root, tools: map[string]tool.InvokableTool{}}

	marshal := utils.WithMarshalOutput(func(ctx context.Context, output interface{}) (string, error) {
		return abutil.MarshalJSONIndent(output)
	})

	tt, err := utils.InferTool(ToolReadFile, DescReadFile, ret.ReadFile, marshal)
	if err != nil {
		return nil, err
	}
	ret.add(ToolReadFile, tt)

	tt, err = utils.InferTool(ToolListDirectory, DescListDirectory, ret.ListDirectory, marshal)
	if err != nil {
		return nil, err
	}
	ret.add(ToolListDirectory, tt)
	return ret, nil
}

func (t *FileTools) add(name string, tt tool.InvokableTool) {
	t.tools[name] = tt
	t.order = append(t.order, name)
}

func (t *FileTools) GetTools() []Tool {
	ret := make([]Tool, 0, len(t.order))
	for _, name := range t.order {
		ret = append(ret, t.tools[name])
	}
	return ret
}

func (t *FileTools) GetTool(name string) Tool {
	return t.tools[name]
}

// resolve maps a repository-relative path to an absolute one inside the root.
func (t *FileTools) resolve(p string) (abs, rel string, err error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(p, "/")))
	abs = filepath.Join(t.root, clean)
	rel, err = filepath.Rel(t.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", errkind.AsPermanent(fmt.Errorf("path %q is outside the repository", p))
	}
	return abs, filepath.ToSlash(rel), nil
}

type ReadFileReq struct {
	Path      string `json:"path" jsonschema:"description=the file path relative to the repository root"`
	StartLine int    `json:"start_line,omitempty" jsonschema:"description=first line to return (1-based), optional"`
	EndLine   int    `json:"end_line,omitempty" jsonschema:"description=last line to return (inclusive), optional"`
}

type ReadFileResp struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Lines     int    `json:"lines"`
	Truncated bool   `json:"truncated,omitempty"`
}

func (t *FileTools) ReadFile(ctx context.Context, req ReadFileReq) (*ReadFileResp, error) {
	abs, rel, err := t.resolve(req.Path)
	if err != nil {
		return nil, err
	}
	bs, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	RecorderFrom(ctx).Record(rel)

	ret := &ReadFileResp{Path: rel}
	if len(bs) > t.opts.MaxFileBytes {
		bs = bs[:t.opts.MaxFileBytes]
		ret.Truncated = true
	}
	lines := strings.Split(string(bs), "\n")
	ret.Lines = len(lines)
	if req.StartLine > 0 || req.EndLine > 0 {
		start, end := req.StartLine, req.EndLine
		if start < 1 {
			start = 1
		}
		if end <= 0 || end > len(lines) {
			end = len(lines)
		}
		if start > end {
			return nil, errkind.AsPermanent(fmt.Errorf("invalid line range %d-%d for %s", req.StartLine, req.EndLine, rel))
		}
		lines = lines[start-1 : end]
	}
	ret.Content = strings.Join(lines, "\n")
	return ret, nil
}

type ListDirectoryReq struct {
	Path string `json:"path" jsonschema:"description=the directory path relative to the repository root, empty for the root"`
}

type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

type ListDirectoryResp struct {
	Path    string     `json:"path"`
	Entries []DirEntry `json:"entries"`
}

func (t *FileTools) ListDirectory(ctx context.Context, req ListDirectoryReq) (*ListDirectoryResp, error) {
	abs, rel, err := t.resolve(req.Path)
	if err != nil {
		return nil, err
	}
	des, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", rel, err)
	}
	ret := &ListDirectoryResp{Path: rel}
	for _, de := range des {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		e := DirEntry{Name: de.Name(), IsDir: de.IsDir()}
		if !e.IsDir {
			if info, err := de.Info(); err == nil {
				e.Size = info.Size()
			}
		}
		ret.Entries = append(ret.Entries, e)
	}
	sort.Slice(ret.Entries, func(i, j int) bool {
		if ret.Entries[i].IsDir != ret.Entries[j].IsDir {
			return ret.Entries[i].IsDir
		}
		return ret.Entries[i].Name < ret.Entries[j].Name
	})
	return ret, nil
}
