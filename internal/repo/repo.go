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

// Package repo reads a local repository checkout.
package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cloudwego/abdoc/internal/errkind"
)

// DefaultExcludes are skipped by Catalogue in addition to hidden entries.
var DefaultExcludes = []string{
	"node_modules", "vendor", "bin", "obj", "dist", "build", "target",
	"*.min.js", "*.map", "*.lock", "*.png", "*.jpg", "*.jpeg", "*.gif", "*.ico",
	"*.svg", "*.woff", "*.woff2", "*.ttf", "*.pdf", "*.zip", "*.exe", "*.dll", "*.so",
}

// DefaultMaxEntries bounds the listing so it fits in a prompt.
const DefaultMaxEntries = 2000

type CatalogueOptions struct {
	// Excludes are glob patterns matched against entry names and
	// slash-separated relative paths.
	Excludes   []string
	MaxEntries int
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return errkind.AsPermanent(fmt.Errorf("repository %s: %w", root, err))
	}
	if !info.IsDir() {
		return errkind.AsPermanent(fmt.Errorf("repository %s is not a directory", root))
	}
	return nil
}

func excluded(patterns []string, name, rel string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
		if ok, _ := path.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Catalogue renders the repository tree as one slash-separated path per
// line, directories suffixed with "/".
func Catalogue(root string, opts CatalogueOptions) (string, error) {
	if err := checkRoot(root); err != nil {
		return "", err
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	patterns := append(append([]string(nil), DefaultExcludes...), opts.Excludes...)

	var (
		sb    strings.Builder
		count int
	)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if excluded(patterns, d.Name(), rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if count >= opts.MaxEntries {
			return filepath.SkipAll
		}
		count++
		sb.WriteString(rel)
		if d.IsDir() {
			sb.WriteByte('/')
		}
		sb.WriteByte('\n')
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", root, err)
	}
	return sb.String(), nil
}

var readmeNames = []string{"README.md", "readme.md", "Readme.md", "README.markdown", "README.rst", "README.txt", "README"}

// ReadReadme returns the top-level README, or "" when there is none.
func ReadReadme(root string) (string, error) {
	if err := checkRoot(root); err != nil {
		return "", err
	}
	for _, name := range readmeNames {
		bs, err := os.ReadFile(filepath.Join(root, name))
		if err == nil {
			return string(bs), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
	}
	return "", nil
}
