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

package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0o644))
	}
}

func TestCatalogue(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"go.mod",
		"cmd/app/main.go",
		"internal/store/store.go",
		"internal/store/testdata/big.json",
		"node_modules/x/index.js",
		".git/HEAD",
		"web/logo.png",
	)

	got, err := Catalogue(root, CatalogueOptions{Excludes: []string{"internal/store/testdata"}})
	require.NoError(t, err)
	assert.Equal(t, "cmd/\ncmd/app/\ncmd/app/main.go\ngo.mod\ninternal/\ninternal/store/\ninternal/store/store.go\nweb/\n", got)
}

func TestCatalogue_MaxEntries(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.go", "b.go", "c.go")
	got, err := Catalogue(root, CatalogueOptions{MaxEntries: 2})
	require.NoError(t, err)
	assert.Equal(t, "a.go\nb.go\n", got)
}

func TestMissingRootIsPermanent(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	_, err := Catalogue(missing, CatalogueOptions{})
	assert.True(t, errkind.Is(err, errkind.Permanent))
	_, err = ReadReadme(missing)
	assert.True(t, errkind.Is(err, errkind.Permanent))

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = Catalogue(file, CatalogueOptions{})
	assert.True(t, errkind.Is(err, errkind.Permanent))
}

func TestReadReadme(t *testing.T) {
	root := t.TempDir()
	got, err := ReadReadme(root)
	require.NoError(t, err)
	assert.Empty(t, got)

	writeFiles(t, root, "README.md")
	got, err = ReadReadme(root)
	require.NoError(t, err)
	assert.Equal(t, "README.md", got)
}
