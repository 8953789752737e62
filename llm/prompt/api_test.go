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

package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAll(t *testing.T) {
	data := Data{
		GitURL:    "https://example.com/acme/widget.git",
		Branch:    "main",
		Catalogue: "cmd/main.go\ninternal/widget.go",
		Readme:    "# widget",
		Title:     "Getting Started",
		Prompt:    "installation and first run",
		Schema:    `{"type":"object"}`,
	}
	for _, name := range []Name{Readme, Classify, Overview, Structure, Document} {
		out, err := Render(name, data)
		require.NoError(t, err, name)
		assert.Contains(t, out, data.GitURL, name)
	}
}

func TestDocumentPrompt(t *testing.T) {
	out := TemplatePrompt{Name: Document, Data: Data{Title: "Storage", Catalogue: "store.go"}}.String()
	assert.Contains(t, out, `"Storage"`)
	assert.NotContains(t, out, "must cover")
	// Markdown must not be HTML-escaped.
	out, err := Render(Document, Data{Title: "A & B <x>"})
	require.NoError(t, err)
	assert.Contains(t, out, "A & B <x>")
}

func TestRenderUnknown(t *testing.T) {
	_, err := Render("missing.tmpl", Data{})
	assert.Error(t, err)
}

func TestEmbeddedText(t *testing.T) {
	assert.NotEmpty(t, System)
	assert.NotEmpty(t, Refine)
	assert.Equal(t, "x", NewTextPrompt("x").String())
}
