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
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

type Prompt interface {
	String() string
}

type TextPrompt string

func (p TextPrompt) String() string {
	return string(p)
}

func NewTextPrompt(content string) Prompt {
	return TextPrompt(content)
}

// Name identifies an embedded template.
type Name string

const (
	Readme    Name = "readme.tmpl"
	Classify  Name = "classify.tmpl"
	Overview  Name = "overview.tmpl"
	Structure Name = "structure.tmpl"
	Document  Name = "document.tmpl"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed templates/system.md
var System string

//go:embed templates/refine.md
var Refine string

var templates = template.Must(template.New("").Option("missingkey=error").ParseFS(templateFS, "templates/*.tmpl"))

// Data is the input shared by every template. Fields a template does not
// reference are ignored.
type Data struct {
	GitURL         string
	Branch         string
	Catalogue      string
	Readme         string
	Classification string
	Title          string
	Prompt         string
	Schema         string
}

// TemplatePrompt is an embedded template bound to its data.
type TemplatePrompt struct {
	Name Name
	Data Data
}

func (p TemplatePrompt) String() string {
	s, err := Render(p.Name, p.Data)
	if err != nil {
		panic(err)
	}
	return s
}

// Render executes the named template.
func Render(name Name, data Data) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(name), data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}
