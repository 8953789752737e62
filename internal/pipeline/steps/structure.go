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

package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/abdoc/internal/content"
	"github.com/cloudwego/abdoc/internal/domain"
	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/utils"
	"github.com/cloudwego/abdoc/llm"
	"github.com/cloudwego/abdoc/llm/prompt"
	"github.com/google/uuid"
)

// SnapshotStructure is the snapshot kind published by the structure step.
const SnapshotStructure = "documentation-structure"

// maxStructureDepth bounds the nesting of proposed pages.
const maxStructureDepth = 4

// Structure is the documentation tree the model proposes.
type Structure struct {
	Items []StructureItem `json:"items" jsonschema:"required,minItems=1,description=top-level documentation pages"`
}

type StructureItem struct {
	Name     string          `json:"name" jsonschema:"required,description=short kebab-case identifier of the page"`
	Title    string          `json:"title" jsonschema:"required,description=title shown to readers"`
	Prompt   string          `json:"prompt" jsonschema:"required,description=what the page must cover and which source files matter"`
	Children []StructureItem `json:"children,omitempty" jsonschema:"description=nested pages"`
}

var structureSchema = utils.GetJSONSchema(&Structure{})

// Validate checks what the schema requires and Go's decoder does not.
func (s *Structure) Validate() error {
	if len(s.Items) == 0 {
		return errors.New("structure has no items")
	}
	return validateItems(s.Items, "items", 1)
}

func validateItems(items []StructureItem, where string, depth int) error {
	if depth > maxStructureDepth {
		return fmt.Errorf("%s: nested deeper than %d levels", where, maxStructureDepth)
	}
	for i, it := range items {
		at := fmt.Sprintf("%s[%d]", where, i)
		if strings.TrimSpace(it.Title) == "" {
			return fmt.Errorf("%s: title is empty", at)
		}
		if err := validateItems(it.Children, at+".children", depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Flatten turns the tree into catalog entries in depth-first order.
func (s *Structure) Flatten(documentID, warehouseID string) []*domain.DocumentCatalog {
	var out []*domain.DocumentCatalog
	var walk func(items []StructureItem, parent string)
	walk = func(items []StructureItem, parent string) {
		for _, it := range items {
			c := &domain.DocumentCatalog{
				ID:          uuid.NewString(),
				DocumentID:  documentID,
				WarehouseID: warehouseID,
				ParentID:    parent,
				Name:        it.Name,
				Title:       strings.TrimSpace(it.Title),
				Prompt:      it.Prompt,
				Order:       len(out),
			}
			out = append(out, c)
			walk(it.Children, c.ID)
		}
	}
	walk(s.Items, "")
	return out
}

// ParseStructure reads the structure out of a model reply. Malformed
// replies are transient: asking again usually fixes them.
func ParseStructure(raw string) (*Structure, error) {
	body := content.ExtractTagged(content.Extract(raw), "documentation_structure")
	doc, err := content.ExtractJSON(body)
	if err != nil {
		return nil, errkind.AsTransient(err)
	}
	var s Structure
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return nil, errkind.AsTransient(fmt.Errorf("decode structure: %w", err))
	}
	if err := s.Validate(); err != nil {
		return nil, errkind.AsTransient(err)
	}
	return &s, nil
}

// StructureStep asks the model for the documentation tree and stores it as
// the document's catalog.
type StructureStep struct {
	pipeline.BaseStep
}

var _ pipeline.HealthChecker = (*StructureStep)(nil)

func NewStructureStep() *StructureStep {
	return &StructureStep{BaseStep: pipeline.BaseStep{
		StepName: "structure",
		Cfg: pipeline.StepConfig{
			Strategy:         pipeline.Required,
			RetryStrategy:    pipeline.RetrySmart,
			MaxRetryAttempts: 3,
			RetryDelay:       5 * time.Second,
			Timeout:          15 * time.Minute,
		},
	}}
}

// CanExecute skips the step when pending catalog entries were loaded to
// resume an earlier run.
func (s *StructureStep) CanExecute(pctx *pipeline.Context) (bool, error) {
	return len(pctx.Catalogs) == 0, nil
}

func (s *StructureStep) Execute(ctx context.Context, pctx *pipeline.Context) (*pipeline.Context, error) {
	sess, err := session(pctx.ToolSession, s.Name())
	if err != nil {
		return nil, err
	}
	data := promptData(pctx)
	data.Schema = structureSchema
	input, err := prompt.Render(prompt.Structure, data)
	if err != nil {
		return nil, errkind.AsPermanent(err)
	}
	raw, err := llm.Ask(ctx, sess, input)
	if err != nil {
		return nil, err
	}
	st, err := ParseStructure(raw)
	if err != nil {
		return nil, err
	}
	catalogs := st.Flatten(documentID(pctx), warehouseID(pctx))
	if pctx.Store != nil && pctx.Document != nil {
		if err := pctx.Store.ReplaceCatalogs(ctx, pctx.Document.ID, catalogs); err != nil {
			return nil, err
		}
	}
	pctx.Catalogs = catalogs
	pctx.Publish(s.Name(), pipeline.NewSnapshot(SnapshotStructure, st, []byte(raw)))
	return pctx, nil
}

func (s *StructureStep) HealthCheck(_ context.Context, pctx *pipeline.Context) error {
	if len(pctx.Catalogs) < 2 {
		return fmt.Errorf("structure has only %d page(s)", len(pctx.Catalogs))
	}
	return nil
}
