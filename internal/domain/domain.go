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

// Package domain holds the persisted entities shared by the pipeline, the
// batch scheduler and the store.
package domain

import (
	"context"
	"time"
)

// Warehouse is one registered repository.
type Warehouse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"` // git URL
	Branch         string    `json:"branch"`
	LocalPath      string    `json:"local_path"`
	Readme         string    `json:"readme,omitempty"`
	Classification string    `json:"classification,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Document is the documentation set generated for a warehouse.
type Document struct {
	ID          string    `json:"id"`
	WarehouseID string    `json:"warehouse_id"`
	Overview    string    `json:"overview,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DocumentCatalog is one documentation page awaiting generation.
type DocumentCatalog struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	WarehouseID string `json:"warehouse_id"`
	ParentID    string `json:"parent_id,omitempty"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Prompt      string `json:"prompt"`
	Order       int    `json:"order"`
	IsCompleted bool   `json:"is_completed"`
}

// DocumentFileItem is the generated content of one catalog entry.
type DocumentFileItem struct {
	ID                string    `json:"id"`
	DocumentCatalogID string    `json:"document_catalog_id"`
	Title             string    `json:"title"`
	Content           string    `json:"content"`
	Size              int       `json:"size"`
	CreatedAt         time.Time `json:"created_at"`
}

// DocumentFileItemSource is one source file consulted while generating an item.
type DocumentFileItemSource struct {
	ID                 string `json:"id"`
	DocumentFileItemID string `json:"document_file_item_id"`
	Address            string `json:"address"`
	Name               string `json:"name"`
}

// Store is the persistence surface used by the pipeline steps. Implementations
// must be safe for concurrent use.
type Store interface {
	SaveReadme(ctx context.Context, warehouseID, readme string) error
	SaveClassification(ctx context.Context, warehouseID, classification string) error
	SaveOverview(ctx context.Context, documentID, overview string) error
	ReplaceCatalogs(ctx context.Context, documentID string, catalogs []*DocumentCatalog) error
	PendingCatalogs(ctx context.Context, documentID string) ([]*DocumentCatalog, error)
	// CompleteCatalog flips the completion flag and inserts item and sources in
	// one transaction.
	CompleteCatalog(ctx context.Context, catalogID string, item *DocumentFileItem, sources []DocumentFileItemSource) error
}
