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

// Package store persists warehouses, documents and generated pages in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/abdoc/internal/domain"
	"github.com/cloudwego/abdoc/internal/errkind"
	"github.com/cloudwego/abdoc/internal/utils"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

const Memory = ":memory:"

var _ domain.Store = (*Store)(nil)

type Store struct {
	db   *sql.DB
	path string
}

func dsn(path string) string {
	if path == Memory {
		return Memory + "?_foreign_keys=ON"
	}
	return "file:" + path + "?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000"
}

// Open opens the database at path, or an in-memory one for Memory, and
// applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, utils.WrapError(err, "open %s", path)
	}
	// One connection serializes writers and keeps an in-memory database
	// alive across calls.
	db.SetMaxOpenConns(1)
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, utils.WrapError(err, "migrate %s", path)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

// classify tags database errors at the store boundary.
func classify(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	wrapped := utils.WrapError(err, format, args...)
	switch {
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, ErrNotFound):
		return errkind.AsPermanent(wrapped)
	case errkind.Of(err) != errkind.Unknown:
		return wrapped
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return errkind.AsTransient(wrapped)
		case sqlite3.ErrConstraint:
			return errkind.AsPermanent(wrapped)
		}
	}
	return wrapped
}

func requireRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

func (s *Store) AddWarehouse(ctx context.Context, w *domain.Warehouse) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO warehouses (id, name, address, branch, local_path, readme, classification, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, w.Address, w.Branch, w.LocalPath, w.Readme, w.Classification, w.CreatedAt)
	return classify(err, "add warehouse %s", w.Name)
}

func (s *Store) GetWarehouse(ctx context.Context, id string) (*domain.Warehouse, error) {
	w := &domain.Warehouse{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, branch, local_path, readme, classification, created_at
		FROM warehouses WHERE id = ?`, id).
		Scan(&w.ID, &w.Name, &w.Address, &w.Branch, &w.LocalPath, &w.Readme, &w.Classification, &w.CreatedAt)
	if err != nil {
		return nil, classify(err, "get warehouse %s", id)
	}
	return w, nil
}

func (s *Store) AddDocument(ctx context.Context, d *domain.Document) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, warehouse_id, overview, created_at) VALUES (?, ?, ?, ?)`,
		d.ID, d.WarehouseID, d.Overview, d.CreatedAt)
	return classify(err, "add document for warehouse %s", d.WarehouseID)
}

func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	d := &domain.Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, warehouse_id, overview, created_at FROM documents WHERE id = ?`, id).
		Scan(&d.ID, &d.WarehouseID, &d.Overview, &d.CreatedAt)
	if err != nil {
		return nil, classify(err, "get document %s", id)
	}
	return d, nil
}

func (s *Store) SaveReadme(ctx context.Context, warehouseID, readme string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE warehouses SET readme = ? WHERE id = ?`, readme, warehouseID)
	if err == nil {
		err = requireRow(res, "warehouse", warehouseID)
	}
	return classify(err, "save readme")
}

func (s *Store) SaveClassification(ctx context.Context, warehouseID, classification string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE warehouses SET classification = ? WHERE id = ?`, classification, warehouseID)
	if err == nil {
		err = requireRow(res, "warehouse", warehouseID)
	}
	return classify(err, "save classification")
}

func (s *Store) SaveOverview(ctx context.Context, documentID, overview string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET overview = ? WHERE id = ?`, overview, documentID)
	if err == nil {
		err = requireRow(res, "document", documentID)
	}
	return classify(err, "save overview")
}

// ReplaceCatalogs drops the document's catalog, with any generated pages,
// and stores the given entries instead.
func (s *Store) ReplaceCatalogs(ctx context.Context, documentID string, catalogs []*domain.DocumentCatalog) error {
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM document_catalogs WHERE document_id = ?`, documentID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO document_catalogs (id, document_id, warehouse_id, parent_id, name, title, prompt, sort_order, is_completed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, c := range catalogs {
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			c.DocumentID = documentID
			if _, err := stmt.ExecContext(ctx, c.ID, documentID, c.WarehouseID, c.ParentID, c.Name, c.Title, c.Prompt, c.Order, c.IsCompleted); err != nil {
				return fmt.Errorf("insert catalog %s: %w", c.Title, err)
			}
		}
		return nil
	})
	return classify(err, "replace catalogs of document %s", documentID)
}

const catalogColumns = `id, document_id, warehouse_id, parent_id, name, title, prompt, sort_order, is_completed`

func scanCatalogs(rows *sql.Rows) ([]*domain.DocumentCatalog, error) {
	defer rows.Close()
	var ret []*domain.DocumentCatalog
	for rows.Next() {
		c := &domain.DocumentCatalog{}
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.WarehouseID, &c.ParentID, &c.Name, &c.Title, &c.Prompt, &c.Order, &c.IsCompleted); err != nil {
			return nil, err
		}
		ret = append(ret, c)
	}
	return ret, rows.Err()
}

func (s *Store) PendingCatalogs(ctx context.Context, documentID string) ([]*domain.DocumentCatalog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+catalogColumns+`
		FROM document_catalogs WHERE document_id = ? AND is_completed = 0
		ORDER BY sort_order, title`, documentID)
	if err != nil {
		return nil, classify(err, "pending catalogs of document %s", documentID)
	}
	ret, err := scanCatalogs(rows)
	return ret, classify(err, "pending catalogs of document %s", documentID)
}

func (s *Store) Catalogs(ctx context.Context, documentID string) ([]*domain.DocumentCatalog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+catalogColumns+`
		FROM document_catalogs WHERE document_id = ? ORDER BY sort_order, title`, documentID)
	if err != nil {
		return nil, classify(err, "catalogs of document %s", documentID)
	}
	ret, err := scanCatalogs(rows)
	return ret, classify(err, "catalogs of document %s", documentID)
}

func (s *Store) CompleteCatalog(ctx context.Context, catalogID string, item *domain.DocumentFileItem, sources []domain.DocumentFileItemSource) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	item.DocumentCatalogID = catalogID
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE document_catalogs SET is_completed = 1 WHERE id = ?`, catalogID)
		if err != nil {
			return err
		}
		if err := requireRow(res, "catalog", catalogID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO document_file_items (id, document_catalog_id, title, content, size, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID, catalogID, item.Title, item.Content, item.Size, item.CreatedAt); err != nil {
			return fmt.Errorf("insert file item: %w", err)
		}
		for i := range sources {
			src := &sources[i]
			if src.ID == "" {
				src.ID = uuid.NewString()
			}
			src.DocumentFileItemID = item.ID
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO document_file_item_sources (id, document_file_item_id, address, name)
				VALUES (?, ?, ?, ?)`, src.ID, item.ID, src.Address, src.Name); err != nil {
				return fmt.Errorf("insert source %s: %w", src.Address, err)
			}
		}
		return nil
	})
	return classify(err, "complete catalog %s", catalogID)
}

// FileItem returns the latest page generated for a catalog entry.
func (s *Store) FileItem(ctx context.Context, catalogID string) (*domain.DocumentFileItem, []domain.DocumentFileItemSource, error) {
	item := &domain.DocumentFileItem{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_catalog_id, title, content, size, created_at
		FROM document_file_items WHERE document_catalog_id = ?
		ORDER BY created_at DESC LIMIT 1`, catalogID).
		Scan(&item.ID, &item.DocumentCatalogID, &item.Title, &item.Content, &item.Size, &item.CreatedAt)
	if err != nil {
		return nil, nil, classify(err, "file item of catalog %s", catalogID)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_file_item_id, address, name
		FROM document_file_item_sources WHERE document_file_item_id = ? ORDER BY rowid`, item.ID)
	if err != nil {
		return nil, nil, classify(err, "sources of item %s", item.ID)
	}
	defer rows.Close()
	var sources []domain.DocumentFileItemSource
	for rows.Next() {
		var src domain.DocumentFileItemSource
		if err := rows.Scan(&src.ID, &src.DocumentFileItemID, &src.Address, &src.Name); err != nil {
			return nil, nil, classify(err, "scan source")
		}
		sources = append(sources, src)
	}
	return item, sources, classify(rows.Err(), "sources of item %s", item.ID)
}
