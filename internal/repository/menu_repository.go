// Package repository provides data access to the relational catalog. The
// menu lives in MySQL because it is curated content with an admin workflow,
// unlike the volatile session state that belongs to Redis.
package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/virtual-cafe/internal/model"
	"github.com/iliyamo/virtual-cafe/internal/store"
)

// MenuRepo provides read access to the menu_items table and records
// generator-synthesized items for auditing. Catalog rows are immutable from
// the engine's point of view.
type MenuRepo struct {
	db *sql.DB
}

// NewMenuRepo returns a new MenuRepo bound to the provided database.
func NewMenuRepo(db *sql.DB) *MenuRepo { return &MenuRepo{db: db} }

// GetByID loads a single active menu item. Returns store.ErrItemNotFound
// when the row is missing or inactive so callers can branch with errors.Is.
func (r *MenuRepo) GetByID(ctx context.Context, id string) (*model.MenuItem, error) {
	const q = `SELECT id, name, description, category, preparation_seconds, consumption_seconds, mood_tag
	           FROM menu_items WHERE id = ? AND is_active = 1`
	var it model.MenuItem
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&it.ID, &it.Name, &it.Description, &it.Category,
		&it.PreparationSeconds, &it.ConsumptionSeconds, &it.MoodTag,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// ListActive returns every active catalog item, used to build the catalog
// summary sent to the item generator and to serve the menu endpoint.
func (r *MenuRepo) ListActive(ctx context.Context) ([]model.MenuItem, error) {
	const q = `SELECT id, name, description, category, preparation_seconds, consumption_seconds, mood_tag
	           FROM menu_items WHERE is_active = 1 ORDER BY category, name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.MenuItem
	for rows.Next() {
		var it model.MenuItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Category,
			&it.PreparationSeconds, &it.ConsumptionSeconds, &it.MoodTag); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// InsertGenerated records a generator-synthesized item. The row is marked
// inactive so it never shows up on the public menu; it exists so ops can
// review what the generator has been producing.
func (r *MenuRepo) InsertGenerated(ctx context.Context, it *model.MenuItem) error {
	const q = `INSERT INTO menu_items
	           (id, name, description, category, preparation_seconds, consumption_seconds, mood_tag, is_active, generated)
	           VALUES (?, ?, ?, ?, ?, ?, ?, 0, 1)`
	_, err := r.db.ExecContext(ctx, q,
		it.ID, it.Name, it.Description, it.Category,
		it.PreparationSeconds, it.ConsumptionSeconds, it.MoodTag,
	)
	return err
}
