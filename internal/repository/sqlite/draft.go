package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/chrisokchen/bbdsl-platform/internal/model"
)

// Every draft query is scoped by owner: a draft that belongs to someone else
// behaves exactly like one that does not exist.

func (db *DB) CreateDraft(ctx context.Context, d *model.Draft) error {
	d.ID = xid.New().String()
	ts := now()
	d.CreatedAt = ts
	d.UpdatedAt = ts

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO drafts (id, title, yaml_content, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.Body, d.OwnerID, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return notFound("user", d.OwnerID)
		}
		return fmt.Errorf("sqlite: creating draft: %w", err)
	}
	return nil
}

func (db *DB) GetDraft(ctx context.Context, id, ownerID string) (*model.Draft, error) {
	var d model.Draft
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, yaml_content, user_id, created_at, updated_at
		 FROM drafts WHERE id = ? AND user_id = ?`, id, ownerID,
	).Scan(&d.ID, &d.Title, &d.Body, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("draft", id)
		}
		return nil, fmt.Errorf("sqlite: getting draft %s: %w", id, err)
	}
	return &d, nil
}

// ListDrafts returns one page of the owner's drafts, most recently edited first.
func (db *DB) ListDrafts(ctx context.Context, ownerID string, page model.PageRequest) ([]model.Draft, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM drafts WHERE user_id = ?`, ownerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting drafts: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, yaml_content, user_id, created_at, updated_at
		 FROM drafts WHERE user_id = ?
		 ORDER BY updated_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		ownerID, page.PageSize, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing drafts: %w", err)
	}
	defer rows.Close()

	items := make([]model.Draft, 0, page.PageSize)
	for rows.Next() {
		var d model.Draft
		if err := rows.Scan(&d.ID, &d.Title, &d.Body, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning draft row: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating drafts: %w", err)
	}
	return items, total, nil
}

func (db *DB) UpdateDraft(ctx context.Context, d *model.Draft) error {
	d.UpdatedAt = now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE drafts SET title = ?, yaml_content = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		d.Title, d.Body, d.UpdatedAt, d.ID, d.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating draft %s: %w", d.ID, err)
	}
	return checkAffected(res, "draft", d.ID)
}

func (db *DB) DeleteDraft(ctx context.Context, id, ownerID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM drafts WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting draft %s: %w", id, err)
	}
	return checkAffected(res, "draft", id)
}
