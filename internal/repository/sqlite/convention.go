package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
	"github.com/chrisokchen/bbdsl-platform/internal/tags"
)

// conventionColumns lists the summary columns; withBody adds yaml_content.
const conventionColumns = `c.id, c.name, c.namespace, c.version, c.description, c.tags,
	c.downloads, c.author_id, COALESCE(u.name, 'unknown'), c.created_at, c.updated_at`

const conventionFrom = `
	FROM conventions c
	LEFT JOIN users u ON u.id = c.author_id`

// sortClauses maps each sort order to its ORDER BY. Every order ends with
// the id so that pages never overlap when the primary key ties.
var sortClauses = map[model.SortOrder]string{
	model.SortNewest:    `c.created_at DESC, c.id DESC`,
	model.SortOldest:    `c.created_at ASC, c.id ASC`,
	model.SortDownloads: `c.downloads DESC, c.id ASC`,
	model.SortName:      `c.name COLLATE NOCASE ASC, c.id ASC`,
}

func scanConvention(row rowScanner, withBody bool) (*model.Convention, error) {
	var (
		c       model.Convention
		tagList string
	)
	dest := []any{&c.ID, &c.Name, &c.Namespace, &c.Version, &c.Description, &tagList,
		&c.Downloads, &c.AuthorID, &c.AuthorName, &c.CreatedAt, &c.UpdatedAt}
	if withBody {
		dest = append(dest, &c.Body)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	c.Tags = tags.Parse(tagList)
	return &c, nil
}

func (db *DB) getConventionWhere(ctx context.Context, what, where string, args ...any) (*model.Convention, error) {
	c, err := scanConvention(db.conn.QueryRowContext(ctx,
		`SELECT `+conventionColumns+`, c.yaml_content`+conventionFrom+` WHERE `+where, args...), true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("convention", what)
		}
		return nil, fmt.Errorf("sqlite: getting convention %s: %w", what, err)
	}
	return c, nil
}

// CreateConvention inserts c with zeroed counters. A taken (namespace, version)
// fails with apperror.ErrConflict.
func (db *DB) CreateConvention(ctx context.Context, c *model.Convention) error {
	c.ID = xid.New().String()
	ts := now()
	c.CreatedAt = ts
	c.UpdatedAt = ts
	c.Downloads = 0
	c.Tags = tags.Normalize(c.Tags)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO conventions
		   (id, name, namespace, version, description, tags, yaml_content, downloads, author_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		c.ID, c.Name, c.Namespace, c.Version, c.Description, tags.Join(c.Tags),
		c.Body, c.AuthorID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("convention", c.Namespace+"@"+c.Version)
		}
		if isForeignKeyViolation(err) {
			return notFound("user", c.AuthorID)
		}
		return fmt.Errorf("sqlite: creating convention %s@%s: %w", c.Namespace, c.Version, err)
	}
	return nil
}

func (db *DB) GetConvention(ctx context.Context, id string) (*model.Convention, error) {
	return db.getConventionWhere(ctx, id, `c.id = ?`, id)
}

func (db *DB) GetConventionByVersion(ctx context.Context, namespace, version string) (*model.Convention, error) {
	return db.getConventionWhere(ctx, namespace+"@"+version,
		`c.namespace = ? AND c.version = ?`, namespace, version)
}

// LatestConvention returns the most recently published version of namespace.
func (db *DB) LatestConvention(ctx context.Context, namespace string) (*model.Convention, error) {
	return db.getConventionWhere(ctx, namespace,
		`c.namespace = ? ORDER BY c.created_at DESC, c.id DESC LIMIT 1`, namespace)
}

func (db *DB) ConventionExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM conventions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking convention %s: %w", id, err)
	}
	return true, nil
}

// UpdateConvention writes the fields set in patch and leaves the others as
// they are in the row, so concurrent patches of different fields both land.
// Namespace, version, author and counters are never changed here.
func (db *DB) UpdateConvention(ctx context.Context, id string, patch model.ConventionPatch) error {
	var tagList sql.NullString
	if patch.Tags != nil {
		tagList = sql.NullString{String: tags.Join(*patch.Tags), Valid: true}
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE conventions
		 SET name         = COALESCE(?, name),
		     description  = COALESCE(?, description),
		     tags         = COALESCE(?, tags),
		     yaml_content = COALESCE(?, yaml_content),
		     updated_at   = ?
		 WHERE id = ?`,
		optional(patch.Name), optional(patch.Description), tagList, optional(patch.Body), now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating convention %s: %w", id, err)
	}
	return checkAffected(res, "convention", id)
}

// DeleteConvention removes the convention; its ratings and comments go with
// it through ON DELETE CASCADE.
func (db *DB) DeleteConvention(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM conventions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting convention %s: %w", id, err)
	}
	return checkAffected(res, "convention", id)
}

// IncrementDownloads bumps the counter in one statement and returns the new value.
// Concurrent callers never lose an increment.
func (db *DB) IncrementDownloads(ctx context.Context, id string) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx,
		`UPDATE conventions SET downloads = downloads + 1 WHERE id = ? RETURNING downloads`, id,
	).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, notFound("convention", id)
		}
		return 0, fmt.Errorf("sqlite: incrementing downloads of %s: %w", id, err)
	}
	return n, nil
}

// SearchConventions returns one page of matches plus the total match count.
// Bodies are not loaded.
func (db *DB) SearchConventions(ctx context.Context, f model.SearchFilter, page model.PageRequest) ([]model.Convention, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.Query != "" {
		p := likePattern(f.Query)
		conds = append(conds, `(c.name LIKE ? ESCAPE '\' OR c.namespace LIKE ? ESCAPE '\')`)
		args = append(args, p, p)
	}
	if f.Namespace != "" {
		conds = append(conds, `c.namespace = ?`)
		args = append(args, f.Namespace)
	}
	if f.Tag != "" {
		conds = append(conds, `c.tags LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.Tag))
	}
	if f.Author != "" {
		conds = append(conds, `u.name LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.Author))
	}

	where := ""
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, ` AND `)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*)`+conventionFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting conventions: %w", err)
	}

	order, ok := sortClauses[f.Sort]
	if !ok {
		order = sortClauses[model.SortNewest]
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+conventionColumns+conventionFrom+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, page.PageSize, page.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: searching conventions: %w", err)
	}
	defer rows.Close()

	items := make([]model.Convention, 0, page.PageSize)
	for rows.Next() {
		c, err := scanConvention(rows, false)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning convention row: %w", err)
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating conventions: %w", err)
	}
	return items, total, nil
}

// ListVersions returns every version published under namespace, newest first.
// A namespace without conventions is reported as not found.
func (db *DB) ListVersions(ctx context.Context, namespace string) ([]model.VersionInfo, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT version, created_at, downloads FROM conventions
		 WHERE namespace = ?
		 ORDER BY created_at DESC, id DESC`, namespace)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing versions of %s: %w", namespace, err)
	}
	defer rows.Close()

	var out []model.VersionInfo
	for rows.Next() {
		var v model.VersionInfo
		if err := rows.Scan(&v.Version, &v.CreatedAt, &v.Downloads); err != nil {
			return nil, fmt.Errorf("sqlite: scanning version row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating versions: %w", err)
	}
	if len(out) == 0 {
		return nil, apperror.NotFound("namespace", namespace)
	}
	return out, nil
}
