package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
)

const namespaceSelect = `
	SELECT n.id, n.prefix, n.display_name, n.description, n.owner_id,
	       COALESCE(u.name, 'unknown'), n.created_at
	FROM namespaces n
	LEFT JOIN users u ON u.id = n.owner_id`

func scanNamespace(row rowScanner) (*model.Namespace, error) {
	var ns model.Namespace
	err := row.Scan(&ns.ID, &ns.Prefix, &ns.DisplayName, &ns.Description,
		&ns.OwnerID, &ns.OwnerName, &ns.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ns, nil
}

// CreateNamespace claims ns.Prefix for ns.OwnerID. A prefix that is already
// claimed fails with apperror.ErrConflict from the UNIQUE constraint.
func (db *DB) CreateNamespace(ctx context.Context, ns *model.Namespace) error {
	ns.ID = xid.New().String()
	ns.CreatedAt = now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO namespaces (id, prefix, display_name, description, owner_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ns.ID, ns.Prefix, ns.DisplayName, ns.Description, ns.OwnerID, ns.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("namespace", ns.Prefix)
		}
		if isForeignKeyViolation(err) {
			return notFound("user", ns.OwnerID)
		}
		return fmt.Errorf("sqlite: creating namespace %s: %w", ns.Prefix, err)
	}
	return nil
}

func (db *DB) GetNamespace(ctx context.Context, prefix string) (*model.Namespace, error) {
	ns, err := scanNamespace(db.conn.QueryRowContext(ctx, namespaceSelect+` WHERE n.prefix = ?`, prefix))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("namespace", prefix)
		}
		return nil, fmt.Errorf("sqlite: getting namespace %s: %w", prefix, err)
	}
	return ns, nil
}

// SearchNamespaces matches query against prefix or display name, ordered by prefix.
func (db *DB) SearchNamespaces(ctx context.Context, query string, page model.PageRequest) ([]model.Namespace, int, error) {
	where := ""
	var args []any
	if query != "" {
		where = ` WHERE (n.prefix LIKE ? ESCAPE '\' OR n.display_name LIKE ? ESCAPE '\')`
		p := likePattern(query)
		args = append(args, p, p)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM namespaces n`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting namespaces: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		namespaceSelect+where+` ORDER BY n.prefix ASC LIMIT ? OFFSET ?`,
		append(args, page.PageSize, page.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing namespaces: %w", err)
	}
	defer rows.Close()

	items := make([]model.Namespace, 0, page.PageSize)
	for rows.Next() {
		ns, err := scanNamespace(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning namespace row: %w", err)
		}
		items = append(items, *ns)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating namespaces: %w", err)
	}
	return items, total, nil
}
