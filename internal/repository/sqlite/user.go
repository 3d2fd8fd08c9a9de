package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
)

const userColumns = `id, github_id, google_id, name, email, avatar_url, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u              model.User
		github, google sql.NullString
		email, avatar  sql.NullString
	)
	if err := row.Scan(&u.ID, &github, &google, &u.Name, &email, &avatar, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.GitHubID = github.String
	u.GoogleID = google.String
	u.Email = email.String
	u.AvatarURL = avatar.String
	return &u, nil
}

// providerColumn maps a provider name onto its key column. The result is
// spliced into SQL, so only known providers are accepted.
func providerColumn(provider string) (string, error) {
	switch provider {
	case model.ProviderGitHub:
		return "github_id", nil
	case model.ProviderGoogle:
		return "google_id", nil
	}
	return "", apperror.InvalidArgument("provider", fmt.Sprintf("unknown identity provider %q", provider))
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetUserByProviderKey(ctx context.Context, provider, key string) (*model.User, error) {
	col, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+col+` = ?`, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("user", provider+":"+key)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", col, err)
	}
	return u, nil
}

// LinkOrCreateUser implements the account linking rule in one transaction.
//
//  1. An account already holding the provider key is refreshed with the
//     profile data the provider returned.
//  2. Otherwise, an account with the same email (case-insensitive) that has
//     no key for this provider gets the key attached.
//  3. Otherwise a new account is created.
//
// Two first logins racing on the same key both try step 3; the loser hits
// the UNIQUE constraint and retries, landing in step 1.
func (db *DB) LinkOrCreateUser(ctx context.Context, id model.Identity) (*model.User, error) {
	col, err := providerColumn(id.Provider)
	if err != nil {
		return nil, err
	}
	if id.ExternalID == "" {
		return nil, apperror.InvalidArgument("external_id", "identity has no external id")
	}

	const attempts = 2
	for i := 0; ; i++ {
		u, err := db.linkOrCreate(ctx, col, id)
		if err != nil && isUniqueViolation(err) && i+1 < attempts {
			continue
		}
		return u, err
	}
}

func (db *DB) linkOrCreate(ctx context.Context, col string, id model.Identity) (*model.User, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	ts := now()

	u, err := scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+col+` = ?`, id.ExternalID))
	switch {
	case err == nil:
		applyProfile(u, id)
		u.UpdatedAt = ts
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET name = ?, email = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
			u.Name, nullString(u.Email), nullString(u.AvatarURL), u.UpdatedAt, u.ID,
		); err != nil {
			return nil, fmt.Errorf("sqlite: refreshing user %s: %w", u.ID, err)
		}

	case errors.Is(err, sql.ErrNoRows):
		u, err = db.linkByEmail(ctx, tx, col, id, ts)
		if err != nil {
			return nil, err
		}
		if u == nil {
			u = &model.User{
				ID:        xid.New().String(),
				CreatedAt: ts,
				UpdatedAt: ts,
			}
			u.SetProviderKey(id.Provider, id.ExternalID)
			applyProfile(u, id)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				u.ID, nullString(u.GitHubID), nullString(u.GoogleID), u.Name,
				nullString(u.Email), nullString(u.AvatarURL), u.CreatedAt, u.UpdatedAt,
			); err != nil {
				return nil, fmt.Errorf("sqlite: inserting user (%s): %w", id.Provider, err)
			}
		}

	default:
		return nil, fmt.Errorf("sqlite: looking up user by %s: %w", col, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing user link: %w", err)
	}
	return u, nil
}

// linkByEmail attaches the provider key to the oldest account with a
// matching email. It returns nil when there is nothing to link to.
func (db *DB) linkByEmail(ctx context.Context, tx *sql.Tx, col string, id model.Identity, ts time.Time) (*model.User, error) {
	if id.Email == "" {
		return nil, nil
	}

	u, err := scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE email = ? COLLATE NOCASE AND `+col+` IS NULL
		 ORDER BY created_at, id LIMIT 1`, id.Email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: looking up user by email: %w", err)
	}

	u.SetProviderKey(id.Provider, id.ExternalID)
	if u.AvatarURL == "" {
		u.AvatarURL = id.AvatarURL
	}
	u.UpdatedAt = ts
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET `+col+` = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		id.ExternalID, nullString(u.AvatarURL), u.UpdatedAt, u.ID,
	); err != nil {
		return nil, fmt.Errorf("sqlite: linking %s to user %s: %w", id.Provider, u.ID, err)
	}
	return u, nil
}

func applyProfile(u *model.User, id model.Identity) {
	if id.Name != "" {
		u.Name = id.Name
	}
	if u.Name == "" {
		u.Name = "unknown"
	}
	if id.Email != "" {
		u.Email = id.Email
	}
	if id.AvatarURL != "" {
		u.AvatarURL = id.AvatarURL
	}
}
