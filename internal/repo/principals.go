package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/domain"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
)

func (r Repo) InsertPrincipal(ctx context.Context, tx *sql.Tx, p domain.Principal) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO principals(id,name,email,created_at) VALUES (?,?,?,?)`,
		p.ID, p.Name, nullable(p.Email), p.CreatedAt)
	if isUniqueViolation(err) {
		return auth.Conflict("principal_exists", "principal %s already exists", p.ID)
	}
	return err
}

// EnsurePrincipal creates the principal if it does not exist yet.
func (r Repo) EnsurePrincipal(ctx context.Context, tx *sql.Tx, id, now string) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO principals(id, created_at) VALUES (?,?)`, id, now)
	return err
}

func (r Repo) GetPrincipal(ctx context.Context, tx *sql.Tx, id string) (domain.Principal, error) {
	var p domain.Principal
	var email sql.NullString
	err := r.q(tx).QueryRowContext(ctx, `SELECT id,name,email,created_at FROM principals WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &email, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, notFound("principal", id)
	}
	if email.Valid {
		p.Email = email.String
	}
	return p, err
}

func (r Repo) ListPrincipals(ctx context.Context) ([]domain.Principal, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,email,created_at FROM principals ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Principal
	for rows.Next() {
		var p domain.Principal
		var email sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &email, &p.CreatedAt); err != nil {
			return nil, err
		}
		if email.Valid {
			p.Email = email.String
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
