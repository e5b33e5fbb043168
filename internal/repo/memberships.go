package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/domain"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
)

// Store is the membership store for teams, projects and tasks. Built over a *sql.Tx
// it reads and writes inside that transaction; it also serves as the auth.Hierarchy.
type Store struct {
	q   queryer
	Now func() time.Time
}

var (
	_ auth.Memberships = Store{}
	_ auth.Hierarchy   = Store{}
)

// Members returns a Store outside any transaction.
func (r Repo) Members() Store {
	return Store{q: r.DB, Now: time.Now}
}

// Tx returns a Store bound to tx.
func (r Repo) Tx(tx *sql.Tx) Store {
	return Store{q: r.q(tx), Now: time.Now}
}

func membershipTable(kind auth.Scope) (table, column string, err error) {
	switch kind {
	case auth.ScopeTeam:
		return "team_memberships", "team_id", nil
	case auth.ScopeProject:
		return "project_memberships", "project_id", nil
	case auth.ScopeTask:
		return "task_memberships", "task_id", nil
	}
	return "", "", auth.Validation(auth.CodeInvalidScope, "unknown scope %q", kind)
}

func (s Store) now() string {
	if s.Now == nil {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return s.Now().UTC().Format(time.RFC3339)
}

func checkRoleScope(res auth.Resource, role auth.Role) error {
	if role.Scope != res.Kind {
		return auth.Validation(auth.CodeRoleScopeMismatch, "%s role %q cannot be held on a %s", role.Scope, role.Name, res.Kind)
	}
	_, err := auth.NewRole(role.Scope, role.Name)
	return err
}

// Grant creates the membership. An existing membership for the pair is a conflict.
func (s Store) Grant(ctx context.Context, principal string, res auth.Resource, role auth.Role) (domain.Membership, error) {
	if err := checkRoleScope(res, role); err != nil {
		return domain.Membership{}, err
	}
	table, col, err := membershipTable(res.Kind)
	if err != nil {
		return domain.Membership{}, err
	}
	if _, ok, err := s.FindRole(ctx, principal, res); err != nil {
		return domain.Membership{}, err
	} else if ok {
		return domain.Membership{}, auth.Conflict(auth.CodeMembershipExists, "%s is already a member of %s", principal, res)
	}
	now := s.now()
	_, err = s.q.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s(%s,principal_id,role,created_at,updated_at) VALUES (?,?,?,?,?)`, table, col),
		res.ID, principal, role.Name, now, now)
	if isUniqueViolation(err) {
		return domain.Membership{}, auth.Conflict(auth.CodeMembershipExists, "%s is already a member of %s", principal, res)
	}
	if err != nil {
		return domain.Membership{}, fmt.Errorf("grant %s on %s: %w", role, res, err)
	}
	return domain.Membership{
		ResourceKind: string(res.Kind),
		ResourceID:   res.ID,
		PrincipalID:  principal,
		Role:         role.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s Store) FindRole(ctx context.Context, principal string, res auth.Resource) (auth.Role, bool, error) {
	table, col, err := membershipTable(res.Kind)
	if err != nil {
		return auth.Role{}, false, err
	}
	var name string
	err = s.q.QueryRowContext(ctx, fmt.Sprintf(`SELECT role FROM %s WHERE %s=? AND principal_id=?`, table, col), res.ID, principal).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, false, nil
	}
	if err != nil {
		return auth.Role{}, false, err
	}
	return auth.Role{Scope: res.Kind, Name: name}, true, nil
}

// SetRole changes the role of an existing membership.
func (s Store) SetRole(ctx context.Context, principal string, res auth.Resource, role auth.Role) (domain.Membership, error) {
	if err := checkRoleScope(res, role); err != nil {
		return domain.Membership{}, err
	}
	table, col, err := membershipTable(res.Kind)
	if err != nil {
		return domain.Membership{}, err
	}
	now := s.now()
	result, err := s.q.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET role=?, updated_at=? WHERE %s=? AND principal_id=?`, table, col),
		role.Name, now, res.ID, principal)
	if err != nil {
		return domain.Membership{}, fmt.Errorf("set role on %s: %w", res, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.Membership{}, auth.NotFound(auth.CodeMembershipNotFound, "%s is not a member of %s", principal, res)
	}
	return s.get(ctx, principal, res)
}

// Revoke deletes the membership. A missing membership is reported, not ignored.
func (s Store) Revoke(ctx context.Context, principal string, res auth.Resource) error {
	table, col, err := membershipTable(res.Kind)
	if err != nil {
		return err
	}
	result, err := s.q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s=? AND principal_id=?`, table, col), res.ID, principal)
	if err != nil {
		return fmt.Errorf("revoke on %s: %w", res, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return auth.NotFound(auth.CodeMembershipNotFound, "%s is not a member of %s", principal, res)
	}
	return nil
}

func (s Store) CountByRole(ctx context.Context, res auth.Resource, role auth.Role) (int, error) {
	table, col, err := membershipTable(res.Kind)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.q.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE %s=? AND role=?`, table, col), res.ID, role.Name).Scan(&n)
	return n, err
}

func (s Store) get(ctx context.Context, principal string, res auth.Resource) (domain.Membership, error) {
	table, col, err := membershipTable(res.Kind)
	if err != nil {
		return domain.Membership{}, err
	}
	m := domain.Membership{ResourceKind: string(res.Kind), ResourceID: res.ID, PrincipalID: principal}
	err = s.q.QueryRowContext(ctx, fmt.Sprintf(`SELECT role,created_at,updated_at FROM %s WHERE %s=? AND principal_id=?`, table, col), res.ID, principal).
		Scan(&m.Role, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return m, auth.NotFound(auth.CodeMembershipNotFound, "%s is not a member of %s", principal, res)
	}
	return m, err
}

// ListMembers returns memberships on res ordered by rank then join time.
func (s Store) ListMembers(ctx context.Context, res auth.Resource) ([]domain.Membership, error) {
	table, col, err := membershipTable(res.Kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, fmt.Sprintf(`SELECT principal_id,role,created_at,updated_at FROM %s WHERE %s=?
ORDER BY CASE role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 WHEN 'assignee' THEN 1 WHEN 'reviewer' THEN 2 ELSE 3 END, created_at, principal_id`, table, col), res.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Membership
	for rows.Next() {
		m := domain.Membership{ResourceKind: string(res.Kind), ResourceID: res.ID}
		if err := rows.Scan(&m.PrincipalID, &m.Role, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Parent resolves task to project and project to team. Sub-tasks resolve to their project.
func (s Store) Parent(ctx context.Context, res auth.Resource) (auth.Resource, error) {
	var query string
	var wrap func(string) auth.Resource
	switch res.Kind {
	case auth.ScopeProject:
		query, wrap = `SELECT team_id FROM projects WHERE id=?`, auth.Team
	case auth.ScopeTask:
		query, wrap = `SELECT project_id FROM tasks WHERE id=?`, auth.Project
	case auth.ScopeTeam:
		return auth.Resource{}, auth.Validation(auth.CodeInvalidScope, "teams have no parent")
	default:
		return auth.Resource{}, auth.Validation(auth.CodeInvalidScope, "unknown scope %q", res.Kind)
	}
	var id string
	err := s.q.QueryRowContext(ctx, query, res.ID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Resource{}, notFound(string(res.Kind), res.ID)
	}
	if err != nil {
		return auth.Resource{}, err
	}
	return wrap(id), nil
}
