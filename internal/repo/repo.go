package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/domain"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
)

type Repo struct {
	DB *sql.DB
}

// ErrNotFound is the same sentinel the authorization engine uses, so callers need only one check.
var ErrNotFound = auth.ErrNotFound

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(tx *sql.Tx) queryer {
	if tx != nil {
		return tx
	}
	return r.DB
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// isUniqueViolation reports a primary key or unique index collision.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func (r Repo) InsertTeam(ctx context.Context, tx *sql.Tx, t domain.Team) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO teams(id,name,description,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		t.ID, t.Name, t.Description, t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	if isUniqueViolation(err) {
		return auth.Conflict("team_name_taken", "team name %q is already taken", t.Name)
	}
	return err
}

func (r Repo) GetTeam(ctx context.Context, tx *sql.Tx, id string) (domain.Team, error) {
	var t domain.Team
	err := r.q(tx).QueryRowContext(ctx, `SELECT id,name,description,created_by,created_at,updated_at FROM teams WHERE id=?`, id).
		Scan(&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, notFound("team", id)
	}
	return t, err
}

// TeamNameTaken reports whether another team already uses name.
func (r Repo) TeamNameTaken(ctx context.Context, tx *sql.Tx, name, exceptID string) (bool, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COUNT(1) FROM teams WHERE name=? AND id<>?`, name, exceptID).Scan(&n)
	return n > 0, err
}

func (r Repo) UpdateTeam(ctx context.Context, tx *sql.Tx, t domain.Team) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE teams SET name=?, description=?, updated_at=? WHERE id=?`, t.Name, t.Description, t.UpdatedAt, t.ID)
	if isUniqueViolation(err) {
		return auth.Conflict("team_name_taken", "team name %q is already taken", t.Name)
	}
	if err != nil {
		return err
	}
	return requireAffected(res, "team", t.ID)
}

func (r Repo) DeleteTeam(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM teams WHERE id=?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "team", id)
}

// ListTeamsFor returns the teams principalID belongs to.
func (r Repo) ListTeamsFor(ctx context.Context, principalID string) ([]domain.Team, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT t.id,t.name,t.description,t.created_by,t.created_at,t.updated_at
FROM teams t JOIN team_memberships m ON m.team_id=t.id
WHERE m.principal_id=? ORDER BY t.created_at, t.id`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Team
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO projects(id,team_id,name,description,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		p.ID, p.TeamID, p.Name, p.Description, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	var p domain.Project
	err := r.q(tx).QueryRowContext(ctx, `SELECT id,team_id,name,description,created_by,created_at,updated_at FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.TeamID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, notFound("project", id)
	}
	return p, err
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE projects SET name=?, description=?, updated_at=? WHERE id=?`, p.Name, p.Description, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	return requireAffected(res, "project", p.ID)
}

func (r Repo) DeleteProject(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "project", id)
}

func (r Repo) ListProjects(ctx context.Context, teamID string) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,team_id,name,description,created_by,created_at,updated_at FROM projects WHERE team_id=? ORDER BY created_at, id`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.TeamID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

const taskColumns = `id,project_id,parent_id,title,description,status,priority,due_date,created_by,created_at,updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (domain.Task, error) {
	var t domain.Task
	var parentID, dueDate sql.NullString
	err := row.Scan(&t.ID, &t.ProjectID, &parentID, &t.Title, &t.Description, &t.Status, &t.Priority, &dueDate, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if parentID.Valid {
		t.ParentID = &parentID.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, nullableStringPtr(t.ParentID), t.Title, t.Description, t.Status, t.Priority,
		nullableStringPtr(t.DueDate), t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	t, err := scanTask(r.q(tx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, notFound("task", id)
	}
	return t, err
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE tasks SET title=?, description=?, status=?, priority=?, due_date=?, updated_at=? WHERE id=?`,
		t.Title, t.Description, t.Status, t.Priority, nullableStringPtr(t.DueDate), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	return requireAffected(res, "task", t.ID)
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "task", id)
}

type TaskFilters struct {
	ProjectID string
	ParentID  string
	Status    string
	// TopLevel restricts to tasks without a parent.
	TopLevel bool
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.ParentID != "" {
		clauses = append(clauses, "parent_id=?")
		args = append(args, f.ParentID)
	} else if f.TopLevel {
		clauses = append(clauses, "parent_id IS NULL")
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY created_at, id`, taskColumns, strings.Join(clauses, " AND "))
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func requireAffected(res sql.Result, kind, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound(kind, id)
	}
	return nil
}
