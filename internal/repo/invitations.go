package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/domain"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
)

const invitationColumns = `id,resource_kind,COALESCE(team_id,project_id),inviter_id,invitee_id,role,status,created_at,updated_at`

func scanInvitation(row scanner) (domain.Invitation, error) {
	var inv domain.Invitation
	err := row.Scan(&inv.ID, &inv.ResourceKind, &inv.ResourceID, &inv.InviterID, &inv.InviteeID, &inv.Role, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func invitationTarget(kind string) (string, error) {
	switch auth.Scope(kind) {
	case auth.ScopeTeam:
		return "team_id", nil
	case auth.ScopeProject:
		return "project_id", nil
	}
	return "", auth.Validation(auth.CodeInvalidScope, "cannot invite to a %s", kind)
}

func (r Repo) InsertInvitation(ctx context.Context, tx *sql.Tx, inv domain.Invitation) error {
	col, err := invitationTarget(inv.ResourceKind)
	if err != nil {
		return err
	}
	_, err = r.q(tx).ExecContext(ctx, fmt.Sprintf(`INSERT INTO invitations(id,resource_kind,%s,inviter_id,invitee_id,role,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`, col),
		inv.ID, inv.ResourceKind, inv.ResourceID, inv.InviterID, inv.InviteeID, inv.Role, inv.Status, inv.CreatedAt, inv.UpdatedAt)
	return err
}

func (r Repo) GetInvitation(ctx context.Context, tx *sql.Tx, id string) (domain.Invitation, error) {
	inv, err := scanInvitation(r.q(tx).QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return inv, notFound("invitation", id)
	}
	return inv, err
}

// HasPendingInvitation reports whether invitee already has a pending invitation to res.
func (r Repo) HasPendingInvitation(ctx context.Context, tx *sql.Tx, invitee string, res auth.Resource) (bool, error) {
	col, err := invitationTarget(string(res.Kind))
	if err != nil {
		return false, err
	}
	var n int
	err = r.q(tx).QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(1) FROM invitations WHERE %s=? AND invitee_id=? AND status='pending'`, col), res.ID, invitee).Scan(&n)
	return n > 0, err
}

func (r Repo) UpdateInvitationStatus(ctx context.Context, tx *sql.Tx, id, status, now string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE invitations SET status=?, updated_at=? WHERE id=?`, status, now, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "invitation", id)
}

type InvitationFilters struct {
	InviteeID string
	InviterID string
	Status    string
}

func (r Repo) ListInvitations(ctx context.Context, f InvitationFilters) ([]domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE 1=1`
	var args []any
	if f.InviteeID != "" {
		query += ` AND invitee_id=?`
		args = append(args, f.InviteeID)
	}
	if f.InviterID != "" {
		query += ` AND inviter_id=?`
		args = append(args, f.InviterID)
	}
	if f.Status != "" {
		query += ` AND status=?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at DESC, id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, inv)
	}
	return res, rows.Err()
}
