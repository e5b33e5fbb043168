package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/domain"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/events"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/repo"
)

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationDeclined = "declined"
)

// SendInvitation records a pending invitation. The same guards as a direct invite apply
// at send time.
func (e Engine) SendInvitation(ctx context.Context, opts MemberOptions) (domain.Invitation, error) {
	now := e.stamp()
	inv := domain.Invitation{
		ID:           uuid.NewString(),
		ResourceKind: string(opts.Resource.Kind),
		ResourceID:   opts.Resource.ID,
		InviterID:    opts.ActorID,
		InviteeID:    opts.PrincipalID,
		Status:       InvitationPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := e.inTx(ctx, func(s txScope) error {
		if err := e.prepare(ctx, s, opts); err != nil {
			return err
		}
		role, err := s.authz.CheckInvite(ctx, opts.ActorID, opts.PrincipalID, opts.Resource, opts.Role)
		if err != nil {
			return err
		}
		pending, err := e.Repo.HasPendingInvitation(ctx, s.tx, opts.PrincipalID, opts.Resource)
		if err != nil {
			return err
		}
		if pending {
			return auth.Conflict("invitation_pending", "%s already has a pending invitation to this %s", opts.PrincipalID, opts.Resource.Kind)
		}
		inv.Role = role.Name
		if err := e.Repo.InsertInvitation(ctx, s.tx, inv); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, opts.event(events.InvitationSent, events.EventPayload{"invitation_id": inv.ID, "role": role.Name}))
	})
	e.record("invitation sent", err, opts.fields()...)
	if err != nil {
		return domain.Invitation{}, err
	}
	return inv, nil
}

// RespondInvitation accepts or declines. Only the invitee may respond, and only once;
// accepting grants the recorded role, keeping any membership granted in the meantime.
// A project invitation can only be accepted while the invitee is still on the team.
func (e Engine) RespondInvitation(ctx context.Context, actorID, id string, accept bool) (domain.Invitation, error) {
	var inv domain.Invitation
	err := e.inTx(ctx, func(s txScope) error {
		var err error
		inv, err = e.Repo.GetInvitation(ctx, s.tx, id)
		if err != nil {
			return err
		}
		if inv.InviteeID != actorID {
			return auth.NotFound("invitation_not_found", "invitation %s not found", id)
		}
		if inv.Status != InvitationPending {
			return auth.InvalidTransition("invitation_not_pending", "invitation has already been %s", inv.Status)
		}
		res := auth.Resource{Kind: auth.Scope(inv.ResourceKind), ID: inv.ResourceID}
		status, evt := InvitationDeclined, events.InvitationDeclined
		if accept {
			status, evt = InvitationAccepted, events.InvitationAccepted
			if err := s.authz.CheckAcceptInvitation(ctx, actorID, res); err != nil {
				return err
			}
			role, err := auth.NewRole(res.Kind, inv.Role)
			if err != nil {
				return err
			}
			if _, err := s.store.Grant(ctx, actorID, res, role); err != nil && !errors.Is(err, auth.ErrConflict) {
				return err
			}
		}
		inv.Status = status
		inv.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateInvitationStatus(ctx, s.tx, inv.ID, inv.Status, inv.UpdatedAt); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, events.Record{
			Type: evt, ResourceKind: inv.ResourceKind, ResourceID: inv.ResourceID, ActorID: actorID, SubjectID: actorID,
			Payload: events.EventPayload{"invitation_id": inv.ID, "role": inv.Role},
		})
	})
	e.record("invitation answered", err, zap.String("actor", actorID), zap.String("invitation", id), zap.Bool("accept", accept))
	if err != nil {
		return domain.Invitation{}, err
	}
	return inv, nil
}

// ListInvitations returns invitations addressed to the actor, newest first.
func (e Engine) ListInvitations(ctx context.Context, actorID, status string) ([]domain.Invitation, error) {
	return e.Repo.ListInvitations(ctx, repo.InvitationFilters{InviteeID: actorID, Status: status})
}
