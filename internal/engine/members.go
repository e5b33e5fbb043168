package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/domain"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/events"
)

// MemberOptions names a membership mutation: ActorID acting on PrincipalID's membership
// of Resource. Role is only read by invite and assign.
type MemberOptions struct {
	ActorID     string
	PrincipalID string
	Resource    auth.Resource
	Role        string
}

func (o MemberOptions) fields() []zap.Field {
	return []zap.Field{
		zap.String("actor", o.ActorID),
		zap.String("principal", o.PrincipalID),
		zap.String("resource", o.Resource.String()),
	}
}

func (o MemberOptions) event(typ string, payload events.EventPayload) events.Record {
	return events.Record{
		Type:         typ,
		ResourceKind: string(o.Resource.Kind),
		ResourceID:   o.Resource.ID,
		ActorID:      o.ActorID,
		SubjectID:    o.PrincipalID,
		Payload:      payload,
	}
}

// prepare checks that the resource and target principal exist.
func (e Engine) prepare(ctx context.Context, s txScope, opts MemberOptions) error {
	if err := e.requireResource(ctx, s.tx, opts.Resource); err != nil {
		return err
	}
	return e.requirePrincipal(ctx, s.tx, opts.PrincipalID)
}

// InviteMember grants a team or project membership directly.
func (e Engine) InviteMember(ctx context.Context, opts MemberOptions) (domain.Membership, error) {
	var m domain.Membership
	err := e.inTx(ctx, func(s txScope) error {
		if err := e.prepare(ctx, s, opts); err != nil {
			return err
		}
		role, err := s.authz.CheckInvite(ctx, opts.ActorID, opts.PrincipalID, opts.Resource, opts.Role)
		if err != nil {
			return err
		}
		if m, err = s.store.Grant(ctx, opts.PrincipalID, opts.Resource, role); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, opts.event(events.MemberInvited, events.EventPayload{"role": role.Name}))
	})
	e.record("member invited", err, opts.fields()...)
	return m, err
}

func (e Engine) PromoteMember(ctx context.Context, opts MemberOptions) (domain.Membership, error) {
	return e.changeRole(ctx, opts, events.MemberPromoted, auth.Authorizer.CheckPromote)
}

func (e Engine) DemoteMember(ctx context.Context, opts MemberOptions) (domain.Membership, error) {
	return e.changeRole(ctx, opts, events.MemberDemoted, auth.Authorizer.CheckDemote)
}

type roleGuard func(a auth.Authorizer, ctx context.Context, actor, target string, res auth.Resource) (auth.Role, error)

func (e Engine) changeRole(ctx context.Context, opts MemberOptions, evt string, guard roleGuard) (domain.Membership, error) {
	var m domain.Membership
	err := e.inTx(ctx, func(s txScope) error {
		if err := e.prepare(ctx, s, opts); err != nil {
			return err
		}
		role, err := guard(s.authz, ctx, opts.ActorID, opts.PrincipalID, opts.Resource)
		if err != nil {
			return err
		}
		if m, err = s.store.SetRole(ctx, opts.PrincipalID, opts.Resource, role); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, opts.event(evt, events.EventPayload{"role": role.Name}))
	})
	e.record(evt, err, opts.fields()...)
	return m, err
}

// RemoveMember removes a non-owner from a team or project.
func (e Engine) RemoveMember(ctx context.Context, opts MemberOptions) error {
	err := e.inTx(ctx, func(s txScope) error {
		if err := e.prepare(ctx, s, opts); err != nil {
			return err
		}
		role, err := s.authz.CheckRemove(ctx, opts.ActorID, opts.PrincipalID, opts.Resource)
		if err != nil {
			return err
		}
		if err := s.store.Revoke(ctx, opts.PrincipalID, opts.Resource); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, opts.event(events.MemberRemoved, events.EventPayload{"role": role.Name}))
	})
	e.record("member removed", err, opts.fields()...)
	return err
}

// AssignTaskMember adds a project member to a task. Role defaults to assignee.
func (e Engine) AssignTaskMember(ctx context.Context, opts MemberOptions) (domain.Membership, error) {
	var m domain.Membership
	err := e.inTx(ctx, func(s txScope) error {
		if err := e.prepare(ctx, s, opts); err != nil {
			return err
		}
		role, err := s.authz.CheckAssignTask(ctx, opts.ActorID, opts.PrincipalID, opts.Resource, opts.Role)
		if err != nil {
			return err
		}
		if m, err = s.store.Grant(ctx, opts.PrincipalID, opts.Resource, role); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, opts.event(events.TaskMemberAssigned, events.EventPayload{"role": role.Name}))
	})
	e.record("task member assigned", err, opts.fields()...)
	return m, err
}

// RemoveTaskMember removes a task membership. The assignee count is read and the row
// deleted in the same transaction.
func (e Engine) RemoveTaskMember(ctx context.Context, opts MemberOptions) error {
	err := e.inTx(ctx, func(s txScope) error {
		if err := e.prepare(ctx, s, opts); err != nil {
			return err
		}
		role, err := s.authz.CheckRemoveTask(ctx, opts.ActorID, opts.PrincipalID, opts.Resource)
		if err != nil {
			return err
		}
		if err := s.store.Revoke(ctx, opts.PrincipalID, opts.Resource); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, opts.event(events.TaskMemberRemoved, events.EventPayload{"role": role.Name}))
	})
	e.record("task member removed", err, opts.fields()...)
	return err
}

var viewAction = map[auth.Scope]auth.Action{
	auth.ScopeTeam:    auth.TeamView,
	auth.ScopeProject: auth.ProjectView,
	auth.ScopeTask:    auth.TaskView,
}

// ListMembers returns the memberships of a resource the actor can view.
func (e Engine) ListMembers(ctx context.Context, actorID string, res auth.Resource) ([]domain.Membership, error) {
	if err := e.requireResource(ctx, nil, res); err != nil {
		return nil, err
	}
	if err := e.Authorizer().Check(ctx, actorID, viewAction[res.Kind], res); err != nil {
		return nil, err
	}
	return e.Repo.Members().ListMembers(ctx, res)
}
