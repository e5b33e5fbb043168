package auth

import (
	"context"
	"errors"
)

// Guard rules for membership mutations. Each Check* returns the role the caller should
// write (or the role being removed) and never mutates the store itself. Callers run the
// check and the mutation in one transaction.

func manageAction(scope Scope) (Action, error) {
	switch scope {
	case ScopeTeam:
		return TeamManageMembers, nil
	case ScopeProject:
		return ProjectManageMembers, nil
	}
	return "", Validation(CodeInvalidScope, "%s memberships are not ranked", scope)
}

func inviteAction(scope Scope) (Action, error) {
	switch scope {
	case ScopeTeam:
		return TeamInvite, nil
	case ScopeProject:
		return ProjectInvite, nil
	}
	return "", Validation(CodeInvalidScope, "cannot invite to a %s", scope)
}

// targetRole loads the target's membership or reports it missing.
func (a Authorizer) targetRole(ctx context.Context, target string, res Resource) (Role, error) {
	role, ok, err := a.RoleOf(ctx, target, res)
	if err != nil {
		return Role{}, err
	}
	if !ok {
		return Role{}, NotFound(CodeMembershipNotFound, "%s is not a member of %s", target, res)
	}
	return role, nil
}

// CheckPromote allows member to admin only, by an owner.
func (a Authorizer) CheckPromote(ctx context.Context, actor, target string, res Resource) (Role, error) {
	act, err := manageAction(res.Kind)
	if err != nil {
		return Role{}, err
	}
	if err := a.Check(ctx, actor, act, res); err != nil {
		return Role{}, err
	}
	cur, err := a.targetRole(ctx, target, res)
	if err != nil {
		return Role{}, err
	}
	switch cur.Name {
	case Owner:
		return Role{}, Conflict(CodeAlreadyOwner, "user is already an owner")
	case Admin:
		return Role{}, Conflict(CodeAlreadyAdmin, "user is already an admin")
	}
	return Role{Scope: res.Kind, Name: Admin}, nil
}

// CheckDemote allows admin to member only, by an owner. Owners are never demoted.
func (a Authorizer) CheckDemote(ctx context.Context, actor, target string, res Resource) (Role, error) {
	act, err := manageAction(res.Kind)
	if err != nil {
		return Role{}, err
	}
	if err := a.Check(ctx, actor, act, res); err != nil {
		return Role{}, err
	}
	cur, err := a.targetRole(ctx, target, res)
	if err != nil {
		return Role{}, err
	}
	switch cur.Name {
	case Owner:
		return Role{}, InvalidTransition(CodeOwnerImmutable, "cannot demote the owner")
	case Member:
		return Role{}, Conflict(CodeAlreadyMember, "user is already a member")
	}
	return Role{Scope: res.Kind, Name: Member}, nil
}

// CheckRemove validates removing target from a team or project. Owners leave only when
// the resource itself is deleted.
func (a Authorizer) CheckRemove(ctx context.Context, actor, target string, res Resource) (Role, error) {
	act, err := manageAction(res.Kind)
	if err != nil {
		return Role{}, err
	}
	if err := a.Check(ctx, actor, act, res); err != nil {
		return Role{}, err
	}
	cur, err := a.targetRole(ctx, target, res)
	if err != nil {
		return Role{}, err
	}
	if cur.Name == Owner {
		return Role{}, InvalidTransition(CodeOwnerImmutable, "cannot remove the owner")
	}
	return cur, nil
}

// CheckInvite validates granting roleName on a team or project to target. An empty
// roleName means member.
func (a Authorizer) CheckInvite(ctx context.Context, actor, target string, res Resource, roleName string) (Role, error) {
	act, err := inviteAction(res.Kind)
	if err != nil {
		return Role{}, err
	}
	if roleName == "" {
		roleName = Member
	}
	role, err := NewRole(res.Kind, roleName)
	if err != nil {
		return Role{}, err
	}
	if err := a.Check(ctx, actor, act, res); err != nil {
		return Role{}, err
	}
	switch role.Name {
	case Owner:
		return Role{}, InvalidTransition(CodeOwnerNotGrantable, "the owner role is only granted on creation")
	case Admin:
		ok, err := a.OwnerOf(ctx, actor, res)
		if err != nil {
			return Role{}, err
		}
		if !ok {
			return Role{}, Forbidden(CodeAdminGrantRequiresOwner, "only an owner may grant the admin role")
		}
	}
	exists, err := a.MemberOf(ctx, target, res)
	if err != nil {
		return Role{}, err
	}
	if exists {
		return Role{}, Conflict(CodeMembershipExists, "user is already a member of this %s", res.Kind)
	}
	if err := a.requireTeamForProject(ctx, target, res); err != nil {
		return Role{}, err
	}
	return role, nil
}

// CheckAcceptInvitation re-checks invitee eligibility when a pending invitation is
// accepted, since team membership may have changed after it was sent.
func (a Authorizer) CheckAcceptInvitation(ctx context.Context, invitee string, res Resource) error {
	return a.requireTeamForProject(ctx, invitee, res)
}

func (a Authorizer) requireTeamForProject(ctx context.Context, target string, res Resource) error {
	if res.Kind != ScopeProject || !a.Policy.ProjectInviteRequiresTeam {
		return nil
	}
	team, err := a.parent(ctx, res)
	if err != nil {
		return err
	}
	inTeam, err := a.MemberOf(ctx, target, team)
	if err != nil {
		return err
	}
	if !inTeam {
		return InvalidTransition(CodeInviteeNotInTeam, "user must be a member of the project's team")
	}
	return nil
}

// CheckAssignTask validates adding target to a task. An empty roleName means assignee.
func (a Authorizer) CheckAssignTask(ctx context.Context, actor, target string, task Resource, roleName string) (Role, error) {
	if task.Kind != ScopeTask {
		return Role{}, Validation(CodeInvalidScope, "%s is not a task", task)
	}
	if roleName == "" {
		roleName = Assignee
	}
	role, err := NewRole(ScopeTask, roleName)
	if err != nil {
		return Role{}, err
	}
	if err := a.Check(ctx, actor, TaskManageMembers, task); err != nil {
		return Role{}, err
	}
	project, err := a.parent(ctx, task)
	if err != nil {
		return Role{}, err
	}
	inProject, err := a.MemberOf(ctx, target, project)
	if err != nil {
		return Role{}, err
	}
	if !inProject {
		return Role{}, InvalidTransition(CodeAssigneeNotInProject, "user must be a member of the project to be assigned to tasks")
	}
	exists, err := a.MemberOf(ctx, target, task)
	if err != nil {
		return Role{}, err
	}
	if exists {
		return Role{}, Conflict(CodeMembershipExists, "user is already a member of this task")
	}
	return role, nil
}

// CheckRemoveTask validates removing target's task membership. Authority comes from the
// project role. Every violated rule is reported, joined.
func (a Authorizer) CheckRemoveTask(ctx context.Context, actor, target string, task Resource) (Role, error) {
	if task.Kind != ScopeTask {
		return Role{}, Validation(CodeInvalidScope, "%s is not a task", task)
	}
	if err := a.Check(ctx, actor, TaskManageMembers, task); err != nil {
		return Role{}, err
	}
	cur, err := a.targetRole(ctx, target, task)
	if err != nil {
		return Role{}, err
	}
	project, err := a.parent(ctx, task)
	if err != nil {
		return Role{}, err
	}
	actorOwner, err := a.OwnerOf(ctx, actor, project)
	if err != nil {
		return Role{}, err
	}

	var violations []error
	if actor == target && actorOwner {
		violations = append(violations, InvalidTransition(CodeOwnerSelfRemoval, "project owners cannot remove themselves from tasks"))
	}
	if actor != target && !actorOwner {
		privileged, err := a.AdminOf(ctx, target, project)
		if err != nil {
			return Role{}, err
		}
		if privileged {
			violations = append(violations, Forbidden(CodePrivilegedTaskMember, "only project owners can remove other owners or admins from tasks"))
		}
	}
	if cur.Name == Assignee {
		n, err := a.Members.CountByRole(ctx, task, cur)
		if err != nil {
			return Role{}, err
		}
		if n <= 1 {
			violations = append(violations, InvalidTransition(CodeLastAssignee, "cannot remove the only assignee from a task"))
		}
	}
	switch len(violations) {
	case 0:
		return cur, nil
	case 1:
		return Role{}, violations[0]
	}
	return Role{}, errors.Join(violations...)
}
