package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Memberships is the lookup side of the membership store.
type Memberships interface {
	// FindRole returns the role p holds on res. ok is false when there is no membership.
	FindRole(ctx context.Context, principal string, res Resource) (role Role, ok bool, err error)
	CountByRole(ctx context.Context, res Resource, role Role) (int, error)
}

// Hierarchy resolves the containing resource: task to project, project to team.
type Hierarchy interface {
	Parent(ctx context.Context, res Resource) (Resource, error)
}

// TaskViewPolicy selects who may view a task.
type TaskViewPolicy string

const (
	// TaskViewAssigned limits task visibility to task members plus project admins and owners.
	TaskViewAssigned TaskViewPolicy = "assigned"
	// TaskViewProject lets anyone who can view the project view its tasks.
	TaskViewProject TaskViewPolicy = "project"
)

func ParseTaskView(s string) (TaskViewPolicy, error) {
	switch TaskViewPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", TaskViewAssigned:
		return TaskViewAssigned, nil
	case TaskViewProject:
		return TaskViewProject, nil
	}
	return "", fmt.Errorf("task_view must be %q or %q, got %q", TaskViewAssigned, TaskViewProject, s)
}

type Policy struct {
	TaskView                  TaskViewPolicy
	ProjectInviteRequiresTeam bool
}

func DefaultPolicy() Policy {
	return Policy{TaskView: TaskViewAssigned, ProjectInviteRequiresTeam: true}
}

// Authorizer evaluates rank predicates, actions and guard rules. It holds no state of
// its own; every decision reads through Members and Tree.
type Authorizer struct {
	Members Memberships
	Tree    Hierarchy
	Policy  Policy
}

func New(members Memberships, tree Hierarchy, policy Policy) Authorizer {
	if policy.TaskView == "" {
		policy.TaskView = TaskViewAssigned
	}
	return Authorizer{Members: members, Tree: tree, Policy: policy}
}

func (a Authorizer) RoleOf(ctx context.Context, p string, res Resource) (Role, bool, error) {
	if err := res.Validate(); err != nil {
		return Role{}, false, err
	}
	if p == "" {
		return Role{}, false, nil
	}
	role, ok, err := a.Members.FindRole(ctx, p, res)
	if err != nil {
		return Role{}, false, fmt.Errorf("find role of %s on %s: %w", p, res, err)
	}
	return role, ok, nil
}

// MemberOf reports whether p holds any role on res. Valid for every scope.
func (a Authorizer) MemberOf(ctx context.Context, p string, res Resource) (bool, error) {
	_, ok, err := a.RoleOf(ctx, p, res)
	return ok, err
}

func (a Authorizer) AdminOf(ctx context.Context, p string, res Resource) (bool, error) {
	return a.HasAtLeast(ctx, p, res, Admin)
}

func (a Authorizer) OwnerOf(ctx context.Context, p string, res Resource) (bool, error) {
	return a.HasAtLeast(ctx, p, res, Owner)
}

// HasAtLeast compares p's role on res with min. Only teams and projects are ranked.
func (a Authorizer) HasAtLeast(ctx context.Context, p string, res Resource, min string) (bool, error) {
	if !res.Kind.Ordered() {
		return false, Validation(CodeInvalidScope, "%s roles are not ranked", res.Kind)
	}
	if _, ok := ranks[min]; !ok {
		return false, Validation(CodeInvalidRole, "invalid role %q", min)
	}
	role, ok, err := a.RoleOf(ctx, p, res)
	if err != nil || !ok {
		return false, err
	}
	return role.AtLeast(min), nil
}

// CanView is the read-visibility rule. Projects fall back to team membership; tasks
// follow Policy.TaskView.
func (a Authorizer) CanView(ctx context.Context, p string, res Resource) (bool, error) {
	switch res.Kind {
	case ScopeTeam:
		return a.MemberOf(ctx, p, res)
	case ScopeProject:
		ok, err := a.MemberOf(ctx, p, res)
		if err != nil || ok {
			return ok, err
		}
		team, err := a.parent(ctx, res)
		if err != nil {
			return false, err
		}
		return a.MemberOf(ctx, p, team)
	case ScopeTask:
		project, err := a.parent(ctx, res)
		if err != nil {
			return false, err
		}
		if a.Policy.TaskView == TaskViewProject {
			return a.CanView(ctx, p, project)
		}
		ok, err := a.MemberOf(ctx, p, res)
		if err != nil || ok {
			return ok, err
		}
		return a.AdminOf(ctx, p, project)
	}
	return false, res.Validate()
}

func (a Authorizer) parent(ctx context.Context, res Resource) (Resource, error) {
	parent, err := a.Tree.Parent(ctx, res)
	if err != nil {
		var ae *Error
		if errors.As(err, &ae) {
			return Resource{}, err
		}
		return Resource{}, fmt.Errorf("parent of %s: %w", res, err)
	}
	return parent, nil
}

// Decision separates a denial from a failure to decide.
type Decision struct {
	Allowed bool
	Reason  *Error
}

// Decide runs Check and folds denials into the Decision. err is only set when the
// store could not answer.
func (a Authorizer) Decide(ctx context.Context, p string, action Action, res Resource) (Decision, error) {
	err := a.Check(ctx, p, action, res)
	if err == nil {
		return Decision{Allowed: true}, nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return Decision{Reason: ae}, nil
	}
	return Decision{}, err
}

// Allowed lists every action p may perform on res, in table order.
func (a Authorizer) Allowed(ctx context.Context, p string, res Resource) ([]Action, error) {
	if err := res.Validate(); err != nil {
		return nil, err
	}
	var out []Action
	for _, act := range actionOrder {
		if actions[act].on != res.Kind {
			continue
		}
		err := a.Check(ctx, p, act, res)
		if err == nil {
			out = append(out, act)
			continue
		}
		if errors.Is(err, ErrForbidden) {
			continue
		}
		return nil, err
	}
	return out, nil
}
