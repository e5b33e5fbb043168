package auth

import "strings"

// Scope is the kind of resource a role or membership is attached to.
type Scope string

const (
	ScopeTeam    Scope = "team"
	ScopeProject Scope = "project"
	ScopeTask    Scope = "task"
)

// ParseScope validates a scope name. "subtask" is accepted and folded into the task scope.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "team":
		return ScopeTeam, nil
	case "project":
		return ScopeProject, nil
	case "task", "subtask", "sub_task":
		return ScopeTask, nil
	}
	return "", Validation(CodeInvalidScope, "unknown scope %q", s)
}

// Ordered reports whether roles in this scope form a rank hierarchy.
func (s Scope) Ordered() bool {
	return s == ScopeTeam || s == ScopeProject
}

func (s Scope) valid() bool {
	return s == ScopeTeam || s == ScopeProject || s == ScopeTask
}

// Role names. Team and project share member < admin < owner; task roles carry no rank.
const (
	Member = "member"
	Admin  = "admin"
	Owner  = "owner"

	Assignee = "assignee"
	Reviewer = "reviewer"
	Watcher  = "watcher"
)

var ranks = map[string]int{Member: 1, Admin: 2, Owner: 3}

var taskRoles = map[string]bool{Assignee: true, Reviewer: true, Watcher: true}

// Role is a role name tagged with the scope it belongs to.
type Role struct {
	Scope Scope
	Name  string
}

// NewRole validates name against the role set of scope.
func NewRole(scope Scope, name string) (Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch {
	case scope.Ordered():
		if _, ok := ranks[name]; ok {
			return Role{Scope: scope, Name: name}, nil
		}
		return Role{}, Validation(CodeInvalidRole, "invalid role %q for %s: must be member, admin or owner", name, scope)
	case scope == ScopeTask:
		if taskRoles[name] {
			return Role{Scope: scope, Name: name}, nil
		}
		return Role{}, Validation(CodeInvalidRole, "invalid role %q for task: must be assignee, reviewer or watcher", name)
	}
	return Role{}, Validation(CodeInvalidScope, "unknown scope %q", scope)
}

// Rank is the position of the role in its scope's hierarchy; 0 for unordered scopes.
func (r Role) Rank() int {
	if !r.Scope.Ordered() {
		return 0
	}
	return ranks[r.Name]
}

// AtLeast reports whether r ranks at or above min. Always false for unordered roles.
func (r Role) AtLeast(min string) bool {
	want, ok := ranks[min]
	if !ok || !r.Scope.Ordered() {
		return false
	}
	return r.Rank() >= want
}

func (r Role) IsZero() bool { return r.Name == "" }

func (r Role) String() string {
	if r.IsZero() {
		return ""
	}
	return string(r.Scope) + ":" + r.Name
}

// Resource identifies a team, project or task. Sub-tasks use ScopeTask.
type Resource struct {
	Kind Scope
	ID   string
}

func Team(id string) Resource    { return Resource{Kind: ScopeTeam, ID: id} }
func Project(id string) Resource { return Resource{Kind: ScopeProject, ID: id} }
func Task(id string) Resource    { return Resource{Kind: ScopeTask, ID: id} }

func (r Resource) String() string { return string(r.Kind) + "/" + r.ID }

// Validate checks that the resource names a known scope and a non-empty id.
func (r Resource) Validate() error {
	if !r.Kind.valid() {
		return Validation(CodeInvalidScope, "unknown scope %q", r.Kind)
	}
	if strings.TrimSpace(r.ID) == "" {
		return Validation(CodeInvalidScope, "%s id required", r.Kind)
	}
	return nil
}
