package auth

import "context"

// Action is a dotted action id such as "project.update".
type Action string

const (
	TeamView          Action = "team.view"
	TeamUpdate        Action = "team.update"
	TeamInvite        Action = "team.invite"
	TeamDelete        Action = "team.delete"
	TeamManageMembers Action = "team.members.manage"
	ProjectCreate     Action = "project.create"

	ProjectView          Action = "project.view"
	ProjectUpdate        Action = "project.update"
	ProjectInvite        Action = "project.invite"
	ProjectModerate      Action = "project.moderate"
	ProjectContribute    Action = "project.contribute"
	ProjectDelete        Action = "project.delete"
	ProjectManageMembers Action = "project.members.manage"
	TaskCreate           Action = "task.create"

	TaskView          Action = "task.view"
	TaskUpdate        Action = "task.update"
	SubTaskCreate     Action = "task.subtask.create"
	TaskManageMembers Action = "task.members.manage"
	TaskDelete        Action = "task.delete"
	TaskContribute    Action = "task.contribute"
	TaskModerate      Action = "task.moderate"
)

type check int

const (
	checkRank check = iota
	checkView
	checkContribute
)

// requirement describes one row of the action table. on is the resource kind the action
// targets; rank requirements on tasks are evaluated against the owning project.
type requirement struct {
	on   Scope
	kind check
	min  string
}

var actions = map[Action]requirement{
	TeamView:          {on: ScopeTeam, kind: checkView},
	TeamUpdate:        {on: ScopeTeam, min: Admin},
	TeamInvite:        {on: ScopeTeam, min: Admin},
	TeamDelete:        {on: ScopeTeam, min: Owner},
	TeamManageMembers: {on: ScopeTeam, min: Owner},
	ProjectCreate:     {on: ScopeTeam, min: Admin},

	ProjectView:          {on: ScopeProject, kind: checkView},
	ProjectUpdate:        {on: ScopeProject, min: Admin},
	ProjectInvite:        {on: ScopeProject, min: Admin},
	ProjectModerate:      {on: ScopeProject, min: Admin},
	ProjectContribute:    {on: ScopeProject, min: Member},
	ProjectDelete:        {on: ScopeProject, min: Owner},
	ProjectManageMembers: {on: ScopeProject, min: Owner},
	TaskCreate:           {on: ScopeProject, min: Admin},

	TaskView:          {on: ScopeTask, kind: checkView},
	TaskUpdate:        {on: ScopeTask, min: Admin},
	SubTaskCreate:     {on: ScopeTask, min: Admin},
	TaskManageMembers: {on: ScopeTask, min: Admin},
	TaskDelete:        {on: ScopeTask, min: Owner},
	TaskContribute:    {on: ScopeTask, kind: checkContribute},
	TaskModerate:      {on: ScopeTask, min: Admin},
}

var actionOrder = []Action{
	TeamView, TeamUpdate, TeamInvite, TeamDelete, TeamManageMembers, ProjectCreate,
	ProjectView, ProjectUpdate, ProjectInvite, ProjectModerate, ProjectContribute, ProjectDelete, ProjectManageMembers, TaskCreate,
	TaskView, TaskUpdate, SubTaskCreate, TaskManageMembers, TaskDelete, TaskContribute, TaskModerate,
}

// ParseAction validates an action id.
func ParseAction(s string) (Action, error) {
	if _, ok := actions[Action(s)]; !ok {
		return "", Validation(CodeInvalidAction, "unknown action %q", s)
	}
	return Action(s), nil
}

// Scope is the resource kind the action applies to.
func (a Action) Scope() Scope { return actions[a].on }

// Check returns nil when p may perform action on res. A denial is a *Error; any other
// error means the store could not be read.
func (a Authorizer) Check(ctx context.Context, p string, action Action, res Resource) error {
	req, ok := actions[action]
	if !ok {
		return Validation(CodeInvalidAction, "unknown action %q", action)
	}
	if err := res.Validate(); err != nil {
		return err
	}
	if res.Kind != req.on {
		return Validation(CodeInvalidAction, "action %s applies to a %s, not a %s", action, req.on, res.Kind)
	}
	switch req.kind {
	case checkView:
		ok, err := a.CanView(ctx, p, res)
		if err != nil {
			return err
		}
		if !ok {
			return a.viewDenied(res)
		}
		return nil
	case checkContribute:
		return a.checkContribute(ctx, p, res)
	}
	target := res
	if res.Kind == ScopeTask {
		project, err := a.parent(ctx, res)
		if err != nil {
			return err
		}
		target = project
	}
	ok, err := a.HasAtLeast(ctx, p, target, req.min)
	if err != nil {
		return err
	}
	if !ok {
		return rankDenied(target.Kind, req.min)
	}
	return nil
}

// checkContribute covers adding comments, tags and attachments to a task. Under the
// assigned policy that takes a task membership or project admin; otherwise any project member.
func (a Authorizer) checkContribute(ctx context.Context, p string, task Resource) error {
	project, err := a.parent(ctx, task)
	if err != nil {
		return err
	}
	if a.Policy.TaskView == TaskViewProject {
		ok, err := a.MemberOf(ctx, p, project)
		if err != nil {
			return err
		}
		if !ok {
			return rankDenied(ScopeProject, Member)
		}
		return nil
	}
	ok, err := a.MemberOf(ctx, p, task)
	if err != nil || ok {
		return err
	}
	ok, err = a.AdminOf(ctx, p, project)
	if err != nil {
		return err
	}
	if !ok {
		return Forbidden(CodeTaskAssignmentRequired, "you must be assigned to this task to contribute to it")
	}
	return nil
}

func (a Authorizer) viewDenied(res Resource) *Error {
	switch res.Kind {
	case ScopeTeam:
		return Forbidden(CodeTeamMemberRequired, "you must be a member of this team")
	case ScopeProject:
		return Forbidden(CodeProjectMemberRequired, "you must be a member of this project or its team")
	}
	if a.Policy.TaskView == TaskViewProject {
		return Forbidden(CodeProjectMemberRequired, "you must be a member of this task's project or its team")
	}
	return Forbidden(CodeTaskAssignmentRequired, "you must be assigned to this task to view it")
}

func rankDenied(scope Scope, min string) *Error {
	codes := map[Scope]map[string]string{
		ScopeTeam:    {Member: CodeTeamMemberRequired, Admin: CodeTeamAdminRequired, Owner: CodeTeamOwnerRequired},
		ScopeProject: {Member: CodeProjectMemberRequired, Admin: CodeProjectAdminRequired, Owner: CodeProjectOwnerRequired},
	}
	article := "a"
	if min == Admin || min == Owner {
		article = "an"
	}
	return Forbidden(codes[scope][min], "you must be %s %s of this %s", article, min, scope)
}
