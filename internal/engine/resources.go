package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/domain"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/events"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/htmlsanitize"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/repo"
)

var (
	taskStatuses   = map[string]bool{"todo": true, "in_progress": true, "done": true}
	taskPriorities = map[string]bool{"low": true, "medium": true, "high": true}
)

type TeamCreateOptions struct {
	ActorID     string
	Name        string
	Description string
}

// CreateTeam creates a team owned by the actor.
func (e Engine) CreateTeam(ctx context.Context, opts TeamCreateOptions) (domain.Team, error) {
	now := e.stamp()
	t := domain.Team{
		ID:          uuid.NewString(),
		Name:        htmlsanitize.PlainText(opts.Name),
		Description: htmlsanitize.Sanitize(opts.Description),
		CreatedBy:   opts.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := required("name_required", "name", t.Name); err != nil {
		return domain.Team{}, err
	}
	if err := required("principal_required", "actor id", opts.ActorID); err != nil {
		return domain.Team{}, err
	}
	err := e.inTx(ctx, func(s txScope) error {
		if err := e.Repo.EnsurePrincipal(ctx, s.tx, opts.ActorID, now); err != nil {
			return err
		}
		taken, err := e.Repo.TeamNameTaken(ctx, s.tx, t.Name, "")
		if err != nil {
			return err
		}
		if taken {
			return auth.Conflict("team_name_taken", "team name %q is already taken", t.Name)
		}
		if err := e.Repo.InsertTeam(ctx, s.tx, t); err != nil {
			return err
		}
		if _, err := s.store.Grant(ctx, opts.ActorID, auth.Team(t.ID), auth.Role{Scope: auth.ScopeTeam, Name: auth.Owner}); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, events.Record{
			Type: events.TeamCreated, ResourceKind: "team", ResourceID: t.ID, ActorID: opts.ActorID,
			Payload: events.EventPayload{"name": t.Name},
		})
	})
	e.record("team created", err, zap.String("actor", opts.ActorID), zap.String("team", t.ID))
	if err != nil {
		return domain.Team{}, err
	}
	return t, nil
}

func (e Engine) GetTeam(ctx context.Context, actorID, id string) (domain.Team, error) {
	t, err := e.Repo.GetTeam(ctx, nil, id)
	if err != nil {
		return t, err
	}
	if err := e.Authorizer().Check(ctx, actorID, auth.TeamView, auth.Team(id)); err != nil {
		return domain.Team{}, err
	}
	return t, nil
}

// ListTeams returns the teams the actor belongs to.
func (e Engine) ListTeams(ctx context.Context, actorID string) ([]domain.Team, error) {
	return e.Repo.ListTeamsFor(ctx, actorID)
}

type TeamUpdateOptions struct {
	ActorID     string
	ID          string
	Name        *string
	Description *string
}

func (e Engine) UpdateTeam(ctx context.Context, opts TeamUpdateOptions) (domain.Team, error) {
	var t domain.Team
	err := e.inTx(ctx, func(s txScope) error {
		var err error
		if t, err = e.Repo.GetTeam(ctx, s.tx, opts.ID); err != nil {
			return err
		}
		if err := s.authz.Check(ctx, opts.ActorID, auth.TeamUpdate, auth.Team(opts.ID)); err != nil {
			return err
		}
		if opts.Name != nil {
			name := htmlsanitize.PlainText(*opts.Name)
			if err := required("name_required", "name", name); err != nil {
				return err
			}
			taken, err := e.Repo.TeamNameTaken(ctx, s.tx, name, t.ID)
			if err != nil {
				return err
			}
			if taken {
				return auth.Conflict("team_name_taken", "team name %q is already taken", name)
			}
			t.Name = name
		}
		if opts.Description != nil {
			t.Description = htmlsanitize.Sanitize(*opts.Description)
		}
		t.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateTeam(ctx, s.tx, t); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, events.Record{
			Type: events.TeamUpdated, ResourceKind: "team", ResourceID: t.ID, ActorID: opts.ActorID,
		})
	})
	e.record("team updated", err, zap.String("actor", opts.ActorID), zap.String("team", opts.ID))
	if err != nil {
		return domain.Team{}, err
	}
	return t, nil
}

// DeleteTeam removes the team with its projects, tasks, memberships and invitations.
func (e Engine) DeleteTeam(ctx context.Context, actorID, id string) error {
	err := e.inTx(ctx, func(s txScope) error {
		if _, err := e.Repo.GetTeam(ctx, s.tx, id); err != nil {
			return err
		}
		if err := s.authz.Check(ctx, actorID, auth.TeamDelete, auth.Team(id)); err != nil {
			return err
		}
		if err := e.Repo.DeleteTeam(ctx, s.tx, id); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, events.Record{
			Type: events.TeamDeleted, ResourceKind: "team", ResourceID: id, ActorID: actorID,
		})
	})
	e.record("team deleted", err, zap.String("actor", actorID), zap.String("team", id))
	return err
}

type ProjectCreateOptions struct {
	ActorID     string
	TeamID      string
	Name        string
	Description string
}

// CreateProject needs team admin. The creator becomes project owner.
func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	now := e.stamp()
	p := domain.Project{
		ID:          uuid.NewString(),
		TeamID:      opts.TeamID,
		Name:        htmlsanitize.PlainText(opts.Name),
		Description: htmlsanitize.Sanitize(opts.Description),
		CreatedBy:   opts.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := required("name_required", "name", p.Name); err != nil {
		return domain.Project{}, err
	}
	err := e.inTx(ctx, func(s txScope) error {
		if _, err := e.Repo.GetTeam(ctx, s.tx, opts.TeamID); err != nil {
			return err
		}
		if err := s.authz.Check(ctx, opts.ActorID, auth.ProjectCreate, auth.Team(opts.TeamID)); err != nil {
			return err
		}
		if err := e.Repo.InsertProject(ctx, s.tx, p); err != nil {
			return err
		}
		if _, err := s.store.Grant(ctx, opts.ActorID, auth.Project(p.ID), auth.Role{Scope: auth.ScopeProject, Name: auth.Owner}); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, events.Record{
			Type: events.ProjectCreated, ResourceKind: "project", ResourceID: p.ID, ActorID: opts.ActorID,
			Payload: events.EventPayload{"team_id": p.TeamID, "name": p.Name},
		})
	})
	e.record("project created", err, zap.String("actor", opts.ActorID), zap.String("project", p.ID))
	if err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) GetProject(ctx context.Context, actorID, id string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, nil, id)
	if err != nil {
		return p, err
	}
	if err := e.Authorizer().Check(ctx, actorID, auth.ProjectView, auth.Project(id)); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// ListProjects returns the team's projects. Team members see all of them.
func (e Engine) ListProjects(ctx context.Context, actorID, teamID string) ([]domain.Project, error) {
	if _, err := e.GetTeam(ctx, actorID, teamID); err != nil {
		return nil, err
	}
	return e.Repo.ListProjects(ctx, teamID)
}

type ProjectUpdateOptions struct {
	ActorID     string
	ID          string
	Name        *string
	Description *string
}

func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	var p domain.Project
	err := e.inTx(ctx, func(s txScope) error {
		var err error
		if p, err = e.Repo.GetProject(ctx, s.tx, opts.ID); err != nil {
			return err
		}
		if err := s.authz.Check(ctx, opts.ActorID, auth.ProjectUpdate, auth.Project(opts.ID)); err != nil {
			return err
		}
		if opts.Name != nil {
			name := htmlsanitize.PlainText(*opts.Name)
			if err := required("name_required", "name", name); err != nil {
				return err
			}
			p.Name = name
		}
		if opts.Description != nil {
			p.Description = htmlsanitize.Sanitize(*opts.Description)
		}
		p.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateProject(ctx, s.tx, p); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, events.Record{
			Type: events.ProjectUpdated, ResourceKind: "project", ResourceID: p.ID, ActorID: opts.ActorID,
		})
	})
	e.record("project updated", err, zap.String("actor", opts.ActorID), zap.String("project", opts.ID))
	if err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) DeleteProject(ctx context.Context, actorID, id string) error {
	err := e.inTx(ctx, func(s txScope) error {
		p, err := e.Repo.GetProject(ctx, s.tx, id)
		if err != nil {
			return err
		}
		if err := s.authz.Check(ctx, actorID, auth.ProjectDelete, auth.Project(id)); err != nil {
			return err
		}
		if err := e.Repo.DeleteProject(ctx, s.tx, id); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, events.Record{
			Type: events.ProjectDeleted, ResourceKind: "project", ResourceID: id, ActorID: actorID,
			Payload: events.EventPayload{"team_id": p.TeamID},
		})
	})
	e.record("project deleted", err, zap.String("actor", actorID), zap.String("project", id))
	return err
}

// TaskCreateOptions creates a task in ProjectID, or a sub-task of ParentID. A sub-task
// inherits its parent's project.
type TaskCreateOptions struct {
	ActorID     string
	ProjectID   string
	ParentID    string
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     string
}

// CreateTask needs project admin. The creator is assigned to the new task.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	now := e.stamp()
	t := domain.Task{
		ID:          uuid.NewString(),
		ProjectID:   opts.ProjectID,
		Title:       htmlsanitize.PlainText(opts.Title),
		Description: htmlsanitize.Sanitize(opts.Description),
		Status:      opts.Status,
		Priority:    opts.Priority,
		CreatedBy:   opts.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Status == "" {
		t.Status = "todo"
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	if opts.DueDate != "" {
		due := opts.DueDate
		t.DueDate = &due
	}
	if err := validateTask(t); err != nil {
		return domain.Task{}, err
	}
	err := e.inTx(ctx, func(s txScope) error {
		if opts.ParentID != "" {
			parent, err := e.Repo.GetTask(ctx, s.tx, opts.ParentID)
			if err != nil {
				return err
			}
			if t.ProjectID != "" && t.ProjectID != parent.ProjectID {
				return auth.Validation("parent_project_mismatch", "parent task %s belongs to another project", parent.ID)
			}
			t.ProjectID = parent.ProjectID
			t.ParentID = &parent.ID
			if err := s.authz.Check(ctx, opts.ActorID, auth.SubTaskCreate, auth.Task(parent.ID)); err != nil {
				return err
			}
		} else {
			if _, err := e.Repo.GetProject(ctx, s.tx, t.ProjectID); err != nil {
				return err
			}
			if err := s.authz.Check(ctx, opts.ActorID, auth.TaskCreate, auth.Project(t.ProjectID)); err != nil {
				return err
			}
		}
		if err := e.Repo.InsertTask(ctx, s.tx, t); err != nil {
			return err
		}
		if _, err := s.store.Grant(ctx, opts.ActorID, auth.Task(t.ID), auth.Role{Scope: auth.ScopeTask, Name: auth.Assignee}); err != nil {
			return err
		}
		payload := events.EventPayload{"project_id": t.ProjectID, "title": t.Title}
		if t.ParentID != nil {
			payload["parent_id"] = *t.ParentID
		}
		return e.Events.Append(ctx, s.tx, events.Record{
			Type: events.TaskCreated, ResourceKind: "task", ResourceID: t.ID, ActorID: opts.ActorID, Payload: payload,
		})
	})
	e.record("task created", err, zap.String("actor", opts.ActorID), zap.String("task", t.ID), zap.String("project", t.ProjectID))
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func validateTask(t domain.Task) error {
	if err := required("title_required", "title", t.Title); err != nil {
		return err
	}
	if !taskStatuses[t.Status] {
		return auth.Validation("invalid_status", "status must be todo, in_progress or done")
	}
	if !taskPriorities[t.Priority] {
		return auth.Validation("invalid_priority", "priority must be low, medium or high")
	}
	return nil
}

func (e Engine) GetTask(ctx context.Context, actorID, id string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, nil, id)
	if err != nil {
		return t, err
	}
	if err := e.Authorizer().Check(ctx, actorID, auth.TaskView, auth.Task(id)); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// ListTasks returns the project's top-level tasks, or the sub-tasks of parentID, that
// the actor may view.
func (e Engine) ListTasks(ctx context.Context, actorID, projectID, parentID string) ([]domain.Task, error) {
	az := e.Authorizer()
	f := repo.TaskFilters{ProjectID: projectID, ParentID: parentID, TopLevel: parentID == ""}
	if parentID != "" {
		if _, err := e.GetTask(ctx, actorID, parentID); err != nil {
			return nil, err
		}
	} else if _, err := e.GetProject(ctx, actorID, projectID); err != nil {
		return nil, err
	}
	all, err := e.Repo.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}
	var out []domain.Task
	for _, t := range all {
		ok, err := az.CanView(ctx, actorID, auth.Task(t.ID))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

type TaskUpdateOptions struct {
	ActorID     string
	ID          string
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	var t domain.Task
	err := e.inTx(ctx, func(s txScope) error {
		var err error
		if t, err = e.Repo.GetTask(ctx, s.tx, opts.ID); err != nil {
			return err
		}
		if err := s.authz.Check(ctx, opts.ActorID, auth.TaskUpdate, auth.Task(opts.ID)); err != nil {
			return err
		}
		if opts.Title != nil {
			t.Title = htmlsanitize.PlainText(*opts.Title)
		}
		if opts.Description != nil {
			t.Description = htmlsanitize.Sanitize(*opts.Description)
		}
		if opts.Status != nil {
			t.Status = *opts.Status
		}
		if opts.Priority != nil {
			t.Priority = *opts.Priority
		}
		if opts.DueDate != nil {
			t.DueDate = opts.DueDate
			if *opts.DueDate == "" {
				t.DueDate = nil
			}
		}
		if err := validateTask(t); err != nil {
			return err
		}
		t.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateTask(ctx, s.tx, t); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, events.Record{
			Type: events.TaskUpdated, ResourceKind: "task", ResourceID: t.ID, ActorID: opts.ActorID,
			Payload: events.EventPayload{"status": t.Status},
		})
	})
	e.record("task updated", err, zap.String("actor", opts.ActorID), zap.String("task", opts.ID))
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// DeleteTask needs project owner. Sub-tasks go with it.
func (e Engine) DeleteTask(ctx context.Context, actorID, id string) error {
	err := e.inTx(ctx, func(s txScope) error {
		t, err := e.Repo.GetTask(ctx, s.tx, id)
		if err != nil {
			return err
		}
		if err := s.authz.Check(ctx, actorID, auth.TaskDelete, auth.Task(id)); err != nil {
			return err
		}
		if err := e.Repo.DeleteTask(ctx, s.tx, id); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, events.Record{
			Type: events.TaskDeleted, ResourceKind: "task", ResourceID: id, ActorID: actorID,
			Payload: events.EventPayload{"project_id": t.ProjectID},
		})
	})
	e.record("task deleted", err, zap.String("actor", actorID), zap.String("task", id))
	return err
}
