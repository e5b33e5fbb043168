package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
)

type fakeStore struct {
	roles   map[string]map[auth.Resource]auth.Role
	parents map[auth.Resource]auth.Resource
	fail    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		roles:   map[string]map[auth.Resource]auth.Role{},
		parents: map[auth.Resource]auth.Resource{},
	}
}

func (f *fakeStore) grant(t *testing.T, p string, res auth.Resource, name string) {
	t.Helper()
	role, err := auth.NewRole(res.Kind, name)
	if err != nil {
		t.Fatalf("role: %v", err)
	}
	if f.roles[p] == nil {
		f.roles[p] = map[auth.Resource]auth.Role{}
	}
	f.roles[p][res] = role
}

func (f *fakeStore) FindRole(_ context.Context, p string, res auth.Resource) (auth.Role, bool, error) {
	if f.fail != nil {
		return auth.Role{}, false, f.fail
	}
	role, ok := f.roles[p][res]
	return role, ok, nil
}

func (f *fakeStore) CountByRole(_ context.Context, res auth.Resource, role auth.Role) (int, error) {
	n := 0
	for _, byRes := range f.roles {
		if byRes[res] == role {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Parent(_ context.Context, res auth.Resource) (auth.Resource, error) {
	parent, ok := f.parents[res]
	if !ok {
		return auth.Resource{}, auth.NotFound("not_found", "%s not found", res)
	}
	return parent, nil
}

var (
	team    = auth.Team("t1")
	project = auth.Project("p1")
	task    = auth.Task("k1")
	subtask = auth.Task("k2")
)

func newFixture(policy auth.Policy) (*fakeStore, auth.Authorizer) {
	store := newFakeStore()
	store.parents[project] = team
	store.parents[task] = project
	store.parents[subtask] = project
	return store, auth.New(store, store, policy)
}

func TestNewRoleValidatesScope(t *testing.T) {
	if _, err := auth.NewRole(auth.ScopeTeam, "assignee"); !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := auth.NewRole(auth.ScopeTask, "owner"); !auth.HasCode(err, auth.CodeInvalidRole) {
		t.Fatalf("expected invalid_role, got %v", err)
	}
	r, err := auth.NewRole(auth.ScopeProject, " Admin ")
	if err != nil {
		t.Fatalf("role: %v", err)
	}
	if r.Rank() != 2 || !r.AtLeast(auth.Member) || r.AtLeast(auth.Owner) {
		t.Fatalf("unexpected rank for %v", r)
	}
	w, _ := auth.NewRole(auth.ScopeTask, auth.Watcher)
	if w.Rank() != 0 || w.AtLeast(auth.Member) {
		t.Fatalf("task roles must be unranked")
	}
	if _, err := auth.ParseScope("galaxy"); !auth.HasCode(err, auth.CodeInvalidScope) {
		t.Fatalf("expected invalid_scope, got %v", err)
	}
	if s, err := auth.ParseScope("subtask"); err != nil || s != auth.ScopeTask {
		t.Fatalf("subtask should map to task, got %v %v", s, err)
	}
}

func TestRankMonotonicity(t *testing.T) {
	ctx := context.Background()
	store, a := newFixture(auth.DefaultPolicy())
	store.grant(t, "o", team, auth.Owner)
	store.grant(t, "a", team, auth.Admin)
	store.grant(t, "m", team, auth.Member)

	cases := []struct {
		p                      string
		member, admin, isOwner bool
	}{
		{"o", true, true, true},
		{"a", true, true, false},
		{"m", true, false, false},
		{"x", false, false, false},
	}
	for _, tc := range cases {
		m, _ := a.MemberOf(ctx, tc.p, team)
		ad, _ := a.AdminOf(ctx, tc.p, team)
		ow, _ := a.OwnerOf(ctx, tc.p, team)
		if m != tc.member || ad != tc.admin || ow != tc.isOwner {
			t.Fatalf("%s: member=%v admin=%v owner=%v", tc.p, m, ad, ow)
		}
	}
	if _, err := a.HasAtLeast(ctx, "o", task, auth.Member); !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("task scope is not ranked, got %v", err)
	}
}

func TestProjectVisibilityFallback(t *testing.T) {
	ctx := context.Background()
	store, a := newFixture(auth.DefaultPolicy())
	store.grant(t, "tm", team, auth.Member)

	ok, err := a.CanView(ctx, "tm", project)
	if err != nil || !ok {
		t.Fatalf("team member should view project: %v %v", ok, err)
	}
	if err := a.Check(ctx, "tm", auth.ProjectView, project); err != nil {
		t.Fatalf("project.view: %v", err)
	}
	err = a.Check(ctx, "tm", auth.ProjectUpdate, project)
	if !errors.Is(err, auth.ErrForbidden) || !auth.HasCode(err, auth.CodeProjectAdminRequired) {
		t.Fatalf("team fallback must not grant update, got %v", err)
	}
	err = a.Check(ctx, "tm", auth.ProjectContribute, project)
	if !auth.HasCode(err, auth.CodeProjectMemberRequired) {
		t.Fatalf("team fallback must not grant contribute, got %v", err)
	}
	if ok, _ := a.CanView(ctx, "nobody", project); ok {
		t.Fatalf("stranger should not view project")
	}
}

func TestTaskViewPolicies(t *testing.T) {
	ctx := context.Background()

	store, strict := newFixture(auth.DefaultPolicy())
	store.grant(t, "pm", project, auth.Member)
	store.grant(t, "pa", project, auth.Admin)
	store.grant(t, "as", task, auth.Assignee)
	if err := strict.Check(ctx, "pm", auth.TaskView, task); !auth.HasCode(err, auth.CodeTaskAssignmentRequired) {
		t.Fatalf("assigned policy: project member without task role denied, got %v", err)
	}
	if err := strict.Check(ctx, "pa", auth.TaskView, task); err != nil {
		t.Fatalf("assigned policy: project admin sees tasks: %v", err)
	}
	if err := strict.Check(ctx, "as", auth.TaskView, task); err != nil {
		t.Fatalf("assigned policy: assignee sees task: %v", err)
	}
	if err := strict.Check(ctx, "as", auth.TaskView, subtask); err == nil {
		t.Fatalf("assignment on a task does not extend to a sibling sub-task")
	}

	store, loose := newFixture(auth.Policy{TaskView: auth.TaskViewProject})
	store.grant(t, "tm", team, auth.Member)
	if err := loose.Check(ctx, "tm", auth.TaskView, task); err != nil {
		t.Fatalf("project policy: team member sees task: %v", err)
	}
	if err := loose.Check(ctx, "tm", auth.TaskContribute, task); !auth.HasCode(err, auth.CodeProjectMemberRequired) {
		t.Fatalf("project policy: contribute needs project membership, got %v", err)
	}
}

func TestTaskMutationUsesProjectRank(t *testing.T) {
	ctx := context.Background()
	store, a := newFixture(auth.DefaultPolicy())
	store.grant(t, "as", task, auth.Assignee)
	store.grant(t, "pa", project, auth.Admin)
	store.grant(t, "po", project, auth.Owner)

	if err := a.Check(ctx, "as", auth.TaskUpdate, task); !auth.HasCode(err, auth.CodeProjectAdminRequired) {
		t.Fatalf("task role must not grant update, got %v", err)
	}
	if err := a.Check(ctx, "pa", auth.SubTaskCreate, task); err != nil {
		t.Fatalf("subtask create: %v", err)
	}
	if err := a.Check(ctx, "pa", auth.TaskDelete, subtask); !auth.HasCode(err, auth.CodeProjectOwnerRequired) {
		t.Fatalf("delete needs owner, got %v", err)
	}
	if err := a.Check(ctx, "po", auth.TaskDelete, subtask); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestCheckRejectsUnknownActionAndScope(t *testing.T) {
	ctx := context.Background()
	_, a := newFixture(auth.DefaultPolicy())
	if err := a.Check(ctx, "x", auth.Action("team.explode"), team); !auth.HasCode(err, auth.CodeInvalidAction) {
		t.Fatalf("expected invalid_action, got %v", err)
	}
	if err := a.Check(ctx, "x", auth.TeamView, project); !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("expected scope mismatch validation, got %v", err)
	}
	if _, err := auth.ParseAction("task.view"); err != nil {
		t.Fatalf("parse action: %v", err)
	}
}

func TestDecideSeparatesStoreFailure(t *testing.T) {
	ctx := context.Background()
	store, a := newFixture(auth.DefaultPolicy())
	d, err := a.Decide(ctx, "x", auth.TeamUpdate, team)
	if err != nil || d.Allowed || d.Reason == nil || d.Reason.Code != auth.CodeTeamAdminRequired {
		t.Fatalf("unexpected decision %+v %v", d, err)
	}
	store.fail = errors.New("disk on fire")
	if _, err := a.Decide(ctx, "x", auth.TeamUpdate, team); err == nil || errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("store failure must surface as error, got %v", err)
	}
}

func TestAllowedListsActions(t *testing.T) {
	ctx := context.Background()
	store, a := newFixture(auth.DefaultPolicy())
	store.grant(t, "a", team, auth.Admin)
	got, err := a.Allowed(ctx, "a", team)
	if err != nil {
		t.Fatalf("allowed: %v", err)
	}
	want := []auth.Action{auth.TeamView, auth.TeamUpdate, auth.TeamInvite, auth.ProjectCreate}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
