package tmsdk

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/config"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/db"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/migrate"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/server"
)

func newAPI(t *testing.T) (string, engine.Engine) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	h, err := server.New(server.Config{Engine: e, Auth: server.AuthConfig{JWTSecret: "sdk-secret", EnableDevLogin: true}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL + server.DefaultBasePath, e
}

// clientFor registers principalID and returns a client holding one of its API keys.
func clientFor(t *testing.T, base string, e engine.Engine, principalID string) *Client {
	t.Helper()
	ctx := context.Background()
	if _, err := e.RegisterPrincipal(ctx, engine.PrincipalOptions{ID: principalID}); err != nil {
		t.Fatalf("register %s: %v", principalID, err)
	}
	key, _, err := e.CreateAPIKey(ctx, principalID, "sdk")
	if err != nil {
		t.Fatalf("api key for %s: %v", principalID, err)
	}
	c := New(base)
	c.APIKey = key
	return c
}

func TestClientMembershipFlow(t *testing.T) {
	ctx := context.Background()
	base, e := newAPI(t)
	owner, guest := clientFor(t, base, e, "owner"), clientFor(t, base, e, "guest")
	if err := guest.Login(ctx, "owner"); err == nil {
		t.Fatalf("expected guest to be refused a token for owner")
	}
	if err := owner.Login(ctx, "owner"); err != nil {
		t.Fatalf("login owner: %v", err)
	}
	if err := guest.Login(ctx, "guest"); err != nil {
		t.Fatalf("login guest: %v", err)
	}

	team, err := owner.CreateTeam(ctx, "SDK")
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	if _, err := guest.CreateProject(ctx, team.ID, "nope"); err == nil {
		t.Fatalf("expected guest project creation to fail")
	} else {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 403 || apiErr.Code != "team_admin_required" {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if _, err := owner.AddMember(ctx, "team", team.ID, "guest", ""); err != nil {
		t.Fatalf("add member: %v", err)
	}
	m, err := owner.Promote(ctx, "team", team.ID, "guest")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if m.Role != "admin" {
		t.Fatalf("expected admin, got %s", m.Role)
	}
	project, err := guest.CreateProject(ctx, team.ID, "Client")
	if err != nil {
		t.Fatalf("create project as admin: %v", err)
	}
	task, err := guest.CreateTask(ctx, project.ID, "", "Ship SDK")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	sub, err := guest.CreateTask(ctx, "", task.ID, "Write tests")
	if err != nil {
		t.Fatalf("create subtask: %v", err)
	}
	if sub.ProjectID != project.ID {
		t.Fatalf("subtask project %s, want %s", sub.ProjectID, project.ID)
	}
	access, err := guest.Access(ctx, "project", project.ID)
	if err != nil {
		t.Fatalf("access: %v", err)
	}
	if access.Role != "owner" || !access.CanView {
		t.Fatalf("unexpected access %+v", access)
	}
	if err := owner.RemoveMember(ctx, "team", team.ID, "owner"); err == nil {
		t.Fatalf("expected owner removal to fail")
	}
}
