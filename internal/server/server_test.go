package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/config"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/db"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/domain"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, principals ...string) *testServer {
	t.Helper()
	return newTestServerWithAuth(t, AuthConfig{JWTSecret: testSecret, AllowLegacyActorHeader: true, EnableDevLogin: true}, principals...)
}

func newTestServerWithAuth(t *testing.T, authCfg AuthConfig, principals ...string) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	for _, id := range principals {
		if _, err := e.RegisterPrincipal(context.Background(), engine.PrincipalOptions{ID: id}); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	handler, err := New(Config{Engine: e, Auth: authCfg})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String() + DefaultBasePath,
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func as(actor string) map[string]string {
	return map[string]string{"X-Actor-Id": actor}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func expectStatus(t *testing.T, res *http.Response, data []byte, want int) {
	t.Helper()
	if res.StatusCode != want {
		t.Fatalf("%s %s: status %d, want %d: %s", res.Request.Method, res.Request.URL.Path, res.StatusCode, want, string(data))
	}
}

func decodeError(t *testing.T, data []byte) apiErrorBody {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v: %s", err, string(data))
	}
	return env.Error
}

func createTeam(t *testing.T, srv *testServer, actor, name string) domain.Team {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/teams", map[string]any{"name": name}, as(actor))
	expectStatus(t, res, data, http.StatusCreated)
	var team domain.Team
	if err := json.Unmarshal(data, &team); err != nil {
		t.Fatalf("unmarshal team: %v", err)
	}
	return team
}

func TestAuthenticationRequired(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/teams", nil, nil)
	expectStatus(t, res, data, http.StatusUnauthorized)
	if got := decodeError(t, data).Code; got != "unauthorized" {
		t.Fatalf("expected unauthorized, got %s", got)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/health", nil, nil)
	expectStatus(t, res, data, http.StatusOK)
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/teams", nil, map[string]string{"Authorization": "Bearer nope"})
	expectStatus(t, res, data, http.StatusUnauthorized)
	if got := decodeError(t, data).Code; got != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %s", got)
	}
}

func TestDevLoginRequiresCredentials(t *testing.T) {
	srv := newTestServer(t, "owner", "mallory")
	team := createTeam(t, srv, "owner", "Vault")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/auth/dev/login", map[string]any{"principal_id": "owner"}, nil)
	expectStatus(t, res, data, http.StatusUnauthorized)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/auth/dev/login", map[string]any{"principal_id": "owner"}, as("mallory"))
	expectStatus(t, res, data, http.StatusForbidden)
	if got := decodeError(t, data).Code; got != "impersonation_denied" {
		t.Fatalf("expected impersonation_denied, got %s", got)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/teams/"+team.ID, nil, as("owner"))
	expectStatus(t, res, data, http.StatusOK)
}

func TestDevLoginDisabledByDefault(t *testing.T) {
	srv := newTestServerWithAuth(t, AuthConfig{JWTSecret: testSecret, AllowLegacyActorHeader: true}, "alice")
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/auth/dev/login", map[string]any{"principal_id": "alice"}, nil)
	expectStatus(t, res, data, http.StatusUnauthorized)
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/auth/dev/login", map[string]any{"principal_id": "alice"}, as("alice"))
	expectStatus(t, res, data, http.StatusNotFound)
}

func TestDevLoginAndAPIKey(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/auth/dev/login", map[string]any{"principal_id": "alice"}, as("alice"))
	expectStatus(t, res, data, http.StatusOK)
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/me", nil, map[string]string{"Authorization": "Bearer " + login.Token})
	expectStatus(t, res, data, http.StatusOK)
	var me WhoAmIResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.PrincipalID != "alice" || me.Source != "jwt" {
		t.Fatalf("unexpected principal %+v", me)
	}

	key, issued, err := srv.Engine.CreateAPIKey(context.Background(), "alice", "ci")
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/me", nil, map[string]string{"X-Api-Key": key})
	expectStatus(t, res, data, http.StatusOK)
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.Source != "api_key" {
		t.Fatalf("expected api_key source, got %s", me.Source)
	}

	keys, err := srv.Engine.ListAPIKeys(context.Background(), "alice")
	if err != nil || len(keys) != 1 || keys[0].ID != issued.ID {
		t.Fatalf("list api keys: %+v %v", keys, err)
	}
	if err := srv.Engine.RevokeAPIKey(context.Background(), issued.ID); err != nil {
		t.Fatalf("revoke api key: %v", err)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/me", nil, map[string]string{"X-Api-Key": key})
	expectStatus(t, res, data, http.StatusUnauthorized)
}

func TestTeamInviteOverHTTP(t *testing.T) {
	srv := newTestServer(t, "A", "B", "C")
	team := createTeam(t, srv, "A", "Platform")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/teams/"+team.ID+"/members", map[string]any{"principal_id": "B"}, as("A"))
	expectStatus(t, res, data, http.StatusCreated)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/teams/"+team.ID+"/members", map[string]any{"principal_id": "C"}, as("B"))
	expectStatus(t, res, data, http.StatusForbidden)
	if got := decodeError(t, data).Code; got != "team_admin_required" {
		t.Fatalf("expected team_admin_required, got %s", got)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/teams/"+team.ID+"/members", map[string]any{"principal_id": "B"}, as("A"))
	expectStatus(t, res, data, http.StatusConflict)

	res, data = doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/teams/"+team.ID+"/members/A/demote", nil, as("A"))
	expectStatus(t, res, data, http.StatusUnprocessableEntity)
	if got := decodeError(t, data).Code; got != "owner_immutable" {
		t.Fatalf("expected owner_immutable, got %s", got)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/teams/"+team.ID+"/members/B/promote", nil, as("A"))
	expectStatus(t, res, data, http.StatusOK)
	var m domain.Membership
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal membership: %v", err)
	}
	if m.Role != "admin" {
		t.Fatalf("expected admin, got %s", m.Role)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/teams/"+team.ID+"/members", nil, as("B"))
	expectStatus(t, res, data, http.StatusOK)
	var members MemberListResponse
	if err := json.Unmarshal(data, &members); err != nil {
		t.Fatalf("unmarshal members: %v", err)
	}
	if len(members.Items) != 2 || members.Items[0].Role != "owner" {
		t.Fatalf("unexpected members %+v", members.Items)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/teams/"+team.ID, nil, as("C"))
	expectStatus(t, res, data, http.StatusForbidden)
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/teams/missing", nil, as("A"))
	expectStatus(t, res, data, http.StatusNotFound)
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, "A", "U")
	team := createTeam(t, srv, "A", "Core")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/teams/"+team.ID+"/projects", map[string]any{"name": "API"}, as("A"))
	expectStatus(t, res, data, http.StatusCreated)
	var project domain.Project
	if err := json.Unmarshal(data, &project); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/projects/"+project.ID+"/tasks", map[string]any{"title": "Write docs"}, as("A"))
	expectStatus(t, res, data, http.StatusCreated)
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task.Status != "todo" || task.Priority != "medium" {
		t.Fatalf("unexpected defaults %+v", task)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/tasks/"+task.ID+"/subtasks", map[string]any{"title": "Outline"}, as("A"))
	expectStatus(t, res, data, http.StatusCreated)
	var sub domain.Task
	if err := json.Unmarshal(data, &sub); err != nil {
		t.Fatalf("unmarshal subtask: %v", err)
	}
	if sub.ParentID == nil || *sub.ParentID != task.ID || sub.ProjectID != project.ID {
		t.Fatalf("unexpected subtask %+v", sub)
	}

	// U is not a project member yet.
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/tasks/"+task.ID+"/members", map[string]any{"principal_id": "U"}, as("A"))
	expectStatus(t, res, data, http.StatusUnprocessableEntity)
	if got := decodeError(t, data).Code; got != "assignee_not_in_project" {
		t.Fatalf("expected assignee_not_in_project, got %s", got)
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/teams/"+team.ID+"/members", map[string]any{"principal_id": "U"}, as("A"))
	expectStatus(t, res, data, http.StatusCreated)
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/projects/"+project.ID+"/members", map[string]any{"principal_id": "U"}, as("A"))
	expectStatus(t, res, data, http.StatusCreated)
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/tasks/"+task.ID+"/members", map[string]any{"principal_id": "U"}, as("A"))
	expectStatus(t, res, data, http.StatusCreated)

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/tasks/"+task.ID, map[string]any{"status": "in_progress"}, as("U"))
	expectStatus(t, res, data, http.StatusForbidden)
	if got := decodeError(t, data).Code; got != "project_admin_required" {
		t.Fatalf("expected project_admin_required, got %s", got)
	}
	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/tasks/"+task.ID, map[string]any{"status": "in_progress"}, as("A"))
	expectStatus(t, res, data, http.StatusOK)
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task.Status != "in_progress" {
		t.Fatalf("expected in_progress, got %s", task.Status)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/access/task/"+task.ID, nil, as("U"))
	expectStatus(t, res, data, http.StatusOK)
	var sum domain.AccessSummary
	if err := json.Unmarshal(data, &sum); err != nil {
		t.Fatalf("unmarshal access: %v", err)
	}
	if sum.Role != "assignee" || !sum.CanView {
		t.Fatalf("unexpected access %+v", sum)
	}

	res, data = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/projects/"+project.ID, nil, as("U"))
	expectStatus(t, res, data, http.StatusForbidden)
	res, data = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/projects/"+project.ID, nil, as("A"))
	expectStatus(t, res, data, http.StatusNoContent)
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/tasks/"+sub.ID, nil, as("A"))
	expectStatus(t, res, data, http.StatusNotFound)
}

func TestInvitationOverHTTP(t *testing.T) {
	srv := newTestServer(t, "A", "B")
	team := createTeam(t, srv, "A", "Ops")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/teams/"+team.ID+"/invitations", map[string]any{"principal_id": "B", "role": "owner"}, as("A"))
	expectStatus(t, res, data, http.StatusUnprocessableEntity)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/teams/"+team.ID+"/invitations", map[string]any{"principal_id": "B"}, as("A"))
	expectStatus(t, res, data, http.StatusCreated)
	var inv domain.Invitation
	if err := json.Unmarshal(data, &inv); err != nil {
		t.Fatalf("unmarshal invitation: %v", err)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/invitations?status=pending", nil, as("B"))
	expectStatus(t, res, data, http.StatusOK)
	var list InvitationListResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal invitations: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != inv.ID {
		t.Fatalf("unexpected invitations %+v", list.Items)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/invitations/"+inv.ID, map[string]any{"status": "accepted"}, as("A"))
	expectStatus(t, res, data, http.StatusNotFound)
	res, data = doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/invitations/"+inv.ID, map[string]any{"status": "accepted"}, as("B"))
	expectStatus(t, res, data, http.StatusOK)
	res, data = doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/invitations/"+inv.ID, map[string]any{"status": "declined"}, as("B"))
	expectStatus(t, res, data, http.StatusUnprocessableEntity)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/teams/"+team.ID, nil, as("B"))
	expectStatus(t, res, data, http.StatusOK)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/events/team/"+team.ID+"?limit=5", nil, as("B"))
	expectStatus(t, res, data, http.StatusOK)
	var evts EventListResponse
	if err := json.Unmarshal(data, &evts); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(evts.Items) == 0 || evts.Items[0].Type != "invitation.accepted" {
		t.Fatalf("unexpected events %+v", evts.Items)
	}
}

func TestValidationErrorIsBadRequest(t *testing.T) {
	srv := newTestServer(t, "A")
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/teams", map[string]any{"name": ""}, as("A"))
	expectStatus(t, res, data, http.StatusBadRequest)
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/access/galaxy/x", nil, as("A"))
	expectStatus(t, res, data, http.StatusBadRequest)
}

func TestOpenAPIDocument(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/openapi.json", nil, nil)
	expectStatus(t, res, data, http.StatusOK)
	var doc struct {
		Paths      map[string]any `json:"paths"`
		Components struct {
			SecuritySchemes map[string]any `json:"securitySchemes"`
		} `json:"components"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal openapi: %v", err)
	}
	if _, ok := doc.Paths[DefaultBasePath+"/teams/{id}/members/{principal_id}/promote"]; !ok {
		t.Fatalf("promote route missing from openapi")
	}
	if _, ok := doc.Components.SecuritySchemes["bearerAuth"]; !ok {
		t.Fatalf("bearerAuth scheme missing")
	}
}

func TestWebhookDelivery(t *testing.T) {
	var mu sync.Mutex
	var got []webhookEvent
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		if err := json.NewDecoder(r.Body).Decode(&evt); err == nil && r.Header.Get("X-TaskManager-Event") == evt.Type {
			mu.Lock()
			got = append(got, evt)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	srv := newTestServer(t, "A")
	srv.Engine.Config.Webhooks = []config.WebhookConfig{{URL: hook.URL, Events: []string{"team.created"}}}
	d := newWebhookDispatcher(srv.Engine, nil)
	ctx := context.Background()
	d.dispatchAll(ctx) // pins the cursor before any team exists

	team := createTeam(t, srv, "A", "Hooks")
	d.dispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].ResourceID != team.ID {
		t.Fatalf("expected one team.created delivery, got %+v", got)
	}
}

func TestWebhookCursorNotSeededOnReadFailure(t *testing.T) {
	var mu sync.Mutex
	var got []webhookEvent
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		if err := json.NewDecoder(r.Body).Decode(&evt); err == nil {
			mu.Lock()
			got = append(got, evt)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	srv := newTestServer(t, "A")
	before := createTeam(t, srv, "A", "Before")
	srv.Engine.Config.Webhooks = []config.WebhookConfig{{URL: hook.URL, Events: []string{"team.created"}}}
	d := newWebhookDispatcher(srv.Engine, nil)
	ctx := context.Background()

	if _, err := srv.Engine.DB.ExecContext(ctx, `ALTER TABLE events RENAME TO events_offline`); err != nil {
		t.Fatalf("take events offline: %v", err)
	}
	d.dispatchAll(ctx)
	if _, ok := d.cursors[0]; ok {
		t.Fatalf("cursor seeded although the event log could not be read")
	}
	if _, err := srv.Engine.DB.ExecContext(ctx, `ALTER TABLE events_offline RENAME TO events`); err != nil {
		t.Fatalf("restore events: %v", err)
	}
	d.dispatchAll(ctx)

	after := createTeam(t, srv, "A", "After")
	d.dispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].ResourceID != after.ID {
		t.Fatalf("expected only the %s delivery (not a replay of %s), got %+v", after.ID, before.ID, got)
	}
}
