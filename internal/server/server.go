package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/domain"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/repo"
)

const DefaultBasePath = "/v1"

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"team_admin_required"`
	Message string         `json:"message" example:"you must be an admin of this team"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"codes\":[\"last_assignee\"]}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type output[T any] struct {
	Body T
}

func reply[T any](v T) *output[T] { return &output[T]{Body: v} }

type idPath struct {
	ID string `path:"id"`
}

type memberPath struct {
	ID          string `path:"id"`
	PrincipalID string `path:"principal_id"`
}

// New returns an HTTP handler exposing the task manager API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// request schema failures are the caller's fault, not a state transition
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Task Manager API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	if cfg.Auth.EnableDevLogin {
		registerDevAuth(group, cfg.Engine, cfg.Auth)
	}
	registerMe(group, cfg.Engine)
	registerAccess(group, cfg.Engine)
	registerTeams(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerMemberRoutes(group, cfg.Engine, auth.ScopeTeam)
	registerMemberRoutes(group, cfg.Engine, auth.ScopeProject)
	registerInvitations(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func statusForKind(k auth.Kind) int {
	switch k {
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindConflict:
		return http.StatusConflict
	case auth.KindForbidden:
		return http.StatusForbidden
	case auth.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case auth.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleError maps engine errors onto the envelope. When several guard rules fail at
// once the first decides the status and every code is listed in details.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var ae *auth.Error
	if errors.As(err, &ae) {
		var details map[string]any
		if codes := auth.Codes(err); len(codes) > 1 {
			details = map[string]any{"codes": codes}
		}
		return newAPIError(statusForKind(ae.Kind), ae.Code, err.Error(), details)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "invalid_transition"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

var (
	readErrors   = []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound}
	writeErrors  = []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity}
	deleteErrors = []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity}
)

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func operations(item *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace}
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range operations(item) {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	public := map[string]bool{
		path.Join("/", basePath, "health"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
			if op == nil {
				continue
			}
			if public[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Task Manager API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*output[map[string]string], error) {
		return reply(map[string]string{"status": "ok"}), nil
	})
}

func registerDevAuth(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: exchange credentials for a JWT",
		Description: "Mints a token for the authenticated caller, or registers and mints for a principal id that does not exist yet.",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest
	}) (*output[DevLoginResponse], error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		caller, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		id := strings.TrimSpace(input.Body.PrincipalID)
		if id == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "principal_id is required", nil)
		}
		_, err := e.Repo.GetPrincipal(ctx, nil, id)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			if _, err := e.RegisterPrincipal(ctx, engine.PrincipalOptions{ID: id, Name: input.Body.Name}); err != nil {
				return nil, handleError(err)
			}
		case err != nil:
			return nil, handleError(err)
		case id != caller:
			return nil, newAPIError(http.StatusForbidden, "impersonation_denied", "tokens for an existing principal can only be minted by that principal", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, id, time.Now())
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return reply(DevLoginResponse{Token: token, PrincipalID: id}), nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[WhoAmIResponse], error) {
		p, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		teams, err := e.ListTeams(ctx, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(WhoAmIResponse{PrincipalID: p.ActorID, Source: p.Source, Teams: nonNilSlice(teams)}), nil
	})
}

func registerAccess(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "access",
		Method:      http.MethodGet,
		Path:        "/access/{kind}/{id}",
		Summary:     "Role and allowed actions of the caller on a resource",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Kind string `path:"kind" enum:"team,project,task,subtask"`
		ID   string `path:"id"`
	}) (*output[domain.AccessSummary], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		kind, err := auth.ParseScope(input.Kind)
		if err != nil {
			return nil, handleError(err)
		}
		sum, err := e.Access(ctx, actorID, auth.Resource{Kind: kind, ID: input.ID})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(sum), nil
	})
}

func registerTeams(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-team",
		Method:        http.MethodPost,
		Path:          "/teams",
		Summary:       "Create team",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTeamRequest
	}) (*output[domain.Team], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTeam(ctx, engine.TeamCreateOptions{ActorID: actorID, Name: input.Body.Name, Description: input.Body.Description})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-teams",
		Method:      http.MethodGet,
		Path:        "/teams",
		Summary:     "Teams the caller belongs to",
		Errors:      readErrors,
	}, func(ctx context.Context, _ *struct{}) (*output[TeamListResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		teams, err := e.ListTeams(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(TeamListResponse{Items: nonNilSlice(teams)}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-team",
		Method:      http.MethodGet,
		Path:        "/teams/{id}",
		Summary:     "Get team",
		Errors:      readErrors,
	}, func(ctx context.Context, input *idPath) (*output[domain.Team], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTeam(ctx, actorID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-team",
		Method:      http.MethodPatch,
		Path:        "/teams/{id}",
		Summary:     "Update team",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body UpdateTeamRequest
	}) (*output[domain.Team], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateTeam(ctx, engine.TeamUpdateOptions{
			ActorID: actorID, ID: input.ID, Name: input.Body.Name, Description: input.Body.Description,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-team",
		Method:        http.MethodDelete,
		Path:          "/teams/{id}",
		Summary:       "Delete team with its projects and tasks",
		DefaultStatus: http.StatusNoContent,
		Errors:        deleteErrors,
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTeam(ctx, actorID, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/teams/{id}/projects",
		Summary:       "Create project in a team",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body CreateProjectRequest
	}) (*output[domain.Project], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			ActorID: actorID, TeamID: input.ID, Name: input.Body.Name, Description: input.Body.Description,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/teams/{id}/projects",
		Summary:     "List team projects",
		Errors:      readErrors,
	}, func(ctx context.Context, input *idPath) (*output[ProjectListResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListProjects(ctx, actorID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(ProjectListResponse{Items: nonNilSlice(items)}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get project",
		Errors:      readErrors,
	}, func(ctx context.Context, input *idPath) (*output[domain.Project], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.GetProject(ctx, actorID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{id}",
		Summary:     "Update project",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body UpdateProjectRequest
	}) (*output[domain.Project], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.UpdateProject(ctx, engine.ProjectUpdateOptions{
			ActorID: actorID, ID: input.ID, Name: input.Body.Name, Description: input.Body.Description,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-project",
		Method:        http.MethodDelete,
		Path:          "/projects/{id}",
		Summary:       "Delete project with its tasks",
		DefaultStatus: http.StatusNoContent,
		Errors:        deleteErrors,
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteProject(ctx, actorID, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	create := func(ctx context.Context, projectID, parentID string, body CreateTaskRequest) (*output[domain.Task], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			ActorID:     actorID,
			ProjectID:   projectID,
			ParentID:    parentID,
			Title:       body.Title,
			Description: body.Description,
			Status:      body.Status,
			Priority:    body.Priority,
			DueDate:     body.DueDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	}
	list := func(ctx context.Context, projectID, parentID string) (*output[TaskListResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListTasks(ctx, actorID, projectID, parentID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(TaskListResponse{Items: nonNilSlice(items)}), nil
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body CreateTaskRequest
	}) (*output[domain.Task], error) {
		return create(ctx, input.ID, "", input.Body)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/tasks",
		Summary:     "List visible top-level tasks",
		Errors:      readErrors,
	}, func(ctx context.Context, input *idPath) (*output[TaskListResponse], error) {
		return list(ctx, input.ID, "")
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-subtask",
		Method:        http.MethodPost,
		Path:          "/tasks/{id}/subtasks",
		Summary:       "Create sub-task",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body CreateTaskRequest
	}) (*output[domain.Task], error) {
		return create(ctx, "", input.ID, input.Body)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-subtasks",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/subtasks",
		Summary:     "List visible sub-tasks",
		Errors:      readErrors,
	}, func(ctx context.Context, input *idPath) (*output[TaskListResponse], error) {
		return list(ctx, "", input.ID)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      readErrors,
	}, func(ctx context.Context, input *idPath) (*output[domain.Task], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTask(ctx, actorID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body UpdateTaskRequest
	}) (*output[domain.Task], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			ActorID:     actorID,
			ID:          input.ID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Status:      input.Body.Status,
			Priority:    input.Body.Priority,
			DueDate:     input.Body.DueDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}",
		Summary:       "Delete task with its sub-tasks",
		DefaultStatus: http.StatusNoContent,
		Errors:        deleteErrors,
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, actorID, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-task-members",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/members",
		Summary:     "List task members",
		Errors:      readErrors,
	}, func(ctx context.Context, input *idPath) (*output[MemberListResponse], error) {
		return listMembers(ctx, e, auth.Task(input.ID))
	})

	huma.Register(api, huma.Operation{
		OperationID:   "assign-task-member",
		Method:        http.MethodPost,
		Path:          "/tasks/{id}/members",
		Summary:       "Assign a project member to the task",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body AddMemberRequest
	}) (*output[domain.Membership], error) {
		opts, authErr := memberOptions(ctx, auth.Task(input.ID), input.Body.PrincipalID, input.Body.Role)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.AssignTaskMember(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(m), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-task-member",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}/members/{principal_id}",
		Summary:       "Remove a task member",
		DefaultStatus: http.StatusNoContent,
		Errors:        deleteErrors,
	}, func(ctx context.Context, input *memberPath) (*struct{}, error) {
		opts, authErr := memberOptions(ctx, auth.Task(input.ID), input.PrincipalID, "")
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveTaskMember(ctx, opts); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func memberOptions(ctx context.Context, res auth.Resource, principalID, role string) (engine.MemberOptions, huma.StatusError) {
	actorID, authErr := actorIDFromContext(ctx)
	if authErr != nil {
		return engine.MemberOptions{}, authErr
	}
	return engine.MemberOptions{
		ActorID:     actorID,
		PrincipalID: strings.TrimSpace(principalID),
		Resource:    res,
		Role:        role,
	}, nil
}

func listMembers(ctx context.Context, e engine.Engine, res auth.Resource) (*output[MemberListResponse], error) {
	actorID, authErr := actorIDFromContext(ctx)
	if authErr != nil {
		return nil, authErr
	}
	items, err := e.ListMembers(ctx, actorID, res)
	if err != nil {
		return nil, handleError(err)
	}
	return reply(MemberListResponse{Items: nonNilSlice(items)}), nil
}

// registerMemberRoutes mounts the membership routes shared by teams and projects.
func registerMemberRoutes(api huma.API, e engine.Engine, kind auth.Scope) {
	name := string(kind)
	base := "/" + name + "s/{id}"
	res := func(id string) auth.Resource { return auth.Resource{Kind: kind, ID: id} }

	huma.Register(api, huma.Operation{
		OperationID: "list-" + name + "-members",
		Method:      http.MethodGet,
		Path:        base + "/members",
		Summary:     "List " + name + " members",
		Errors:      readErrors,
	}, func(ctx context.Context, input *idPath) (*output[MemberListResponse], error) {
		return listMembers(ctx, e, res(input.ID))
	})

	huma.Register(api, huma.Operation{
		OperationID:   "invite-" + name + "-member",
		Method:        http.MethodPost,
		Path:          base + "/members",
		Summary:       "Add a " + name + " member",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body AddMemberRequest
	}) (*output[domain.Membership], error) {
		opts, authErr := memberOptions(ctx, res(input.ID), input.Body.PrincipalID, input.Body.Role)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.InviteMember(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(m), nil
	})

	roleChange := map[string]func(context.Context, engine.MemberOptions) (domain.Membership, error){
		"promote": e.PromoteMember,
		"demote":  e.DemoteMember,
	}
	for verb, change := range roleChange {
		huma.Register(api, huma.Operation{
			OperationID: verb + "-" + name + "-member",
			Method:      http.MethodPut,
			Path:        base + "/members/{principal_id}/" + verb,
			Summary:     strings.ToUpper(verb[:1]) + verb[1:] + " a " + name + " member",
			Errors:      writeErrors,
		}, func(ctx context.Context, input *memberPath) (*output[domain.Membership], error) {
			opts, authErr := memberOptions(ctx, res(input.ID), input.PrincipalID, "")
			if authErr != nil {
				return nil, authErr
			}
			m, err := change(ctx, opts)
			if err != nil {
				return nil, handleError(err)
			}
			return reply(m), nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID:   "remove-" + name + "-member",
		Method:        http.MethodDelete,
		Path:          base + "/members/{principal_id}",
		Summary:       "Remove a " + name + " member",
		DefaultStatus: http.StatusNoContent,
		Errors:        deleteErrors,
	}, func(ctx context.Context, input *memberPath) (*struct{}, error) {
		opts, authErr := memberOptions(ctx, res(input.ID), input.PrincipalID, "")
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveMember(ctx, opts); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "invite-to-" + name,
		Method:        http.MethodPost,
		Path:          base + "/invitations",
		Summary:       "Send an invitation to join the " + name,
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body AddMemberRequest
	}) (*output[domain.Invitation], error) {
		opts, authErr := memberOptions(ctx, res(input.ID), input.Body.PrincipalID, input.Body.Role)
		if authErr != nil {
			return nil, authErr
		}
		inv, err := e.SendInvitation(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(inv), nil
	})
}

func registerInvitations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-invitations",
		Method:      http.MethodGet,
		Path:        "/invitations",
		Summary:     "Invitations addressed to the caller",
		Errors:      readErrors,
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"pending,accepted,declined"`
	}) (*output[InvitationListResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListInvitations(ctx, actorID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(InvitationListResponse{Items: nonNilSlice(items)}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "respond-invitation",
		Method:      http.MethodPut,
		Path:        "/invitations/{id}",
		Summary:     "Accept or decline an invitation",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body RespondInvitationRequest
	}) (*output[domain.Invitation], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		inv, err := e.RespondInvitation(ctx, actorID, input.ID, input.Body.Status == engine.InvitationAccepted)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(inv), nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events/{kind}/{id}",
		Summary:     "Latest events recorded against a resource",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Kind  string `path:"kind" enum:"team,project,task"`
		ID    string `path:"id"`
		Limit int    `query:"limit" minimum:"0" maximum:"200"`
	}) (*output[EventListResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		kind, err := auth.ParseScope(input.Kind)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.ResourceEvents(ctx, actorID, auth.Resource{Kind: kind, ID: input.ID}, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(EventListResponse{Items: mapEvents(items)}), nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
