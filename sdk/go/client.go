package tmsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal task manager HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client for the API mounted at baseURL, for example http://localhost:8080/v1.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by"`
}

type Project struct {
	ID     string `json:"id"`
	TeamID string `json:"team_id"`
	Name   string `json:"name"`
}

type Task struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	ParentID  *string `json:"parent_id,omitempty"`
	Title     string  `json:"title"`
	Status    string  `json:"status"`
	Priority  string  `json:"priority"`
}

type Membership struct {
	ResourceKind string `json:"resource_kind"`
	ResourceID   string `json:"resource_id"`
	PrincipalID  string `json:"principal_id"`
	Role         string `json:"role"`
}

type Invitation struct {
	ID           string `json:"id"`
	ResourceKind string `json:"resource_kind"`
	ResourceID   string `json:"resource_id"`
	InviteeID    string `json:"invitee_id"`
	Role         string `json:"role"`
	Status       string `json:"status"`
}

// Access is the caller's role and allowed actions on a resource.
type Access struct {
	Role    string   `json:"role,omitempty"`
	CanView bool     `json:"can_view"`
	Actions []string `json:"actions"`
}

// APIError wraps non-2xx responses. Code is the machine-readable error code.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges the client's credentials for a development token and uses it for
// later calls. The server must run with dev login enabled.
func (c *Client) Login(ctx context.Context, principalID string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/dev/login", map[string]any{"principal_id": principalID}, &resp); err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

func (c *Client) CreateTeam(ctx context.Context, name string) (Team, error) {
	var resp Team
	err := c.do(ctx, http.MethodPost, "teams", map[string]any{"name": name}, &resp)
	return resp, err
}

func (c *Client) CreateProject(ctx context.Context, teamID, name string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPost, path("teams", teamID, "projects"), map[string]any{"name": name}, &resp)
	return resp, err
}

// CreateTask creates a task in a project, or a sub-task when parentID is set.
func (c *Client) CreateTask(ctx context.Context, projectID, parentID, title string) (Task, error) {
	endpoint := path("projects", projectID, "tasks")
	if parentID != "" {
		endpoint = path("tasks", parentID, "subtasks")
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"title": title}, &resp)
	return resp, err
}

// AddMember adds principalID to a team or project, or assigns it to a task.
func (c *Client) AddMember(ctx context.Context, kind, id, principalID, role string) (Membership, error) {
	var resp Membership
	body := map[string]any{"principal_id": principalID}
	if role != "" {
		body["role"] = role
	}
	err := c.do(ctx, http.MethodPost, path(kind+"s", id, "members"), body, &resp)
	return resp, err
}

func (c *Client) Promote(ctx context.Context, kind, id, principalID string) (Membership, error) {
	var resp Membership
	err := c.do(ctx, http.MethodPut, path(kind+"s", id, "members", principalID, "promote"), nil, &resp)
	return resp, err
}

func (c *Client) Demote(ctx context.Context, kind, id, principalID string) (Membership, error) {
	var resp Membership
	err := c.do(ctx, http.MethodPut, path(kind+"s", id, "members", principalID, "demote"), nil, &resp)
	return resp, err
}

func (c *Client) RemoveMember(ctx context.Context, kind, id, principalID string) error {
	return c.do(ctx, http.MethodDelete, path(kind+"s", id, "members", principalID), nil, nil)
}

func (c *Client) Members(ctx context.Context, kind, id string) ([]Membership, error) {
	var resp struct {
		Items []Membership `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, path(kind+"s", id, "members"), nil, &resp)
	return resp.Items, err
}

func (c *Client) Invite(ctx context.Context, kind, id, principalID, role string) (Invitation, error) {
	var resp Invitation
	err := c.do(ctx, http.MethodPost, path(kind+"s", id, "invitations"), map[string]any{"principal_id": principalID, "role": role}, &resp)
	return resp, err
}

func (c *Client) RespondInvitation(ctx context.Context, id string, accept bool) (Invitation, error) {
	status := "declined"
	if accept {
		status = "accepted"
	}
	var resp Invitation
	err := c.do(ctx, http.MethodPut, path("invitations", id), map[string]any{"status": status}, &resp)
	return resp, err
}

func (c *Client) Access(ctx context.Context, kind, id string) (Access, error) {
	var resp Access
	err := c.do(ctx, http.MethodGet, path("access", kind, id), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func path(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return strings.Join(escaped, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
