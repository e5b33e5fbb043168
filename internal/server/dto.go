package server

import (
	"encoding/json"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/domain"
)

// Request payloads

type CreateTeamRequest struct {
	Name        string `json:"name" minLength:"1"`
	Description string `json:"description,omitempty"`
}

type UpdateTeamRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type CreateProjectRequest struct {
	Name        string `json:"name" minLength:"1"`
	Description string `json:"description,omitempty"`
}

type UpdateProjectRequest = UpdateTeamRequest

type CreateTaskRequest struct {
	Title       string `json:"title" minLength:"1"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty" enum:"todo,in_progress,done"`
	Priority    string `json:"priority,omitempty" enum:"low,medium,high"`
	DueDate     string `json:"due_date,omitempty" format:"date"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"todo,in_progress,done"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
	DueDate     *string `json:"due_date,omitempty"`
}

type AddMemberRequest struct {
	PrincipalID string `json:"principal_id" minLength:"1"`
	Role        string `json:"role,omitempty" example:"member"`
}

type RespondInvitationRequest struct {
	Status string `json:"status" enum:"accepted,declined"`
}

type DevLoginRequest struct {
	PrincipalID string `json:"principal_id"`
	Name        string `json:"name,omitempty"`
}

// Response payloads

type DevLoginResponse struct {
	Token       string `json:"token"`
	PrincipalID string `json:"principal_id"`
}

type WhoAmIResponse struct {
	PrincipalID string        `json:"principal_id"`
	Source      string        `json:"source"`
	Teams       []domain.Team `json:"teams"`
}

type TeamListResponse struct {
	Items []domain.Team `json:"items"`
}

type ProjectListResponse struct {
	Items []domain.Project `json:"items"`
}

type TaskListResponse struct {
	Items []domain.Task `json:"items"`
}

type MemberListResponse struct {
	Items []domain.Membership `json:"items"`
}

type InvitationListResponse struct {
	Items []domain.Invitation `json:"items"`
}

type EventResponse struct {
	ID           int64          `json:"id"`
	TS           string         `json:"ts"`
	Type         string         `json:"type"`
	ResourceKind string         `json:"resource_kind"`
	ResourceID   string         `json:"resource_id"`
	ActorID      string         `json:"actor_id"`
	SubjectID    string         `json:"subject_id,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
}

type EventListResponse struct {
	Items []EventResponse `json:"items"`
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:           e.ID,
		TS:           e.TS,
		Type:         e.Type,
		ResourceKind: e.ResourceKind,
		ResourceID:   e.ResourceID,
		ActorID:      e.ActorID,
		SubjectID:    e.SubjectID,
		Payload:      decodeJSONMap(e.Payload),
	}
}

func mapEvents(items []domain.Event) []EventResponse {
	res := make([]EventResponse, 0, len(items))
	for _, e := range items {
		res = append(res, eventResponse(e))
	}
	return res
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
