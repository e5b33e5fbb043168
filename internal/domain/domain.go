package domain

type Principal struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type Project struct {
	ID          string `json:"id"`
	TeamID      string `json:"team_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

// Task is a task or, when ParentID is set, a sub-task. Both belong directly to ProjectID.
type Task struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	ParentID    *string `json:"parent_id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status" enum:"todo,in_progress,done"`
	Priority    string  `json:"priority" enum:"low,medium,high"`
	DueDate     *string `json:"due_date,omitempty" format:"date"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type Membership struct {
	ResourceKind string `json:"resource_kind" enum:"team,project,task"`
	ResourceID   string `json:"resource_id"`
	PrincipalID  string `json:"principal_id"`
	Role         string `json:"role"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

type Invitation struct {
	ID           string `json:"id"`
	ResourceKind string `json:"resource_kind" enum:"team,project"`
	ResourceID   string `json:"resource_id"`
	InviterID    string `json:"inviter_id"`
	InviteeID    string `json:"invitee_id"`
	Role         string `json:"role"`
	Status       string `json:"status" enum:"pending,accepted,declined"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts" format:"date-time"`
	Type         string `json:"type"`
	ResourceKind string `json:"resource_kind"`
	ResourceID   string `json:"resource_id"`
	ActorID      string `json:"actor_id"`
	SubjectID    string `json:"subject_id,omitempty"`
	Payload      string `json:"payload_json"`
}

type APIKey struct {
	ID          string `json:"id"`
	PrincipalID string `json:"principal_id"`
	Name        string `json:"name,omitempty"`
	KeyHash     string `json:"key_hash"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// AccessSummary is what a principal holds on a resource and what it may do there.
type AccessSummary struct {
	PrincipalID  string   `json:"principal_id"`
	ResourceKind string   `json:"resource_kind"`
	ResourceID   string   `json:"resource_id"`
	Role         string   `json:"role,omitempty"`
	CanView      bool     `json:"can_view"`
	Actions      []string `json:"actions"`
}
