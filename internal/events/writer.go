package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written by the engine.
const (
	PrincipalRegistered = "principal.registered"
	TeamCreated         = "team.created"
	TeamUpdated         = "team.updated"
	TeamDeleted         = "team.deleted"
	ProjectCreated      = "project.created"
	ProjectUpdated      = "project.updated"
	ProjectDeleted      = "project.deleted"
	TaskCreated         = "task.created"
	TaskUpdated         = "task.updated"
	TaskDeleted         = "task.deleted"
	MemberInvited       = "member.invited"
	MemberPromoted      = "member.promoted"
	MemberDemoted       = "member.demoted"
	MemberRemoved       = "member.removed"
	TaskMemberAssigned  = "task.member.assigned"
	TaskMemberRemoved   = "task.member.removed"
	InvitationSent      = "invitation.sent"
	InvitationAccepted  = "invitation.accepted"
	InvitationDeclined  = "invitation.declined"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Record is one row of the event log.
type Record struct {
	Type         string
	ResourceKind string
	ResourceID   string
	ActorID      string
	SubjectID    string
	Payload      EventPayload
}

// Append writes rec inside tx so the event commits or rolls back with the mutation.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, rec Record) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if rec.Payload == nil {
		rec.Payload = EventPayload{}
	}
	data, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,resource_kind,resource_id,actor_id,subject_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, rec.Type, rec.ResourceKind, rec.ResourceID, rec.ActorID, nullable(rec.SubjectID), string(data))
	if err != nil {
		return fmt.Errorf("append %s event: %w", rec.Type, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
