package auth

import (
	"errors"
	"fmt"
)

// Kind classifies a denial or store failure so callers can tell them apart.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindConflict
	KindForbidden
	KindInvalidTransition
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindValidation:
		return "validation_error"
	default:
		return "unknown"
	}
}

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrValidation        = errors.New("validation error")
)

// Error is a denial with a stable machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrForbidden:
		return e.Kind == KindForbidden
	case ErrInvalidTransition:
		return e.Kind == KindInvalidTransition
	case ErrValidation:
		return e.Kind == KindValidation
	}
	return false
}

func newError(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFound(code, format string, args ...any) *Error {
	return newError(KindNotFound, code, format, args...)
}

func Conflict(code, format string, args ...any) *Error {
	return newError(KindConflict, code, format, args...)
}

func Forbidden(code, format string, args ...any) *Error {
	return newError(KindForbidden, code, format, args...)
}

func InvalidTransition(code, format string, args ...any) *Error {
	return newError(KindInvalidTransition, code, format, args...)
}

func Validation(code, format string, args ...any) *Error {
	return newError(KindValidation, code, format, args...)
}

// Codes returns the codes of every *Error joined into err, in order.
func Codes(err error) []string {
	if err == nil {
		return nil
	}
	var codes []string
	var walk func(error)
	walk = func(e error) {
		if ae, ok := e.(*Error); ok {
			codes = append(codes, ae.Code)
			return
		}
		switch x := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			if inner := x.Unwrap(); inner != nil {
				walk(inner)
			}
		}
	}
	walk(err)
	return codes
}

// HasCode reports whether err carries a denial with the given code.
func HasCode(err error, code string) bool {
	for _, c := range Codes(err) {
		if c == code {
			return true
		}
	}
	return false
}

// Denial codes reported by the engine.
const (
	CodeInvalidRole             = "invalid_role"
	CodeInvalidScope            = "invalid_scope"
	CodeInvalidAction           = "invalid_action"
	CodeRoleScopeMismatch       = "role_scope_mismatch"
	CodeTeamMemberRequired      = "team_membership_required"
	CodeTeamAdminRequired       = "team_admin_required"
	CodeTeamOwnerRequired       = "team_owner_required"
	CodeProjectMemberRequired   = "project_membership_required"
	CodeProjectAdminRequired    = "project_admin_required"
	CodeProjectOwnerRequired    = "project_owner_required"
	CodeTaskAssignmentRequired  = "task_assignment_required"
	CodeMembershipNotFound      = "membership_not_found"
	CodeMembershipExists        = "membership_exists"
	CodeAlreadyOwner            = "already_owner"
	CodeAlreadyAdmin            = "already_admin"
	CodeAlreadyMember           = "already_member"
	CodeOwnerImmutable          = "owner_immutable"
	CodeOwnerNotGrantable       = "owner_not_grantable"
	CodeAdminGrantRequiresOwner = "admin_grant_requires_owner"
	CodeInviteeNotInTeam        = "invitee_not_in_team"
	CodeAssigneeNotInProject    = "assignee_not_in_project"
	CodeOwnerSelfRemoval        = "owner_self_removal"
	CodePrivilegedTaskMember    = "privileged_task_member"
	CodeLastAssignee            = "last_assignee"
)
